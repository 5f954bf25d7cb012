package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name          string
		config        config.LoggingConfig
		expectedError bool
		expectedLevel LogLevel
	}{
		{
			name:          "valid debug config",
			config:        config.LoggingConfig{Level: "debug", Console: true},
			expectedLevel: DebugLevel,
		},
		{
			name:          "valid info json config",
			config:        config.LoggingConfig{Level: "info", Console: true, JSONFormat: true},
			expectedLevel: InfoLevel,
		},
		{
			name:          "case insensitive level",
			config:        config.LoggingConfig{Level: "WARN", Console: true},
			expectedLevel: WarnLevel,
		},
		{
			name:          "invalid log level",
			config:        config.LoggingConfig{Level: "invalid", Console: true},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)

			if tt.expectedError {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			defer logger.Close()

			if logger.GetLevel() != tt.expectedLevel {
				t.Errorf("Expected level %v, got %v", tt.expectedLevel, logger.GetLevel())
			}
		})
	}
}

func newBufferedLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	logger, err := NewLogger(config.LoggingConfig{Level: level, JSONFormat: true})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	var buffer bytes.Buffer
	logger.SetOutput(&buffer)
	return logger, &buffer
}

func decodeLines(t *testing.T, buffer *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buffer.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to decode log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerLevels(t *testing.T) {
	logger, buffer := newBufferedLogger(t, "warn")

	logger.Debug("debug %d", 1)
	logger.Info("info %d", 2)
	logger.Warn("warn %d", 3)
	logger.Error("error %d", 4)

	entries := decodeLines(t, buffer)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries at warn level, got %d: %s", len(entries), buffer.String())
	}
	if entries[0]["message"] != "warn 3" {
		t.Errorf("Expected message 'warn 3', got %v", entries[0]["message"])
	}
	if entries[1]["level"] != "ERROR" {
		t.Errorf("Expected level ERROR, got %v", entries[1]["level"])
	}

	logger.SetLevel(DebugLevel)
	buffer.Reset()
	logger.Debug("now visible")
	if !strings.Contains(buffer.String(), "now visible") {
		t.Errorf("Expected debug message after SetLevel, got %q", buffer.String())
	}
}

func TestLoggerWithContext(t *testing.T) {
	logger, buffer := newBufferedLogger(t, "info")

	ctx := WithRequestID(context.Background(), "run-42")
	logger.InfoWithContext(ctx, "processing page %d", 7)

	entries := decodeLines(t, buffer)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0]["request_id"] != "run-42" {
		t.Errorf("Expected request_id run-42, got %v", entries[0]["request_id"])
	}

	id, ok := GetRequestID(ctx)
	if !ok || id != "run-42" {
		t.Errorf("Expected request id run-42, got %q (%t)", id, ok)
	}
}

func TestLogAPIRequestMasksAuthorization(t *testing.T) {
	logger, buffer := newBufferedLogger(t, "debug")

	logger.LogAPIRequest(APIRequest{
		Method:    "GET",
		URL:       "https://api.zoom.us/v2/users",
		Headers:   map[string]string{"Authorization": "Bearer secret-token", "Accept": "application/json"},
		RequestID: "req-1",
	})

	output := buffer.String()
	if strings.Contains(output, "secret-token") {
		t.Errorf("Authorization header leaked into log: %s", output)
	}
	if !strings.Contains(output, "***") {
		t.Errorf("Expected masked authorization header, got %s", output)
	}
}

func TestLogAPIResponseTruncatesBody(t *testing.T) {
	logger, buffer := newBufferedLogger(t, "debug")

	logger.LogAPIResponse(APIResponse{
		StatusCode: 500,
		Body:       strings.Repeat("x", 1500),
		Duration:   120 * time.Millisecond,
	})

	entries := decodeLines(t, buffer)
	body, _ := entries[0]["body"].(string)
	if !strings.HasSuffix(body, "... (truncated)") {
		t.Errorf("Expected truncated body, got length %d", len(body))
	}
	if entries[0]["status_code"] != float64(500) {
		t.Errorf("Expected status_code 500, got %v", entries[0]["status_code"])
	}
}

func TestLogPerformanceAndUserAction(t *testing.T) {
	logger, buffer := newBufferedLogger(t, "info")

	logger.LogPerformance(PerformanceMetrics{
		Operation:      "drive_upload",
		Duration:       2 * time.Second,
		BytesProcessed: 1024,
		Success:        true,
		Metadata:       map[string]interface{}{"file": "aula.mp4"},
	})
	logger.LogUserAction("recording_view", "student@example.edu", map[string]interface{}{"uuid": "abc"})

	entries := decodeLines(t, buffer)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0]["operation"] != "drive_upload" || entries[0]["file"] != "aula.mp4" {
		t.Errorf("Unexpected performance entry: %v", entries[0])
	}
	if entries[1]["user"] != "student@example.edu" || entries[1]["uuid"] != "abc" {
		t.Errorf("Unexpected user action entry: %v", entries[1])
	}
}

func TestLoggerFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "sync.log")

	logger, err := NewLogger(config.LoggingConfig{Level: "info", File: logFile, JSONFormat: true})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.Info("written to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Expected message in log file, got %q", string(data))
	}
}

func TestDefaultLoggerBeforeInitialization(t *testing.T) {
	SetDefaultLogger(nil)
	// must not panic
	Info("nothing configured yet")
	if GetDefaultLogger() == nil {
		t.Error("Expected a no-op default logger")
	}

	if err := InitializeLogging(config.LoggingConfig{Level: "error"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if GetDefaultLogger().GetLevel() != ErrorLevel {
		t.Errorf("Expected default logger at error level, got %v", GetDefaultLogger().GetLevel())
	}
	SetDefaultLogger(nil)
}

func TestGenerateRequestID(t *testing.T) {
	first := GenerateRequestID()
	second := GenerateRequestID()
	if first == second {
		t.Error("Expected unique request IDs")
	}
	if !strings.HasPrefix(first, "req-") {
		t.Errorf("Expected req- prefix, got %s", first)
	}
}
