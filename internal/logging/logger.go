// Package logging provides structured logging for zoom-to-moodle on top of zap
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/curtbushko/zoom-to-moodle/internal/config"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type contextKey string

// RequestIDKey is the context key for request and run IDs
const RequestIDKey contextKey = "request_id"

// Logger defines the interface for logging operations
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})

	DebugWithContext(ctx context.Context, format string, args ...interface{})
	InfoWithContext(ctx context.Context, format string, args ...interface{})
	WarnWithContext(ctx context.Context, format string, args ...interface{})
	ErrorWithContext(ctx context.Context, format string, args ...interface{})

	LogUserAction(action string, user string, metadata map[string]interface{})
	LogPerformance(metrics PerformanceMetrics)
	LogAPIRequest(request APIRequest)
	LogAPIResponse(response APIResponse)

	GetLevel() LogLevel
	SetLevel(level LogLevel)
	SetOutput(w io.Writer)
	Close() error
}

// PerformanceMetrics represents performance data for logging
type PerformanceMetrics struct {
	Operation      string
	Duration       time.Duration
	BytesProcessed int64
	Success        bool
	Error          string
	Metadata       map[string]interface{}
}

// APIRequest represents an outgoing API request for logging
type APIRequest struct {
	Method    string
	URL       string
	Headers   map[string]string
	Body      string
	RequestID string
	Timestamp time.Time
}

// APIResponse represents an API response for logging
type APIResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       string
	RequestID  string
	Duration   time.Duration
	Timestamp  time.Time
	Success    bool
	Error      string
}

const maxLoggedBody = 1000

// zapLogger implements Logger with a zap core that can be rebuilt when the output changes
type zapLogger struct {
	mu         sync.RWMutex
	level      zap.AtomicLevel
	encoder    zapcore.Encoder
	logger     *zap.Logger
	fileHandle *os.File
}

// NewLogger creates a new Logger instance with the given configuration
func NewLogger(cfg config.LoggingConfig) (Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if cfg.JSONFormat {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	l := &zapLogger{
		level:   zap.NewAtomicLevelAt(level.zapLevel()),
		encoder: encoder,
	}

	var writers []zapcore.WriteSyncer
	if cfg.Console {
		writers = append(writers, zapcore.Lock(os.Stdout))
	}
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		l.fileHandle = file
		writers = append(writers, zapcore.AddSync(file))
	}

	l.build(zapcore.NewMultiWriteSyncer(writers...))
	return l, nil
}

func (l *zapLogger) build(sink zapcore.WriteSyncer) {
	core := zapcore.NewCore(l.encoder, sink, l.level)
	l.logger = zap.New(core)
}

// parseLogLevel converts a string to LogLevel
func parseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

func (l *zapLogger) current() *zap.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.logger
}

func (l *zapLogger) log(level LogLevel, ctx context.Context, format string, args ...interface{}) {
	logger := l.current()
	if ce := logger.Check(level.zapLevel(), fmt.Sprintf(format, args...)); ce != nil {
		var fields []zap.Field
		if ctx != nil {
			if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
				fields = append(fields, zap.String("request_id", requestID))
			}
		}
		ce.Write(fields...)
	}
}

func (l *zapLogger) structured(level LogLevel, message string, fields map[string]interface{}) {
	logger := l.current()
	if ce := logger.Check(level.zapLevel(), message); ce != nil {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		ce.Write(zapFields...)
	}
}

func (l *zapLogger) Debug(format string, args ...interface{}) {
	l.log(DebugLevel, nil, format, args...)
}

func (l *zapLogger) Info(format string, args ...interface{}) {
	l.log(InfoLevel, nil, format, args...)
}

func (l *zapLogger) Warn(format string, args ...interface{}) {
	l.log(WarnLevel, nil, format, args...)
}

func (l *zapLogger) Error(format string, args ...interface{}) {
	l.log(ErrorLevel, nil, format, args...)
}

func (l *zapLogger) DebugWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(DebugLevel, ctx, format, args...)
}

func (l *zapLogger) InfoWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(InfoLevel, ctx, format, args...)
}

func (l *zapLogger) WarnWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(WarnLevel, ctx, format, args...)
}

func (l *zapLogger) ErrorWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ErrorLevel, ctx, format, args...)
}

// LogUserAction logs an administrator or participant action with metadata
func (l *zapLogger) LogUserAction(action string, user string, metadata map[string]interface{}) {
	fields := map[string]interface{}{
		"action": action,
		"user":   user,
	}
	for key, value := range metadata {
		fields[key] = value
	}
	l.structured(InfoLevel, fmt.Sprintf("User action: %s", action), fields)
}

// LogPerformance logs performance metrics
func (l *zapLogger) LogPerformance(metrics PerformanceMetrics) {
	fields := map[string]interface{}{
		"operation":       metrics.Operation,
		"duration_ms":     metrics.Duration.Milliseconds(),
		"bytes_processed": metrics.BytesProcessed,
		"success":         metrics.Success,
	}
	if metrics.Error != "" {
		fields["error"] = metrics.Error
	}
	for key, value := range metrics.Metadata {
		fields[key] = value
	}
	l.structured(InfoLevel, fmt.Sprintf("Performance: %s completed in %v", metrics.Operation, metrics.Duration), fields)
}

// LogAPIRequest logs API requests with the authorization header masked
func (l *zapLogger) LogAPIRequest(request APIRequest) {
	if request.Timestamp.IsZero() {
		request.Timestamp = time.Now().UTC()
	}

	fields := map[string]interface{}{
		"method":     request.Method,
		"url":        request.URL,
		"request_id": request.RequestID,
	}

	if len(request.Headers) > 0 {
		sanitized := make(map[string]string, len(request.Headers))
		for key, value := range request.Headers {
			if strings.EqualFold(key, "authorization") {
				sanitized[key] = "***"
			} else {
				sanitized[key] = value
			}
		}
		fields["headers"] = sanitized
	}
	if request.Body != "" {
		fields["body"] = truncate(request.Body)
	}

	l.structured(DebugLevel, fmt.Sprintf("API Request: %s %s", request.Method, request.URL), fields)
}

// LogAPIResponse logs API responses
func (l *zapLogger) LogAPIResponse(response APIResponse) {
	fields := map[string]interface{}{
		"status_code": response.StatusCode,
		"request_id":  response.RequestID,
		"duration_ms": response.Duration.Milliseconds(),
		"success":     response.Success,
	}
	if response.Error != "" {
		fields["error"] = response.Error
	}
	if response.Body != "" {
		fields["body"] = truncate(response.Body)
	}

	l.structured(DebugLevel, fmt.Sprintf("API Response: %d (%v)", response.StatusCode, response.Duration), fields)
}

func truncate(body string) string {
	if len(body) > maxLoggedBody {
		return body[:maxLoggedBody] + "... (truncated)"
	}
	return body
}

func (l *zapLogger) GetLevel() LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return DebugLevel
	case zapcore.WarnLevel:
		return WarnLevel
	case zapcore.ErrorLevel:
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l *zapLogger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// SetOutput replaces every sink with w (mainly for testing)
func (l *zapLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.build(zapcore.AddSync(w))
}

// Close flushes buffered entries and closes the log file
func (l *zapLogger) Close() error {
	_ = l.current().Sync()
	if l.fileHandle != nil {
		return l.fileHandle.Close()
	}
	return nil
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger
)

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// GetDefaultLogger returns the global default logger, or a no-op logger before initialization
func GetDefaultLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultLogger == nil {
		return nopLogger
	}
	return defaultLogger
}

// InitializeLogging initializes the global logger with the provided configuration
func InitializeLogging(cfg config.LoggingConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	SetDefaultLogger(logger)
	return nil
}

// NewNopLogger returns a Logger that discards everything
func NewNopLogger() Logger {
	return &zapLogger{
		level:   zap.NewAtomicLevelAt(zapcore.ErrorLevel),
		encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		logger:  zap.NewNop(),
	}
}

var nopLogger = NewNopLogger()

func Debug(format string, args ...interface{}) {
	GetDefaultLogger().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	GetDefaultLogger().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetDefaultLogger().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	GetDefaultLogger().Error(format, args...)
}

// WithRequestID creates a context carrying a request ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID extracts the request ID from a context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	return requestID, ok
}

// GenerateRequestID returns a new random request ID
func GenerateRequestID() string {
	return "req-" + uuid.NewString()
}
