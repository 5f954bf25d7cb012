package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	return configPath
}

func validConfig() *Config {
	return &Config{
		Zoom: ZoomConfig{
			APIKey:           "key",
			APISecret:        "secret",
			RateLimitRetries: 10,
		},
		Database: DatabaseConfig{Driver: "sqlite"},
		Sync:     SyncConfig{DefaultTimezone: "America/Sao_Paulo"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name          string
		configYAML    string
		expectedZoom  ZoomConfig
		expectedDrive DriveConfig
		shouldError   bool
	}{
		{
			name: "complete configuration",
			configYAML: `
zoom:
  api_key: "test_key"
  api_secret: "test_secret"
  base_url: "https://api.zoom.us/v2"
  rate_limit_retries: 5
  rate_limit_backoff_ms: 250

drive:
  enabled: true
  client_id: "drive_client"
  client_secret: "drive_secret"
  root_folder_id: "root123"
  simple_upload_limit_mb: 500

database:
  driver: "postgres"
  dsn: "host=localhost user=moodle dbname=moodle"

sync:
  min_video_size_mb: 20
  default_timezone: "America/Sao_Paulo"
  language: "pt-BR"
  site_url: "https://moodle.example.edu"

logging:
  level: "debug"
  json_format: true
`,
			expectedZoom: ZoomConfig{
				APIKey:             "test_key",
				APISecret:          "test_secret",
				BaseURL:            "https://api.zoom.us/v2",
				RateLimitRetries:   5,
				RateLimitBackoffMS: 250,
			},
			expectedDrive: DriveConfig{
				Enabled:             true,
				ClientID:            "drive_client",
				ClientSecret:        "drive_secret",
				RootFolderID:        "root123",
				SimpleUploadLimitMB: 500,
				ChunkSizeMB:         100,
			},
		},
		{
			name: "minimal configuration with defaults",
			configYAML: `
zoom:
  api_key: "k"
  api_secret: "s"
`,
			expectedZoom: ZoomConfig{
				APIKey:             "k",
				APISecret:          "s",
				BaseURL:            "https://api.zoom.us/v2",
				RateLimitRetries:   10,
				RateLimitBackoffMS: 100,
			},
			expectedDrive: DriveConfig{
				Enabled:             false,
				SimpleUploadLimitMB: 300,
				ChunkSizeMB:         100,
			},
		},
		{
			name: "missing zoom secret",
			configYAML: `
zoom:
  api_key: "k"
`,
			shouldError: true,
		},
		{
			name: "drive enabled without root folder",
			configYAML: `
zoom:
  api_key: "k"
  api_secret: "s"
drive:
  enabled: true
  client_id: "c"
  client_secret: "s"
`,
			shouldError: true,
		},
		{
			name:        "invalid YAML",
			configYAML:  "invalid: yaml: content: [unclosed",
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfig(writeConfig(t, tt.configYAML))

			if tt.shouldError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if config.Zoom.APIKey != tt.expectedZoom.APIKey {
				t.Errorf("Expected Zoom APIKey %s, got %s", tt.expectedZoom.APIKey, config.Zoom.APIKey)
			}
			if config.Zoom.APISecret != tt.expectedZoom.APISecret {
				t.Errorf("Expected Zoom APISecret %s, got %s", tt.expectedZoom.APISecret, config.Zoom.APISecret)
			}
			if config.Zoom.BaseURL != tt.expectedZoom.BaseURL {
				t.Errorf("Expected Zoom BaseURL %s, got %s", tt.expectedZoom.BaseURL, config.Zoom.BaseURL)
			}
			if config.Zoom.RateLimitRetries != tt.expectedZoom.RateLimitRetries {
				t.Errorf("Expected RateLimitRetries %d, got %d", tt.expectedZoom.RateLimitRetries, config.Zoom.RateLimitRetries)
			}
			if config.Zoom.RateLimitBackoffMS != tt.expectedZoom.RateLimitBackoffMS {
				t.Errorf("Expected RateLimitBackoffMS %d, got %d", tt.expectedZoom.RateLimitBackoffMS, config.Zoom.RateLimitBackoffMS)
			}

			if config.Drive.Enabled != tt.expectedDrive.Enabled {
				t.Errorf("Expected Drive Enabled %t, got %t", tt.expectedDrive.Enabled, config.Drive.Enabled)
			}
			if config.Drive.ClientID != tt.expectedDrive.ClientID {
				t.Errorf("Expected Drive ClientID %s, got %s", tt.expectedDrive.ClientID, config.Drive.ClientID)
			}
			if config.Drive.RootFolderID != tt.expectedDrive.RootFolderID {
				t.Errorf("Expected Drive RootFolderID %s, got %s", tt.expectedDrive.RootFolderID, config.Drive.RootFolderID)
			}
			if config.Drive.SimpleUploadLimitMB != tt.expectedDrive.SimpleUploadLimitMB {
				t.Errorf("Expected SimpleUploadLimitMB %d, got %d", tt.expectedDrive.SimpleUploadLimitMB, config.Drive.SimpleUploadLimitMB)
			}
			if config.Drive.ChunkSizeMB != tt.expectedDrive.ChunkSizeMB {
				t.Errorf("Expected ChunkSizeMB %d, got %d", tt.expectedDrive.ChunkSizeMB, config.Drive.ChunkSizeMB)
			}
		})
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		shouldError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:        "missing zoom api_key",
			mutate:      func(c *Config) { c.Zoom.APIKey = "" },
			shouldError: true,
			errorMsg:    "zoom.api_key is required",
		},
		{
			name:        "missing zoom api_secret",
			mutate:      func(c *Config) { c.Zoom.APISecret = "" },
			shouldError: true,
			errorMsg:    "zoom.api_secret is required",
		},
		{
			name:        "zero rate limit retries",
			mutate:      func(c *Config) { c.Zoom.RateLimitRetries = 0 },
			shouldError: true,
			errorMsg:    "zoom.rate_limit_retries must be at least 1",
		},
		{
			name:        "postgres without dsn",
			mutate:      func(c *Config) { c.Database.Driver = "postgres" },
			shouldError: true,
			errorMsg:    "database.dsn is required for driver postgres",
		},
		{
			name:        "unknown database driver",
			mutate:      func(c *Config) { c.Database.Driver = "oracle" },
			shouldError: true,
			errorMsg:    "database.driver must be one of: sqlite, postgres, mysql",
		},
		{
			name:        "invalid timezone",
			mutate:      func(c *Config) { c.Sync.DefaultTimezone = "Mars/Olympus" },
			shouldError: true,
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			shouldError: true,
			errorMsg:    "logging.level must be one of: debug, info, warn, error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)
			err := config.Validate()

			if tt.shouldError {
				if err == nil {
					t.Errorf("Expected error, but got none")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Expected error message %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
zoom:
  api_key: "k"
  api_secret: "s"
`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if config.Database.Driver != "sqlite" {
		t.Errorf("Expected default driver sqlite, got %s", config.Database.Driver)
	}
	if config.Database.Path != "./zoom-to-moodle.db" {
		t.Errorf("Expected default database path, got %s", config.Database.Path)
	}
	if config.Sync.DefaultTimezone != "America/Sao_Paulo" {
		t.Errorf("Expected default timezone America/Sao_Paulo, got %s", config.Sync.DefaultTimezone)
	}
	if config.Sync.MinVideoSize() != 20*1024*1024 {
		t.Errorf("Expected min video size %d, got %d", 20*1024*1024, config.Sync.MinVideoSize())
	}
	if config.Sync.Schedule != "0 * * * *" {
		t.Errorf("Expected hourly schedule, got %s", config.Sync.Schedule)
	}
	if config.Drive.SimpleUploadLimit() != 300*1024*1024 {
		t.Errorf("Expected simple upload limit %d, got %d", 300*1024*1024, config.Drive.SimpleUploadLimit())
	}
	if config.Logging.Level != "info" {
		t.Errorf("Expected default Logging Level info, got %s", config.Logging.Level)
	}
	if !config.Logging.Console {
		t.Error("Expected console logging to default to true")
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("nonexistent_config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent config file, but got none")
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ZOOM_API_KEY", "env_key")
	t.Setenv("ZOOM_API_SECRET", "env_secret")
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("DATABASE_DSN", "user:pass@/moodle")

	config := &Config{}
	config.loadFromEnvironment()

	if config.Zoom.APIKey != "env_key" {
		t.Errorf("Expected APIKey from env %s, got %s", "env_key", config.Zoom.APIKey)
	}
	if config.Zoom.APISecret != "env_secret" {
		t.Errorf("Expected APISecret from env %s, got %s", "env_secret", config.Zoom.APISecret)
	}
	if config.Database.Driver != "mysql" || config.Database.DSN != "user:pass@/moodle" {
		t.Errorf("Expected database from env, got %+v", config.Database)
	}
}

func TestDurations(t *testing.T) {
	zoom := ZoomConfig{RateLimitBackoffMS: 100, TimeoutSeconds: 30}

	if zoom.RateLimitBackoff() != 100*time.Millisecond {
		t.Errorf("Expected backoff 100ms, got %v", zoom.RateLimitBackoff())
	}
	if zoom.TimeoutDuration() != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", zoom.TimeoutDuration())
	}

	drive := DriveConfig{ChunkSizeMB: 100}
	if drive.ChunkSize() != 100*1024*1024 {
		t.Errorf("Expected chunk size %d, got %d", 100*1024*1024, drive.ChunkSize())
	}
}
