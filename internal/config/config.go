// Package config provides configuration management for the zoom-to-moodle application
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// ZoomConfig holds Zoom API credentials and request pacing settings
type ZoomConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	APISecret string `yaml:"api_secret" json:"api_secret"`
	BaseURL   string `yaml:"base_url" json:"base_url"`

	// RateLimitRetries is how many times a rate limited request is attempted
	RateLimitRetries int `yaml:"rate_limit_retries" json:"rate_limit_retries"`
	// RateLimitBackoffMS is the fixed wait between rate limited attempts
	RateLimitBackoffMS int `yaml:"rate_limit_backoff_ms" json:"rate_limit_backoff_ms"`
	// RequestsPerSecond paces outgoing requests, 0 disables pacing
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" json:"timeout_seconds"`
	// UserCacheMinutes controls how long host lookups are cached
	UserCacheMinutes int `yaml:"user_cache_minutes" json:"user_cache_minutes"`
}

// RateLimitBackoff returns the rate limit backoff as a time.Duration
func (z ZoomConfig) RateLimitBackoff() time.Duration {
	return time.Duration(z.RateLimitBackoffMS) * time.Millisecond
}

// TimeoutDuration returns the request timeout as a time.Duration
func (z ZoomConfig) TimeoutDuration() time.Duration {
	return time.Duration(z.TimeoutSeconds) * time.Second
}

// DriveConfig holds Google Drive OAuth2 and upload settings
type DriveConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	RedirectURL  string `yaml:"redirect_url" json:"redirect_url"`
	RootFolderID string `yaml:"root_folder_id" json:"root_folder_id"`
	TokenFile    string `yaml:"token_file" json:"token_file"`
	BaseURL      string `yaml:"base_url" json:"base_url"`
	UploadURL    string `yaml:"upload_url" json:"upload_url"`
	TempDir      string `yaml:"temp_dir" json:"temp_dir"`

	// SimpleUploadLimitMB is the largest file sent in a single multipart request
	SimpleUploadLimitMB int  `yaml:"simple_upload_limit_mb" json:"simple_upload_limit_mb"`
	ChunkSizeMB         int  `yaml:"chunk_size_mb" json:"chunk_size_mb"`
	ShareWithAnyone     bool `yaml:"share_with_anyone" json:"share_with_anyone"`
	// KeepZoomCopy leaves the source recording on Zoom after it is copied
	KeepZoomCopy bool `yaml:"keep_zoom_copy" json:"keep_zoom_copy"`
	// LedgerFile is an optional CSV file receiving one row per transferred file
	LedgerFile string `yaml:"ledger_file" json:"ledger_file"`
}

// SimpleUploadLimit returns the simple upload threshold in bytes
func (d DriveConfig) SimpleUploadLimit() int64 {
	return int64(d.SimpleUploadLimitMB) * 1024 * 1024
}

// ChunkSize returns the resumable upload chunk size in bytes
func (d DriveConfig) ChunkSize() int64 {
	return int64(d.ChunkSizeMB) * 1024 * 1024
}

// DatabaseConfig selects the content store driver
type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
	Path   string `yaml:"path" json:"path"`
}

// SyncConfig holds reconciliation settings
type SyncConfig struct {
	// MinVideoSizeMB is the size below which an MP4 is treated as an aborted recording
	MinVideoSizeMB  int    `yaml:"min_video_size_mb" json:"min_video_size_mb"`
	DefaultTimezone string `yaml:"default_timezone" json:"default_timezone"`
	Language        string `yaml:"language" json:"language"`
	// SiteURL is the public base URL used for page and participants links
	SiteURL         string `yaml:"site_url" json:"site_url"`
	Schedule        string `yaml:"schedule" json:"schedule"`
	ContinueOnError bool   `yaml:"continue_on_error" json:"continue_on_error"`
	// EditorUserID is written as the page's modifier
	EditorUserID int64 `yaml:"editor_user_id" json:"editor_user_id"`
}

// MinVideoSize returns the minimum qualifying video size in bytes
func (s SyncConfig) MinVideoSize() int64 {
	return int64(s.MinVideoSizeMB) * 1024 * 1024
}

// ServerConfig holds HTTP server settings for serve mode
type ServerConfig struct {
	Address        string `yaml:"address" json:"address"`
	MetricsEnabled bool   `yaml:"metrics_enabled" json:"metrics_enabled"`
	// StaffEmailDomains may see every participant in a report
	StaffEmailDomains []string `yaml:"staff_email_domains" json:"staff_email_domains"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	Console    bool   `yaml:"console" json:"console"`
	JSONFormat bool   `yaml:"json_format" json:"json_format"`
}

// ActiveHostsConfig holds the optional list of hosts the batch driver processes
type ActiveHostsConfig struct {
	File         string `yaml:"file" json:"file"`
	CheckEnabled bool   `yaml:"check_enabled" json:"check_enabled"`
}

// Config represents the complete application configuration
type Config struct {
	Zoom        ZoomConfig        `yaml:"zoom" json:"zoom"`
	Drive       DriveConfig       `yaml:"drive" json:"drive"`
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	Sync        SyncConfig        `yaml:"sync" json:"sync"`
	Server      ServerConfig      `yaml:"server" json:"server"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	ActiveHosts ActiveHostsConfig `yaml:"active_hosts" json:"active_hosts"`
}

// LoadConfig loads configuration from a YAML file with defaults and environment variable overrides
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	if err := config.loadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config from file: %w", err)
	}

	config.setDefaults()
	config.loadFromEnvironment()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func (c *Config) loadFromFile(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// setDefaults applies default values for missing configuration
func (c *Config) setDefaults() {
	if c.Zoom.BaseURL == "" {
		c.Zoom.BaseURL = "https://api.zoom.us/v2"
	}
	if c.Zoom.RateLimitRetries == 0 {
		c.Zoom.RateLimitRetries = 10
	}
	if c.Zoom.RateLimitBackoffMS == 0 {
		c.Zoom.RateLimitBackoffMS = 100
	}
	if c.Zoom.TimeoutSeconds == 0 {
		c.Zoom.TimeoutSeconds = 60
	}
	if c.Zoom.UserCacheMinutes == 0 {
		c.Zoom.UserCacheMinutes = 30
	}

	if c.Drive.BaseURL == "" {
		c.Drive.BaseURL = "https://www.googleapis.com/drive/v3"
	}
	if c.Drive.UploadURL == "" {
		c.Drive.UploadURL = "https://www.googleapis.com/upload/drive/v3"
	}
	if c.Drive.TokenFile == "" {
		c.Drive.TokenFile = "./google-token.json"
	}
	if c.Drive.SimpleUploadLimitMB == 0 {
		c.Drive.SimpleUploadLimitMB = 300
	}
	if c.Drive.ChunkSizeMB == 0 {
		c.Drive.ChunkSizeMB = 100
	}
	if c.Drive.TempDir == "" {
		c.Drive.TempDir = os.TempDir()
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" && c.Database.DSN == "" {
		c.Database.Path = "./zoom-to-moodle.db"
	}

	if c.Sync.MinVideoSizeMB == 0 {
		c.Sync.MinVideoSizeMB = 20
	}
	if c.Sync.DefaultTimezone == "" {
		c.Sync.DefaultTimezone = "America/Sao_Paulo"
	}
	if c.Sync.Language == "" {
		c.Sync.Language = "en"
	}
	if c.Sync.Schedule == "" {
		c.Sync.Schedule = "0 * * * *"
	}

	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	// Console defaults to true; a YAML value of false is overwritten here, use
	// logging.file alone to log to a file only
	c.Logging.Console = true
}

// loadFromEnvironment overrides configuration with environment variables
func (c *Config) loadFromEnvironment() {
	if val := os.Getenv("ZOOM_API_KEY"); val != "" {
		c.Zoom.APIKey = val
	}
	if val := os.Getenv("ZOOM_API_SECRET"); val != "" {
		c.Zoom.APISecret = val
	}
	if val := os.Getenv("ZOOM_BASE_URL"); val != "" {
		c.Zoom.BaseURL = val
	}

	if val := os.Getenv("DRIVE_CLIENT_ID"); val != "" {
		c.Drive.ClientID = val
	}
	if val := os.Getenv("DRIVE_CLIENT_SECRET"); val != "" {
		c.Drive.ClientSecret = val
	}
	if val := os.Getenv("DRIVE_ROOT_FOLDER_ID"); val != "" {
		c.Drive.RootFolderID = val
	}

	if val := os.Getenv("DATABASE_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DATABASE_DSN"); val != "" {
		c.Database.DSN = val
	}

	if val := os.Getenv("ZOOM_TO_MOODLE_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	if c.Zoom.APIKey == "" {
		return fmt.Errorf("zoom.api_key is required")
	}
	if c.Zoom.APISecret == "" {
		return fmt.Errorf("zoom.api_secret is required")
	}
	if c.Zoom.RateLimitRetries < 1 {
		return fmt.Errorf("zoom.rate_limit_retries must be at least 1")
	}
	if c.Zoom.RequestsPerSecond < 0 {
		return fmt.Errorf("zoom.requests_per_second must be >= 0")
	}

	if c.Drive.Enabled {
		if c.Drive.ClientID == "" || c.Drive.ClientSecret == "" {
			return fmt.Errorf("drive.client_id and drive.client_secret are required when drive is enabled")
		}
		if c.Drive.RootFolderID == "" {
			return fmt.Errorf("drive.root_folder_id is required when drive is enabled")
		}
		if c.Drive.ChunkSizeMB <= 0 || c.Drive.SimpleUploadLimitMB <= 0 {
			return fmt.Errorf("drive.chunk_size_mb and drive.simple_upload_limit_mb must be greater than 0")
		}
	}

	switch c.Database.Driver {
	case "sqlite":
	case "postgres", "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}

	if _, err := time.LoadLocation(c.Sync.DefaultTimezone); err != nil {
		return fmt.Errorf("sync.default_timezone is invalid: %w", err)
	}
	if c.Sync.MinVideoSizeMB < 0 {
		return fmt.Errorf("sync.min_video_size_mb must be >= 0")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}

// GetDriveConfig returns the Drive configuration
func (c *Config) GetDriveConfig() DriveConfig {
	return c.Drive
}
