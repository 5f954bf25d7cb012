package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/curtbushko/zoom-to-moodle/internal/config"
)

var (
	// Version information - will be set during build
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	verbose    bool
	dryRun     bool
)

const defaultConfigPath = "config.yaml"

// buildRootCommand creates and configures the root command
func buildRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zoom-to-moodle",
		Short: "Link Zoom cloud recordings to Moodle course pages",
		Long: `zoom-to-moodle links Zoom cloud recordings to the Moodle course pages
of the meetings they belong to.

This tool helps you:
- Append new class recordings to each course page on a schedule
- Move recordings to Google Drive and point the pages at the copies
- Import meeting participants and log who watched a recording
- Manage the page to meeting links and browse the audit log`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			configPath := resolveConfigPath()

			if _, err := config.LoadConfig(configPath); err != nil {
				cmd.Printf("⚠️  Configuration Issue Detected\n\n")

				if strings.Contains(err.Error(), "failed to read config file") {
					cmd.Printf("Configuration file '%s' not found.\n\n", configPath)
					cmd.Printf("To get started:\n")
					cmd.Printf("1. Run 'zoom-to-moodle config' to see configuration structure\n")
					cmd.Printf("2. Copy config.example.yaml to config.yaml\n")
					cmd.Printf("3. Edit config.yaml with your Zoom credentials and database\n")
					cmd.Printf("4. Run 'zoom-to-moodle sync' to link new recordings\n\n")
				} else {
					cmd.Printf("Configuration error: %v\n\n", err)
					cmd.Printf("To fix this:\n")
					cmd.Printf("1. Run 'zoom-to-moodle config' to see the correct configuration structure\n")
					cmd.Printf("2. Check your config file for syntax errors or missing required fields\n\n")
				}

				if os.Getenv("ZOOM_API_KEY") != "" && os.Getenv("ZOOM_API_SECRET") != "" {
					cmd.Printf("✅ Zoom credentials found in environment variables.\n\n")
				} else {
					cmd.Printf("💡 Zoom credentials may also be set in the environment:\n")
					cmd.Printf("   export ZOOM_API_KEY='your-api-key'\n")
					cmd.Printf("   export ZOOM_API_SECRET='your-api-secret'\n\n")
				}

				cmd.Printf("For detailed help: zoom-to-moodle config\n")
				cmd.Printf("For general usage: zoom-to-moodle --help\n")
				return
			}

			cmd.Printf("Configuration '%s' is valid. Run 'zoom-to-moodle commands' to list the operations.\n", configPath)
		},
	}

	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
	rootCmd.AddCommand(createCommandsCommand())
	rootCmd.AddCommand(createSyncCommand())
	rootCmd.AddCommand(createMigrateCommand())
	rootCmd.AddCommand(createMigrateCourseCommand())
	rootCmd.AddCommand(createParticipantsCommand())
	rootCmd.AddCommand(createPagesCommand())
	rootCmd.AddCommand(createMeetingsCommand())
	rootCmd.AddCommand(createLogCommand())
	rootCmd.AddCommand(createDriveCommand())
	rootCmd.AddCommand(createReportCommand())
	rootCmd.AddCommand(createServeCommand())

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file path (default: config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would change without writing pages or files")

	return rootCmd
}

func resolveConfigPath() string {
	if configFile != "" {
		return configFile
	}
	return defaultConfigPath
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version, commit, and build information for zoom-to-moodle",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("zoom-to-moodle version %s\n", version)
			cmd.Printf("Commit: %s\n", commit)
			cmd.Printf("Build date: %s\n", buildDate)
		},
	}
}

// createConfigCommand creates the config help subcommand
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration file structure and examples",
		Long:  "Display the configuration file structure, environment variables and examples",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(configHelp)
		},
	}
}

const configHelp = `Configuration File Structure (config.yaml):

ZOOM API CONFIGURATION (Required):
=================================
zoom:
  api_key: "your_zoom_api_key"       # JWT app key
  api_secret: "your_zoom_api_secret" # JWT app secret
  base_url: "https://api.zoom.us/v2" # Zoom API base URL (default: https://api.zoom.us/v2)
  rate_limit_retries: 10             # Attempts for a rate limited request (default: 10)
  rate_limit_backoff_ms: 100         # Wait between rate limited attempts (default: 100)
  requests_per_second: 0             # Request pacing, 0 disables (default: 0)
  user_cache_minutes: 30             # Host lookup cache (default: 30)

DATABASE CONFIGURATION:
======================
database:
  driver: "sqlite"                   # sqlite, postgres or mysql (default: sqlite)
  path: "./zoom-to-moodle.db"        # sqlite file (default: ./zoom-to-moodle.db)
  dsn: ""                            # connection string for postgres and mysql

SYNC CONFIGURATION:
==================
sync:
  site_url: "https://moodle.example.edu" # Public Moodle URL used in page links
  min_video_size_mb: 20              # Smaller MP4 files are treated as aborted (default: 20)
  default_timezone: "America/Sao_Paulo"
  language: "en"                     # en or pt-BR (default: en)
  schedule: "0 * * * *"              # Cron schedule of serve mode (default: hourly)
  continue_on_error: false           # Keep visiting pages after a failure
  editor_user_id: 2                  # Moodle user written as the page's modifier

GOOGLE DRIVE (Optional):
=======================
drive:
  enabled: false
  client_id: "your_google_client_id"
  client_secret: "your_google_client_secret"
  redirect_url: "http://localhost:8080/oauth2/callback"
  root_folder_id: "drive_folder_id"  # Folder holding the course folders
  token_file: "./google-token.json"  # Stored OAuth2 token (default: ./google-token.json)
  simple_upload_limit_mb: 300        # Larger files use resumable uploads (default: 300)
  chunk_size_mb: 100                 # Resumable upload chunk size (default: 100)
  share_with_anyone: false           # Make copies readable by anyone with the link
  keep_zoom_copy: false              # Keep the Zoom recording after the copy
  ledger_file: ""                    # Optional CSV ledger of transferred files

SERVER (serve mode):
===================
server:
  address: ":8080"
  metrics_enabled: true
  staff_email_domains: ["school.edu"] # Viewers that see every participant

LOGGING CONFIGURATION:
=====================
logging:
  level: "info"                      # debug, info, warn, error (default: info)
  file: "./zoom-to-moodle.log"       # Optional log file
  json_format: false                 # Use JSON log format (default: false)

ACTIVE HOSTS FILTERING (Optional):
=================================
active_hosts:
  file: "./active_hosts.txt"         # One host email or Zoom user id per line
  check_enabled: true                # Enable host filtering, the file is reloaded on change

ENVIRONMENT VARIABLES:
=====================
  ZOOM_API_KEY, ZOOM_API_SECRET, ZOOM_BASE_URL
  DRIVE_CLIENT_ID, DRIVE_CLIENT_SECRET, DRIVE_ROOT_FOLDER_ID
  DATABASE_DRIVER, DATABASE_DSN
  ZOOM_TO_MOODLE_LOG_LEVEL

EXAMPLE USAGE:
=============
  zoom-to-moodle pages add --cmid 100 --meeting 81234567890
  zoom-to-moodle sync
  zoom-to-moodle sync --meeting 81234567890 --dry-run
  zoom-to-moodle drive auth
  zoom-to-moodle migrate "occurrence-uuid=="
  zoom-to-moodle participants report "occurrence-uuid==" --email ana@student.edu
  zoom-to-moodle serve
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := buildRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
