package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"

	"github.com/curtbushko/zoom-to-moodle/internal/config"
	"github.com/curtbushko/zoom-to-moodle/internal/download"
	"github.com/curtbushko/zoom-to-moodle/internal/drive"
	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/logging"
	"github.com/curtbushko/zoom-to-moodle/internal/participants"
	"github.com/curtbushko/zoom-to-moodle/internal/processor"
	"github.com/curtbushko/zoom-to-moodle/internal/progress"
	"github.com/curtbushko/zoom-to-moodle/internal/reconcile"
	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
	"github.com/curtbushko/zoom-to-moodle/internal/tracking"
	"github.com/curtbushko/zoom-to-moodle/internal/users"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
)

const progressInterval = 10 * time.Second

// app holds the components shared by the commands
type app struct {
	cfg        *config.Config
	logger     logging.Logger
	translator *i18n.Translator

	store      *store.Store
	zoomAuth   zoom.Authenticator
	zoom       *zoom.ZoomClient
	recordings *recordings.Repository
	attendance *participants.Tracker
	engine     *reconcile.Engine
	processor  *processor.Processor
	hosts      users.ActiveHostManager
	driveAuth  *drive.Authenticator

	closers []func() error
}

// loadApp reads the configuration and wires every component
func loadApp() (*app, error) {
	cfg, err := config.LoadConfig(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return newApp(cfg)
}

func newApp(cfg *config.Config) (*app, error) {
	if err := logging.InitializeLogging(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := logging.GetDefaultLogger()

	a := &app{
		cfg:        cfg,
		logger:     logger,
		translator: i18n.New(cfg.Sync.Language),
		driveAuth:  drive.NewAuthenticator(cfg.Drive),
	}
	a.closers = append(a.closers, logger.Close)

	db, err := store.Open(cfg.Database)
	if err != nil {
		a.Close()
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := store.AutoMigrate(db); err != nil {
		a.Close()
		return nil, err
	}
	a.store = store.New(db)

	a.zoomAuth = zoom.NewJWTAuth(cfg.Zoom)
	retryClient := zoom.NewRetryHTTPClient(zoom.HTTPClientConfigFromZoomConfig(cfg.Zoom))
	a.zoom = zoom.NewZoomClient(zoom.NewAuthenticatedRetryClient(retryClient, a.zoomAuth), cfg.Zoom.BaseURL)
	a.zoom.SetLogger(logger)
	a.zoom.SetErrorRecorder(a.store)

	a.recordings, err = recordings.NewRepository(a.zoom, recordings.Options{
		Translator:      a.translator,
		DefaultTimezone: cfg.Sync.DefaultTimezone,
		UserCacheTTL:    time.Duration(cfg.Zoom.UserCacheMinutes) * time.Minute,
		Logger:          logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.attendance = participants.NewTracker(a.store, a.zoom, a.recordings, participants.Options{
		Translator: a.translator,
		Logger:     logger,
	})

	a.engine = reconcile.NewEngine(a.store, a.recordings, a.attendance, reconcile.Options{
		Translator:   a.translator,
		Logger:       logger,
		SiteURL:      cfg.Sync.SiteURL,
		MinVideoSize: cfg.Sync.MinVideoSize(),
		EditorUserID: cfg.Sync.EditorUserID,
		DryRun:       dryRun,
	})

	hostConfig := users.ActiveHostConfig{Logger: logger}
	if cfg.ActiveHosts.CheckEnabled {
		hostConfig.FilePath = cfg.ActiveHosts.File
		hostConfig.WatchFile = true
	}
	a.hosts, err = users.NewActiveHostManager(hostConfig)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.hosts.Close)

	a.processor = processor.NewProcessor(a.store, a.recordings, a.engine, processor.ProcessorConfig{
		ContinueOnError: cfg.Sync.ContinueOnError,
		Hosts:           a.hosts,
		Logger:          logger,
	})
	a.engine.SetBatch(func(ctx context.Context) ([]reconcile.Result, error) {
		summary, err := a.processor.RunOnce(ctx)
		if summary == nil {
			return nil, err
		}
		return summary.Results(), err
	})

	return a, nil
}

// migrator builds the Drive migration flow. It needs a stored Drive token.
func (a *app) migrator(ctx context.Context) (*reconcile.Migrator, error) {
	fetchConfig := download.DefaultConfig()
	fetchConfig.TempDir = a.cfg.Drive.TempDir
	fetcher := download.NewFetcher(fetchConfig, nil)

	callback := progress.NewLoggingReporter(a.logger, progressInterval).Callback()
	if verbose {
		callback = progress.Multi(callback, progress.NewBarReporter(os.Stderr, 40).Report)
	}

	client, err := drive.NewClientFromConfig(ctx, a.cfg.Drive, a.driveAuth, fetcher, callback)
	if err != nil {
		return nil, err
	}

	var ledger tracking.Tracker = tracking.NopTracker{}
	if a.cfg.Drive.LedgerFile != "" {
		csvLedger, err := tracking.NewCSVTracker(a.cfg.Drive.LedgerFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open transfer ledger: %w", err)
		}
		ledger = csvLedger
	}

	return reconcile.NewMigrator(a.store, a.recordings, client, reconcile.MigrationOptions{
		Translator:      a.translator,
		Logger:          a.logger,
		SiteURL:         a.cfg.Sync.SiteURL,
		EditorUserID:    a.cfg.Sync.EditorUserID,
		KeepZoomCopy:    a.cfg.Drive.KeepZoomCopy,
		ShareWithAnyone: a.cfg.Drive.ShareWithAnyone,
		SourceAuth:      a.zoomAuth,
		Ledger:          ledger,
		DryRun:          dryRun,
	}), nil
}

// Close releases everything opened by newApp, last opened first
func (a *app) Close() error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, a.closers[i]())
	}
	a.closers = nil
	return errs
}
