// Package download fetches recording media from Zoom for re-hosting, either
// into memory or into a scoped temporary file
package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/curtbushko/zoom-to-moodle/internal/progress"
)

// Config holds fetch settings
type Config struct {
	Timeout       time.Duration
	UserAgent     string
	RetryAttempts int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	BufferSize    int
	TempDir       string
}

// DefaultConfig returns the settings used when none are supplied
func DefaultConfig() Config {
	return Config{
		Timeout:       0, // media downloads can run for a long time
		UserAgent:     "zoom-to-moodle/1.0",
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
		BufferSize:    64 * 1024,
		TempDir:       os.TempDir(),
	}
}

// Fetcher downloads media by URL
type Fetcher interface {
	// Probe returns the Content-Length reported by a HEAD request, 0 when unknown
	Probe(ctx context.Context, url string) (int64, error)
	// FetchBytes downloads the whole body into memory
	FetchBytes(ctx context.Context, url string, tracker *progress.Tracker) ([]byte, error)
	// FetchToFile streams the body to a new temporary file. The caller removes it.
	FetchToFile(ctx context.Context, url string, tracker *progress.Tracker) (*TempFile, error)
}

// TempFile is a downloaded file on local disk
type TempFile struct {
	Path string
	Size int64
}

// Remove deletes the file; a missing file is not an error
func (f *TempFile) Remove() error {
	if f == nil || f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp file %s: %w", f.Path, err)
	}
	return nil
}

type httpFetcher struct {
	config Config
	client *http.Client
}

// NewFetcher creates a fetcher. Zero config fields take the DefaultConfig values.
func NewFetcher(cfg Config, client *http.Client) Fetcher {
	defaults := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaults.RetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = defaults.MaxRetryDelay
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.TempDir == "" {
		cfg.TempDir = defaults.TempDir
	}

	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}

	return &httpFetcher{config: cfg, client: client}
}

func (f *httpFetcher) Probe(ctx context.Context, url string) (int64, error) {
	var size int64
	err := retry(ctx, f.config, func() error {
		resp, err := f.do(ctx, http.MethodHead, url)
		if err != nil {
			return err
		}
		resp.Body.Close()
		size = resp.ContentLength
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to probe %s: %w", url, err)
	}
	if size < 0 {
		size = 0
	}
	return size, nil
}

func (f *httpFetcher) FetchBytes(ctx context.Context, url string, tracker *progress.Tracker) ([]byte, error) {
	var buf bytes.Buffer
	err := retry(ctx, f.config, func() error {
		buf.Reset()
		return f.fetch(ctx, url, &buf, tracker)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	return buf.Bytes(), nil
}

func (f *httpFetcher) FetchToFile(ctx context.Context, url string, tracker *progress.Tracker) (*TempFile, error) {
	if err := os.MkdirAll(f.config.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	path := filepath.Join(f.config.TempDir, "zoom-to-moodle-"+uuid.NewString()+".part")

	err := retry(ctx, f.config, func() error {
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		if err := f.fetch(ctx, url, file, tracker); err != nil {
			file.Close()
			return err
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return fmt.Errorf("failed to sync temp file: %w", err)
		}
		return file.Close()
	})
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to stat temp file: %w", err)
	}
	return &TempFile{Path: path, Size: info.Size()}, nil
}

func (f *httpFetcher) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: url}
	}
	return resp, nil
}

func (f *httpFetcher) fetch(ctx context.Context, url string, w io.Writer, tracker *progress.Tracker) error {
	resp, err := f.do(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	counter := &countingWriter{w: w, tracker: tracker}
	buffer := make([]byte, f.config.BufferSize)
	if _, err := io.CopyBuffer(counter, resp.Body, buffer); err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

type countingWriter struct {
	w       io.Writer
	written int64
	tracker *progress.Tracker
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	c.tracker.Advance(progress.PhaseDownloading, c.written)
	return n, err
}
