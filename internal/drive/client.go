package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/curtbushko/zoom-to-moodle/internal/config"
	"github.com/curtbushko/zoom-to-moodle/internal/download"
	"github.com/curtbushko/zoom-to-moodle/internal/logging"
	"github.com/curtbushko/zoom-to-moodle/internal/progress"
)

// Options configures a Client
type Options struct {
	BaseURL      string
	UploadURL    string
	RootFolderID string

	// SimpleUploadLimit is the largest size sent in one multipart request
	SimpleUploadLimit int64
	ChunkSize         int64

	Fetcher  download.Fetcher
	Logger   logging.Logger
	Progress progress.Callback
}

// Client talks to the Drive v3 REST API
type Client struct {
	httpClient *http.Client
	opts       Options
	logger     logging.Logger
}

const (
	defaultSimpleUploadLimit = 300 * 1024 * 1024
	defaultChunkSize         = 100 * 1024 * 1024
)

// NewClient creates a client. httpClient must already authorize requests.
func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UploadURL == "" {
		opts.UploadURL = DefaultUploadURL
	}
	if opts.RootFolderID == "" {
		opts.RootFolderID = "root"
	}
	if opts.SimpleUploadLimit <= 0 {
		opts.SimpleUploadLimit = defaultSimpleUploadLimit
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.Fetcher == nil {
		opts.Fetcher = download.NewFetcher(download.DefaultConfig(), nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	opts.UploadURL = strings.TrimSuffix(opts.UploadURL, "/")

	return &Client{httpClient: httpClient, opts: opts, logger: logger}
}

// NewClientFromConfig builds a client authorized by the stored token
func NewClientFromConfig(ctx context.Context, cfg config.DriveConfig, auth *Authenticator, fetcher download.Fetcher, callback progress.Callback) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("Google Drive integration is disabled in configuration")
	}

	httpClient, err := auth.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}

	return NewClient(httpClient, Options{
		BaseURL:           cfg.BaseURL,
		UploadURL:         cfg.UploadURL,
		RootFolderID:      cfg.RootFolderID,
		SimpleUploadLimit: cfg.SimpleUploadLimit(),
		ChunkSize:         cfg.ChunkSize(),
		Fetcher:           fetcher,
		Progress:          callback,
	}), nil
}

// ResolveFolder walks from the root folder through segments. Empty segments
// are skipped and missing folders are created.
func (c *Client) ResolveFolder(ctx context.Context, segments []string) (*File, error) {
	current := &File{ID: c.opts.RootFolderID, MimeType: FolderMimeType}

	for _, segment := range segments {
		name := strings.TrimSpace(segment)
		if name == "" {
			continue
		}

		folder, err := c.findFolder(ctx, name, current.ID)
		if err != nil {
			return nil, err
		}
		if folder == nil {
			folder, err = c.CreateFile(ctx, FileMetadata{
				Name:     name,
				MimeType: FolderMimeType,
				Parents:  []string{current.ID},
			}, "")
			if err != nil {
				return nil, fmt.Errorf("failed to create folder %q: %w", name, err)
			}
			c.logger.Info("Created Drive folder %s (%s)", name, folder.ID)
		}
		current = folder
	}

	return current, nil
}

func (c *Client) findFolder(ctx context.Context, name, parentID string) (*File, error) {
	query := fmt.Sprintf("mimeType = '%s' and name = %s and %s in parents and trashed = false",
		FolderMimeType, quote(name), quote(parentID))

	files, err := c.list(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find folder %q: %w", name, err)
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

// ListFiles returns every non-trashed item directly inside folderID
func (c *Client) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	files, err := c.list(ctx, fmt.Sprintf("%s in parents and trashed = false", quote(folderID)))
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}
	return files, nil
}

func (c *Client) list(ctx context.Context, query string) ([]File, error) {
	var files []File
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("q", query)
		params.Set("fields", "nextPageToken, files("+fileFields+")")
		params.Set("pageSize", fmt.Sprintf("%d", listPageSize))
		params.Set("supportsAllDrives", "true")
		params.Set("includeItemsFromAllDrives", "true")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page FileList
		if err := c.doJSON(ctx, http.MethodGet, c.opts.BaseURL+"/files?"+params.Encode(), nil, &page); err != nil {
			return nil, err
		}
		files = append(files, page.Files...)

		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreateFile creates a metadata-only object when sourceURL is empty. Otherwise
// the media is copied from sourceURL: in one multipart request up to the simple
// upload limit, through a resumable session above it.
func (c *Client) CreateFile(ctx context.Context, meta FileMetadata, sourceURL string) (*File, error) {
	if strings.TrimSpace(meta.Name) == "" {
		return nil, fmt.Errorf("file name cannot be empty")
	}

	if sourceURL == "" {
		var file File
		endpoint := c.opts.BaseURL + "/files?" + fieldsQuery()
		if err := c.doJSON(ctx, http.MethodPost, endpoint, meta, &file); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", meta.Name, err)
		}
		return &file, nil
	}

	size, err := c.opts.Fetcher.Probe(ctx, sourceURL)
	if err != nil || size == 0 {
		if err != nil {
			c.logger.Warn("Size probe of %s failed, using declared size %d: %v", meta.Name, meta.Size, err)
		}
		size = meta.Size
	}

	if size <= c.opts.SimpleUploadLimit {
		return c.simpleUpload(ctx, meta, sourceURL, size)
	}
	return c.resumableUpload(ctx, meta, sourceURL, size)
}

// ShareWithAnyone grants reader access to anyone with the link
func (c *Client) ShareWithAnyone(ctx context.Context, fileID string) error {
	endpoint := fmt.Sprintf("%s/files/%s/permissions?supportsAllDrives=true", c.opts.BaseURL, url.PathEscape(fileID))
	permission := Permission{Role: RoleReader, Type: TypeAnyone}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, permission, nil); err != nil {
		return fmt.Errorf("failed to share %s: %w", fileID, err)
	}
	return nil
}

func fieldsQuery() string {
	params := url.Values{}
	params.Set("fields", fileFields)
	params.Set("supportsAllDrives", "true")
	return params.Encode()
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseError(statusCode int, body []byte) error {
	driveErr := &DriveError{
		StatusCode: statusCode,
		Message:    strings.TrimSpace(string(body)),
		Retryable:  statusCode >= 500 || statusCode == http.StatusTooManyRequests,
	}

	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		driveErr.Message = errResp.Error.Message
		if len(errResp.Error.Errors) > 0 {
			driveErr.Reason = errResp.Error.Errors[0].Reason
		}
	}
	if driveErr.Message == "" {
		driveErr.Message = http.StatusText(statusCode)
	}
	return driveErr
}
