package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"regexp"
	"strconv"

	"github.com/curtbushko/zoom-to-moodle/internal/progress"
)

const defaultMediaType = "application/octet-stream"

// simpleUpload downloads the media into memory and sends metadata and content
// in one multipart/related request
func (c *Client) simpleUpload(ctx context.Context, meta FileMetadata, sourceURL string, size int64) (*File, error) {
	tracker := progress.NewTracker(meta.Name, size, c.opts.Progress)

	data, err := c.opts.Fetcher.FetchBytes(ctx, sourceURL, tracker)
	if err != nil {
		tracker.Finish(err)
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata part: %w", err)
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mediaType(meta))
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create media part: %w", err)
	}
	if _, err := mediaPart.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write media part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	endpoint := c.opts.UploadURL + "/files?uploadType=multipart&" + fieldsQuery()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracker.Finish(err)
		return nil, fmt.Errorf("upload of %s failed: %w", meta.Name, err)
	}
	defer resp.Body.Close()

	var file File
	if err := decodeResponse(resp, &file); err != nil {
		tracker.Finish(err)
		return nil, fmt.Errorf("upload of %s failed: %w", meta.Name, err)
	}

	tracker.Advance(progress.PhaseUploading, int64(len(data)))
	tracker.Finish(nil)
	c.logger.Info("Uploaded %s to Drive (%s, %d bytes)", meta.Name, file.ID, len(data))
	return &file, nil
}

// resumableUpload streams the media to a temporary file and feeds it to a
// resumable upload session in fixed-size chunks. The temp file is removed
// whatever the outcome.
func (c *Client) resumableUpload(ctx context.Context, meta FileMetadata, sourceURL string, size int64) (*File, error) {
	tracker := progress.NewTracker(meta.Name, size, c.opts.Progress)

	temp, err := c.opts.Fetcher.FetchToFile(ctx, sourceURL, tracker)
	if err != nil {
		tracker.Finish(err)
		return nil, err
	}
	defer func() {
		if err := temp.Remove(); err != nil {
			c.logger.Warn("%v", err)
		}
	}()

	file, err := os.Open(temp.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open temp file: %w", err)
	}
	defer file.Close()

	sessionURL, err := c.startSession(ctx, meta, temp.Size)
	if err != nil {
		tracker.Finish(err)
		return nil, err
	}

	total := temp.Size
	buffer := make([]byte, c.opts.ChunkSize)
	var offset int64

	for {
		n, readErr := io.ReadFull(file, buffer)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			tracker.Finish(readErr)
			return nil, fmt.Errorf("failed to read temp file: %w", readErr)
		}
		if n == 0 && total > 0 {
			err := fmt.Errorf("upload session ended before completion at offset %d of %d", offset, total)
			tracker.Finish(err)
			return nil, err
		}

		uploaded, next, err := c.uploadChunk(ctx, sessionURL, buffer[:n], offset, total)
		if err != nil {
			tracker.Finish(err)
			return nil, fmt.Errorf("failed to upload chunk at offset %d of %s: %w", offset, meta.Name, err)
		}
		tracker.Advance(progress.PhaseUploading, next)

		if uploaded != nil {
			tracker.Finish(nil)
			c.logger.Info("Uploaded %s to Drive in chunks (%s, %d bytes)", meta.Name, uploaded.ID, total)
			return uploaded, nil
		}

		if next != offset+int64(n) {
			if _, err := file.Seek(next, io.SeekStart); err != nil {
				return nil, fmt.Errorf("failed to seek temp file: %w", err)
			}
		}
		offset = next
	}
}

func (c *Client) startSession(ctx context.Context, meta FileMetadata, size int64) (string, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	endpoint := c.opts.UploadURL + "/files?uploadType=resumable&" + fieldsQuery()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", mediaType(meta))
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to start upload session: %w", err)
	}
	defer resp.Body.Close()

	if err := decodeResponse(resp, nil); err != nil {
		return "", fmt.Errorf("failed to start upload session: %w", err)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("upload session response has no Location header")
	}
	return location, nil
}

var rangeHeader = regexp.MustCompile(`bytes=0-(\d+)`)

// uploadChunk sends one chunk. It returns the created file once the session
// completes, else the offset the server expects next.
func (c *Client) uploadChunk(ctx context.Context, sessionURL string, chunk []byte, offset, total int64) (*File, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, bytes.NewReader(chunk))
	if err != nil {
		return nil, offset, fmt.Errorf("failed to create chunk request: %w", err)
	}
	req.ContentLength = int64(len(chunk))
	if len(chunk) > 0 {
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, total))
	} else {
		req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", total))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, offset, err
	}
	defer resp.Body.Close()

	// 308 Resume Incomplete
	if resp.StatusCode == http.StatusPermanentRedirect {
		io.Copy(io.Discard, resp.Body)
		if match := rangeHeader.FindStringSubmatch(resp.Header.Get("Range")); match != nil {
			last, err := strconv.ParseInt(match[1], 10, 64)
			if err == nil {
				return nil, last + 1, nil
			}
		}
		return nil, offset + int64(len(chunk)), nil
	}

	var file File
	if err := decodeResponse(resp, &file); err != nil {
		return nil, offset, err
	}
	return &file, total, nil
}

func mediaType(meta FileMetadata) string {
	if meta.MimeType != "" {
		return meta.MimeType
	}
	return defaultMediaType
}
