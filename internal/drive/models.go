// Package drive provides Google Drive API client functionality for re-hosting
// Zoom recordings
package drive

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Storage defines the Drive operations the migration flow needs
type Storage interface {
	// ResolveFolder walks from the root folder through segments, creating
	// missing folders, and returns the last one
	ResolveFolder(ctx context.Context, segments []string) (*File, error)

	// ListFiles returns every non-trashed item directly inside a folder
	ListFiles(ctx context.Context, folderID string) ([]File, error)

	// CreateFile creates a metadata-only object when sourceURL is empty, else
	// copies the media at sourceURL into a new file
	CreateFile(ctx context.Context, meta FileMetadata, sourceURL string) (*File, error)

	// ShareWithAnyone grants reader access to anyone with the link
	ShareWithAnyone(ctx context.Context, fileID string) error
}

// File is a Drive file or folder
type File struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	MimeType    string   `json:"mimeType"`
	Parents     []string `json:"parents,omitempty"`
	WebViewLink string   `json:"webViewLink,omitempty"`
	Size        int64    `json:"size,string,omitempty"`
}

// IsFolder reports whether the item is a folder
func (f *File) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// FileMetadata describes a file to create. Size is the provider-declared size,
// used when the source does not report a Content-Length.
type FileMetadata struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
	Size     int64    `json:"-"`
}

// FileList is one page of a files.list response
type FileList struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// Permission is a files.permissions entry
type Permission struct {
	ID   string `json:"id,omitempty"`
	Role string `json:"role"`
	Type string `json:"type"`
}

// ErrorResponse is the error envelope returned by the Drive API
type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Domain  string `json:"domain"`
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

// DriveError is a non-success response from the Drive API
type DriveError struct {
	StatusCode int
	Message    string
	Reason     string
	Retryable  bool
}

func (e *DriveError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("Drive API error: %s (status: %d, reason: %s)", e.Message, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("Drive API error: %s (status: %d)", e.Message, e.StatusCode)
}

// IsRetryable returns true if the error is retryable
func (e *DriveError) IsRetryable() bool {
	return e.Retryable
}

// ErrNoToken is returned when no OAuth2 token has been stored yet
var ErrNoToken = errors.New("no Google Drive token stored, run the drive auth flow first")

// IsNotFound reports whether err is a Drive 404
func IsNotFound(err error) bool {
	var driveErr *DriveError
	return errors.As(err, &driveErr) && driveErr.StatusCode == 404
}

const (
	DefaultBaseURL   = "https://www.googleapis.com/drive/v3"
	DefaultUploadURL = "https://www.googleapis.com/upload/drive/v3"

	// Scope grants full Drive access, needed to create folders under a shared root
	Scope = "https://www.googleapis.com/auth/drive"

	FolderMimeType = "application/vnd.google-apps.folder"

	fileFields = "id, name, mimeType, parents, webViewLink, size"

	RoleReader   = "reader"
	TypeAnyone   = "anyone"
	listPageSize = 1000
)

// quote escapes a value for a Drive query string literal
func quote(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(value, "'", `\'`) + "'"
}
