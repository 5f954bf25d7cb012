// Package tracking keeps a CSV ledger of recording files copied to Google Drive
package tracking

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Transfer results recorded in the ledger
const (
	ResultUploaded = "uploaded"
	ResultReused   = "reused"
	ResultFailed   = "failed"
)

var header = []string{
	"course", "meeting_uuid", "file_id", "file_name", "recording_size",
	"drive_link", "result", "source_deleted", "transfer_date", "processing_time_seconds",
}

// TransferEntry is one recording file handled by a Drive migration
type TransferEntry struct {
	Course         string
	MeetingUUID    string
	FileID         string
	FileName       string
	RecordingSize  int64
	DriveLink      string
	Result         string
	SourceDeleted  bool
	TransferDate   time.Time
	ProcessingTime time.Duration
}

// Tracker records transfers
type Tracker interface {
	TrackTransfer(entry TransferEntry) error
}

// CSVTracker appends transfers to a CSV file
type CSVTracker struct {
	filePath string
	mu       sync.Mutex
}

// NewCSVTracker opens the ledger at filePath, creating it and its directory
// with a header row when missing
func NewCSVTracker(filePath string) (*CSVTracker, error) {
	tracker := &CSVTracker{filePath: filePath}

	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		if err := tracker.writeHeader(); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check file: %w", err)
	}

	return tracker, nil
}

// Path returns the ledger file path
func (t *CSVTracker) Path() string {
	return t.filePath
}

// TrackTransfer appends one row
func (t *CSVTracker) TrackTransfer(entry TransferEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	file, err := os.OpenFile(t.filePath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file for append: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(record(entry)); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	writer.Flush()
	return writer.Error()
}

func (t *CSVTracker) writeHeader() error {
	file, err := os.Create(t.filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	writer.Flush()
	return writer.Error()
}

func record(entry TransferEntry) []string {
	return []string{
		entry.Course,
		entry.MeetingUUID,
		entry.FileID,
		entry.FileName,
		strconv.FormatInt(entry.RecordingSize, 10),
		entry.DriveLink,
		entry.Result,
		strconv.FormatBool(entry.SourceDeleted),
		entry.TransferDate.UTC().Format(time.RFC3339),
		strconv.FormatInt(int64(entry.ProcessingTime.Seconds()), 10),
	}
}

// NopTracker discards transfers
type NopTracker struct{}

// TrackTransfer does nothing
func (NopTracker) TrackTransfer(TransferEntry) error { return nil }
