package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/curtbushko/zoom-to-moodle/internal/content"
	"github.com/curtbushko/zoom-to-moodle/internal/directory"
	"github.com/curtbushko/zoom-to-moodle/internal/drive"
	"github.com/curtbushko/zoom-to-moodle/internal/filename"
	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/logging"
	"github.com/curtbushko/zoom-to-moodle/internal/metrics"
	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
	"github.com/curtbushko/zoom-to-moodle/internal/tracking"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
)

// AuditSendToDrive is the audit log source of Drive migrations
const AuditSendToDrive = "reconcile.send_recordings_to_drive"

// FileTransfer reports what happened to one recording file
type FileTransfer struct {
	FileID        string
	FileType      string
	Name          string
	ViewLink      string
	Uploaded      bool
	Reused        bool
	LinkReplaced  bool
	SourceDeleted bool
	Err           error
}

// MigrationOptions configures a Migrator
type MigrationOptions struct {
	Translator   *i18n.Translator
	Logger       logging.Logger
	SiteURL      string
	EditorUserID int64
	// KeepZoomCopy skips deleting the source file after the copy
	KeepZoomCopy    bool
	ShareWithAnyone bool
	// SourceAuth signs Zoom download URLs, nil leaves them as they are
	SourceAuth zoom.Authenticator
	Ledger     tracking.Tracker
	DryRun     bool
	Now        func() time.Time
}

// CourseRequest selects the page whose linked occurrences are migrated
type CourseRequest struct {
	MeetingNumber int64
	// PageCMID, when set, must match the page linked to the meeting
	PageCMID int64
}

// Migrator copies recording files to Drive and points course pages at the copies
type Migrator struct {
	store      Store
	recordings Recordings
	storage    drive.Storage
	folders    directory.DirectoryManager
	sanitizer  filename.FileSanitizer
	translator *i18n.Translator
	logger     logging.Logger
	ledger     tracking.Tracker
	opts       MigrationOptions
	now        func() time.Time
}

// NewMigrator creates a migrator
func NewMigrator(s Store, repo Recordings, storage drive.Storage, opts MigrationOptions) *Migrator {
	if opts.Translator == nil {
		opts.Translator = i18n.New("en")
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefaultLogger()
	}
	ledger := opts.Ledger
	if ledger == nil {
		ledger = tracking.NopTracker{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	sanitizer := filename.NewFileSanitizer(filename.FileSanitizerOptions{Labeler: opts.Translator})
	return &Migrator{
		store:      s,
		recordings: repo,
		storage:    storage,
		folders:    directory.NewDirectoryManager(storage, sanitizer),
		sanitizer:  sanitizer,
		translator: opts.Translator,
		logger:     opts.Logger,
		ledger:     ledger,
		opts:       opts,
		now:        now,
	}
}

// SendRecordingsToDrive copies the files of one occurrence to the course's
// Drive folder, swaps the page links to the copies and deletes the Zoom
// originals. link is looked up by meeting number when nil.
func (m *Migrator) SendRecordingsToDrive(ctx context.Context, occurrenceID string, link *store.PageLink) Result {
	recording, err := m.recordings.GetRecording(ctx, occurrenceID)
	if err != nil {
		return m.observe(Result{Outcome: OutcomeFailed, OccurrenceUUID: occurrenceID, Message: err.Error(), Err: err})
	}

	result := Result{
		MeetingNumber:  recording.Number,
		OccurrenceUUID: recording.UUID,
		StartUnix:      recording.StartUnix,
	}

	if link == nil {
		link, err = m.store.FindPageForMeeting(ctx, recording.Number)
		if errors.Is(err, store.ErrNotFound) {
			result.Outcome = OutcomeNoPageFound
			result.Message = m.translator.Text(i18n.ErrorNoPageInstanceFound, recording.FormattedNumber)
			return m.observe(result)
		}
		if err != nil {
			result.Outcome = OutcomeFailed
			result.Message = err.Error()
			result.Err = err
			return m.observe(result)
		}
	}
	result.PageURL = store.PageURL(m.opts.SiteURL, link.PageCMID)

	if len(recording.Files) == 0 {
		result.Outcome = OutcomeNoQualifyingRecording
		result.Message = m.translator.Text(i18n.NoRecordings)
		return m.observe(result)
	}

	folder, dir, err := m.folders.ResolveFolder(ctx, link)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Message = err.Error()
		result.Err = err
		return m.observe(result)
	}

	existing, err := m.storage.ListFiles(ctx, folder.ID)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Message = err.Error()
		result.Err = err
		return m.observe(result)
	}
	byName := make(map[string]*drive.File, len(existing))
	for i := range existing {
		byName[existing[i].Name] = &existing[i]
	}

	m.logger.InfoWithContext(ctx, "Sending %d files of %s to Drive folder %s", len(recording.Files), recording.UUID, dir.RelativePath)

	var errs error
	var lines []string
	for _, file := range recording.Files {
		if !m.sanitizer.Supported(file.FileType) {
			continue
		}
		transfer := m.transfer(ctx, recording, file, link, folder, dir, byName)
		result.Transfers = append(result.Transfers, transfer)
		lines = append(lines, m.describe(transfer)...)
		errs = multierr.Append(errs, transfer.Err)
	}

	result.Message = strings.Join(lines, "<br>")
	result.Err = errs
	switch {
	case errs != nil:
		result.Outcome = OutcomeFailed
	case len(result.Transfers) == 0:
		result.Outcome = OutcomeNoQualifyingRecording
		result.Message = m.translator.Text(i18n.NoRecordings)
	default:
		result.Outcome = OutcomePageUpdated
	}

	if !m.opts.DryRun && result.Message != "" {
		summary := fmt.Sprintf("%s (%s): %s", recording.UUID, dir.RelativePath, result.Message)
		if err := m.store.AddLog(ctx, AuditSendToDrive, summary); err != nil {
			m.logger.WarnWithContext(ctx, "Failed to write audit entry for %s: %v", recording.UUID, err)
		}
	}
	return m.observe(result)
}

func (m *Migrator) transfer(ctx context.Context, recording *recordings.MeetingRecordings, file recordings.File,
	link *store.PageLink, folder *drive.File, dir *directory.DirectoryResult, byName map[string]*drive.File) FileTransfer {
	started := m.now()
	transfer := FileTransfer{FileID: file.ID, FileType: file.FileType}

	target, err := m.sanitizer.DriveFile(file, dir.Course)
	if err != nil {
		transfer.Err = err
		return m.track(transfer, recording, file, dir, started)
	}
	transfer.Name = target.Name

	copied, ok := byName[target.Name]
	switch {
	case ok:
		transfer.Reused = true
	case m.opts.DryRun:
		m.logger.InfoWithContext(ctx, "[dry-run] would upload %s (%s)", target.Name, recordings.FormatFileSize(file.FileSize))
		return transfer
	default:
		source, err := zoom.SignDownloadURL(ctx, m.opts.SourceAuth, file.DownloadURL)
		if err != nil {
			transfer.Err = fmt.Errorf("failed to sign download of %s: %w", file.ID, err)
			return m.track(transfer, recording, file, dir, started)
		}

		copied, err = m.storage.CreateFile(ctx, drive.FileMetadata{
			Name:     target.Name,
			MimeType: target.MimeType,
			Parents:  []string{folder.ID},
			Size:     file.FileSize,
		}, source)
		if err != nil {
			transfer.Err = fmt.Errorf("failed to upload %s: %w", target.Name, err)
			return m.track(transfer, recording, file, dir, started)
		}
		byName[target.Name] = copied
		transfer.Uploaded = true
		metrics.DriveBytes.Add(float64(file.FileSize))

		if m.opts.ShareWithAnyone {
			if err := m.storage.ShareWithAnyone(ctx, copied.ID); err != nil {
				m.logger.WarnWithContext(ctx, "Failed to share %s: %v", copied.Name, err)
			}
		}
	}
	transfer.ViewLink = copied.WebViewLink

	if transfer.ViewLink == "" {
		return m.track(transfer, recording, file, dir, started)
	}

	if m.opts.DryRun {
		return transfer
	}

	page := link.Content()
	updated, changed := content.ReplaceLink(page, recording.UUID, file.FileType, transfer.ViewLink, file.PlayURL, file.DownloadURL)
	if changed {
		if err := m.store.UpdatePageContent(ctx, link.PageCMID, updated, m.opts.EditorUserID, m.now()); err != nil {
			// the page still points at Zoom, so the source must stay
			transfer.Err = fmt.Errorf("failed to replace link of %s: %w", target.Name, err)
			return m.track(transfer, recording, file, dir, started)
		}
		if link.Page != nil {
			link.Page.Content = updated
		}
		transfer.LinkReplaced = true
	}

	if !m.opts.KeepZoomCopy {
		m.deleteSource(ctx, recording, &transfer)
	}
	return m.track(transfer, recording, file, dir, started)
}

// deleteSource moves the Zoom original to the trash. Failures are logged and
// kept on the transfer message only.
func (m *Migrator) deleteSource(ctx context.Context, recording *recordings.MeetingRecordings, transfer *FileTransfer) {
	status, err := m.recordings.DeleteRecordingFile(ctx, recording.UUID, transfer.FileID)
	if err != nil || status != http.StatusNoContent {
		metrics.ZoomDeletions.WithLabelValues("failed").Inc()
		m.logger.WarnWithContext(ctx, "Failed to delete %s of %s from Zoom (status %d): %v", transfer.FileID, recording.UUID, status, err)
		return
	}
	metrics.ZoomDeletions.WithLabelValues("deleted").Inc()
	transfer.SourceDeleted = true
}

func (m *Migrator) track(transfer FileTransfer, recording *recordings.MeetingRecordings, file recordings.File,
	dir *directory.DirectoryResult, started time.Time) FileTransfer {
	outcome := tracking.ResultUploaded
	switch {
	case transfer.Err != nil:
		outcome = tracking.ResultFailed
	case transfer.Reused:
		outcome = tracking.ResultReused
	}
	metrics.DriveTransfers.WithLabelValues(outcome).Inc()

	entry := tracking.TransferEntry{
		Course:         dir.Course,
		MeetingUUID:    recording.UUID,
		FileID:         file.ID,
		FileName:       transfer.Name,
		RecordingSize:  file.FileSize,
		DriveLink:      transfer.ViewLink,
		Result:         outcome,
		SourceDeleted:  transfer.SourceDeleted,
		TransferDate:   m.now(),
		ProcessingTime: m.now().Sub(started),
	}
	if err := m.ledger.TrackTransfer(entry); err != nil {
		m.logger.Warn("Failed to write transfer ledger: %v", err)
	}
	return transfer
}

func (m *Migrator) describe(transfer FileTransfer) []string {
	if transfer.Err != nil && transfer.Name == "" {
		return []string{transfer.Err.Error()}
	}

	var lines []string
	switch {
	case transfer.Uploaded:
		lines = append(lines, m.translator.Text(i18n.FileUploadedToDrive, transfer.Name))
	case transfer.Reused:
		lines = append(lines, m.translator.Text(i18n.FileAlreadyOnDrive, transfer.Name))
	}
	if transfer.LinkReplaced {
		lines = append(lines, m.translator.Text(i18n.LinkReplaced))
	}
	if transfer.SourceDeleted {
		lines = append(lines, m.translator.Text(i18n.FileDeletedFromZoom))
	}
	if transfer.Err != nil {
		lines = append(lines, transfer.Err.Error())
	}
	return lines
}

// SendCourseRecordingsToDrive migrates every occurrence linked on a page plus
// the meeting's other held occurrences, oldest first
func (m *Migrator) SendCourseRecordingsToDrive(ctx context.Context, req CourseRequest) ([]Result, error) {
	link, err := m.store.FindPageForMeeting(ctx, req.MeetingNumber)
	if err != nil {
		return nil, err
	}
	if req.PageCMID != 0 && link.PageCMID != req.PageCMID {
		return nil, fmt.Errorf("meeting %s is linked to page %d, not %d",
			recordings.FormatMeetingNumber(req.MeetingNumber), link.PageCMID, req.PageCMID)
	}

	scraped := content.OccurrenceUUIDs(link.Content())
	occurrences := make([]recordings.Occurrence, 0, len(scraped))
	for _, uuid := range scraped {
		occurrence, err := m.recordings.GetOccurrence(ctx, uuid)
		if err != nil {
			m.logger.WarnWithContext(ctx, "Occurrence %s linked on page %d could not be loaded: %v", uuid, link.PageCMID, err)
			occurrences = append(occurrences, recordings.Occurrence{UUID: uuid, Number: req.MeetingNumber})
			continue
		}
		occurrences = append(occurrences, *occurrence)
	}

	others, err := m.recordings.GetOccurrences(ctx, req.MeetingNumber, scraped)
	if err != nil {
		return nil, err
	}
	occurrences = append(occurrences, others...)
	recordings.SortOccurrences(occurrences, true)

	var errs error
	results := make([]Result, 0, len(occurrences))
	for _, occurrence := range occurrences {
		result := m.SendRecordingsToDrive(ctx, occurrence.UUID, link)
		if result.Err != nil && !zoom.IsNotFound(result.Err) {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", occurrence.UUID, result.Err))
		}
		results = append(results, result)
	}
	return results, errs
}

func (m *Migrator) observe(result Result) Result {
	metrics.ReconcileOutcomes.WithLabelValues("drive_" + result.Outcome.String()).Inc()
	return result
}
