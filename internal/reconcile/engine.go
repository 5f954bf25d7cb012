// Package reconcile adds Zoom cloud recordings to their course pages and
// migrates recording files to Google Drive
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/content"
	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/logging"
	"github.com/curtbushko/zoom-to-moodle/internal/metrics"
	"github.com/curtbushko/zoom-to-moodle/internal/participants"
	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
)

// Outcome is the terminal state of one occurrence
type Outcome int

const (
	OutcomePageUpdated Outcome = iota + 1
	OutcomeAlreadyLinked
	OutcomeNoQualifyingRecording
	OutcomeNoPageFound
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePageUpdated:
		return "page_updated"
	case OutcomeAlreadyLinked:
		return "already_linked"
	case OutcomeNoQualifyingRecording:
		return "no_qualifying_recording"
	case OutcomeNoPageFound:
		return "no_page_found"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports what happened to one occurrence
type Result struct {
	Outcome        Outcome
	Message        string
	PageURL        string
	MeetingNumber  int64
	OccurrenceUUID string
	StartUnix      int64
	Err            error

	// Transfers is filled by the Drive migration
	Transfers []FileTransfer
}

// Store is the part of the content store the engine uses
type Store interface {
	FindPageForMeeting(ctx context.Context, meetingNumber int64) (*store.PageLink, error)
	UpdatePageContent(ctx context.Context, cmID int64, content string, userID int64, now time.Time) error
	AdvanceWatermark(ctx context.Context, pageLinkID uint, startUnix int64) (bool, error)
	AddLog(ctx context.Context, classFunction, message string) error
}

// Recordings is the part of the recording repository the engine uses
type Recordings interface {
	GetRecording(ctx context.Context, meetingID string) (*recordings.MeetingRecordings, error)
	GetOccurrence(ctx context.Context, uuid string) (*recordings.Occurrence, error)
	GetOccurrences(ctx context.Context, meetingNumber int64, ignored []string) ([]recordings.Occurrence, error)
	DeleteRecordingFile(ctx context.Context, occurrenceUUID, fileID string) (int, error)
}

// Attendance imports participants before an occurrence is linked
type Attendance interface {
	EnsureParticipantsFetched(ctx context.Context, meetingUUID string, meetingNumber int64) (*participants.FetchResult, error)
}

// BatchFunc runs one pass over every due page
type BatchFunc func(ctx context.Context) ([]Result, error)

// Options configures an Engine
type Options struct {
	Translator   *i18n.Translator
	Logger       logging.Logger
	SiteURL      string
	MinVideoSize int64
	EditorUserID int64
	// DryRun computes outcomes without writing pages, watermarks or files
	DryRun bool
	Now    func() time.Time
}

// Engine runs the recording to page state machine
type Engine struct {
	store      Store
	recordings Recordings
	attendance Attendance
	builder    *content.Builder
	translator *i18n.Translator
	logger     logging.Logger
	opts       Options
	now        func() time.Time
	batch      BatchFunc
}

// NewEngine creates an engine. attendance may be nil to skip participant imports.
func NewEngine(s Store, repo Recordings, attendance Attendance, opts Options) *Engine {
	if opts.Translator == nil {
		opts.Translator = i18n.New("en")
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefaultLogger()
	}
	if opts.MinVideoSize <= 0 {
		opts.MinVideoSize = recordings.DefaultMinVideoSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:      s,
		recordings: repo,
		attendance: attendance,
		builder:    content.NewBuilder(opts.Translator, opts.SiteURL),
		translator: opts.Translator,
		logger:     opts.Logger,
		opts:       opts,
		now:        now,
	}
}

// SetBatch sets the pass run by AddRecordingsToPage without a meeting id
func (e *Engine) SetBatch(batch BatchFunc) {
	e.batch = batch
}

// AddRecordingsToPage links the recording of one meeting or occurrence to its
// page. An empty meetingID runs the batch pass instead.
func (e *Engine) AddRecordingsToPage(ctx context.Context, meetingID string) ([]Result, error) {
	if meetingID == "" {
		if e.batch == nil {
			return nil, fmt.Errorf("no batch pass configured")
		}
		return e.batch(ctx)
	}

	recording, err := e.recordings.GetRecording(ctx, meetingID)
	if err != nil {
		result := e.failed(nil, nil, err)
		return []Result{result}, err
	}
	return []Result{e.Reconcile(ctx, recording, nil)}, nil
}

// Reconcile moves one occurrence through the state machine. link is looked up
// by meeting number when nil. On success the in-memory page content of link
// is updated so later occurrences of the same pass see it.
func (e *Engine) Reconcile(ctx context.Context, recording *recordings.MeetingRecordings, link *store.PageLink) Result {
	if link == nil {
		found, result, ok := e.findPage(ctx, recording)
		if !ok {
			return result
		}
		link = found
	}

	result := Result{
		PageURL:        store.PageURL(e.opts.SiteURL, link.PageCMID),
		MeetingNumber:  recording.Number,
		OccurrenceUUID: recording.UUID,
		StartUnix:      recording.StartUnix,
	}

	e.ensureParticipants(ctx, recording)

	candidates := recordings.Candidates(recording.Files, e.opts.MinVideoSize)
	urls := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		urls = append(urls, candidate.URL)
	}

	page := link.Content()
	if content.ContainsAnyURL(page, urls) || content.HasOccurrence(page, recording.UUID) {
		e.advance(ctx, link, recording.StartUnix)
		result.Outcome = OutcomeAlreadyLinked
		result.Message = e.translator.Text(i18n.ErrorRecordingAlreadyAdded)
		return e.observe(result)
	}

	if len(candidates) == 0 {
		result.Outcome = OutcomeNoQualifyingRecording
		result.Message = e.translator.Text(i18n.ErrorNoRecordingsFound, recordings.FormatFileSize(e.opts.MinVideoSize))
		return e.observe(result)
	}

	updated := e.builder.Append(page, recording, candidates)
	if e.opts.DryRun {
		e.logger.InfoWithContext(ctx, "[dry-run] would add %d links of %s to page %d", len(candidates), recording.UUID, link.PageCMID)
	} else {
		if err := e.store.UpdatePageContent(ctx, link.PageCMID, updated, e.opts.EditorUserID, e.now()); err != nil {
			e.logger.ErrorWithContext(ctx, "Failed to update page %d with %s: %v", link.PageCMID, recording.UUID, err)
			result.Outcome = OutcomeFailed
			result.Message = e.translator.Text(i18n.ErrorAddRecordingsToPage)
			result.Err = err
			return e.observe(result)
		}
		if link.Page != nil {
			link.Page.Content = updated
		}
		e.advance(ctx, link, recording.StartUnix)
	}

	result.Outcome = OutcomePageUpdated
	result.Message = e.translator.Text(i18n.RecordingsAddedToPage, result.PageURL)
	e.logger.LogUserAction("recording_linked", recording.HostID, map[string]interface{}{
		"meeting_number": recording.Number,
		"uuid":           recording.UUID,
		"page_cm_id":     link.PageCMID,
		"links":          len(candidates),
	})
	return e.observe(result)
}

func (e *Engine) findPage(ctx context.Context, recording *recordings.MeetingRecordings) (*store.PageLink, Result, bool) {
	link, err := e.store.FindPageForMeeting(ctx, recording.Number)
	if err == nil {
		return link, Result{}, true
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, e.observe(Result{
			Outcome:        OutcomeNoPageFound,
			Message:        e.translator.Text(i18n.ErrorNoPageInstanceFound, recording.FormattedNumber),
			MeetingNumber:  recording.Number,
			OccurrenceUUID: recording.UUID,
			StartUnix:      recording.StartUnix,
		}), false
	}
	return nil, e.failed(recording, nil, err), false
}

func (e *Engine) ensureParticipants(ctx context.Context, recording *recordings.MeetingRecordings) {
	if e.attendance == nil || e.opts.DryRun {
		return
	}
	if _, err := e.attendance.EnsureParticipantsFetched(ctx, recording.UUID, recording.Number); err != nil {
		e.logger.WarnWithContext(ctx, "Participants of %s were not imported: %v", recording.UUID, err)
	}
}

// advance moves the watermark forward. Failures are logged: the URL check
// keeps the next pass from linking the occurrence twice.
func (e *Engine) advance(ctx context.Context, link *store.PageLink, startUnix int64) {
	if e.opts.DryRun || startUnix == 0 {
		return
	}
	advanced, err := e.store.AdvanceWatermark(ctx, link.ID, startUnix)
	if err != nil {
		e.logger.ErrorWithContext(ctx, "Failed to advance watermark of page link %d: %v", link.ID, err)
		return
	}
	if advanced {
		link.LastAddedTimestamp = startUnix
	}
}

func (e *Engine) failed(recording *recordings.MeetingRecordings, link *store.PageLink, err error) Result {
	result := Result{
		Outcome: OutcomeFailed,
		Message: e.translator.Text(i18n.ErrorAddRecordingsToPage),
		Err:     err,
	}
	if recording != nil {
		result.MeetingNumber = recording.Number
		result.OccurrenceUUID = recording.UUID
		result.StartUnix = recording.StartUnix
	}
	if link != nil {
		result.PageURL = store.PageURL(e.opts.SiteURL, link.PageCMID)
	}
	return e.observe(result)
}

func (e *Engine) observe(result Result) Result {
	metrics.ReconcileOutcomes.WithLabelValues(result.Outcome.String()).Inc()
	return result
}
