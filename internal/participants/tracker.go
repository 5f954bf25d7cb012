// Package participants imports Zoom attendance into the content store and
// renders per-occurrence attendance reports
package participants

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/email"
	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/logging"
	"github.com/curtbushko/zoom-to-moodle/internal/metrics"
	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
)

// AuditRecordingView is the audit log source of recording views
const AuditRecordingView = "participants.record_recording_view"

// Store is the part of the content store the tracker uses
type Store interface {
	HasParticipants(ctx context.Context, meetingUUID string) (bool, error)
	InsertParticipants(ctx context.Context, rows []store.Participant) error
	ListParticipants(ctx context.Context, meetingUUID string) ([]store.Participant, error)
	AddLog(ctx context.Context, classFunction, message string) error
}

// ReportSource returns the Zoom participant report of an occurrence
type ReportSource interface {
	GetParticipantReport(ctx context.Context, meetingUUID string) (*zoom.ParticipantReport, error)
}

// Occurrences resolves occurrence metadata for reports
type Occurrences interface {
	GetOccurrence(ctx context.Context, uuid string) (*recordings.Occurrence, error)
	GetUser(ctx context.Context, userID string) (*zoom.User, error)
	Location(meetingTZ string, host *zoom.User) *time.Location
}

// Options configures a Tracker
type Options struct {
	Translator *i18n.Translator
	Logger     logging.Logger
	Now        func() time.Time
}

// Tracker records who attended or later watched an occurrence
type Tracker struct {
	store       Store
	source      ReportSource
	occurrences Occurrences
	translator  *i18n.Translator
	logger      logging.Logger
	now         func() time.Time
}

// NewTracker creates a tracker. occurrences is only needed by Report.
func NewTracker(s Store, source ReportSource, occurrences Occurrences, opts Options) *Tracker {
	translator := opts.Translator
	if translator == nil {
		translator = i18n.New("en")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		store:       s,
		source:      source,
		occurrences: occurrences,
		translator:  translator,
		logger:      logger,
		now:         now,
	}
}

// FetchResult describes what EnsureParticipantsFetched did
type FetchResult struct {
	// AlreadyFetched is set when rows existed and Zoom was not called
	AlreadyFetched bool
	Inserted       int
	// Truncated is set when Zoom reported more pages than the one imported
	Truncated bool
}

// EnsureParticipantsFetched imports the live participants of an occurrence
// once. Only the first report page is imported.
func (t *Tracker) EnsureParticipantsFetched(ctx context.Context, meetingUUID string, meetingNumber int64) (*FetchResult, error) {
	exists, err := t.store.HasParticipants(ctx, meetingUUID)
	if err != nil {
		return nil, err
	}
	if exists {
		metrics.ParticipantImports.WithLabelValues("skipped").Inc()
		return &FetchResult{AlreadyFetched: true}, nil
	}

	report, err := t.source.GetParticipantReport(ctx, meetingUUID)
	if err != nil {
		metrics.ParticipantImports.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to get participants of %s: %w", meetingUUID, err)
	}

	rows := make([]store.Participant, 0, len(report.Participants))
	for _, p := range report.Participants {
		rows = append(rows, store.Participant{
			MeetingUUID:   meetingUUID,
			MeetingNumber: meetingNumber,
			UserUUID:      p.ID,
			UserName:      p.Name,
			UserEmail:     p.UserEmail,
			JoinTime:      unix(p.JoinTime.Time),
			LeaveTime:     unix(p.LeaveTime.Time),
			Duration:      int64(p.Duration),
			Attentiveness: ParseAttentiveness(p.AttentivenessScore),
			UserID:        p.UserID,
		})
	}

	if err := t.store.InsertParticipants(ctx, rows); err != nil {
		metrics.ParticipantImports.WithLabelValues("failed").Inc()
		return nil, err
	}

	result := &FetchResult{Inserted: len(rows), Truncated: report.NextPageToken != ""}
	if result.Truncated {
		metrics.ParticipantImports.WithLabelValues("truncated").Inc()
		t.logger.WarnWithContext(ctx, "Participant report of %s has more pages, only the first %d participants were imported",
			meetingUUID, len(rows))
	} else {
		metrics.ParticipantImports.WithLabelValues("imported").Inc()
	}
	t.logger.InfoWithContext(ctx, "Imported %d participants of %s", len(rows), meetingUUID)
	return result, nil
}

// View identifies a site user who opened a recording link
type View struct {
	UserID int64
	Name   string
	Email  string
	// MeetingNumber is taken from the occurrence's live rows when zero
	MeetingNumber int64
}

// RecordRecordingView stores a zero-length row marking that the user watched
// the recording of an occurrence
func (t *Tracker) RecordRecordingView(ctx context.Context, meetingUUID string, view View) error {
	if meetingUUID == "" {
		return fmt.Errorf("meeting uuid cannot be empty")
	}

	number := view.MeetingNumber
	if number == 0 {
		existing, err := t.store.ListParticipants(ctx, meetingUUID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			number = existing[0].MeetingNumber
		}
	}

	now := t.now().Unix()
	row := store.Participant{
		MeetingUUID:   meetingUUID,
		MeetingNumber: number,
		Recording:     true,
		UserName:      view.Name,
		UserEmail:     email.Normalize(view.Email),
		JoinTime:      now,
		LeaveTime:     now,
		UserID:        strconv.FormatInt(view.UserID, 10),
	}
	if err := t.store.InsertParticipants(ctx, []store.Participant{row}); err != nil {
		return err
	}
	metrics.RecordingViews.Inc()

	message := t.translator.Text(i18n.RecordingViewLogged, meetingUUID, view.UserID)
	if err := t.store.AddLog(ctx, AuditRecordingView, message); err != nil {
		t.logger.WarnWithContext(ctx, "Failed to write audit entry for recording view: %v", err)
	}
	return nil
}

// ParseAttentiveness reads Zoom's "87%" score. Anything unparseable is 0.
func ParseAttentiveness(score string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(score), "%")), 64)
	if err != nil || math.IsNaN(value) {
		return 0
	}
	return value
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
