// Package processor runs the periodic pass that links new cloud recordings to
// every due course page
package processor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/curtbushko/zoom-to-moodle/internal/logging"
	"github.com/curtbushko/zoom-to-moodle/internal/metrics"
	"github.com/curtbushko/zoom-to-moodle/internal/reconcile"
	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
	"github.com/curtbushko/zoom-to-moodle/internal/users"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
)

// DefaultSchedule runs the pass at the top of every hour
const DefaultSchedule = "0 * * * *"

const recordingDetailURL = "https://www.zoom.us/recording/management/detail?meeting_id="

// Store lists the pages a pass visits
type Store interface {
	ListDuePages(ctx context.Context, withinLastMonth bool, now time.Time) ([]store.PageLink, error)
}

// Recordings resolves page hosts and their recordings
type Recordings interface {
	GetMeeting(ctx context.Context, meetingID string) (*zoom.Meeting, error)
	ListHostRecordings(ctx context.Context, hostID string) ([]recordings.MeetingRecordings, error)
}

// Reconciler links one occurrence to its page
type Reconciler interface {
	Reconcile(ctx context.Context, recording *recordings.MeetingRecordings, link *store.PageLink) reconcile.Result
}

// ProcessorConfig holds configuration for the batch processor
type ProcessorConfig struct {
	// ContinueOnError keeps visiting pages after one fails
	ContinueOnError bool
	// Hosts filters pages by host, nil treats every host as active
	Hosts  users.ActiveHostManager
	Logger logging.Logger
	Now    func() time.Time
}

// PageResult is what one page of the pass produced
type PageResult struct {
	PageLinkID    uint
	MeetingNumber int64
	Course        string
	Skipped       bool
	Lines         []string
	Results       []reconcile.Result
	Err           error
}

// Summary represents the outcome of one pass
type Summary struct {
	TotalPages   int
	SkippedPages int
	FailedPages  int
	Linked       int
	Failed       int
	Duration     time.Duration
	PageResults  []*PageResult
}

// Lines returns every result line of the pass in page order
func (s *Summary) Lines() []string {
	var lines []string
	for _, page := range s.PageResults {
		lines = append(lines, page.Lines...)
	}
	return lines
}

// Results returns every engine result of the pass in page order
func (s *Summary) Results() []reconcile.Result {
	var results []reconcile.Result
	for _, page := range s.PageResults {
		results = append(results, page.Results...)
	}
	return results
}

// Processor runs the batch pass
type Processor struct {
	store      Store
	recordings Recordings
	engine     Reconciler
	config     ProcessorConfig
	logger     logging.Logger
	now        func() time.Time
}

// NewProcessor creates a batch processor
func NewProcessor(s Store, repo Recordings, engine Reconciler, config ProcessorConfig) *Processor {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		store:      s,
		recordings: repo,
		engine:     engine,
		config:     config,
		logger:     logger,
		now:        now,
	}
}

// RunOnce visits every page of a course that ended less than a month ago and
// links the recordings newer than its watermark. Page errors are aggregated;
// unless ContinueOnError is set the pass stops at the first one.
func (p *Processor) RunOnce(ctx context.Context) (*Summary, error) {
	startTime := p.now()
	summary := &Summary{}

	finish := func(errs error) (*Summary, error) {
		summary.Duration = p.now().Sub(startTime)
		result := "success"
		if errs != nil {
			result = "failure"
		}
		metrics.BatchRuns.WithLabelValues(result).Inc()
		metrics.BatchDuration.Observe(summary.Duration.Seconds())
		metrics.BatchLastRun.Set(float64(p.now().Unix()))
		p.logger.InfoWithContext(ctx, "Batch pass finished: %d pages, %d skipped, %d failed, %d recordings linked in %v",
			summary.TotalPages, summary.SkippedPages, summary.FailedPages, summary.Linked, summary.Duration)
		return summary, errs
	}

	links, err := p.store.ListDuePages(ctx, true, startTime)
	if err != nil {
		return finish(err)
	}
	summary.TotalPages = len(links)
	p.logger.InfoWithContext(ctx, "Batch pass visiting %d pages", len(links))

	hostRecordings := make(map[string][]recordings.MeetingRecordings)
	var errs error
	for i := range links {
		select {
		case <-ctx.Done():
			return finish(multierr.Append(errs, ctx.Err()))
		default:
		}

		page := p.processPage(ctx, &links[i], hostRecordings)
		summary.PageResults = append(summary.PageResults, page)
		for _, result := range page.Results {
			switch result.Outcome {
			case reconcile.OutcomePageUpdated:
				summary.Linked++
			case reconcile.OutcomeFailed:
				summary.Failed++
			}
		}

		switch {
		case page.Skipped:
			summary.SkippedPages++
		case page.Err != nil:
			summary.FailedPages++
			errs = multierr.Append(errs, fmt.Errorf("page link %d (meeting %s): %w",
				page.PageLinkID, recordings.FormatMeetingNumber(page.MeetingNumber), page.Err))
			if !p.config.ContinueOnError {
				return finish(errs)
			}
		}
	}

	return finish(errs)
}

func (p *Processor) processPage(ctx context.Context, link *store.PageLink, hostRecordings map[string][]recordings.MeetingRecordings) *PageResult {
	page := &PageResult{
		PageLinkID:    link.ID,
		MeetingNumber: link.ZoomMeetingNumber,
		Course:        link.CourseName(),
	}

	meeting, err := p.recordings.GetMeeting(ctx, strconv.FormatInt(link.ZoomMeetingNumber, 10))
	if err != nil {
		p.logger.ErrorWithContext(ctx, "Failed to get meeting of page link %d: %v", link.ID, err)
		page.Err = err
		page.Lines = append(page.Lines, fmt.Sprintf("%s - %v", recordings.FormatMeetingNumber(link.ZoomMeetingNumber), err))
		return page
	}

	if p.config.Hosts != nil && !p.config.Hosts.IsHostActive(meeting.HostID, meeting.HostEmail) {
		p.logger.DebugWithContext(ctx, "Skipping page link %d: host %s is not active", link.ID, meeting.HostID)
		page.Skipped = true
		return page
	}

	hosted, ok := hostRecordings[meeting.HostID]
	if !ok {
		hosted, err = p.recordings.ListHostRecordings(ctx, meeting.HostID)
		if err != nil {
			p.logger.ErrorWithContext(ctx, "Failed to list recordings of host %s: %v", meeting.HostID, err)
			page.Err = err
			return page
		}
		hostRecordings[meeting.HostID] = hosted
	}

	var errs error
	for i := range hosted {
		recording := &hosted[i]
		if recording.Number != link.ZoomMeetingNumber || recording.StartUnix <= link.LastAddedTimestamp {
			continue
		}

		result := p.engine.Reconcile(ctx, recording, link)
		page.Results = append(page.Results, result)
		page.Lines = append(page.Lines, formatLine(recording, result))
		if result.Outcome == reconcile.OutcomeFailed {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", recording.UUID, result.Err))
		}
	}
	page.Err = errs
	return page
}

// formatLine renders one result as a link to the recording in the Zoom web
// portal followed by the engine message
func formatLine(recording *recordings.MeetingRecordings, result reconcile.Result) string {
	return fmt.Sprintf(`<a href="%s%s" target="_blank">%s - %s</a> - %s`,
		recordingDetailURL, recording.EncodedUUID, recording.Topic, recording.FirstFileStart(), result.Message)
}

// Scheduler runs a processor on a cron schedule. A pass that is still running
// when the next one is due makes the next one skip.
type Scheduler struct {
	processor *Processor
	cron      *cron.Cron
	schedule  string
	logger    logging.Logger
}

// NewScheduler creates a scheduler. An empty schedule uses DefaultSchedule.
func NewScheduler(processor *Processor, schedule string, logger logging.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Scheduler{
		processor: processor,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the pass and launches the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.processor.RunOnce(ctx); err != nil {
			s.logger.Warn("Batch pass failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("Batch pass scheduled with %q", s.schedule)
	return nil
}

// Stop halts the scheduler. The returned context is done once a running pass finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
