// Package metrics exposes prometheus collectors for the sync pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileOutcomes counts occurrences handled by the reconcile engine by
	// outcome (page_updated|already_linked|no_qualifying_recording|no_page_found|failed).
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoom_to_moodle_reconcile_outcomes_total",
			Help: "Total number of reconciled occurrences by outcome",
		},
		[]string{"outcome"},
	)

	// DriveTransfers counts recording files handled by the Drive migration by
	// result (uploaded|reused|failed).
	DriveTransfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoom_to_moodle_drive_transfers_total",
			Help: "Total number of recording files copied to Google Drive",
		},
		[]string{"result"},
	)

	// DriveBytes sums the bytes uploaded to Drive.
	DriveBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zoom_to_moodle_drive_uploaded_bytes_total",
			Help: "Total bytes uploaded to Google Drive",
		},
	)

	// ZoomDeletions counts source recording deletions by result (deleted|failed).
	ZoomDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoom_to_moodle_zoom_deletions_total",
			Help: "Total number of Zoom recording files deleted after migration",
		},
		[]string{"result"},
	)

	// BatchRuns counts batch passes by result (success|failure).
	BatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoom_to_moodle_batch_runs_total",
			Help: "Total number of batch passes",
		},
		[]string{"result"},
	)

	// BatchDuration measures batch pass latency.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zoom_to_moodle_batch_duration_seconds",
			Help:    "Batch pass duration",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	// BatchLastRun is the unix time of the last finished batch pass.
	BatchLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zoom_to_moodle_batch_last_run_timestamp_seconds",
			Help: "Unix time of the last finished batch pass",
		},
	)

	// ParticipantImports counts participant report imports by result
	// (imported|skipped|truncated|failed).
	ParticipantImports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoom_to_moodle_participant_imports_total",
			Help: "Total number of participant report imports",
		},
		[]string{"result"},
	)

	// RecordingViews counts recording views logged from course pages.
	RecordingViews = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zoom_to_moodle_recording_views_total",
			Help: "Total number of recording views logged",
		},
	)

	// HTTPLatency measures serve mode request latencies.
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoom_to_moodle_http_latency_seconds",
			Help:    "HTTP endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
