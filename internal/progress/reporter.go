package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/logging"
)

// LoggingReporter writes transfer progress to the structured log. Intermediate
// updates of one transfer are throttled to one per interval; completion and
// failure are always written.
type LoggingReporter struct {
	logger   logging.Logger
	interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewLoggingReporter creates a reporter logging at most once per interval per transfer
func NewLoggingReporter(logger logging.Logger, interval time.Duration) *LoggingReporter {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &LoggingReporter{
		logger:   logger,
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

// Report handles one update
func (r *LoggingReporter) Report(update Update) {
	switch update.Phase {
	case PhaseFailed:
		r.forget(update.Name)
		r.logger.Error("Transfer of %s failed after %s: %v", update.Name, FormatBytes(update.Bytes), update.Err)
		return
	case PhaseCompleted:
		r.forget(update.Name)
		r.logger.LogPerformance(logging.PerformanceMetrics{
			Operation:      "transfer",
			BytesProcessed: update.Bytes,
			Success:        true,
			Metadata:       map[string]interface{}{"name": update.Name},
		})
		return
	}

	r.mu.Lock()
	last, seen := r.last[update.Name]
	if seen && update.Timestamp.Sub(last) < r.interval {
		r.mu.Unlock()
		return
	}
	r.last[update.Name] = update.Timestamp
	r.mu.Unlock()

	r.logger.Info("Transfer %s %s: %s of %s (%.0f%%), %s/s, ETA %s",
		update.Phase, update.Name,
		FormatBytes(update.Bytes), FormatBytes(update.Total), update.Percent(),
		FormatBytes(int64(update.Speed)), formatDuration(update.ETA))
}

func (r *LoggingReporter) forget(name string) {
	r.mu.Lock()
	delete(r.last, name)
	r.mu.Unlock()
}

// Callback returns the reporter as a progress callback
func (r *LoggingReporter) Callback() Callback {
	return r.Report
}

// BarReporter renders a single-line progress bar for interactive runs
type BarReporter struct {
	w     io.Writer
	width int
	mu    sync.Mutex
}

// NewBarReporter creates a bar reporter writing to w
func NewBarReporter(w io.Writer, width int) *BarReporter {
	if width <= 0 {
		width = 40
	}
	return &BarReporter{w: w, width: width}
}

// Report redraws the bar
func (b *BarReporter) Report(update Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	percent := update.Percent()
	filled := int(percent / 100 * float64(b.width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", b.width-filled)

	line := fmt.Sprintf("\r[%s] %3.0f%% %s %s/%s", bar, percent, update.Name, FormatBytes(update.Bytes), FormatBytes(update.Total))
	if update.Phase == PhaseCompleted || update.Phase == PhaseFailed {
		line += "\n"
	}
	fmt.Fprint(b.w, line)
}

// Multi fans an update out to several callbacks; nil entries are skipped
func Multi(callbacks ...Callback) Callback {
	return func(update Update) {
		for _, cb := range callbacks {
			if cb != nil {
				cb(update)
			}
		}
	}
}
