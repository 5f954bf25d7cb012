// Package progress reports byte progress of recording transfers between Zoom
// and Google Drive
package progress

import (
	"fmt"
	"sync"
	"time"
)

// Phase is the stage a transfer is in
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseUploading   Phase = "uploading"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Update is a progress snapshot of one transfer
type Update struct {
	Name      string
	Phase     Phase
	Bytes     int64
	Total     int64
	Speed     float64 // bytes per second
	ETA       time.Duration
	Err       error
	Timestamp time.Time
}

// Percent returns the completed share of the transfer, 0 when the total is unknown
func (u Update) Percent() float64 {
	if u.Total <= 0 {
		return 0
	}
	p := float64(u.Bytes) / float64(u.Total) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Callback receives progress updates
type Callback func(Update)

// Tracker turns raw byte counts of one transfer into updates with speed and ETA
type Tracker struct {
	name     string
	total    int64
	callback Callback
	now      func() time.Time

	mu      sync.Mutex
	current int64
	samples []sample
}

type sample struct {
	timestamp time.Time
	value     int64
}

const maxSamples = 10

// NewTracker creates a tracker for a transfer of total bytes. A nil callback
// makes every method a no-op.
func NewTracker(name string, total int64, callback Callback) *Tracker {
	return &Tracker{
		name:     name,
		total:    total,
		callback: callback,
		now:      time.Now,
		samples:  make([]sample, 0, maxSamples),
	}
}

// Advance records the absolute byte count and emits an update
func (t *Tracker) Advance(phase Phase, current int64) {
	if t == nil || t.callback == nil {
		return
	}

	t.mu.Lock()
	now := t.now()
	t.current = current
	t.samples = append(t.samples, sample{timestamp: now, value: current})
	if len(t.samples) > maxSamples {
		t.samples = t.samples[1:]
	}
	update := Update{
		Name:      t.name,
		Phase:     phase,
		Bytes:     current,
		Total:     t.total,
		Speed:     t.speed(),
		Timestamp: now,
	}
	update.ETA = t.eta(update.Speed)
	t.mu.Unlock()

	t.callback(update)
}

// Finish emits the final update. A non-nil err marks the transfer failed.
func (t *Tracker) Finish(err error) {
	if t == nil || t.callback == nil {
		return
	}

	t.mu.Lock()
	update := Update{
		Name:      t.name,
		Phase:     PhaseCompleted,
		Bytes:     t.current,
		Total:     t.total,
		Err:       err,
		Timestamp: t.now(),
	}
	t.mu.Unlock()

	if err != nil {
		update.Phase = PhaseFailed
	}
	t.callback(update)
}

func (t *Tracker) speed() float64 {
	if len(t.samples) < 2 {
		return 0
	}
	first := t.samples[0]
	last := t.samples[len(t.samples)-1]

	elapsed := last.timestamp.Sub(first.timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(last.value-first.value) / elapsed
}

func (t *Tracker) eta(speed float64) time.Duration {
	if t.total <= 0 || t.current >= t.total || speed <= 0 {
		return 0
	}
	remaining := float64(t.total - t.current)
	return time.Duration(remaining / speed * float64(time.Second))
}

// FormatBytes formats a byte count with one decimal, base 1024
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) - minutes*60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) - hours*60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
