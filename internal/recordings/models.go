// Package recordings reads meetings, occurrences and cloud recordings from
// Zoom and decorates them with the labels and local times shown on course
// pages and in reports.
package recordings

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
)

// Recording file types handled by the sync
const (
	FileTypeMP4  = "MP4"
	FileTypeCHAT = "CHAT"
	FileTypeM4A  = "M4A"
)

// Display layouts
const (
	DateTimeLayout = "02/01/2006 15:04:05"
	DateLayout     = "02/01/2006"
	DownloadLayout = "2006-01-02 15:04:05"
)

// DefaultMinVideoSize is the size below which an MP4 is treated as an aborted recording
const DefaultMinVideoSize = 20 * 1024 * 1024

// File is a recording file with derived display fields
type File struct {
	zoom.RecordingFile

	Start                  time.Time // recording start in the meeting timezone
	End                    time.Time
	StartFormatted         string
	StartForDownload       string
	EndFormatted           string
	Duration               string
	MeetingNumberFormatted string
	SizeFormatted          string
	TypeLabel              string
	StatusLabel            string
}

// MeetingRecordings is one occurrence's cloud recording, decorated
type MeetingRecordings struct {
	UUID            string
	EncodedUUID     string
	Number          int64
	FormattedNumber string
	Topic           string
	HostID          string
	Host            *zoom.User
	Timezone        string
	Location        *time.Location
	StartTime       time.Time
	StartUnix       int64
	TotalSize       int64
	ShareURL        string
	Files           []File
}

// FirstFileStart returns the formatted start of the first file, or "" when
// there are no files
func (m *MeetingRecordings) FirstFileStart() string {
	if len(m.Files) == 0 {
		return ""
	}
	return m.Files[0].StartFormatted
}

// ClassDate returns the occurrence date as shown in course page headings
func (m *MeetingRecordings) ClassDate() string {
	return m.StartTime.In(m.location()).Format(DateLayout)
}

func (m *MeetingRecordings) location() *time.Location {
	if m.Location == nil {
		return time.UTC
	}
	return m.Location
}

// Occurrence is one held session of a meeting number
type Occurrence struct {
	UUID      string
	Number    int64
	Topic     string
	HostID    string
	HostEmail string
	Timezone  string
	StartTime time.Time
	EndTime   time.Time
	Duration  int
}

// StartUnix returns the occurrence start in unix seconds
func (o Occurrence) StartUnix() int64 {
	if o.StartTime.IsZero() {
		return 0
	}
	return o.StartTime.Unix()
}

// MeetingSummary is a scheduled, past or live meeting shown in listings
type MeetingSummary struct {
	UUID            string
	Number          int64
	FormattedNumber string
	Topic           string
	Type            int
	TypeLabel       string
	HostID          string
	HostEmail       string
	StartTime       time.Time
	StartFormatted  string
}

// MeetingList groups meetings by state
type MeetingList struct {
	Live     []MeetingSummary
	Past     []MeetingSummary
	Upcoming []MeetingSummary
}

// Total returns the number of meetings in every group
func (l *MeetingList) Total() int {
	return len(l.Live) + len(l.Past) + len(l.Upcoming)
}

// EncodeMeetingUUID query-escapes an occurrence UUID for use in a link
func EncodeMeetingUUID(uuid string) string {
	return url.QueryEscape(uuid)
}

// FormatMeetingNumber groups the digits of a meeting number in threes
// separated by dashes, e.g. 123-456-789.
func FormatMeetingNumber(number int64) string {
	digits := strconv.FormatInt(number, 10)
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('-')
		}
		b.WriteString(digits[i : i+3])
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// FormatFileSize renders a size with the largest whole unit: B, KB, MB or GB
func FormatFileSize(size int64) string {
	const kb = 1024
	const mb = kb * kb
	const gb = mb * kb

	switch {
	case size < kb:
		return fmt.Sprintf("%d B", size)
	case size < mb:
		return fmt.Sprintf("%d KB", size/kb)
	case size < gb:
		return fmt.Sprintf("%d MB", size/mb)
	default:
		return fmt.Sprintf("%d GB", size/gb)
	}
}

// FormatDuration renders d as HH:MM:SS. Negative durations read 00:00:00.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// SortByStart orders recordings by start time. The sort is stable.
func SortByStart(meetings []MeetingRecordings, ascending bool) {
	sort.SliceStable(meetings, func(i, j int) bool {
		if ascending {
			return meetings[i].StartTime.Before(meetings[j].StartTime)
		}
		return meetings[i].StartTime.After(meetings[j].StartTime)
	})
}

// SortOccurrences orders occurrences by start time
func SortOccurrences(occurrences []Occurrence, ascending bool) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		if ascending {
			return occurrences[i].StartTime.Before(occurrences[j].StartTime)
		}
		return occurrences[i].StartTime.After(occurrences[j].StartTime)
	})
}

func sortSummaries(meetings []MeetingSummary, ascending bool) {
	sort.SliceStable(meetings, func(i, j int) bool {
		if ascending {
			return meetings[i].StartTime.Before(meetings[j].StartTime)
		}
		return meetings[i].StartTime.After(meetings[j].StartTime)
	})
}
