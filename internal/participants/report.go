package participants

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/email"
	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
)

const (
	liveLayout      = "15:04:05"
	recordingSuffix = "*"
)

// Report is the attendance of one occurrence
type Report struct {
	UUID            string      `json:"uuid"`
	Number          int64       `json:"number"`
	FormattedNumber string      `json:"formatted_number"`
	Topic           string      `json:"topic"`
	Start           string      `json:"start"`
	HostEmail       string      `json:"host_email,omitempty"`
	SessionSeconds  int64       `json:"session_seconds"`
	Rows            []ReportRow `json:"rows"`
	// Message explains an empty report
	Message string `json:"message,omitempty"`
}

// ReportRow is one participant. Minutes, Percent and Attentiveness read N/D
// for someone who only watched the recording.
type ReportRow struct {
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Intervals     []string `json:"intervals"`
	Live          bool     `json:"live"`
	Minutes       string   `json:"minutes"`
	Percent       string   `json:"percent"`
	Attentiveness string   `json:"attentiveness"`

	DurationSeconds int64   `json:"-"`
	PercentValue    float64 `json:"-"`
	Attention       float64 `json:"-"`
}

type group struct {
	row       *ReportRow
	liveRows  int
	seconds   int64
	attention float64
	intervals []string
}

// Report renders the attendance of an occurrence. The host is left out. When
// filterEmail is set only that participant's rows are shown.
func (t *Tracker) Report(ctx context.Context, meetingUUID, filterEmail string) (*Report, error) {
	rows, err := t.store.ListParticipants(ctx, meetingUUID)
	if err != nil {
		return nil, err
	}

	report := &Report{UUID: meetingUUID, Rows: []ReportRow{}}
	location := t.describe(ctx, report, rows)

	var live []store.Participant
	var visible []store.Participant
	for _, row := range rows {
		if report.HostEmail != "" && email.Equal(row.UserEmail, report.HostEmail) {
			continue
		}
		if !row.Recording {
			live = append(live, row)
		}
		if filterEmail != "" && !email.Equal(row.UserEmail, filterEmail) {
			continue
		}
		visible = append(visible, row)
	}
	report.SessionSeconds = sessionLength(live)

	var order []string
	groups := make(map[string]*group)
	for _, row := range visible {
		key := row.UserName + "\x00" + email.Normalize(row.UserEmail)
		g, ok := groups[key]
		if !ok {
			g = &group{row: &ReportRow{Name: row.UserName, Email: row.UserEmail}}
			groups[key] = g
			order = append(order, key)
		}

		if row.Recording {
			g.intervals = append(g.intervals,
				time.Unix(row.JoinTime, 0).In(location).Format(recordings.DateTimeLayout)+recordingSuffix)
			continue
		}
		g.liveRows++
		g.seconds += row.Duration
		g.attention += row.Attentiveness
		g.intervals = append(g.intervals, fmt.Sprintf("%s - %s",
			time.Unix(row.JoinTime, 0).In(location).Format(liveLayout),
			time.Unix(row.LeaveTime, 0).In(location).Format(liveLayout)))
	}

	notAvailable := t.translator.Text(i18n.NotAvailable)
	for _, key := range order {
		g := groups[key]
		row := g.row
		row.Intervals = g.intervals
		row.Live = g.liveRows > 0
		if !row.Live {
			row.Minutes, row.Percent, row.Attentiveness = notAvailable, notAvailable, notAvailable
			report.Rows = append(report.Rows, *row)
			continue
		}

		row.DurationSeconds = g.seconds
		row.Attention = g.attention / float64(g.liveRows)
		row.Minutes = fmt.Sprintf("%d", int64(math.Ceil(float64(g.seconds)/60)))
		row.Attentiveness = fmt.Sprintf("%.0f%%", row.Attention)
		if report.SessionSeconds > 0 {
			row.PercentValue = float64(g.seconds) / float64(report.SessionSeconds) * 100
			row.Percent = fmt.Sprintf("%.1f%%", row.PercentValue)
		} else {
			row.Percent = notAvailable
		}
		report.Rows = append(report.Rows, *row)
	}

	if len(report.Rows) == 0 {
		if filterEmail != "" {
			report.Message = t.translator.Text(i18n.ParticipantsNoPermission)
		} else {
			report.Message = t.translator.Text(i18n.ParticipantsNoData)
		}
	}
	return report, nil
}

// describe fills the occurrence metadata and returns the timezone to render
// times in. Missing metadata is logged and left blank.
func (t *Tracker) describe(ctx context.Context, report *Report, rows []store.Participant) *time.Location {
	for _, row := range rows {
		if row.MeetingNumber != 0 {
			report.Number = row.MeetingNumber
			report.FormattedNumber = recordings.FormatMeetingNumber(row.MeetingNumber)
			break
		}
	}

	if t.occurrences == nil {
		return time.UTC
	}

	occurrence, err := t.occurrences.GetOccurrence(ctx, report.UUID)
	if err != nil {
		t.logger.WarnWithContext(ctx, "Occurrence %s could not be loaded for the participants report: %v", report.UUID, err)
		return t.occurrences.Location("", nil)
	}

	var host *zoom.User
	if occurrence.HostID != "" {
		if host, err = t.occurrences.GetUser(ctx, occurrence.HostID); err != nil {
			t.logger.WarnWithContext(ctx, "Host %s could not be loaded: %v", occurrence.HostID, err)
			host = nil
		}
	}
	location := t.occurrences.Location(occurrence.Timezone, host)

	report.Topic = occurrence.Topic
	if occurrence.Number != 0 {
		report.Number = occurrence.Number
		report.FormattedNumber = recordings.FormatMeetingNumber(occurrence.Number)
	}
	report.HostEmail = occurrence.HostEmail
	if report.HostEmail == "" && host != nil {
		report.HostEmail = host.Email
	}
	if !occurrence.StartTime.IsZero() {
		report.Start = occurrence.StartTime.In(location).Format(recordings.DateTimeLayout)
	}
	report.HostEmail = strings.ToLower(report.HostEmail)
	return location
}

// sessionLength is the span from the first join to the last leave
func sessionLength(live []store.Participant) int64 {
	var first, last int64
	for i, row := range live {
		if i == 0 || row.JoinTime < first {
			first = row.JoinTime
		}
		if row.LeaveTime > last {
			last = row.LeaveTime
		}
	}
	if last <= first {
		return 0
	}
	return last - first
}
