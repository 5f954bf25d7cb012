package participants

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/logging"
	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
	"github.com/curtbushko/zoom-to-moodle/internal/store/storetest"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom/zoomtest"
)

const occurrenceUUID = "occ/1=="

var viewTime = time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)

func at(hour, minute int) zoom.APITime {
	return zoom.APITime{Time: time.Date(2024, 3, 5, hour, minute, 0, 0, time.UTC)}
}

func newFixture(t *testing.T) (*Tracker, *zoomtest.Fake, *store.Store) {
	t.Helper()
	fake := zoomtest.New()
	fake.Users["host-1"] = &zoom.User{ID: "host-1", Email: "prof@school.edu", Timezone: "America/Sao_Paulo"}
	fake.PastMeetings[occurrenceUUID] = &zoom.PastMeeting{
		UUID:      occurrenceUUID,
		ID:        81234567890,
		HostID:    "host-1",
		Topic:     "Cálculo I",
		UserEmail: "Prof@School.edu",
		StartTime: at(22, 0),
		EndTime:   at(23, 30),
	}
	fake.ParticipantReport[occurrenceUUID] = &zoom.ParticipantReport{
		Participants: []zoom.ReportParticipant{
			{ID: "p-host", Name: "Prof", UserEmail: "prof@school.edu", JoinTime: at(22, 0), LeaveTime: at(23, 30), Duration: 5400},
			{ID: "p-ana", UserID: "16778240", Name: "Ana", UserEmail: "ana@student.edu", JoinTime: at(22, 0), LeaveTime: at(22, 50), Duration: 3000, AttentivenessScore: "80%"},
			{ID: "p-ana", UserID: "16778240", Name: "Ana", UserEmail: "ana@student.edu", JoinTime: at(23, 0), LeaveTime: at(23, 30), Duration: 1800, AttentivenessScore: "100%"},
			{ID: "p-bruno", Name: "Bruno", UserEmail: "bruno@student.edu", JoinTime: at(22, 10), LeaveTime: at(23, 20), Duration: 4200},
		},
	}

	repository, err := recordings.NewRepository(fake, recordings.Options{Logger: logging.NewNopLogger()})
	require.NoError(t, err)

	s := storetest.New(t)
	tracker := NewTracker(s, fake, repository, Options{
		Logger: logging.NewNopLogger(),
		Now:    func() time.Time { return viewTime },
	})
	return tracker, fake, s
}

func TestEnsureParticipantsFetchedOnce(t *testing.T) {
	tracker, fake, s := newFixture(t)
	ctx := context.Background()

	result, err := tracker.EnsureParticipantsFetched(ctx, occurrenceUUID, 81234567890)
	require.NoError(t, err)
	assert.False(t, result.AlreadyFetched)
	assert.False(t, result.Truncated)
	assert.Equal(t, 4, result.Inserted)

	rows, err := s.ListParticipants(ctx, occurrenceUUID)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	ana := rows[0]
	assert.Equal(t, "Ana", ana.UserName)
	assert.Equal(t, int64(81234567890), ana.MeetingNumber)
	assert.Equal(t, "p-ana", ana.UserUUID)
	assert.Equal(t, "16778240", ana.UserID)
	assert.Equal(t, at(22, 0).Unix(), ana.JoinTime)
	assert.Equal(t, int64(3000), ana.Duration)
	assert.Equal(t, 80.0, ana.Attentiveness)
	assert.False(t, ana.Recording)

	result, err = tracker.EnsureParticipantsFetched(ctx, occurrenceUUID, 81234567890)
	require.NoError(t, err)
	assert.True(t, result.AlreadyFetched)
	assert.Equal(t, 1, fake.CallCount("GetParticipantReport"))
}

func TestEnsureParticipantsFetchedFlagsTruncatedReport(t *testing.T) {
	tracker, fake, _ := newFixture(t)
	fake.ParticipantReport[occurrenceUUID].NextPageToken = "next"

	result, err := tracker.EnsureParticipantsFetched(context.Background(), occurrenceUUID, 81234567890)
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Equal(t, 4, result.Inserted)
}

func TestEnsureParticipantsFetchedPropagatesErrors(t *testing.T) {
	tracker, fake, s := newFixture(t)
	fake.Errors["GetParticipantReport"] = errors.New("zoom unavailable")

	_, err := tracker.EnsureParticipantsFetched(context.Background(), occurrenceUUID, 81234567890)
	require.Error(t, err)

	exists, err := s.HasParticipants(context.Background(), occurrenceUUID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRecordRecordingView(t *testing.T) {
	tracker, _, s := newFixture(t)
	ctx := context.Background()

	_, err := tracker.EnsureParticipantsFetched(ctx, occurrenceUUID, 81234567890)
	require.NoError(t, err)

	err = tracker.RecordRecordingView(ctx, occurrenceUUID, View{UserID: 42, Name: "Carla", Email: " Carla@Student.edu "})
	require.NoError(t, err)

	rows, err := s.ListParticipants(ctx, occurrenceUUID)
	require.NoError(t, err)
	var view *store.Participant
	for i := range rows {
		if rows[i].Recording {
			view = &rows[i]
		}
	}
	require.NotNil(t, view, "expected a recording view row")
	assert.Equal(t, "carla@student.edu", view.UserEmail)
	assert.Equal(t, "42", view.UserID)
	assert.Equal(t, int64(81234567890), view.MeetingNumber)
	assert.Equal(t, viewTime.Unix(), view.JoinTime)
	assert.Equal(t, view.JoinTime, view.LeaveTime)
	assert.Zero(t, view.Duration)

	logs, err := s.ListLogs(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, AuditRecordingView, logs[0].ClassFunction)
	assert.Equal(t, "Recording occ/1== accessed by user 42.", logs[0].Message)

	assert.Error(t, tracker.RecordRecordingView(ctx, "", View{UserID: 1}))
}

func TestReport(t *testing.T) {
	tracker, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := tracker.EnsureParticipantsFetched(ctx, occurrenceUUID, 81234567890)
	require.NoError(t, err)
	require.NoError(t, tracker.RecordRecordingView(ctx, occurrenceUUID, View{UserID: 42, Name: "Carla", Email: "carla@student.edu"}))

	report, err := tracker.Report(ctx, occurrenceUUID, "")
	require.NoError(t, err)

	assert.Equal(t, "Cálculo I", report.Topic)
	assert.Equal(t, "81-234-567-890", report.FormattedNumber)
	assert.Equal(t, "05/03/2024 19:00:00", report.Start)
	assert.Equal(t, int64(5400), report.SessionSeconds)
	assert.Empty(t, report.Message)
	require.Len(t, report.Rows, 3, "host should be excluded")

	ana := report.Rows[0]
	assert.Equal(t, "Ana", ana.Name)
	assert.Equal(t, []string{"19:00:00 - 19:50:00", "20:00:00 - 20:30:00"}, ana.Intervals)
	assert.Equal(t, "80", ana.Minutes)
	assert.Equal(t, "88.9%", ana.Percent)
	assert.Equal(t, "90%", ana.Attentiveness)
	assert.True(t, ana.Live)

	bruno := report.Rows[1]
	assert.Equal(t, "70", bruno.Minutes)
	assert.Equal(t, "77.8%", bruno.Percent)
	assert.Equal(t, "0%", bruno.Attentiveness)

	carla := report.Rows[2]
	assert.False(t, carla.Live)
	assert.Equal(t, []string{"07/03/2024 09:00:00*"}, carla.Intervals)
	assert.Equal(t, "N/D", carla.Minutes)
	assert.Equal(t, "N/D", carla.Percent)
	assert.Equal(t, "N/D", carla.Attentiveness)
}

func TestReportFilteredToViewer(t *testing.T) {
	tracker, _, _ := newFixture(t)
	ctx := context.Background()
	_, err := tracker.EnsureParticipantsFetched(ctx, occurrenceUUID, 81234567890)
	require.NoError(t, err)

	report, err := tracker.Report(ctx, occurrenceUUID, "BRUNO@student.edu")
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "Bruno", report.Rows[0].Name)
	// the session length still covers everyone
	assert.Equal(t, "77.8%", report.Rows[0].Percent)

	report, err = tracker.Report(ctx, occurrenceUUID, "someone@else.edu")
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	assert.Equal(t, "You do not have permission to see these participants.", report.Message)
}

func TestReportWithoutData(t *testing.T) {
	tracker, fake, _ := newFixture(t)
	delete(fake.PastMeetings, occurrenceUUID)

	report, err := tracker.Report(context.Background(), occurrenceUUID, "")
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	assert.Equal(t, "No participant data for this meeting.", report.Message)
}

func TestReportInPortuguese(t *testing.T) {
	tracker, _, s := newFixture(t)
	tracker.translator = i18n.New("pt-BR")
	ctx := context.Background()

	report, err := tracker.Report(ctx, occurrenceUUID, "")
	require.NoError(t, err)
	assert.Equal(t, "Não há dados de participantes para esta reunião.", report.Message)

	require.NoError(t, s.InsertParticipants(ctx, []store.Participant{{
		MeetingUUID: occurrenceUUID, Recording: true, UserName: "Dani", UserEmail: "dani@student.edu",
		JoinTime: viewTime.Unix(), LeaveTime: viewTime.Unix(),
	}}))
	report, err = tracker.Report(ctx, occurrenceUUID, "")
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "N/D", report.Rows[0].Minutes)
}

func TestParseAttentiveness(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"87%", 87},
		{" 100 % ", 100},
		{"42.5%", 42.5},
		{"", 0},
		{"n/a", 0},
		{"NaN%", 0},
	}

	for _, tt := range tests {
		if got := ParseAttentiveness(tt.input); got != tt.expected {
			t.Errorf("ParseAttentiveness(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}
