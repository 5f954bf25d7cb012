package recordings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/logging"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom/zoomtest"
)

func apiTime(value string) zoom.APITime {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return zoom.APITime{Time: t}
}

func newTestRepository(t *testing.T, api zoom.API, lang string) *Repository {
	t.Helper()
	repo, err := NewRepository(api, Options{
		Translator: i18n.New(lang),
		Logger:     logging.NewNopLogger(),
		Now: func() time.Time {
			return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	return repo
}

func sampleRecording() *zoom.Recording {
	return &zoom.Recording{
		UUID:      "abc/+def==",
		ID:        81234567890,
		HostID:    "host-1",
		Topic:     "Cálculo I",
		StartTime: apiTime("2024-03-05T22:00:00Z"),
		RecordingFiles: []zoom.RecordingFile{
			{
				ID:             "file-1",
				FileType:       "MP4",
				FileSize:       25 * 1024 * 1024,
				PlayURL:        "https://zoom.us/rec/play/1",
				DownloadURL:    "https://zoom.us/rec/download/1",
				RecordingStart: apiTime("2024-03-05T22:00:05Z"),
				RecordingEnd:   apiTime("2024-03-06T00:15:35Z"),
				Status:         "completed",
			},
			{
				ID:             "file-2",
				FileType:       "CHAT",
				FileSize:       900,
				DownloadURL:    "https://zoom.us/rec/download/2",
				RecordingStart: apiTime("2024-03-05T22:00:05Z"),
				RecordingEnd:   apiTime("2024-03-06T00:15:35Z"),
			},
		},
	}
}

func TestGetRecordingDecoratesFiles(t *testing.T) {
	api := zoomtest.New()
	api.Recordings["abc/+def=="] = sampleRecording()
	api.Users["host-1"] = &zoom.User{ID: "host-1", Email: "prof@prof.infnet.edu.br", Timezone: "America/Sao_Paulo"}

	repo := newTestRepository(t, api, "pt-BR")
	recording, err := repo.GetRecording(context.Background(), "abc/+def==")
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}

	if recording.FormattedNumber != "81-234-567-890" {
		t.Errorf("Expected formatted number 81-234-567-890, got %s", recording.FormattedNumber)
	}
	if recording.EncodedUUID != "abc%2F%2Bdef%3D%3D" {
		t.Errorf("Unexpected encoded uuid %s", recording.EncodedUUID)
	}
	if recording.StartUnix != 1709676000 {
		t.Errorf("Expected start unix 1709676000, got %d", recording.StartUnix)
	}
	if recording.ClassDate() != "05/03/2024" {
		t.Errorf("Expected class date 05/03/2024, got %s", recording.ClassDate())
	}

	video := recording.Files[0]
	if video.StartFormatted != "05/03/2024 19:00:05" {
		t.Errorf("Expected start in Sao Paulo time, got %s", video.StartFormatted)
	}
	if video.StartForDownload != "2024-03-05 19:00:05" {
		t.Errorf("Unexpected download start %s", video.StartForDownload)
	}
	if video.Duration != "02:15:30" {
		t.Errorf("Expected duration 02:15:30, got %s", video.Duration)
	}
	if video.SizeFormatted != "25 MB" {
		t.Errorf("Expected 25 MB, got %s", video.SizeFormatted)
	}
	if video.TypeLabel != "Vídeo" || video.StatusLabel != "Disponível" {
		t.Errorf("Unexpected labels %q %q", video.TypeLabel, video.StatusLabel)
	}
	if recording.Files[1].StatusLabel != "" {
		t.Errorf("Expected empty status label, got %q", recording.Files[1].StatusLabel)
	}
	if recording.FirstFileStart() != "05/03/2024 19:00:05" {
		t.Errorf("Unexpected first file start %s", recording.FirstFileStart())
	}
}

func TestTimezoneResolution(t *testing.T) {
	api := zoomtest.New()
	repo := newTestRepository(t, api, "en")

	tests := []struct {
		name      string
		meetingTZ string
		host      *zoom.User
		expected  string
	}{
		{"meeting timezone wins", "Europe/Lisbon", &zoom.User{Timezone: "America/New_York"}, "Europe/Lisbon"},
		{"host timezone", "", &zoom.User{Timezone: "America/New_York"}, "America/New_York"},
		{"default", "", nil, "America/Sao_Paulo"},
		{"unknown falls back to default", "Mars/Olympus", nil, "America/Sao_Paulo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repo.Location(tt.meetingTZ, tt.host).String(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestGetRecordingWithoutHost(t *testing.T) {
	api := zoomtest.New()
	api.Recordings["abc/+def=="] = sampleRecording()

	repo := newTestRepository(t, api, "en")
	recording, err := repo.GetRecording(context.Background(), "abc/+def==")
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if recording.Host != nil {
		t.Error("Expected nil host")
	}
	if recording.Timezone != DefaultTimezone {
		t.Errorf("Expected default timezone, got %s", recording.Timezone)
	}
}

func TestGetRecordingNotFound(t *testing.T) {
	repo := newTestRepository(t, zoomtest.New(), "en")

	_, err := repo.GetRecording(context.Background(), "missing")
	if !zoom.IsNotFound(err) {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestGetUserIsCached(t *testing.T) {
	api := zoomtest.New()
	api.Users["host-1"] = &zoom.User{ID: "host-1", Email: "prof@example.com"}
	repo := newTestRepository(t, api, "en")

	for i := 0; i < 3; i++ {
		user, err := repo.GetUser(context.Background(), "host-1")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if user.Email != "prof@example.com" {
			t.Errorf("Unexpected user %+v", user)
		}
	}
	if calls := api.CallCount("GetUser"); calls != 1 {
		t.Errorf("Expected 1 API call, got %d", calls)
	}

	if _, err := repo.GetUser(context.Background(), ""); err == nil {
		t.Error("Expected error for empty id")
	}
}

func TestListHostRecordingsSortedAscending(t *testing.T) {
	api := zoomtest.New()
	api.Users["host-1"] = &zoom.User{ID: "host-1"}
	api.HostRecordings["host-1"] = []zoom.Recording{
		{UUID: "late", ID: 1, HostID: "host-1", StartTime: apiTime("2024-03-12T22:00:00Z")},
		{UUID: "early", ID: 1, HostID: "host-1", StartTime: apiTime("2024-03-05T22:00:00Z")},
	}

	repo := newTestRepository(t, api, "en")
	recordings, err := repo.ListHostRecordings(context.Background(), "host-1")
	if err != nil {
		t.Fatalf("ListHostRecordings failed: %v", err)
	}
	if len(recordings) != 2 || recordings[0].UUID != "early" || recordings[1].UUID != "late" {
		t.Errorf("Unexpected order %+v", recordings)
	}
	if calls := api.CallCount("GetUser"); calls != 1 {
		t.Errorf("Expected host to be loaded once, got %d calls", calls)
	}
}

func TestGetOccurrences(t *testing.T) {
	api := zoomtest.New()
	api.Instances["81234567890"] = []zoom.PastMeetingInstance{{UUID: "occ-1"}, {UUID: "occ-2"}, {UUID: "occ-3"}}
	for _, uuid := range []string{"occ-1", "occ-2", "occ-3"} {
		api.PastMeetings[uuid] = &zoom.PastMeeting{UUID: uuid, ID: 81234567890, StartTime: apiTime("2024-03-05T22:00:00Z")}
	}

	repo := newTestRepository(t, api, "en")
	occurrences, err := repo.GetOccurrences(context.Background(), 81234567890, []string{"occ-2"})
	if err != nil {
		t.Fatalf("GetOccurrences failed: %v", err)
	}

	if len(occurrences) != 2 || occurrences[0].UUID != "occ-1" || occurrences[1].UUID != "occ-3" {
		t.Errorf("Unexpected occurrences %+v", occurrences)
	}
	if calls := api.CallCount("GetPastMeeting"); calls != 2 {
		t.Errorf("Expected ignored occurrence not to be fetched, got %d calls", calls)
	}
}

func TestGetOccurrencesFallsBackToMeeting(t *testing.T) {
	api := zoomtest.New()
	api.Meetings["81234567890"] = &zoom.Meeting{
		UUID:      "only",
		ID:        81234567890,
		StartTime: apiTime("2024-03-05T22:00:00Z"),
		Duration:  90,
	}

	repo := newTestRepository(t, api, "en")
	occurrences, err := repo.GetOccurrences(context.Background(), 81234567890, nil)
	if err != nil {
		t.Fatalf("GetOccurrences failed: %v", err)
	}
	if len(occurrences) != 1 || occurrences[0].UUID != "only" {
		t.Fatalf("Unexpected occurrences %+v", occurrences)
	}
	if !occurrences[0].EndTime.Equal(occurrences[0].StartTime.Add(90 * time.Minute)) {
		t.Errorf("Expected end time from duration, got %v", occurrences[0].EndTime)
	}

	ignored, err := repo.GetOccurrences(context.Background(), 81234567890, []string{"only"})
	if err != nil {
		t.Fatalf("GetOccurrences failed: %v", err)
	}
	if len(ignored) != 0 {
		t.Errorf("Expected ignored meeting to be skipped, got %+v", ignored)
	}
}

func TestGetOccurrencesPropagatesErrors(t *testing.T) {
	api := zoomtest.New()
	api.Errors["ListPastMeetingInstances"] = errors.New("connection reset")

	repo := newTestRepository(t, api, "en")
	if _, err := repo.GetOccurrences(context.Background(), 1, nil); err == nil {
		t.Error("Expected transport error to be returned")
	}
}

func TestListMeetings(t *testing.T) {
	api := zoomtest.New()
	api.Users["host-1"] = &zoom.User{ID: "host-1", Email: "prof@example.com", Status: "active"}
	api.UserMeetings["host-1/scheduled"] = []zoom.Meeting{
		{UUID: "past", ID: 111, Type: 2, StartTime: apiTime("2024-03-01T10:00:00Z")},
		{UUID: "older", ID: 112, Type: 2, StartTime: apiTime("2024-02-01T10:00:00Z")},
		{UUID: "soon", ID: 113, Type: 2, StartTime: apiTime("2024-03-20T10:00:00Z")},
		{UUID: "later", ID: 114, Type: 2, StartTime: apiTime("2024-04-20T10:00:00Z")},
		{UUID: "no-time", ID: 115, Type: 3},
	}
	api.UserMeetings["host-1/live"] = []zoom.Meeting{
		{UUID: "live", ID: 116, Type: 2, StartTime: apiTime("2024-03-10T11:00:00Z")},
	}
	api.Instances["115"] = []zoom.PastMeetingInstance{{UUID: "rec-1"}}
	api.PastMeetings["rec-1"] = &zoom.PastMeeting{UUID: "rec-1", ID: 115, StartTime: apiTime("2024-03-08T10:00:00Z")}

	repo := newTestRepository(t, api, "en")
	list, err := repo.ListMeetings(context.Background())
	if err != nil {
		t.Fatalf("ListMeetings failed: %v", err)
	}

	uuids := func(meetings []MeetingSummary) []string {
		var result []string
		for _, m := range meetings {
			result = append(result, m.UUID)
		}
		return result
	}

	if got := uuids(list.Past); len(got) != 3 || got[0] != "rec-1" || got[1] != "past" || got[2] != "older" {
		t.Errorf("Unexpected past meetings %v", got)
	}
	if got := uuids(list.Upcoming); len(got) != 2 || got[0] != "soon" || got[1] != "later" {
		t.Errorf("Unexpected upcoming meetings %v", got)
	}
	if got := uuids(list.Live); len(got) != 1 || got[0] != "live" {
		t.Errorf("Unexpected live meetings %v", got)
	}
	if list.Total() != 6 {
		t.Errorf("Expected 6 meetings, got %d", list.Total())
	}
	if list.Past[0].HostEmail != "prof@example.com" || list.Past[0].TypeLabel != "Recurring (no fixed time)" {
		t.Errorf("Unexpected summary %+v", list.Past[0])
	}
}

func TestDeleteRecordingFile(t *testing.T) {
	api := zoomtest.New()
	repo := newTestRepository(t, api, "en")

	status, err := repo.DeleteRecordingFile(context.Background(), "occ-1", "file-1")
	if err != nil || status != 204 {
		t.Fatalf("Expected 204, got %d %v", status, err)
	}
	if len(api.Deleted) != 1 || api.Deleted[0] != "occ-1/file-1" {
		t.Errorf("Unexpected deletions %v", api.Deleted)
	}

	api.DeleteStatus = 404
	status, err = repo.DeleteRecordingFile(context.Background(), "occ-1", "file-2")
	if err == nil || status != 404 {
		t.Errorf("Expected failure with 404, got %d %v", status, err)
	}
}
