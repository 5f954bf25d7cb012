// Package zoom defines data structures for the Zoom REST API
package zoom

import (
	"bytes"
	"encoding/json"
	"time"
)

// APITime is a timestamp that tolerates the empty strings Zoom sends for
// meetings without a fixed start.
type APITime struct {
	time.Time
}

// UnmarshalJSON accepts RFC 3339 strings, "" and null
func (t *APITime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON writes the zero time as ""
func (t APITime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// User represents a Zoom account user
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Type      int    `json:"type"`
	Status    string `json:"status,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Dept      string `json:"dept,omitempty"`
}

// ListUsersResponse represents one page of the users endpoint
type ListUsersResponse struct {
	PageCount     int    `json:"page_count"`
	PageNumber    int    `json:"page_number"`
	PageSize      int    `json:"page_size"`
	TotalRecords  int    `json:"total_records"`
	NextPageToken string `json:"next_page_token,omitempty"`
	Users         []User `json:"users"`
}

// MeetingOccurrence is one scheduled slot of a recurring meeting
type MeetingOccurrence struct {
	OccurrenceID string  `json:"occurrence_id"`
	StartTime    APITime `json:"start_time"`
	Duration     int     `json:"duration"`
	Status       string  `json:"status"`
}

// Meeting represents a scheduled or live meeting
type Meeting struct {
	UUID        string              `json:"uuid"`
	ID          int64               `json:"id"`
	HostID      string              `json:"host_id"`
	HostEmail   string              `json:"host_email,omitempty"`
	Topic       string              `json:"topic"`
	Type        int                 `json:"type"`
	Status      string              `json:"status,omitempty"`
	StartTime   APITime             `json:"start_time"`
	Duration    int                 `json:"duration"`
	Timezone    string              `json:"timezone,omitempty"`
	CreatedAt   APITime             `json:"created_at"`
	JoinURL     string              `json:"join_url,omitempty"`
	Occurrences []MeetingOccurrence `json:"occurrences,omitempty"`
}

// ListMeetingsResponse represents one page of a user's meetings
type ListMeetingsResponse struct {
	PageCount     int       `json:"page_count"`
	PageNumber    int       `json:"page_number"`
	PageSize      int       `json:"page_size"`
	TotalRecords  int       `json:"total_records"`
	NextPageToken string    `json:"next_page_token,omitempty"`
	Meetings      []Meeting `json:"meetings"`
}

// PastMeetingInstance is one ended occurrence listed under a meeting number
type PastMeetingInstance struct {
	UUID      string  `json:"uuid"`
	StartTime APITime `json:"start_time"`
}

// PastMeetingInstancesResponse represents the past_meetings/{id}/instances endpoint
type PastMeetingInstancesResponse struct {
	Meetings []PastMeetingInstance `json:"meetings"`
}

// PastMeeting represents the details of one ended occurrence
type PastMeeting struct {
	UUID              string  `json:"uuid"`
	ID                int64   `json:"id"`
	HostID            string  `json:"host_id"`
	Type              int     `json:"type"`
	Topic             string  `json:"topic"`
	UserName          string  `json:"user_name"`
	UserEmail         string  `json:"user_email"`
	StartTime         APITime `json:"start_time"`
	EndTime           APITime `json:"end_time"`
	Duration          int     `json:"duration"`
	TotalMinutes      int     `json:"total_minutes"`
	ParticipantsCount int     `json:"participants_count"`
}

// RecordingFile represents a single recording file within a meeting recording
type RecordingFile struct {
	ID             string  `json:"id"`
	MeetingID      string  `json:"meeting_id"`
	RecordingStart APITime `json:"recording_start"`
	RecordingEnd   APITime `json:"recording_end"`
	FileType       string  `json:"file_type"`
	FileExtension  string  `json:"file_extension,omitempty"`
	FileSize       int64   `json:"file_size"`
	PlayURL        string  `json:"play_url,omitempty"`
	DownloadURL    string  `json:"download_url"`
	Status         string  `json:"status"`
	RecordingType  string  `json:"recording_type,omitempty"`
}

// Recording represents one occurrence's cloud recording with all associated files
type Recording struct {
	UUID           string          `json:"uuid"`
	ID             int64           `json:"id"`
	AccountID      string          `json:"account_id"`
	HostID         string          `json:"host_id"`
	Topic          string          `json:"topic"`
	Type           int             `json:"type"`
	StartTime      APITime         `json:"start_time"`
	Timezone       string          `json:"timezone,omitempty"`
	Duration       int             `json:"duration"`
	TotalSize      int64           `json:"total_size"`
	RecordingCount int             `json:"recording_count"`
	ShareURL       string          `json:"share_url,omitempty"`
	RecordingFiles []RecordingFile `json:"recording_files"`
}

// ListRecordingsResponse represents the response from the list recordings API endpoint
type ListRecordingsResponse struct {
	From          string      `json:"from"`
	To            string      `json:"to"`
	PageCount     int         `json:"page_count"`
	PageSize      int         `json:"page_size"`
	TotalRecords  int         `json:"total_records"`
	NextPageToken string      `json:"next_page_token,omitempty"`
	Meetings      []Recording `json:"meetings"`
}

// ReportParticipant is one join/leave interval from the participants report
type ReportParticipant struct {
	ID                 string  `json:"id"`
	UserID             string  `json:"user_id"`
	Name               string  `json:"name"`
	UserEmail          string  `json:"user_email"`
	JoinTime           APITime `json:"join_time"`
	LeaveTime          APITime `json:"leave_time"`
	Duration           int     `json:"duration"`
	AttentivenessScore string  `json:"attentiveness_score"`
}

// ParticipantReport represents one page of report/meetings/{uuid}/participants
type ParticipantReport struct {
	PageCount     int                 `json:"page_count"`
	PageSize      int                 `json:"page_size"`
	TotalRecords  int                 `json:"total_records"`
	NextPageToken string              `json:"next_page_token,omitempty"`
	Participants  []ReportParticipant `json:"participants"`
}
