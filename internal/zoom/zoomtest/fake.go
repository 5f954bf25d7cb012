// Package zoomtest provides an in-memory zoom.API for tests
package zoomtest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
)

// Fake implements zoom.API from maps keyed by id or UUID. Unknown keys
// return a Zoom 404 error. Calls are counted per method.
type Fake struct {
	mu sync.Mutex

	Users             map[string]*zoom.User
	Meetings          map[string]*zoom.Meeting
	UserMeetings      map[string][]zoom.Meeting // key: userID + "/" + type
	Recordings        map[string]*zoom.Recording
	HostRecordings    map[string][]zoom.Recording
	Instances         map[string][]zoom.PastMeetingInstance
	PastMeetings      map[string]*zoom.PastMeeting
	ParticipantReport map[string]*zoom.ParticipantReport

	// DeleteStatus is returned by DeleteRecordingFile, 204 when zero
	DeleteStatus int
	Deleted      []string // "uuid/fileID"

	// Errors forces a method to fail
	Errors map[string]error

	Calls map[string]int
}

// New returns an empty fake
func New() *Fake {
	return &Fake{
		Users:             map[string]*zoom.User{},
		Meetings:          map[string]*zoom.Meeting{},
		UserMeetings:      map[string][]zoom.Meeting{},
		Recordings:        map[string]*zoom.Recording{},
		HostRecordings:    map[string][]zoom.Recording{},
		Instances:         map[string][]zoom.PastMeetingInstance{},
		PastMeetings:      map[string]*zoom.PastMeeting{},
		ParticipantReport: map[string]*zoom.ParticipantReport{},
		Errors:            map[string]error{},
		Calls:             map[string]int{},
	}
}

// CallCount returns how many times method was called
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

func (f *Fake) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[method]++
	return f.Errors[method]
}

func notFound(kind, id string) error {
	return &zoom.ZoomAPIError{Code: 3001, Message: fmt.Sprintf("%s %s does not exist", kind, id), Status: http.StatusNotFound}
}

func (f *Fake) ListUsers(ctx context.Context, status string) ([]zoom.User, error) {
	if err := f.record("ListUsers"); err != nil {
		return nil, err
	}
	var users []zoom.User
	for _, user := range f.Users {
		if status == "" || user.Status == "" || user.Status == status {
			users = append(users, *user)
		}
	}
	return users, nil
}

func (f *Fake) GetUser(ctx context.Context, userID string) (*zoom.User, error) {
	if err := f.record("GetUser"); err != nil {
		return nil, err
	}
	user, ok := f.Users[userID]
	if !ok {
		return nil, notFound("user", userID)
	}
	copied := *user
	return &copied, nil
}

func (f *Fake) ListUserMeetings(ctx context.Context, userID, meetingType string) ([]zoom.Meeting, error) {
	if err := f.record("ListUserMeetings"); err != nil {
		return nil, err
	}
	return f.UserMeetings[userID+"/"+meetingType], nil
}

func (f *Fake) GetAllUserRecordings(ctx context.Context, userID string, from time.Time) ([]zoom.Recording, error) {
	if err := f.record("GetAllUserRecordings"); err != nil {
		return nil, err
	}
	return f.HostRecordings[userID], nil
}

func (f *Fake) GetMeeting(ctx context.Context, meetingID string) (*zoom.Meeting, error) {
	if err := f.record("GetMeeting"); err != nil {
		return nil, err
	}
	meeting, ok := f.Meetings[meetingID]
	if !ok {
		return nil, notFound("meeting", meetingID)
	}
	copied := *meeting
	return &copied, nil
}

func (f *Fake) GetMeetingRecordings(ctx context.Context, meetingID string) (*zoom.Recording, error) {
	if err := f.record("GetMeetingRecordings"); err != nil {
		return nil, err
	}
	recording, ok := f.Recordings[meetingID]
	if !ok {
		return nil, notFound("recording", meetingID)
	}
	copied := *recording
	return &copied, nil
}

func (f *Fake) ListPastMeetingInstances(ctx context.Context, meetingID string) ([]zoom.PastMeetingInstance, error) {
	if err := f.record("ListPastMeetingInstances"); err != nil {
		return nil, err
	}
	return f.Instances[meetingID], nil
}

func (f *Fake) GetPastMeeting(ctx context.Context, meetingUUID string) (*zoom.PastMeeting, error) {
	if err := f.record("GetPastMeeting"); err != nil {
		return nil, err
	}
	past, ok := f.PastMeetings[meetingUUID]
	if !ok {
		return nil, notFound("meeting", meetingUUID)
	}
	copied := *past
	return &copied, nil
}

func (f *Fake) GetParticipantReport(ctx context.Context, meetingUUID string) (*zoom.ParticipantReport, error) {
	if err := f.record("GetParticipantReport"); err != nil {
		return nil, err
	}
	report, ok := f.ParticipantReport[meetingUUID]
	if !ok {
		return &zoom.ParticipantReport{}, nil
	}
	copied := *report
	return &copied, nil
}

func (f *Fake) DeleteRecordingFile(ctx context.Context, meetingUUID, fileID string) (int, error) {
	if err := f.record("DeleteRecordingFile"); err != nil {
		return 0, err
	}
	status := f.DeleteStatus
	if status == 0 {
		status = http.StatusNoContent
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if status == http.StatusNoContent {
		f.Deleted = append(f.Deleted, meetingUUID+"/"+fileID)
		return status, nil
	}
	return status, fmt.Errorf("%w: delete returned status %d", zoom.ErrUnexpectedResponse, status)
}

var _ zoom.API = (*Fake)(nil)
