package recordings

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/logging"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
)

// DefaultTimezone applies when neither the meeting nor its host has one
const DefaultTimezone = "America/Sao_Paulo"

// Zoom meeting types that repeat
const (
	meetingTypeRecurringNoFixedTime = 3
	meetingTypeRecurringFixedTime   = 8
)

// Options configures a Repository
type Options struct {
	Translator      *i18n.Translator
	DefaultTimezone string
	UserCacheTTL    time.Duration
	Logger          logging.Logger
	Now             func() time.Time
}

// Repository is the read side of the Zoom account used by the sync
type Repository struct {
	api             zoom.API
	translator      *i18n.Translator
	users           *cache.Cache
	defaultLocation *time.Location
	logger          logging.Logger
	now             func() time.Time
}

// NewRepository creates a repository over api
func NewRepository(api zoom.API, opts Options) (*Repository, error) {
	if api == nil {
		return nil, fmt.Errorf("zoom api cannot be nil")
	}

	tzName := opts.DefaultTimezone
	if tzName == "" {
		tzName = DefaultTimezone
	}
	location, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid default timezone %q: %w", tzName, err)
	}

	ttl := opts.UserCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	translator := opts.Translator
	if translator == nil {
		translator = i18n.New("en")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Repository{
		api:             api,
		translator:      translator,
		users:           cache.New(ttl, 2*ttl),
		defaultLocation: location,
		logger:          logger,
		now:             now,
	}, nil
}

// Translator returns the translator used for labels
func (r *Repository) Translator() *i18n.Translator {
	return r.translator
}

// GetUser returns a Zoom user, served from the cache when possible
func (r *Repository) GetUser(ctx context.Context, userID string) (*zoom.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	if cached, ok := r.users.Get(userID); ok {
		return cached.(*zoom.User), nil
	}

	user, err := r.api.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	r.users.Set(userID, user, cache.DefaultExpiration)
	return user, nil
}

// GetMeeting returns a meeting by number or occurrence UUID
func (r *Repository) GetMeeting(ctx context.Context, meetingID string) (*zoom.Meeting, error) {
	meeting, err := r.api.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting %s: %w", meetingID, err)
	}
	return meeting, nil
}

// GetRecording returns the decorated cloud recording of a meeting or occurrence
func (r *Repository) GetRecording(ctx context.Context, meetingID string) (*MeetingRecordings, error) {
	recording, err := r.api.GetMeetingRecordings(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recordings of %s: %w", meetingID, err)
	}
	return r.decorate(ctx, *recording, nil), nil
}

// ListHostRecordings returns every recording of a host since the initial
// recording date, oldest first
func (r *Repository) ListHostRecordings(ctx context.Context, hostID string) ([]MeetingRecordings, error) {
	recordings, err := r.api.GetAllUserRecordings(ctx, hostID, zoom.InitialRecordingDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings of host %s: %w", hostID, err)
	}

	host := r.lookupHost(ctx, hostID)
	result := make([]MeetingRecordings, 0, len(recordings))
	for _, recording := range recordings {
		result = append(result, *r.decorate(ctx, recording, host))
	}
	SortByStart(result, true)
	return result, nil
}

// GetOccurrence returns one held occurrence by UUID
func (r *Repository) GetOccurrence(ctx context.Context, uuid string) (*Occurrence, error) {
	past, err := r.api.GetPastMeeting(ctx, uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to get occurrence %s: %w", uuid, err)
	}
	occurrence := occurrenceFromPast(*past)
	return &occurrence, nil
}

// GetOccurrences returns the held occurrences of a meeting number. A meeting
// without listed instances yields the meeting itself. Occurrences whose UUID
// is in ignored are skipped.
func (r *Repository) GetOccurrences(ctx context.Context, meetingNumber int64, ignored []string) ([]Occurrence, error) {
	skip := make(map[string]bool, len(ignored))
	for _, uuid := range ignored {
		skip[uuid] = true
	}

	number := strconv.FormatInt(meetingNumber, 10)
	instances, err := r.api.ListPastMeetingInstances(ctx, number)
	if err != nil && !zoom.IsNotFound(err) {
		return nil, fmt.Errorf("failed to list occurrences of %s: %w", FormatMeetingNumber(meetingNumber), err)
	}

	var occurrences []Occurrence
	if len(instances) == 0 {
		meeting, err := r.GetMeeting(ctx, number)
		if err != nil {
			return nil, err
		}
		if !skip[meeting.UUID] {
			occurrences = append(occurrences, occurrenceFromMeeting(*meeting))
		}
		return occurrences, nil
	}

	for _, instance := range instances {
		if skip[instance.UUID] {
			continue
		}
		occurrence, err := r.GetOccurrence(ctx, instance.UUID)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, *occurrence)
	}
	return occurrences, nil
}

// ListMeetings returns the scheduled and live meetings of every active user.
// Recurring meetings are expanded into their held occurrences. Past meetings
// are newest first, upcoming and live soonest first.
func (r *Repository) ListMeetings(ctx context.Context) (*MeetingList, error) {
	users, err := r.api.ListUsers(ctx, "active")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	now := r.now()
	list := &MeetingList{}

	for _, user := range users {
		user := user
		r.users.Set(user.ID, &user, cache.DefaultExpiration)

		scheduled, err := r.api.ListUserMeetings(ctx, user.ID, "scheduled")
		if err != nil {
			return nil, err
		}
		for _, meeting := range scheduled {
			summaries, err := r.expandMeeting(ctx, meeting, &user)
			if err != nil {
				return nil, err
			}
			for _, summary := range summaries {
				if !summary.StartTime.IsZero() && !summary.StartTime.Before(now) {
					list.Upcoming = append(list.Upcoming, summary)
				} else {
					list.Past = append(list.Past, summary)
				}
			}
		}

		live, err := r.api.ListUserMeetings(ctx, user.ID, "live")
		if err != nil {
			return nil, err
		}
		for _, meeting := range live {
			list.Live = append(list.Live, r.summarize(meeting, &user))
		}
	}

	sortSummaries(list.Live, true)
	sortSummaries(list.Past, false)
	sortSummaries(list.Upcoming, true)
	return list, nil
}

func (r *Repository) expandMeeting(ctx context.Context, meeting zoom.Meeting, host *zoom.User) ([]MeetingSummary, error) {
	if meeting.Type != meetingTypeRecurringNoFixedTime && meeting.Type != meetingTypeRecurringFixedTime {
		return []MeetingSummary{r.summarize(meeting, host)}, nil
	}

	occurrences, err := r.GetOccurrences(ctx, meeting.ID, nil)
	if err != nil {
		return nil, err
	}

	summaries := make([]MeetingSummary, 0, len(occurrences))
	for _, occurrence := range occurrences {
		summary := r.summarize(meeting, host)
		summary.UUID = occurrence.UUID
		summary.StartTime = occurrence.StartTime
		summary.StartFormatted = r.formatTime(occurrence.StartTime, occurrence.Timezone, host)
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (r *Repository) summarize(meeting zoom.Meeting, host *zoom.User) MeetingSummary {
	summary := MeetingSummary{
		UUID:            meeting.UUID,
		Number:          meeting.ID,
		FormattedNumber: FormatMeetingNumber(meeting.ID),
		Topic:           meeting.Topic,
		Type:            meeting.Type,
		TypeLabel:       r.translator.MeetingType(meeting.Type),
		HostID:          meeting.HostID,
		HostEmail:       meeting.HostEmail,
		StartTime:       meeting.StartTime.Time,
		StartFormatted:  r.formatTime(meeting.StartTime.Time, meeting.Timezone, host),
	}
	if host != nil && summary.HostEmail == "" {
		summary.HostEmail = host.Email
	}
	return summary
}

// DeleteRecordingFile moves a recording file to the Zoom trash and returns the
// HTTP status
func (r *Repository) DeleteRecordingFile(ctx context.Context, occurrenceUUID, fileID string) (int, error) {
	status, err := r.api.DeleteRecordingFile(ctx, occurrenceUUID, fileID)
	if err != nil {
		return status, fmt.Errorf("failed to delete recording file %s: %w", fileID, err)
	}
	return status, nil
}

// Location resolves the timezone of a meeting: its own, else its host's,
// else the configured default. Unknown names fall back to the default.
func (r *Repository) Location(meetingTZ string, host *zoom.User) *time.Location {
	candidates := []string{meetingTZ}
	if host != nil {
		candidates = append(candidates, host.Timezone)
	}

	for _, name := range candidates {
		if name == "" {
			continue
		}
		location, err := time.LoadLocation(name)
		if err != nil {
			r.logger.Warn("Unknown timezone %q, using %s", name, r.defaultLocation)
			return r.defaultLocation
		}
		return location
	}
	return r.defaultLocation
}

func (r *Repository) formatTime(t time.Time, meetingTZ string, host *zoom.User) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.Location(meetingTZ, host)).Format(DateTimeLayout)
}

func (r *Repository) lookupHost(ctx context.Context, hostID string) *zoom.User {
	if hostID == "" {
		return nil
	}
	host, err := r.GetUser(ctx, hostID)
	if err != nil {
		r.logger.WarnWithContext(ctx, "Host %s could not be loaded, using default timezone: %v", hostID, err)
		return nil
	}
	return host
}

// decorate derives the display fields. host is looked up when nil.
func (r *Repository) decorate(ctx context.Context, recording zoom.Recording, host *zoom.User) *MeetingRecordings {
	if host == nil {
		host = r.lookupHost(ctx, recording.HostID)
	}
	location := r.Location(recording.Timezone, host)

	result := &MeetingRecordings{
		UUID:            recording.UUID,
		EncodedUUID:     EncodeMeetingUUID(recording.UUID),
		Number:          recording.ID,
		FormattedNumber: FormatMeetingNumber(recording.ID),
		Topic:           recording.Topic,
		HostID:          recording.HostID,
		Host:            host,
		Timezone:        location.String(),
		Location:        location,
		StartTime:       recording.StartTime.Time,
		TotalSize:       recording.TotalSize,
		ShareURL:        recording.ShareURL,
		Files:           make([]File, 0, len(recording.RecordingFiles)),
	}
	if !recording.StartTime.IsZero() {
		result.StartUnix = recording.StartTime.Unix()
	}

	for _, raw := range recording.RecordingFiles {
		start := raw.RecordingStart.In(location)
		end := raw.RecordingEnd.In(location)

		file := File{
			RecordingFile:          raw,
			Start:                  start,
			End:                    end,
			StartFormatted:         start.Format(DateTimeLayout),
			StartForDownload:       start.Format(DownloadLayout),
			EndFormatted:           end.Format(DateTimeLayout),
			Duration:               FormatDuration(end.Sub(start)),
			MeetingNumberFormatted: result.FormattedNumber,
			TypeLabel:              r.translator.FileType(raw.FileType),
		}
		if raw.FileSize > 0 {
			file.SizeFormatted = FormatFileSize(raw.FileSize)
		}
		if raw.Status != "" {
			file.StatusLabel = r.translator.RecordingStatus(raw.Status)
		}
		result.Files = append(result.Files, file)
	}

	return result
}

func occurrenceFromPast(past zoom.PastMeeting) Occurrence {
	return Occurrence{
		UUID:      past.UUID,
		Number:    past.ID,
		Topic:     past.Topic,
		HostID:    past.HostID,
		HostEmail: past.UserEmail,
		StartTime: past.StartTime.Time,
		EndTime:   past.EndTime.Time,
		Duration:  past.Duration,
	}
}

func occurrenceFromMeeting(meeting zoom.Meeting) Occurrence {
	occurrence := Occurrence{
		UUID:      meeting.UUID,
		Number:    meeting.ID,
		Topic:     meeting.Topic,
		HostID:    meeting.HostID,
		HostEmail: meeting.HostEmail,
		Timezone:  meeting.Timezone,
		StartTime: meeting.StartTime.Time,
		Duration:  meeting.Duration,
	}
	if !occurrence.StartTime.IsZero() && meeting.Duration > 0 {
		occurrence.EndTime = occurrence.StartTime.Add(time.Duration(meeting.Duration) * time.Minute)
	}
	return occurrence
}
