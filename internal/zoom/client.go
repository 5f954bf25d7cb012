// Package zoom provides API client for the Zoom REST endpoints used by the sync
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/logging"
)

const (
	// MaxPageSize is the largest page_size the list endpoints accept
	MaxPageSize = 300
	// RequestLogSource is the audit log source for failed requests
	RequestLogSource = "zoom.request"
)

// InitialRecordingDate is the earliest date recordings are listed from
var InitialRecordingDate = time.Date(2018, time.November, 1, 0, 0, 0, 0, time.UTC)

// ErrUnexpectedResponse is returned when a successful response does not have the expected shape
var ErrUnexpectedResponse = errors.New("unexpected response from zoom api")

// API defines the Zoom operations used by the repository and the sync
type API interface {
	ListUsers(ctx context.Context, status string) ([]User, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	ListUserMeetings(ctx context.Context, userID, meetingType string) ([]Meeting, error)
	GetAllUserRecordings(ctx context.Context, userID string, from time.Time) ([]Recording, error)
	GetMeeting(ctx context.Context, meetingID string) (*Meeting, error)
	GetMeetingRecordings(ctx context.Context, meetingID string) (*Recording, error)
	ListPastMeetingInstances(ctx context.Context, meetingID string) ([]PastMeetingInstance, error)
	GetPastMeeting(ctx context.Context, meetingUUID string) (*PastMeeting, error)
	GetParticipantReport(ctx context.Context, meetingUUID string) (*ParticipantReport, error)
	DeleteRecordingFile(ctx context.Context, meetingUUID, fileID string) (int, error)
}

// ErrorRecorder persists request failures to the audit log
type ErrorRecorder interface {
	AddLog(ctx context.Context, classFunction, message string) error
}

// Response is the raw outcome of one API call. A non-2xx response whose
// body is not a Zoom error document is a status sentinel.
type Response struct {
	StatusCode int
	Body       []byte
	APIError   *ZoomAPIError
}

// OK reports whether the call returned a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsSentinel reports whether the response carries only a status code
func (r *Response) IsSentinel() bool {
	return !r.OK() && r.APIError == nil
}

// Err converts a non-2xx response into an error
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	if r.APIError != nil {
		return r.APIError
	}
	return &HTTPError{
		StatusCode: r.StatusCode,
		Status:     http.StatusText(r.StatusCode),
		Body:       string(r.Body),
	}
}

// Decode unmarshals a successful response into v
func (r *Response) Decode(v interface{}) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("%w: empty body", ErrUnexpectedResponse)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}

// ZoomClient implements the API interface
type ZoomClient struct {
	httpClient *AuthenticatedRetryClient
	baseURL    string
	logger     logging.Logger
	recorder   ErrorRecorder
}

// NewZoomClient creates a new Zoom API client
func NewZoomClient(httpClient *AuthenticatedRetryClient, baseURL string) *ZoomClient {
	return &ZoomClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logging.GetDefaultLogger(),
	}
}

// SetLogger replaces the client logger
func (c *ZoomClient) SetLogger(logger logging.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetErrorRecorder attaches an audit log for request failures
func (c *ZoomClient) SetErrorRecorder(recorder ErrorRecorder) {
	c.recorder = recorder
}

// EncodeUUID double URL-encodes a meeting UUID for use in a path segment.
// Numeric meeting ids pass through unchanged.
func EncodeUUID(uuid string) string {
	return url.QueryEscape(url.QueryEscape(uuid))
}

// Call performs one request. params are sent as the query string for GET and
// DELETE and as a JSON object otherwise. The returned error is set only when no
// response was received; API failures are described by the Response.
func (c *ZoomClient) Call(ctx context.Context, endpoint string, params url.Values, method string) (*Response, error) {
	var body interface{}
	if method != http.MethodGet && method != http.MethodDelete && len(params) > 0 {
		object := make(map[string]string, len(params))
		for key := range params {
			object[key] = params.Get(key)
		}
		body = object
		params = nil
	}
	return c.call(ctx, method, endpoint, params, body)
}

// CallJSON performs one request with an arbitrary JSON body
func (c *ZoomClient) CallJSON(ctx context.Context, method, endpoint string, body interface{}) (*Response, error) {
	return c.call(ctx, method, endpoint, nil, body)
}

func (c *ZoomClient) call(ctx context.Context, method, endpoint string, params url.Values, body interface{}) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	requestURL := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID, _ := logging.GetRequestID(ctx)
	c.logger.LogAPIRequest(logging.APIRequest{
		Method:    method,
		URL:       requestURL,
		RequestID: requestID,
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordError(ctx, err.Error())
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		c.recordError(ctx, err.Error())
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result := &Response{StatusCode: resp.StatusCode, Body: respBody.Bytes()}
	c.logger.LogAPIResponse(logging.APIResponse{
		StatusCode: resp.StatusCode,
		Body:       respBody.String(),
		Duration:   time.Since(start),
		RequestID:  requestID,
		Success:    result.OK(),
	})

	if !result.OK() {
		result.APIError = parseZoomError(resp.StatusCode, result.Body)
		c.recordError(ctx, result.Err().Error())
	}
	return result, nil
}

func (c *ZoomClient) recordError(ctx context.Context, message string) {
	c.logger.ErrorWithContext(ctx, "Zoom request failed: %s", message)
	if c.recorder == nil {
		return
	}
	if err := c.recorder.AddLog(ctx, RequestLogSource, "Error: "+message); err != nil {
		c.logger.WarnWithContext(ctx, "Failed to write audit log: %v", err)
	}
}

func (c *ZoomClient) get(ctx context.Context, endpoint string, params url.Values, v interface{}) error {
	resp, err := c.Call(ctx, endpoint, params, http.MethodGet)
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

// ListUsers retrieves every user with the given status, following pagination
func (c *ZoomClient) ListUsers(ctx context.Context, status string) ([]User, error) {
	var users []User
	nextPageToken := ""

	for {
		params := url.Values{}
		params.Set("page_size", strconv.Itoa(MaxPageSize))
		if status != "" {
			params.Set("status", status)
		}
		if nextPageToken != "" {
			params.Set("next_page_token", nextPageToken)
		}

		var page ListUsersResponse
		if err := c.get(ctx, "users", params, &page); err != nil {
			return nil, fmt.Errorf("failed to list users (page token: %s): %w", nextPageToken, err)
		}
		users = append(users, page.Users...)

		if page.NextPageToken == "" {
			return users, nil
		}
		nextPageToken = page.NextPageToken
	}
}

// GetUser retrieves a single user by id or email
func (c *ZoomClient) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.get(ctx, "users/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUserMeetings retrieves a user's meetings of the given type (scheduled, live, upcoming)
func (c *ZoomClient) ListUserMeetings(ctx context.Context, userID, meetingType string) ([]Meeting, error) {
	var meetings []Meeting
	nextPageToken := ""

	for {
		params := url.Values{}
		params.Set("page_size", strconv.Itoa(MaxPageSize))
		if meetingType != "" {
			params.Set("type", meetingType)
		}
		if nextPageToken != "" {
			params.Set("next_page_token", nextPageToken)
		}

		var page ListMeetingsResponse
		endpoint := "users/" + url.PathEscape(userID) + "/meetings"
		if err := c.get(ctx, endpoint, params, &page); err != nil {
			return nil, fmt.Errorf("failed to list meetings for %s: %w", userID, err)
		}
		meetings = append(meetings, page.Meetings...)

		if page.NextPageToken == "" {
			return meetings, nil
		}
		nextPageToken = page.NextPageToken
	}
}

// ListRecordingsParams holds parameters for listing recordings
type ListRecordingsParams struct {
	From          *time.Time // Start date for the date range
	To            *time.Time // End date for the date range
	PageSize      int        // Number of records per page (max: 300)
	NextPageToken string     // Next page token for pagination
}

// ListUserRecordings retrieves one page of cloud recordings for a user
func (c *ZoomClient) ListUserRecordings(ctx context.Context, userID string, params ListRecordingsParams) (*ListRecordingsResponse, error) {
	query := url.Values{}
	if params.From != nil {
		query.Set("from", params.From.Format("2006-01-02"))
	}
	if params.To != nil {
		query.Set("to", params.To.Format("2006-01-02"))
	}
	pageSize := params.PageSize
	if pageSize == 0 {
		pageSize = MaxPageSize
	}
	query.Set("page_size", strconv.Itoa(pageSize))
	if params.NextPageToken != "" {
		query.Set("next_page_token", params.NextPageToken)
	}

	var result ListRecordingsResponse
	endpoint := "users/" + url.PathEscape(userID) + "/recordings"
	if err := c.get(ctx, endpoint, query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAllUserRecordings retrieves all recordings for a user since from using pagination
func (c *ZoomClient) GetAllUserRecordings(ctx context.Context, userID string, from time.Time) ([]Recording, error) {
	if from.IsZero() {
		from = InitialRecordingDate
	}
	var recordings []Recording
	params := ListRecordingsParams{From: &from, PageSize: MaxPageSize}

	for {
		response, err := c.ListUserRecordings(ctx, userID, params)
		if err != nil {
			return nil, fmt.Errorf("failed to list recordings (page token: %s): %w", params.NextPageToken, err)
		}
		recordings = append(recordings, response.Meetings...)

		if response.NextPageToken == "" {
			return recordings, nil
		}
		params.NextPageToken = response.NextPageToken
	}
}

// GetMeeting retrieves a meeting by number or occurrence UUID
func (c *ZoomClient) GetMeeting(ctx context.Context, meetingID string) (*Meeting, error) {
	var meeting Meeting
	if err := c.get(ctx, "meetings/"+EncodeUUID(meetingID), nil, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// GetMeetingRecordings retrieves recordings for a specific meeting or occurrence
func (c *ZoomClient) GetMeetingRecordings(ctx context.Context, meetingID string) (*Recording, error) {
	var result Recording
	if err := c.get(ctx, "meetings/"+EncodeUUID(meetingID)+"/recordings", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPastMeetingInstances lists the ended occurrences of a meeting number
func (c *ZoomClient) ListPastMeetingInstances(ctx context.Context, meetingID string) ([]PastMeetingInstance, error) {
	var result PastMeetingInstancesResponse
	if err := c.get(ctx, "past_meetings/"+EncodeUUID(meetingID)+"/instances", nil, &result); err != nil {
		return nil, err
	}
	return result.Meetings, nil
}

// GetPastMeeting retrieves the details of one ended occurrence
func (c *ZoomClient) GetPastMeeting(ctx context.Context, meetingUUID string) (*PastMeeting, error) {
	var result PastMeeting
	if err := c.get(ctx, "past_meetings/"+EncodeUUID(meetingUUID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetParticipantReport retrieves the first page of the participants report for an occurrence
func (c *ZoomClient) GetParticipantReport(ctx context.Context, meetingUUID string) (*ParticipantReport, error) {
	params := url.Values{}
	params.Set("page_size", strconv.Itoa(MaxPageSize))

	var result ParticipantReport
	endpoint := "report/meetings/" + EncodeUUID(meetingUUID) + "/participants"
	if err := c.get(ctx, endpoint, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteRecordingFile moves one recording file to the trash and returns the HTTP
// status. Zoom answers 204 on success.
func (c *ZoomClient) DeleteRecordingFile(ctx context.Context, meetingUUID, fileID string) (int, error) {
	endpoint := "meetings/" + EncodeUUID(meetingUUID) + "/recordings/" + url.PathEscape(fileID)
	resp, err := c.Call(ctx, endpoint, nil, http.MethodDelete)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusNoContent {
		if respErr := resp.Err(); respErr != nil {
			return resp.StatusCode, respErr
		}
		return resp.StatusCode, fmt.Errorf("%w: delete returned status %d", ErrUnexpectedResponse, resp.StatusCode)
	}
	return resp.StatusCode, nil
}
