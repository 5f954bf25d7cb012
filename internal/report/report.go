// Package report renders the administrative listings of the CLI
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/commands"
	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/participants"
	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
)

// ID names a report
type ID string

const (
	Commands     ID = "commands"
	Meetings     ID = "meetings"
	Pages        ID = "pages"
	Log          ID = "log"
	Participants ID = "participants"
)

// MeetingLister lists the meetings of every active user
type MeetingLister interface {
	ListMeetings(ctx context.Context) (*recordings.MeetingList, error)
}

// PageStore lists page links and audit entries
type PageStore interface {
	ListPageLinks(ctx context.Context) ([]store.PageLink, error)
	ListLogs(ctx context.Context, from, to time.Time) ([]store.AuditLog, error)
}

// ParticipantReporter renders the attendance of an occurrence
type ParticipantReporter interface {
	Report(ctx context.Context, meetingUUID, filterEmail string) (*participants.Report, error)
}

// Sources are the data a report may read. Reports fail when the source they
// need is nil.
type Sources struct {
	Meetings     MeetingLister
	Pages        PageStore
	Participants ParticipantReporter
	Registry     *commands.Registry
	Translator   *i18n.Translator
	SiteURL      string
	Location     *time.Location
}

// Request holds the arguments of one report run
type Request struct {
	// Args are positional arguments, the occurrence UUID for participants
	Args []string
	From time.Time
	To   time.Time
	// Email filters the participants report to one viewer
	Email string
	JSON  bool
}

// Handler renders one report
type Handler func(ctx context.Context, src Sources, w io.Writer, req Request) error

var handlers = map[ID]Handler{
	Commands:     renderCommands,
	Meetings:     renderMeetings,
	Pages:        renderPages,
	Log:          renderLog,
	Participants: renderParticipants,
}

// IDs returns the known report ids in alphabetical order
func IDs() []ID {
	ids := make([]ID, 0, len(handlers))
	for id := range handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Run renders the report id to w
func Run(ctx context.Context, id ID, src Sources, w io.Writer, req Request) error {
	handler, ok := handlers[id]
	if !ok {
		names := make([]string, 0, len(handlers))
		for _, known := range IDs() {
			names = append(names, string(known))
		}
		return fmt.Errorf("unknown report %q, expected one of: %s", id, strings.Join(names, ", "))
	}
	if src.Translator == nil {
		src.Translator = i18n.New("en")
	}
	if src.Location == nil {
		src.Location = time.UTC
	}
	return handler(ctx, src, w, req)
}

func renderCommands(ctx context.Context, src Sources, w io.Writer, req Request) error {
	registry := src.Registry
	if registry == nil {
		registry = commands.Default()
	}
	_, err := io.WriteString(w, commands.Format(commands.GroupByCategory(registry.Index()), src.Translator))
	return err
}

func renderMeetings(ctx context.Context, src Sources, w io.Writer, req Request) error {
	if src.Meetings == nil {
		return fmt.Errorf("meetings report needs the Zoom repository")
	}
	list, err := src.Meetings.ListMeetings(ctx)
	if err != nil {
		return err
	}
	if req.JSON {
		return writeJSON(w, list)
	}
	if list.Total() == 0 {
		_, err := fmt.Fprintln(w, src.Translator.Text(i18n.NoMeetings))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	sections := []struct {
		key      string
		meetings []recordings.MeetingSummary
	}{
		{i18n.MeetingLive, list.Live},
		{i18n.MeetingUpcoming, list.Upcoming},
		{i18n.MeetingPast, list.Past},
	}
	for _, section := range sections {
		if len(section.meetings) == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\n", src.Translator.Text(section.key))
		for _, meeting := range section.meetings {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
				meeting.FormattedNumber, meeting.StartFormatted, meeting.Topic, meeting.TypeLabel, meeting.HostEmail)
		}
	}
	return tw.Flush()
}

func renderPages(ctx context.Context, src Sources, w io.Writer, req Request) error {
	if src.Pages == nil {
		return fmt.Errorf("pages report needs the content store")
	}
	links, err := src.Pages.ListPageLinks(ctx)
	if err != nil {
		return err
	}

	type row struct {
		ID            uint   `json:"id"`
		MeetingNumber string `json:"meeting_number"`
		Course        string `json:"course"`
		Location      string `json:"location"`
		PageURL       string `json:"page_url"`
		LastAdded     string `json:"last_added,omitempty"`
	}
	rows := make([]row, 0, len(links))
	for i := range links {
		link := &links[i]
		r := row{
			ID:            link.ID,
			MeetingNumber: recordings.FormatMeetingNumber(link.ZoomMeetingNumber),
			Course:        link.CourseName(),
			Location:      link.RecordingLocation(),
			PageURL:       store.PageURL(src.SiteURL, link.PageCMID),
		}
		if link.LastAddedTimestamp > 0 {
			r.LastAdded = time.Unix(link.LastAddedTimestamp, 0).In(src.Location).Format(recordings.DateTimeLayout)
		}
		rows = append(rows, r)
	}
	if req.JSON {
		return writeJSON(w, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMEETING\tCOURSE\tLOCATION\tLAST ADDED\tPAGE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.MeetingNumber, r.Course, r.Location, r.LastAdded, r.PageURL)
	}
	return tw.Flush()
}

func renderLog(ctx context.Context, src Sources, w io.Writer, req Request) error {
	if src.Pages == nil {
		return fmt.Errorf("log report needs the content store")
	}
	entries, err := src.Pages.ListLogs(ctx, req.From, req.To)
	if err != nil {
		return err
	}
	if req.JSON {
		return writeJSON(w, entries)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			time.Unix(entry.Timestamp, 0).In(src.Location).Format(recordings.DateTimeLayout),
			entry.ClassFunction, entry.Message)
	}
	return tw.Flush()
}

func renderParticipants(ctx context.Context, src Sources, w io.Writer, req Request) error {
	if src.Participants == nil {
		return fmt.Errorf("participants report needs the attendance tracker")
	}
	if len(req.Args) == 0 || req.Args[0] == "" {
		return fmt.Errorf("participants report needs an occurrence uuid")
	}

	report, err := src.Participants.Report(ctx, req.Args[0], req.Email)
	if err != nil {
		return err
	}
	if req.JSON {
		return writeJSON(w, report)
	}

	fmt.Fprintf(w, "%s (%s) %s\n", report.Topic, report.FormattedNumber, report.Start)
	if report.Message != "" {
		_, err := fmt.Fprintln(w, report.Message)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range report.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Name, row.Email, strings.Join(row.Intervals, ", "), row.Minutes, row.Percent, row.Attentiveness)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
