package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/curtbushko/zoom-to-moodle/internal/commands"
	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/participants"
	"github.com/curtbushko/zoom-to-moodle/internal/processor"
	"github.com/curtbushko/zoom-to-moodle/internal/reconcile"
	"github.com/curtbushko/zoom-to-moodle/internal/report"
	"github.com/curtbushko/zoom-to-moodle/internal/server"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
)

const dateLayout = "2006-01-02"

// withApp loads the app for the duration of run
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}

// sources exposes the app to the report handlers
func (a *app) sources() report.Sources {
	return report.Sources{
		Meetings:     a.recordings,
		Pages:        a.store,
		Participants: a.attendance,
		Registry:     commands.Default(),
		Translator:   a.translator,
		SiteURL:      a.cfg.Sync.SiteURL,
		Location:     a.recordings.Location("", nil),
	}
}

func printResults(cmd *cobra.Command, results []reconcile.Result) {
	if len(results) == 0 {
		cmd.Println("Nothing to do.")
		return
	}
	for _, result := range results {
		message := strings.ReplaceAll(result.Message, "<br>", "\n    ")
		cmd.Printf("[%s] %s\n", result.Outcome, message)
	}
}

func createCommandsCommand() *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List the operations grouped by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report.Run(cmd.Context(), report.Commands, report.Sources{Translator: i18n.New(language)},
				cmd.OutOrStdout(), report.Request{})
		},
	}
	cmd.Flags().StringVar(&language, "lang", "en", "listing language (en or pt-BR)")
	return cmd
}

func createSyncCommand() *cobra.Command {
	var meeting string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Link new recordings to their course pages",
		Long: `Visit every page of a course that ended less than a month ago and append
the recordings newer than the last one linked. With --meeting only the recording
of that meeting number or occurrence UUID is linked.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if dryRun {
				cmd.Println("🔍 DRY RUN: no page or watermark will be written")
			}
			if meeting != "" {
				results, err := a.engine.AddRecordingsToPage(cmd.Context(), meeting)
				printResults(cmd, results)
				return err
			}

			summary, err := a.processor.RunOnce(cmd.Context())
			if summary != nil {
				showSummary(cmd, summary)
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&meeting, "meeting", "", "meeting number or occurrence UUID to link")
	return cmd
}

func showSummary(cmd *cobra.Command, summary *processor.Summary) {
	for _, line := range summary.Lines() {
		cmd.Println(line)
	}
	cmd.Printf("\nPages: %d visited, %d skipped, %d failed\n", summary.TotalPages, summary.SkippedPages, summary.FailedPages)
	cmd.Printf("Recordings: %d linked, %d failed\n", summary.Linked, summary.Failed)
	cmd.Printf("Duration: %s\n", summary.Duration.Round(time.Second))
}

func createMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <occurrence-uuid>",
		Short: "Copy the recordings of an occurrence to Google Drive",
		Long: `Copy the recording files of one occurrence to the course folder on Google
Drive, point the page links at the copies and delete the Zoom originals unless
drive.keep_zoom_copy is set.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			migrator, err := a.migrator(cmd.Context())
			if err != nil {
				return err
			}
			result := migrator.SendRecordingsToDrive(cmd.Context(), args[0], nil)
			printResults(cmd, []reconcile.Result{result})
			return result.Err
		}),
	}
}

func createMigrateCourseCommand() *cobra.Command {
	var meeting, cmid int64
	cmd := &cobra.Command{
		Use:   "migrate-course",
		Short: "Copy every recording of a meeting to Google Drive",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			migrator, err := a.migrator(cmd.Context())
			if err != nil {
				return err
			}
			results, err := migrator.SendCourseRecordingsToDrive(cmd.Context(), reconcile.CourseRequest{
				MeetingNumber: meeting,
				PageCMID:      cmid,
			})
			printResults(cmd, results)
			return err
		}),
	}
	cmd.Flags().Int64Var(&meeting, "meeting", 0, "meeting number")
	cmd.Flags().Int64Var(&cmid, "cmid", 0, "course module id the meeting must be linked to")
	_ = cmd.MarkFlagRequired("meeting")
	return cmd
}

func createParticipantsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants",
		Short: "Import and report meeting participants",
	}

	var meeting int64
	fetch := &cobra.Command{
		Use:   "fetch <occurrence-uuid>",
		Short: "Import the participant report of an occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			number := meeting
			if number == 0 {
				occurrence, err := a.recordings.GetOccurrence(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				number = occurrence.Number
			}
			result, err := a.attendance.EnsureParticipantsFetched(cmd.Context(), args[0], number)
			if err != nil {
				return err
			}
			switch {
			case result.AlreadyFetched:
				cmd.Println("Participants were already imported.")
			case result.Truncated:
				cmd.Printf("Imported %d participants (report truncated to its first page).\n", result.Inserted)
			default:
				cmd.Printf("Imported %d participants.\n", result.Inserted)
			}
			return nil
		}),
	}
	fetch.Flags().Int64Var(&meeting, "meeting", 0, "meeting number, looked up when omitted")

	var filterEmail string
	var asJSON bool
	reportCmd := &cobra.Command{
		Use:   "report <occurrence-uuid>",
		Short: "Show who attended or watched an occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return report.Run(cmd.Context(), report.Participants, a.sources(), cmd.OutOrStdout(),
				report.Request{Args: args, Email: filterEmail, JSON: asJSON})
		}),
	}
	reportCmd.Flags().StringVar(&filterEmail, "email", "", "only show this participant")
	reportCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var view participants.View
	viewCmd := &cobra.Command{
		Use:   "view <occurrence-uuid>",
		Short: "Log that a site user watched the recording of an occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if view.UserID <= 0 {
				return fmt.Errorf("--userid must be a positive site user id")
			}
			if err := a.attendance.RecordRecordingView(cmd.Context(), args[0], view); err != nil {
				return err
			}
			cmd.Println("Recording view logged.")
			return nil
		}),
	}
	viewCmd.Flags().Int64Var(&view.UserID, "userid", 0, "site user id")
	viewCmd.Flags().StringVar(&view.Name, "name", "", "user name")
	viewCmd.Flags().StringVar(&view.Email, "email", "", "user email")

	cmd.AddCommand(fetch, reportCmd, viewCmd)
	return cmd
}

func createPagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Manage the links between course pages and meetings",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List page links",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return report.Run(cmd.Context(), report.Pages, a.sources(), cmd.OutOrStdout(), report.Request{JSON: asJSON})
		}),
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var addCMID, addMeeting int64
	add := &cobra.Command{
		Use:   "add",
		Short: "Link a meeting to a course page",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			link := &store.PageLink{PageCMID: addCMID, ZoomMeetingNumber: addMeeting}
			if err := a.store.CreatePageLink(cmd.Context(), link); err != nil {
				if errors.Is(err, store.ErrDuplicateMeeting) {
					return fmt.Errorf("meeting %d is already linked to a page", addMeeting)
				}
				return err
			}
			cmd.Printf("Page link %d created.\n", link.ID)
			return nil
		}),
	}
	add.Flags().Int64Var(&addCMID, "cmid", 0, "course module id of the page")
	add.Flags().Int64Var(&addMeeting, "meeting", 0, "meeting number")
	_ = add.MarkFlagRequired("cmid")
	_ = add.MarkFlagRequired("meeting")

	var updateCMID, updateMeeting int64
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the page or meeting of a link",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseLinkID(args[0])
			if err != nil {
				return err
			}
			link, err := a.store.GetPageLink(cmd.Context(), id)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cmid") {
				link.PageCMID = updateCMID
			}
			if cmd.Flags().Changed("meeting") {
				link.ZoomMeetingNumber = updateMeeting
			}
			if err := a.store.UpdatePageLink(cmd.Context(), link); err != nil {
				return err
			}
			cmd.Printf("Page link %d updated.\n", link.ID)
			return nil
		}),
	}
	update.Flags().Int64Var(&updateCMID, "cmid", 0, "course module id of the page")
	update.Flags().Int64Var(&updateMeeting, "meeting", 0, "meeting number")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a page link",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseLinkID(args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeletePageLink(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Printf("Page link %d deleted.\n", id)
			return nil
		}),
	}

	cmd.AddCommand(list, add, update, remove)
	return cmd
}

func parseLinkID(value string) (uint, error) {
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid page link id %q", value)
	}
	return uint(id), nil
}

func createMeetingsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "meetings",
		Short: "List live, upcoming and past meetings of the account",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return report.Run(cmd.Context(), report.Meetings, a.sources(), cmd.OutOrStdout(), report.Request{JSON: asJSON})
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// parseRange reads --from and --to dates. to covers its whole day.
func parseRange(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if from != "" {
		if start, err = time.Parse(dateLayout, from); err != nil {
			return start, end, fmt.Errorf("invalid --from date %q, expected YYYY-MM-DD", from)
		}
	}
	if to != "" {
		if end, err = time.Parse(dateLayout, to); err != nil {
			return start, end, fmt.Errorf("invalid --to date %q, expected YYYY-MM-DD", to)
		}
		end = end.Add(24*time.Hour - time.Second)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("--to is before --from")
	}
	return start, end, nil
}

func createLogCommand() *cobra.Command {
	var from, to string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the audit log, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			start, end, err := parseRange(from, to)
			if err != nil {
				return err
			}
			return report.Run(cmd.Context(), report.Log, a.sources(), cmd.OutOrStdout(),
				report.Request{From: start, To: end, JSON: asJSON})
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func createDriveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Authorize access to Google Drive",
	}

	auth := &cobra.Command{
		Use:   "auth",
		Short: "Print the consent URL",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if a.driveAuth.HasToken() {
				cmd.Printf("A Drive token is already stored in %s; authorizing again replaces it.\n\n", a.cfg.Drive.TokenFile)
			}
			cmd.Println("Open this URL, grant access and pass the returned code to 'zoom-to-moodle drive exchange':")
			cmd.Println(a.driveAuth.AuthCodeURL(uuid.NewString()))
			return nil
		}),
	}

	exchange := &cobra.Command{
		Use:   "exchange <code>",
		Short: "Store the token for an authorization code",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.driveAuth.Exchange(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("✅ Drive token stored in %s\n", a.cfg.Drive.TokenFile)
			return nil
		}),
	}

	cmd.AddCommand(auth, exchange)
	return cmd
}

func createReportCommand() *cobra.Command {
	var request report.Request
	var from, to string
	cmd := &cobra.Command{
		Use:   "report <id> [args...]",
		Short: "Run a report by id",
		Long:  "Run one of the reports: " + joinIDs(report.IDs()),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := report.ID(args[0])
			if !knownReport(id) {
				return fmt.Errorf("unknown report %q, expected one of: %s", id, joinIDs(report.IDs()))
			}
			request.Args = args[1:]
			start, end, err := parseRange(from, to)
			if err != nil {
				return err
			}
			request.From, request.To = start, end

			if id == report.Commands {
				return report.Run(cmd.Context(), id, report.Sources{}, cmd.OutOrStdout(), request)
			}
			return withApp(func(cmd *cobra.Command, a *app, args []string) error {
				return report.Run(cmd.Context(), id, a.sources(), cmd.OutOrStdout(), request)
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&request.Email, "email", "", "participants: only show this participant")
	cmd.Flags().BoolVar(&request.JSON, "json", false, "print JSON")
	cmd.Flags().StringVar(&from, "from", "", "log: first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "log: last day (YYYY-MM-DD)")
	return cmd
}

func knownReport(id report.ID) bool {
	for _, known := range report.IDs() {
		if known == id {
			return true
		}
	}
	return false
}

func joinIDs(ids []report.ID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}

func createServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled sync and the HTTP endpoints",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()

			scheduler := processor.NewScheduler(a.processor, a.cfg.Sync.Schedule, a.logger)
			if err := scheduler.Start(ctx); err != nil {
				return err
			}
			defer func() {
				<-scheduler.Stop().Done()
			}()

			srv := server.New(server.Options{
				Config:     a.cfg.Server,
				Attendance: a.attendance,
				Consent:    a.driveAuth,
				Logger:     a.logger,
			})
			return srv.ListenAndServe(ctx)
		}),
	}
}
