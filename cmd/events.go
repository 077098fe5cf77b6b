package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/calbridge/calbridge/internal/calendar"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Work with calendar events",
	}

	cmd.AddCommand(newEventsListCmd())
	cmd.AddCommand(newEventsCreateCmd())
	cmd.AddCommand(newEventsUpdateCmd())
	cmd.AddCommand(newEventsDeleteCmd())

	return cmd
}

func newEventsListCmd() *cobra.Command {
	var (
		user      string
		from      string
		to        string
		calendars []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events across calendars within a time window",
		Long: `List events across calendars within a time window.

Without --calendar every calendar the account can see is queried.
Events are grouped per calendar and sorted by start time within each
calendar.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			window := calendar.TimeWindow{}
			var err error
			if window.Min, err = parseTimeFlag(from); err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			if window.Max, err = parseTimeFlag(to); err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			events, err := app.service.GetEvents(ctx, user, window, calendars...)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CALENDAR\tSTART\tSUMMARY\tID")
			for _, event := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					event.CalendarID, formatEventTime(event.Start), event.Summary, event.ID)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Printf("\n%d events\n", len(events))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "default", "User identity whose events to list")
	cmd.Flags().StringVar(&from, "from", "", "Window start (RFC3339 or YYYY-MM-DD). Default: now")
	cmd.Flags().StringVar(&to, "to", "", "Window end (RFC3339 or YYYY-MM-DD). Default: open-ended")
	cmd.Flags().StringSliceVar(&calendars, "calendar", nil, "Calendar ID to query (repeatable). Default: all visible calendars")

	return cmd
}

func newEventsCreateCmd() *cobra.Command {
	var (
		user        string
		summary     string
		description string
		start       string
		end         string
		timezone    string
		attendees   []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event on the account's primary calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := buildDraft(summary, description, start, end, timezone, attendees)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			event, err := app.service.CreateEvent(ctx, user, draft)
			if err != nil {
				return err
			}

			fmt.Printf("Created event %s (%s)\n", event.ID, event.Summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "default", "User identity to create the event for")
	cmd.Flags().StringVar(&summary, "summary", "", "Event title")
	cmd.Flags().StringVar(&description, "description", "", "Event description")
	cmd.Flags().StringVar(&start, "start", "", "Event start (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Event end (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone name for start and end (e.g. Europe/Berlin)")
	cmd.Flags().StringSliceVar(&attendees, "attendee", nil, "Attendee email address (repeatable)")

	_ = cmd.MarkFlagRequired("summary")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func newEventsUpdateCmd() *cobra.Command {
	var (
		user        string
		eventID     string
		summary     string
		description string
		start       string
		end         string
		timezone    string
		attendees   []string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update an event on the account's primary calendar",
		Long: `Update an event on the account's primary calendar.

Only the supplied flags are sent; omitted fields keep their current
values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := buildDraft(summary, description, start, end, timezone, attendees)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			event, err := app.service.UpdateEvent(ctx, user, eventID, draft)
			if err != nil {
				return err
			}

			fmt.Printf("Updated event %s\n", event.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "default", "User identity owning the event")
	cmd.Flags().StringVar(&eventID, "event", "", "ID of the event to update")
	cmd.Flags().StringVar(&summary, "summary", "", "New event title")
	cmd.Flags().StringVar(&description, "description", "", "New event description")
	cmd.Flags().StringVar(&start, "start", "", "New event start (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "New event end (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone name for start and end")
	cmd.Flags().StringSliceVar(&attendees, "attendee", nil, "Replacement attendee email address (repeatable)")

	_ = cmd.MarkFlagRequired("event")

	return cmd
}

func newEventsDeleteCmd() *cobra.Command {
	var (
		user    string
		eventID string
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an event from the account's primary calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if err := app.service.DeleteEvent(ctx, user, eventID); err != nil {
				return err
			}

			fmt.Printf("Deleted event %s\n", eventID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "default", "User identity owning the event")
	cmd.Flags().StringVar(&eventID, "event", "", "ID of the event to delete")

	_ = cmd.MarkFlagRequired("event")

	return cmd
}

// buildDraft assembles an event draft from flag values. Empty time flags
// yield zero EventTimes, which the service omits from the request.
func buildDraft(summary, description, start, end, timezone string, attendees []string) (calendar.EventDraft, error) {
	draft := calendar.EventDraft{
		Summary:     summary,
		Description: description,
		Attendees:   attendees,
	}

	startTime, err := parseTimeFlag(start)
	if err != nil {
		return calendar.EventDraft{}, fmt.Errorf("invalid --start: %w", err)
	}
	endTime, err := parseTimeFlag(end)
	if err != nil {
		return calendar.EventDraft{}, fmt.Errorf("invalid --end: %w", err)
	}

	if !startTime.IsZero() {
		draft.Start = calendar.EventTime{Time: startTime, TimeZone: timezone}
	}
	if !endTime.IsZero() {
		draft.End = calendar.EventTime{Time: endTime, TimeZone: timezone}
	}

	return draft, nil
}

// parseTimeFlag accepts RFC3339 timestamps or plain dates. An empty value
// parses to the zero time.
func parseTimeFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%q is not RFC3339 or YYYY-MM-DD", value)
}

func formatEventTime(et calendar.EventTime) string {
	if et.Time.IsZero() {
		return "-"
	}
	return et.Time.Format(time.RFC3339)
}
