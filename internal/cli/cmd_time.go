package cli

import (
	"context"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/filter"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/timetrack"
)

// TimeCmd returns the time command group.
func TimeCmd(a *app) *Command {
	return Group("time", "Track time spent on tickets",
		`Log work against tickets, either with a running timer or after the
fact. Durations look like 1h30m, 2h, 45m or a number of minutes.`,
		timeStartCmd(a),
		timeStopCmd(a),
		timeStatusCmd(a),
		timeLogCmd(a),
		timeReportCmd(a),
		timeListCmd(a),
	)
}

func timeStartCmd(a *app) *Command {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.StringP("notes", "n", "", "Notes stored with the entry")

	return &Command{
		Flags: fs,
		Usage: "start [ref] [flags]",
		Short: "Start a timer",
		Exec: func(_ context.Context, o *IO, args []string) error {
			ref, err := refArg("time start", args)
			if err != nil {
				return err
			}

			notes, _ := fs.GetString("notes")

			svc, err := a.service()
			if err != nil {
				return err
			}

			t, err := svc.Resolve(ref)
			if err != nil {
				return err
			}

			st, err := a.timeStore()
			if err != nil {
				return err
			}

			timer, err := st.Start(t, notes, a.now())
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(timer)
			}

			o.Println("Tracking time on", a.styles.slug.Render(t.Slug))

			return nil
		},
	}
}

func timeStopCmd(a *app) *Command {
	fs := flag.NewFlagSet("stop", flag.ContinueOnError)
	fs.Bool("cancel", false, "Discard the timer without logging")

	return &Command{
		Flags: fs,
		Usage: "stop [flags]",
		Short: "Stop the timer and log its time",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: "time stop", err: errTooManyArgs}
			}

			st, err := a.timeStore()
			if err != nil {
				return err
			}

			if cancel, _ := fs.GetBool("cancel"); cancel {
				if err := st.Cancel(); err != nil {
					return err
				}

				o.Println("Timer discarded")

				return nil
			}

			e, err := st.Stop(a.now())
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(e)
			}

			o.Println("Logged", timetrack.FormatMinutes(e.Minutes), "on", a.slugFor(e.TicketID))

			return nil
		},
	}
}

func timeStatusCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("status", flag.ContinueOnError),
		Usage: "status",
		Short: "Show the running timer",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			st, err := a.timeStore()
			if err != nil {
				return err
			}

			timer, err := st.Running()
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(map[string]any{"running": timer != nil, "timer": timer})
			}

			if timer == nil {
				o.Println("No timer running")

				return nil
			}

			now := a.now()
			o.Printf("Tracking %s for %s (started %s)\n",
				a.styles.slug.Render(timer.TicketSlug),
				timetrack.FormatMinutes(max(timer.Elapsed(now), 0)),
				ago(timer.StartedAt, now))

			return nil
		},
	}
}

func timeLogCmd(a *app) *Command {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	fs.StringP("notes", "n", "", "What the time was spent on")
	fs.String("date", "", "Day the work happened (YYYY-MM-DD, yesterday...) [default: today]")

	return &Command{
		Flags: fs,
		Usage: "log <duration> [ref] [flags]",
		Short: "Log time after the fact",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return &usageError{cmd: "time log", err: errMissingArg}
			}

			minutes, err := timetrack.ParseDuration(args[0])
			if err != nil {
				return err
			}

			ref, err := refArg("time log", args[1:])
			if err != nil {
				return err
			}

			notes, _ := fs.GetString("notes")
			now := a.now()

			var date time.Time

			if raw, _ := fs.GetString("date"); raw != "" {
				if date, err = filter.ParseDay(raw, now); err != nil {
					return err
				}
			}

			svc, err := a.service()
			if err != nil {
				return err
			}

			t, err := svc.Resolve(ref)
			if err != nil {
				return err
			}

			st, err := a.timeStore()
			if err != nil {
				return err
			}

			e, err := st.Log(t.ID, minutes, notes, date, now)
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(e)
			}

			o.Println("Logged", timetrack.FormatMinutes(e.Minutes), "on", a.styles.slug.Render(t.Slug))

			return nil
		},
	}
}

type reportRow struct {
	timetrack.Total
	Slug string `json:"slug"`
}

func timeReportCmd(a *app) *Command {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.String("since", "", "Only entries on or after this day (YYYY-MM-DD, week, last-7...)")

	return &Command{
		Flags: fs,
		Usage: "report [flags]",
		Short: "Sum logged time per ticket",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: "time report", err: errTooManyArgs}
			}

			var since time.Time

			if raw, _ := fs.GetString("since"); raw != "" {
				day, err := filter.ParseDay(raw, a.now())
				if err != nil {
					return err
				}

				since = day
			}

			st, err := a.timeStore()
			if err != nil {
				return err
			}

			totals, err := st.Report(since)
			if err != nil {
				return err
			}

			rows := make([]reportRow, 0, len(totals))
			sum := 0

			for _, t := range totals {
				rows = append(rows, reportRow{Total: t, Slug: a.slugFor(t.TicketID)})
				sum += t.Minutes
			}

			if a.json {
				return o.JSON(map[string]any{"tickets": rows, "total_minutes": sum})
			}

			if len(rows) == 0 {
				o.Println("No time logged")

				return nil
			}

			for _, r := range rows {
				o.Printf("%9s  %s  %s\n", timetrack.FormatMinutes(r.Minutes), pad(a.styles.slug.Render(r.Slug), 32), a.styles.faint.Render(plural(r.Entries, "entry", "entries")))
			}

			o.Printf("%9s  %s\n", timetrack.FormatMinutes(sum), "total")

			return nil
		},
	}
}

func timeListCmd(a *app) *Command {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.Bool("all", false, "Entries of every ticket")

	return &Command{
		Flags:   fs,
		Usage:   "list [ref] [flags]",
		Short:   "List time entries",
		Aliases: []string{"ls"},
		Exec: func(_ context.Context, o *IO, args []string) error {
			ref, err := refArg("time list", args)
			if err != nil {
				return err
			}

			var id ticket.ID

			if all, _ := fs.GetBool("all"); !all {
				svc, err := a.service()
				if err != nil {
					return err
				}

				t, err := svc.Resolve(ref)
				if err != nil {
					return err
				}

				id = t.ID
			}

			st, err := a.timeStore()
			if err != nil {
				return err
			}

			entries, err := st.Entries(id)
			if err != nil {
				return err
			}

			if a.json {
				if entries == nil {
					entries = []timetrack.Entry{}
				}

				return o.JSON(entries)
			}

			if len(entries) == 0 {
				o.Println("No time logged")

				return nil
			}

			for _, e := range entries {
				o.Printf("%s  %7s  %s  %s\n", e.Date.Local().Format("2006-01-02"), timetrack.FormatMinutes(e.Minutes), pad(a.slugFor(e.TicketID), 24), e.Notes)
			}

			return nil
		},
	}
}

// slugFor returns the slug of id, or its short form when the ticket is gone.
func (a *app) slugFor(id ticket.ID) string {
	svc, err := a.service()
	if err != nil {
		return id.Short()
	}

	t, err := svc.Repo().Load(id)
	if err != nil {
		return id.Short()
	}

	return t.Slug
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}

	return strconv.Itoa(n) + " " + many
}
