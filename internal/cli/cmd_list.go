package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/filter"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// ListCmd returns the list command.
func ListCmd(a *app) *Command {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.String("status", "", "Only tickets in these statuses (comma separated)")
	fs.String("priority", "", "Only tickets with these priorities (comma separated)")
	fs.String("assignee", "", "Only tickets assigned to this person")
	fs.String("tag", "", "Only tickets with this tag")
	fs.String("sort", "created", "Sort by: "+strings.Join(filter.SortKeys, "|"))
	fs.Bool("reverse", false, "Reverse the sort order")
	fs.Int("limit", 0, "Show at most N tickets")
	fs.Bool("archived", false, "Show archived tickets only")
	fs.Bool("open", false, "Show todo, doing and review tickets only")
	fs.Bool("closed", false, "Show done tickets only")
	fs.Bool("include-done", false, "Include done tickets")
	fs.String("since", "", "Created on or after this day (YYYY-MM-DD, today, week...)")
	fs.String("until", "", "Created on or before this day")
	fs.String("filter", "", "Filter expression, or @name of a saved filter")

	return &Command{
		Flags:   fs,
		Usage:   "list [flags]",
		Short:   "List tickets",
		Aliases: []string{"ls"},
		Long: `List tickets. Done and archived tickets are hidden unless
--include-done, --closed or --archived ask for them.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: "list", err: errTooManyArgs}
			}

			return execList(o, a, fs)
		},
	}
}

func execList(o *IO, a *app, fs *flag.FlagSet) error {
	limit, _ := fs.GetInt("limit")
	if limit < 0 {
		return fmt.Errorf("%w: --limit must not be negative", ticket.ErrInvalidInput)
	}

	open, _ := fs.GetBool("open")
	closed, _ := fs.GetBool("closed")

	if open && closed {
		return &usageError{cmd: "list", err: errExclusiveFlags}
	}

	preds, err := a.listPredicates(fs)
	if err != nil {
		return err
	}

	svc, err := a.service()
	if err != nil {
		return err
	}

	tickets, err := svc.Repo().Find(func(t *ticket.Ticket) bool {
		for _, p := range preds {
			if !p(t) {
				return false
			}
		}

		return true
	})
	if err != nil {
		return err
	}

	sortKey, _ := fs.GetString("sort")
	reverse, _ := fs.GetBool("reverse")

	if err := filter.Sort(tickets, sortKey, reverse); err != nil {
		return err
	}

	if limit > 0 && len(tickets) > limit {
		tickets = tickets[:limit]
	}

	return a.printTickets(o, tickets)
}

// listPredicates turns list flags into ticket predicates. All must match.
func (a *app) listPredicates(fs *flag.FlagSet) ([]func(*ticket.Ticket) bool, error) {
	var preds []func(*ticket.Ticket) bool

	archived, _ := fs.GetBool("archived")
	preds = append(preds, func(t *ticket.Ticket) bool { return t.Extensions.Archived == archived })

	rawStatus, _ := fs.GetString("status")
	open, _ := fs.GetBool("open")
	closed, _ := fs.GetBool("closed")
	includeDone, _ := fs.GetBool("include-done")

	switch {
	case rawStatus != "":
		var statuses []ticket.Status

		for _, s := range ticket.ParseTags(rawStatus) {
			st, err := ticket.ParseStatus(s)
			if err != nil {
				return nil, err
			}

			statuses = append(statuses, st)
		}

		preds = append(preds, func(t *ticket.Ticket) bool { return slices.Contains(statuses, t.Status) })
	case open:
		preds = append(preds, func(t *ticket.Ticket) bool {
			return t.Status == ticket.StatusTodo || t.Status.IsActive()
		})
	case closed:
		preds = append(preds, func(t *ticket.Ticket) bool { return t.Status == ticket.StatusDone })
	case !includeDone && !archived:
		preds = append(preds, func(t *ticket.Ticket) bool { return t.Status != ticket.StatusDone })
	}

	if raw, _ := fs.GetString("priority"); raw != "" {
		var priorities []ticket.Priority

		for _, s := range ticket.ParseTags(raw) {
			p, err := ticket.ParsePriority(s)
			if err != nil {
				return nil, err
			}

			priorities = append(priorities, p)
		}

		preds = append(preds, func(t *ticket.Ticket) bool { return slices.Contains(priorities, t.Priority) })
	}

	if assignee, _ := fs.GetString("assignee"); assignee != "" {
		preds = append(preds, func(t *ticket.Ticket) bool { return strings.EqualFold(t.Assignee, assignee) })
	}

	if tag, _ := fs.GetString("tag"); tag != "" {
		preds = append(preds, func(t *ticket.Ticket) bool { return t.HasTag(tag) })
	}

	now := a.now()

	if raw, _ := fs.GetString("since"); raw != "" {
		day, err := filter.ParseDay(raw, now)
		if err != nil {
			return nil, err
		}

		preds = append(preds, func(t *ticket.Ticket) bool { return !t.CreatedAt.Before(day) })
	}

	if raw, _ := fs.GetString("until"); raw != "" {
		r, err := filter.ParseDateRange(raw, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", filter.ErrInvalidFilter, err)
		}

		end := r.To.AddDate(0, 0, 1)
		preds = append(preds, func(t *ticket.Ticket) bool { return t.CreatedAt.Before(end) })
	}

	if raw, _ := fs.GetString("filter"); raw != "" {
		expr, err := a.expression(raw)
		if err != nil {
			return nil, err
		}

		preds = append(preds, expr.Match)
	}

	return preds, nil
}

// printTickets writes one line per ticket, or a JSON array.
func (a *app) printTickets(o *IO, tickets []ticket.Ticket) error {
	if a.json {
		if tickets == nil {
			tickets = []ticket.Ticket{}
		}

		return o.JSON(tickets)
	}

	if len(tickets) == 0 {
		o.Println("No tickets found")

		return nil
	}

	now := a.now()

	for i := range tickets {
		o.Println(ticketLine(a.styles, &tickets[i], now))
	}

	return nil
}

// BoardCmd returns the board command.
func BoardCmd(a *app) *Command {
	fs := flag.NewFlagSet("board", flag.ContinueOnError)
	fs.String("assignee", "", "Only tickets assigned to this person")
	fs.Bool("active", false, "Only tickets on the active list")

	return &Command{
		Flags: fs,
		Usage: "board [flags]",
		Short: "Show open tickets grouped by status",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: "board", err: errTooManyArgs}
			}

			assignee, _ := fs.GetString("assignee")
			activeOnly, _ := fs.GetBool("active")

			return execBoard(o, a, assignee, activeOnly)
		},
	}
}

type boardColumn struct {
	Status  ticket.Status   `json:"status"`
	Tickets []ticket.Ticket `json:"tickets"`
}

func execBoard(o *IO, a *app, assignee string, activeOnly bool) error {
	svc, err := a.service()
	if err != nil {
		return err
	}

	var tickets []ticket.Ticket

	if activeOnly {
		tickets, err = svc.Active()
	} else {
		tickets, err = svc.Repo().Find(func(t *ticket.Ticket) bool { return !t.Extensions.Archived })
	}

	if err != nil {
		return err
	}

	columns := make([]boardColumn, 0, len(ticket.Statuses))

	for _, st := range ticket.Statuses {
		col := boardColumn{Status: st, Tickets: []ticket.Ticket{}}

		for _, t := range tickets {
			if t.Status == st && (assignee == "" || strings.EqualFold(t.Assignee, assignee)) {
				col.Tickets = append(col.Tickets, t)
			}
		}

		_ = filter.Sort(col.Tickets, "priority", false)
		columns = append(columns, col)
	}

	if a.json {
		return o.JSON(columns)
	}

	now := a.now()

	for i, col := range columns {
		if i > 0 {
			o.Println()
		}

		o.Println(a.styles.header.Render(fmt.Sprintf("%s (%d)", col.Status.Title(), len(col.Tickets))))

		for j := range col.Tickets {
			o.Println("  " + ticketLine(a.styles, &col.Tickets[j], now))
		}
	}

	return nil
}
