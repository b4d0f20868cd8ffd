package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

// BulkCmd returns the bulk command group.
func BulkCmd(a *app) *Command {
	return Group("bulk", "Change every ticket matching a filter",
		`Each subcommand takes a filter expression (or @saved filter) and
applies one change to every matching ticket. --dry-run lists the matches.
A ticket that fails does not stop the others.`,
		bulkUpdateCmd(a),
		bulkTagCmd(a),
		bulkCloseCmd(a),
		bulkArchiveCmd(a),
	)
}

func bulkFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Bool("dry-run", false, "List matching tickets without changing them")

	return fs
}

func bulkUpdateCmd(a *app) *Command {
	fs := bulkFlags("update")
	fs.String("status", "", "New status")
	fs.String("priority", "", "New priority")
	fs.String("assignee", "", "New assignee")

	return &Command{
		Flags: fs,
		Usage: "update <expr> [flags]",
		Short: "Set status, priority or assignee",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			p, err := a.patchFromFlags(fs)
			if err != nil {
				return err
			}

			if p.IsZero() {
				return &usageError{cmd: "bulk update", err: fmt.Errorf("%w: --status, --priority or --assignee", errMissingArg)}
			}

			return a.runBulk(ctx, o, fs, "bulk update", args, "Updated", func(svc *tracker.Service, ref string) (ticket.Ticket, error) {
				return svc.Update(ctx, ref, p)
			})
		},
	}
}

func bulkTagCmd(a *app) *Command {
	fs := bulkFlags("tag")
	fs.String("add", "", "Comma separated tags to add")
	fs.String("remove", "", "Comma separated tags to remove")

	return &Command{
		Flags: fs,
		Usage: "tag <expr> [flags]",
		Short: "Add or remove tags",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			add, _ := fs.GetString("add")
			remove, _ := fs.GetString("remove")

			p := tracker.Patch{AddTags: ticket.ParseTags(add), RemoveTags: ticket.ParseTags(remove)}
			if p.IsZero() {
				return &usageError{cmd: "bulk tag", err: fmt.Errorf("%w: --add or --remove", errMissingArg)}
			}

			return a.runBulk(ctx, o, fs, "bulk tag", args, "Tagged", func(svc *tracker.Service, ref string) (ticket.Ticket, error) {
				return svc.Update(ctx, ref, p)
			})
		},
	}
}

func bulkCloseCmd(a *app) *Command {
	fs := bulkFlags("close")
	fs.StringP("message", "m", "", "Close message")

	return &Command{
		Flags: fs,
		Usage: "close <expr> [flags]",
		Short: "Close tickets",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			msg, _ := fs.GetString("message")

			return a.runBulk(ctx, o, fs, "bulk close", args, "Closed", func(svc *tracker.Service, ref string) (ticket.Ticket, error) {
				return svc.Close(ctx, ref, tracker.CloseInput{Message: msg})
			})
		},
	}
}

func bulkArchiveCmd(a *app) *Command {
	fs := bulkFlags("archive")

	return &Command{
		Flags: fs,
		Usage: "archive <expr> [flags]",
		Short: "Archive tickets",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return a.runBulk(ctx, o, fs, "bulk archive", args, "Archived", func(svc *tracker.Service, ref string) (ticket.Ticket, error) {
				return svc.Archive(ctx, ref)
			})
		},
	}
}

type bulkResult struct {
	Changed []ticket.Ticket `json:"changed"`
	Failed  []bulkFailure   `json:"failed"`
	DryRun  bool            `json:"dry_run"`
}

type bulkFailure struct {
	Slug  string `json:"slug"`
	Error string `json:"error"`
}

// runBulk applies fn to every ticket matching the expression in args.
func (a *app) runBulk(
	ctx context.Context,
	o *IO,
	fs *flag.FlagSet,
	cmd string,
	args []string,
	verb string,
	fn func(svc *tracker.Service, ref string) (ticket.Ticket, error),
) error {
	if len(args) == 0 {
		return &usageError{cmd: cmd, err: fmt.Errorf("%w: filter expression", errMissingArg)}
	}

	expr, err := a.expression(strings.Join(args, " "))
	if err != nil {
		return err
	}

	if expr.IsZero() {
		return fmt.Errorf("%w: empty filter expression", ticket.ErrInvalidInput)
	}

	svc, err := a.service()
	if err != nil {
		return err
	}

	matches, err := svc.Repo().Find(expr.Match)
	if err != nil {
		return err
	}

	dryRun, _ := fs.GetBool("dry-run")
	res := bulkResult{Changed: []ticket.Ticket{}, Failed: []bulkFailure{}, DryRun: dryRun}

	var errs []error

	for _, t := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}

		if dryRun {
			res.Changed = append(res.Changed, t)

			continue
		}

		next, err := fn(svc, t.ID.String())
		if err != nil {
			res.Failed = append(res.Failed, bulkFailure{Slug: t.Slug, Error: err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", t.Slug, err))

			continue
		}

		res.Changed = append(res.Changed, next)
	}

	if a.json {
		if err := o.JSON(res); err != nil {
			return err
		}
	} else {
		if dryRun {
			verb = "Would change"
		}

		now := a.now()

		for i := range res.Changed {
			o.Println(ticketLine(a.styles, &res.Changed[i], now))
		}

		o.Printf("%s %d of %d matching ticket(s)\n", verb, len(res.Changed), len(matches))
	}

	return errors.Join(errs...)
}
