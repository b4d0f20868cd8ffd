package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// ActiveCmd returns the active command.
func ActiveCmd(a *app) *Command {
	fs := flag.NewFlagSet("active", flag.ContinueOnError)
	fs.Bool("clear", false, "Empty the active list")
	fs.Bool("add", false, "Append the ticket to the active list")
	fs.Bool("remove", false, "Remove the ticket from the active list")

	return &Command{
		Flags: fs,
		Usage: "active [ref] [flags]",
		Short: "Show or change the active tickets",
		Long: `Without arguments, list the active tickets; the first one is the
default target of commands that take an optional ref.

With a ref, make it the only active ticket, or add or remove it with
--add and --remove.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			ref, err := refArg("active", args)
			if err != nil {
				return err
			}

			clear, _ := fs.GetBool("clear")
			add, _ := fs.GetBool("add")
			remove, _ := fs.GetBool("remove")

			return execActive(o, a, ref, clear, add, remove)
		},
	}
}

func execActive(o *IO, a *app, ref string, clear, add, remove bool) error {
	modes := 0

	for _, m := range []bool{clear, add, remove} {
		if m {
			modes++
		}
	}

	if modes > 1 {
		return &usageError{cmd: "active", err: errExclusiveFlags}
	}

	if (add || remove) && ref == "" {
		return &usageError{cmd: "active", err: errMissingArg}
	}

	svc, err := a.service()
	if err != nil {
		return err
	}

	repo := svc.Repo()

	if clear {
		if err := repo.ClearActive(); err != nil {
			return err
		}

		o.Println("Cleared active tickets")

		return nil
	}

	if ref != "" {
		t, err := svc.Resolve(ref)
		if err != nil {
			return err
		}

		switch {
		case add:
			err = repo.AddActive(t.ID)
		case remove:
			err = repo.RemoveActive(t.ID)
		default:
			err = repo.SetActive(t.ID)
		}

		if err != nil {
			return err
		}
	}

	active, err := svc.Active()
	if err != nil {
		return err
	}

	if a.json {
		if active == nil {
			active = []ticket.Ticket{}
		}

		return o.JSON(active)
	}

	if len(active) == 0 {
		o.Println("No active tickets")

		return nil
	}

	now := a.now()

	for i := range active {
		marker := "  "
		if i == 0 {
			marker = a.styles.success.Render("* ")
		}

		o.Println(marker + ticketLine(a.styles, &active[i], now))
	}

	return nil
}
