package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// ShowCmd returns the show command.
func ShowCmd(a *app) *Command {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.Bool("tasks", false, "Include the task checklist")
	fs.Bool("markdown", false, "Print the ticket as markdown")

	return &Command{
		Flags: fs,
		Usage: "show [ref] [flags]",
		Short: "Show ticket details",
		Long:  `Show a ticket. Without a ref the active ticket is shown.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			ref, err := refArg("show", args)
			if err != nil {
				return err
			}

			svc, err := a.service()
			if err != nil {
				return err
			}

			t, err := svc.Resolve(ref)
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(t)
			}

			if md, _ := fs.GetBool("markdown"); md {
				o.Printf("%s", markdownTicket(&t, a.cfg.Output.DateFormat))

				return nil
			}

			tasks, _ := fs.GetBool("tasks")
			printTicket(o, a.styles, &t, a.cfg.Output.DateFormat, a.now(), tasks)

			return nil
		},
	}
}
