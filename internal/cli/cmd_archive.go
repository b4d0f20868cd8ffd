package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

// ArchiveCmd returns the archive command.
func ArchiveCmd(a *app) *Command {
	return archiveCmd(a, "archive", "Hide a ticket from default listings", "Archived", (*tracker.Service).Archive)
}

// UnarchiveCmd returns the unarchive command.
func UnarchiveCmd(a *app) *Command {
	return archiveCmd(a, "unarchive", "Restore an archived ticket", "Unarchived", (*tracker.Service).Unarchive)
}

func archiveCmd(a *app, name, short, verb string, op func(*tracker.Service, context.Context, string) (ticket.Ticket, error)) *Command {
	return &Command{
		Flags: flag.NewFlagSet(name, flag.ContinueOnError),
		Usage: name + " <ref>",
		Short: short,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(name, args, 1, "ticket reference"); err != nil {
				return err
			}

			return a.transition(ctx, o, verb, func(svc *tracker.Service) (ticket.Ticket, error) {
				return op(svc, ctx, args[0])
			})
		},
	}
}
