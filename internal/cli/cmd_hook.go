package cli

import (
	"context"
	"errors"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/events"
	"github.com/calvinalkan/vibe-ticket/internal/hooks"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// HookCmd returns the hook command group.
func HookCmd(a *app) *Command {
	kinds := make([]string, len(events.Kinds))
	for i, k := range events.Kinds {
		kinds[i] = string(k)
	}

	return Group("hook", "Manage event hooks",
		`Hooks are shell commands run with sh -c from the project root when a
ticket event fires. They see VT_EVENT, VT_TICKET_ID, VT_RUN_ID and
VT_CONTEXT (a JSON document) in the environment.

Events: `+strings.Join(kinds, ", ")+`.
A failing pre_* hook created with --abort-on-failure cancels the change.`,
		hookCreateCmd(a),
		hookListCmd(a),
		hookDeleteCmd(a),
		hookToggleCmd(a, "enable", true),
		hookToggleCmd(a, "disable", false),
		hookTestCmd(a),
	)
}

func hookCreateCmd(a *app) *Command {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.StringP("description", "d", "", "What the hook does")
	fs.Bool("abort-on-failure", false, "Cancel the change when a pre_* hook fails")
	fs.Bool("disabled", false, "Create the hook disabled")

	return &Command{
		Flags: fs,
		Usage: "create [flags] <name> <event> <command...>",
		Short: "Create a hook",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 3 {
				return &usageError{cmd: "hook create", err: errMissingArg}
			}

			desc, _ := fs.GetString("description")
			abort, _ := fs.GetBool("abort-on-failure")
			disabled, _ := fs.GetBool("disabled")

			st, err := a.hooks()
			if err != nil {
				return err
			}

			h := hooks.Hook{
				Name:           args[0],
				Event:          events.Kind(args[1]),
				Command:        strings.Join(args[2:], " "),
				Enabled:        !disabled,
				Description:    desc,
				AbortOnFailure: abort,
				CreatedAt:      a.now().UTC(),
			}

			if err := st.Create(h); err != nil {
				return err
			}

			h, err = st.Get(h.Name)
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(h)
			}

			o.Printf("Created hook %s on %s\n", a.styles.slug.Render(h.Name), h.Event)

			return nil
		},
	}
}

func hookListCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("list", flag.ContinueOnError),
		Usage:   "list",
		Short:   "List hooks",
		Aliases: []string{"ls"},
		Exec: func(_ context.Context, o *IO, _ []string) error {
			st, err := a.hooks()
			if err != nil {
				return err
			}

			all, err := st.List()
			if err != nil {
				return err
			}

			if a.json {
				if all == nil {
					all = []hooks.Hook{}
				}

				return o.JSON(all)
			}

			if len(all) == 0 {
				o.Println("No hooks")

				return nil
			}

			for _, h := range all {
				state := a.styles.success.Render("on ")
				if !h.Enabled {
					state = a.styles.faint.Render("off")
				}

				flags := ""
				if h.AbortOnFailure {
					flags = " (aborts)"
				}

				o.Printf("%s %s %s %s%s\n", state, pad(a.styles.slug.Render(h.Name), 16), pad(string(h.Event), 18), h.Command, flags)
			}

			return nil
		},
	}
}

func hookDeleteCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("delete", flag.ContinueOnError),
		Usage:   "delete <name>",
		Short:   "Delete a hook",
		Aliases: []string{"rm"},
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("hook delete", args, 1, "hook name"); err != nil {
				return err
			}

			st, err := a.hooks()
			if err != nil {
				return err
			}

			if err := st.Delete(args[0]); err != nil {
				return err
			}

			o.Println("Deleted hook", args[0])

			return nil
		},
	}
}

func hookToggleCmd(a *app, name string, enabled bool) *Command {
	short := "Enable a hook"
	if !enabled {
		short = "Disable a hook"
	}

	return &Command{
		Flags: flag.NewFlagSet(name, flag.ContinueOnError),
		Usage: name + " <name>",
		Short: short,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("hook "+name, args, 1, "hook name"); err != nil {
				return err
			}

			st, err := a.hooks()
			if err != nil {
				return err
			}

			if err := st.SetEnabled(args[0], enabled); err != nil {
				return err
			}

			o.Printf("Hook %s %sd\n", args[0], name)

			return nil
		},
	}
}

func hookTestCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("test", flag.ContinueOnError),
		Usage: "test <name> [ref]",
		Short: "Run a hook once against a ticket",
		Long: `Run a hook as if its event fired for the ticket ref names, or the
active ticket. Nothing is saved. Without any ticket the hook runs with an
empty ticket context.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return &usageError{cmd: "hook test", err: errMissingArg}
			}

			ref, err := refArg("hook test", args[1:])
			if err != nil {
				return err
			}

			st, err := a.hooks()
			if err != nil {
				return err
			}

			h, err := st.Get(args[0])
			if err != nil {
				return err
			}

			svc, err := a.service()
			if err != nil {
				return err
			}

			var t ticket.Ticket

			if resolved, err := svc.Resolve(ref); err == nil {
				t = resolved
			} else if ref != "" || !errors.Is(err, ticket.ErrNoActiveTicket) {
				return err
			}

			e := events.Event{Kind: h.Event, Ticket: t, From: t.Status, To: t.Status, At: a.now()}

			runner := hooks.NewRunner(st, a.cfg.ProjectRoot, environ(a.env), o.Out(), a.log)
			if err := runner.Run(ctx, h, e); err != nil {
				return err
			}

			o.Println("Hook", h.Name, "succeeded")

			return nil
		},
	}
}
