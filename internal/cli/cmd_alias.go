package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/aliases"
)

// AliasCmd returns the alias command group.
func AliasCmd(a *app) *Command {
	return Group("alias", "Manage command aliases",
		`An alias names a vt command line. "vt <alias> [args]" runs it with
args appended. Aliases expand to builtin commands only.`,
		aliasCreateCmd(a),
		aliasListCmd(a),
		aliasShowCmd(a),
		aliasDeleteCmd(a),
		aliasRunCmd(a),
	)
}

func aliasCreateCmd(a *app) *Command {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.StringP("description", "d", "", "What the alias is for")

	return &Command{
		Flags: fs,
		Usage: "create [flags] <name> <command...>",
		Short: "Create an alias",
		Long: `Create an alias. Flags must come before the name; everything after
it is the command, e.g.

  vt alias create -d "my open work" mine list --assignee sam --open`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 2 {
				return &usageError{cmd: "alias create", err: errMissingArg}
			}

			desc, _ := fs.GetString("description")

			st, err := a.aliases()
			if err != nil {
				return err
			}

			al := aliases.Alias{
				Name:        args[0],
				Command:     joinArgs(args[1:]),
				Description: desc,
				CreatedAt:   a.now().UTC(),
			}

			if err := st.Create(al); err != nil {
				return err
			}

			if a.json {
				return o.JSON(al)
			}

			o.Printf("Created alias %s = %s\n", a.styles.slug.Render(al.Name), al.Command)

			return nil
		},
	}
}

// joinArgs rebuilds a command line SplitArgs turns back into args. A single
// argument is taken as an already quoted command line.
func joinArgs(args []string) string {
	if len(args) == 1 {
		return args[0]
	}

	quoted := make([]string, len(args))

	for i, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t\"'\\") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'"'"'`) + "'"
		}

		quoted[i] = arg
	}

	return strings.Join(quoted, " ")
}

func aliasListCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("list", flag.ContinueOnError),
		Usage:   "list",
		Short:   "List aliases",
		Aliases: []string{"ls"},
		Exec: func(_ context.Context, o *IO, _ []string) error {
			st, err := a.aliases()
			if err != nil {
				return err
			}

			all, err := st.List()
			if err != nil {
				return err
			}

			if a.json {
				if all == nil {
					all = []aliases.Alias{}
				}

				return o.JSON(all)
			}

			if len(all) == 0 {
				o.Println("No aliases")

				return nil
			}

			for _, al := range all {
				line := pad(a.styles.slug.Render(al.Name), 16) + " " + al.Command
				if al.Description != "" {
					line += "  " + a.styles.faint.Render("# "+al.Description)
				}

				o.Println(line)
			}

			return nil
		},
	}
}

func aliasShowCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show <name>",
		Short: "Show an alias",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("alias show", args, 1, "alias name"); err != nil {
				return err
			}

			st, err := a.aliases()
			if err != nil {
				return err
			}

			al, err := st.Get(args[0])
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(al)
			}

			o.Printf("%-12s %s\n", "Name:", al.Name)
			o.Printf("%-12s vt %s\n", "Command:", al.Command)

			if al.Description != "" {
				o.Printf("%-12s %s\n", "Description:", al.Description)
			}

			o.Printf("%-12s %s\n", "Created:", al.CreatedAt.Local().Format(a.cfg.Output.DateFormat))

			return nil
		},
	}
}

func aliasDeleteCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("delete", flag.ContinueOnError),
		Usage:   "delete <name>",
		Short:   "Delete an alias",
		Aliases: []string{"rm"},
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("alias delete", args, 1, "alias name"); err != nil {
				return err
			}

			st, err := a.aliases()
			if err != nil {
				return err
			}

			if err := st.Delete(args[0]); err != nil {
				return err
			}

			o.Println("Deleted alias", args[0])

			return nil
		},
	}
}

func aliasRunCmd(a *app) *Command {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetInterspersed(false)

	return &Command{
		Flags: fs,
		Usage: "run <name> [args...]",
		Short: "Run an alias",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return &usageError{cmd: "alias run", err: errMissingArg}
			}

			st, err := a.aliases()
			if err != nil {
				return err
			}

			if _, err := st.Get(args[0]); err != nil {
				return err
			}

			expanded, _, err := a.expandAlias(args[0], args[1:])
			if err != nil {
				return err
			}

			a.aliasDepth++
			defer func() { a.aliasDepth-- }()

			return a.dispatch(ctx, o, expanded)
		},
	}
}
