package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/filter"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// FilterCmd returns the filter command group.
func FilterCmd(a *app) *Command {
	return Group("filter", "Manage saved filters",
		`A filter expression is a list of terms, all of which must match:

  status:todo,doing   values in one term are alternatives
  -tag:wip            a leading dash negates a term
  created:week        created and closed take today, week, last-7, 2025-01-31...
  login               a bare word matches title or description

Keys: `+strings.Join(filter.Keys, ", ")+`.
Saved filters are referenced as @name wherever an expression is accepted.
Put -- before an expression that starts with a negated term.`,
		filterCreateCmd(a),
		filterListCmd(a),
		filterShowCmd(a),
		filterDeleteCmd(a),
		filterApplyCmd(a),
	)
}

func filterCreateCmd(a *app) *Command {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.StringP("description", "d", "", "What the filter selects")

	return &Command{
		Flags: fs,
		Usage: "create [flags] <name> <expr...>",
		Short: "Save a filter",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 2 {
				return &usageError{cmd: "filter create", err: errMissingArg}
			}

			desc, _ := fs.GetString("description")

			st, err := a.filters()
			if err != nil {
				return err
			}

			f := filter.Saved{
				Name:        args[0],
				Expression:  strings.Join(args[1:], " "),
				Description: desc,
				CreatedAt:   a.now().UTC(),
			}

			if err := st.Create(f); err != nil {
				return err
			}

			if a.json {
				return o.JSON(f)
			}

			o.Printf("Saved filter @%s = %s\n", f.Name, f.Expression)

			return nil
		},
	}
}

func filterListCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("list", flag.ContinueOnError),
		Usage:   "list",
		Short:   "List saved filters",
		Aliases: []string{"ls"},
		Exec: func(_ context.Context, o *IO, _ []string) error {
			st, err := a.filters()
			if err != nil {
				return err
			}

			all, err := st.List()
			if err != nil {
				return err
			}

			if a.json {
				if all == nil {
					all = []filter.Saved{}
				}

				return o.JSON(all)
			}

			if len(all) == 0 {
				o.Println("No saved filters")

				return nil
			}

			for _, f := range all {
				line := pad(a.styles.slug.Render("@"+f.Name), 16) + " " + f.Expression
				if f.Description != "" {
					line += "  " + a.styles.faint.Render("# "+f.Description)
				}

				o.Println(line)
			}

			return nil
		},
	}
}

func filterShowCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show <name>",
		Short: "Show a saved filter",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("filter show", args, 1, "filter name"); err != nil {
				return err
			}

			st, err := a.filters()
			if err != nil {
				return err
			}

			f, err := st.Get(strings.TrimPrefix(args[0], "@"))
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(f)
			}

			o.Printf("%-12s @%s\n", "Name:", f.Name)
			o.Printf("%-12s %s\n", "Expression:", f.Expression)

			if f.Description != "" {
				o.Printf("%-12s %s\n", "Description:", f.Description)
			}

			return nil
		},
	}
}

func filterDeleteCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("delete", flag.ContinueOnError),
		Usage:   "delete <name>",
		Short:   "Delete a saved filter",
		Aliases: []string{"rm"},
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("filter delete", args, 1, "filter name"); err != nil {
				return err
			}

			st, err := a.filters()
			if err != nil {
				return err
			}

			name := strings.TrimPrefix(args[0], "@")
			if err := st.Delete(name); err != nil {
				return err
			}

			o.Println("Deleted filter @" + name)

			return nil
		},
	}
}

func filterApplyCmd(a *app) *Command {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.String("sort", "created", "Sort by: "+strings.Join(filter.SortKeys, "|"))
	fs.Bool("reverse", false, "Reverse the sort order")

	return &Command{
		Flags: fs,
		Usage: "apply <name|expr...> [flags]",
		Short: "List tickets matching a filter",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return &usageError{cmd: "filter apply", err: errMissingArg}
			}

			raw := strings.Join(args, " ")

			if len(args) == 1 && !strings.Contains(raw, ":") && !strings.HasPrefix(raw, "@") {
				if st, err := a.filters(); err == nil {
					if _, err := st.Get(raw); err == nil {
						raw = "@" + raw
					}
				}
			}

			expr, err := a.expression(raw)
			if err != nil {
				return err
			}

			svc, err := a.service()
			if err != nil {
				return err
			}

			tickets, err := svc.Repo().Find(func(t *ticket.Ticket) bool { return expr.Match(t) })
			if err != nil {
				return err
			}

			key, _ := fs.GetString("sort")
			reverse, _ := fs.GetBool("reverse")

			if err := filter.Sort(tickets, key, reverse); err != nil {
				return err
			}

			return a.printTickets(o, tickets)
		},
	}
}
