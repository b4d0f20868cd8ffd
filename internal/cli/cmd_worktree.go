package cli

import (
	"context"
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/git"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// WorktreeCmd returns the worktree command group.
func WorktreeCmd(a *app) *Command {
	return Group("worktree", "Manage ticket worktrees",
		`Worktrees are created by "vt start --worktree" and removed by "vt close".
These commands inspect and clean them up by hand.`,
		worktreeListCmd(a),
		worktreeRemoveCmd(a),
		worktreePruneCmd(a),
	)
}

// repo returns the project git repository, failing when there is none.
func (a *app) repo(ctx context.Context) (*git.Repo, error) {
	r := a.git()
	if !r.IsRepo(ctx) {
		return nil, fmt.Errorf("%w: %s", git.ErrNotRepo, r.Dir)
	}

	return r, nil
}

type worktreeRow struct {
	git.Worktree
	Ticket string `json:"ticket,omitempty"`
}

func worktreeListCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("list", flag.ContinueOnError),
		Usage:   "list",
		Short:   "List worktrees and the tickets using them",
		Aliases: []string{"ls"},
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			r, err := a.repo(ctx)
			if err != nil {
				return err
			}

			trees, err := r.Worktrees(ctx)
			if err != nil {
				return err
			}

			owners := map[string]string{}

			if svc, err := a.service(); err == nil {
				tickets, err := svc.Repo().Find(func(t *ticket.Ticket) bool { return t.Extensions.Worktree != "" })
				if err != nil {
					return err
				}

				for _, t := range tickets {
					owners[filepath.Clean(t.Extensions.Worktree)] = t.Slug
				}
			}

			rows := make([]worktreeRow, 0, len(trees))
			for _, wt := range trees {
				rows = append(rows, worktreeRow{Worktree: wt, Ticket: owners[filepath.Clean(wt.Path)]})
			}

			if a.json {
				return o.JSON(rows)
			}

			for _, row := range rows {
				branch := row.Branch
				if row.Detached {
					branch = "(detached)"
				}

				line := pad(row.Path, 48) + " " + pad(branch, 32)
				if row.Ticket != "" {
					line += " " + a.styles.slug.Render(row.Ticket)
				}

				if row.Prunable {
					line += " " + a.styles.warning.Render("prunable")
				}

				o.Println(line)
			}

			return nil
		},
	}
}

func worktreeRemoveCmd(a *app) *Command {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	fs.Bool("force", false, "Remove even with uncommitted changes")

	return &Command{
		Flags:   fs,
		Usage:   "remove <ref|path> [flags]",
		Short:   "Remove a ticket's worktree",
		Aliases: []string{"rm"},
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs("worktree remove", args, 1, "ticket reference or path"); err != nil {
				return err
			}

			force, _ := fs.GetBool("force")

			r, err := a.repo(ctx)
			if err != nil {
				return err
			}

			path := args[0]

			var owner *ticket.Ticket

			if svc, err := a.service(); err == nil {
				if t, err := svc.Resolve(args[0]); err == nil {
					if t.Extensions.Worktree == "" {
						return fmt.Errorf("%w: %s has no worktree", ticket.ErrInvalidInput, t.Slug)
					}

					path = t.Extensions.Worktree
					owner = &t
				}
			}

			if !force {
				if dirty, err := r.HasChanges(ctx, path); err == nil && dirty {
					return fmt.Errorf("%w: %s has uncommitted changes, use --force", ticket.ErrInvalidInput, path)
				}
			}

			if err := r.RemoveWorktree(ctx, path, force); err != nil {
				return err
			}

			if owner != nil {
				svc, _ := a.service()

				_, err := svc.Modify(ctx, owner.ID.String(), func(t *ticket.Ticket) error {
					t.Extensions.Worktree = ""

					return nil
				})
				if err != nil {
					o.Warn("worktree removed but ticket not updated", err.Error())
				}
			}

			o.Println("Removed worktree", path)

			return nil
		},
	}
}

func worktreePruneCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("prune", flag.ContinueOnError),
		Usage: "prune",
		Short: "Forget worktrees whose directory is gone",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			r, err := a.repo(ctx)
			if err != nil {
				return err
			}

			if err := r.Prune(ctx); err != nil {
				return err
			}

			o.Println("Pruned worktrees")

			return nil
		},
	}
}
