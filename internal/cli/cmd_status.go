package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/git"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

// StartCmd returns the start command.
func StartCmd(a *app) *Command {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.Bool("branch", false, "Create and check out a git branch for the ticket")
	fs.Bool("worktree", false, "Create a git worktree for the ticket [default: config git.worktree_enabled]")
	fs.Bool("no-worktree", false, "Do not create a worktree even when enabled in config")

	return &Command{
		Flags: fs,
		Usage: "start [ref] [flags]",
		Short: "Start working on a ticket",
		Long: `Move a todo or blocked ticket to doing and add it to the active tickets.

With --worktree (or git.worktree_enabled) a worktree is added at
<worktree_base>/<worktree_prefix><slug> on branch <branch_prefix><slug>.
Git failures are reported as warnings; the ticket is started regardless.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ref, err := refArg("start", args)
			if err != nil {
				return err
			}

			branch, _ := fs.GetBool("branch")
			worktree, _ := fs.GetBool("worktree")
			noWorktree, _ := fs.GetBool("no-worktree")

			if worktree && noWorktree {
				return &usageError{cmd: "start", err: errExclusiveFlags}
			}

			svc, err := a.service()
			if err != nil {
				return err
			}

			t, err := svc.Start(ctx, ref)
			if err != nil {
				return err
			}

			t = a.prepareGit(ctx, o, t, branch, worktree || (a.cfg.WorktreesEnabled() && !noWorktree))

			return a.printTransition(o, "Started", t)
		},
	}
}

// prepareGit creates the branch or worktree of a started ticket and records
// it on the ticket. Failures become warnings.
func (a *app) prepareGit(ctx context.Context, o *IO, t ticket.Ticket, branch, worktree bool) ticket.Ticket {
	if !branch && !worktree {
		return t
	}

	repo := a.git()
	name := git.BranchName(a.cfg.Git.BranchPrefix, t.Slug)

	if !repo.IsRepo(ctx) {
		o.Warn("git setup skipped", a.cfg.ProjectRoot+" is not a git repository")

		return t
	}

	var path string

	if worktree {
		path = git.WorktreePath(a.cfg.ProjectRoot, a.cfg.Git.WorktreeBase, a.cfg.Git.WorktreePrefix, t.Slug)

		if err := repo.AddWorktree(ctx, path, name); err != nil {
			o.Warn("worktree not created", err.Error())

			return t
		}
	} else if err := repo.CreateBranch(ctx, name); err != nil {
		o.Warn("branch not created", err.Error())

		return t
	}

	svc, err := a.service()
	if err != nil {
		o.Warn("git details not recorded", err.Error())

		return t
	}

	next, err := svc.Modify(ctx, t.ID.String(), func(t *ticket.Ticket) error {
		t.Extensions.Branch = name
		t.Extensions.Worktree = path

		return nil
	})
	if err != nil {
		o.Warn("git details not recorded", err.Error())

		return t
	}

	return next
}

// ReviewCmd returns the review command.
func ReviewCmd(a *app) *Command {
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	fs.StringP("notes", "n", "", "Review notes appended to the description")

	return &Command{
		Flags: fs,
		Usage: "review [ref] [flags]",
		Short: "Move a ticket to review",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ref, err := refArg("review", args)
			if err != nil {
				return err
			}

			notes, _ := fs.GetString("notes")

			return a.transition(ctx, o, "Review requested for", func(svc *tracker.Service) (ticket.Ticket, error) {
				return svc.Review(ctx, ref, notes)
			})
		},
	}
}

// ApproveCmd returns the approve command.
func ApproveCmd(a *app) *Command {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	fs.StringP("message", "m", "", "Approval message appended to the description")

	return &Command{
		Flags: fs,
		Usage: "approve [ref] [flags]",
		Short: "Approve a ticket and mark it done",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ref, err := refArg("approve", args)
			if err != nil {
				return err
			}

			msg, _ := fs.GetString("message")

			return a.transition(ctx, o, "Approved", func(svc *tracker.Service) (ticket.Ticket, error) {
				return svc.Approve(ctx, ref, msg)
			})
		},
	}
}

// RequestChangesCmd returns the request-changes command.
func RequestChangesCmd(a *app) *Command {
	fs := flag.NewFlagSet("request-changes", flag.ContinueOnError)
	fs.StringP("notes", "n", "", "What needs to change")

	return &Command{
		Flags: fs,
		Usage: "request-changes [ref] [flags]",
		Short: "Send a ticket in review back to doing",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ref, err := refArg("request-changes", args)
			if err != nil {
				return err
			}

			notes, _ := fs.GetString("notes")

			return a.transition(ctx, o, "Changes requested for", func(svc *tracker.Service) (ticket.Ticket, error) {
				return svc.RequestChanges(ctx, ref, notes)
			})
		},
	}
}

// BlockCmd returns the block command.
func BlockCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("block", flag.ContinueOnError),
		Usage: "block [ref]",
		Short: "Mark a ticket blocked",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ref, err := refArg("block", args)
			if err != nil {
				return err
			}

			return a.transition(ctx, o, "Blocked", func(svc *tracker.Service) (ticket.Ticket, error) {
				return svc.Block(ctx, ref)
			})
		},
	}
}

// ReopenCmd returns the reopen command.
func ReopenCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("reopen", flag.ContinueOnError),
		Usage: "reopen <ref>",
		Short: "Move a done ticket back to todo",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs("reopen", args, 1, "ticket reference"); err != nil {
				return err
			}

			return a.transition(ctx, o, "Reopened", func(svc *tracker.Service) (ticket.Ticket, error) {
				return svc.Reopen(ctx, args[0])
			})
		},
	}
}

// CloseCmd returns the close command.
func CloseCmd(a *app) *Command {
	fs := flag.NewFlagSet("close", flag.ContinueOnError)
	fs.StringP("message", "m", "", "Close message")
	fs.Bool("archive", false, "Archive the ticket as well")
	fs.String("pr", "", "Pull request URL to record")
	fs.Bool("keep-worktree", false, "Do not remove the ticket's worktree")

	return &Command{
		Flags:   fs,
		Usage:   "close [ref] [flags]",
		Short:   "Mark a ticket done",
		Aliases: []string{"finish"},
		Long: `Mark a ticket done and remove it from the active tickets.

A worktree created by start is removed unless --keep-worktree is given.
Removal failures are reported as warnings.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ref, err := refArg("close", args)
			if err != nil {
				return err
			}

			msg, _ := fs.GetString("message")
			archive, _ := fs.GetBool("archive")
			pr, _ := fs.GetString("pr")
			keep, _ := fs.GetBool("keep-worktree")

			svc, err := a.service()
			if err != nil {
				return err
			}

			t, err := svc.Close(ctx, ref, tracker.CloseInput{Message: msg, Archive: archive, PullRequest: pr})
			if err != nil {
				return err
			}

			if t.Extensions.Worktree != "" && !keep {
				if err := a.git().RemoveWorktree(ctx, t.Extensions.Worktree, false); err != nil {
					o.Warn("worktree not removed", err.Error())
				}
			}

			return a.printTransition(o, "Closed", t)
		},
	}
}

// HandoffCmd returns the handoff command.
func HandoffCmd(a *app) *Command {
	fs := flag.NewFlagSet("handoff", flag.ContinueOnError)
	fs.StringP("notes", "n", "", "Notes for the new assignee")

	return &Command{
		Flags: fs,
		Usage: "handoff <assignee> [ref] [flags]",
		Short: "Reassign a ticket with handoff notes",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return &usageError{cmd: "handoff", err: errMissingArg}
			}

			ref, err := refArg("handoff", args[1:])
			if err != nil {
				return err
			}

			notes, _ := fs.GetString("notes")

			return a.transition(ctx, o, "Handed off", func(svc *tracker.Service) (ticket.Ticket, error) {
				return svc.Handoff(ctx, ref, args[0], notes)
			})
		},
	}
}

// transition runs fn against the service and prints the outcome.
func (a *app) transition(_ context.Context, o *IO, verb string, fn func(*tracker.Service) (ticket.Ticket, error)) error {
	svc, err := a.service()
	if err != nil {
		return err
	}

	t, err := fn(svc)
	if err != nil {
		return err
	}

	return a.printTransition(o, verb, t)
}

func (a *app) printTransition(o *IO, verb string, t ticket.Ticket) error {
	if a.json {
		return o.JSON(t)
	}

	o.Printf("%s %s (%s)\n", verb, a.styles.slug.Render(t.Slug), a.styles.status(t.Status))

	return nil
}
