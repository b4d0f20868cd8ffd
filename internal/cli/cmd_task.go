package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

// TaskCmd returns the task command group.
func TaskCmd(a *app) *Command {
	return Group("task", "Manage a ticket's task checklist",
		`Tasks belong to one ticket, the active one unless --ticket is given.
A task is referenced by its number in "vt task list" or an id prefix.`,
		taskAddCmd(a),
		taskEditCmd(a, "complete", "Mark a task done", (*tracker.Service).CompleteTask, "Completed"),
		taskEditCmd(a, "uncomplete", "Mark a task not done", (*tracker.Service).UncompleteTask, "Reopened"),
		taskListCmd(a),
		taskEditCmd(a, "remove", "Delete a task", (*tracker.Service).RemoveTask, "Removed"),
	)
}

func taskFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringP("ticket", "t", "", "Ticket reference [default: active ticket]")

	return fs
}

func taskAddCmd(a *app) *Command {
	fs := taskFlags("add")

	return &Command{
		Flags: fs,
		Usage: "add <title...> [flags]",
		Short: "Add a task",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return &usageError{cmd: "task add", err: fmt.Errorf("%w: title", errMissingArg)}
			}

			ref, _ := fs.GetString("ticket")

			svc, err := a.service()
			if err != nil {
				return err
			}

			t, task, err := svc.AddTask(ctx, ref, strings.Join(args, " "))
			if err != nil {
				return err
			}

			return a.printTaskChange(o, "Added", t, task)
		},
	}
}

type taskOp func(s *tracker.Service, ctx context.Context, ref, taskRef string) (ticket.Ticket, ticket.Task, error)

func taskEditCmd(a *app, name, short string, op taskOp, verb string) *Command {
	fs := taskFlags(name)

	return &Command{
		Flags: fs,
		Usage: name + " <task> [flags]",
		Short: short,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs("task "+name, args, 1, "task number or id"); err != nil {
				return err
			}

			ref, _ := fs.GetString("ticket")

			svc, err := a.service()
			if err != nil {
				return err
			}

			t, task, err := op(svc, ctx, ref, args[0])
			if err != nil {
				return err
			}

			return a.printTaskChange(o, verb, t, task)
		},
	}
}

func taskListCmd(a *app) *Command {
	fs := taskFlags("list")

	return &Command{
		Flags:   fs,
		Usage:   "list [flags]",
		Short:   "List tasks",
		Aliases: []string{"ls"},
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: "task list", err: errTooManyArgs}
			}

			ref, _ := fs.GetString("ticket")

			svc, err := a.service()
			if err != nil {
				return err
			}

			t, err := svc.Resolve(ref)
			if err != nil {
				return err
			}

			if a.json {
				tasks := t.Tasks
				if tasks == nil {
					tasks = []ticket.Task{}
				}

				return o.JSON(tasks)
			}

			done, total := t.TaskProgress()
			o.Println(a.styles.header.Render(fmt.Sprintf("%s (%d/%d)", t.Slug, done, total)))

			if total == 0 {
				o.Println("No tasks")

				return nil
			}

			printTasks(o, a.styles, t.Tasks)

			return nil
		},
	}
}

func (a *app) printTaskChange(o *IO, verb string, t ticket.Ticket, task ticket.Task) error {
	if a.json {
		return o.JSON(map[string]any{"ticket": t.Slug, "task": task})
	}

	done, total := t.TaskProgress()
	o.Printf("%s task %s %q on %s (%d/%d done)\n", verb, a.styles.id.Render(task.ID.Short()), task.Title, t.Slug, done, total)

	return nil
}
