package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// recentCount is how many recently touched tickets check --detailed shows.
const recentCount = 5

// CheckCmd returns the check command.
func CheckCmd(a *app) *Command {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.Bool("detailed", false, "List recent tickets and unreadable files")
	fs.Bool("stats", false, "Show ticket statistics")

	return &Command{
		Flags: fs,
		Usage: "check [flags]",
		Short: "Show project status",
		Long: `Show the project, the active ticket and the current git branch.

Unreadable ticket files are counted instead of failing the command.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: "check", err: errTooManyArgs}
			}

			detailed, _ := fs.GetBool("detailed")
			stats, _ := fs.GetBool("stats")

			return execCheck(ctx, o, a, detailed, stats)
		},
	}
}

type checkStats struct {
	Total     int                   `json:"total"`
	ByStatus  map[ticket.Status]int `json:"by_status"`
	Archived  int                   `json:"archived"`
	Tasks     int                   `json:"tasks"`
	TasksDone int                   `json:"tasks_done"`
}

type checkReport struct {
	Project     string         `json:"project"`
	Description string         `json:"description,omitempty"`
	Root        string         `json:"root"`
	CreatedAt   string         `json:"created_at"`
	Active      *ticket.Ticket `json:"active"`
	Branch      string         `json:"branch,omitempty"`
	Stats       *checkStats    `json:"stats,omitempty"`
	Recent      []string       `json:"recent,omitempty"`
	Corrupt     []string       `json:"corrupt"`
}

func execCheck(ctx context.Context, o *IO, a *app, detailed, withStats bool) error {
	if _, err := a.storage(); err != nil {
		return err
	}

	corrupt := []string{}

	s := storage.Open(a.cfg.StorageDir,
		storage.WithLockTimeout(a.cfg.LockWait),
		storage.WithLogger(a.log),
		storage.WithSkipCorrupt(func(path string, _ error) { corrupt = append(corrupt, path) }),
	)

	project, err := s.Project().Load()
	if err != nil {
		return err
	}

	tickets, err := s.LoadAll()
	if err != nil {
		return err
	}

	rep := checkReport{
		Project:     project.Name,
		Description: project.Description,
		Root:        a.cfg.ProjectRoot,
		CreatedAt:   project.CreatedAt.Local().Format(a.cfg.Output.DateFormat),
		Corrupt:     corrupt,
	}

	if id, ok, err := s.GetActive(); err != nil {
		return err
	} else if ok {
		if i := slices.IndexFunc(tickets, func(t ticket.Ticket) bool { return t.ID.Equal(id) }); i >= 0 {
			rep.Active = &tickets[i]
		}
	}

	if repo := a.git(); repo.IsRepo(ctx) {
		if branch, err := repo.CurrentBranch(ctx); err == nil {
			rep.Branch = branch
		} else {
			o.Warn("git branch unknown", err.Error())
		}
	}

	if withStats || detailed {
		st := &checkStats{Total: len(tickets), ByStatus: make(map[ticket.Status]int)}

		for i := range tickets {
			t := &tickets[i]
			st.ByStatus[t.Status]++

			if t.Extensions.Archived {
				st.Archived++
			}

			done, total := t.TaskProgress()
			st.Tasks += total
			st.TasksDone += done
		}

		rep.Stats = st
	}

	now := a.now()

	if detailed {
		recent := slices.Clone(tickets)
		slices.SortFunc(recent, func(x, y ticket.Ticket) int { return y.CreatedAt.Compare(x.CreatedAt) })

		for _, t := range recent[:min(recentCount, len(recent))] {
			rep.Recent = append(rep.Recent, ticketLine(a.styles, &t, now))
		}
	}

	if a.json {
		return o.JSON(rep)
	}

	o.Printf("%-9s %s\n", "Project:", a.styles.slug.Render(rep.Project))

	if rep.Description != "" {
		o.Printf("%-9s %s\n", "", rep.Description)
	}

	o.Printf("%-9s %s\n", "Root:", rep.Root)
	o.Printf("%-9s %s (%s)\n", "Created:", rep.CreatedAt, ago(project.CreatedAt, now))

	if rep.Active != nil {
		o.Printf("%-9s %s (%s)\n", "Active:", rep.Active.Slug, a.styles.status(rep.Active.Status))
	} else {
		o.Printf("%-9s %s\n", "Active:", a.styles.faint.Render("none"))
	}

	if rep.Branch != "" {
		o.Printf("%-9s %s\n", "Branch:", rep.Branch)
	}

	if st := rep.Stats; st != nil {
		o.Println()
		o.Println(a.styles.header.Render("Statistics"))
		o.Printf("  %-9s %s\n", "total", humanize.Comma(int64(st.Total)))

		for _, status := range ticket.Statuses {
			o.Printf("  %-9s %s\n", status, humanize.Comma(int64(st.ByStatus[status])))
		}

		o.Printf("  %-9s %s\n", "archived", humanize.Comma(int64(st.Archived)))

		if st.Tasks > 0 {
			o.Printf("  %-9s %d/%d done\n", "tasks", st.TasksDone, st.Tasks)
		}
	}

	if len(rep.Recent) > 0 {
		o.Println()
		o.Println(a.styles.header.Render("Recent"))

		for _, line := range rep.Recent {
			o.Println("  " + line)
		}
	}

	if len(corrupt) > 0 {
		o.Warn(fmt.Sprintf("%d unreadable ticket file(s)", len(corrupt)), "run `vt check --detailed` to list them")

		if detailed {
			o.Println()
			o.Println(a.styles.warning.Render("Unreadable"))

			for _, path := range corrupt {
				o.Println("  " + path)
			}
		}
	}

	return nil
}
