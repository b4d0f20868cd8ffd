package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// ago renders t relative to now, e.g. "3 hours ago".
func ago(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return humanize.RelTime(t, now, "ago", "from now")
}

func formatTime(t *time.Time, layout string) string {
	if t == nil || t.IsZero() {
		return "-"
	}

	return t.Local().Format(layout)
}

func progress(t *ticket.Ticket) string {
	done, total := t.TaskProgress()
	if total == 0 {
		return ""
	}

	return fmt.Sprintf("%d/%d", done, total)
}

// ticketLine is the one-line summary used by list, search and board.
func ticketLine(s *styles, t *ticket.Ticket, now time.Time) string {
	parts := []string{
		s.id.Render(t.ID.Short()),
		pad(s.status(t.Status), 8),
		pad(s.priority(t.Priority), 9),
		pad(s.slug.Render(t.Slug), 32),
		t.Title,
	}

	var extra []string

	if p := progress(t); p != "" {
		extra = append(extra, "tasks "+p)
	}

	if t.Assignee != "" {
		extra = append(extra, "@"+t.Assignee)
	}

	if len(t.Tags) > 0 {
		extra = append(extra, "#"+strings.Join(t.Tags, " #"))
	}

	if t.Extensions.Archived {
		extra = append(extra, "archived")
	}

	extra = append(extra, ago(t.CreatedAt, now))

	return strings.Join(parts, "  ") + "  " + s.faint.Render("("+strings.Join(extra, ", ")+")")
}

// printTicket writes the full text view of t.
func printTicket(o *IO, s *styles, t *ticket.Ticket, dateFormat string, now time.Time, withTasks bool) {
	o.Println(s.slug.Render(t.Title))
	o.Println()
	o.Printf("%-10s %s\n", "ID:", t.ID.String())
	o.Printf("%-10s %s\n", "Slug:", t.Slug)
	o.Printf("%-10s %s\n", "Status:", s.status(t.Status))
	o.Printf("%-10s %s\n", "Priority:", s.priority(t.Priority))

	if t.Assignee != "" {
		o.Printf("%-10s %s\n", "Assignee:", t.Assignee)
	}

	if len(t.Tags) > 0 {
		o.Printf("%-10s %s\n", "Tags:", strings.Join(t.Tags, ", "))
	}

	o.Printf("%-10s %s (%s)\n", "Created:", t.CreatedAt.Local().Format(dateFormat), ago(t.CreatedAt, now))

	if t.StartedAt != nil {
		o.Printf("%-10s %s\n", "Started:", formatTime(t.StartedAt, dateFormat))
	}

	if t.ClosedAt != nil {
		o.Printf("%-10s %s\n", "Closed:", formatTime(t.ClosedAt, dateFormat))
	}

	ext := t.Extensions

	if ext.Archived {
		o.Printf("%-10s %s\n", "Archived:", formatTime(ext.ArchivedAt, dateFormat))
	}

	if ext.Branch != "" {
		o.Printf("%-10s %s\n", "Branch:", ext.Branch)
	}

	if ext.Worktree != "" {
		o.Printf("%-10s %s\n", "Worktree:", ext.Worktree)
	}

	if ext.PullRequest != "" {
		o.Printf("%-10s %s\n", "PR:", ext.PullRequest)
	}

	if ext.SpecID != "" {
		o.Printf("%-10s %s\n", "Spec:", ext.SpecID)
	}

	if ext.CloseMessage != "" {
		o.Printf("%-10s %s\n", "Closed as:", ext.CloseMessage)
	}

	for _, k := range slices.Sorted(maps.Keys(ext.Custom)) {
		o.Printf("%-10s %s\n", k+":", ext.Custom[k])
	}

	if t.Description != "" {
		o.Println()
		o.Println(t.Description)
	}

	if withTasks && len(t.Tasks) > 0 {
		o.Println()

		done, total := t.TaskProgress()
		o.Println(s.header.Render(fmt.Sprintf("Tasks (%d/%d)", done, total)))
		printTasks(o, s, t.Tasks)
	}
}

func printTasks(o *IO, s *styles, tasks []ticket.Task) {
	for i, task := range tasks {
		box := "[ ]"
		title := task.Title

		if task.Completed {
			box = s.success.Render("[x]")
			title = s.faint.Render(title)
		}

		o.Printf("%3d. %s %s %s\n", i+1, box, title, s.id.Render(task.ID.Short()))
	}
}

// markdownTicket renders t as a markdown document.
func markdownTicket(t *ticket.Ticket, dateFormat string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	fmt.Fprintf(&b, "- **ID:** %s\n", t.ID)
	fmt.Fprintf(&b, "- **Slug:** %s\n", t.Slug)
	fmt.Fprintf(&b, "- **Status:** %s\n", t.Status)
	fmt.Fprintf(&b, "- **Priority:** %s\n", t.Priority)

	if t.Assignee != "" {
		fmt.Fprintf(&b, "- **Assignee:** %s\n", t.Assignee)
	}

	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(t.Tags, ", "))
	}

	fmt.Fprintf(&b, "- **Created:** %s\n", t.CreatedAt.Local().Format(dateFormat))

	if t.ClosedAt != nil {
		fmt.Fprintf(&b, "- **Closed:** %s\n", formatTime(t.ClosedAt, dateFormat))
	}

	if t.Description != "" {
		fmt.Fprintf(&b, "\n## Description\n\n%s\n", t.Description)
	}

	if len(t.Tasks) > 0 {
		b.WriteString("\n## Tasks\n\n")

		for _, task := range t.Tasks {
			box := " "
			if task.Completed {
				box = "x"
			}

			fmt.Fprintf(&b, "- [%s] %s\n", box, task.Title)
		}
	}

	return b.String()
}
