// Package ticket holds the domain model: identifiers, tickets, tasks, the
// status and priority enums, project configuration, and the error kinds
// shared by every other package.
package ticket

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Ticket is the persisted work item.
//
// Storage location is derived from ID alone, so ID never changes after
// creation. Slug uniqueness is checked by callers at creation time.
type Ticket struct {
	ID          ID         `yaml:"id" json:"id"`
	Slug        string     `yaml:"slug" json:"slug"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description,omitempty" json:"description"`
	Priority    Priority   `yaml:"priority" json:"priority"`
	Status      Status     `yaml:"status" json:"status"`
	Tags        []string   `yaml:"tags,omitempty" json:"tags"`
	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
	StartedAt   *time.Time `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	ClosedAt    *time.Time `yaml:"closed_at,omitempty" json:"closed_at,omitempty"`
	Assignee    string     `yaml:"assignee,omitempty" json:"assignee,omitempty"`
	Tasks       []Task     `yaml:"tasks,omitempty" json:"tasks"`
	Extensions  Extensions `yaml:"extensions,omitempty" json:"extensions"`
}

// Task is a checklist entry owned by one ticket.
type Task struct {
	ID          TaskID     `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Completed   bool       `yaml:"completed" json:"completed"`
	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Extensions carries feature-specific fields. Custom is the only open map and
// is reserved for user-supplied key/value pairs.
type Extensions struct {
	Archived     bool              `yaml:"archived,omitempty" json:"archived,omitempty"`
	ArchivedAt   *time.Time        `yaml:"archived_at,omitempty" json:"archived_at,omitempty"`
	CloseMessage string            `yaml:"close_message,omitempty" json:"close_message,omitempty"`
	SpecID       string            `yaml:"spec_id,omitempty" json:"spec_id,omitempty"`
	Worktree     string            `yaml:"worktree,omitempty" json:"worktree,omitempty"`
	Branch       string            `yaml:"branch,omitempty" json:"branch,omitempty"`
	PullRequest  string            `yaml:"pull_request,omitempty" json:"pull_request,omitempty"`
	Custom       map[string]string `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// IsZero lets yaml omit an empty extensions block.
func (e Extensions) IsZero() bool {
	return !e.Archived && e.ArchivedAt == nil && e.CloseMessage == "" && e.SpecID == "" &&
		e.Worktree == "" && e.Branch == "" && e.PullRequest == "" && len(e.Custom) == 0
}

// Start moves a todo or blocked ticket to doing and stamps StartedAt the
// first time.
func (t *Ticket) Start(now time.Time) error {
	if !t.Status.CanStart() {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, t.Status)
	}

	t.SetStatus(StatusDoing, now)

	return nil
}

// Review moves the ticket to review.
func (t *Ticket) Review(now time.Time) error {
	if t.Status == StatusDone {
		return fmt.Errorf("%w: cannot review a done ticket", ErrInvalidTransition)
	}

	t.SetStatus(StatusReview, now)

	return nil
}

// Block moves a todo or doing ticket to blocked.
func (t *Ticket) Block(now time.Time) error {
	if t.Status != StatusTodo && t.Status != StatusDoing {
		return fmt.Errorf("%w: cannot block from %s", ErrInvalidTransition, t.Status)
	}

	t.SetStatus(StatusBlocked, now)

	return nil
}

// Close marks the ticket done, stamps ClosedAt and records message.
func (t *Ticket) Close(now time.Time, message string) {
	t.SetStatus(StatusDone, now)

	if message != "" {
		t.Extensions.CloseMessage = message
	}
}

// Reopen moves a done ticket back to todo.
func (t *Ticket) Reopen() error {
	if t.Status != StatusDone {
		return fmt.Errorf("%w: ticket is %s, not done", ErrInvalidTransition, t.Status)
	}

	t.Status = StatusTodo
	t.ClosedAt = nil

	return nil
}

// SetStatus writes s without transition checks. StartedAt is stamped on the
// first move to doing and ClosedAt on every move to done.
func (t *Ticket) SetStatus(s Status, now time.Time) {
	t.Status = s

	switch s {
	case StatusDoing:
		if t.StartedAt == nil {
			t.StartedAt = timePtr(now)
		}
	case StatusDone:
		t.ClosedAt = timePtr(now)
	default:
	}
}

// Archive sets the archived flag.
func (t *Ticket) Archive(now time.Time) {
	t.Extensions.Archived = true
	t.Extensions.ArchivedAt = timePtr(now)
}

// Unarchive clears the archived flag.
func (t *Ticket) Unarchive() {
	t.Extensions.Archived = false
	t.Extensions.ArchivedAt = nil
}

// AddTags adds tags not already present. Empty tags are ignored.
func (t *Ticket) AddTags(tags ...string) {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(t.Tags, tag) {
			continue
		}

		t.Tags = append(t.Tags, tag)
	}
}

// RemoveTags removes every listed tag.
func (t *Ticket) RemoveTags(tags ...string) {
	t.Tags = slices.DeleteFunc(t.Tags, func(tag string) bool {
		return slices.Contains(tags, tag)
	})
	t.Compact()
}

// HasTag reports whether tag is set.
func (t *Ticket) HasTag(tag string) bool { return slices.Contains(t.Tags, tag) }

// AddTask appends a new open task and returns it.
func (t *Ticket) AddTask(title string, now time.Time) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, fmt.Errorf("%w: task title is empty", ErrInvalidInput)
	}

	task := Task{ID: NewTaskID(), Title: title, CreatedAt: now}
	t.Tasks = append(t.Tasks, task)

	return task, nil
}

// FindTask resolves ref to a task index. ref may be a full task id, a unique
// id prefix, or a 1-based position.
func (t *Ticket) FindTask(ref string) (int, error) {
	ref = strings.TrimSpace(ref)

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(t.Tasks) {
			return -1, fmt.Errorf("%w: #%d", ErrTaskNotFound, n)
		}

		return n - 1, nil
	}

	match := -1

	for i, task := range t.Tasks {
		id := task.ID.String()
		if id == ref {
			return i, nil
		}

		if len(ref) >= 4 && strings.HasPrefix(id, ref) {
			if match >= 0 {
				return -1, fmt.Errorf("%w: task prefix %q is ambiguous", ErrInvalidInput, ref)
			}

			match = i
		}
	}

	if match < 0 {
		return -1, fmt.Errorf("%w: %s", ErrTaskNotFound, ref)
	}

	return match, nil
}

// CompleteTask marks the task done and stamps CompletedAt.
func (t *Ticket) CompleteTask(ref string, now time.Time) (Task, error) {
	i, err := t.FindTask(ref)
	if err != nil {
		return Task{}, err
	}

	t.Tasks[i].Completed = true
	t.Tasks[i].CompletedAt = timePtr(now)

	return t.Tasks[i], nil
}

// UncompleteTask reopens the task and clears CompletedAt.
func (t *Ticket) UncompleteTask(ref string) (Task, error) {
	i, err := t.FindTask(ref)
	if err != nil {
		return Task{}, err
	}

	t.Tasks[i].Completed = false
	t.Tasks[i].CompletedAt = nil

	return t.Tasks[i], nil
}

// RemoveTask deletes the task and returns it.
func (t *Ticket) RemoveTask(ref string) (Task, error) {
	i, err := t.FindTask(ref)
	if err != nil {
		return Task{}, err
	}

	task := t.Tasks[i]
	t.Tasks = slices.Delete(t.Tasks, i, i+1)
	t.Compact()

	return task, nil
}

// TaskProgress returns completed and total task counts.
func (t *Ticket) TaskProgress() (int, int) {
	done := 0

	for _, task := range t.Tasks {
		if task.Completed {
			done++
		}
	}

	return done, len(t.Tasks)
}

// Compact replaces empty Tags, Tasks and Custom with nil. Records omit
// empty collections, so a compacted ticket is the form storage loads back.
func (t *Ticket) Compact() {
	if len(t.Tags) == 0 {
		t.Tags = nil
	}

	if len(t.Tasks) == 0 {
		t.Tasks = nil
	}

	if len(t.Extensions.Custom) == 0 {
		t.Extensions.Custom = nil
	}
}

// Clone returns a deep copy of t.
func (t Ticket) Clone() Ticket {
	c := t
	c.Tags = slices.Clone(t.Tags)
	c.StartedAt = clonePtr(t.StartedAt)
	c.ClosedAt = clonePtr(t.ClosedAt)
	c.Extensions.ArchivedAt = clonePtr(t.Extensions.ArchivedAt)
	c.Extensions.Custom = maps.Clone(t.Extensions.Custom)

	if t.Tasks != nil {
		c.Tasks = make([]Task, len(t.Tasks))
		for i, task := range t.Tasks {
			task.CompletedAt = clonePtr(task.CompletedAt)
			c.Tasks[i] = task
		}
	}

	return c
}

func timePtr(t time.Time) *time.Time { return &t }

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	return timePtr(*t)
}
