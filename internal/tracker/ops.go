package tracker

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/calvinalkan/vibe-ticket/internal/events"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// CreateInput describes a new ticket. Zero fields take the builder defaults.
type CreateInput struct {
	Slug        string
	Title       string
	Description string
	Priority    ticket.Priority
	Assignee    string
	Tags        []string
	SpecID      string
	Start       bool
}

// Create validates and saves a new ticket. Slugs must be unique across the
// project. With Start the ticket also goes through [Service.Start].
func (s *Service) Create(ctx context.Context, in CreateInput) (ticket.Ticket, error) {
	now := s.now()

	t, err := ticket.NewBuilder(in.Slug).
		Title(in.Title).
		Description(in.Description).
		Priority(in.Priority).
		Assignee(in.Assignee).
		Tags(in.Tags...).
		SpecID(in.SpecID).
		CreatedAt(now).
		Build()
	if err != nil {
		return ticket.Ticket{}, err
	}

	taken, err := s.repo.Count(func(o *ticket.Ticket) bool { return o.Slug == t.Slug })
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("check slug: %w", err)
	}

	if taken > 0 {
		return ticket.Ticket{}, fmt.Errorf("%w: %s", ticket.ErrDuplicateSlug, t.Slug)
	}

	if err := s.repo.Save(t); err != nil {
		return ticket.Ticket{}, fmt.Errorf("save ticket %s: %w", t.Slug, err)
	}

	s.notify(ctx, events.Event{Kind: events.Created, Ticket: t})

	if in.Start {
		return s.Start(ctx, t.ID.String())
	}

	return t, nil
}

// Start moves a todo or blocked ticket to doing and adds it to the active
// list.
func (s *Service) Start(ctx context.Context, ref string) (ticket.Ticket, error) {
	t, err := s.Resolve(ref)
	if err != nil {
		return ticket.Ticket{}, err
	}

	next := t.Clone()
	if err := next.Start(s.now()); err != nil {
		return ticket.Ticket{}, fmt.Errorf("start %s: %w", t.Slug, err)
	}

	if err := s.commit(ctx, t, next, events.Started); err != nil {
		return ticket.Ticket{}, err
	}

	if err := s.repo.AddActive(next.ID); err != nil {
		return next, fmt.Errorf("mark %s active: %w", next.Slug, err)
	}

	return next, nil
}

// Review moves a ticket to review and appends notes to its description.
func (s *Service) Review(ctx context.Context, ref, notes string) (ticket.Ticket, error) {
	return s.transition(ctx, ref, func(t *ticket.Ticket) error {
		if t.Status == ticket.StatusReview {
			return fmt.Errorf("%w: already in review", ticket.ErrInvalidTransition)
		}

		if err := t.Review(s.now()); err != nil {
			return err
		}

		appendSection(t, "Review Notes", notes)

		return nil
	})
}

// Approve closes a ticket, recording msg under an Approval section of its
// description.
func (s *Service) Approve(ctx context.Context, ref, msg string) (ticket.Ticket, error) {
	return s.closeWith(ctx, ref, CloseInput{}, func(t *ticket.Ticket) { appendSection(t, "Approval", msg) })
}

// Handoff reassigns a ticket and records notes for the new assignee.
func (s *Service) Handoff(ctx context.Context, ref, assignee, notes string) (ticket.Ticket, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return ticket.Ticket{}, fmt.Errorf("%w: assignee is empty", ticket.ErrInvalidInput)
	}

	return s.Modify(ctx, ref, func(t *ticket.Ticket) error {
		prev := cmp.Or(t.Assignee, "unassigned")
		t.Assignee = assignee

		if notes = strings.TrimSpace(notes); notes != "" {
			appendSection(t, "Handoff", "From "+prev+" to "+assignee+":\n\n"+notes)
		}

		return nil
	})
}

func appendSection(t *ticket.Ticket, heading, body string) {
	if body = strings.TrimSpace(body); body == "" {
		return
	}

	t.Description = strings.TrimSpace(t.Description + "\n\n## " + heading + "\n\n" + body)
}

// Block moves a todo or doing ticket to blocked.
func (s *Service) Block(ctx context.Context, ref string) (ticket.Ticket, error) {
	return s.transition(ctx, ref, func(t *ticket.Ticket) error { return t.Block(s.now()) })
}

// Reopen moves a done ticket back to todo.
func (s *Service) Reopen(ctx context.Context, ref string) (ticket.Ticket, error) {
	return s.transition(ctx, ref, func(t *ticket.Ticket) error { return t.Reopen() })
}

// RequestChanges sends a ticket in review back to doing and appends notes
// to its description.
func (s *Service) RequestChanges(ctx context.Context, ref, notes string) (ticket.Ticket, error) {
	return s.transition(ctx, ref, func(t *ticket.Ticket) error {
		if t.Status != ticket.StatusReview {
			return fmt.Errorf("%w: ticket is %s, not review", ticket.ErrInvalidTransition, t.Status)
		}

		t.SetStatus(ticket.StatusDoing, s.now())

		if notes = strings.TrimSpace(notes); notes != "" {
			appendSection(t, "Changes Requested", notes+"\n\n*Requested at: "+s.now().UTC().Format("2006-01-02 15:04:05 UTC")+"*")
		}

		return nil
	})
}

func (s *Service) transition(ctx context.Context, ref string, fn func(*ticket.Ticket) error) (ticket.Ticket, error) {
	t, err := s.Resolve(ref)
	if err != nil {
		return ticket.Ticket{}, err
	}

	next := t.Clone()
	if err := fn(&next); err != nil {
		return ticket.Ticket{}, fmt.Errorf("%s: %w", t.Slug, err)
	}

	if err := s.commit(ctx, t, next, events.Updated); err != nil {
		return ticket.Ticket{}, err
	}

	return next, nil
}

// CloseInput carries the optional parts of closing a ticket.
type CloseInput struct {
	Message     string
	Archive     bool
	PullRequest string
}

// Close marks a ticket done, removes it from the active list and optionally
// archives it. Closing a done ticket fails.
func (s *Service) Close(ctx context.Context, ref string, in CloseInput) (ticket.Ticket, error) {
	return s.closeWith(ctx, ref, in, nil)
}

func (s *Service) closeWith(ctx context.Context, ref string, in CloseInput, edit func(*ticket.Ticket)) (ticket.Ticket, error) {
	t, err := s.Resolve(ref)
	if err != nil {
		return ticket.Ticket{}, err
	}

	if t.Status == ticket.StatusDone {
		return ticket.Ticket{}, fmt.Errorf("%w: %s is already done", ticket.ErrInvalidTransition, t.Slug)
	}

	if err := s.bus.Publish(ctx, events.Event{Kind: events.BeforeClose, Ticket: t, From: t.Status, To: ticket.StatusDone, At: s.now()}); err != nil {
		return ticket.Ticket{}, err
	}

	next := t.Clone()
	next.Close(s.now(), in.Message)

	if in.PullRequest != "" {
		next.Extensions.PullRequest = in.PullRequest
	}

	if in.Archive {
		next.Archive(s.now())
	}

	if edit != nil {
		edit(&next)
	}

	if err := s.commit(ctx, t, next, events.Closed); err != nil {
		return ticket.Ticket{}, err
	}

	if err := s.repo.RemoveActive(next.ID); err != nil {
		return next, fmt.Errorf("remove %s from active: %w", next.Slug, err)
	}

	return next, nil
}

// Patch lists the fields Update changes. Nil pointers leave a field alone.
type Patch struct {
	Title       *string
	Description *string
	Priority    *ticket.Priority
	Status      *ticket.Status
	Assignee    *string
	AddTags     []string
	RemoveTags  []string
	Set         map[string]string // custom fields; an empty value deletes
}

// IsZero reports whether p changes nothing.
func (p Patch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Status == nil &&
		p.Assignee == nil && len(p.AddTags) == 0 && len(p.RemoveTags) == 0 && len(p.Set) == 0
}

func (p Patch) apply(t *ticket.Ticket, now time.Time) error {
	if p.Title != nil {
		if err := ticket.ValidateTitle(*p.Title); err != nil {
			return err
		}

		t.Title = *p.Title
	}

	if p.Description != nil {
		t.Description = *p.Description
	}

	if p.Priority != nil {
		if !p.Priority.Valid() {
			return fmt.Errorf("%w: %d", ticket.ErrInvalidPriority, int(*p.Priority))
		}

		t.Priority = *p.Priority
	}

	if p.Status != nil && *p.Status != t.Status {
		t.SetStatus(*p.Status, now)

		if *p.Status != ticket.StatusDone {
			t.ClosedAt = nil
		}
	}

	if p.Assignee != nil {
		t.Assignee = strings.TrimSpace(*p.Assignee)
	}

	t.RemoveTags(p.RemoveTags...)
	t.AddTags(p.AddTags...)

	for k, v := range p.Set {
		if t.Extensions.Custom == nil {
			t.Extensions.Custom = make(map[string]string)
		}

		if v == "" {
			delete(t.Extensions.Custom, k)
		} else {
			t.Extensions.Custom[k] = v
		}
	}

	t.Compact()

	return nil
}

// Update applies p to the ticket ref names.
func (s *Service) Update(ctx context.Context, ref string, p Patch) (ticket.Ticket, error) {
	if p.IsZero() {
		return ticket.Ticket{}, fmt.Errorf("%w: nothing to update", ticket.ErrInvalidInput)
	}

	return s.Modify(ctx, ref, func(t *ticket.Ticket) error { return p.apply(t, s.now()) })
}

// Modify loads the ticket ref names, applies fn to a copy and saves it.
func (s *Service) Modify(ctx context.Context, ref string, fn func(*ticket.Ticket) error) (ticket.Ticket, error) {
	return s.transition(ctx, ref, fn)
}

// Archive hides a ticket from default listings.
func (s *Service) Archive(ctx context.Context, ref string) (ticket.Ticket, error) {
	return s.Modify(ctx, ref, func(t *ticket.Ticket) error {
		if t.Extensions.Archived {
			return fmt.Errorf("%w: already archived", ticket.ErrInvalidInput)
		}

		t.Archive(s.now())

		return nil
	})
}

// Unarchive clears the archived flag.
func (s *Service) Unarchive(ctx context.Context, ref string) (ticket.Ticket, error) {
	return s.Modify(ctx, ref, func(t *ticket.Ticket) error {
		if !t.Extensions.Archived {
			return fmt.Errorf("%w: not archived", ticket.ErrInvalidInput)
		}

		t.Unarchive()

		return nil
	})
}

// AddTask appends a task to the ticket ref names.
func (s *Service) AddTask(ctx context.Context, ref, title string) (ticket.Ticket, ticket.Task, error) {
	var task ticket.Task

	t, err := s.Modify(ctx, ref, func(t *ticket.Ticket) error {
		var err error

		task, err = t.AddTask(title, s.now())

		return err
	})

	return t, task, err
}

// CompleteTask marks a task done.
func (s *Service) CompleteTask(ctx context.Context, ref, taskRef string) (ticket.Ticket, ticket.Task, error) {
	return s.taskOp(ctx, ref, func(t *ticket.Ticket) (ticket.Task, error) { return t.CompleteTask(taskRef, s.now()) })
}

// UncompleteTask reopens a task.
func (s *Service) UncompleteTask(ctx context.Context, ref, taskRef string) (ticket.Ticket, ticket.Task, error) {
	return s.taskOp(ctx, ref, func(t *ticket.Ticket) (ticket.Task, error) { return t.UncompleteTask(taskRef) })
}

// RemoveTask deletes a task.
func (s *Service) RemoveTask(ctx context.Context, ref, taskRef string) (ticket.Ticket, ticket.Task, error) {
	return s.taskOp(ctx, ref, func(t *ticket.Ticket) (ticket.Task, error) { return t.RemoveTask(taskRef) })
}

func (s *Service) taskOp(ctx context.Context, ref string, fn func(*ticket.Ticket) (ticket.Task, error)) (ticket.Ticket, ticket.Task, error) {
	var task ticket.Task

	t, err := s.Modify(ctx, ref, func(t *ticket.Ticket) error {
		var err error

		task, err = fn(t)

		return err
	})

	return t, task, err
}

// SearchOptions restricts which fields Search looks at. With none set every
// field is searched.
type SearchOptions struct {
	Title       bool
	Description bool
	Tags        bool
	Regex       bool
}

// Search matches query case-insensitively as a substring, or as a regular
// expression with Regex, against slug, title, description and tags.
func (s *Service) Search(query string, opts SearchOptions) ([]ticket.Ticket, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", ticket.ErrInvalidInput)
	}

	match := func(field string) bool { return strings.Contains(strings.ToLower(field), strings.ToLower(query)) }

	if opts.Regex {
		re, err := regexp.Compile("(?i)" + query)
		if err != nil {
			return nil, fmt.Errorf("%w: regex: %w", ticket.ErrInvalidInput, err)
		}

		match = re.MatchString
	}

	all := !opts.Title && !opts.Description && !opts.Tags

	return s.repo.Find(func(t *ticket.Ticket) bool {
		if (all || opts.Title) && (match(t.Title) || match(t.Slug)) {
			return true
		}

		if (all || opts.Description) && match(t.Description) {
			return true
		}

		if all || opts.Tags {
			for _, tag := range t.Tags {
				if match(tag) {
					return true
				}
			}
		}

		return false
	})
}
