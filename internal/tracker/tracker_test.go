package tracker_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/vibe-ticket/internal/events"
	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

var now = time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu    sync.Mutex
	kinds []string
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds = append(r.kinds, string(e.Kind))

	return nil
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.kinds
	r.kinds = nil

	return out
}

func newService(t *testing.T) (*tracker.Service, *recorder, *events.Bus) {
	t.Helper()

	bus := events.New()
	rec := &recorder{}
	bus.Subscribe(rec.handle)

	var (
		mu    sync.Mutex
		ticks int
	)

	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		ticks++

		return now.Add(time.Duration(ticks) * time.Second)
	}

	return tracker.New(storage.NewMemory(), bus, tracker.WithClock(clock)), rec, bus
}

func Test_Service_Resolve_Accepts_Slug_Id_And_Prefix(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	login, err := svc.Create(ctx, tracker.CreateInput{Slug: ticket.PrefixSlug("fix-login", now)})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Create(ctx, tracker.CreateInput{Slug: "fix-logout"}); err != nil {
		t.Fatal(err)
	}

	for _, ref := range []string{login.Slug, "fix-login", login.ID.String(), login.ID.Short()} {
		got, err := svc.Resolve(ref)
		if err != nil {
			t.Errorf("Resolve(%q): %v", ref, err)

			continue
		}

		if got.ID != login.ID {
			t.Errorf("Resolve(%q)=%s, want=%s", ref, got.Slug, login.Slug)
		}
	}

	if _, err := svc.Resolve("nope"); !errors.Is(err, ticket.ErrNotFound) {
		t.Errorf("Resolve(nope): err=%v", err)
	}

	if _, err := svc.Resolve(""); !errors.Is(err, ticket.ErrNoActiveTicket) {
		t.Errorf("Resolve(\"\") without active: err=%v", err)
	}
}

func Test_Service_Resolve_Reports_Ambiguous_Prefix(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	for _, slug := range []string{"202506110900-dup", "202506111000-dup"} {
		if _, err := svc.Create(ctx, tracker.CreateInput{Slug: slug}); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.Resolve("dup"); !errors.Is(err, tracker.ErrAmbiguousRef) {
		t.Fatalf("Resolve(dup): err=%v", err)
	}
}

func Test_Service_Create_Rejects_Duplicate_Slug(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, tracker.CreateInput{Slug: "same"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Create(ctx, tracker.CreateInput{Slug: "same"}); !errors.Is(err, ticket.ErrDuplicateSlug) {
		t.Fatalf("second Create: err=%v", err)
	}

	if _, err := svc.Create(ctx, tracker.CreateInput{Slug: "Bad Slug"}); !errors.Is(err, ticket.ErrInvalidSlug) {
		t.Fatalf("bad slug: err=%v", err)
	}
}

func Test_Service_Lifecycle_Publishes_Events_In_Order(t *testing.T) {
	t.Parallel()

	svc, rec, _ := newService(t)
	ctx := context.Background()

	tk, err := svc.Create(ctx, tracker.CreateInput{Slug: "fix-login", Title: "Fix Login Bug", Priority: ticket.PriorityHigh, Start: true})
	if err != nil {
		t.Fatal(err)
	}

	if got, want := tk.Status, ticket.StatusDoing; got != want {
		t.Fatalf("status=%s, want=%s", got, want)
	}

	active, err := svc.Resolve("")
	if err != nil || active.ID != tk.ID {
		t.Fatalf("active=%v, %v", active.Slug, err)
	}

	if diff := cmp.Diff([]string{"post_create", "pre_status_change", "post_status_change", "post_start"}, rec.take()); diff != "" {
		t.Errorf("create+start events (-want +got):\n%s", diff)
	}

	closed, err := svc.Close(ctx, "", tracker.CloseInput{Message: "shipped", Archive: true})
	if err != nil {
		t.Fatal(err)
	}

	if closed.ClosedAt == nil || !closed.ClosedAt.After(*closed.StartedAt) {
		t.Errorf("closed_at=%v, started_at=%v", closed.ClosedAt, closed.StartedAt)
	}

	if got, want := closed.Extensions.CloseMessage, "shipped"; got != want {
		t.Errorf("close message=%q, want=%q", got, want)
	}

	if !closed.Extensions.Archived {
		t.Error("not archived")
	}

	if diff := cmp.Diff([]string{"pre_close", "pre_status_change", "post_status_change", "post_close"}, rec.take()); diff != "" {
		t.Errorf("close events (-want +got):\n%s", diff)
	}

	if _, err := svc.Resolve(""); !errors.Is(err, ticket.ErrNoActiveTicket) {
		t.Errorf("closed ticket still active: err=%v", err)
	}

	if _, err := svc.Close(ctx, tk.Slug, tracker.CloseInput{}); !errors.Is(err, ticket.ErrInvalidTransition) {
		t.Errorf("double close: err=%v", err)
	}

	reopened, err := svc.Reopen(ctx, tk.Slug)
	if err != nil {
		t.Fatal(err)
	}

	if reopened.Status != ticket.StatusTodo || reopened.ClosedAt != nil {
		t.Errorf("reopen: status=%s closed_at=%v", reopened.Status, reopened.ClosedAt)
	}
}

func Test_Service_Aborts_When_Pre_Handler_Fails(t *testing.T) {
	t.Parallel()

	svc, _, bus := newService(t)
	ctx := context.Background()

	tk, err := svc.Create(ctx, tracker.CreateInput{Slug: "guarded"})
	if err != nil {
		t.Fatal(err)
	}

	veto := fmt.Errorf("%w: vetoed", ticket.ErrExternalTool)
	bus.Subscribe(func(_ context.Context, e events.Event) error {
		if e.Kind == events.BeforeClose {
			return veto
		}

		return nil
	})

	if _, err := svc.Close(ctx, tk.Slug, tracker.CloseInput{}); !errors.Is(err, veto) {
		t.Fatalf("Close: err=%v, want veto", err)
	}

	got, err := svc.Resolve(tk.Slug)
	if err != nil {
		t.Fatal(err)
	}

	if got.Status != ticket.StatusTodo {
		t.Fatalf("status=%s after vetoed close", got.Status)
	}
}

func Test_Service_Update_Applies_Patch(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, tracker.CreateInput{Slug: "edit-me", Tags: []string{"old", "keep"}}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Update(ctx, "edit-me", tracker.Patch{}); !errors.Is(err, ticket.ErrInvalidInput) {
		t.Fatalf("empty patch: err=%v", err)
	}

	title := "Edited"
	prio := ticket.PriorityCritical
	status := ticket.StatusDone
	who := " sam "

	got, err := svc.Update(ctx, "edit-me", tracker.Patch{
		Title:      &title,
		Priority:   &prio,
		Status:     &status,
		Assignee:   &who,
		AddTags:    []string{"new"},
		RemoveTags: []string{"old"},
		Set:        map[string]string{"team": "core"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"keep", "new"}, got.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}

	if got.Title != title || got.Priority != prio || got.Assignee != "sam" || got.ClosedAt == nil {
		t.Errorf("patch not applied: %+v", got)
	}

	if got, want := got.Extensions.Custom["team"], "core"; got != want {
		t.Errorf("custom team=%q, want=%q", got, want)
	}

	got, err = svc.Update(ctx, "edit-me", tracker.Patch{Set: map[string]string{"team": ""}})
	if err != nil {
		t.Fatal(err)
	}

	if got.Extensions.Custom != nil {
		t.Errorf("custom=%v, want nil", got.Extensions.Custom)
	}
}

func Test_Service_Tasks_Round_Trip(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, tracker.CreateInput{Slug: "with-tasks"}); err != nil {
		t.Fatal(err)
	}

	_, task, err := svc.AddTask(ctx, "with-tasks", "write tests")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.AddTask(ctx, "with-tasks", "  "); !errors.Is(err, ticket.ErrInvalidInput) {
		t.Errorf("blank task: err=%v", err)
	}

	tk, done, err := svc.CompleteTask(ctx, "with-tasks", "1")
	if err != nil {
		t.Fatal(err)
	}

	if done.ID != task.ID || !done.Completed {
		t.Errorf("completed=%+v", done)
	}

	if d, n := tk.TaskProgress(); d != 1 || n != 1 {
		t.Errorf("progress=%d/%d", d, n)
	}

	if _, _, err := svc.CompleteTask(ctx, "with-tasks", "7"); !errors.Is(err, ticket.ErrTaskNotFound) {
		t.Errorf("missing task: err=%v", err)
	}

	tk, _, err = svc.RemoveTask(ctx, "with-tasks", task.ID.Short())
	if err != nil {
		t.Fatal(err)
	}

	if len(tk.Tasks) != 0 {
		t.Errorf("tasks=%v, want none", tk.Tasks)
	}
}

func Test_Service_Search_Matches_Fields(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	inputs := []tracker.CreateInput{
		{Slug: "login", Title: "Fix Login", Description: "SSO broken"},
		{Slug: "cache", Description: "warm the login cache", Tags: []string{"perf"}},
		{Slug: "docs", Tags: []string{"login-docs"}},
	}

	for _, in := range inputs {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	slugs := func(opts tracker.SearchOptions, q string) []string {
		t.Helper()

		found, err := svc.Search(q, opts)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}

		var out []string
		for _, tk := range found {
			out = append(out, tk.Slug)
		}

		return out
	}

	if diff := cmp.Diff([]string{"login", "cache", "docs"}, slugs(tracker.SearchOptions{}, "LOGIN")); diff != "" {
		t.Errorf("all fields (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"login"}, slugs(tracker.SearchOptions{Title: true}, "login")); diff != "" {
		t.Errorf("title only (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"docs"}, slugs(tracker.SearchOptions{Tags: true, Regex: true}, "^login-")); diff != "" {
		t.Errorf("tags regex (-want +got):\n%s", diff)
	}

	if _, err := svc.Search("(", tracker.SearchOptions{Regex: true}); !errors.Is(err, ticket.ErrInvalidInput) {
		t.Errorf("bad regex: err=%v", err)
	}
}

func Test_Service_Review_Workflow_Appends_Sections(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, tracker.CreateInput{Slug: "flow", Description: "Body", Start: true}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.RequestChanges(ctx, "flow", "nope"); !errors.Is(err, ticket.ErrInvalidTransition) {
		t.Fatalf("request-changes outside review: err=%v", err)
	}

	tk, err := svc.Review(ctx, "flow", "please look")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Review(ctx, "flow", ""); !errors.Is(err, ticket.ErrInvalidTransition) {
		t.Errorf("double review: err=%v", err)
	}

	if !strings.Contains(tk.Description, "## Review Notes\n\nplease look") {
		t.Errorf("description=%q", tk.Description)
	}

	tk, err = svc.RequestChanges(ctx, "flow", "rename the flag")
	if err != nil {
		t.Fatal(err)
	}

	if got, want := tk.Status, ticket.StatusDoing; got != want {
		t.Errorf("status=%s, want=%s", got, want)
	}

	if !strings.Contains(tk.Description, "## Changes Requested\n\nrename the flag") {
		t.Errorf("description=%q", tk.Description)
	}

	tk, err = svc.Handoff(ctx, "flow", "sam", "over to you")
	if err != nil {
		t.Fatal(err)
	}

	if got, want := tk.Assignee, "sam"; got != want {
		t.Errorf("assignee=%q, want=%q", got, want)
	}

	if !strings.Contains(tk.Description, "From unassigned to sam:\n\nover to you") {
		t.Errorf("description=%q", tk.Description)
	}

	tk, err = svc.Approve(ctx, "flow", "ship it")
	if err != nil {
		t.Fatal(err)
	}

	if got, want := tk.Status, ticket.StatusDone; got != want {
		t.Errorf("status=%s, want=%s", got, want)
	}

	if !strings.HasSuffix(tk.Description, "## Approval\n\nship it") {
		t.Errorf("description=%q", tk.Description)
	}

	if _, err := svc.Resolve(""); !errors.Is(err, ticket.ErrNoActiveTicket) {
		t.Errorf("approved ticket still active: err=%v", err)
	}
}
