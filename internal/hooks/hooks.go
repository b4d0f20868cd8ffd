// Package hooks stores user-defined shell commands and runs them on ticket
// lifecycle events.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/calvinalkan/vibe-ticket/internal/events"
	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// FileName is the sidecar under the storage root.
const FileName = "hooks.yaml"

var (
	ErrHookNotFound = fmt.Errorf("hook %w", ticket.ErrNotFound)
	ErrHookExists   = fmt.Errorf("hook %w", ticket.ErrAlreadyExists)
	ErrInvalidHook  = fmt.Errorf("%w: invalid hook", ticket.ErrInvalidInput)

	// ErrHookAborted is returned by a pre event when a hook marked
	// abort_on_failure fails.
	ErrHookAborted = fmt.Errorf("%w: aborted by hook", ticket.ErrExternalTool)
)

// Hook is one stored command.
type Hook struct {
	Name           string      `yaml:"name" json:"name"`
	Event          events.Kind `yaml:"event" json:"event"`
	Command        string      `yaml:"command" json:"command"`
	Enabled        bool        `yaml:"enabled" json:"enabled"`
	Description    string      `yaml:"description,omitempty" json:"description,omitempty"`
	AbortOnFailure bool        `yaml:"abort_on_failure,omitempty" json:"abort_on_failure,omitempty"`
	CreatedAt      time.Time   `yaml:"created_at" json:"created_at"`
}

type file struct {
	Hooks []Hook `yaml:"hooks"`
}

// Store reads and writes hooks.yaml.
type Store struct {
	doc *storage.Document[file]
}

// NewStore binds a Store to s.
func NewStore(s *storage.FileStorage) *Store {
	return &Store{doc: storage.NewDocument[file](s, FileName)}
}

// Create adds h. Names are unique.
func (st *Store) Create(h Hook) error {
	if strings.TrimSpace(h.Name) == "" || strings.ContainsAny(h.Name, " \t/") {
		return fmt.Errorf("%w: name %q", ErrInvalidHook, h.Name)
	}

	if strings.TrimSpace(h.Command) == "" {
		return fmt.Errorf("%w: empty command", ErrInvalidHook)
	}

	kind, ok := events.ParseKind(string(h.Event))
	if !ok {
		return fmt.Errorf("%w: unknown event %q", ErrInvalidHook, h.Event)
	}

	h.Event = kind

	return st.doc.Update(func(f *file) error {
		if slices.ContainsFunc(f.Hooks, byName(h.Name)) {
			return fmt.Errorf("%w: %s", ErrHookExists, h.Name)
		}

		f.Hooks = append(f.Hooks, h)

		return nil
	})
}

// List returns all hooks sorted by name.
func (st *Store) List() ([]Hook, error) {
	f, err := st.doc.Load()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(f.Hooks, func(a, b Hook) int { return strings.Compare(a.Name, b.Name) })

	return f.Hooks, nil
}

// Get returns the hook called name.
func (st *Store) Get(name string) (Hook, error) {
	f, err := st.doc.Load()
	if err != nil {
		return Hook{}, err
	}

	i := slices.IndexFunc(f.Hooks, byName(name))
	if i < 0 {
		return Hook{}, fmt.Errorf("%w: %s", ErrHookNotFound, name)
	}

	return f.Hooks[i], nil
}

// Delete removes the hook called name.
func (st *Store) Delete(name string) error {
	return st.doc.Update(func(f *file) error {
		n := len(f.Hooks)

		f.Hooks = slices.DeleteFunc(f.Hooks, byName(name))
		if len(f.Hooks) == n {
			return fmt.Errorf("%w: %s", ErrHookNotFound, name)
		}

		return nil
	})
}

// SetEnabled toggles the hook called name.
func (st *Store) SetEnabled(name string, enabled bool) error {
	return st.doc.Update(func(f *file) error {
		i := slices.IndexFunc(f.Hooks, byName(name))
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrHookNotFound, name)
		}

		f.Hooks[i].Enabled = enabled

		return nil
	})
}

func byName(name string) func(Hook) bool {
	return func(h Hook) bool { return h.Name == name }
}

// Context is the JSON document passed to hooks in VT_CONTEXT.
type Context struct {
	TicketID       string         `json:"ticket_id"`
	TicketSlug     string         `json:"ticket_slug"`
	Event          string         `json:"event"`
	PreviousStatus ticket.Status  `json:"previous_status,omitempty"`
	NewStatus      ticket.Status  `json:"new_status,omitempty"`
	Ticket         *ticket.Ticket `json:"ticket,omitempty"`
}

// Runner executes hooks for events. Subscribe [Runner.Handle] to an
// events.Bus.
type Runner struct {
	store *Store
	dir   string
	env   []string
	out   io.Writer
	log   *slog.Logger
}

// NewRunner returns a Runner that executes hooks with dir as the working
// directory and env as the base environment. Hook stdout goes to out.
func NewRunner(store *Store, dir string, env []string, out io.Writer, log *slog.Logger) *Runner {
	return &Runner{store: store, dir: dir, env: env, out: out, log: log}
}

// Handle runs every enabled hook registered for e.Kind, in name order.
//
// A failing hook is logged. For pre events, a failing hook with
// AbortOnFailure stops the remaining hooks and returns ErrHookAborted.
// An unreadable hooks file is logged and no hooks run; it never aborts the
// operation.
func (r *Runner) Handle(ctx context.Context, e events.Event) error {
	all, err := r.store.List()
	if err != nil {
		r.log.Warn("hooks skipped", "event", string(e.Kind), "error", err)

		return nil
	}

	for _, h := range all {
		if !h.Enabled || h.Event != e.Kind {
			continue
		}

		runErr := r.Run(ctx, h, e)
		if runErr == nil {
			continue
		}

		if e.Kind.IsPre() && h.AbortOnFailure {
			return fmt.Errorf("%w: %s: %w", ErrHookAborted, h.Name, runErr)
		}

		r.log.Warn("hook failed", "hook", h.Name, "event", string(e.Kind), "error", runErr)
	}

	return nil
}

// Run executes one hook via sh -c.
func (r *Runner) Run(ctx context.Context, h Hook, e events.Event) error {
	hc := Context{
		TicketID:       e.Ticket.ID.String(),
		TicketSlug:     e.Ticket.Slug,
		Event:          string(h.Event),
		PreviousStatus: e.From,
		NewStatus:      e.To,
	}

	if !e.Ticket.ID.IsZero() {
		hc.Ticket = &e.Ticket
	}

	payload, err := json.Marshal(hc)
	if err != nil {
		return fmt.Errorf("encode hook context: %w", err)
	}

	runID := ulid.Make().String()

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Dir = r.dir
	cmd.Env = append(slices.Clone(r.env),
		"VT_EVENT="+string(h.Event),
		"VT_CONTEXT="+string(payload),
		"VT_TICKET_ID="+hc.TicketID,
		"VT_RUN_ID="+runID,
	)

	var stderr bytes.Buffer

	cmd.Stdout = r.out
	cmd.Stderr = &stderr

	r.log.Debug("running hook", "hook", h.Name, "run_id", runID, "event", string(h.Event))

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return fmt.Errorf("%w: hook %s: exit %d: %s", ticket.ErrExternalTool, h.Name, exitErr.ExitCode(), msg)
		}

		return fmt.Errorf("%w: hook %s: %w", ticket.ErrExternalTool, h.Name, err)
	}

	return nil
}
