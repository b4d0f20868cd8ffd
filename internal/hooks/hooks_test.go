package hooks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/vibe-ticket/internal/events"
	"github.com/calvinalkan/vibe-ticket/internal/hooks"
	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

func newRunner(t *testing.T) (*hooks.Store, *hooks.Runner, string, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	st := hooks.NewStore(storage.Open(filepath.Join(dir, ticket.DirName)))

	var out bytes.Buffer

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return st, hooks.NewRunner(st, dir, os.Environ(), &out, log), dir, &out
}

func sampleEvent(t *testing.T, kind events.Kind) events.Event {
	t.Helper()

	tk, err := ticket.NewBuilder("hooked").Build()
	require.NoError(t, err)

	return events.Event{Kind: kind, Ticket: tk, From: ticket.StatusTodo, To: ticket.StatusDoing}
}

func Test_Store_Create_List_Toggle_Delete(t *testing.T) {
	t.Parallel()

	st, _, _, _ := newRunner(t)

	require.NoError(t, st.Create(hooks.Hook{Name: "b", Event: "post-create", Command: "true", Enabled: true}))
	require.NoError(t, st.Create(hooks.Hook{Name: "a", Event: events.Closed, Command: "true", Enabled: true}))

	err := st.Create(hooks.Hook{Name: "a", Event: events.Closed, Command: "true"})
	require.ErrorIs(t, err, hooks.ErrHookExists)

	err = st.Create(hooks.Hook{Name: "c", Event: "on_delete", Command: "true"})
	require.ErrorIs(t, err, ticket.ErrInvalidInput)

	all, err := st.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "a", all[0].Name)
	require.Equal(t, events.Created, all[1].Event, "event name is normalized")

	require.NoError(t, st.SetEnabled("a", false))

	got, err := st.Get("a")
	require.NoError(t, err)
	require.False(t, got.Enabled)

	require.NoError(t, st.Delete("a"))
	require.ErrorIs(t, st.Delete("a"), ticket.ErrNotFound)

	_, err = st.Get("a")
	require.ErrorIs(t, err, hooks.ErrHookNotFound)
}

func Test_Runner_Passes_Event_Context_In_Environment(t *testing.T) {
	t.Parallel()

	st, r, dir, _ := newRunner(t)
	outFile := filepath.Join(dir, "ctx.json")

	require.NoError(t, st.Create(hooks.Hook{
		Name:    "dump",
		Event:   events.StatusChanged,
		Command: `printf '%s' "$VT_CONTEXT" > ctx.json; test "$VT_EVENT" = post_status_change; test -n "$VT_RUN_ID"`,
		Enabled: true,
	}))

	e := sampleEvent(t, events.StatusChanged)
	require.NoError(t, r.Handle(context.Background(), e))

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var hc hooks.Context
	require.NoError(t, json.Unmarshal(data, &hc))
	require.Equal(t, e.Ticket.ID.String(), hc.TicketID)
	require.Equal(t, "hooked", hc.TicketSlug)
	require.Equal(t, ticket.StatusTodo, hc.PreviousStatus)
	require.Equal(t, ticket.StatusDoing, hc.NewStatus)
}

func Test_Runner_Aborts_When_Pre_Hook_Fails_With_AbortOnFailure(t *testing.T) {
	t.Parallel()

	st, r, _, _ := newRunner(t)

	require.NoError(t, st.Create(hooks.Hook{
		Name: "gate", Event: events.BeforeClose, Command: "echo nope >&2; exit 3",
		Enabled: true, AbortOnFailure: true,
	}))

	err := r.Handle(context.Background(), sampleEvent(t, events.BeforeClose))
	require.ErrorIs(t, err, hooks.ErrHookAborted)
	require.Contains(t, err.Error(), "nope")
}

func Test_Runner_Only_Warns_When_Post_Hook_Or_Non_Aborting_Hook_Fails(t *testing.T) {
	t.Parallel()

	st, r, _, out := newRunner(t)

	require.NoError(t, st.Create(hooks.Hook{
		Name: "a-fails", Event: events.Closed, Command: "exit 1", Enabled: true, AbortOnFailure: true,
	}))
	require.NoError(t, st.Create(hooks.Hook{
		Name: "b-runs", Event: events.Closed, Command: "echo ran", Enabled: true,
	}))
	require.NoError(t, st.Create(hooks.Hook{
		Name: "c-soft", Event: events.BeforeClose, Command: "exit 1", Enabled: true,
	}))

	require.NoError(t, r.Handle(context.Background(), sampleEvent(t, events.Closed)))
	require.Equal(t, "ran", strings.TrimSpace(out.String()))

	require.NoError(t, r.Handle(context.Background(), sampleEvent(t, events.BeforeClose)))
}

func Test_Runner_Does_Not_Abort_Pre_Event_When_Hooks_File_Is_Corrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := filepath.Join(dir, ticket.DirName)
	st := hooks.NewStore(storage.Open(root))

	require.NoError(t, os.MkdirAll(root, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, hooks.FileName), []byte("hooks: [unclosed\n"), 0o600))

	_, err := st.List()
	require.Error(t, err)

	var logs bytes.Buffer

	r := hooks.NewRunner(st, dir, os.Environ(), io.Discard, slog.New(slog.NewTextHandler(&logs, nil)))

	require.NoError(t, r.Handle(context.Background(), sampleEvent(t, events.BeforeClose)))
	require.Contains(t, logs.String(), "hooks skipped")
}

func Test_Runner_Skips_Disabled_Hooks(t *testing.T) {
	t.Parallel()

	st, r, _, out := newRunner(t)

	require.NoError(t, st.Create(hooks.Hook{Name: "off", Event: events.Created, Command: "echo off"}))
	require.NoError(t, r.Handle(context.Background(), sampleEvent(t, events.Created)))
	require.Empty(t, out.String())
}
