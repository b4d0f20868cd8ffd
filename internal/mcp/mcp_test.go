package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/vibe-ticket/internal/events"
	"github.com/calvinalkan/vibe-ticket/internal/specs"
	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

func testHandlers(t *testing.T) (*Handlers, *tracker.Service) {
	t.Helper()

	h, svc, _ := testSpecHandlers(t)

	return h, svc
}

func testSpecHandlers(t *testing.T) (*Handlers, *tracker.Service, *specs.Store) {
	t.Helper()

	var ticks int

	clock := func() time.Time {
		ticks++

		return time.Date(2025, 6, 11, 9, ticks, 0, 0, time.UTC)
	}

	svc := tracker.New(storage.NewMemory(), events.New(), tracker.WithClock(clock))
	specStore := specs.NewStore(storage.Open(filepath.Join(t.TempDir(), ticket.DirName)))

	return NewHandlers(svc, specStore, slog.New(slog.NewTextHandler(io.Discard, nil))), svc, specStore
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is not TextContent")

	return text.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()

	require.False(t, res.IsError, "unexpected error result: %s", resultText(t, res))

	var out T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))

	return out
}

func errorKind(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	require.True(t, res.IsError, "expected error result, got %s", resultText(t, res))

	var payload struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}

	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &payload))

	return payload.Error.Kind
}

func Test_NewServer_Registers_Every_Tool(t *testing.T) {
	t.Parallel()

	_, svc, specStore := testSpecHandlers(t)

	s := NewServer(svc, specStore, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	tools := s.ListTools()
	require.Len(t, tools, len(toolRegistry))

	for _, name := range ToolNames() {
		require.Contains(t, tools, name)
	}
}

func Test_Handlers_Create_Show_Update_Close(t *testing.T) {
	t.Parallel()

	h, _ := testHandlers(t)
	ctx := context.Background()

	res, err := h.HandleCreate(ctx, makeRequest(map[string]any{
		"slug":     "fix-login",
		"priority": "high",
		"tags":     []any{"auth"},
		"start":    true,
	}))
	require.NoError(t, err)

	created := decodeResult[ticket.Ticket](t, res)
	require.Equal(t, "Fix Login", created.Title)
	require.Equal(t, ticket.PriorityHigh, created.Priority)
	require.Equal(t, ticket.StatusDoing, created.Status)

	res, err = h.HandleCreate(ctx, makeRequest(map[string]any{"slug": "fix-login"}))
	require.NoError(t, err)
	require.Equal(t, "already_exists", errorKind(t, res))

	res, err = h.HandleCreate(ctx, makeRequest(map[string]any{"slug": "x", "priority": "urgent"}))
	require.NoError(t, err)
	require.Equal(t, "invalid_input", errorKind(t, res))

	res, err = h.HandleShow(ctx, makeRequest(map[string]any{}))
	require.NoError(t, err)
	require.Equal(t, created.ID, decodeResult[ticket.Ticket](t, res).ID)

	res, err = h.HandleUpdate(ctx, makeRequest(map[string]any{
		"ref":         "fix-login",
		"status":      "review",
		"add_tags":    []any{"ui"},
		"remove_tags": []any{"auth"},
	}))
	require.NoError(t, err)

	updated := decodeResult[ticket.Ticket](t, res)
	require.Equal(t, ticket.StatusReview, updated.Status)
	require.Equal(t, []string{"ui"}, updated.Tags)

	res, err = h.HandleUpdate(ctx, makeRequest(map[string]any{"ref": "fix-login"}))
	require.NoError(t, err)
	require.Equal(t, "invalid_input", errorKind(t, res))

	res, err = h.HandleClose(ctx, makeRequest(map[string]any{"ref": "fix-login", "message": "done"}))
	require.NoError(t, err)

	closed := decodeResult[ticket.Ticket](t, res)
	require.Equal(t, ticket.StatusDone, closed.Status)
	require.Equal(t, "done", closed.Extensions.CloseMessage)

	res, err = h.HandleActive(ctx, makeRequest(nil))
	require.NoError(t, err)
	require.Equal(t, 0, decodeResult[TicketsResult](t, res).Count)
}

func Test_Handlers_List_Hides_Done_Unless_Requested(t *testing.T) {
	t.Parallel()

	h, svc := testHandlers(t)
	ctx := context.Background()

	for _, in := range []tracker.CreateInput{
		{Slug: "low-one", Priority: ticket.PriorityLow},
		{Slug: "high-one", Priority: ticket.PriorityHigh, Tags: []string{"auth"}},
		{Slug: "closed-one"},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	_, err := svc.Close(ctx, "closed-one", tracker.CloseInput{})
	require.NoError(t, err)

	slugs := func(args map[string]any) []string {
		t.Helper()

		res, err := h.HandleList(ctx, makeRequest(args))
		require.NoError(t, err)

		var out []string
		for _, tk := range decodeResult[TicketsResult](t, res).Tickets {
			out = append(out, tk.Slug)
		}

		return out
	}

	require.Equal(t, []string{"low-one", "high-one"}, slugs(map[string]any{}))
	require.Equal(t, []string{"high-one", "closed-one", "low-one"}, slugs(map[string]any{"include_done": true, "sort": "priority"}))
	require.Equal(t, []string{"closed-one"}, slugs(map[string]any{"status": "done"}))
	require.Equal(t, []string{"high-one"}, slugs(map[string]any{"filter": "tag:auth"}))
	require.Equal(t, []string{"low-one"}, slugs(map[string]any{"limit": 1}))

	res, err := h.HandleList(ctx, makeRequest(map[string]any{"sort": "bogus"}))
	require.NoError(t, err)
	require.Equal(t, "invalid_input", errorKind(t, res))
}

func Test_Handlers_Tasks_And_Search(t *testing.T) {
	t.Parallel()

	h, svc := testHandlers(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, tracker.CreateInput{Slug: "with-tasks", Description: "needs a Migration"})
	require.NoError(t, err)

	res, err := h.HandleAddTask(ctx, makeRequest(map[string]any{"ref": "with-tasks", "title": "write migration"}))
	require.NoError(t, err)

	added := decodeResult[TaskResult](t, res)
	require.Len(t, added.Ticket.Tasks, 1)

	res, err = h.HandleCompleteTask(ctx, makeRequest(map[string]any{"ref": "with-tasks", "task": "1"}))
	require.NoError(t, err)
	require.True(t, decodeResult[TaskResult](t, res).Task.Completed)

	res, err = h.HandleCompleteTask(ctx, makeRequest(map[string]any{"ref": "with-tasks", "task": "9"}))
	require.NoError(t, err)
	require.Equal(t, "not_found", errorKind(t, res))

	res, err = h.HandleSearch(ctx, makeRequest(map[string]any{"query": "migration"}))
	require.NoError(t, err)
	require.Equal(t, 1, decodeResult[TicketsResult](t, res).Count)

	res, err = h.HandleSearch(ctx, makeRequest(map[string]any{"query": "migration", "title": true}))
	require.NoError(t, err)
	require.Equal(t, 0, decodeResult[TicketsResult](t, res).Count)
}

func Test_Decode_Rejects_Wrong_Argument_Types(t *testing.T) {
	t.Parallel()

	h, _ := testHandlers(t)

	res, err := h.HandleCreate(context.Background(), makeRequest(map[string]any{"slug": 42}))
	require.NoError(t, err)
	require.Equal(t, "invalid_input", errorKind(t, res))
}

func Test_EventParams_Includes_Transition(t *testing.T) {
	t.Parallel()

	tk, err := ticket.NewBuilder("a-ticket").Build()
	require.NoError(t, err)

	params := eventParams(events.Event{Kind: events.StatusChanged, Ticket: tk, From: ticket.StatusTodo, To: ticket.StatusDoing})
	require.Equal(t, "post_status_change", params["event"])
	require.Equal(t, "todo", params["from"])
	require.Equal(t, "doing", params["to"])
	require.Equal(t, "a-ticket", params["slug"])

	params = eventParams(events.Event{Kind: events.Created, Ticket: tk})
	require.NotContains(t, params, "from")
}

func Test_Handlers_Spec_Status_And_Validate_Use_Active_Spec(t *testing.T) {
	t.Parallel()

	h, _, st := testSpecHandlers(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

	res, err := h.HandleSpecStatus(ctx, makeRequest(nil))
	require.NoError(t, err)
	require.Equal(t, "not_found", errorKind(t, res))

	sp, err := st.Create("Search", "", "", nil, now)
	require.NoError(t, err)

	_, err = st.SetActive(sp.ID)
	require.NoError(t, err)

	sp, _, err = st.OpenPhase(sp, specs.PhaseRequirements, now)
	require.NoError(t, err)

	res, err = h.HandleSpecStatus(ctx, makeRequest(nil))
	require.NoError(t, err)

	status := decodeResult[SpecStatusResult](t, res)
	require.Equal(t, sp.ID, status.Spec.ID)
	require.Len(t, status.Progress, len(specs.DocumentPhases))
	require.True(t, status.Progress[0].Document)
	require.False(t, status.Progress[1].Document)

	require.NoError(t, os.WriteFile(st.DocumentPath(sp.ID, specs.PhaseRequirements),
		[]byte("Scope? [NEEDS CLARIFICATION]\n"), 0o600))

	res, err = h.HandleSpecValidate(ctx, makeRequest(map[string]any{
		"spec":        sp.Short(),
		"ambiguities": true,
		"report":      true,
	}))
	require.NoError(t, err)

	v := decodeResult[specs.Validation](t, res)
	require.False(t, v.Valid)
	require.Equal(t, 1, v.Ambiguities)
	require.Equal(t, st.ReportPath(sp.ID), v.Report)
	require.FileExists(t, v.Report)

	res, err = h.HandleSpecValidate(ctx, makeRequest(map[string]any{"spec": "zzzzzzzz"}))
	require.NoError(t, err)
	require.Equal(t, "not_found", errorKind(t, res))
}
