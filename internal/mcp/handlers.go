package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/calvinalkan/vibe-ticket/internal/filter"
	"github.com/calvinalkan/vibe-ticket/internal/specs"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc   *tracker.Service
	specs *specs.Store
	log   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *tracker.Service, specStore *specs.Store, log *slog.Logger) *Handlers {
	return &Handlers{svc: svc, specs: specStore, log: log}
}

// ListRequest represents the arguments for vt_list_tickets.
type ListRequest struct {
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
	Filter      string `json:"filter,omitempty"`
	Sort        string `json:"sort,omitempty"`
	Reverse     bool   `json:"reverse,omitempty"`
	IncludeDone bool   `json:"include_done,omitempty"`
	Archived    bool   `json:"archived,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// RefRequest carries just a ticket reference.
type RefRequest struct {
	Ref string `json:"ref,omitempty"`
}

// CreateRequest represents the arguments for vt_create_ticket.
type CreateRequest struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Start       bool     `json:"start,omitempty"`
}

// UpdateRequest represents the arguments for vt_update_ticket.
type UpdateRequest struct {
	Ref         string   `json:"ref,omitempty"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Assignee    *string  `json:"assignee,omitempty"`
	AddTags     []string `json:"add_tags,omitempty"`
	RemoveTags  []string `json:"remove_tags,omitempty"`
}

// CloseRequest represents the arguments for vt_close_ticket.
type CloseRequest struct {
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message,omitempty"`
	Archive bool   `json:"archive,omitempty"`
}

// TaskRequest represents the arguments for the task tools.
type TaskRequest struct {
	Ref   string `json:"ref,omitempty"`
	Title string `json:"title,omitempty"`
	Task  string `json:"task,omitempty"`
}

// SearchRequest represents the arguments for vt_search.
type SearchRequest struct {
	Query       string `json:"query"`
	Title       bool   `json:"title,omitempty"`
	Description bool   `json:"description,omitempty"`
	Tags        bool   `json:"tags,omitempty"`
	Regex       bool   `json:"regex,omitempty"`
}

// TicketsResult is the payload of the tools returning several tickets.
type TicketsResult struct {
	Tickets []ticket.Ticket `json:"tickets"`
	Count   int             `json:"count"`
}

// TaskResult is the payload of the task tools.
type TaskResult struct {
	Ticket ticket.Ticket `json:"ticket"`
	Task   ticket.Task   `json:"task"`
}

func ticketsResult(tickets []ticket.Ticket) TicketsResult {
	if tickets == nil {
		tickets = []ticket.Ticket{}
	}

	return TicketsResult{Tickets: tickets, Count: len(tickets)}
}

// HandleList handles vt_list_tickets.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return h.errorResult("vt_list_tickets", err), nil
	}

	pred, err := listPredicate(input, h.svc)
	if err != nil {
		return h.errorResult("vt_list_tickets", err), nil
	}

	tickets, err := h.svc.Repo().Find(pred)
	if err != nil {
		return h.errorResult("vt_list_tickets", err), nil
	}

	if err := filter.Sort(tickets, input.Sort, input.Reverse); err != nil {
		return h.errorResult("vt_list_tickets", err), nil
	}

	if input.Limit > 0 && len(tickets) > input.Limit {
		tickets = tickets[:input.Limit]
	}

	return successResult(ticketsResult(tickets))
}

func listPredicate(in ListRequest, svc *tracker.Service) (func(*ticket.Ticket) bool, error) {
	var (
		status   ticket.Status
		priority ticket.Priority
		err      error
	)

	if in.Status != "" {
		if status, err = ticket.ParseStatus(in.Status); err != nil {
			return nil, err
		}
	}

	if in.Priority != "" {
		if priority, err = ticket.ParsePriority(in.Priority); err != nil {
			return nil, err
		}
	}

	expr, err := filter.Parse(in.Filter, svc.Now())
	if err != nil {
		return nil, err
	}

	return func(t *ticket.Ticket) bool {
		switch {
		case status != "" && t.Status != status:
			return false
		case status == "" && !in.IncludeDone && t.Status == ticket.StatusDone:
			return false
		case !in.Archived && t.Extensions.Archived:
			return false
		case priority != 0 && t.Priority != priority:
			return false
		case in.Tag != "" && !t.HasTag(in.Tag):
			return false
		case in.Assignee != "" && t.Assignee != in.Assignee:
			return false
		}

		return expr.Match(t)
	}, nil
}

// HandleShow handles vt_show_ticket.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return h.errorResult("vt_show_ticket", err), nil
	}

	t, err := h.svc.Resolve(input.Ref)
	if err != nil {
		return h.errorResult("vt_show_ticket", err), nil
	}

	return successResult(t)
}

// HandleCreate handles vt_create_ticket.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateRequest](req)
	if err != nil {
		return h.errorResult("vt_create_ticket", err), nil
	}

	var priority ticket.Priority

	if input.Priority != "" {
		if priority, err = ticket.ParsePriority(input.Priority); err != nil {
			return h.errorResult("vt_create_ticket", err), nil
		}
	}

	t, err := h.svc.Create(ctx, tracker.CreateInput{
		Slug:        input.Slug,
		Title:       input.Title,
		Description: input.Description,
		Priority:    priority,
		Assignee:    input.Assignee,
		Tags:        input.Tags,
		Start:       input.Start,
	})
	if err != nil {
		return h.errorResult("vt_create_ticket", err), nil
	}

	return successResult(t)
}

// HandleUpdate handles vt_update_ticket.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return h.errorResult("vt_update_ticket", err), nil
	}

	patch := tracker.Patch{
		Title:       input.Title,
		Description: input.Description,
		Assignee:    input.Assignee,
		AddTags:     input.AddTags,
		RemoveTags:  input.RemoveTags,
	}

	if input.Priority != nil {
		p, err := ticket.ParsePriority(*input.Priority)
		if err != nil {
			return h.errorResult("vt_update_ticket", err), nil
		}

		patch.Priority = &p
	}

	if input.Status != nil {
		s, err := ticket.ParseStatus(*input.Status)
		if err != nil {
			return h.errorResult("vt_update_ticket", err), nil
		}

		patch.Status = &s
	}

	t, err := h.svc.Update(ctx, input.Ref, patch)
	if err != nil {
		return h.errorResult("vt_update_ticket", err), nil
	}

	return successResult(t)
}

// HandleStart handles vt_start_ticket.
func (h *Handlers) HandleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return h.errorResult("vt_start_ticket", err), nil
	}

	t, err := h.svc.Start(ctx, input.Ref)
	if err != nil {
		return h.errorResult("vt_start_ticket", err), nil
	}

	return successResult(t)
}

// HandleClose handles vt_close_ticket.
func (h *Handlers) HandleClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CloseRequest](req)
	if err != nil {
		return h.errorResult("vt_close_ticket", err), nil
	}

	t, err := h.svc.Close(ctx, input.Ref, tracker.CloseInput{Message: input.Message, Archive: input.Archive})
	if err != nil {
		return h.errorResult("vt_close_ticket", err), nil
	}

	return successResult(t)
}

// HandleAddTask handles vt_add_task.
func (h *Handlers) HandleAddTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskRequest](req)
	if err != nil {
		return h.errorResult("vt_add_task", err), nil
	}

	t, task, err := h.svc.AddTask(ctx, input.Ref, input.Title)
	if err != nil {
		return h.errorResult("vt_add_task", err), nil
	}

	return successResult(TaskResult{Ticket: t, Task: task})
}

// HandleCompleteTask handles vt_complete_task.
func (h *Handlers) HandleCompleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskRequest](req)
	if err != nil {
		return h.errorResult("vt_complete_task", err), nil
	}

	t, task, err := h.svc.CompleteTask(ctx, input.Ref, input.Task)
	if err != nil {
		return h.errorResult("vt_complete_task", err), nil
	}

	return successResult(TaskResult{Ticket: t, Task: task})
}

// HandleSearch handles vt_search.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return h.errorResult("vt_search", err), nil
	}

	tickets, err := h.svc.Search(input.Query, tracker.SearchOptions{
		Title:       input.Title,
		Description: input.Description,
		Tags:        input.Tags,
		Regex:       input.Regex,
	})
	if err != nil {
		return h.errorResult("vt_search", err), nil
	}

	return successResult(ticketsResult(tickets))
}

// HandleActive handles vt_get_active.
func (h *Handlers) HandleActive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tickets, err := h.svc.Active()
	if err != nil {
		return h.errorResult("vt_get_active", err), nil
	}

	return successResult(ticketsResult(tickets))
}

// SpecRequest represents the arguments for vt_spec_status.
type SpecRequest struct {
	Spec string `json:"spec,omitempty"`
}

// SpecValidateRequest represents the arguments for vt_spec_validate.
type SpecValidateRequest struct {
	Spec        string `json:"spec,omitempty"`
	Complete    bool   `json:"complete,omitempty"`
	Ambiguities bool   `json:"ambiguities,omitempty"`
	Report      bool   `json:"report,omitempty"`
}

// SpecStatusResult is the result of vt_spec_status.
type SpecStatusResult struct {
	Spec     specs.Spec       `json:"spec"`
	Progress []specs.Progress `json:"progress"`
}

// HandleSpecStatus handles vt_spec_status.
func (h *Handlers) HandleSpecStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SpecRequest](req)
	if err != nil {
		return h.errorResult("vt_spec_status", err), nil
	}

	sp, err := h.specs.Resolve(input.Spec)
	if err != nil {
		return h.errorResult("vt_spec_status", err), nil
	}

	progress, err := h.specs.Status(sp)
	if err != nil {
		return h.errorResult("vt_spec_status", err), nil
	}

	return successResult(SpecStatusResult{Spec: sp, Progress: progress})
}

// HandleSpecValidate handles vt_spec_validate.
func (h *Handlers) HandleSpecValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SpecValidateRequest](req)
	if err != nil {
		return h.errorResult("vt_spec_validate", err), nil
	}

	sp, err := h.specs.Resolve(input.Spec)
	if err != nil {
		return h.errorResult("vt_spec_validate", err), nil
	}

	v, err := h.specs.Validate(sp, specs.Checks{Complete: input.Complete, Ambiguities: input.Ambiguities})
	if err != nil {
		return h.errorResult("vt_spec_validate", err), nil
	}

	if input.Report {
		if v, err = h.specs.WriteReport(v, h.svc.Now()); err != nil {
			return h.errorResult("vt_spec_validate", err), nil
		}
	}

	return successResult(v)
}

// errorResult reports err to the client as a tool error with the error kind
// and message. Storage failures are logged.
func (h *Handlers) errorResult(tool string, err error) *mcp.CallToolResult {
	kind := ticket.Kind(err)

	if kind == "storage_io" || kind == "storage_corrupt" || kind == "error" {
		h.log.Error("tool failed", "tool", tool, "err", err)
	} else {
		h.log.Debug("tool rejected", "tool", tool, "err", err)
	}

	payload := map[string]any{
		"error": map[string]any{
			"kind":      kind,
			"message":   err.Error(),
			"retryable": ticket.IsRetryable(err),
		},
	}

	content, mErr := json.Marshal(payload)
	if mErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
