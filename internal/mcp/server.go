// Package mcp exposes ticket operations as Model Context Protocol tools
// served over stdio.
package mcp

import (
	"context"
	"io"
	"log/slog"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/calvinalkan/vibe-ticket/internal/events"
	"github.com/calvinalkan/vibe-ticket/internal/specs"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

// ServerName is reported to clients during initialization.
const ServerName = "vibe-ticket"

// NotificationMethod is the method of the notifications sent for ticket
// events.
const NotificationMethod = "notifications/vt/ticket"

const instructions = `Tools for the vibe-ticket tracker of the current project.
Tickets are referenced by slug, id, or id prefix; an empty ref means the active ticket.
Specs are referenced by id or id prefix; an empty spec means the active spec.`

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = map[string]toolEntry{
	"vt_list_tickets": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"vt_show_ticket": {
		def:     showToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShow },
	},
	"vt_create_ticket": {
		def:     createToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreate },
	},
	"vt_update_ticket": {
		def:     updateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdate },
	},
	"vt_start_ticket": {
		def:     startToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStart },
	},
	"vt_close_ticket": {
		def:     closeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClose },
	},
	"vt_add_task": {
		def:     addTaskToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAddTask },
	},
	"vt_complete_task": {
		def:     completeTaskToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCompleteTask },
	},
	"vt_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"vt_get_active": {
		def:     activeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleActive },
	},
	"vt_spec_status": {
		def:     specStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSpecStatus },
	},
	"vt_spec_validate": {
		def:     specValidateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSpecValidate },
	},
}

// ToolNames returns the registered tool names, sorted.
func ToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// NewServer returns an MCP server with every vt tool registered against svc
// and specStore.
func NewServer(svc *tracker.Service, specStore *specs.Store, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	h := NewHandlers(svc, specStore, log)

	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Serve runs s on the given streams until ctx is cancelled or stdin closes.
func Serve(ctx context.Context, s *server.MCPServer, stdin io.Reader, stdout io.Writer, log *slog.Logger) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(log.Handler(), slog.LevelError))

	return stdio.Listen(ctx, stdin, stdout)
}

// ForwardEvents subscribes to bus and sends every post event to connected
// clients as a [NotificationMethod] notification. The returned func
// unsubscribes.
func ForwardEvents(bus *events.Bus, s *server.MCPServer) func() {
	return bus.Subscribe(func(_ context.Context, e events.Event) error {
		if e.Kind.IsPre() {
			return nil
		}

		s.SendNotificationToAllClients(NotificationMethod, eventParams(e))

		return nil
	})
}

func eventParams(e events.Event) map[string]any {
	params := map[string]any{
		"event":     string(e.Kind),
		"ticket_id": e.Ticket.ID.String(),
		"slug":      e.Ticket.Slug,
		"status":    string(e.Ticket.Status),
		"at":        e.At,
	}

	if e.From != "" {
		params["from"] = string(e.From)
		params["to"] = string(e.To)
	}

	return params
}
