package mcp

import "github.com/mark3labs/mcp-go/mcp"

var statusEnum = mcp.Enum("todo", "doing", "review", "blocked", "done")

var priorityEnum = mcp.Enum("low", "medium", "high", "critical")

func refParam() mcp.ToolOption {
	return mcp.WithString("ref", mcp.Description("Ticket slug, id or id prefix. Empty for the active ticket."))
}

var listToolDef = mcp.NewTool("vt_list_tickets",
	mcp.WithDescription("List tickets. Done and archived tickets are hidden unless asked for."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("status", mcp.Description("Only tickets with this status."), statusEnum),
	mcp.WithString("priority", mcp.Description("Only tickets with this priority."), priorityEnum),
	mcp.WithString("tag", mcp.Description("Only tickets carrying this tag.")),
	mcp.WithString("assignee", mcp.Description("Only tickets assigned to this person.")),
	mcp.WithString("filter", mcp.Description("Filter expression such as 'status:todo,doing tag:auth'.")),
	mcp.WithString("sort", mcp.Description("Sort key."), mcp.Enum("created", "priority", "status", "slug", "title")),
	mcp.WithBoolean("reverse", mcp.Description("Reverse the sort order.")),
	mcp.WithBoolean("include_done", mcp.Description("Include done tickets.")),
	mcp.WithBoolean("archived", mcp.Description("Include archived tickets.")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of tickets."), mcp.Min(0)),
)

var showToolDef = mcp.NewTool("vt_show_ticket",
	mcp.WithDescription("Show one ticket with its tasks."),
	mcp.WithReadOnlyHintAnnotation(true),
	refParam(),
)

var createToolDef = mcp.NewTool("vt_create_ticket",
	mcp.WithDescription("Create a ticket."),
	mcp.WithString("slug", mcp.Required(), mcp.Description("Lowercase slug: letters, digits and dashes.")),
	mcp.WithString("title", mcp.Description("Title. Derived from the slug when empty.")),
	mcp.WithString("description", mcp.Description("Markdown description.")),
	mcp.WithString("priority", priorityEnum),
	mcp.WithString("assignee"),
	mcp.WithArray("tags", mcp.WithStringItems()),
	mcp.WithBoolean("start", mcp.Description("Start the ticket right away.")),
)

var updateToolDef = mcp.NewTool("vt_update_ticket",
	mcp.WithDescription("Change fields of a ticket. Omitted fields stay as they are."),
	refParam(),
	mcp.WithString("title"),
	mcp.WithString("description"),
	mcp.WithString("priority", priorityEnum),
	mcp.WithString("status", statusEnum),
	mcp.WithString("assignee"),
	mcp.WithArray("add_tags", mcp.WithStringItems()),
	mcp.WithArray("remove_tags", mcp.WithStringItems()),
)

var startToolDef = mcp.NewTool("vt_start_ticket",
	mcp.WithDescription("Start working on a ticket and make it active."),
	refParam(),
)

var closeToolDef = mcp.NewTool("vt_close_ticket",
	mcp.WithDescription("Mark a ticket done."),
	mcp.WithDestructiveHintAnnotation(false),
	refParam(),
	mcp.WithString("message", mcp.Description("Close message.")),
	mcp.WithBoolean("archive", mcp.Description("Archive the ticket as well.")),
)

var addTaskToolDef = mcp.NewTool("vt_add_task",
	mcp.WithDescription("Add a task to a ticket's checklist."),
	refParam(),
	mcp.WithString("title", mcp.Required()),
)

var completeTaskToolDef = mcp.NewTool("vt_complete_task",
	mcp.WithDescription("Mark a task done."),
	refParam(),
	mcp.WithString("task", mcp.Required(), mcp.Description("Task id, id prefix or 1-based position.")),
)

var searchToolDef = mcp.NewTool("vt_search",
	mcp.WithDescription("Search tickets by title, description and tags."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("query", mcp.Required()),
	mcp.WithBoolean("title", mcp.Description("Search titles and slugs.")),
	mcp.WithBoolean("description", mcp.Description("Search descriptions.")),
	mcp.WithBoolean("tags", mcp.Description("Search tags.")),
	mcp.WithBoolean("regex", mcp.Description("Treat query as a regular expression.")),
)

var specStatusToolDef = mcp.NewTool("vt_spec_status",
	mcp.WithDescription("Show a spec and which phase documents exist and are approved."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("spec", mcp.Description("Spec id or id prefix; empty means the active spec.")),
)

var specValidateToolDef = mcp.NewTool("vt_spec_validate",
	mcp.WithDescription("Check a spec for missing or unapproved phase documents and [NEEDS CLARIFICATION] markers."),
	mcp.WithString("spec", mcp.Description("Spec id or id prefix; empty means the active spec.")),
	mcp.WithBoolean("complete", mcp.Description("Check document presence and approval.")),
	mcp.WithBoolean("ambiguities", mcp.Description("Check for [NEEDS CLARIFICATION] markers.")),
	mcp.WithBoolean("report", mcp.Description("Write validation-report.md into the spec directory.")),
)

var activeToolDef = mcp.NewTool("vt_get_active",
	mcp.WithDescription("Return the tickets currently being worked on."),
	mcp.WithReadOnlyHintAnnotation(true),
)
