package cli

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/mcp"
)

// MCPCmd returns the mcp command group.
func MCPCmd(a *app) *Command {
	return Group("mcp", "Model Context Protocol server",
		`Expose the tracker to MCP clients over stdio. Ticket events are sent
to connected clients as notifications.`,
		mcpServeCmd(a),
		mcpToolsCmd(),
	)
}

func mcpServeCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("serve", flag.ContinueOnError),
		Usage: "serve",
		Short: "Serve MCP over stdin and stdout",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: "mcp serve", err: errTooManyArgs}
			}

			svc, err := a.service()
			if err != nil {
				return err
			}

			bus, err := a.events()
			if err != nil {
				return err
			}

			specStore, err := a.specs()
			if err != nil {
				return err
			}

			s := mcp.NewServer(svc, specStore, Version, a.log)

			unsubscribe := mcp.ForwardEvents(bus, s)
			defer unsubscribe()

			a.log.Debug("mcp server listening on stdio", "tools", len(mcp.ToolNames()))

			err = mcp.Serve(ctx, s, a.stdin, o.Out(), a.log)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		},
	}
}

func mcpToolsCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("tools", flag.ContinueOnError),
		Usage: "tools",
		Short: "List the tools the server exposes",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			for _, name := range mcp.ToolNames() {
				o.Println(name)
			}

			return nil
		},
	}
}
