package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// decode unmarshals the request arguments into T.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T

	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("%w: marshal args: %w", ticket.ErrInvalidInput, err)
	}

	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("%w: unmarshal args: %w", ticket.ErrInvalidInput, err)
	}

	return result, nil
}
