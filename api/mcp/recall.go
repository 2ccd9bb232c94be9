package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/rapport/pkg/memory"
)

const defaultRecallLimit = 20

var (
	factRecallToolName    = "fact_recall"
	factRecallDescription = "Recall what is known about a user from past conversations with a persona. Returns stored facts, most important first."
)

// FactRecallInput represents the input arguments for the fact_recall tool.
type FactRecallInput struct {
	UserID    string `json:"user_id" jsonschema:"the user whose facts to recall"`
	PersonaID string `json:"persona_id" jsonschema:"the persona the facts were learned by"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of facts to return (default: 20)"`
}

// FactRecallOutput represents the structured output of a fact recall.
type FactRecallOutput struct {
	Facts []memory.Fact `json:"facts"`
	Count int           `json:"count"`
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// handleFactRecall processes a fact_recall request via MCP.
func (s *Server) handleFactRecall(ctx context.Context, _ *mcp.CallToolRequest, input FactRecallInput) (*mcp.CallToolResult, FactRecallOutput, error) {
	if input.UserID == "" {
		return toolError("user_id is required"), FactRecallOutput{}, nil
	}
	if input.PersonaID == "" {
		return toolError("persona_id is required"), FactRecallOutput{}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultRecallLimit
	}

	s.config.Logger.Debug("MCP fact recall",
		"persona_id", input.PersonaID,
		"limit", limit,
	)

	facts, err := s.config.Facts.Load(ctx, input.UserID, input.PersonaID, limit)
	if err != nil {
		return toolError("Fact recall failed: %v", err), FactRecallOutput{}, nil
	}

	if facts == nil {
		facts = []memory.Fact{}
	}
	output := FactRecallOutput{Facts: facts, Count: len(facts)}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), FactRecallOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
