// Package mcp provides an MCP (Model Context Protocol) server exposing a
// user's stored facts to MCP clients.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/rapport/pkg/memory"
	"github.com/papercomputeco/rapport/pkg/utils"
)

// FactLoader reads ranked facts. *memory.Store satisfies it.
type FactLoader interface {
	Load(ctx context.Context, userID, personaID string, limit int) ([]memory.Fact, error)
}

type Config struct {
	// Facts backs the fact_recall tool.
	Facts FactLoader

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the fact_recall tool.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "rapport",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// MCP capabilities are disabled: serve no tools and no endpoint.
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Facts == nil {
		return nil, errors.New("fact loader is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        factRecallToolName,
		Description: factRecallDescription,
	}, s.handleFactRecall)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server, or nil for a noop
// server.
func (s *Server) Handler() http.Handler {
	if s.handler == nil {
		return nil
	}
	return s.handler
}
