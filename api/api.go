package api

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/rapport/api/mcp"
	"github.com/papercomputeco/rapport/pkg/history"
	"github.com/papercomputeco/rapport/pkg/memory"
	"github.com/papercomputeco/rapport/pkg/persona"
	"github.com/papercomputeco/rapport/relay/header"
)

// HistoryReader lists stored messages. *history.Writer satisfies it.
type HistoryReader interface {
	List(ctx context.Context, conversationID, userID string, limit int) ([]history.Message, error)
}

// FactManager reads and edits a user's facts. *memory.Store satisfies it.
type FactManager interface {
	Load(ctx context.Context, userID, personaID string, limit int) ([]memory.Fact, error)
	Save(ctx context.Context, userID, personaID string, facts []memory.Fact) (int, error)
	Delete(ctx context.Context, userID, personaID, id string) error
}

// Server is the read API server.
type Server struct {
	config        Config
	history       HistoryReader
	facts         FactManager
	personas      *persona.Catalog
	logger        *slog.Logger
	app           *fiber.App
	headerHandler *header.Handler
}

// NewServer creates a new API server. The history reader and fact manager
// are injected so they can be shared with the relay when both run in one
// process. mcpServer is optional.
func NewServer(config Config, hist HistoryReader, facts FactManager, personas *persona.Catalog, mcpServer *mcp.Server, logger *slog.Logger) (*Server, error) {
	if hist == nil {
		return nil, errors.New("history reader is required")
	}
	if facts == nil {
		return nil, errors.New("fact manager is required")
	}
	if personas == nil {
		return nil, errors.New("persona catalog is required")
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaultListLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = maxListLimit
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:        config,
		history:       hist,
		facts:         facts,
		personas:      personas,
		logger:        logger,
		app:           app,
		headerHandler: header.NewHandler(),
	}

	app.Get("/ping", s.handlePing)
	app.Get("/personas", s.handleListPersonas)
	app.Get("/conversations/:id/messages", s.handleListMessages)
	app.Get("/facts/:persona", s.handleListFacts)
	app.Post("/facts/:persona", s.handleAddFact)
	app.Delete("/facts/:persona/:id", s.handleDeleteFact)

	if mcpServer != nil && mcpServer.Handler() != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server", "listen", listener.Addr().String())
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
