// Package relay provides the streaming chat relay: it answers as a persona by
// streaming an upstream provider's reply to the client frame by frame, and
// hands every finished exchange to a background pool for persistence and
// fact extraction.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/rapport/pkg/history"
	"github.com/papercomputeco/rapport/pkg/llm"
	"github.com/papercomputeco/rapport/pkg/memory"
	"github.com/papercomputeco/rapport/pkg/persona"
	"github.com/papercomputeco/rapport/relay/header"
	"github.com/papercomputeco/rapport/relay/worker"
)

// factLoadTimeout bounds the fact lookup on the request path.
const factLoadTimeout = 2 * time.Second

// Relay is the persona chat relay server.
type Relay struct {
	config        Config
	workerPool    *worker.Pool
	limiter       *RateLimiter
	logger        *slog.Logger
	server        *fiber.App
	headerHandler *header.Handler

	// streams tracks in-flight pump goroutines so Close can wait for them
	// before draining the worker pool.
	streams sync.WaitGroup
}

// exchange is what the pump goroutine needs to hand a finished stream to
// the worker pool.
type exchange struct {
	conversationID string
	userID         string
	userText       string
	persona        persona.Persona
}

// New creates a new Relay and starts its worker pool.
func New(config Config, logger *slog.Logger) (*Relay, error) {
	if config.Personas == nil {
		return nil, errors.New("persona catalog is required")
	}
	if config.Streamer == nil {
		return nil, errors.New("streamer is required")
	}

	if config.Worker.Logger == nil {
		config.Worker.Logger = logger
	}
	wp, err := worker.NewPool(&config.Worker)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	r := &Relay{
		config:        config,
		workerPool:    wp,
		limiter:       NewRateLimiter(config.RateLimit, config.RateBurst),
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
	}

	app.Get("/ping", r.handlePing)
	app.Post("/v1/chat", r.handleChat)

	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server", "listen", r.config.ListenAddr)
	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server", "listen", listener.Addr().String())
	return r.server.Listener(listener)
}

// Close stops the server, waits for open streams to finish, then drains the
// worker pool.
func (r *Relay) Close() error {
	err := r.server.Shutdown()
	r.streams.Wait()
	r.workerPool.Close()
	return err
}

func (r *Relay) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleChat validates the request, resolves the persona and wires the
// upstream stream to the response body. It returns as soon as the pipe is
// in place; a single goroutine pumps frames until the stream ends.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	userID := r.headerHandler.UserID(c)

	limitKey := userID
	if limitKey == "" {
		limitKey = c.IP()
	}
	if !r.limiter.Allow(limitKey) {
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: "rate limit exceeded"})
	}

	var req ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	p, err := r.config.Personas.Get(req.PersonaID)
	if err != nil {
		if errors.Is(err, persona.ErrUnknownPersona) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "unknown persona"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	chatReq := &llm.ChatRequest{
		Model:     p.ModelID,
		System:    r.systemPrompt(c.UserContext(), userID, p),
		Messages:  req.Turns(),
		MaxTokens: p.MaxTokens,
	}

	r.headerHandler.SetStreamHeaders(c)
	r.headerHandler.SetConversation(c, conversationID)

	r.logger.Debug("streaming chat",
		"conversation_id", conversationID,
		"persona", p.ID,
		"provider", p.ProviderID,
		"model", p.ModelID,
		"history", len(chatReq.Messages)-1,
	)

	// Use context.Background() instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, while the pump
	// keeps reading upstream after that.
	ctx, cancel := context.WithCancel(context.Background())
	events := r.config.Streamer.Stream(ctx, p.ProviderID, chatReq)

	// io.Pipe gives per-frame flushing: pw.Write blocks until fasthttp's
	// chunked body writer has consumed the frame and written it out.
	pr, pw := io.Pipe()
	ex := exchange{
		conversationID: conversationID,
		userID:         userID,
		userText:       req.Message,
		persona:        p,
	}
	r.streams.Go(func() {
		defer cancel()
		r.pump(ctx, events, pw, ex)
	})

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// systemPrompt extends the persona's prompt with the user's stored facts.
// A failed lookup is logged and the plain prompt is used.
func (r *Relay) systemPrompt(ctx context.Context, userID string, p persona.Persona) string {
	if r.config.Facts == nil || userID == "" || r.config.FactLimit <= 0 {
		return p.SystemPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, factLoadTimeout)
	defer cancel()

	facts, err := r.config.Facts.Load(ctx, userID, p.ID, r.config.FactLimit)
	if err != nil {
		r.logger.Warn("failed to load facts", "persona", p.ID, "error", err)
		return p.SystemPrompt
	}
	return memory.AugmentSystemPrompt(p.SystemPrompt, facts)
}

func (r *Relay) pump(ctx context.Context, events iter.Seq[llm.Event], pw *io.PipeWriter, ex exchange) {
	acc := &Accumulator{}
	start := time.Now()

	outcome := Pump(ctx, events, pw, acc)
	pw.Close()

	log := r.logger.With(
		"conversation_id", ex.conversationID,
		"persona", ex.persona.ID,
		"provider", ex.persona.ProviderID,
	)
	log.Info("stream finished",
		"outcome", outcome.String(),
		"chars", acc.Len(),
		"duration", time.Since(start),
	)

	r.finish(log, outcome, acc.String(), ex)
}

// finish enqueues post-processing for streams that produced text and did
// not fail. A reply cut short by the client is saved as partial.
func (r *Relay) finish(log *slog.Logger, outcome Outcome, text string, ex exchange) {
	if outcome == OutcomeFailed {
		log.Debug("skipping post-processing for failed stream")
		return
	}
	if text == "" {
		log.Debug("skipping post-processing for empty reply")
		return
	}

	r.workerPool.Enqueue(worker.Job{
		Pair: history.Pair{
			ConversationID: ex.conversationID,
			UserID:         ex.userID,
			UserText:       ex.userText,
			AssistantText:  text,
			Metadata: history.Metadata{
				PersonaID:  ex.persona.ID,
				ProviderID: ex.persona.ProviderID,
				ModelID:    ex.persona.ModelID,
			},
		},
		Domain:  ex.persona.Domain,
		Partial: outcome == OutcomeCancelled,
	})
}
