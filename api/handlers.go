package api

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/rapport/pkg/history"
	"github.com/papercomputeco/rapport/pkg/memory"
	"github.com/papercomputeco/rapport/pkg/persona"
	"github.com/papercomputeco/rapport/pkg/storage"
)

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessagesResponse lists a conversation's messages, oldest first.
type MessagesResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []history.Message `json:"messages"`
	Count          int               `json:"count"`
}

// FactsResponse lists a user's facts for one persona.
type FactsResponse struct {
	PersonaID string        `json:"persona_id"`
	Facts     []memory.Fact `json:"facts"`
	Count     int           `json:"count"`
}

// AddFactRequest is the body of POST /facts/:persona.
type AddFactRequest struct {
	Fact       string `json:"fact"`
	Category   string `json:"category"`
	Importance int    `json:"importance"`
}

// AddFactResponse reports whether a manual fact was new.
type AddFactResponse struct {
	Inserted int `json:"inserted"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleListPersonas(c *fiber.Ctx) error {
	return c.JSON(s.personas.List())
}

// handleListMessages returns a conversation's stored messages decrypted for
// the calling user.
func (s *Server) handleListMessages(c *fiber.Ctx) error {
	userID := s.headerHandler.UserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "user required"})
	}

	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "conversation id required"})
	}

	limit, err := s.limit(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	msgs, err := s.history.List(c.UserContext(), conversationID, userID, limit)
	if err != nil {
		s.logger.Error("failed to list messages", "conversation_id", conversationID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list messages"})
	}
	if len(msgs) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "conversation not found"})
	}

	return c.JSON(MessagesResponse{
		ConversationID: conversationID,
		Messages:       msgs,
		Count:          len(msgs),
	})
}

func (s *Server) handleListFacts(c *fiber.Ctx) error {
	userID, personaID, ok := s.factScope(c)
	if !ok {
		return nil
	}

	limit, err := s.limit(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	facts, err := s.facts.Load(c.UserContext(), userID, personaID, limit)
	if err != nil {
		s.logger.Error("failed to load facts", "persona", personaID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load facts"})
	}

	return c.JSON(FactsResponse{
		PersonaID: personaID,
		Facts:     facts,
		Count:     len(facts),
	})
}

// handleAddFact stores a fact the user entered themselves.
func (s *Server) handleAddFact(c *fiber.Ctx) error {
	userID, personaID, ok := s.factScope(c)
	if !ok {
		return nil
	}

	var req AddFactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Fact) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "fact is required"})
	}
	if req.Importance == 0 {
		req.Importance = memory.DefaultImportance
	}

	n, err := s.facts.Save(c.UserContext(), userID, personaID, []memory.Fact{{
		Text:       strings.TrimSpace(req.Fact),
		Category:   req.Category,
		Importance: req.Importance,
		Source:     storage.SourceManual,
	}})
	if err != nil {
		s.logger.Error("failed to save fact", "persona", personaID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to save fact"})
	}

	status := fiber.StatusCreated
	if n == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(AddFactResponse{Inserted: n})
}

func (s *Server) handleDeleteFact(c *fiber.Ctx) error {
	userID, personaID, ok := s.factScope(c)
	if !ok {
		return nil
	}

	err := s.facts.Delete(c.UserContext(), userID, personaID, c.Params("id"))
	switch {
	case err == nil:
		return c.SendStatus(fiber.StatusNoContent)
	case storage.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "fact not found"})
	default:
		s.logger.Error("failed to delete fact", "persona", personaID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to delete fact"})
	}
}

// factScope resolves the caller and persona for fact routes. When it
// returns false the error response has already been written.
func (s *Server) factScope(c *fiber.Ctx) (userID, personaID string, ok bool) {
	userID = s.headerHandler.UserID(c)
	if userID == "" {
		_ = c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "user required"})
		return "", "", false
	}

	personaID = c.Params("persona")
	if _, err := s.personas.Get(personaID); err != nil {
		if errors.Is(err, persona.ErrUnknownPersona) {
			_ = c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "unknown persona"})
		} else {
			_ = c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
		}
		return "", "", false
	}
	return userID, personaID, true
}

func (s *Server) limit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return s.config.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, s.config.MaxLimit), nil
}
