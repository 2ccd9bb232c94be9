package relay

import (
	"errors"
	"strings"

	"github.com/papercomputeco/rapport/pkg/llm"
)

var (
	// ErrMissingPersona is returned for a chat request without a persona.
	ErrMissingPersona = errors.New("personaId is required")

	// ErrMissingMessage is returned for a chat request without a message.
	ErrMissingMessage = errors.New("message is required")
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	PersonaID      string        `json:"personaId"`
	Message        string        `json:"message"`
	History        []llm.Message `json:"history,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
}

// Validate checks the fields the relay cannot default.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.PersonaID) == "" {
		return ErrMissingPersona
	}
	if strings.TrimSpace(r.Message) == "" {
		return ErrMissingMessage
	}
	return nil
}

// Turns returns the normalized history followed by the new user message.
func (r *ChatRequest) Turns() []llm.Message {
	turns := llm.Normalize(r.History)
	return append(turns, llm.NewUserMessage(r.Message))
}

// ErrorResponse is the JSON body of a rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
}
