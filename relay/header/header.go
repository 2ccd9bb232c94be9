// Package header names the request and response headers the relay reads and
// writes.
//
// The relay sits behind an auth layer that identifies the caller:
//
//	Client <--> Auth layer <--> Relay <--> Upstream LLM Provider
//
// and trusts the user header that layer sets. Requests without it are
// anonymous and their exchanges are stored in plaintext.
package header

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// UserHeader carries the authenticated user ID.
	UserHeader = "X-Rapport-User"

	// ConversationHeader returns the conversation ID assigned to a new exchange.
	ConversationHeader = "X-Rapport-Conversation"
)

// streamHeaders are set on every event-stream response. X-Accel-Buffering
// stops nginx-style proxies from holding frames back.
var streamHeaders = [][2]string{
	{fiber.HeaderContentType, "text/event-stream"},
	{fiber.HeaderCacheControl, "no-cache"},
	{fiber.HeaderConnection, "keep-alive"},
	{"X-Accel-Buffering", "no"},
}

// Handler reads and writes relay headers on fiber contexts.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// UserID returns the caller's user ID, or "" for anonymous requests.
func (h *Handler) UserID(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(UserHeader))
}

// SetStreamHeaders marks the response as an unbuffered event stream.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx) {
	for _, kv := range streamHeaders {
		c.Set(kv[0], kv[1])
	}
}

// SetConversation echoes the exchange's conversation ID to the client.
func (h *Handler) SetConversation(c *fiber.Ctx, conversationID string) {
	c.Set(ConversationHeader, conversationID)
}
