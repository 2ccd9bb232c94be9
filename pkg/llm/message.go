package llm

import "strings"

// Message roles accepted in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one prior turn of a conversation as supplied by the caller.
type Message struct {
	Role    string `json:"role"`    // "user" or "assistant"
	Content string `json:"content"` // plain text
}

// NewUserMessage creates a user turn.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage creates an assistant turn.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// Normalize drops turns with empty content and unknown roles, and folds
// "system" turns out of the history since providers take the system prompt
// separately. The returned slice never aliases history.
func Normalize(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch strings.ToLower(m.Role) {
		case RoleUser:
			out = append(out, NewUserMessage(m.Content))
		case RoleAssistant:
			out = append(out, NewAssistantMessage(m.Content))
		}
	}
	return out
}
