package llm

// ChatRequest is the provider-agnostic form of one streaming chat call.
// Adapters translate it into their wire format.
type ChatRequest struct {
	// Model name as the provider knows it (e.g. "claude-sonnet-4-5", "gpt-4o", "llama3.2")
	Model string `json:"model"`

	// System prompt, sent out of band from Messages where the provider allows it
	System string `json:"system,omitempty"`

	// Conversation turns, oldest first, ending with the new user message
	Messages []Message `json:"messages"`

	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// NewChatRequest builds a request whose final turn is message.
func NewChatRequest(model, system string, history []Message, message string) *ChatRequest {
	msgs := Normalize(history)
	msgs = append(msgs, NewUserMessage(message))
	return &ChatRequest{
		Model:    model,
		System:   system,
		Messages: msgs,
	}
}
