package storage

import "time"

// Message roles as stored.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Fact sources.
const (
	SourceConversation = "conversation"
	SourceManual       = "manual"
)

// MessageRecord is one stored half of an exchange. When Encrypted is set,
// Content is an envelope keyed to UserID.
type MessageRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id,omitempty"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	PersonaID      string    `json:"persona_id"`
	ProviderID     string    `json:"provider_id"`
	ModelID        string    `json:"model_id"`
	Encrypted      bool      `json:"encrypted"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageQuery selects messages of a conversation.
type MessageQuery struct {
	ConversationID string

	// UserID, when set, restricts results to that user's messages.
	UserID string

	// Limit caps the result to the most recent Limit messages. Zero means no cap.
	Limit int
}

// FactRecord is one stored memory fact. When Encrypted is set, Fact is an
// envelope keyed to UserID.
type FactRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	PersonaID  string    `json:"persona_id"`
	Fact       string    `json:"fact"`
	Category   string    `json:"category"`
	Importance int       `json:"importance"`
	Source     string    `json:"source"`
	Encrypted  bool      `json:"encrypted"`
	CreatedAt  time.Time `json:"created_at"`
}
