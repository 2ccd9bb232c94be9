// Package eventstream publishes transport-neutral notifications about
// persisted exchanges. Events carry identifiers only, never message content.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeExchangePersisted is emitted after an exchange is persisted.
	EventTypeExchangePersisted = "rapport.exchange.persisted"
)

// ExchangePersistedEvent is the payload for a persisted exchange.
type ExchangePersistedEvent struct {
	SchemaVersion  int       `json:"schema_version"`
	EventType      string    `json:"event_type"`
	EventID        string    `json:"event_id"`
	EmittedAt      time.Time `json:"emitted_at"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id,omitempty"`
	PersonaID      string    `json:"persona_id"`
	ProviderID     string    `json:"provider_id"`
	ModelID        string    `json:"model_id"`
	MessageIDs     []string  `json:"message_ids"`
	Encrypted      bool      `json:"encrypted"`
	Partial        bool      `json:"partial,omitempty"`
	FactsInserted  int       `json:"facts_inserted"`
}

// ExchangeMeta is what a publisher needs to describe an exchange.
type ExchangeMeta struct {
	ConversationID string
	UserID         string
	PersonaID      string
	ProviderID     string
	ModelID        string
	MessageIDs     []string
	Encrypted      bool
	Partial        bool
	FactsInserted  int
}

// NewExchangePersistedEvent stamps meta with a fresh event ID and time.
func NewExchangePersistedEvent(meta ExchangeMeta) *ExchangePersistedEvent {
	return &ExchangePersistedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeExchangePersisted,
		EventID:        uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		ConversationID: meta.ConversationID,
		UserID:         meta.UserID,
		PersonaID:      meta.PersonaID,
		ProviderID:     meta.ProviderID,
		ModelID:        meta.ModelID,
		MessageIDs:     meta.MessageIDs,
		Encrypted:      meta.Encrypted,
		Partial:        meta.Partial,
		FactsInserted:  meta.FactsInserted,
	}
}
