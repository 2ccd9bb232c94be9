// Package storage defines the durable store boundary for exchanges and
// memory facts, and the records that cross it.
package storage

import (
	"context"
)

// MessageStore persists conversation history.
type MessageStore interface {
	// SaveExchange writes both halves of one exchange atomically: either
	// both records are stored or neither is. IDs and CreatedAt are filled
	// in when empty.
	SaveExchange(ctx context.Context, user, assistant *MessageRecord) error

	// ListMessages returns messages of one conversation oldest first.
	ListMessages(ctx context.Context, query MessageQuery) ([]*MessageRecord, error)
}

// FactStore persists memory facts.
type FactStore interface {
	// ListFacts returns every fact for (userID, personaID), most important
	// first and newest first within equal importance.
	ListFacts(ctx context.Context, userID, personaID string) ([]*FactRecord, error)

	// InsertFacts stores facts in a single call. IDs and CreatedAt are
	// filled in when empty.
	InsertFacts(ctx context.Context, facts []*FactRecord) error

	// DeleteFact removes one of userID's facts for personaID. Returns
	// NotFoundError when no such fact exists for that (user, persona).
	DeleteFact(ctx context.Context, userID, personaID, id string) error
}

// Driver is a complete storage backend.
type Driver interface {
	MessageStore
	FactStore

	// Close closes the store and releases any resources.
	Close() error
}
