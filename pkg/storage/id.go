package storage

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a time-sortable ULID string. IDs minted in the same
// millisecond still sort in mint order.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// PrepareExchange fills defaults on both halves of an exchange and
// validates them. Roles are forced to user and assistant.
func PrepareExchange(user, assistant *MessageRecord, now time.Time) error {
	if user == nil || assistant == nil {
		return fmt.Errorf("%w: exchange needs both halves", ErrInvalidRecord)
	}
	for _, m := range []*MessageRecord{user, assistant} {
		if m.ConversationID == "" {
			return fmt.Errorf("%w: missing conversation id", ErrInvalidRecord)
		}
		if m.ID == "" {
			m.ID = NewID()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
	}
	user.Role = RoleUser
	assistant.Role = RoleAssistant
	return nil
}

// PrepareFact fills defaults on a fact and validates it.
func PrepareFact(f *FactRecord, now time.Time) error {
	if f == nil || f.UserID == "" || f.PersonaID == "" || f.Fact == "" {
		return fmt.Errorf("%w: fact needs user, persona and text", ErrInvalidRecord)
	}
	if f.ID == "" {
		f.ID = NewID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.Source == "" {
		f.Source = SourceConversation
	}
	return nil
}
