// Package inmemory provides a process-local storage driver for tests and
// single-process development.
package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/rapport/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards every map below
	mu sync.RWMutex

	// messages is keyed by conversation id, oldest first
	messages map[string][]*storage.MessageRecord

	// facts is keyed by user id then persona id
	facts map[string]map[string][]*storage.FactRecord

	now func() time.Time
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		messages: make(map[string][]*storage.MessageRecord),
		facts:    make(map[string]map[string][]*storage.FactRecord),
		now:      time.Now,
	}
}

// SaveExchange appends both halves of an exchange under one lock.
func (d *Driver) SaveExchange(_ context.Context, user, assistant *storage.MessageRecord) error {
	if err := storage.PrepareExchange(user, assistant, d.now()); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	u, a := *user, *assistant
	d.messages[u.ConversationID] = append(d.messages[u.ConversationID], &u)
	d.messages[a.ConversationID] = append(d.messages[a.ConversationID], &a)
	return nil
}

// ListMessages returns copies of a conversation's messages, oldest first.
func (d *Driver) ListMessages(_ context.Context, query storage.MessageQuery) ([]*storage.MessageRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*storage.MessageRecord
	for _, m := range d.messages[query.ConversationID] {
		if query.UserID != "" && m.UserID != query.UserID {
			continue
		}
		c := *m
		out = append(out, &c)
	}

	if query.Limit > 0 && len(out) > query.Limit {
		out = out[len(out)-query.Limit:]
	}
	return out, nil
}

// ListFacts returns copies of the facts for (userID, personaID).
func (d *Driver) ListFacts(_ context.Context, userID, personaID string) ([]*storage.FactRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stored := d.facts[userID][personaID]
	out := make([]*storage.FactRecord, 0, len(stored))
	for _, f := range stored {
		c := *f
		out = append(out, &c)
	}

	slices.SortStableFunc(out, func(a, b *storage.FactRecord) int {
		if c := cmp.Compare(b.Importance, a.Importance); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// InsertFacts stores all facts or none.
func (d *Driver) InsertFacts(_ context.Context, facts []*storage.FactRecord) error {
	now := d.now()
	for _, f := range facts {
		if err := storage.PrepareFact(f, now); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, f := range facts {
		c := *f
		byPersona, ok := d.facts[c.UserID]
		if !ok {
			byPersona = make(map[string][]*storage.FactRecord)
			d.facts[c.UserID] = byPersona
		}
		byPersona[c.PersonaID] = append(byPersona[c.PersonaID], &c)
	}
	return nil
}

// DeleteFact removes one of userID's facts for personaID.
func (d *Driver) DeleteFact(_ context.Context, userID, personaID, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	facts := d.facts[userID][personaID]
	i := slices.IndexFunc(facts, func(f *storage.FactRecord) bool { return f.ID == id })
	if i < 0 {
		return storage.NotFoundError{ID: id}
	}
	d.facts[userID][personaID] = slices.Delete(facts, i, i+1)
	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
