package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/papercomputeco/rapport/pkg/encryption"
	"github.com/papercomputeco/rapport/pkg/storage"
)

// DefaultCacheTTL bounds how long a cached fact list can lag writes made
// by another process sharing the same database.
const DefaultCacheTTL = 30 * time.Second

// StoreConfig configures a Store.
type StoreConfig struct {
	// CacheSize is the approximate number of (user, persona) fact lists kept
	// in memory. Zero disables the cache.
	CacheSize int64

	// CacheTTL expires cached lists. Zero means DefaultCacheTTL.
	CacheTTL time.Duration
}

// Store reads and writes facts for (user, persona) pairs through a
// storage.FactStore, encrypting on write when the codec is enabled and
// decrypting on read.
//
// Deduplication happens at write time against a snapshot of existing facts.
// Two concurrent Saves for the same pair can both miss each other's rows.
type Store struct {
	facts  storage.FactStore
	codec  *encryption.Codec
	cache  *ristretto.Cache
	ttl    time.Duration
	logger *slog.Logger

	// gen counts invalidations. A Load only caches what it read when no
	// invalidation happened since it started reading.
	mu  sync.Mutex
	gen uint64
}

// NewStore creates a fact store.
func NewStore(facts storage.FactStore, codec *encryption.Codec, cfg StoreConfig, logger *slog.Logger) (*Store, error) {
	s := &Store{
		facts:  facts,
		codec:  codec,
		logger: logger,
	}

	if cfg.CacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: cfg.CacheSize * 10,
			MaxCost:     cfg.CacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("creating fact cache: %w", err)
		}
		s.cache = cache
		s.ttl = cfg.CacheTTL
		if s.ttl <= 0 {
			s.ttl = DefaultCacheTTL
		}
	}
	return s, nil
}

// Save inserts the facts whose normalized text is not already stored for
// (userID, personaID), also collapsing duplicates within facts. It returns
// how many were inserted.
func (s *Store) Save(ctx context.Context, userID, personaID string, facts []Fact) (int, error) {
	if userID == "" {
		return 0, ErrMissingUser
	}
	if len(facts) == 0 {
		return 0, nil
	}

	existing, err := s.facts.ListFacts(ctx, userID, personaID)
	if err != nil {
		return 0, fmt.Errorf("loading existing facts: %w", err)
	}

	seen := make(map[string]struct{}, len(existing)+len(facts))
	for _, rec := range existing {
		seen[normalizeKey(s.codec.Decode(rec.Fact, rec.Encrypted, userID))] = struct{}{}
	}

	var records []*storage.FactRecord
	for _, f := range facts {
		key := f.Key()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		text, encrypted, err := s.codec.Seal(f.Text, userID)
		if err != nil {
			return 0, fmt.Errorf("encrypting fact: %w", err)
		}
		source := f.Source
		if source == "" {
			source = storage.SourceConversation
		}
		records = append(records, &storage.FactRecord{
			UserID:     userID,
			PersonaID:  personaID,
			Fact:       text,
			Category:   NormalizeCategory(f.Category),
			Importance: ClampImportance(float64(f.Importance)),
			Source:     source,
			Encrypted:  encrypted,
		})
	}

	if len(records) == 0 {
		return 0, nil
	}
	if err := s.facts.InsertFacts(ctx, records); err != nil {
		return 0, fmt.Errorf("inserting facts: %w", err)
	}

	s.invalidate(userID, personaID)
	s.logger.Debug("facts saved", "user_id", userID, "persona_id", personaID, "inserted", len(records))
	return len(records), nil
}

// Load returns up to limit decrypted facts for (userID, personaID), most
// important first and newest first within equal importance. A limit of zero
// or less returns all of them.
func (s *Store) Load(ctx context.Context, userID, personaID string, limit int) ([]Fact, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	facts, ok := s.cached(userID, personaID)
	if !ok {
		gen := s.generation()
		records, err := s.facts.ListFacts(ctx, userID, personaID)
		if err != nil {
			return nil, fmt.Errorf("listing facts: %w", err)
		}

		facts = make([]Fact, 0, len(records))
		for _, rec := range records {
			facts = append(facts, Fact{
				ID:         rec.ID,
				Text:       s.codec.Decode(rec.Fact, rec.Encrypted, userID),
				Category:   rec.Category,
				Importance: rec.Importance,
				Source:     rec.Source,
				CreatedAt:  rec.CreatedAt,
			})
		}
		s.store(userID, personaID, facts, gen)
	}

	if limit > 0 && len(facts) > limit {
		facts = facts[:limit]
	}
	return append([]Fact(nil), facts...), nil
}

// Delete removes one of the user's facts for personaID. A fact that belongs
// to another persona is reported as not found.
func (s *Store) Delete(ctx context.Context, userID, personaID, id string) error {
	if userID == "" {
		return ErrMissingUser
	}
	if err := s.facts.DeleteFact(ctx, userID, personaID, id); err != nil {
		return err
	}
	s.invalidate(userID, personaID)
	return nil
}

// Close releases the cache.
func (s *Store) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

func cacheKey(userID, personaID string) string {
	return userID + "\x00" + personaID
}

func (s *Store) cached(userID, personaID string) ([]Fact, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(cacheKey(userID, personaID))
	if !ok {
		return nil, false
	}
	facts, ok := v.([]Fact)
	return facts, ok
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Store) store(userID, personaID string, facts []Fact, gen uint64) {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.cache.SetWithTTL(cacheKey(userID, personaID), facts, 1, s.ttl)
	s.cache.Wait()
}

func (s *Store) invalidate(userID, personaID string) {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Del(cacheKey(userID, personaID))
}
