package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/rapport/pkg/eventstream"
	"github.com/papercomputeco/rapport/pkg/history"
	"github.com/papercomputeco/rapport/pkg/memory"
)

// SpyExtractor returns fixed facts (or a fixed error) and counts calls.
type SpyExtractor struct {
	Facts []memory.Fact
	Err   error

	// Panic, when set, makes Extract panic with this value.
	Panic any

	mu    sync.Mutex
	calls int
	seen  []string
}

func (s *SpyExtractor) Extract(_ context.Context, userText, _, _ string) ([]memory.Fact, error) {
	s.mu.Lock()
	s.calls++
	s.seen = append(s.seen, userText)
	s.mu.Unlock()

	if s.Panic != nil {
		panic(s.Panic)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]memory.Fact(nil), s.Facts...), nil
}

// Calls returns how many times Extract ran.
func (s *SpyExtractor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// SeenUserTexts returns the user text of every Extract call.
func (s *SpyExtractor) SeenUserTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

// HistorySaver is the subset of *history.Writer a SpyHistory wraps.
type HistorySaver interface {
	Save(ctx context.Context, pair history.Pair) (history.Saved, error)
}

// SpyHistory records every pair it is asked to save. It delegates to Next
// when set; otherwise it returns Err or fixed message IDs.
type SpyHistory struct {
	Next HistorySaver
	Err  error

	mu    sync.Mutex
	pairs []history.Pair
}

func (s *SpyHistory) Save(ctx context.Context, pair history.Pair) (history.Saved, error) {
	s.mu.Lock()
	s.pairs = append(s.pairs, pair)
	s.mu.Unlock()

	if s.Err != nil {
		return history.Saved{}, s.Err
	}
	if s.Next != nil {
		return s.Next.Save(ctx, pair)
	}
	return history.Saved{UserMessageID: "user-msg", AssistantMessageID: "assistant-msg"}, nil
}

// Calls returns how many times Save ran.
func (s *SpyHistory) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pairs)
}

// Pairs returns every pair passed to Save.
func (s *SpyHistory) Pairs() []history.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]history.Pair(nil), s.pairs...)
}

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.ExchangePersistedEvent
	closed bool
}

func (p *RecordingPublisher) PublishExchange(_ context.Context, event *eventstream.ExchangePersistedEvent) error {
	if err := eventstream.Validate(event); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Events returns every published event.
func (p *RecordingPublisher) Events() []*eventstream.ExchangePersistedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.ExchangePersistedEvent(nil), p.events...)
}
