package testutils

import (
	"context"
	"iter"
	"sync"

	"github.com/papercomputeco/rapport/pkg/llm"
)

// StubProvider replays a fixed script of events and records every request.
type StubProvider struct {
	ProviderName string

	// Script is yielded in order for every Stream call.
	Script []llm.Event

	// BlockAfter, when positive, makes Stream wait for ctx cancellation
	// after yielding that many events instead of continuing the script.
	BlockAfter int

	// Gate, when set, is received from once after the first event has been
	// yielded, so a test can act between frames.
	Gate <-chan struct{}

	mu       sync.Mutex
	requests []*llm.ChatRequest
	pulled   int
}

// NewStubProvider returns a provider that yields script.
func NewStubProvider(script ...llm.Event) *StubProvider {
	return &StubProvider{ProviderName: "stub", Script: script}
}

func (s *StubProvider) Name() string {
	return s.ProviderName
}

func (s *StubProvider) Stream(ctx context.Context, req *llm.ChatRequest) iter.Seq[llm.Event] {
	return func(yield func(llm.Event) bool) {
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		for i, ev := range s.Script {
			if s.BlockAfter > 0 && i == s.BlockAfter {
				<-ctx.Done()
				yield(llm.UpstreamFailure(ctx, ctx.Err()))
				return
			}

			s.mu.Lock()
			s.pulled++
			s.mu.Unlock()

			if !yield(ev) {
				return
			}
			if i == 0 && s.Gate != nil {
				<-s.Gate
			}
		}
	}
}

// Requests returns every request Stream has seen.
func (s *StubProvider) Requests() []*llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*llm.ChatRequest(nil), s.requests...)
}

// LastRequest returns the most recent request or nil.
func (s *StubProvider) LastRequest() *llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

// Pulled returns how many script events have been handed to consumers.
func (s *StubProvider) Pulled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulled
}
