package llm

import (
	"context"
	"errors"
	"iter"
)

// UpstreamTimeout is the Error message reported when an upstream call
// exceeds its deadline.
const UpstreamTimeout = "upstream timeout"

// incompleteStream is reported when a provider stream ends without a
// terminal event.
const incompleteStream = "upstream stream ended before completion"

// UpstreamFailure converts an error raised while talking to a provider into
// a terminal Error event. Deadline expiry on ctx is reported as
// UpstreamTimeout regardless of how the transport wrapped it.
func UpstreamFailure(ctx context.Context, err error) Event {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return Error(UpstreamTimeout)
	}
	if err == nil {
		return Error(incompleteStream)
	}
	return Error(err.Error())
}

// Terminated enforces the stream contract on seq: the returned sequence
// yields exactly one terminal event and nothing after it. Events after the
// first terminal are discarded, and a sequence that ends early gets a
// synthetic Error.
func Terminated(seq iter.Seq[Event]) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for ev := range seq {
			if !yield(ev) {
				return
			}
			if ev.Terminal() {
				return
			}
		}
		yield(Error(incompleteStream))
	}
}

// Single returns a sequence of exactly one event.
func Single(ev Event) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		yield(ev)
	}
}
