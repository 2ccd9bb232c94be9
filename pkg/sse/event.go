// Package sse decodes Server-Sent Events from upstream LLM provider streams.
//
// Only the reading side lives here. Frames sent to relay clients are written
// by the relay package.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is one parsed SSE event, delimited by a blank line in the stream.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data is every "data:" line of the event joined with "\n".
	Data string

	// ID is the last "id:" field seen, if any.
	ID string
}

// Done reports whether the event is the OpenAI-style "[DONE]" sentinel.
func (e *Event) Done() bool {
	return e.Data == "[DONE]"
}
