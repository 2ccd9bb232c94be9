package llm

import "fmt"

// EventKind tags the variant held by an Event.
type EventKind int

const (
	// KindText carries a chunk of assistant text.
	KindText EventKind = iota
	// KindDone marks normal completion of the stream.
	KindDone
	// KindError marks abnormal termination. Message holds the reason.
	KindError
)

func (k EventKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is the canonical unit every provider stream is normalized into.
//
// A well-formed stream is zero or more Text events followed by exactly one
// terminal event (Done or Error) and nothing after it.
type Event struct {
	Kind    EventKind
	Text    string
	Message string
}

// Text creates a text event.
func Text(s string) Event { return Event{Kind: KindText, Text: s} }

// Done creates the normal-completion event.
func Done() Event { return Event{Kind: KindDone} }

// Error creates an abnormal-termination event.
func Error(msg string) Event { return Event{Kind: KindError, Message: msg} }

// Errorf formats an Error event.
func Errorf(format string, args ...any) Event {
	return Error(fmt.Sprintf(format, args...))
}

// Terminal reports whether e ends a stream.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

func (e Event) String() string {
	switch e.Kind {
	case KindText:
		return fmt.Sprintf("Text(%q)", e.Text)
	case KindError:
		return fmt.Sprintf("Error(%q)", e.Message)
	default:
		return e.Kind.String()
	}
}
