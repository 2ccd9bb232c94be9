package eventstream

import "context"

// Publisher announces persisted exchanges to an event stream backend.
// Implementations must call Validate before sending anything.
type Publisher interface {
	PublishExchange(ctx context.Context, event *ExchangePersistedEvent) error
	Close() error
}

// Validate reports whether event is fit to publish.
func Validate(event *ExchangePersistedEvent) error {
	switch {
	case event == nil:
		return ErrNilExchangeEvent
	case event.ConversationID == "":
		return ErrMissingConversation
	case len(event.MessageIDs) == 0:
		return ErrNoMessageIDs
	}
	return nil
}
