package eventstream

import "errors"

var (
	// ErrNilExchangeEvent indicates a nil event payload was provided to a publisher.
	ErrNilExchangeEvent = errors.New("nil exchange event")

	// ErrMissingConversation is returned for events without a conversation ID,
	// which partitioned backends use as the ordering key.
	ErrMissingConversation = errors.New("exchange event has no conversation id")

	// ErrNoMessageIDs is returned for events that reference no stored messages.
	ErrNoMessageIDs = errors.New("exchange event has no message ids")
)
