// Package history records completed exchanges and reads them back for the
// read API.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/rapport/pkg/encryption"
	"github.com/papercomputeco/rapport/pkg/storage"
)

// ErrMissingUser is returned by List without a user. Reads are always
// scoped to one user so an unscoped query can never decrypt another
// user's rows.
var ErrMissingUser = errors.New("history: user required")

// Metadata identifies who answered an exchange.
type Metadata struct {
	PersonaID  string `json:"persona_id"`
	ProviderID string `json:"provider_id"`
	ModelID    string `json:"model_id"`
}

// Pair is one exchange: a user message and the reply it produced.
type Pair struct {
	ConversationID string
	UserID         string
	UserText       string
	AssistantText  string
	Metadata       Metadata
}

// Saved describes a persisted Pair without its content.
type Saved struct {
	UserMessageID      string
	AssistantMessageID string
	Encrypted          bool
}

// Message is a decrypted stored message.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Metadata
	CreatedAt time.Time `json:"created_at"`
}

// Writer persists exchanges, encrypting content when the codec is enabled
// and the pair has a user.
type Writer struct {
	store  storage.MessageStore
	codec  *encryption.Codec
	logger *slog.Logger
}

// NewWriter creates a history writer.
func NewWriter(store storage.MessageStore, codec *encryption.Codec, logger *slog.Logger) *Writer {
	return &Writer{
		store:  store,
		codec:  codec,
		logger: logger,
	}
}

// Save writes both halves of pair in a single store call.
func (w *Writer) Save(ctx context.Context, pair Pair) (Saved, error) {
	userText, encrypted, err := w.codec.Seal(pair.UserText, pair.UserID)
	if err != nil {
		return Saved{}, fmt.Errorf("encrypting user message: %w", err)
	}
	assistantText, _, err := w.codec.Seal(pair.AssistantText, pair.UserID)
	if err != nil {
		return Saved{}, fmt.Errorf("encrypting assistant message: %w", err)
	}

	base := storage.MessageRecord{
		ConversationID: pair.ConversationID,
		UserID:         pair.UserID,
		PersonaID:      pair.Metadata.PersonaID,
		ProviderID:     pair.Metadata.ProviderID,
		ModelID:        pair.Metadata.ModelID,
		Encrypted:      encrypted,
	}
	user, assistant := base, base
	user.Content = userText
	assistant.Content = assistantText

	if err := w.store.SaveExchange(ctx, &user, &assistant); err != nil {
		return Saved{}, fmt.Errorf("saving exchange: %w", err)
	}

	w.logger.Debug("exchange persisted",
		"conversation_id", pair.ConversationID,
		"persona_id", pair.Metadata.PersonaID,
		"encrypted", encrypted,
	)
	return Saved{
		UserMessageID:      user.ID,
		AssistantMessageID: assistant.ID,
		Encrypted:          encrypted,
	}, nil
}

// List returns up to limit of the conversation's most recent messages,
// oldest first, decrypted for userID.
func (w *Writer) List(ctx context.Context, conversationID, userID string, limit int) ([]Message, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	records, err := w.store.ListMessages(ctx, storage.MessageQuery{
		ConversationID: conversationID,
		UserID:         userID,
		Limit:          limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	out := make([]Message, 0, len(records))
	for _, rec := range records {
		out = append(out, Message{
			ID:             rec.ID,
			ConversationID: rec.ConversationID,
			Role:           rec.Role,
			Content:        w.codec.Decode(rec.Content, rec.Encrypted, userID),
			Metadata: Metadata{
				PersonaID:  rec.PersonaID,
				ProviderID: rec.ProviderID,
				ModelID:    rec.ModelID,
			},
			CreatedAt: rec.CreatedAt,
		})
	}
	return out, nil
}
