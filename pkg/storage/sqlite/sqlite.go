// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/rapport/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	user_id         TEXT NOT NULL DEFAULT '',
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	persona_id      TEXT NOT NULL DEFAULT '',
	provider_id     TEXT NOT NULL DEFAULT '',
	model_id        TEXT NOT NULL DEFAULT '',
	encrypted       INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_conversation ON messages (conversation_id, created_at, id);

CREATE TABLE IF NOT EXISTS memory_facts (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	persona_id  TEXT NOT NULL,
	fact        TEXT NOT NULL,
	category    TEXT NOT NULL,
	importance  INTEGER NOT NULL,
	source      TEXT NOT NULL,
	encrypted   INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS memory_facts_owner ON memory_facts (user_id, persona_id);
`

// Driver implements storage.Driver on a SQLite database.
type Driver struct {
	db  *sql.DB
	now func() time.Time
}

// NewDriver opens (creating if needed) the database at dbPath and applies
// the schema. dbPath can be a file path or ":memory:".
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is its own database.
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db, now: time.Now}, nil
}

// SaveExchange inserts both halves in one transaction.
func (d *Driver) SaveExchange(ctx context.Context, user, assistant *storage.MessageRecord) error {
	if err := storage.PrepareExchange(user, assistant, d.now()); err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin exchange: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const insert = `INSERT INTO messages
		(id, conversation_id, user_id, role, content, persona_id, provider_id, model_id, encrypted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, m := range []*storage.MessageRecord{user, assistant} {
		_, err := tx.ExecContext(ctx, insert,
			m.ID, m.ConversationID, m.UserID, m.Role, m.Content,
			m.PersonaID, m.ProviderID, m.ModelID, m.Encrypted, m.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("insert %s message: %w", m.Role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit exchange: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages oldest first.
func (d *Driver) ListMessages(ctx context.Context, query storage.MessageQuery) ([]*storage.MessageRecord, error) {
	q := `SELECT id, conversation_id, user_id, role, content, persona_id, provider_id, model_id, encrypted, created_at
		FROM messages WHERE conversation_id = ?`
	args := []any{query.ConversationID}
	if query.UserID != "" {
		q += " AND user_id = ?"
		args = append(args, query.UserID)
	}
	q += " ORDER BY created_at DESC, id DESC"
	if query.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*storage.MessageRecord
	for rows.Next() {
		var (
			m       storage.MessageRecord
			created int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content,
			&m.PersonaID, &m.ProviderID, &m.ModelID, &m.Encrypted, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = time.Unix(0, created)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	reverse(out)
	return out, nil
}

// ListFacts returns (userID, personaID)'s facts by importance then recency.
func (d *Driver) ListFacts(ctx context.Context, userID, personaID string) ([]*storage.FactRecord, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, user_id, persona_id, fact, category, importance, source, encrypted, created_at
		FROM memory_facts WHERE user_id = ? AND persona_id = ?
		ORDER BY importance DESC, created_at DESC`, userID, personaID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	out := []*storage.FactRecord{}
	for rows.Next() {
		var (
			f       storage.FactRecord
			created int64
		)
		if err := rows.Scan(&f.ID, &f.UserID, &f.PersonaID, &f.Fact, &f.Category,
			&f.Importance, &f.Source, &f.Encrypted, &created); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.CreatedAt = time.Unix(0, created)
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	return out, nil
}

// InsertFacts inserts all facts in one transaction.
func (d *Driver) InsertFacts(ctx context.Context, facts []*storage.FactRecord) error {
	now := d.now()
	for _, f := range facts {
		if err := storage.PrepareFact(f, now); err != nil {
			return err
		}
	}
	if len(facts) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin facts: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO memory_facts
		(id, user_id, persona_id, fact, category, importance, source, encrypted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fact insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range facts {
		if _, err := stmt.ExecContext(ctx, f.ID, f.UserID, f.PersonaID, f.Fact, f.Category,
			f.Importance, f.Source, f.Encrypted, f.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert fact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit facts: %w", err)
	}
	return nil
}

// DeleteFact removes one of userID's facts for personaID.
func (d *Driver) DeleteFact(ctx context.Context, userID, personaID, id string) error {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM memory_facts WHERE id = ? AND user_id = ? AND persona_id = ?`, id, userID, personaID)
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: id}
	}
	return nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

