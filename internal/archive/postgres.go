package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the utterances table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS utterances (
    id              TEXT PRIMARY KEY,
    session_id      TEXT NOT NULL,
    source_text     TEXT NOT NULL,
    translated_text TEXT NOT NULL DEFAULT '',
    source_lang     TEXT NOT NULL,
    target_lang     TEXT NOT NULL,
    confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
    audio_ms        BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_utterances_session ON utterances(session_id, created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] that uses the given connection
// or pool. The caller is responsible for calling [PostgresStore.Migrate] to
// ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// utterances table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// Save inserts one utterance, assigning ID and CreatedAt if unset.
func (s *PostgresStore) Save(ctx context.Context, u *Utterance) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO utterances (
			id, session_id, source_text, translated_text,
			source_lang, target_lang, confidence, audio_ms
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query,
		u.ID, u.SessionID, u.SourceText, u.TranslatedText,
		u.SourceLang, u.TargetLang, u.Confidence, u.AudioDuration.Milliseconds(),
	).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("archive: save: %w", err)
	}
	return nil
}

// Recent returns up to limit utterances for the session, newest first.
func (s *PostgresStore) Recent(ctx context.Context, sessionID string, limit int) ([]Utterance, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, session_id, source_text, translated_text,
		       source_lang, target_lang, confidence, audio_ms, created_at
		FROM utterances
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: recent: %w", err)
	}
	defer rows.Close()

	var out []Utterance
	for rows.Next() {
		var u Utterance
		var audioMs int64
		if err := rows.Scan(
			&u.ID, &u.SessionID, &u.SourceText, &u.TranslatedText,
			&u.SourceLang, &u.TargetLang, &u.Confidence, &audioMs, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("archive: scan utterance: %w", err)
		}
		u.AudioDuration = time.Duration(audioMs) * time.Millisecond
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate utterances: %w", err)
	}
	return out, nil
}
