// Package sqlite provides a SQLite-backed conversation store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pdfrag/internal/conversation"
	"pdfrag/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT    NOT NULL,
	role       TEXT    NOT NULL,
	content    TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS turns_session_id ON turns (session_id, id);
`

// Store persists turns in a single table keyed by session.
type Store struct {
	db *sql.DB
}

// NewStore opens the database at dbPath, creating the schema if needed.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM turns WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var (
			t    domain.Turn
			role string
			ts   int64
		)
		if err := rows.Scan(&role, &t.Content, &ts); err != nil {
			return nil, err
		}
		t.Role = domain.Role(role)
		t.Timestamp = time.Unix(0, ts).UTC()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *Store) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("unknown role %q", t.Role)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, string(t.Role), t.Content, t.Timestamp.UnixNano()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Sessions lists sessions most recently updated first.
func (s *Store) Sessions(ctx context.Context) ([]conversation.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MAX(created_at)
		FROM turns
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC, session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []conversation.Session
	for rows.Next() {
		var (
			sess conversation.Session
			ts   int64
		)
		if err := rows.Scan(&sess.ID, &sess.Turns, &ts); err != nil {
			return nil, err
		}
		sess.UpdatedAt = time.Unix(0, ts).UTC()
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }

var _ conversation.Store = (*Store)(nil)
