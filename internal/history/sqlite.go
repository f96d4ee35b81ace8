package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// OpenSQLite opens (or creates) the history database at path.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			metadata TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON chat_sessions(user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			extra TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, id)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create history schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Identify implements Store.
func (s *SQLiteStore) Identify(ctx context.Context, email string, newSession bool, metadata map[string]string) (*Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmailRequired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, email).Scan(&userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		userID = uuid.NewString()
		var meta []byte
		if len(metadata) > 0 {
			if meta, err = json.Marshal(metadata); err != nil {
				return nil, fmt.Errorf("failed to marshal user metadata: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, metadata, created_at) VALUES (?, ?, ?, ?)`,
			userID, email, nullable(meta), s.now().UnixNano()); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	id := &Identity{UserID: userID, Email: email}
	if !newSession {
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM chat_sessions WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC LIMIT 1`,
			userID).Scan(&id.SessionID)
		switch {
		case err == nil:
			id.Reused = true
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("failed to look up session: %w", err)
		}
	}

	if id.SessionID == "" {
		id.SessionID = uuid.NewString()
		now := s.now().UnixNano()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_sessions (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			id.SessionID, userID, now, now); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit identify: %w", err)
	}
	return id, nil
}

// Record implements Store.
func (s *SQLiteStore) Record(ctx context.Context, sessionID, userID string, msgs ...Message) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UnixNano()
	var owner any
	if userID != "" {
		owner = userID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			user_id = COALESCE(chat_sessions.user_id, excluded.user_id)`,
		sessionID, owner, now, now); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	for _, msg := range msgs {
		var extra []byte
		if msg.Extra != nil {
			if extra, err = json.Marshal(msg.Extra); err != nil {
				return fmt.Errorf("failed to marshal message extra: %w", err)
			}
		}
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = s.now()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (session_id, role, content, extra, created_at) VALUES (?, ?, ?, ?, ?)`,
			sessionID, string(msg.Role), msg.Content, nullable(extra), ts.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// History implements Store. An unknown session has no messages.
func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, extra, created_at FROM chat_messages WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			msg   Message
			role  string
			extra sql.NullString
			ts    int64
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &extra, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.SessionID = sessionID
		msg.Role = Role(role)
		msg.Timestamp = time.Unix(0, ts).UTC()
		if extra.Valid && extra.String != "" {
			msg.Extra = &Extra{}
			if err := json.Unmarshal([]byte(extra.String), msg.Extra); err != nil {
				return nil, fmt.Errorf("failed to decode message extra: %w", err)
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
