package tutor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/socratic/errors"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	user_id    INTEGER PRIMARY KEY,
	state      TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
`

// SQLiteStore keeps one row per user holding the session as JSON.
type SQLiteStore struct {
	db   *sqlx.DB
	path string
}

type sessionRow struct {
	UserID    int64  `db:"user_id"`
	State     string `db:"state"`
	Data      string `db:"data"`
	UpdatedAt int64  `db:"updated_at"`
}

// OpenSQLiteStore opens or creates the session database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSessionStore, "failed to create database directory").
			WithDetail("path", path)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSessionStore, "failed to open database").
			WithDetail("path", path)
	}
	// A single writer avoids SQLITE_BUSY between workers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeSessionStore, "failed to ping database").
			WithDetail("path", path)
	}

	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeSessionStore, "failed to create schema")
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, userID int64) (*Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `SELECT user_id, state, data, updated_at FROM sessions WHERE user_id = ?`, userID)
	if err == sql.ErrNoRows {
		sess := NewSession(userID)
		if err := s.Save(ctx, sess); err != nil {
			return nil, err
		}
		return sess, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSessionStore, "failed to load session").
			WithDetail("user_id", userID)
	}

	var sess Session
	if err := json.Unmarshal([]byte(row.Data), &sess); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSessionStore, "failed to decode session").
			WithDetail("user_id", userID)
	}
	sess.UserID = row.UserID
	if !sess.State.Valid() {
		return nil, errors.New(errors.ErrCodeSessionStore, fmt.Sprintf("unknown session state %q", sess.State)).
			WithDetail("user_id", userID)
	}
	return &sess, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSessionStore, "failed to encode session").
			WithDetail("user_id", sess.UserID)
	}

	row := sessionRow{
		UserID:    sess.UserID,
		State:     string(sess.State),
		Data:      string(data),
		UpdatedAt: sess.UpdatedAt.Unix(),
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO sessions (user_id, state, data, updated_at)
		VALUES (:user_id, :state, :data, :updated_at)
		ON CONFLICT(user_id) DO UPDATE SET
			state = excluded.state,
			data = excluded.data,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSessionStore, "failed to save session").
			WithDetail("user_id", sess.UserID)
	}
	return nil
}
