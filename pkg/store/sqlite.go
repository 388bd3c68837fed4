package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Repository on SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dbPath
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT NOT NULL,
		session_number TEXT NOT NULL,
		path TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_number)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at);

	CREATE TABLE IF NOT EXISTS qa_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		session_number TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		phase_tag TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (user_id, session_number) REFERENCES sessions(user_id, session_number)
	);
	CREATE INDEX IF NOT EXISTS idx_qa_session ON qa_entries(user_id, session_number, seq);

	CREATE TABLE IF NOT EXISTS resumes (
		user_id TEXT NOT NULL,
		session_number TEXT NOT NULL,
		storage_id TEXT NOT NULL UNIQUE,
		content_type TEXT NOT NULL,
		data BLOB NOT NULL,
		uploaded_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_number)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendEntry implements Repository
func (s *SQLiteStore) AppendEntry(ctx context.Context, userID, sessionNumber, path string, entry QAEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transient("begin append", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (user_id, session_number, path, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, session_number) DO NOTHING`,
		userID, sessionNumber, path, ts.UnixMilli()); err != nil {
		return transient("create session", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO qa_entries (user_id, session_number, question, answer, phase_tag, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, sessionNumber, entry.Question, entry.Answer, entry.PhaseTag, ts.UnixMilli()); err != nil {
		return transient("append entry", err)
	}

	if err := tx.Commit(); err != nil {
		return transient("commit append", err)
	}
	return nil
}

// GetSession implements Repository
func (s *SQLiteStore) GetSession(ctx context.Context, userID, sessionNumber string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, created_at FROM sessions
		WHERE user_id = ? AND session_number = ?`, userID, sessionNumber)

	session := Session{UserID: userID, SessionNumber: sessionNumber}
	var createdAt int64
	err := row.Scan(&session.Path, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transient("get session", err)
	}
	session.CreatedAt = time.UnixMilli(createdAt).UTC()

	history, err := s.history(ctx, userID, sessionNumber)
	if err != nil {
		return nil, err
	}
	session.History = history

	return &session, nil
}

func (s *SQLiteStore) history(ctx context.Context, userID, sessionNumber string) ([]QAEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, answer, phase_tag, created_at FROM qa_entries
		WHERE user_id = ? AND session_number = ?
		ORDER BY seq`, userID, sessionNumber)
	if err != nil {
		return nil, transient("query history", err)
	}
	defer rows.Close()

	history := []QAEntry{}
	for rows.Next() {
		var e QAEntry
		var ts int64
		if err := rows.Scan(&e.Question, &e.Answer, &e.PhaseTag, &ts); err != nil {
			return nil, transient("scan history", err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		history = append(history, e)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate history", err)
	}
	return history, nil
}

// ListSessions implements Repository
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_number, path, created_at FROM sessions
		WHERE user_id = ?
		ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, transient("list sessions", err)
	}

	sessions := []Session{}
	for rows.Next() {
		session := Session{UserID: userID}
		var createdAt int64
		if err := rows.Scan(&session.SessionNumber, &session.Path, &createdAt); err != nil {
			rows.Close()
			return nil, transient("scan session", err)
		}
		session.CreatedAt = time.UnixMilli(createdAt).UTC()
		sessions = append(sessions, session)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, transient("iterate sessions", err)
	}

	for i := range sessions {
		history, err := s.history(ctx, userID, sessions[i].SessionNumber)
		if err != nil {
			return nil, err
		}
		sessions[i].History = history
	}
	return sessions, nil
}

// SaveResume implements Repository. The storage ID survives replacement.
func (s *SQLiteStore) SaveResume(ctx context.Context, resume Resume) (string, error) {
	storageID, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate storage id: %w", err)
	}
	uploadedAt := resume.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	contentType := resume.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO resumes (user_id, session_number, storage_id, content_type, data, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_number) DO UPDATE SET
			content_type = excluded.content_type,
			data = excluded.data,
			uploaded_at = excluded.uploaded_at`,
		resume.UserID, resume.SessionNumber, storageID, contentType, resume.Data, uploadedAt.UnixMilli()); err != nil {
		return "", transient("save resume", err)
	}

	var id string
	if err := s.db.QueryRowContext(ctx, `
		SELECT storage_id FROM resumes WHERE user_id = ? AND session_number = ?`,
		resume.UserID, resume.SessionNumber).Scan(&id); err != nil {
		return "", transient("read storage id", err)
	}
	return id, nil
}

// GetResume implements Repository
func (s *SQLiteStore) GetResume(ctx context.Context, userID, sessionNumber string) (*Resume, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT storage_id, content_type, data, uploaded_at FROM resumes
		WHERE user_id = ? AND session_number = ?`, userID, sessionNumber)

	r := Resume{UserID: userID, SessionNumber: sessionNumber}
	var uploadedAt int64
	err := row.Scan(&r.StorageID, &r.ContentType, &r.Data, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transient("get resume", err)
	}
	r.UploadedAt = time.UnixMilli(uploadedAt).UTC()
	return &r, nil
}
