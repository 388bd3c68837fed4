// Package store persists interview sessions, their question/answer history
// and uploaded résumés.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a session or résumé does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTransientIO wraps storage failures the caller may treat as a no-op.
	ErrTransientIO = errors.New("transient storage failure")
)

// PhaseCareerCoach tags entries written during the career-coach phase.
const PhaseCareerCoach = "career_coach"

// QAEntry is one persisted question/answer pair
type QAEntry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
	PhaseTag  string    `json:"phaseTag,omitempty"`
}

// Session is one interview with its ordered history
type Session struct {
	UserID        string    `json:"id"`
	SessionNumber string    `json:"number_session"`
	Path          string    `json:"path"`
	CreatedAt     time.Time `json:"createdAt"`
	History       []QAEntry `json:"q_and_a"`
}

// Resume is the current résumé of a session
type Resume struct {
	UserID        string
	SessionNumber string
	StorageID     string
	ContentType   string
	Data          []byte
	UploadedAt    time.Time
}

// Repository is the durable session store. History is append-only.
type Repository interface {
	// AppendEntry appends to the session history, creating the session
	// with the given path on first write.
	AppendEntry(ctx context.Context, userID, sessionNumber, path string, entry QAEntry) error
	GetSession(ctx context.Context, userID, sessionNumber string) (*Session, error)
	// ListSessions returns the user's sessions oldest first.
	ListSessions(ctx context.Context, userID string) ([]Session, error)
	// SaveResume stores the résumé, replacing any previous one for the
	// session, and returns its storage ID.
	SaveResume(ctx context.Context, resume Resume) (string, error)
	GetResume(ctx context.Context, userID, sessionNumber string) (*Resume, error)
	Close() error
}

func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTransientIO, err)
}
