// Package statestore holds transient per-session interview state with TTL
// eviction. The memory driver does not survive a restart; the redis driver does.
package statestore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidDriver = errors.New("invalid state store driver")
	ErrInvalidConfig = errors.New("invalid state store configuration")
)

// QuestionKind tells what produced a flow entry
type QuestionKind string

const (
	KindPrimary       QuestionKind = "primary"
	KindLogistics     QuestionKind = "logistics"
	KindJobSuggestion QuestionKind = "job_suggestion"
	KindJobConclusion QuestionKind = "job_conclusion"
)

// QuestionRecord is one entry of an interview flow
type QuestionRecord struct {
	Question string       `json:"question"`
	Kind     QuestionKind `json:"kind"`
}

// SessionState is the in-progress interview for one session key.
// 0 <= Step <= len(Flow) holds between turns; Flow only grows.
type SessionState struct {
	Step         int              `json:"step"`
	Answers      []string         `json:"answers"`
	Flow         []QuestionRecord `json:"flow"`
	PrimaryCount int              `json:"primary_count"`
	Suggested    bool             `json:"suggested"`
	Concluded    bool             `json:"concluded"`
	Path         string           `json:"path"`
}

// Current returns the question at Step, or false when Step is past the flow
func (s *SessionState) Current() (QuestionRecord, bool) {
	if s.Step < 0 || s.Step >= len(s.Flow) {
		return QuestionRecord{}, false
	}
	return s.Flow[s.Step], true
}

// Splice inserts q at Step
func (s *SessionState) Splice(q QuestionRecord) {
	s.Flow = append(s.Flow, QuestionRecord{})
	copy(s.Flow[s.Step+1:], s.Flow[s.Step:])
	s.Flow[s.Step] = q
}

// Store persists SessionState by key. Reads and writes refresh the TTL.
type Store interface {
	// Get returns nil, nil when the key is absent or expired.
	Get(ctx context.Context, key string) (*SessionState, error)
	Put(ctx context.Context, key string, state *SessionState) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Driver names
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

const defaultTTL = 2 * time.Hour
