package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "ikigai.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndGetSession(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendEntry(ctx, "u1", "1", "completed", QAEntry{Question: "Q1", Answer: "A1", Timestamp: base}))
	require.NoError(t, s.AppendEntry(ctx, "u1", "1", "simplified", QAEntry{Question: "Q2", Answer: "A2", Timestamp: base}))
	require.NoError(t, s.AppendEntry(ctx, "u1", "1", "completed", QAEntry{Question: "Plan", Answer: "go", PhaseTag: PhaseCareerCoach}))

	session, err := s.GetSession(ctx, "u1", "1")
	require.NoError(t, err)

	assert.Equal(t, "completed", session.Path, "path is fixed by the first write")
	assert.Equal(t, base, session.CreatedAt)
	require.Len(t, session.History, 3)
	assert.Equal(t, "Q1", session.History[0].Question)
	assert.Equal(t, "Q2", session.History[1].Question, "same timestamp keeps write order")
	assert.Equal(t, PhaseCareerCoach, session.History[2].PhaseTag)
	assert.False(t, session.History[2].Timestamp.IsZero())
}

func TestGetSessionIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, s.AppendEntry(ctx, "u1", "7", "completed", QAEntry{Question: q, Answer: q}))
	}

	first, err := s.GetSession(ctx, "u1", "7")
	require.NoError(t, err)
	second, err := s.GetSession(ctx, "u1", "7")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGetSessionNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetSession(context.Background(), "nobody", "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSessionsOldestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendEntry(ctx, "u1", "b", "simplified", QAEntry{Question: "q", Answer: "a", Timestamp: t0.Add(time.Hour)}))
	require.NoError(t, s.AppendEntry(ctx, "u1", "a", "completed", QAEntry{Question: "q", Answer: "a", Timestamp: t0}))
	require.NoError(t, s.AppendEntry(ctx, "u2", "c", "completed", QAEntry{Question: "q", Answer: "a", Timestamp: t0}))

	sessions, err := s.ListSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].SessionNumber)
	assert.Equal(t, "b", sessions[1].SessionNumber)
	assert.Len(t, sessions[0].History, 1)

	empty, err := s.ListSessions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResumeUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id1, err := s.SaveResume(ctx, Resume{UserID: "u1", SessionNumber: "1", Data: []byte("v1")})
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := s.SaveResume(ctx, Resume{UserID: "u1", SessionNumber: "1", Data: []byte("v2"), ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	r, err := s.GetResume(ctx, "u1", "1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), r.Data)
	assert.Equal(t, "text/plain", r.ContentType)
	assert.Equal(t, id1, r.StorageID)

	_, err = s.GetResume(ctx, "u1", "2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClosedStoreReportsTransientIO(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.AppendEntry(context.Background(), "u", "1", "completed", QAEntry{Question: "q", Answer: "a"})
	assert.ErrorIs(t, err, ErrTransientIO)
}
