package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/ikigai/pkg/jobsearch"
	"github.com/harun/ikigai/pkg/store"
	"github.com/harun/ikigai/pkg/toolgateway"
)

type stubProfession struct{}

func (stubProfession) InferProfession(ctx context.Context, resumeText string) (string, error) {
	return "Data Analyst", nil
}

type stubJobs struct{}

func (stubJobs) Search(ctx context.Context, q jobsearch.Query) ([]jobsearch.Posting, error) {
	return []jobsearch.Posting{{Title: q.Skills + " role", Company: "Acme", Location: q.Location}}, nil
}

func setupTestSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "mcp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	exec := toolgateway.New(zerolog.Nop(), 0)
	require.NoError(t, toolgateway.RegisterCatalogue(exec, toolgateway.Deps{
		Store:      repo,
		Profession: stubProfession{},
		Jobs:       stubJobs{},
	}))

	srv, err := NewServer(DefaultConfig(), exec)
	require.NoError(t, err)

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func callText(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, res.IsError
}

func TestNewServer_RequiresExecutor(t *testing.T) {
	_, err := NewServer(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestNewServer_MissingCatalogueTool(t *testing.T) {
	_, err := NewServer(DefaultConfig(), toolgateway.New(zerolog.Nop(), 0))
	assert.ErrorIs(t, err, toolgateway.ErrToolNotFound)
}

func TestListTools(t *testing.T) {
	session := setupTestSession(t)

	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := []string{}
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		toolgateway.ToolSaveSessionData,
		toolgateway.ToolGetSessionData,
		toolgateway.ToolGetAllUserSessions,
		toolgateway.ToolSaveResume,
		toolgateway.ToolGetResume,
		toolgateway.ToolInferSkill,
		toolgateway.ToolSearchJobs,
	}, names)
}

func TestSessionToolsRoundTrip(t *testing.T) {
	session := setupTestSession(t)

	text, isErr := callText(t, session, toolgateway.ToolSaveSessionData, map[string]any{
		"id":             "u1",
		"number_session": "1",
		"question":       "What do you love doing?",
		"answer":         "Painting",
		"path":           "completed",
	})
	require.False(t, isErr, text)

	var ack messageOutput
	require.NoError(t, json.Unmarshal([]byte(text), &ack))
	assert.Equal(t, "Session data saved", ack.Message)

	text, isErr = callText(t, session, toolgateway.ToolGetSessionData, map[string]any{
		"id":             "u1",
		"number_session": "1",
	})
	require.False(t, isErr, text)

	var got sessionOutput
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	require.True(t, got.Success)
	require.NotNil(t, got.Session)
	require.Len(t, got.Session.QAndA, 1)
	assert.Equal(t, "Painting", got.Session.QAndA[0].Answer)

	text, isErr = callText(t, session, toolgateway.ToolGetAllUserSessions, map[string]any{"id": "u1"})
	require.False(t, isErr, text)

	var all sessionsOutput
	require.NoError(t, json.Unmarshal([]byte(text), &all))
	require.Len(t, all.Sessions, 1)
	assert.Equal(t, "completed", all.Sessions[0].Path)
	assert.NotEmpty(t, all.Sessions[0].CreatedAt)
}

func TestUnknownSessionIsNotAnError(t *testing.T) {
	session := setupTestSession(t)

	text, isErr := callText(t, session, toolgateway.ToolGetSessionData, map[string]any{
		"id":             "nobody",
		"number_session": "9",
	})
	require.False(t, isErr, text)

	var got sessionOutput
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.False(t, got.Success)
	assert.Nil(t, got.Session)
}

func TestSearchJobsTool(t *testing.T) {
	session := setupTestSession(t)

	text, isErr := callText(t, session, toolgateway.ToolSearchJobs, map[string]any{
		"location": "Milano",
		"skills":   "Designer",
	})
	require.False(t, isErr, text)

	var got postingsOutput
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	require.Len(t, got.Postings, 1)
	assert.Equal(t, "Designer role", got.Postings[0].Title)
	assert.Equal(t, "Milano", got.Postings[0].Location)
}

func TestSaveResumeRejectsBadDocument(t *testing.T) {
	session := setupTestSession(t)

	_, isErr := callText(t, session, toolgateway.ToolSaveResume, map[string]any{
		"id":       "u1",
		"session":  "1",
		"document": "%%% not base64 %%%",
	})
	assert.True(t, isErr)
}
