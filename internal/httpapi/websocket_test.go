package httpapi

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harun/ikigai/internal/tracing"
	"github.com/harun/ikigai/pkg/orchestrator"
)

func dialChat(t *testing.T, api *testAPI) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(api.server.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) ChatResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var resp ChatResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestChatSocket_Turn(t *testing.T) {
	api := setupTestAPI(t)
	withRequestID := mock.MatchedBy(func(ctx context.Context) bool {
		return tracing.GetRequestID(ctx) != ""
	})
	api.turns.On("RunTurn", withRequestID, orchestrator.TurnRequest{
		UserInput:     "I like drawing",
		UserID:        "u1",
		SessionNumber: "1",
		Path:          orchestrator.PathCompleted,
	}).Return(orchestrator.TurnResponse{Message: "Next question"}, nil)

	conn := dialChat(t, api)
	require.NoError(t, conn.WriteJSON(ChatRequest{UserInput: "I like drawing", UserID: "u1", Session: "1", Path: "completed"}))

	resp := readResponse(t, conn)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Response)
	assert.Equal(t, "Next question", resp.Response.Message)
}

func TestChatSocket_BadFrames(t *testing.T) {
	api := setupTestAPI(t)
	conn := dialChat(t, api)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	resp := readResponse(t, conn)
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid JSON frame", resp.Error)

	require.NoError(t, conn.WriteJSON(ChatRequest{UserInput: "hi"}))
	resp = readResponse(t, conn)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "required")
}
