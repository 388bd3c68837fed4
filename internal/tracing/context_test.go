package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTurnContext(t *testing.T) {
	t.Run("generates trace and turn ids", func(t *testing.T) {
		ctx := NewTurnContext(context.Background(), "u1", "u1:3")

		assert.NotEmpty(t, GetTraceID(ctx))
		assert.Len(t, GetTurnID(ctx), 12)
		assert.Equal(t, "u1", GetUserID(ctx))
		assert.Equal(t, "u1:3", GetSessionKey(ctx))
	})

	t.Run("keeps existing trace id", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-1")
		ctx = NewTurnContext(ctx, "u1", "u1:3")

		assert.Equal(t, "trace-1", GetTraceID(ctx))
	})

	t.Run("turn ids are unique", func(t *testing.T) {
		assert.NotEqual(t, NewTurnID(), NewTurnID())
	})
}

func TestContextRoundTrip(t *testing.T) {
	tc := &TraceContext{TraceID: "t", TurnID: "turn", UserID: "u", SessionKey: "u:1", RequestID: "r"}

	got := FromContext(NewContext(context.Background(), tc))

	assert.Equal(t, tc, got)
}

func TestGettersOnEmptyContext(t *testing.T) {
	tc := FromContext(context.Background())
	assert.Equal(t, &TraceContext{}, tc)
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := NewTurnContext(WithRequestID(context.Background(), "req-9"), "u7", "u7:2")
	LoggerFromContext(ctx, base).Info().Msg("turn")

	out := buf.String()
	assert.Contains(t, out, `"user_id":"u7"`)
	assert.Contains(t, out, `"session_key":"u7:2"`)
	assert.Contains(t, out, `"request_id":"req-9"`)
	assert.Contains(t, out, `"trace_id":"`)
}

func TestMergeContext(t *testing.T) {
	source := NewContext(context.Background(), &TraceContext{TraceID: "src", UserID: "u1"})
	target := WithTraceID(context.Background(), "dst")

	merged := MergeContext(target, source)

	assert.Equal(t, "dst", GetTraceID(merged))
	assert.Equal(t, "u1", GetUserID(merged))
}

func TestStartSpanBackfillsTraceID(t *testing.T) {
	require.NoError(t, InitOpenTelemetry("ikigai-test", "dev"))

	ctx, span := StartSpan(context.Background(), "test", "op")
	defer span.End()

	assert.NotEmpty(t, GetTraceID(ctx))
	assert.True(t, span.SpanContext().IsValid())
}
