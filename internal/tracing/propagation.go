package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext adds the tracing fields present in ctx to baseLogger
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)
	zctx := baseLogger.With()

	if tc.TraceID != "" {
		zctx = zctx.Str("trace_id", tc.TraceID)
	}
	if tc.TurnID != "" {
		zctx = zctx.Str("turn_id", tc.TurnID)
	}
	if tc.UserID != "" {
		zctx = zctx.Str("user_id", tc.UserID)
	}
	if tc.SessionKey != "" {
		zctx = zctx.Str("session_key", tc.SessionKey)
	}
	if tc.RequestID != "" {
		zctx = zctx.Str("request_id", tc.RequestID)
	}

	return zctx.Logger()
}

// MergeContext copies tracing values from source that target lacks
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.TurnID != "" && GetTurnID(target) == "" {
		target = WithTurnID(target, tc.TurnID)
	}
	if tc.UserID != "" && GetUserID(target) == "" {
		target = WithUserID(target, tc.UserID)
	}
	if tc.SessionKey != "" && GetSessionKey(target) == "" {
		target = WithSessionKey(target, tc.SessionKey)
	}
	if tc.RequestID != "" && GetRequestID(target) == "" {
		target = WithRequestID(target, tc.RequestID)
	}

	return target
}
