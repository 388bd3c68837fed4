package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/ikigai/internal/tracing"
)

const (
	wsWriteWait  = 10 * time.Second
	wsReadLimit  = 64 << 10
	wsTurnBudget = 5 * time.Minute
)

// ChatSocket serves chatbot frames over a WebSocket. Each text frame is a
// ChatRequest and is answered with a ChatResponse. Turns of one connection
// run concurrently up to the limiter, ordering per session is kept by the
// orchestrator lanes.
type ChatSocket struct {
	handler  *Handler
	upgrader websocket.Upgrader
	limits   func() *ConnLimiter
	logger   zerolog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewChatSocket creates a ChatSocket. allowedOrigins empty allows any origin.
func NewChatSocket(handler *Handler, allowedOrigins []string, limits func() *ConnLimiter) *ChatSocket {
	if limits == nil {
		limits = func() *ConnLimiter { return NewConnLimiter(0, 0, 0) }
	}
	return &ChatSocket{
		handler: handler,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		limits: limits,
		logger: handler.logger.With().Str("transport", "websocket").Logger(),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type wsConn struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

// ServeHTTP upgrades the request and serves frames until the peer disconnects
func (s *ChatSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	id, _ := gonanoid.New()
	client := &wsConn{id: id, conn: conn}
	logger := s.logger.With().Str("conn_id", id).Str("ip", r.RemoteAddr).Logger()
	logger.Info().Msg("Chat client connected")

	s.serve(requestContext(r), client, s.limits(), logger)
}

// serve reads frames until the peer disconnects. Turns outlive the upgrade
// request, so only its tracing values are carried over.
func (s *ChatSocket) serve(parent context.Context, client *wsConn, limiter *ConnLimiter, logger zerolog.Logger) {
	ctx, cancel := context.WithCancel(tracing.MergeContext(context.Background(), parent))
	var turns sync.WaitGroup
	defer func() {
		cancel()
		turns.Wait()
		client.conn.Close()
		logger.Info().Msg("Chat client disconnected")
	}()

	client.conn.SetReadLimit(wsReadLimit)
	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error().Err(err).Msg("WebSocket error")
			}
			return
		}

		var req ChatRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.reply(client, logger, ChatResponse{Error: "invalid JSON frame"})
			continue
		}

		if err := limiter.Acquire(); err != nil {
			s.reply(client, logger, ChatResponse{Error: err.Error()})
			continue
		}

		turns.Add(1)
		s.wg.Add(1)
		go func(req ChatRequest) {
			defer s.wg.Done()
			defer turns.Done()
			defer limiter.Release()

			turnCtx, turnCancel := context.WithTimeout(ctx, wsTurnBudget)
			defer turnCancel()
			_, resp := s.handler.runChat(turnCtx, req)
			s.reply(client, logger, resp)
		}(req)
	}
}

func (s *ChatSocket) reply(client *wsConn, logger zerolog.Logger, resp ChatResponse) {
	if err := client.writeJSON(resp); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		logger.Warn().Err(err).Msg("Failed to send chat response")
	}
}

// Shutdown refuses new connections and waits for running turns until ctx is done
func (s *ChatSocket) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
