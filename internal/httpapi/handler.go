// Package httpapi is the HTTP and WebSocket surface of the interview service.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/harun/ikigai/pkg/orchestrator"
	"github.com/harun/ikigai/pkg/store"
	"github.com/harun/ikigai/pkg/toolgateway"
)

// maxBodyBytes bounds request bodies; résumé uploads dominate.
const maxBodyBytes = 10 << 20

// Turner runs one conversation turn
type Turner interface {
	RunTurn(ctx context.Context, req orchestrator.TurnRequest) (orchestrator.TurnResponse, error)
}

// Sessions reads and writes durable session data through the tool gateway
type Sessions interface {
	GetSessionData(ctx context.Context, userID, sessionNumber string) (*toolgateway.SessionView, error)
	GetAllUserSessions(ctx context.Context, userID string) ([]store.Session, error)
	SaveResume(ctx context.Context, userID, sessionNumber string, document []byte, contentType string) (string, error)
}

// Handler serves the REST endpoints
type Handler struct {
	turns    Turner
	sessions Sessions
	logger   zerolog.Logger
}

// NewHandler creates a Handler
func NewHandler(turns Turner, sessions Sessions, logger zerolog.Logger) *Handler {
	return &Handler{
		turns:    turns,
		sessions: sessions,
		logger:   logger.With().Str("component", "httpapi").Logger(),
	}
}

// RegisterRoutes mounts the REST routes on r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chatbot", h.Chatbot)
		r.Get("/sessions", h.ListSessions)
		r.Get("/sessions/{sessionId}/messages", h.SessionMessages)
		r.Post("/resume", h.UploadResume)
	})
}

// ChatRequest is the chatbot frame, shared by POST /api/chatbot and /ws/chat
type ChatRequest struct {
	UserInput string `json:"userInput"`
	UserID    string `json:"userId"`
	Session   string `json:"session"`
	Path      string `json:"path"`
	Stage     string `json:"stage,omitempty"`
}

// ChatResponse is the chatbot response envelope
type ChatResponse struct {
	Success  bool                       `json:"success"`
	Response *orchestrator.TurnResponse `json:"response,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

func (c ChatRequest) validate() error {
	if strings.TrimSpace(c.UserID) == "" || strings.TrimSpace(c.Session) == "" {
		return errors.New("userId and session are required")
	}
	return nil
}

func (c ChatRequest) turnRequest() orchestrator.TurnRequest {
	path := orchestrator.Path(c.Path)
	if path != orchestrator.PathSimplified {
		path = orchestrator.PathCompleted
	}
	return orchestrator.TurnRequest{
		UserInput:     c.UserInput,
		UserID:        c.UserID,
		SessionNumber: c.Session,
		Path:          path,
		Stage:         c.Stage,
	}
}

// runChat executes one chat frame and returns the status and envelope to send
func (h *Handler) runChat(ctx context.Context, req ChatRequest) (int, ChatResponse) {
	if err := req.validate(); err != nil {
		return http.StatusBadRequest, ChatResponse{Error: err.Error()}
	}

	resp, err := h.turns.RunTurn(ctx, req.turnRequest())
	if err != nil {
		status, msg := h.classify(err)
		h.logger.Error().Err(err).
			Str("user_id", req.UserID).
			Str("session", req.Session).
			Msg("Chat turn failed")
		return status, ChatResponse{Error: msg}
	}
	return http.StatusOK, ChatResponse{Success: true, Response: &resp}
}

// Chatbot handles POST /api/chatbot
func (h *Handler) Chatbot(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, resp := h.runChat(requestContext(r), req)
	JSON(w, status, resp)
}

// ListSessions handles GET /api/sessions?uid=
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		Error(w, http.StatusBadRequest, "Missing UID")
		return
	}

	sessions, err := h.sessions.GetAllUserSessions(r.Context(), uid)
	if err != nil {
		h.fail(w, err, "Failed to fetch sessions")
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// SessionData is one session's answered exchanges
type SessionData struct {
	ID            string          `json:"id"`
	NumberSession string          `json:"number_session"`
	QAndA         []store.QAEntry `json:"q_and_a"`
}

// SessionMessages handles GET /api/sessions/{sessionId}/messages?uid=
func (h *Handler) SessionMessages(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	sessionID := chi.URLParam(r, "sessionId")
	if uid == "" || sessionID == "" {
		Error(w, http.StatusBadRequest, "Missing uid or sessionId")
		return
	}

	view, err := h.sessions.GetSessionData(r.Context(), uid, sessionID)
	if err != nil {
		h.fail(w, err, "Failed to fetch session data")
		return
	}
	if view == nil {
		JSON(w, http.StatusNotFound, map[string]interface{}{
			"error":   "Session not found",
			"q_and_a": []store.QAEntry{},
		})
		return
	}

	data := SessionData{ID: uid, NumberSession: sessionID, QAndA: []store.QAEntry{}}
	for _, entry := range view.QAndA {
		if entry.Question == "" || entry.Answer == "" {
			continue
		}
		data.QAndA = append(data.QAndA, entry)
	}
	JSON(w, http.StatusOK, data)
}

// UploadRequest carries a base64-encoded PDF résumé
type UploadRequest struct {
	ID        string `json:"id"`
	Session   string `json:"session"`
	Base64PDF string `json:"base64pdf"`
}

// UploadResume handles POST /api/resume
func (h *Handler) UploadResume(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" || req.Session == "" {
		JSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "id and session are required"})
		return
	}

	doc, err := base64.StdEncoding.DecodeString(req.Base64PDF)
	if err != nil || len(doc) == 0 {
		JSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "base64pdf is not a valid document"})
		return
	}

	storageID, err := h.sessions.SaveResume(r.Context(), req.ID, req.Session, doc, "application/pdf")
	if err != nil {
		h.fail(w, err, "Failed to store résumé")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "storage_id": storageID})
}

// classify maps an error to a status and a message safe to show clients
func (h *Handler) classify(err error) (int, string) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidArgument), errors.Is(err, toolgateway.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, toolgateway.ErrTransientIO):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string) {
	status, detail := h.classify(err)
	if status == http.StatusBadRequest {
		msg = detail
	}
	h.logger.Error().Err(err).Int("status", status).Msg(msg)
	JSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		JSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid JSON body"})
		return false
	}
	return true
}

// JSON writes v with status
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
