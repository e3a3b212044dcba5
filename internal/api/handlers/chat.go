// Package handlers implements the HTTP endpoints for the conversation
// service and the clinic data API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-concierge/internal/agent"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// ChatHandler serves the conversational endpoint.
type ChatHandler struct {
	dispatcher *agent.Dispatcher
	logger     *logging.Logger
}

func NewChatHandler(dispatcher *agent.Dispatcher, logger *logging.Logger) *ChatHandler {
	if dispatcher == nil {
		panic("handlers: dispatcher is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{dispatcher: dispatcher, logger: logger}
}

// ChatRequest is the body of POST /api/chat. SessionID is optional on the
// first turn; the response echoes the one to use from then on.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	// ReferenceDate overrides "today" for relative date resolution,
	// YYYY-MM-DD. Intended for demos and tests.
	ReferenceDate string `json:"reference_date,omitempty"`
}

// ChatResponse is the reply for one turn.
type ChatResponse struct {
	SessionID string           `json:"session_id"`
	Message   string           `json:"message"`
	Outcome   agent.Outcome    `json:"outcome"`
	Intent    agent.IntentKind `json:"intent"`
}

// Handle processes POST /api/chat.
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	var refDate time.Time
	if req.ReferenceDate != "" {
		d, err := time.ParseInLocation("2006-01-02", req.ReferenceDate, time.Local)
		if err != nil {
			http.Error(w, "reference_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		refDate = d
	}

	res, err := h.dispatcher.HandleTurn(r.Context(), agent.TurnRequest{
		SessionKey:    req.SessionID,
		Utterance:     req.Message,
		ReferenceDate: refDate,
	})
	if err != nil {
		h.logger.Error("chat turn failed", "session_id", req.SessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID: req.SessionID,
		Message:   res.Message,
		Outcome:   res.Outcome,
		Intent:    res.Intent,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
