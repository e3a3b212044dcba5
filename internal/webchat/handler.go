// Package webchat serves the WebSocket chat transport for the appointment
// assistant.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-concierge/internal/agent"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
	"golang.org/x/net/websocket"
)

// Handler manages web chat connections. Each connection maps to one
// conversation session; turns run synchronously against the dispatcher.
type Handler struct {
	dispatcher *agent.Dispatcher
	logger     *logging.Logger
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string `json:"type"` // "message", "typing", "session", "pong", "error"
	Text      string `json:"text,omitempty"`
	Role      string `json:"role,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewHandler creates a web chat handler.
func NewHandler(dispatcher *agent.Dispatcher, logger *logging.Logger) *Handler {
	if dispatcher == nil {
		panic("webchat: dispatcher is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{dispatcher: dispatcher, logger: logger}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	// Tell the widget which session to resume with.
	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type:      "session",
		SessionID: sessionID,
	})

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})

		reply := h.runTurn(r.Context(), sessionID, msg.Text)
		if err := websocket.JSON.Send(conn, reply); err != nil {
			h.logger.Debug("webchat: send failed", "session_id", sessionID, "error", err)
			return
		}
	}
}

func (h *Handler) runTurn(ctx context.Context, sessionID, text string) OutboundMessage {
	res, err := h.dispatcher.HandleTurn(ctx, agent.TurnRequest{
		SessionKey: sessionID,
		Utterance:  text,
	})
	if err != nil {
		h.logger.Error("webchat: turn failed", "session_id", sessionID, "error", err)
		return OutboundMessage{
			Type: "error",
			Text: "Sorry, something went wrong. Please try again.",
		}
	}
	return OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      res.Message,
		Outcome:   string(res.Outcome),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
