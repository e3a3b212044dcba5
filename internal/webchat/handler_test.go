package webchat

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/agent"
	"github.com/wolfman30/clinic-concierge/internal/schedstore"
	"golang.org/x/net/websocket"
)

type greetingExtractor struct{}

func (greetingExtractor) Extract(ctx context.Context, utterance string, pending agent.SessionState, refDate time.Time) (agent.Extraction, error) {
	return agent.Extraction{Kind: agent.IntentGreeting}, nil
}

func newTestSocket(t *testing.T) *websocket.Conn {
	t.Helper()
	store, err := schedstore.NewFileStore(filepath.Join(t.TempDir(), "clinic.json"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	dispatcher := agent.NewDispatcher(agent.DispatcherConfig{
		Extractor: greetingExtractor{},
		Sessions:  agent.NewMemorySessionStore(),
		Store:     store,
	})
	h := NewHandler(dispatcher, nil)

	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, conn.Request())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=test-session"
	conn, err := websocket.Dial(url, "", srv.URL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func recv(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg OutboundMessage
	if err := websocket.JSON.Receive(conn, &msg); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	return msg
}

func TestWebSocketSessionHandshake(t *testing.T) {
	conn := newTestSocket(t)

	msg := recv(t, conn)
	if msg.Type != "session" || msg.SessionID != "test-session" {
		t.Fatalf("handshake = %+v", msg)
	}
}

func TestWebSocketMessageTurn(t *testing.T) {
	conn := newTestSocket(t)
	recv(t, conn) // session handshake

	if err := websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	typing := recv(t, conn)
	if typing.Type != "typing" {
		t.Fatalf("expected typing indicator, got %+v", typing)
	}
	reply := recv(t, conn)
	if reply.Type != "message" || reply.Role != "assistant" {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Outcome != string(agent.OutcomeGreeting) {
		t.Errorf("outcome = %q", reply.Outcome)
	}
}

func TestWebSocketPing(t *testing.T) {
	conn := newTestSocket(t)
	recv(t, conn)

	if err := websocket.JSON.Send(conn, InboundMessage{Type: "ping"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg := recv(t, conn); msg.Type != "pong" {
		t.Errorf("expected pong, got %+v", msg)
	}
}
