package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"murmur/pkg/logger"
)

func TestBroadcastReachesClient(t *testing.T) {
	t.Parallel()

	server := NewServer(logger.NewNop())
	go server.Run()

	ts := httptest.NewServer(http.HandlerFunc(server.HandleConnection))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	// Registration races the broadcast; give the hub a beat.
	time.Sleep(50 * time.Millisecond)

	server.Broadcast(&Message{
		Type: MessageTypeDictationComplete,
		Data: map[string]any{"id": "rec-1"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("failed to decode broadcast: %v", err)
	}
	if msg.Type != MessageTypeDictationComplete {
		t.Errorf("got message type %q, want %q", msg.Type, MessageTypeDictationComplete)
	}
	if msg.Data["id"] != "rec-1" {
		t.Errorf("got data %v, want the record id", msg.Data)
	}
}

func TestBroadcastWithNoClients(t *testing.T) {
	t.Parallel()

	server := NewServer(logger.NewNop())
	go server.Run()

	// Must not block or panic with an empty client set.
	server.Broadcast(&Message{Type: MessageTypeHistoryCleared, Data: map[string]any{}})
}
