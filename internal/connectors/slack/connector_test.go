package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeExpander struct {
	mu    sync.Mutex
	calls []string
	reply string
}

func (f *fakeExpander) Expand(ctx context.Context, text, channel, source string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s|%s|%s", text, channel, source))
	return f.reply
}

func (f *fakeExpander) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartDisabledWithoutToken(t *testing.T) {
	connector := New("", "", &fakeExpander{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- connector.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("disabled connector must return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disabled connector did not stop")
	}
}

func TestSessionExpandsAndReplies(t *testing.T) {
	expander := &fakeExpander{reply: "Test *AT-1* <url|title>"}
	upgrader := websocket.Upgrader{}
	replies := make(chan outgoingMessage, 1)

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/rtm.connect", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("missing bearer token: %q", r.Header.Get("Authorization"))
		}
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
		json.NewEncoder(w).Encode(map[string]any{
			"ok":   true,
			"url":  wsURL,
			"self": map[string]string{"id": "UBOT"},
		})
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		events := []rtmEvent{
			{Type: "hello"},
			{Type: "message", Subtype: "bot_message", Channel: "C1", User: "UOTHER", Text: "AT-9"},
			{Type: "message", Channel: "C1", User: "UBOT", Text: "AT-9"},
			{Type: "message", Channel: "C1", User: "UHUMAN", Text: "look at AT-1"},
		}
		for _, event := range events {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
		var reply outgoingMessage
		if err := conn.ReadJSON(&reply); err != nil {
			return
		}
		replies <- reply
		// Hold the socket open until the client goes away.
		conn.ReadMessage()
	})

	connector := New("xoxb-test", server.URL, expander, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- connector.Start(ctx) }()

	select {
	case reply := <-replies:
		if reply.Type != "message" || reply.Channel != "C1" {
			t.Fatalf("unexpected reply envelope: %+v", reply)
		}
		if reply.Text != expander.reply {
			t.Fatalf("unexpected reply text: %q", reply.Text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply received")
	}

	// Only the human, non-bot message reached the expander.
	if count := expander.callCount(); count != 1 {
		t.Fatalf("expected 1 expansion, got %d", count)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("connector did not stop after cancel")
	}
}

func TestConnectRTMFailureSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "invalid_auth"})
	}))
	defer server.Close()

	connector := New("bad-token", server.URL, &fakeExpander{}, testLogger())
	if _, _, err := connector.connectRTM(context.Background()); err == nil {
		t.Fatal("expected rtm.connect failure")
	}
}
