package bridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bdobrica/opentainer/internal/opentainer/envelope"
)

type frame struct {
	ID      string          `json:"id"`
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestDispatchRoutesToHandler(t *testing.T) {
	s := New()
	s.Handle("echo", func(_ context.Context, payload json.RawMessage) envelope.Response {
		var msg string
		if err := json.Unmarshal(payload, &msg); err != nil {
			return envelope.Err(err.Error())
		}
		return envelope.OK(msg)
	})
	ws := dial(t, s)

	if err := ws.WriteJSON(map[string]any{"id": "r1", "cmd": "echo", "payload": "hello"}); err != nil {
		t.Fatal(err)
	}
	f := readFrame(t, ws)
	if f.ID != "r1" || f.Success == nil || !*f.Success {
		t.Fatalf("frame = %+v", f)
	}
	if string(f.Data) != `"hello"` {
		t.Errorf("data = %s", f.Data)
	}
}

func TestUnknownCommand(t *testing.T) {
	ws := dial(t, New())

	if err := ws.WriteJSON(map[string]any{"id": "r2", "cmd": "frobnicate"}); err != nil {
		t.Fatal(err)
	}
	f := readFrame(t, ws)
	if f.Success == nil || *f.Success {
		t.Fatalf("frame = %+v", f)
	}
	if f.Error != "Unknown command: frobnicate" {
		t.Errorf("error = %q", f.Error)
	}
}

func TestSlowHandlerDoesNotBlockOthers(t *testing.T) {
	s := New()
	release := make(chan struct{})
	s.Handle("slow", func(context.Context, json.RawMessage) envelope.Response {
		<-release
		return envelope.Empty()
	})
	s.Handle("fast", func(context.Context, json.RawMessage) envelope.Response {
		return envelope.Empty()
	})
	ws := dial(t, s)

	if err := ws.WriteJSON(map[string]any{"id": "slow-1", "cmd": "slow"}); err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteJSON(map[string]any{"id": "fast-1", "cmd": "fast"}); err != nil {
		t.Fatal(err)
	}

	if f := readFrame(t, ws); f.ID != "fast-1" {
		t.Errorf("first response id = %q, want the fast command", f.ID)
	}
	close(release)
	if f := readFrame(t, ws); f.ID != "slow-1" {
		t.Errorf("second response id = %q", f.ID)
	}
}

func TestEmitBroadcastsToAllClients(t *testing.T) {
	s := New()
	a := dial(t, s)
	b := dial(t, s)

	// Both connections must be registered before the broadcast.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		n := len(s.conns)
		s.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("connections registered = %d, want 2", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Emit("docker-stopping", nil)
	for _, ws := range []*websocket.Conn{a, b} {
		f := readFrame(t, ws)
		if f.Event != "docker-stopping" {
			t.Errorf("event = %q", f.Event)
		}
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	s := New()
	s.Handle("ping", func(context.Context, json.RawMessage) envelope.Response {
		return envelope.Empty()
	})
	ws := dial(t, s)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	// The connection survives and keeps serving requests.
	if err := ws.WriteJSON(map[string]any{"id": "p1", "cmd": "ping"}); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, ws); f.ID != "p1" {
		t.Errorf("frame = %+v", f)
	}
}
