// Package bridge is the transport between the webview UI and the
// backend: a loopback websocket server that routes named command
// requests to registered handlers and broadcasts named events back.
//
// Frames:
//
//	request:  {"id": "...", "cmd": "list_containers", "payload": {...}}
//	response: {"id": "...", "success": true, "data": ...}
//	event:    {"event": "logs-abc", "payload": "..."}
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bdobrica/opentainer/internal/opentainer/envelope"
)

// Handler processes one named command. The payload is the request's raw
// payload member, possibly empty.
type Handler func(ctx context.Context, payload json.RawMessage) envelope.Response

type request struct {
	ID      string          `json:"id"`
	Cmd     string          `json:"cmd"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type response struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type eventFrame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// conn serializes writes; gorilla connections allow one writer at a time.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Server dispatches requests and broadcasts events. It implements
// http.Handler for the websocket endpoint and sessions.Emitter for the
// event side.
type Server struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]Handler
	conns    map[string]*conn
}

// New creates an empty bridge server.
func New() *Server {
	return &Server{
		// The server binds loopback only; the webview's origin scheme
		// varies by platform, so origin checking is moot here.
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		handlers: make(map[string]Handler),
		conns:    make(map[string]*conn),
	}
}

// Handle registers a command handler. Registration happens during app
// construction, before the server accepts connections.
func (s *Server) Handle(cmd string, h Handler) {
	s.mu.Lock()
	s.handlers[cmd] = h
	s.mu.Unlock()
}

// Emit broadcasts a named event to every connected UI client.
func (s *Server) Emit(event string, payload any) {
	s.mu.Lock()
	targets := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	frame := eventFrame{Event: event, Payload: payload}
	for _, c := range targets {
		if err := c.writeJSON(frame); err != nil {
			slog.Warn("event write failed", "event", event, "err", err)
		}
	}
}

// ServeHTTP upgrades the connection and runs the request loop until the
// client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "err", err)
		return
	}

	id := uuid.New().String()
	c := &conn{ws: ws}
	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()
	slog.Info("ui client connected", "conn", id)

	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		ws.Close()
		slog.Info("ui client disconnected", "conn", id)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(data, &req); err != nil || req.Cmd == "" {
			slog.Warn("malformed request frame dropped", "conn", id, "err", err)
			continue
		}
		go s.dispatch(c, req)
	}
}

func (s *Server) dispatch(c *conn, req request) {
	s.mu.Lock()
	h := s.handlers[req.Cmd]
	s.mu.Unlock()

	var resp envelope.Response
	if h == nil {
		resp = envelope.Err("Unknown command: " + req.Cmd)
	} else {
		resp = h(context.Background(), req.Payload)
	}

	if err := c.writeJSON(response{
		ID:      req.ID,
		Success: resp.Success,
		Data:    resp.Data,
		Error:   resp.Error,
	}); err != nil {
		slog.Warn("response write failed", "cmd", req.Cmd, "err", err)
	}
}
