// Package sessions owns the backend's long-lived streaming work: log
// follows, interactive execs and image pulls. Each live session is a
// cancellable background task registered under a UI-chosen session id;
// every byte the engine produces is forwarded to the UI as a named event
// on the channel "{kind}-{session_id}".
//
// Registry invariants:
//   - at most one live session per (kind, session id); starting a
//     duplicate cancels the previous task before the slot is overwritten;
//   - an entry is removed exactly when its task has been cancelled or has
//     completed (finished tasks clean up after themselves).
package sessions

import (
	"context"
	"sync"

	"github.com/bdobrica/opentainer/internal/opentainer/engine"
)

// Emitter delivers a named event with a payload to the UI. The command
// dispatcher's event side satisfies this.
type Emitter interface {
	Emit(event string, payload any)
}

// Engine provides the shared engine client.
type Engine interface {
	Client(ctx context.Context) (engine.API, error)
}

// task is one cancellable background session. done closes when the task
// body has fully returned; err carries the pull task's terminal failure.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// execID hands the engine-assigned exec id from the spawning task to
// later resize calls. It starts empty and is written once.
type execID struct {
	mu sync.Mutex
	id string
}

func (e *execID) set(id string) {
	e.mu.Lock()
	e.id = id
	e.mu.Unlock()
}

func (e *execID) get() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

type execSession struct {
	task   *task
	input  chan string
	client engine.API
	execID *execID
}

// Manager holds the three session registries. The mutex protects only
// map access; nothing engine-bound runs under it.
type Manager struct {
	engine  Engine
	emitter Emitter

	mu    sync.Mutex
	logs  map[string]*task
	execs map[string]*execSession
	pulls map[string]*task
}

// New creates an empty session manager.
func New(eng Engine, em Emitter) *Manager {
	return &Manager{
		engine:  eng,
		emitter: em,
		logs:    make(map[string]*task),
		execs:   make(map[string]*execSession),
		pulls:   make(map[string]*task),
	}
}

// eventWriter emits every Write as one event payload. stdcopy hands it
// one Write per demuxed frame, so event granularity matches the engine's.
type eventWriter struct {
	emitter Emitter
	event   string
}

func (w *eventWriter) Write(p []byte) (int, error) {
	w.emitter.Emit(w.event, string(p))
	return len(p), nil
}
