package sessions

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/bdobrica/opentainer/internal/opentainer/engine"
	"github.com/bdobrica/opentainer/internal/opentainer/envelope"
	"github.com/bdobrica/opentainer/internal/opentainer/ident"
)

// LogsOptions are the UI-facing options for a logs session.
type LogsOptions struct {
	Timestamps bool `json:"timestamps"`
}

// StartLogs begins following a container's log stream, emitting each
// frame on "logs-{sessionID}". A prior session under the same id is
// cancelled and replaced.
func (m *Manager) StartLogs(ctx context.Context, containerID, sessionID string, opts LogsOptions) envelope.Response {
	cli, err := m.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	if err := ident.Validate(containerID); err != nil {
		return envelope.Err(err.Error())
	}

	sctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}
	go m.runLogs(sctx, t, cli, containerID, sessionID, opts)

	m.mu.Lock()
	if old := m.logs[sessionID]; old != nil {
		old.cancel()
	}
	m.logs[sessionID] = t
	m.mu.Unlock()

	return envelope.Empty()
}

// StopLogs cancels and removes a logs session. Unknown session ids are a
// successful no-op.
func (m *Manager) StopLogs(sessionID string) envelope.Response {
	m.mu.Lock()
	t := m.logs[sessionID]
	delete(m.logs, sessionID)
	m.mu.Unlock()
	if t != nil {
		t.cancel()
	}
	return envelope.Empty()
}

func (m *Manager) runLogs(sctx context.Context, t *task, cli engine.API, containerID, sessionID string, opts LogsOptions) {
	defer close(t.done)
	defer m.removeLogs(sessionID, t)

	// TTY containers produce a raw stream; everything else arrives
	// multiplexed and needs demuxing.
	tty := false
	if info, err := cli.ContainerInspect(sctx, containerID); err == nil && info.Config != nil {
		tty = info.Config.Tty
	}

	rc, err := cli.ContainerLogs(sctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Timestamps: opts.Timestamps,
		Tail:       "100",
	})
	if err != nil {
		return // stream errors terminate the session silently
	}
	defer rc.Close()

	w := &eventWriter{emitter: m.emitter, event: "logs-" + sessionID}
	if tty {
		_, _ = io.Copy(w, rc)
	} else {
		_, _ = stdcopy.StdCopy(w, w, rc)
	}
}

// removeLogs drops the registry entry unless a replacement already owns
// the slot.
func (m *Manager) removeLogs(sessionID string, t *task) {
	m.mu.Lock()
	if m.logs[sessionID] == t {
		delete(m.logs, sessionID)
	}
	m.mu.Unlock()
}
