package sessions

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"

	"github.com/bdobrica/opentainer/internal/opentainer/engine"
	"github.com/bdobrica/opentainer/internal/opentainer/envelope"
	"github.com/bdobrica/opentainer/internal/opentainer/ident"
)

// shellBootstrap prefers bash when the image has it, falling back to sh.
const shellBootstrap = "if command -v bash > /dev/null; then exec bash; else exec sh; fi"

const (
	defaultCols = 80
	defaultRows = 24

	// inputBuffer bounds the exec input channel. A full channel blocks
	// ExecInput senders; keystroke rate sits far below this.
	inputBuffer = 100
)

// StartExec opens an interactive TTY shell inside a container and
// bridges it to "exec-{sessionID}". Zero dimensions become 80x24. A
// prior session under the same id is cancelled and replaced.
func (m *Manager) StartExec(ctx context.Context, sessionID, containerID string, cols, rows uint16) envelope.Response {
	cli, err := m.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	if err := ident.Validate(containerID); err != nil {
		return envelope.Err(err.Error())
	}
	if cols == 0 {
		cols = defaultCols
	}
	if rows == 0 {
		rows = defaultRows
	}

	sctx, cancel := context.WithCancel(context.Background())
	sess := &execSession{
		task:   &task{cancel: cancel, done: make(chan struct{})},
		input:  make(chan string, inputBuffer),
		client: cli,
		execID: &execID{},
	}
	go m.runExec(sctx, sess, cli, containerID, sessionID, cols, rows)

	m.mu.Lock()
	if old := m.execs[sessionID]; old != nil {
		old.task.cancel()
	}
	m.execs[sessionID] = sess
	m.mu.Unlock()

	return envelope.Empty()
}

// ExecInput forwards keystrokes to a session's shell. The send blocks
// when the bounded channel is full; a missing or finished session is a
// silent success.
func (m *Manager) ExecInput(sessionID, data string) envelope.Response {
	m.mu.Lock()
	sess := m.execs[sessionID]
	m.mu.Unlock()
	if sess == nil {
		return envelope.Empty()
	}
	select {
	case sess.input <- data:
	case <-sess.task.done:
	}
	return envelope.Empty()
}

// ExecResize resizes a session's TTY. While the exec id is still empty
// (the engine has not answered the create yet) this is a silent no-op;
// the initial resize fired by the session task covers that window.
func (m *Manager) ExecResize(sessionID string, cols, rows uint16) envelope.Response {
	m.mu.Lock()
	sess := m.execs[sessionID]
	var cli engine.API
	var id string
	if sess != nil {
		cli = sess.client
		id = sess.execID.get()
	}
	m.mu.Unlock()

	if sess == nil || id == "" {
		return envelope.Empty()
	}
	go func() {
		_ = cli.ContainerExecResize(context.Background(), id, container.ResizeOptions{
			Height: uint(rows),
			Width:  uint(cols),
		})
	}()
	return envelope.Empty()
}

// StopExec cancels and removes an exec session. Unknown session ids are
// a successful no-op.
func (m *Manager) StopExec(sessionID string) envelope.Response {
	m.mu.Lock()
	sess := m.execs[sessionID]
	delete(m.execs, sessionID)
	m.mu.Unlock()
	if sess != nil {
		sess.task.cancel()
	}
	return envelope.Empty()
}

func (m *Manager) runExec(sctx context.Context, sess *execSession, cli engine.API, containerID, sessionID string, cols, rows uint16) {
	defer close(sess.task.done)
	defer m.removeExec(sessionID, sess)
	defer sess.task.cancel() // releases the close-watcher on natural exit
	event := "exec-" + sessionID

	created, err := cli.ContainerExecCreate(sctx, containerID, container.ExecOptions{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
		Cmd:          []string{"/bin/sh", "-c", shellBootstrap},
	})
	if err != nil {
		m.emitter.Emit(event, fmt.Sprintf("\r\nError creating exec: %v\r\n", err))
		return
	}
	sess.execID.set(created.ID)

	attach, err := cli.ContainerExecAttach(sctx, created.ID, container.ExecAttachOptions{Tty: true})
	if err != nil {
		m.emitter.Emit(event, fmt.Sprintf("\r\nError starting exec: %v\r\n", err))
		return
	}
	defer attach.Close()

	// Initial resize, fired in the background so session startup is not
	// gated on it.
	go func() {
		_ = cli.ContainerExecResize(context.Background(), created.ID, container.ResizeOptions{
			Height: uint(rows),
			Width:  uint(cols),
		})
	}()

	// A cancelled context does not wake a read blocked on the hijacked
	// connection; closing the connection does.
	go func() {
		<-sctx.Done()
		attach.Close()
	}()

	outDone := make(chan struct{})
	go readExecOutput(attach, &eventWriter{emitter: m.emitter, event: event}, outDone)

	for {
		select {
		case <-sctx.Done():
			<-outDone
			return
		case <-outDone:
			// Shell exited; tear the session down.
			return
		case data := <-sess.input:
			if _, err := attach.Conn.Write([]byte(data)); err != nil {
				attach.Close()
				<-outDone
				return
			}
		}
	}
}

func readExecOutput(attach types.HijackedResponse, w *eventWriter, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 4096)
	for {
		n, err := attach.Reader.Read(buf)
		if n > 0 {
			_, _ = w.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (m *Manager) removeExec(sessionID string, sess *execSession) {
	m.mu.Lock()
	if m.execs[sessionID] == sess {
		delete(m.execs, sessionID)
	}
	m.mu.Unlock()
}
