package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/bdobrica/opentainer/internal/opentainer/engine"
	"github.com/bdobrica/opentainer/internal/opentainer/envelope"
	"github.com/bdobrica/opentainer/internal/opentainer/ident"
)

// PullImage pulls an image, emitting every engine progress record on
// "pull-{sessionID}", and blocks until the pull finishes or is stopped.
// StopPull from another goroutine cancels the in-flight stream. The
// registry entry is removed whether the pull completed or was aborted.
func (m *Manager) PullImage(ctx context.Context, ref, sessionID string) envelope.Response {
	cli, err := m.engine.Client(ctx)
	if err != nil {
		return envelope.Err(err.Error())
	}
	if err := ident.Validate(ref); err != nil {
		return envelope.Err(err.Error())
	}

	sctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}

	// Register before spawning so a StopPull racing this call can always
	// find the entry.
	m.mu.Lock()
	if old := m.pulls[sessionID]; old != nil {
		old.cancel()
	}
	m.pulls[sessionID] = t
	m.mu.Unlock()

	go m.runPull(sctx, t, cli, ref, sessionID)
	<-t.done

	m.mu.Lock()
	if m.pulls[sessionID] == t {
		delete(m.pulls, sessionID)
	}
	m.mu.Unlock()

	if t.err != nil || sctx.Err() != nil {
		return envelope.Err("Pull cancelled or failed")
	}
	return envelope.Empty()
}

// StopPull cancels an in-flight pull. Unknown session ids are a
// successful no-op.
func (m *Manager) StopPull(sessionID string) envelope.Response {
	m.mu.Lock()
	t := m.pulls[sessionID]
	delete(m.pulls, sessionID)
	m.mu.Unlock()
	if t != nil {
		t.cancel()
	}
	return envelope.Empty()
}

func (m *Manager) runPull(sctx context.Context, t *task, cli engine.API, ref, sessionID string) {
	defer close(t.done)

	rc, err := cli.ImagePull(sctx, ref, image.PullOptions{})
	if err != nil {
		t.err = err
		return
	}
	defer rc.Close()

	event := "pull-" + sessionID
	dec := json.NewDecoder(rc)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) {
				t.err = err
			}
			return
		}
		m.emitter.Emit(event, msg)
	}
}
