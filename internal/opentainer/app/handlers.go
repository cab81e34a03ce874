package app

import (
	"context"
	"encoding/json"

	"github.com/bdobrica/opentainer/common/version"
	"github.com/bdobrica/opentainer/internal/opentainer/envelope"
	"github.com/bdobrica/opentainer/internal/opentainer/sessions"
)

type containerActionPayload struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

type batchStatsPayload struct {
	IDs []string `json:"ids"`
}

type imagePayload struct {
	ID string `json:"id"`
}

type volumePayload struct {
	Name string `json:"name"`
}

type logsPayload struct {
	ContainerID string `json:"container_id"`
	SessionID   string `json:"session_id"`
	Timestamps  bool   `json:"timestamps"`
}

type sessionPayload struct {
	SessionID string `json:"session_id"`
}

type execPayload struct {
	ContainerID string `json:"container_id"`
	SessionID   string `json:"session_id"`
	Cols        uint16 `json:"cols"`
	Rows        uint16 `json:"rows"`
}

type execInputPayload struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

type execResizePayload struct {
	SessionID string `json:"session_id"`
	Cols      uint16 `json:"cols"`
	Rows      uint16 `json:"rows"`
}

type pullPayload struct {
	Image     string `json:"image"`
	SessionID string `json:"session_id"`
}

type waitPayload struct {
	TimeoutSecs uint64 `json:"timeout_secs"`
}

// decode unmarshals a request payload. An absent payload decodes to the
// zero value so commands without arguments need no payload member.
func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

// withPayload adapts a typed handler to the bridge's raw signature.
func withPayload[T any](fn func(ctx context.Context, p T) envelope.Response) func(context.Context, json.RawMessage) envelope.Response {
	return func(ctx context.Context, raw json.RawMessage) envelope.Response {
		p, err := decode[T](raw)
		if err != nil {
			return envelope.Err("invalid payload: " + err.Error())
		}
		return fn(ctx, p)
	}
}

func (a *App) registerHandlers() {
	b := a.bridge

	b.Handle("get_app_version", func(context.Context, json.RawMessage) envelope.Response {
		return envelope.OK(version.Version)
	})

	// Unary engine commands.
	b.Handle("list_containers", func(ctx context.Context, _ json.RawMessage) envelope.Response {
		return a.commands.ListContainers(ctx)
	})
	b.Handle("container_action", withPayload(func(ctx context.Context, p containerActionPayload) envelope.Response {
		return a.commands.ContainerAction(ctx, p.ID, p.Action)
	}))
	b.Handle("get_batch_stats", withPayload(func(ctx context.Context, p batchStatsPayload) envelope.Response {
		return a.commands.BatchStats(ctx, p.IDs)
	}))
	b.Handle("list_images", func(ctx context.Context, _ json.RawMessage) envelope.Response {
		return a.commands.ListImages(ctx)
	})
	b.Handle("list_volumes", func(ctx context.Context, _ json.RawMessage) envelope.Response {
		return a.commands.ListVolumes(ctx)
	})
	b.Handle("list_networks", func(ctx context.Context, _ json.RawMessage) envelope.Response {
		return a.commands.ListNetworks(ctx)
	})
	b.Handle("remove_image", withPayload(func(ctx context.Context, p imagePayload) envelope.Response {
		return a.commands.RemoveImage(ctx, p.ID)
	}))
	b.Handle("remove_volume", withPayload(func(ctx context.Context, p volumePayload) envelope.Response {
		return a.commands.RemoveVolume(ctx, p.Name)
	}))

	// Streaming sessions.
	b.Handle("start_logs", withPayload(func(ctx context.Context, p logsPayload) envelope.Response {
		return a.sessions.StartLogs(ctx, p.ContainerID, p.SessionID, sessions.LogsOptions{Timestamps: p.Timestamps})
	}))
	b.Handle("stop_logs", withPayload(func(_ context.Context, p sessionPayload) envelope.Response {
		return a.sessions.StopLogs(p.SessionID)
	}))
	b.Handle("start_exec", withPayload(func(ctx context.Context, p execPayload) envelope.Response {
		return a.sessions.StartExec(ctx, p.SessionID, p.ContainerID, p.Cols, p.Rows)
	}))
	b.Handle("exec_input", withPayload(func(_ context.Context, p execInputPayload) envelope.Response {
		return a.sessions.ExecInput(p.SessionID, p.Data)
	}))
	b.Handle("exec_resize", withPayload(func(_ context.Context, p execResizePayload) envelope.Response {
		return a.sessions.ExecResize(p.SessionID, p.Cols, p.Rows)
	}))
	b.Handle("stop_exec", withPayload(func(_ context.Context, p sessionPayload) envelope.Response {
		return a.sessions.StopExec(p.SessionID)
	}))
	b.Handle("pull_image", withPayload(func(ctx context.Context, p pullPayload) envelope.Response {
		return a.sessions.PullImage(ctx, p.Image, p.SessionID)
	}))
	b.Handle("stop_pull", withPayload(func(_ context.Context, p sessionPayload) envelope.Response {
		return a.sessions.StopPull(p.SessionID)
	}))

	// Runtime lifecycle.
	b.Handle("check_colima_installed", func(ctx context.Context, _ json.RawMessage) envelope.Response {
		return envelope.OK(a.runtime.Installed(ctx))
	})
	b.Handle("check_docker_running", func(ctx context.Context, _ json.RawMessage) envelope.Response {
		return envelope.OK(a.runtime.Running(ctx))
	})
	b.Handle("get_docker_status", func(ctx context.Context, _ json.RawMessage) envelope.Response {
		return envelope.OK(a.runtime.Status(ctx))
	})
	b.Handle("start_docker", func(ctx context.Context, _ json.RawMessage) envelope.Response {
		if err := a.runtime.Start(ctx); err != nil {
			return envelope.Err(err.Error())
		}
		return envelope.Empty()
	})
	b.Handle("wait_for_docker", withPayload(func(ctx context.Context, p waitPayload) envelope.Response {
		if p.TimeoutSecs == 0 {
			p.TimeoutSecs = 60
		}
		if err := a.runtime.WaitReady(ctx, p.TimeoutSecs); err != nil {
			return envelope.Err(err.Error())
		}
		return envelope.Empty()
	}))
	b.Handle("get_install_instructions", func(context.Context, json.RawMessage) envelope.Response {
		return envelope.OK(a.runtime.InstallInstructions())
	})
	b.Handle("did_we_start_docker", func(context.Context, json.RawMessage) envelope.Response {
		return envelope.OK(a.runtime.WeStarted())
	})

	b.Handle("request_quit", func(context.Context, json.RawMessage) envelope.Response {
		a.requestQuit()
		return envelope.Empty()
	})
}
