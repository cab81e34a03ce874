// Package enginetest provides a configurable in-memory engine.API
// implementation shared by the command and session tests.
package enginetest

import (
	"context"
	"errors"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"

	"github.com/bdobrica/opentainer/internal/opentainer/engine"
)

// Mock implements engine.API. Set the function field for each call a test
// exercises; unset calls return errNotWired so stray engine traffic shows
// up as a test failure instead of a silent zero value.
type Mock struct {
	PingFn                func(ctx context.Context) (types.Ping, error)
	ContainerListFn       func(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerStartFn      func(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStopFn       func(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestartFn    func(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemoveFn     func(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspectFn    func(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerLogsFn       func(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerStatsFn      func(ctx context.Context, containerID string, stream bool) (container.StatsResponseReader, error)
	ContainerExecCreateFn func(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error)
	ContainerExecAttachFn func(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecResizeFn func(ctx context.Context, execID string, options container.ResizeOptions) error
	ImageListFn           func(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImageRemoveFn         func(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)
	ImagePullFn           func(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	VolumeListFn          func(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
	VolumeRemoveFn        func(ctx context.Context, volumeID string, force bool) error
	NetworkListFn         func(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
}

var errNotWired = errors.New("enginetest: call not wired")

func (m *Mock) Ping(ctx context.Context) (types.Ping, error) {
	if m.PingFn == nil {
		return types.Ping{}, errNotWired
	}
	return m.PingFn(ctx)
}

func (m *Mock) ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error) {
	if m.ContainerListFn == nil {
		return nil, errNotWired
	}
	return m.ContainerListFn(ctx, options)
}

func (m *Mock) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	if m.ContainerStartFn == nil {
		return errNotWired
	}
	return m.ContainerStartFn(ctx, containerID, options)
}

func (m *Mock) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	if m.ContainerStopFn == nil {
		return errNotWired
	}
	return m.ContainerStopFn(ctx, containerID, options)
}

func (m *Mock) ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error {
	if m.ContainerRestartFn == nil {
		return errNotWired
	}
	return m.ContainerRestartFn(ctx, containerID, options)
}

func (m *Mock) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	if m.ContainerRemoveFn == nil {
		return errNotWired
	}
	return m.ContainerRemoveFn(ctx, containerID, options)
}

func (m *Mock) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	if m.ContainerInspectFn == nil {
		return types.ContainerJSON{}, errNotWired
	}
	return m.ContainerInspectFn(ctx, containerID)
}

func (m *Mock) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	if m.ContainerLogsFn == nil {
		return nil, errNotWired
	}
	return m.ContainerLogsFn(ctx, containerID, options)
}

func (m *Mock) ContainerStats(ctx context.Context, containerID string, stream bool) (container.StatsResponseReader, error) {
	if m.ContainerStatsFn == nil {
		return container.StatsResponseReader{}, errNotWired
	}
	return m.ContainerStatsFn(ctx, containerID, stream)
}

func (m *Mock) ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error) {
	if m.ContainerExecCreateFn == nil {
		return types.IDResponse{}, errNotWired
	}
	return m.ContainerExecCreateFn(ctx, containerID, options)
}

func (m *Mock) ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error) {
	if m.ContainerExecAttachFn == nil {
		return types.HijackedResponse{}, errNotWired
	}
	return m.ContainerExecAttachFn(ctx, execID, options)
}

func (m *Mock) ContainerExecResize(ctx context.Context, execID string, options container.ResizeOptions) error {
	if m.ContainerExecResizeFn == nil {
		return errNotWired
	}
	return m.ContainerExecResizeFn(ctx, execID, options)
}

func (m *Mock) ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error) {
	if m.ImageListFn == nil {
		return nil, errNotWired
	}
	return m.ImageListFn(ctx, options)
}

func (m *Mock) ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error) {
	if m.ImageRemoveFn == nil {
		return nil, errNotWired
	}
	return m.ImageRemoveFn(ctx, imageID, options)
}

func (m *Mock) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	if m.ImagePullFn == nil {
		return nil, errNotWired
	}
	return m.ImagePullFn(ctx, refStr, options)
}

func (m *Mock) VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error) {
	if m.VolumeListFn == nil {
		return volume.ListResponse{}, errNotWired
	}
	return m.VolumeListFn(ctx, options)
}

func (m *Mock) VolumeRemove(ctx context.Context, volumeID string, force bool) error {
	if m.VolumeRemoveFn == nil {
		return errNotWired
	}
	return m.VolumeRemoveFn(ctx, volumeID, force)
}

func (m *Mock) NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error) {
	if m.NetworkListFn == nil {
		return nil, errNotWired
	}
	return m.NetworkListFn(ctx, options)
}

// Provider hands out a fixed Mock, standing in for *engine.Manager.
type Provider struct {
	API      *Mock
	PathName string
	Err      error
}

func (p *Provider) Client(ctx context.Context) (engine.API, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.API, nil
}

func (p *Provider) Path() string { return p.PathName }
