// Package engine manages the connection to the local Docker Engine API.
//
// Discovery tries the default client configuration first (honouring
// DOCKER_HOST) and falls back to Colima's conventional socket on macOS.
// The established client is cached process-wide and shared by every
// command and streaming session; it is safe for concurrent use.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	dockerclient "github.com/docker/docker/client"
)

// DefaultLabel is the connection path label used when default discovery
// succeeds. Any other label is the absolute socket path that was dialed.
const DefaultLabel = "default"

const (
	// colimaSocketRel is Colima's docker socket, relative to $HOME.
	colimaSocketRel = ".colima/default/docker.sock"

	// colimaTimeout is the per-request timeout for clients dialing the
	// Colima socket directly.
	colimaTimeout = 120 * time.Second

	// probeTimeout bounds a single reachability ping.
	probeTimeout = 3 * time.Second
)

// API is the subset of the Docker Engine client the backend uses.
// *dockerclient.Client satisfies it; tests substitute mocks.
type API interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerStats(ctx context.Context, containerID string, stream bool) (container.StatsResponseReader, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecResize(ctx context.Context, execID string, options container.ResizeOptions) error
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
	VolumeRemove(ctx context.Context, volumeID string, force bool) error
	NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
}

// Manager holds the process-wide connection slot: an optional cached
// client plus the path label it was created with. The slot is mutated
// only under the mutex; discovery itself runs outside the lock so that
// lock hold times stay short.
type Manager struct {
	mu     sync.Mutex
	client *dockerclient.Client
	path   string

	// connect is the discovery function; overridable in tests.
	connect func(ctx context.Context) (*dockerclient.Client, string, error)
}

// New creates a Manager and eagerly attempts one connection so that the
// first UI command finds a warm client when the engine is already up.
// The attempt is best-effort: a down engine leaves the slot empty and
// Client reconnects lazily later.
func New() *Manager {
	m := &Manager{}
	m.connect = discover
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if cli, path, err := m.connect(ctx); err == nil {
		m.client = cli
		m.path = path
	}
	return m
}

// Client returns the shared engine client, running discovery if the slot
// is empty. Cheap to call per-operation.
func (m *Manager) Client(ctx context.Context) (API, error) {
	m.mu.Lock()
	if m.client != nil {
		cli := m.client
		m.mu.Unlock()
		return cli, nil
	}
	m.mu.Unlock()

	cli, path, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.client = cli
	m.path = path
	m.mu.Unlock()
	return cli, nil
}

// Path returns the label of the cached connection: "default" or the
// absolute socket path. Empty when no connection has been established.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// Probe reports whether any local engine answers a ping. It runs the same
// two-step discovery as Client but never touches the cached slot.
func Probe(ctx context.Context) bool {
	if cli, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	); err == nil {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, perr := cli.Ping(pctx)
		cancel()
		cli.Close()
		if perr == nil {
			return true
		}
	}

	if sock := colimaSocket(); sock != "" {
		if cli, err := dockerclient.NewClientWithOpts(
			dockerclient.WithHost("unix://" + sock),
			dockerclient.WithTimeout(colimaTimeout),
		); err == nil {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			_, perr := cli.Ping(pctx)
			cancel()
			cli.Close()
			if perr == nil {
				return true
			}
		}
	}
	return false
}

// discover resolves a working engine connection. One pass, first success
// wins: default client configuration proven by a ping, then Colima's
// socket on macOS. On complete failure the last error is surfaced.
func discover(ctx context.Context) (*dockerclient.Client, string, error) {
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err == nil {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, perr := cli.Ping(pctx)
		cancel()
		if perr == nil {
			return cli, DefaultLabel, nil
		}
		cli.Close()
		err = perr
	}

	if sock := colimaSocket(); sock != "" {
		cli2, cerr := dockerclient.NewClientWithOpts(
			dockerclient.WithHost("unix://"+sock),
			dockerclient.WithTimeout(colimaTimeout),
		)
		if cerr == nil {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			_, perr := cli2.Ping(pctx)
			cancel()
			if perr == nil {
				return cli2, sock, nil
			}
			cli2.Close()
			cerr = perr
		}
		err = cerr
	}

	return nil, "", fmt.Errorf("engine discovery: %w", err)
}

// colimaSocket returns the path to Colima's docker socket when it exists,
// or "" on other platforms / when absent.
func colimaSocket() string {
	if goruntime.GOOS != "darwin" {
		return ""
	}
	home := os.Getenv("HOME")
	if home == "" {
		return ""
	}
	sock := filepath.Join(home, colimaSocketRel)
	if _, err := os.Stat(sock); err != nil {
		return ""
	}
	return sock
}
