// Package lifecycle starts, stops and probes the underlying container
// runtime: Colima on macOS, the docker systemd service on Linux.
//
// Strategy:
//  1. check whether an engine is already running (any provider counts);
//  2. if it is, use it without managing it;
//  3. if not, start our own and remember that we did;
//  4. on quit, stop the runtime only if we started it.
package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	goruntime "runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bdobrica/opentainer/internal/opentainer/engine"
)

// Runner executes runtime-control subprocesses. The production
// implementation shells out; tests substitute a recorder.
type Runner interface {
	// Run executes a command to completion.
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
	// Start spawns a command without waiting for it. Used for `colima
	// start`, which can take minutes on first run (VM image download).
	Start(ctx context.Context, name string, args ...string) error
}

// ColimaOptions sizes the VM that `colima start` creates.
type ColimaOptions struct {
	CPU    int
	Memory int // GiB
	Disk   int // GiB
}

// DefaultColima matches the sizing the desktop app has always used.
var DefaultColima = ColimaOptions{CPU: 2, Memory: 4, Disk: 60}

// Status is the runtime status snapshot handed to the UI.
type Status struct {
	Running   bool   `json:"running"`
	Installed bool   `json:"installed"`
	WeStarted bool   `json:"we_started"`
	Error     string `json:"error,omitempty"`
}

// Config holds options for creating a Coordinator.
type Config struct {
	Colima ColimaOptions
}

// Coordinator owns the runtime ownership state machine. weStarted flips
// to true the instant this process spawns the runtime and back to false
// only after a successful stop; it never becomes true when the runtime
// was already running when we arrived.
type Coordinator struct {
	runner Runner
	probe  func(ctx context.Context) bool
	colima ColimaOptions
	goos   string

	pollInterval time.Duration

	weStarted atomic.Bool
	starting  atomic.Bool
}

// New creates a Coordinator for the current platform.
func New(cfg Config) *Coordinator {
	colima := cfg.Colima
	if colima.CPU <= 0 {
		colima.CPU = DefaultColima.CPU
	}
	if colima.Memory <= 0 {
		colima.Memory = DefaultColima.Memory
	}
	if colima.Disk <= 0 {
		colima.Disk = DefaultColima.Disk
	}
	return &Coordinator{
		runner:       execRunner{},
		probe:        engine.Probe,
		colima:       colima,
		goos:         goruntime.GOOS,
		pollInterval: 2 * time.Second,
	}
}

// Running reports whether any local engine answers a ping.
func (c *Coordinator) Running(ctx context.Context) bool {
	return c.probe(ctx)
}

// Installed reports whether the platform's runtime tooling is present:
// colima on macOS, the docker CLI on Linux. Always false on Windows.
func (c *Coordinator) Installed(ctx context.Context) bool {
	var tool string
	switch c.goos {
	case "darwin":
		tool = "colima"
	case "linux":
		tool = "docker"
	default:
		return false
	}
	_, _, err := c.runner.Run(ctx, "which", tool)
	return err == nil
}

// Start brings the runtime up. Concurrent calls collapse to one start
// attempt; a runtime that is already running is left alone and stays
// unowned.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.starting.CompareAndSwap(false, true) {
		slog.Info("runtime start already in progress, skipping duplicate call")
		return nil
	}
	defer c.starting.Store(false)

	if c.weStarted.Load() {
		return nil
	}

	switch c.goos {
	case "darwin":
		if _, _, err := c.runner.Run(ctx, "colima", "status"); err == nil {
			// Already running; someone else owns it.
			return nil
		}
		err := c.runner.Start(ctx, "colima",
			"start",
			"--cpu", strconv.Itoa(c.colima.CPU),
			"--memory", strconv.Itoa(c.colima.Memory),
			"--disk", strconv.Itoa(c.colima.Disk),
		)
		if err != nil {
			return fmt.Errorf("Failed to start Colima: %v", err)
		}
		c.weStarted.Store(true)
		slog.Info("colima start spawned", "weStarted", true)
		return nil

	case "linux":
		_, stderr, err := c.runner.Run(ctx, "systemctl", "start", "docker")
		if err != nil {
			return fmt.Errorf("Failed to start Docker: %s", strings.TrimSpace(string(stderr)))
		}
		c.weStarted.Store(true)
		return nil

	default:
		return fmt.Errorf("Windows support not yet implemented")
	}
}

// Stop shuts the runtime down iff this process started it. A stop of an
// unowned runtime is a successful no-op.
func (c *Coordinator) Stop(ctx context.Context) error {
	if !c.weStarted.Load() {
		return nil
	}

	switch c.goos {
	case "darwin":
		_, stderr, err := c.runner.Run(ctx, "colima", "stop")
		if err != nil && !strings.Contains(string(stderr), "not running") {
			return fmt.Errorf("Failed to stop Colima: %s", strings.TrimSpace(string(stderr)))
		}
		c.weStarted.Store(false)
		return nil

	case "linux":
		_, stderr, err := c.runner.Run(ctx, "systemctl", "stop", "docker")
		if err != nil {
			return fmt.Errorf("Failed to stop Docker: %s", strings.TrimSpace(string(stderr)))
		}
		c.weStarted.Store(false)
		return nil

	default:
		return fmt.Errorf("Windows support not yet implemented")
	}
}

// WaitReady polls the engine every two seconds until it answers or the
// timeout budget is spent.
func (c *Coordinator) WaitReady(ctx context.Context, timeoutSecs uint64) error {
	attempts := timeoutSecs / 2
	for i := uint64(0); i < attempts; i++ {
		if c.probe(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return fmt.Errorf("Docker did not become ready within %d seconds", timeoutSecs)
}

// Status returns the runtime status snapshot.
func (c *Coordinator) Status(ctx context.Context) Status {
	return Status{
		Running:   c.Running(ctx),
		Installed: c.Installed(ctx),
		WeStarted: c.weStarted.Load(),
	}
}

// WeStarted reports whether this process owns the running runtime.
func (c *Coordinator) WeStarted() bool {
	return c.weStarted.Load()
}

// InstallInstructions returns setup guidance for the current platform.
func (c *Coordinator) InstallInstructions() string {
	switch c.goos {
	case "darwin":
		return "Install Colima and Docker CLI:\n\nbrew install colima docker\n\nOpentainer will manage Colima automatically."
	case "linux":
		return "Install Docker Engine:\n\nhttps://docs.docker.com/engine/install/"
	default:
		return "Windows support coming soon."
	}
}

// execRunner is the production Runner.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func (execRunner) Start(_ context.Context, name string, args ...string) error {
	// Deliberately not context-bound: the runtime must outlive the
	// request that started it.
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	slog.Info("runtime process spawned", "cmd", name, "pid", cmd.Process.Pid)
	go func() { _ = cmd.Wait() }()
	return nil
}
