package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeRunner records every invocation. statusErr controls `colima
// status`; runErr fails blocking commands; startErr fails spawns.
type fakeRunner struct {
	mu        sync.Mutex
	runs      [][]string
	starts    [][]string
	statusErr error
	runErr    error
	stderr    string
	startErr  error

	// holdStatus, when non-nil, blocks `colima status` until closed.
	holdStatus chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	call := append([]string{name}, args...)
	f.mu.Lock()
	f.runs = append(f.runs, call)
	hold := f.holdStatus
	f.mu.Unlock()

	if name == "colima" && len(args) == 1 && args[0] == "status" {
		if hold != nil {
			<-hold
		}
		return nil, nil, f.statusErr
	}
	return nil, []byte(f.stderr), f.runErr
}

func (f *fakeRunner) Start(_ context.Context, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, append([]string{name}, args...))
	return f.startErr
}

func (f *fakeRunner) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

func newCoordinator(goos string, runner *fakeRunner, running bool) *Coordinator {
	c := New(Config{})
	c.goos = goos
	c.runner = runner
	c.probe = func(context.Context) bool { return running }
	c.pollInterval = 5 * time.Millisecond
	return c
}

func TestStartLeavesRunningRuntimeUnowned(t *testing.T) {
	runner := &fakeRunner{statusErr: nil} // colima status reports running
	c := newCoordinator("darwin", runner, true)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.WeStarted() {
		t.Error("weStarted must stay false when the runtime was already up")
	}
	if runner.startCount() != 0 {
		t.Errorf("spawned %d processes, want 0", runner.startCount())
	}

	// Stop of an unowned runtime is a no-op.
	before := len(runner.runs)
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(runner.runs) != before {
		t.Error("Stop ran commands despite not owning the runtime")
	}
}

func TestStartSpawnsColimaAndTakesOwnership(t *testing.T) {
	runner := &fakeRunner{statusErr: errors.New("colima is not running")}
	c := newCoordinator("darwin", runner, false)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.WeStarted() {
		t.Fatal("weStarted must be true after spawning the runtime")
	}
	if runner.startCount() != 1 {
		t.Fatalf("spawned %d processes, want 1", runner.startCount())
	}
	got := strings.Join(runner.starts[0], " ")
	want := "colima start --cpu 2 --memory 4 --disk 60"
	if got != want {
		t.Errorf("spawn = %q, want %q", got, want)
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.WeStarted() {
		t.Error("weStarted must clear after a successful stop")
	}
	last := runner.runs[len(runner.runs)-1]
	if strings.Join(last, " ") != "colima stop" {
		t.Errorf("last command = %v", last)
	}
}

func TestStartUsesConfiguredColimaSizing(t *testing.T) {
	runner := &fakeRunner{statusErr: errors.New("not running")}
	c := New(Config{Colima: ColimaOptions{CPU: 4, Memory: 8, Disk: 100}})
	c.goos = "darwin"
	c.runner = runner
	c.probe = func(context.Context) bool { return false }

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got := strings.Join(runner.starts[0], " ")
	if got != "colima start --cpu 4 --memory 8 --disk 100" {
		t.Errorf("spawn = %q", got)
	}
}

func TestConcurrentStartsSpawnOnce(t *testing.T) {
	hold := make(chan struct{})
	runner := &fakeRunner{statusErr: errors.New("not running"), holdStatus: hold}
	c := newCoordinator("darwin", runner, false)

	errs := make(chan error, 2)
	go func() { errs <- c.Start(context.Background()) }()
	// Give the first call time to win the CAS and block in colima status.
	time.Sleep(20 * time.Millisecond)
	go func() { errs <- c.Start(context.Background()) }()

	// The duplicate call returns immediately without spawning.
	if err := <-errs; err != nil {
		t.Fatalf("duplicate Start: %v", err)
	}
	close(hold)
	if err := <-errs; err != nil {
		t.Fatalf("first Start: %v", err)
	}

	if n := runner.startCount(); n != 1 {
		t.Errorf("spawned %d processes from two concurrent starts, want 1", n)
	}
}

func TestStartIsNoOpWhenAlreadyOwned(t *testing.T) {
	runner := &fakeRunner{statusErr: errors.New("not running")}
	c := newCoordinator("darwin", runner, false)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if n := runner.startCount(); n != 1 {
		t.Errorf("spawned %d processes, want 1", n)
	}
}

func TestLinuxStartBlocking(t *testing.T) {
	runner := &fakeRunner{}
	c := newCoordinator("linux", runner, false)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.WeStarted() {
		t.Error("weStarted must be true after systemctl start succeeds")
	}
	if strings.Join(runner.runs[0], " ") != "systemctl start docker" {
		t.Errorf("command = %v", runner.runs[0])
	}
}

func TestLinuxStartFailureCarriesStderr(t *testing.T) {
	runner := &fakeRunner{runErr: errors.New("exit status 1"), stderr: "Unit docker.service not found."}
	c := newCoordinator("linux", runner, false)

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Unit docker.service not found.") {
		t.Errorf("error %q does not carry stderr", err)
	}
	if c.WeStarted() {
		t.Error("failed start must not take ownership")
	}
}

func TestStopIgnoresNotRunning(t *testing.T) {
	runner := &fakeRunner{statusErr: errors.New("not running")}
	c := newCoordinator("darwin", runner, false)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	runner.runErr = errors.New("exit status 1")
	runner.stderr = "colima is not running"
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop must tolerate an already-stopped runtime: %v", err)
	}
	if c.WeStarted() {
		t.Error("weStarted must clear even when the runtime was already gone")
	}
}

func TestWindowsUnsupported(t *testing.T) {
	c := newCoordinator("windows", &fakeRunner{}, false)

	err := c.Start(context.Background())
	if err == nil || err.Error() != "Windows support not yet implemented" {
		t.Errorf("Start error = %v", err)
	}
	if c.Installed(context.Background()) {
		t.Error("Installed must be false on Windows")
	}
}

func TestWaitReadyImmediate(t *testing.T) {
	c := newCoordinator("darwin", &fakeRunner{}, true)
	start := time.Now()
	if err := c.WaitReady(context.Background(), 30); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("ready engine must be detected on the first attempt")
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	c := newCoordinator("darwin", &fakeRunner{}, false)
	err := c.WaitReady(context.Background(), 4) // two fast attempts
	if err == nil {
		t.Fatal("expected timeout")
	}
	want := "Docker did not become ready within 4 seconds"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}

func TestStatusSnapshot(t *testing.T) {
	runner := &fakeRunner{statusErr: errors.New("not running")}
	c := newCoordinator("darwin", runner, true)
	c.Start(context.Background())

	status := c.Status(context.Background())
	if !status.Running || !status.WeStarted {
		t.Errorf("status = %+v", status)
	}
	if status.Error != "" {
		t.Errorf("snapshot error = %q, want empty", status.Error)
	}
}
