// Package app assembles the backend: engine manager, command service,
// session manager, runtime coordinator and the websocket bridge, plus
// the shutdown path that ties them together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bdobrica/opentainer/internal/opentainer/bridge"
	"github.com/bdobrica/opentainer/internal/opentainer/commands"
	"github.com/bdobrica/opentainer/internal/opentainer/config"
	"github.com/bdobrica/opentainer/internal/opentainer/engine"
	"github.com/bdobrica/opentainer/internal/opentainer/lifecycle"
	"github.com/bdobrica/opentainer/internal/opentainer/sessions"
)

const shutdownGrace = 5 * time.Second

// App owns every long-lived component of the backend.
type App struct {
	cfg      config.Config
	engine   *engine.Manager
	commands *commands.Service
	sessions *sessions.Manager
	runtime  *lifecycle.Coordinator
	bridge   *bridge.Server
	http     *http.Server

	quit     chan struct{}
	quitOnce sync.Once
}

// New wires the backend together. The engine connection itself is
// established lazily; construction never touches the daemon.
func New(cfg config.Config) *App {
	eng := engine.New()
	br := bridge.New()

	a := &App{
		cfg:      cfg,
		engine:   eng,
		commands: commands.New(eng),
		sessions: sessions.New(eng, br),
		runtime:  lifecycle.New(lifecycle.Config{Colima: lifecycle.ColimaOptions(cfg.Colima)}),
		bridge:   br,
		quit:     make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", br)
	a.http = &http.Server{Handler: mux}

	a.registerHandlers()
	return a
}

// Run serves the bridge until a quit request or a termination signal
// arrives, then winds the backend down. The runtime is stopped on exit
// only when this process started it.
func (a *App) Run() error {
	ln, err := net.Listen("tcp", a.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Listen, err)
	}
	go func() {
		if err := a.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("bridge server failed", "err", err)
		}
	}()
	slog.Info("bridge listening", "addr", ln.Addr().String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		slog.Info("termination signal received", "signal", s.String())
	case <-a.quit:
		slog.Info("quit requested by ui")
	}

	a.shutdown()

	// Safety net: if the graceful stop failed or was skipped, try once
	// more before the process dies so no owned runtime is left behind.
	if a.runtime.WeStarted() {
		if err := a.runtime.Stop(context.Background()); err != nil {
			slog.Error("final runtime stop failed", "err", err)
		}
	}
	return nil
}

// requestQuit triggers shutdown at most once.
func (a *App) requestQuit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

func (a *App) shutdown() {
	if a.runtime.WeStarted() {
		a.bridge.Emit("docker-stopping", nil)
		slog.Info("stopping container runtime before exit")
		if err := a.runtime.Stop(context.Background()); err != nil {
			slog.Warn("runtime stop failed", "err", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.http.Shutdown(ctx); err != nil {
		a.http.Close()
	}
}
