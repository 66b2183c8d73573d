// Package daemon provides background execution with external control via Unix socket RPC.
package daemon

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/npratt/grblctl/internal/config"
	"github.com/npratt/grblctl/internal/grbl"
)

// Daemon manages background execution with external control via Unix socket.
type Daemon struct {
	config    *config.Config
	engine    *grbl.Engine
	sockPath  string
	startTime time.Time
	logger    *slog.Logger

	listener net.Listener
	stopCh   chan struct{}

	running bool
	mu      sync.RWMutex
}

// New creates a new Daemon fronting the given protocol engine.
func New(cfg *config.Config, engine *grbl.Engine, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		config:   cfg,
		engine:   engine,
		sockPath: cfg.Paths.Socket,
		logger:   logger,
		stopCh:   make(chan struct{}, 1),
	}
}

// Running returns whether the daemon is currently running.
func (d *Daemon) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// setRunning updates the running state (thread-safe).
func (d *Daemon) setRunning(running bool) {
	d.mu.Lock()
	d.running = running
	d.mu.Unlock()
}

// Engine returns the underlying protocol engine for testing.
func (d *Daemon) Engine() *grbl.Engine {
	return d.engine
}

// StartTime returns when the daemon was started.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// SocketPath returns the Unix socket path.
func (d *Daemon) SocketPath() string {
	return d.sockPath
}
