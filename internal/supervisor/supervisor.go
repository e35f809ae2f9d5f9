package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

const (
	readinessProbes   = 30
	readinessInterval = time.Second
	terminateGrace    = 5 * time.Second
)

// InitError is fatal: a worker failed to start or never became ready.
type InitError struct {
	Service string
	Cause   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("service %s failed to initialize: %v", e.Service, e.Cause)
}

func (e *InitError) Unwrap() error { return e.Cause }

// Spec describes one worker process to launch.
type Spec struct {
	Name    string
	Command string
	// Ready probes the worker's health endpoint.
	Ready func(ctx context.Context) bool
}

// handle tracks one running worker. exited carries the single cmd.Wait
// result; both readiness polling and teardown select on it.
type handle struct {
	name   string
	cmd    *exec.Cmd
	exited chan error
}

// Supervisor owns the lifecycle of the worker processes: deterministic start
// order, readiness gating, and reverse-order teardown on any exit path.
type Supervisor struct {
	mu      sync.Mutex
	handles []*handle
	stopped bool
	logger  *Logger.Logger
}

func New(logger *Logger.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// Start launches the workers in the order given and blocks until each one
// reports ready. On any failure every already-started worker is torn down and
// an *InitError is returned.
func (s *Supervisor) Start(ctx context.Context, specs []Spec) error {
	for _, spec := range specs {
		if err := s.startOne(ctx, spec); err != nil {
			s.Shutdown()
			return err
		}
	}
	return nil
}

func (s *Supervisor) startOne(ctx context.Context, spec Spec) error {
	parts := strings.Fields(spec.Command)
	if len(parts) == 0 {
		return &InitError{Service: spec.Name, Cause: fmt.Errorf("empty command")}
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	if err := cmd.Start(); err != nil {
		return &InitError{Service: spec.Name, Cause: fmt.Errorf("spawn: %w", err)}
	}
	s.logger.Infof("started %s (pid %d)", spec.Name, cmd.Process.Pid)

	// Reap the process in the background so a crashed worker does not linger
	// as a zombie; readiness polling surfaces the failure.
	h := &handle{name: spec.Name, cmd: cmd, exited: make(chan error, 1)}
	go func() { h.exited <- cmd.Wait() }()

	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()

	for i := 0; i < readinessProbes; i++ {
		select {
		case <-ctx.Done():
			return &InitError{Service: spec.Name, Cause: ctx.Err()}
		case err := <-h.exited:
			return &InitError{Service: spec.Name, Cause: fmt.Errorf("exited during startup: %v", err)}
		case <-time.After(readinessInterval):
		}
		if spec.Ready == nil || spec.Ready(ctx) {
			s.logger.Infof("%s is ready", spec.Name)
			return nil
		}
	}
	return &InitError{Service: spec.Name, Cause: fmt.Errorf("not ready after %s", readinessProbes*readinessInterval)}
}

// Healthy re-probes every worker; advisory only, workers are not restarted.
func (s *Supervisor) Healthy(ctx context.Context, specs []Spec) map[string]bool {
	out := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.Ready != nil {
			out[spec.Name] = spec.Ready(ctx)
		}
	}
	return out
}

// Shutdown terminates registered workers in reverse start order. Safe to call
// more than once and from the signal path.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	handles := s.handles
	s.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		s.terminate(handles[i])
	}
	s.logger.Infof("all workers stopped")
}

func (s *Supervisor) terminate(h *handle) {
	if h.cmd.Process == nil {
		return
	}
	s.logger.Debugf("stopping %s (pid %d)", h.name, h.cmd.Process.Pid)
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return
	}

	select {
	case <-h.exited:
	case <-time.After(terminateGrace):
		s.logger.Warnf("%s did not exit, killing", h.name)
		h.cmd.Process.Kill()
		<-h.exited
	}
}
