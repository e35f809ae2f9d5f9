package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

// readyLog records the order in which readiness probes fire.
type readyLog struct {
	mu    sync.Mutex
	order []string
}

func (r *readyLog) probe(name string) func(context.Context) bool {
	return func(context.Context) bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, name)
		return true
	}
}

func TestStartOrderAndTeardown(t *testing.T) {
	rl := &readyLog{}
	s := New(Logger.Nop())

	specs := []Spec{
		{Name: "tts", Command: "sleep 60", Ready: rl.probe("tts")},
		{Name: "stt", Command: "sleep 60", Ready: rl.probe("stt")},
		{Name: "llm", Command: "sleep 60", Ready: rl.probe("llm")},
	}
	if err := s.Start(context.Background(), specs); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Shutdown()

	if len(rl.order) != 3 || rl.order[0] != "tts" || rl.order[1] != "stt" || rl.order[2] != "llm" {
		t.Errorf("workers must start in order tts, stt, llm; got %v", rl.order)
	}

	s.Shutdown()
	for _, h := range s.handles {
		if h.cmd.ProcessState == nil {
			t.Errorf("%s still running after shutdown", h.name)
		}
	}

	// Second shutdown is a no-op.
	s.Shutdown()
}

func TestWorkerExitDuringStartupIsInitError(t *testing.T) {
	s := New(Logger.Nop())
	err := s.Start(context.Background(), []Spec{
		{Name: "tts", Command: "true", Ready: func(context.Context) bool { return false }},
	})
	var ie *InitError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InitError, got %v", err)
	}
	if ie.Service != "tts" {
		t.Errorf("expected failing service tts, got %s", ie.Service)
	}
}

func TestFailedStartTearsDownEarlierWorkers(t *testing.T) {
	s := New(Logger.Nop())
	err := s.Start(context.Background(), []Spec{
		{Name: "tts", Command: "sleep 60", Ready: func(context.Context) bool { return true }},
		{Name: "stt", Command: "true", Ready: func(context.Context) bool { return false }},
	})
	if err == nil {
		t.Fatal("expected start failure")
	}

	for _, h := range s.handles {
		if h.name == "tts" && h.cmd.ProcessState == nil {
			t.Error("tts should have been torn down after stt failed")
		}
	}
}

func TestEmptyCommandRejected(t *testing.T) {
	s := New(Logger.Nop())
	err := s.Start(context.Background(), []Spec{{Name: "tts", Command: "   "}})
	var ie *InitError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InitError for empty command, got %v", err)
	}
}
