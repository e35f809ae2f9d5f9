package llm

import (
	"io"
	"strings"
	"testing"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

func collect(s *Stream) []TokenEvent {
	var out []TokenEvent
	for ev := range s.Events() {
		out = append(out, ev)
	}
	return out
}

func sseBody(lines ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func TestSSEStreamParsesEvents(t *testing.T) {
	s := newSSEStream(sseBody(
		`data: {"type":"intent","content":"default"}`,
		`data: {"type":"first_token","time":0.31}`,
		``,
		`data: {"type":"chunk","content":"Hello "}`,
		`data: {"type":"chunk","content":"world."}`,
		`data: {"type":"complete","content":"Hello world.","metrics":{"tokens":5}}`,
	), Logger.Nop())

	events := collect(s)
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	if events[0].Type != EventIntent || events[0].Content != "default" {
		t.Errorf("intent event wrong: %+v", events[0])
	}
	if events[1].Time != 0.31 {
		t.Errorf("first token time wrong: %+v", events[1])
	}
	last := events[len(events)-1]
	if last.Type != EventComplete || last.Content != "Hello world." {
		t.Errorf("terminal event wrong: %+v", last)
	}
	if last.Metrics["tokens"] != float64(5) {
		t.Errorf("metrics not passed through: %+v", last.Metrics)
	}
}

func TestSSEStreamSkipsMalformedEvents(t *testing.T) {
	s := newSSEStream(sseBody(
		`data: {not json`,
		`: comment line`,
		`data: {"type":"chunk","content":"ok"}`,
		`data: {"type":"complete","content":"ok"}`,
	), Logger.Nop())

	events := collect(s)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Content != "ok" {
		t.Errorf("good event lost: %+v", events[0])
	}
}

func TestSSEStreamSynthesizesErrorOnTruncation(t *testing.T) {
	// Transport dies mid-stream: no complete/error arrived.
	s := newSSEStream(sseBody(
		`data: {"type":"chunk","content":"Hello "}`,
	), Logger.Nop())

	events := collect(s)
	if len(events) != 2 {
		t.Fatalf("expected chunk + synthetic error, got %d", len(events))
	}
	if events[1].Type != EventError {
		t.Errorf("expected terminal error event, got %+v", events[1])
	}
}

func TestSSEStreamStopsAfterTerminalEvent(t *testing.T) {
	s := newSSEStream(sseBody(
		`data: {"type":"complete","content":"done"}`,
		`data: {"type":"chunk","content":"stray"}`,
	), Logger.Nop())

	events := collect(s)
	if len(events) != 1 {
		t.Fatalf("nothing may follow the terminal event, got %d events", len(events))
	}
}

func TestLocalStreamShape(t *testing.T) {
	events := collect(newLocalStream("note", "Got it. Note saved."))
	if len(events) != 2 {
		t.Fatalf("expected intent + complete, got %d", len(events))
	}
	if events[0].Type != EventIntent || events[0].Content != "note" {
		t.Errorf("intent event wrong: %+v", events[0])
	}
	if events[1].Type != EventComplete || events[1].Content != "Got it. Note saved." {
		t.Errorf("complete event wrong: %+v", events[1])
	}
}
