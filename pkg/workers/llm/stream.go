package llm

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

// Stream delivers token events in generation order. The channel closes after
// the terminal Complete or Error event.
type Stream struct {
	events <-chan TokenEvent
}

// NewStream wraps an already-ordered event channel; the producer must close
// it after the terminal event.
func NewStream(events <-chan TokenEvent) *Stream {
	return &Stream{events: events}
}

// Events exposes the ordered event channel.
func (s *Stream) Events() <-chan TokenEvent {
	return s.events
}

// newSSEStream consumes a text event stream (one "data: {json}" payload per
// event) on a background goroutine. A transport drop or malformed terminal
// state is converted into a synthetic Error event so consumers always see a
// terminal event.
func newSSEStream(body io.ReadCloser, logger *Logger.Logger) *Stream {
	ch := make(chan TokenEvent, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		terminal := false
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			data, ok := bytes.CutPrefix(line, []byte("data:"))
			if !ok {
				continue
			}
			ev, err := parseEvent(bytes.TrimSpace(data))
			if err != nil {
				logger.Warnf("malformed stream event dropped: %v", err)
				continue
			}
			ch <- ev
			if ev.Type == EventComplete || ev.Type == EventError {
				terminal = true
				break
			}
		}

		if !terminal {
			msg := "stream ended without terminal event"
			if err := scanner.Err(); err != nil {
				msg = err.Error()
			}
			ch <- TokenEvent{Type: EventError, Content: msg}
		}
	}()
	return &Stream{events: ch}
}

// newLocalStream emits a handler result as a degenerate stream: an Intent
// event followed by one Complete carrying the full text and zero chunks.
func newLocalStream(intent, text string) *Stream {
	ch := make(chan TokenEvent, 2)
	ch <- TokenEvent{Type: EventIntent, Content: intent}
	ch <- TokenEvent{Type: EventComplete, Content: strings.TrimSpace(text)}
	close(ch)
	return &Stream{events: ch}
}
