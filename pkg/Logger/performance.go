package Logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PerfLogger appends latency checkpoint records to performance.jsonl.
// One JSON object per line: {timestamp, event, duration_ms, context}.
type PerfLogger struct {
	mu   sync.Mutex
	path string
	log  *Logger
}

type perfRecord struct {
	Timestamp  string         `json:"timestamp"`
	Event      string         `json:"event"`
	DurationMs float64        `json:"duration_ms"`
	Context    map[string]any `json:"context,omitempty"`
}

func NewPerfLogger(logDir string, log *Logger) *PerfLogger {
	return &PerfLogger{
		path: filepath.Join(logDir, "performance.jsonl"),
		log:  log,
	}
}

// Record writes one performance event. Failures are logged, never returned;
// a missing perf log must not disturb the audio loop.
func (p *PerfLogger) Record(event string, duration time.Duration, context map[string]any) {
	rec := perfRecord{
		Timestamp:  time.Now().Format(time.RFC3339Nano),
		Event:      event,
		DurationMs: float64(duration.Microseconds()) / 1000.0,
		Context:    context,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		p.log.Warnf("perf record marshal failed: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		p.log.Warnf("perf log open failed: %v", err)
		return
	}
	defer f.Close()
	f.Write(append(line, '\n'))
}
