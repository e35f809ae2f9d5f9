package wake

import (
	"sync"
	"time"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/audio"
)

const (
	// Threshold is the confidence above which any single model triggers.
	Threshold = 0.77
	// Cooldown suppresses re-triggering off the tail of the same utterance.
	Cooldown = 2 * time.Second
)

// Event is one confirmed detection: per-model confidence scores plus the
// one-second window that produced them.
type Event struct {
	Scores map[string]float32
	Window audio.Frame
}

// SpeechGate is the per-frame speech decision the detector consults before
// paying for inference.
type SpeechGate interface {
	IsSpeech(audio.Frame) bool
}

// Detector feeds frames into a one-second sliding window and scores the
// window whenever the frame passes the energy and VAD gates. Detection starts
// disabled; the app enables it once all workers are ready. All mutation
// happens on the audio loop; Enable/Disable may be called from anywhere.
type Detector struct {
	ring      *sampleRing
	scorer    Scorer
	gate      SpeechGate
	floor     interface{ Threshold() float64 }
	logger    *Logger.Logger
	now       func() time.Time
	mu        sync.Mutex
	enabled   bool
	cooldownT time.Time
}

func NewDetector(scorer Scorer, gate SpeechGate, floor interface{ Threshold() float64 }, logger *Logger.Logger) *Detector {
	return &Detector{
		ring:   newSampleRing(),
		scorer: scorer,
		gate:   gate,
		floor:  floor,
		logger: logger,
		now:    time.Now,
	}
}

// Enable arms detection.
func (d *Detector) Enable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = true
}

// Disable disarms detection; frames still enter the window so the buffer
// stays warm.
func (d *Detector) Disable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = false
}

// Enabled reports whether detection is armed.
func (d *Detector) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// WindowLen reports the buffered sample count; always one full second.
func (d *Detector) WindowLen() int {
	return d.ring.len()
}

// Process appends the frame to the sliding window and, when every gate
// passes, runs inference. Returns a non-nil Event on detection.
func (d *Detector) Process(frame audio.Frame) *Event {
	d.ring.push(frame)

	d.mu.Lock()
	enabled := d.enabled
	inCooldown := d.now().Before(d.cooldownT)
	d.mu.Unlock()

	if !enabled || inCooldown {
		return nil
	}
	if frame.RMS() <= d.floor.Threshold() {
		return nil
	}
	if !d.gate.IsSpeech(frame) {
		return nil
	}

	window := d.ring.window()
	scores, err := d.scorer.Score(window)
	if err != nil {
		d.logger.Debugf("wake inference failed: %v", err)
		return nil
	}

	for name, score := range scores {
		if score > Threshold {
			d.logger.Infof("wake word detected: %s=%.2f", name, score)
			d.mu.Lock()
			d.cooldownT = d.now().Add(Cooldown)
			d.mu.Unlock()
			return &Event{Scores: scores, Window: window}
		}
	}
	return nil
}
