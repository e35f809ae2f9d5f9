package noisefloor

import (
	"sync"

	"github.com/TrueAndyT/voice-ass/pkg/audio"
)

const (
	// FallbackThreshold applies until the window holds any value.
	FallbackThreshold = 0.15
	// DefaultMultiplier scales the mean ambient RMS into the speech threshold.
	DefaultMultiplier = 2.0
	// DefaultWindow is ~3 s of 30 ms frames.
	DefaultWindow = 100
)

// SpeechClassifier is the packet-VAD view the floor needs: a plain per-frame
// speech decision with no RMS component.
type SpeechClassifier interface {
	IsSpeech(audio.Frame) bool
}

// Floor maintains a rolling RMS baseline over non-speech frames and derives a
// live speech threshold from it. Writes come from the audio loop only; reads
// may come from any goroutine.
type Floor struct {
	mu         sync.Mutex
	vad        SpeechClassifier
	values     []float64
	capacity   int
	multiplier float64
	threshold  float64
	locked     bool
}

func New(vad SpeechClassifier, window int, multiplier float64) *Floor {
	if window <= 0 {
		window = DefaultWindow
	}
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	return &Floor{
		vad:        vad,
		values:     make([]float64, 0, window),
		capacity:   window,
		multiplier: multiplier,
		threshold:  FallbackThreshold,
	}
}

// Update folds one frame into the baseline. Speech frames and locked state
// leave the window untouched.
func (f *Floor) Update(frame audio.Frame) {
	if f.vad != nil && f.vad.IsSpeech(frame) {
		return
	}
	rms := frame.RMS()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return
	}
	f.values = append(f.values, rms)
	if len(f.values) > f.capacity {
		f.values = f.values[1:]
	}
	var sum float64
	for _, v := range f.values {
		sum += v
	}
	f.threshold = (sum / float64(len(f.values))) * f.multiplier
}

// Threshold returns the current speech threshold.
func (f *Floor) Threshold() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threshold
}

// Lock freezes the threshold while an utterance is being captured, so a loud
// speaker does not inflate the ambient baseline.
func (f *Floor) Lock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = true
}

// Reset resumes updates and clears the window.
func (f *Floor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = false
	f.values = f.values[:0]
	f.threshold = FallbackThreshold
}

// WindowLen reports how many RMS samples the window currently holds.
func (f *Floor) WindowLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.values)
}
