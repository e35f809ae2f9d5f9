package vadgate

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/audio"
)

// PacketVAD wraps the WebRTC voice-activity detector for single-frame
// decisions. Aggressiveness 3 matches the capture-side tuning.
type PacketVAD struct {
	mu     sync.Mutex
	vad    *webrtcvad.VAD
	logger *Logger.Logger
}

func NewPacketVAD(logger *Logger.Logger) (*PacketVAD, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("create webrtc vad: %w", err)
	}
	if err := v.SetMode(3); err != nil {
		return nil, fmt.Errorf("set vad mode: %w", err)
	}
	return &PacketVAD{vad: v, logger: logger}, nil
}

// IsSpeech classifies one frame. A malformed frame or detector failure is
// reported as non-speech and logged at debug; errors never reach callers.
func (p *PacketVAD) IsSpeech(frame audio.Frame) bool {
	ok, err := p.Classify(frame)
	if err != nil {
		p.logger.Debugf("packet vad failed: %v", err)
		return false
	}
	return ok
}

// Classify is IsSpeech with the error exposed, for callers that want to fall
// back differently.
func (p *PacketVAD) Classify(frame audio.Frame) (bool, error) {
	if len(frame) != audio.FrameSamples {
		return false, fmt.Errorf("frame has %d samples, want %d", len(frame), audio.FrameSamples)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vad.Process(audio.SampleRate, frame.Bytes())
}

// Gate combines the packet VAD with an RMS check against the dynamic noise
// floor: a frame counts as speech only when both agree.
type Gate struct {
	vad       *PacketVAD
	threshold interface{ Threshold() float64 }
	logger    *Logger.Logger
}

func New(vad *PacketVAD, threshold interface{ Threshold() float64 }, logger *Logger.Logger) *Gate {
	return &Gate{vad: vad, threshold: threshold, logger: logger}
}

// IsSpeech returns the per-frame gate decision. Packet-VAD failure degrades
// to a pure RMS comparison.
func (g *Gate) IsSpeech(frame audio.Frame) bool {
	rms := frame.RMS()
	aboveFloor := rms > g.threshold.Threshold()

	ok, err := g.vad.Classify(frame)
	if err != nil {
		g.logger.Debugf("packet vad error, rms-only decision: %v", err)
		return aboveFloor
	}
	return ok && aboveFloor
}
