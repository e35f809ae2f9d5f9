package capture

import (
	"context"
	"errors"
	"time"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/audio"
)

// Preset trailing-silence windows.
const (
	PostWakeSilence = 3000 * time.Millisecond
	FollowupSilence = 4000 * time.Millisecond
)

// FrameReader is the slice of the frame source the capturer needs.
type FrameReader interface {
	Read() (audio.Frame, error)
}

// SpeechGate is the per-frame classification used for silence accounting.
type SpeechGate interface {
	IsSpeech(audio.Frame) bool
}

// FloorControl is the mutation capability handed to the capturer for the
// scope of one capture: freeze the noise floor when speech starts, clear it
// when the capture ends.
type FloorControl interface {
	Lock()
	Reset()
}

// Capturer records one utterance: frames accumulate until trailing silence
// reaches the configured window. The returned buffer is raw PCM; it is empty
// when the user never spoke.
type Capturer struct {
	source FrameReader
	gate   SpeechGate
	floor  FloorControl
	logger *Logger.Logger
}

func New(source FrameReader, gate SpeechGate, floor FloorControl, logger *Logger.Logger) *Capturer {
	return &Capturer{source: source, gate: gate, floor: floor, logger: logger}
}

// Record reads frames until the trailing silence budget is spent. Silence
// accumulates one frame duration per non-speech frame and resets on speech.
// The noise floor is locked at first speech and reset before returning on
// every path.
func (c *Capturer) Record(ctx context.Context, trailingSilence time.Duration) ([]byte, error) {
	defer c.floor.Reset()

	var (
		buf       []byte
		silence   time.Duration
		spoke     bool
		frameSpan = audio.FrameMs * time.Millisecond
	)

	for {
		select {
		case <-ctx.Done():
			return c.result(buf, spoke), ctx.Err()
		default:
		}

		frame, err := c.source.Read()
		if err != nil {
			if errors.Is(err, audio.ErrUnavailable) {
				c.logger.Debugf("capture read retry: %v", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return c.result(buf, spoke), err
		}

		buf = append(buf, frame.Bytes()...)

		if c.gate.IsSpeech(frame) {
			if !spoke {
				spoke = true
				c.floor.Lock()
				c.logger.Debugf("speech started, noise floor locked")
			}
			silence = 0
			continue
		}

		silence += frameSpan
		if silence >= trailingSilence {
			c.logger.Debugf("trailing silence reached (%s), capture done", trailingSilence)
			return c.result(buf, spoke), nil
		}
	}
}

// result hides a speech-free recording: pure room tone is not an utterance.
func (c *Capturer) result(buf []byte, spoke bool) []byte {
	if !spoke {
		return nil
	}
	return buf
}
