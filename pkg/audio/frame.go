package audio

import (
	"errors"
	"fmt"
	"math"
)

// Capture format used across the whole pipeline: 16 kHz mono 16-bit PCM in
// fixed 30 ms frames. Frames are never partial.
const (
	SampleRate   = 16000
	FrameMs      = 30
	FrameSamples = SampleRate * FrameMs / 1000 // 480
	FrameBytes   = FrameSamples * 2
)

var (
	// ErrUnavailable is a recoverable read failure; the caller may retry
	// after a short back-off.
	ErrUnavailable = errors.New("audio input unavailable")
	// ErrDeviceLost means the capture device is gone for good.
	ErrDeviceLost = errors.New("audio device lost")
)

// Frame is one 30 ms span of mono int16 samples.
type Frame []int16

// RMS computes root-mean-square amplitude after normalizing samples
// to [-1, 1].
func (f Frame) RMS() float64 {
	if len(f) == 0 {
		return 0
	}
	var sum float64
	for _, s := range f {
		n := float64(s) / 32767.0
		sum += n * n
	}
	return math.Sqrt(sum / float64(len(f)))
}

// Bytes encodes the frame as little-endian PCM.
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f)*2)
	for i, s := range f {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// FrameFromBytes decodes little-endian PCM into a frame. The input must hold
// a whole number of samples.
func FrameFromBytes(b []byte) (Frame, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("pcm buffer has odd length %d", len(b))
	}
	f := make(Frame, len(b)/2)
	for i := range f {
		f[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return f, nil
}
