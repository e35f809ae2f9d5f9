package wake

import (
	"github.com/smallnest/ringbuffer"

	"github.com/TrueAndyT/voice-ass/pkg/audio"
)

// WindowSamples is the fixed inference window: one second of audio.
const WindowSamples = audio.SampleRate

// sampleRing keeps the most recent WindowSamples of int16 audio. It is always
// full: seeded with silence at startup, every write displaces an equal number
// of the oldest samples.
type sampleRing struct {
	rb *ringbuffer.RingBuffer
}

func newSampleRing() *sampleRing {
	r := &sampleRing{
		rb: ringbuffer.New(WindowSamples * 2).SetBlocking(false),
	}
	r.rb.Write(make([]byte, WindowSamples*2))
	return r
}

// push appends a frame, discarding the oldest samples to make room.
func (r *sampleRing) push(frame audio.Frame) {
	data := frame.Bytes()
	if free := r.rb.Free(); free < len(data) {
		skip := make([]byte, len(data)-free)
		r.rb.Read(skip)
	}
	r.rb.Write(data)
}

// window copies the full one-second buffer out as samples, oldest first.
func (r *sampleRing) window() audio.Frame {
	raw := r.rb.Bytes(make([]byte, 0, WindowSamples*2))
	out, _ := audio.FrameFromBytes(raw)
	return out
}

// len reports the number of buffered samples; by construction this is always
// WindowSamples once the ring exists.
func (r *sampleRing) len() int {
	return r.rb.Length() / 2
}
