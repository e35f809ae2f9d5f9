package mic

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/audio"
)

// FrameSource delivers complete 30 ms frames from a capture device. Read
// blocks for up to one frame duration. Implementations must tolerate driver
// overflow silently (oldest samples dropped) and distinguish recoverable
// failures (audio.ErrUnavailable) from a lost device (audio.ErrDeviceLost).
type FrameSource interface {
	Read() (audio.Frame, error)
	Close() error
}

// Source wraps a PortAudio default input stream. The device is owned
// exclusively by whichever loop is currently calling Read; Close is safe to
// call once from any exit path.
type Source struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	closed bool
	logger *Logger.Logger
}

var initOnce sync.Once

// Open acquires the default capture device at 16 kHz mono with a 480-sample
// buffer. PortAudio is initialized once per process.
func Open(logger *Logger.Logger) (*Source, error) {
	var initErr error
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	if initErr != nil {
		return nil, fmt.Errorf("portaudio init: %w", audio.ErrDeviceLost)
	}

	buf := make([]int16, audio.FrameSamples)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(audio.SampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open capture stream: %w (%v)", audio.ErrDeviceLost, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start capture stream: %w (%v)", audio.ErrDeviceLost, err)
	}

	logger.Debugf("capture stream open: %d Hz mono, %d-sample frames", audio.SampleRate, len(buf))
	return &Source{stream: stream, buf: buf, logger: logger}, nil
}

// Read blocks until one full frame is captured. Driver overflow is tolerated:
// PortAudio reports it as InputOverflowed but the buffer still holds the most
// recent samples, so the frame is returned as-is.
func (s *Source) Read() (audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, audio.ErrDeviceLost
	}

	if err := s.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			s.logger.Debugf("capture overflow, oldest samples dropped")
		} else {
			return nil, fmt.Errorf("capture read: %w (%v)", audio.ErrUnavailable, err)
		}
	}

	frame := make(audio.Frame, len(s.buf))
	copy(frame, s.buf)
	return frame, nil
}

// Close stops and releases the stream. Subsequent reads fail with
// audio.ErrDeviceLost.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stream.Stop()
	return s.stream.Close()
}
