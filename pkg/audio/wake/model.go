package wake

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/TrueAndyT/voice-ass/pkg/audio"
)

// ModelMissingError is fatal: the assistant cannot listen without its
// wake-word model.
type ModelMissingError struct {
	Path string
}

func (e *ModelMissingError) Error() string {
	return fmt.Sprintf("wake-word model missing: %s", e.Path)
}

// Scorer produces per-model confidence scores for a one-second window.
type Scorer interface {
	Score(window audio.Frame) (map[string]float32, error)
	Close() error
}

// OnnxScorer runs one ONNX session per wake-word model. Each model takes the
// raw [1,16000] float32 window and emits a single confidence score.
type OnnxScorer struct {
	mu       sync.Mutex
	sessions map[string]*ort.DynamicAdvancedSession
}

var ortInit sync.Once

// NewOnnxScorer loads every model path; a missing file is a
// *ModelMissingError.
func NewOnnxScorer(modelPaths []string, sharedLibPath string) (*OnnxScorer, error) {
	for _, p := range modelPaths {
		if _, err := os.Stat(p); err != nil {
			return nil, &ModelMissingError{Path: p}
		}
	}

	var initErr error
	ortInit.Do(func() {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", initErr)
	}

	s := &OnnxScorer{sessions: make(map[string]*ort.DynamicAdvancedSession, len(modelPaths))}
	for _, p := range modelPaths {
		session, err := ort.NewDynamicAdvancedSession(p, []string{"input"}, []string{"output"}, nil)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("load wake model %s: %w", p, err)
		}
		s.sessions[modelName(p)] = session
	}
	return s, nil
}

func modelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Score runs every loaded model against the window. Windows shorter than one
// second are a caller bug; they are rejected rather than padded.
func (s *OnnxScorer) Score(window audio.Frame) (map[string]float32, error) {
	if len(window) != WindowSamples {
		return nil, fmt.Errorf("wake window has %d samples, want %d", len(window), WindowSamples)
	}

	input := make([]float32, len(window))
	for i, sample := range window {
		input[i] = float32(sample) / 32768.0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make(map[string]float32, len(s.sessions))
	for name, session := range s.sessions {
		inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
		if err != nil {
			return nil, fmt.Errorf("wake input tensor: %w", err)
		}
		outputTensor, err := ort.NewTensor(ort.NewShape(1), make([]float32, 1))
		if err != nil {
			inputTensor.Destroy()
			return nil, fmt.Errorf("wake output tensor: %w", err)
		}

		err = session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor})
		if err == nil {
			scores[name] = outputTensor.GetData()[0]
		}
		inputTensor.Destroy()
		outputTensor.Destroy()
		if err != nil {
			return nil, fmt.Errorf("wake inference (%s): %w", name, err)
		}
	}
	return scores, nil
}

// Warmup runs one silent-window inference so the first real detection does
// not pay model-load latency.
func (s *OnnxScorer) Warmup() error {
	_, err := s.Score(make(audio.Frame, WindowSamples))
	return err
}

func (s *OnnxScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, session := range s.sessions {
		session.Destroy()
		delete(s.sessions, name)
	}
	return nil
}
