package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/audio"
)

// MinAudioBytes is half a second of 16 kHz 16-bit mono PCM (8000 samples).
// Anything shorter transcribes to the empty string without touching the
// worker.
const MinAudioBytes = audio.SampleRate / 2 * 2

// TransportError wraps a failure to reach the STT worker at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("stt transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// TranscriptionError wraps a worker-side transcription failure.
type TranscriptionError struct {
	Cause error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription failed: %v", e.Cause) }
func (e *TranscriptionError) Unwrap() error { return e.Cause }

type transcribeResponse struct {
	Transcription string `json:"transcription"`
}

// Client talks to the local STT worker over loopback HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *Logger.Logger
	perf       *Logger.PerfLogger
}

func NewClient(baseURL string, logger *Logger.Logger, perf *Logger.PerfLogger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		perf:       perf,
	}
}

// Transcribe sends one utterance and returns its text. Sub-minimum audio
// yields "" with no error and no worker round-trip.
func (c *Client) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) < MinAudioBytes {
		c.logger.Debugf("utterance below 0.5s (%d bytes), skipping transcription", len(pcm))
		return "", nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return "", &TranscriptionError{Cause: err}
	}
	if _, err := part.Write(audio.EncodeWAV(pcm)); err != nil {
		return "", &TranscriptionError{Cause: err}
	}
	if err := writer.Close(); err != nil {
		return "", &TranscriptionError{Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &TranscriptionError{Cause: fmt.Errorf("status %d: %s", resp.StatusCode, raw)}
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &TranscriptionError{Cause: err}
	}

	if c.perf != nil {
		c.perf.Record("stt_transcription", time.Since(start), map[string]any{
			"audio_ms":   len(pcm) * 1000 / (audio.SampleRate * 2),
			"text_chars": len(out.Transcription),
		})
	}
	c.logger.Debugf("transcription: %q", out.Transcription)
	return out.Transcription, nil
}

// Health reports whether the worker answers its health endpoint.
func (c *Client) Health(ctx context.Context) bool {
	return workerHealthy(ctx, c.httpClient, c.baseURL)
}

// workerHealthy implements the GET /health -> {status: "healthy"} probe for
// the STT worker.
func workerHealthy(ctx context.Context, hc *http.Client, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := hc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false
	}
	return out.Status == "healthy"
}
