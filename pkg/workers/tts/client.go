package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

// SynthesisError is any failure to get a segment queued for playback.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return fmt.Sprintf("synthesis failed: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }

// Client talks to the local TTS worker. Speak returns once the worker has
// accepted the segment; the worker owns queueing and gapless playback.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *Logger.Logger
}

func NewClient(baseURL string, logger *Logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Speak submits one text segment for synthesis.
func (c *Client) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	start := time.Now()
	if err := c.post(ctx, "/speak", map[string]string{"text": text}); err != nil {
		return &SynthesisError{Err: err}
	}
	c.logger.Debugf("tts accepted %d chars in %s", len(text), time.Since(start))
	return nil
}

// Warmup asks the worker to precompute model state.
func (c *Client) Warmup(ctx context.Context) error {
	if err := c.post(ctx, "/warmup", nil); err != nil {
		return &SynthesisError{Err: err}
	}
	return nil
}

// Stop aborts playback on the current device.
func (c *Client) Stop(ctx context.Context) error {
	if err := c.post(ctx, "/stop", nil); err != nil {
		return &SynthesisError{Err: err}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("tts %s returned %d: %s", path, resp.StatusCode, raw)
	}
	return nil
}

// Health reports whether the worker answers its health endpoint.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	var out struct {
		Status string `json:"status"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&out) != nil {
		return false
	}
	return out.Status == "healthy"
}
