package llm

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

// TransportError wraps a failure to reach the LLM worker; callers fall back
// to the non-streaming path or abort the turn.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("llm transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Dispatcher lets local intent handlers claim a prompt before it is sent to
// the model. A claimed prompt short-circuits into a single Complete event.
type Dispatcher interface {
	Dispatch(text string) (reply string, intent string, handled bool)
}

type chatRequest struct {
	Prompt           string `json:"prompt"`
	ChunkThreshold   int    `json:"chunk_threshold,omitempty"`
	SentenceBoundary bool   `json:"sentence_boundary,omitempty"`
}

type chatResponse struct {
	Response string  `json:"response"`
	Metrics  Metrics `json:"metrics"`
}

// Client talks to the local LLM worker. Respond is the whole-response path;
// RespondStream yields token events as they are generated.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dispatcher Dispatcher
	logger     *Logger.Logger
}

func NewClient(baseURL string, dispatcher Dispatcher, logger *Logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Respond requests one complete response.
func (c *Client) Respond(ctx context.Context, prompt string) (string, Metrics, error) {
	if c.dispatcher != nil {
		if reply, intent, handled := c.dispatcher.Dispatch(prompt); handled {
			c.logger.Infof("handler claimed prompt (intent=%s)", intent)
			return reply, Metrics{"handler": intent}, nil
		}
	}

	raw, err := json.Marshal(chatRequest{Prompt: prompt})
	if err != nil {
		return "", nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(raw))
	if err != nil {
		return "", nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", nil, fmt.Errorf("llm chat returned %d: %s", resp.StatusCode, msg)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, fmt.Errorf("decode llm response: %w", err)
	}
	return out.Response, out.Metrics, nil
}

// RespondStream opens the streaming endpoint. The worker chunks generated
// text server-side at chunkThreshold characters, optionally breaking at
// sentence boundaries. Per-call timeout applies to connection setup only; the
// stream itself has no inter-event deadline beyond ctx.
func (c *Client) RespondStream(ctx context.Context, prompt string, chunkThreshold int, sentenceBoundary bool) (*Stream, error) {
	if c.dispatcher != nil {
		if reply, intent, handled := c.dispatcher.Dispatch(prompt); handled {
			c.logger.Infof("handler claimed prompt (intent=%s)", intent)
			return newLocalStream(intent, reply), nil
		}
	}

	raw, err := json.Marshal(chatRequest{
		Prompt:           prompt,
		ChunkThreshold:   chunkThreshold,
		SentenceBoundary: sentenceBoundary,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(raw))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives the default client timeout, so the same limit is
	// applied only to waiting for the response headers; after that only ctx
	// cancels the stream.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = c.httpClient.Timeout
	streamClient := &http.Client{Transport: transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &TransportError{Err: fmt.Errorf("llm stream returned %d: %s", resp.StatusCode, msg)}
	}

	return newSSEStream(resp.Body, c.logger), nil
}

// Warmup primes the model so the first turn does not pay load latency.
func (c *Client) Warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/warmup", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm warmup returned %d", resp.StatusCode)
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
