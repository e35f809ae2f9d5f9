package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

// Vector is one embedding.
type Vector []float32

// Client talks to a local text-embeddings-inference worker: POST /embed with
// {"inputs": [...]} returning a float matrix. Used only by the document
// indexer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *Logger.Logger
	maxChars   int
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

func NewClient(baseURL string, logger *Logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		// ~512 tokens at the usual 3-4 chars/token estimate
		maxChars: 1536,
	}
}

// Chunk splits a document into embedding-sized pieces along sentence
// boundaries, falling back to word splits for oversized sentences.
func (c *Client) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, sentence := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > c.maxChars {
			flush()
		}
		if len(sentence) > c.maxChars {
			flush()
			for _, word := range strings.Fields(sentence) {
				if current.Len()+len(word)+1 > c.maxChars {
					flush()
				}
				if current.Len() > 0 {
					current.WriteByte(' ')
				}
				current.WriteString(word)
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Embed returns one vector per input chunk, in order.
func (c *Client) Embed(ctx context.Context, chunks []string) ([]Vector, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(embedRequest{Inputs: chunks})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed worker returned %d", resp.StatusCode)
	}

	var vectors []Vector
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(vectors))
	}
	return vectors, nil
}
