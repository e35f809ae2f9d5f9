package bridge

import (
	"context"
	"strings"
	"time"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/workers/llm"
)

// Generator is the LLM surface the bridge consumes.
type Generator interface {
	RespondStream(ctx context.Context, prompt string, chunkThreshold int, sentenceBoundary bool) (*llm.Stream, error)
	Respond(ctx context.Context, prompt string) (string, llm.Metrics, error)
}

// Speaker accepts ordered synthesis segments. Speak returns once the segment
// is queued, not once it has played.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Result summarizes one bridged response.
type Result struct {
	// Text is the response as recorded for history: the Complete event's
	// full text when present, otherwise the chunk concatenation.
	Text   string
	Intent string
	// ChunksSpoken counts TTS submissions made for this response.
	ChunksSpoken int
	// FirstTokenSec is the worker-reported latency to the first token.
	FirstTokenSec float64
	// FirstChunkAt is when the first TTS submission was issued, whether or
	// not it succeeded; zero when no submission was attempted.
	FirstChunkAt time.Time
	Metrics      llm.Metrics
}

// Bridge interleaves token-level model output into sentence-sized synthesis
// units, keeping playback in dictation order, with graceful fallback to the
// whole-response path.
type Bridge struct {
	gen              Generator
	speaker          Speaker
	minChunkSize     int
	sentenceBoundary bool
	logger           *Logger.Logger
	perf             *Logger.PerfLogger
}

func New(gen Generator, speaker Speaker, minChunkSize int, sentenceBoundary bool, logger *Logger.Logger, perf *Logger.PerfLogger) *Bridge {
	return &Bridge{
		gen:              gen,
		speaker:          speaker,
		minChunkSize:     minChunkSize,
		sentenceBoundary: sentenceBoundary,
		logger:           logger,
		perf:             perf,
	}
}

// Respond streams the model's reply into TTS. If the stream cannot start, or
// dies before anything was spoken, the whole-response path is tried; when
// both fail, whatever partial text accumulated is spoken exactly once.
func (b *Bridge) Respond(ctx context.Context, prompt string) (Result, error) {
	stream, err := b.gen.RespondStream(ctx, prompt, b.minChunkSize, b.sentenceBoundary)
	if err != nil {
		b.logger.Warnf("stream failed to start, using whole-response path: %v", err)
		return b.respondWhole(ctx, prompt)
	}
	return b.consume(ctx, prompt, stream)
}

func (b *Bridge) consume(ctx context.Context, prompt string, stream *llm.Stream) (Result, error) {
	var (
		res Result
		acc strings.Builder
		all strings.Builder
	)

	speak := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if res.ChunksSpoken == 0 {
			res.FirstChunkAt = time.Now()
		}
		if err := b.speaker.Speak(ctx, text); err != nil {
			b.logger.Errorf("tts submission failed: %v", err)
			return
		}
		res.ChunksSpoken++
	}

	for ev := range stream.Events() {
		switch ev.Type {
		case llm.EventIntent:
			res.Intent = ev.Content

		case llm.EventFirstToken:
			res.FirstTokenSec = ev.Time
			if b.perf != nil {
				b.perf.Record("llm_first_token", time.Duration(ev.Time*float64(time.Second)), nil)
			}

		case llm.EventChunk:
			acc.WriteString(ev.Content)
			all.WriteString(ev.Content)
			if acc.Len() >= b.minChunkSize || (b.sentenceBoundary && endsSentence(acc.String())) {
				speak(acc.String())
				acc.Reset()
			}

		case llm.EventComplete:
			if acc.Len() == 0 && res.ChunksSpoken == 0 {
				// No chunk events at all (handler short-circuit): the
				// Complete text is the whole reply and must still be spoken.
				speak(ev.Content)
			} else {
				speak(acc.String())
			}
			acc.Reset()
			res.Text = all.String()
			// The terminal event's text is authoritative for history even
			// when it disagrees with the chunk concatenation; audio already
			// queued is not recalled.
			if ev.Content != "" {
				res.Text = ev.Content
			}
			res.Metrics = ev.Metrics
			b.logger.Debugf("stream complete: %d chars, %d chunks spoken", len(res.Text), res.ChunksSpoken)
			return res, nil

		case llm.EventError:
			b.logger.Warnf("stream error after %d chunks: %s", res.ChunksSpoken, ev.Content)
			if res.ChunksSpoken == 0 {
				whole, err := b.respondWhole(ctx, prompt)
				if err == nil {
					whole.Intent = res.Intent
					return whole, nil
				}
				b.logger.Warnf("whole-response fallback failed too: %v", err)
			}
			speak(acc.String())
			acc.Reset()
			res.Text = all.String()
			return res, nil
		}
	}

	// Channel closed with no terminal event; treat as a dead transport.
	speak(acc.String())
	res.Text = all.String()
	return res, nil
}

// respondWhole is the non-streaming path: one model call, one TTS submission.
func (b *Bridge) respondWhole(ctx context.Context, prompt string) (Result, error) {
	text, metrics, err := b.gen.Respond(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	res := Result{Text: text, Metrics: metrics}
	if strings.TrimSpace(text) != "" {
		res.FirstChunkAt = time.Now()
		if err := b.speaker.Speak(ctx, strings.TrimSpace(text)); err != nil {
			b.logger.Errorf("tts submission failed: %v", err)
		} else {
			res.ChunksSpoken = 1
		}
	}
	return res, nil
}

func endsSentence(s string) bool {
	s = strings.TrimRight(s, " \t\n")
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '?', '!':
		return true
	}
	return false
}
