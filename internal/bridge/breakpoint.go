package bridge

import (
	"context"
	"strings"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/workers/llm"
)

// BreakPoint finds where to split text for synthesis, searching right to
// left: sentence-ending punctuation first, then clause punctuation, then a
// space, else the end of the buffer. Returns the index one past the chosen
// character.
func BreakPoint(text string) int {
	for _, set := range []string{".!?", ",:;", " "} {
		if i := strings.LastIndexAny(text, set); i >= 0 {
			return i + 1
		}
	}
	return len(text)
}

// TokenSpeaker is the alternative token-streaming client: it re-chunks raw
// chunk events itself using the break-point rule, instead of trusting the
// worker's server-side chunking.
type TokenSpeaker struct {
	speaker   Speaker
	chunkSize int
	logger    *Logger.Logger
}

func NewTokenSpeaker(speaker Speaker, chunkSize int, logger *Logger.Logger) *TokenSpeaker {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &TokenSpeaker{speaker: speaker, chunkSize: chunkSize, logger: logger}
}

// SpeakStream drains a token stream, splitting at break points whenever the
// buffer is long enough or contains a sentence end. Returns the full text.
func (t *TokenSpeaker) SpeakStream(ctx context.Context, stream *llm.Stream) (string, error) {
	var buf, all strings.Builder

	emit := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if err := t.speaker.Speak(ctx, text); err != nil {
			t.logger.Errorf("tts submission failed: %v", err)
		}
	}

	for ev := range stream.Events() {
		switch ev.Type {
		case llm.EventChunk:
			buf.WriteString(ev.Content)
			all.WriteString(ev.Content)
			s := buf.String()
			if len(s) >= t.chunkSize || strings.ContainsAny(s, ".!?\n") {
				cut := BreakPoint(s)
				emit(s[:cut])
				buf.Reset()
				buf.WriteString(strings.TrimSpace(s[cut:]))
			}

		case llm.EventComplete:
			emit(buf.String())
			if ev.Content != "" {
				return ev.Content, nil
			}
			return all.String(), nil

		case llm.EventError:
			emit(buf.String())
			return all.String(), nil
		}
	}
	emit(buf.String())
	return all.String(), nil
}
