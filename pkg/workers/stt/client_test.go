package stt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

func TestShortAudioSkipsWorker(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Logger.Nop(), nil)
	// 0.45 s of audio, just under the minimum.
	text, err := c.Transcribe(context.Background(), make([]byte, MinAudioBytes-1600))
	if err != nil {
		t.Fatalf("short audio must not error: %v", err)
	}
	if text != "" {
		t.Errorf("short audio must transcribe to empty string, got %q", text)
	}
	if called {
		t.Error("worker must not be contacted for short audio")
	}
}

func TestTranscribeRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, _, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("missing audio form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		raw, _ := io.ReadAll(file)
		if string(raw[0:4]) != "RIFF" {
			t.Error("upload should be WAV-wrapped")
		}
		json.NewEncoder(w).Encode(map[string]string{"transcription": "hello world"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Logger.Nop(), nil)
	text, err := c.Transcribe(context.Background(), make([]byte, MinAudioBytes))
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected 'hello world', got %q", text)
	}
}

func TestWorkerErrorIsTranscriptionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Logger.Nop(), nil)
	_, err := c.Transcribe(context.Background(), make([]byte, MinAudioBytes))
	var te *TranscriptionError
	if !errors.As(err, &te) {
		t.Errorf("expected TranscriptionError, got %v", err)
	}
}

func TestUnreachableWorkerIsTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", Logger.Nop(), nil)
	_, err := c.Transcribe(context.Background(), make([]byte, MinAudioBytes))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("expected TransportError, got %v", err)
	}
}

func TestHealthProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Logger.Nop(), nil)
	if c.Health(context.Background()) {
		t.Error("unhealthy status must not pass the probe")
	}
}
