package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

type claimAll struct {
	reply string
}

func (c claimAll) Dispatch(text string) (string, string, bool) {
	return c.reply, "note", true
}

func TestDispatcherShortCircuitsRespond(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", claimAll{reply: "saved"}, Logger.Nop())
	text, metrics, err := c.Respond(context.Background(), "take a note x")
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if text != "saved" {
		t.Errorf("expected handler reply, got %q", text)
	}
	if metrics["handler"] != "note" {
		t.Errorf("expected handler metric, got %+v", metrics)
	}
}

func TestDispatcherShortCircuitsStream(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", claimAll{reply: "saved"}, Logger.Nop())
	stream, err := c.RespondStream(context.Background(), "take a note x", 80, true)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	var events []TokenEvent
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	if len(events) != 2 || events[1].Type != EventComplete || events[1].Content != "saved" {
		t.Errorf("expected single complete with handler output, got %+v", events)
	}
}

func TestRespondRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(chatResponse{
			Response: "echo: " + req.Prompt,
			Metrics:  Metrics{"tokens": 3.0},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, Logger.Nop())
	text, metrics, err := c.Respond(context.Background(), "hi")
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if text != "echo: hi" {
		t.Errorf("unexpected text %q", text)
	}
	if metrics["tokens"] != 3.0 {
		t.Errorf("metrics lost: %+v", metrics)
	}
}

func TestRespondStreamOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/stream" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ChunkThreshold != 80 || !req.SentenceBoundary {
			t.Errorf("chunking options not forwarded: %+v", req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"type\":\"chunk\",\"content\":\"hey\"}\n\n")
		fmt.Fprintf(w, "data: {\"type\":\"complete\",\"content\":\"hey\"}\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, Logger.Nop())
	stream, err := c.RespondStream(context.Background(), "hi", 80, true)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	var events []TokenEvent
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	if len(events) != 2 || events[1].Type != EventComplete {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestStreamStartTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil, Logger.Nop())
	_, err := c.RespondStream(context.Background(), "hi", 80, true)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("expected TransportError, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, Logger.Nop())
	if !c.Health(context.Background()) {
		t.Error("healthy worker reported unhealthy")
	}

	dead := NewClient("http://127.0.0.1:1", nil, Logger.Nop())
	if dead.Health(context.Background()) {
		t.Error("unreachable worker reported healthy")
	}
}
