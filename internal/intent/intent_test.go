package intent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

func TestDetectIntents(t *testing.T) {
	d := NewDetector()
	cases := []struct {
		text string
		want Intent
	}{
		{"remember to water the plants", Memory},
		{"list memories", Memory},
		{"take a note buy milk", Note},
		{"show notes", Note},
		{"find my tax documents", FileSearch},
		{"where is the report", FileSearch},
		{"what is the capital of France", WebSearch},
		{"tell me a joke", Default},
	}
	for _, c := range cases {
		if got := d.Detect(c.text); got != c.want {
			t.Errorf("Detect(%q) = %s, want %s", c.text, got, c.want)
		}
	}
}

func newNoteHandler(t *testing.T) (*NoteHandler, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.json")
	h, err := NewNoteHandler(path, LoadResponses(""))
	if err != nil {
		t.Fatalf("note handler: %v", err)
	}
	return h, path
}

func TestNoteAddPersists(t *testing.T) {
	h, path := newNoteHandler(t)

	reply, err := h.Handle("take a note buy milk")
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if reply != "Got it. Note saved." {
		t.Errorf("unexpected reply %q", reply)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read notes: %v", err)
	}
	var notes []NoteEntry
	if err := json.Unmarshal(raw, &notes); err != nil {
		t.Fatalf("parse notes: %v", err)
	}
	if len(notes) != 1 || notes[0].Text != "buy milk" {
		t.Fatalf("expected one note 'buy milk', got %+v", notes)
	}
	if _, err := time.Parse(time.RFC3339, notes[0].Timestamp); err != nil {
		t.Errorf("timestamp not ISO-8601: %q", notes[0].Timestamp)
	}
}

func TestNoteListAndDelete(t *testing.T) {
	h, _ := newNoteHandler(t)
	h.Handle("take a note: first")
	h.Handle("take a note: second")

	reply, _ := h.Handle("show notes")
	if !strings.Contains(reply, "1. first") || !strings.Contains(reply, "2. second") {
		t.Errorf("list missing entries: %q", reply)
	}

	reply, _ = h.Handle("delete note 1")
	if !strings.Contains(reply, "first") {
		t.Errorf("delete should name the removed note, got %q", reply)
	}
	if got := h.List(); len(got) != 1 || got[0].Text != "second" {
		t.Errorf("expected only 'second' left, got %+v", got)
	}

	reply, _ = h.Handle("delete note 9")
	if !strings.Contains(strings.ToLower(reply), "find") {
		t.Errorf("out-of-range delete should decline, got %q", reply)
	}
}

func newMemoryHandler(t *testing.T) (*MemoryHandler, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.log")
	h, err := NewMemoryHandler(path, LoadResponses(""))
	if err != nil {
		t.Fatalf("memory handler: %v", err)
	}
	return h, path
}

func TestMemoryDuplicatesKept(t *testing.T) {
	h, path := newMemoryHandler(t)
	h.Handle("remember to feed the cat")
	h.Handle("remember to feed the cat")

	reply, _ := h.Handle("list memories")
	if strings.Count(reply, "feed the cat") != 2 {
		t.Errorf("duplicate memories must both be listed, got %q", reply)
	}

	raw, _ := os.ReadFile(path)
	if strings.Count(string(raw), "feed the cat") != 2 {
		t.Errorf("duplicate memories must both persist, file: %q", raw)
	}
}

func TestMemoryUpdateAndRemove(t *testing.T) {
	h, _ := newMemoryHandler(t)
	h.Handle("remember to call mum")
	h.Handle("remember to pay rent")

	h.Handle("update memory 1 to call dad")
	entries := h.Entries()
	if entries[0] != "call dad" {
		t.Errorf("update failed: %v", entries)
	}

	h.Handle("remove memory 2")
	entries = h.Entries()
	if len(entries) != 1 || entries[0] != "call dad" {
		t.Errorf("remove failed: %v", entries)
	}
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry(NewDetector(), Logger.Nop())
	notes, _ := newNoteHandler(t)
	reg.Register(Note, notes)

	reply, intentName, handled := reg.Dispatch("take a note buy milk")
	if !handled {
		t.Fatal("note prompt should be handled locally")
	}
	if intentName != string(Note) {
		t.Errorf("expected intent note, got %s", intentName)
	}
	if reply != "Got it. Note saved." {
		t.Errorf("unexpected reply %q", reply)
	}

	_, intentName, handled = reg.Dispatch("tell me a story")
	if handled {
		t.Error("default prompts must fall through to the model")
	}
	if intentName != string(Default) {
		t.Errorf("expected default intent, got %s", intentName)
	}
}

func TestResponsesTemplates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "llm_responses.json")
	os.WriteFile(path, []byte(`{"memory.update": "Updated slot {index}."}`), 0o644)

	r := LoadResponses(path)
	got := r.Format("memory.update", "fallback", map[string]string{"index": "3"})
	if got != "Updated slot 3." {
		t.Errorf("template substitution failed: %q", got)
	}
	if r.Get("missing.key", "fallback") != "fallback" {
		t.Error("missing key should use the fallback")
	}
}
