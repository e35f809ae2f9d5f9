package intent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NoteEntry is one saved note.
type NoteEntry struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

var (
	noteClaimRe  = regexp.MustCompile(`(?i)\b(note|notes|take a note|delete note|show notes)\b`)
	noteTakeRe   = regexp.MustCompile(`(?i)take a note[:\-]?\s*(.+)`)
	noteListRe   = regexp.MustCompile(`(?i)(show|list) notes`)
	noteDeleteRe = regexp.MustCompile(`(?i)delete note (\d+)`)
)

// NoteHandler persists notes as a JSON array in config/notes.json.
type NoteHandler struct {
	mu        sync.Mutex
	path      string
	notes     []NoteEntry
	responses *Responses
}

func NewNoteHandler(path string, responses *Responses) (*NoteHandler, error) {
	h := &NoteHandler{path: path, responses: responses}
	if err := h.load(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *NoteHandler) load() error {
	raw, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		h.notes = []NoteEntry{}
		return h.save()
	}
	if err != nil {
		return fmt.Errorf("read notes: %w", err)
	}
	if err := json.Unmarshal(raw, &h.notes); err != nil {
		return fmt.Errorf("parse notes: %w", err)
	}
	return nil
}

func (h *NoteHandler) save() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(h.notes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.path, raw, 0o644)
}

func (h *NoteHandler) Claims(text string) bool {
	return noteClaimRe.MatchString(text)
}

func (h *NoteHandler) Handle(text string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m := noteTakeRe.FindStringSubmatch(text); m != nil {
		h.notes = append(h.notes, NoteEntry{
			Text:      strings.TrimSpace(m[1]),
			Timestamp: time.Now().Format(time.RFC3339),
		})
		if err := h.save(); err != nil {
			return "", err
		}
		return h.responses.Get("note.add", "Got it. Note saved."), nil
	}

	if noteListRe.MatchString(text) {
		if len(h.notes) == 0 {
			return h.responses.Get("note.empty", "You have no notes yet."), nil
		}
		var b strings.Builder
		b.WriteString(h.responses.Get("note.list_prefix", "Here are your notes:"))
		for i, n := range h.notes {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, n.Text))
		}
		return b.String(), nil
	}

	if m := noteDeleteRe.FindStringSubmatch(text); m != nil {
		idx, _ := strconv.Atoi(m[1])
		idx--
		if idx < 0 || idx >= len(h.notes) {
			return h.responses.Get("note.missing", "Couldn't find that note to delete."), nil
		}
		removed := h.notes[idx]
		h.notes = append(h.notes[:idx], h.notes[idx+1:]...)
		if err := h.save(); err != nil {
			return "", err
		}
		return h.responses.Format("note.delete", "Deleted note: {text}",
			map[string]string{"text": removed.Text}), nil
	}

	return h.responses.Get("note.unknown", "I'm not sure what to do with that note request."), nil
}

// List returns a copy of the current notes.
func (h *NoteHandler) List() []NoteEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]NoteEntry, len(h.notes))
	copy(out, h.notes)
	return out
}
