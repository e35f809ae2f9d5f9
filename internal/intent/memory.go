package intent

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	memClaimRe  = regexp.MustCompile(`(?i)(remember to|update memory|remove memory|list memories)`)
	memAddRe    = regexp.MustCompile(`(?i)remember to (.+)`)
	memUpdateRe = regexp.MustCompile(`(?i)update memory (\d+) to (.+)`)
	memRemoveRe = regexp.MustCompile(`(?i)remove memory (\d+)`)
	memListRe   = regexp.MustCompile(`(?i)list memories`)
)

// MemoryHandler persists memory entries as newline-delimited text in
// config/memory.log. Duplicate entries are kept; empty lines ignored.
type MemoryHandler struct {
	mu        sync.Mutex
	path      string
	memories  []string
	responses *Responses
}

func NewMemoryHandler(path string, responses *Responses) (*MemoryHandler, error) {
	h := &MemoryHandler{path: path, responses: responses}
	if err := h.load(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *MemoryHandler) load() error {
	raw, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(h.path, nil, 0o644)
	}
	if err != nil {
		return fmt.Errorf("read memory log: %w", err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			h.memories = append(h.memories, line)
		}
	}
	return nil
}

func (h *MemoryHandler) save() error {
	var content string
	if len(h.memories) > 0 {
		content = strings.Join(h.memories, "\n") + "\n"
	}
	return os.WriteFile(h.path, []byte(content), 0o644)
}

func (h *MemoryHandler) Claims(text string) bool {
	return memClaimRe.MatchString(text)
}

func (h *MemoryHandler) Handle(text string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m := memUpdateRe.FindStringSubmatch(text); m != nil {
		idx, _ := strconv.Atoi(m[1])
		idx--
		if idx < 0 || idx >= len(h.memories) {
			return h.responses.Get("memory.missing", "I don't have that memory."), nil
		}
		h.memories[idx] = strings.TrimSpace(m[2])
		if err := h.save(); err != nil {
			return "", err
		}
		return h.responses.Format("memory.update", "Memory {index} updated.",
			map[string]string{"index": strconv.Itoa(idx + 1)}), nil
	}

	if m := memRemoveRe.FindStringSubmatch(text); m != nil {
		idx, _ := strconv.Atoi(m[1])
		idx--
		if idx < 0 || idx >= len(h.memories) {
			return h.responses.Get("memory.missing", "I don't have that memory."), nil
		}
		h.memories = append(h.memories[:idx], h.memories[idx+1:]...)
		if err := h.save(); err != nil {
			return "", err
		}
		return h.responses.Format("memory.remove", "Memory {index} removed.",
			map[string]string{"index": strconv.Itoa(idx + 1)}), nil
	}

	if m := memAddRe.FindStringSubmatch(text); m != nil {
		h.memories = append(h.memories, strings.TrimSpace(m[1]))
		if err := h.save(); err != nil {
			return "", err
		}
		return h.responses.Get("memory.add", "Okay, I'll remember that."), nil
	}

	if memListRe.MatchString(text) {
		if len(h.memories) == 0 {
			return h.responses.Get("memory.empty", "I don't have any memories yet."), nil
		}
		var b strings.Builder
		b.WriteString(h.responses.Get("memory.list_prefix", "Here is what I remember:"))
		for i, m := range h.memories {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, m))
		}
		return b.String(), nil
	}

	return "", fmt.Errorf("memory request not understood: %q", text)
}

// Entries returns a copy of the current memory list, used to build the
// session's persona prefix.
func (h *MemoryHandler) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.memories))
	copy(out, h.memories)
	return out
}
