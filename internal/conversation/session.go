package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

const (
	// historyTurns bounds the conversation context sent to the model.
	historyTurns   = 16
	defaultPersona = "You are Sandy — a helpful voice assistant."
)

// Turn is one utterance in the session, either the user's or the assistant's.
type Turn struct {
	Role    string
	Content string
}

// Session carries one process lifetime of conversation: persona prefix,
// memory entries, bounded history, and the per-session dialog log. Owned
// exclusively by the conversation controller.
type Session struct {
	ID         uuid.UUID
	persona    string
	history    []Turn
	dialogPath string
	logger     *Logger.Logger
}

// NewSession builds the persona from config/system_prompt.txt (default
// persona when missing) prefixed with a [MEMORY] block, and opens a
// timestamped dialog log.
func NewSession(configDir, logDir string, memories []string, logger *Logger.Logger) *Session {
	persona := defaultPersona
	if raw, err := os.ReadFile(filepath.Join(configDir, "system_prompt.txt")); err == nil {
		if text := strings.TrimSpace(string(raw)); text != "" {
			persona = text
		}
	} else {
		logger.Debugf("system prompt missing, using default persona")
	}

	if len(memories) > 0 {
		var b strings.Builder
		b.WriteString("[MEMORY]\n")
		for _, m := range memories {
			b.WriteString("- " + m + "\n")
		}
		b.WriteString("[/MEMORY]\n\n")
		persona = b.String() + persona
	}

	s := &Session{
		ID:         uuid.New(),
		persona:    persona,
		dialogPath: filepath.Join(logDir, fmt.Sprintf("dialog_%s.log", time.Now().Format("2006-01-02_15-04-05"))),
		logger:     logger,
	}
	s.appendDialog("SYSTEM", persona)
	return s
}

// Compose builds the model prompt: persona, recent history, then the new
// user text.
func (s *Session) Compose(userText string) string {
	var b strings.Builder
	b.WriteString(s.persona)
	b.WriteString("\n\n")
	for _, t := range s.recent() {
		b.WriteString(strings.ToUpper(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	b.WriteString("USER: ")
	b.WriteString(userText)
	return b.String()
}

func (s *Session) recent() []Turn {
	if len(s.history) <= historyTurns {
		return s.history
	}
	return s.history[len(s.history)-historyTurns:]
}

// AddUser records a user turn in history and the dialog log.
func (s *Session) AddUser(text string) {
	s.history = append(s.history, Turn{Role: "user", Content: text})
	s.appendDialog("USER", text)
}

// AddAssistant records an assistant turn in history and the dialog log.
func (s *Session) AddAssistant(text string) {
	s.history = append(s.history, Turn{Role: "assistant", Content: text})
	s.appendDialog("ASSISTANT", text)
}

// NoteIntent records the routed intent in the dialog log only.
func (s *Session) NoteIntent(intent string) {
	s.appendDialog("INTENT", intent)
}

// appendDialog writes one `[DD-MM-HH-MM-SS] ROLE: text` line. Dialog logging
// is best-effort.
func (s *Session) appendDialog(role, text string) {
	if err := os.MkdirAll(filepath.Dir(s.dialogPath), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(s.dialogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Debugf("dialog log open failed: %v", err)
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "[%s] %s: %s\n", time.Now().Format("02-01-15-04-05"), role, strings.TrimSpace(text))
}

// HistoryLen reports the stored turn count.
func (s *Session) HistoryLen() int {
	return len(s.history)
}
