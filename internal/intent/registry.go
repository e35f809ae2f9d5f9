package intent

import (
	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

// Handler is the plugin surface for local intent handling. A handler that
// claims a prompt produces the complete reply; no model call is made.
type Handler interface {
	Claims(text string) bool
	Handle(text string) (string, error)
}

// Registry routes prompts to handlers by detected intent. Intents without a
// registered handler (or whose handler declines) fall through to the model.
type Registry struct {
	detector *Detector
	handlers map[Intent]Handler
	logger   *Logger.Logger
}

func NewRegistry(detector *Detector, logger *Logger.Logger) *Registry {
	return &Registry{
		detector: detector,
		handlers: make(map[Intent]Handler),
		logger:   logger,
	}
}

// Register binds a handler to an intent, replacing any previous binding.
func (r *Registry) Register(intent Intent, h Handler) {
	r.handlers[intent] = h
}

// Dispatch implements the LLM client's dispatcher hook: detect the intent
// and, when a registered handler claims the text, return its reply. Handler
// failures decline the prompt rather than surfacing an error mid-turn.
func (r *Registry) Dispatch(text string) (string, string, bool) {
	detected := r.detector.Detect(text)
	h, ok := r.handlers[detected]
	if !ok || !h.Claims(text) {
		return "", string(detected), false
	}
	reply, err := h.Handle(text)
	if err != nil {
		r.logger.Warnf("handler for %s failed, falling through to model: %v", detected, err)
		return "", string(detected), false
	}
	return reply, string(detected), true
}
