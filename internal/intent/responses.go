package intent

import (
	"encoding/json"
	"os"
	"strings"
)

// Responses holds canned reply templates from config/llm_responses.json.
// Templates may contain {name}-style placeholders.
type Responses struct {
	data map[string]string
}

// LoadResponses reads the template file; a missing or unreadable file yields
// an empty set so handlers fall back to their built-in phrasing.
func LoadResponses(path string) *Responses {
	r := &Responses{data: map[string]string{}}
	raw, err := os.ReadFile(path)
	if err != nil {
		return r
	}
	json.Unmarshal(raw, &r.data)
	return r
}

// Get returns the template for key, or fallback when absent.
func (r *Responses) Get(key, fallback string) string {
	if v, ok := r.data[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Format renders the template for key, substituting {placeholder} values.
func (r *Responses) Format(key, fallback string, args map[string]string) string {
	out := r.Get(key, fallback)
	for k, v := range args {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
