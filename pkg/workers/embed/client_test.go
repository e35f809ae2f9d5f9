package embed

import (
	"strings"
	"testing"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
)

func TestChunkShortTextIsSinglePiece(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", Logger.Nop())
	chunks := c.Chunk("A short document.")
	if len(chunks) != 1 || chunks[0] != "A short document." {
		t.Errorf("unexpected chunks %v", chunks)
	}
}

func TestChunkSplitsOnSentences(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", Logger.Nop())
	c.maxChars = 40

	text := "First sentence here. Second sentence here. Third sentence follows now."
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if len(chunk) > 40 {
			t.Errorf("chunk exceeds limit: %d chars", len(chunk))
		}
	}
	if strings.Join(strings.Fields(strings.Join(chunks, " ")), " ") !=
		strings.Join(strings.Fields(text), " ") {
		t.Error("chunking lost text")
	}
}

func TestChunkEmptyText(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", Logger.Nop())
	if chunks := c.Chunk("   "); chunks != nil {
		t.Errorf("whitespace should produce no chunks, got %v", chunks)
	}
}
