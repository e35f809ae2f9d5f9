package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/workers/embed"
)

// fakeEmbedServer answers /embed with one constant vector per input.
func fakeEmbedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs []string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad embed request: %v", err)
		}
		out := make([][]float32, len(req.Inputs))
		for i := range out {
			out[i] = []float32{0.1, 0.2, 0.3}
		}
		json.NewEncoder(w).Encode(out)
	}))
}

func writeSearchConfig(t *testing.T, configDir string, paths []string) {
	t.Helper()
	raw, _ := json.Marshal(map[string][]string{"search_paths": paths})
	if err := os.WriteFile(filepath.Join(configDir, "search_config.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIndexBuildsArtifacts(t *testing.T) {
	srv := fakeEmbedServer(t)
	defer srv.Close()

	docs := t.TempDir()
	os.WriteFile(filepath.Join(docs, "a.txt"), []byte("Hello world."), 0o644)
	os.WriteFile(filepath.Join(docs, "b.md"), []byte("Some notes."), 0o644)
	os.WriteFile(filepath.Join(docs, "skip.bin"), []byte{0, 1, 2}, 0o644)

	configDir := t.TempDir()
	writeSearchConfig(t, configDir, []string{docs, filepath.Join(docs, "missing")})

	ix := New(configDir, embed.NewClient(srv.URL, Logger.Nop()), Logger.Nop())
	if err := ix.Run(context.Background()); err != nil {
		t.Fatalf("index run failed: %v", err)
	}

	indexDir := filepath.Join(configDir, "faiss_index")
	raw, err := os.ReadFile(filepath.Join(indexDir, "vectors.json"))
	if err != nil {
		t.Fatalf("vectors.json missing: %v", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("vectors.json malformed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 chunks (binary file skipped), got %d", len(entries))
	}
	for _, e := range entries {
		if len(e.Vector) != 3 {
			t.Errorf("entry %s has %d dims, want 3", e.Path, len(e.Vector))
		}
	}

	raw, err = os.ReadFile(filepath.Join(indexDir, "manifest.json"))
	if err != nil {
		t.Fatalf("manifest.json missing: %v", err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("manifest malformed: %v", err)
	}
	if m.Documents != 2 || m.Chunks != 2 || m.Dimensions != 3 {
		t.Errorf("manifest counts wrong: %+v", m)
	}
}

func TestNoValidPathsIsNotAnError(t *testing.T) {
	configDir := t.TempDir()
	writeSearchConfig(t, configDir, []string{"/does/not/exist"})

	ix := New(configDir, embed.NewClient("http://127.0.0.1:1", Logger.Nop()), Logger.Nop())
	if err := ix.Run(context.Background()); err != nil {
		t.Errorf("missing paths should be skipped quietly, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(configDir, "faiss_index")); !os.IsNotExist(err) {
		t.Error("no index directory may be created without valid paths")
	}
}

func TestMissingSearchConfigIsError(t *testing.T) {
	ix := New(t.TempDir(), embed.NewClient("http://127.0.0.1:1", Logger.Nop()), Logger.Nop())
	if err := ix.Run(context.Background()); err == nil {
		t.Error("missing search config should surface an error")
	}
}
