package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/workers/embed"
)

const (
	indexDirName  = "faiss_index"
	maxFileBytes  = 1 << 20 // skip anything over 1 MiB
	walkersPerRun = 4
)

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".rst": true, ".org": true,
	".go": true, ".py": true, ".js": true, ".ts": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".csv": true, ".log": true, ".html": true, ".xml": true,
}

type searchConfig struct {
	SearchPaths []string `json:"search_paths"`
}

// Entry is one embedded chunk in the persisted index.
type Entry struct {
	Path       string       `json:"path"`
	ChunkIndex int          `json:"chunk_index"`
	Text       string       `json:"text"`
	Vector     embed.Vector `json:"vector"`
}

type manifest struct {
	CreatedAt  string   `json:"created_at"`
	Documents  int      `json:"documents"`
	Chunks     int      `json:"chunks"`
	Dimensions int      `json:"dimensions"`
	Paths      []string `json:"paths"`
}

// Indexer builds the local document index used by file search. It reads the
// configured directories, embeds chunked file contents through the embedding
// worker, and persists the result under config/faiss_index/.
type Indexer struct {
	configDir string
	embedder  *embed.Client
	logger    *Logger.Logger
}

func New(configDir string, embedder *embed.Client, logger *Logger.Logger) *Indexer {
	return &Indexer{configDir: configDir, embedder: embedder, logger: logger}
}

// Run executes one full build. Missing search paths are skipped; no valid
// path at all aborts without error, matching the original tool.
func (ix *Indexer) Run(ctx context.Context) error {
	paths, err := ix.loadSearchPaths()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		ix.logger.Infof("no valid search paths configured, nothing to index")
		return nil
	}

	files := ix.collectFiles(ctx, paths)
	ix.logger.Infof("indexing %d files from %d paths", len(files), len(paths))

	var (
		mu      sync.Mutex
		entries []Entry
		docs    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(walkersPerRun)
	for _, file := range files {
		g.Go(func() error {
			fileEntries, err := ix.embedFile(gctx, file)
			if err != nil {
				ix.logger.Warnf("skipping %s: %v", file, err)
				return nil
			}
			mu.Lock()
			entries = append(entries, fileEntries...)
			docs++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(entries) == 0 {
		ix.logger.Infof("no documents produced any chunks, index not written")
		return nil
	}
	return ix.persist(entries, docs, paths)
}

func (ix *Indexer) loadSearchPaths() ([]string, error) {
	raw, err := os.ReadFile(filepath.Join(ix.configDir, "search_config.json"))
	if err != nil {
		return nil, fmt.Errorf("read search config: %w", err)
	}
	var cfg searchConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse search config: %w", err)
	}

	var valid []string
	for _, p := range cfg.SearchPaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			valid = append(valid, p)
		} else {
			ix.logger.Warnf("search path skipped: %s", p)
		}
	}
	return valid, nil
}

func (ix *Indexer) collectFiles(ctx context.Context, paths []string) []string {
	var files []string
	for _, root := range paths {
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil || d.IsDir() {
				return nil
			}
			if !textExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if info, err := d.Info(); err != nil || info.Size() > maxFileBytes {
				return nil
			}
			files = append(files, path)
			return nil
		})
	}
	return files
}

func (ix *Indexer) embedFile(ctx context.Context, path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	chunks := ix.embedder.Chunk(string(raw))
	if len(chunks) == 0 {
		return nil, nil
	}
	vectors, err := ix.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = Entry{Path: path, ChunkIndex: i, Text: chunk, Vector: vectors[i]}
	}
	return entries, nil
}

func (ix *Indexer) persist(entries []Entry, docs int, paths []string) error {
	dir := filepath.Join(ix.configDir, indexDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "vectors.json"), raw, 0o644); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	m := manifest{
		CreatedAt: time.Now().Format(time.RFC3339),
		Documents: docs,
		Chunks:    len(entries),
		Paths:     paths,
	}
	if len(entries) > 0 {
		m.Dimensions = len(entries[0].Vector)
	}
	raw, err = json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), raw, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	ix.logger.Infof("index written: %d documents, %d chunks", docs, len(entries))
	return nil
}
