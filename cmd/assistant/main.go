package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/TrueAndyT/voice-ass/internal/app"
	"github.com/TrueAndyT/voice-ass/internal/config"
	"github.com/TrueAndyT/voice-ass/internal/indexer"
	"github.com/TrueAndyT/voice-ass/pkg/Logger"
	"github.com/TrueAndyT/voice-ass/pkg/workers/embed"
)

// Entry point for the voice assistant host process. With --index the
// document indexer runs instead and the microphone is never opened.
func main() {
	runIndex := flag.Bool("index", false, "build the document search index and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := Logger.New(cfg.Debug, cfg.LogDir)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *runIndex {
		ix := indexer.New(cfg.ConfigDir,
			embed.NewClient(cfg.Workers.EmbedURL, logger.Component("embed")),
			logger.Component("indexer"))
		if err := ix.Run(ctx); err != nil {
			logger.Errorf("indexing failed: %v", err)
			os.Exit(1)
		}
		return
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	// Teardown must run on every exit path, signals included; the signal
	// context unwinds Run and this defer finishes the job.
	defer a.Shutdown()

	logger.Infof("voice assistant starting up")
	if err := a.Run(ctx); err != nil {
		logger.Errorf("fatal: %v", err)
		a.Shutdown()
		os.Exit(1)
	}
	logger.Infof("voice assistant shutting down")
}
