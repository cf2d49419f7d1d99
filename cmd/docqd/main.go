// Command docqd runs the document question answering daemon: upload
// PDFs, ask questions, get cited answers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fyrsmithlabs/docqd/internal/assembler"
	"github.com/fyrsmithlabs/docqd/internal/chunker"
	"github.com/fyrsmithlabs/docqd/internal/config"
	"github.com/fyrsmithlabs/docqd/internal/embeddings"
	"github.com/fyrsmithlabs/docqd/internal/extractor"
	"github.com/fyrsmithlabs/docqd/internal/generation"
	"github.com/fyrsmithlabs/docqd/internal/httpapi"
	"github.com/fyrsmithlabs/docqd/internal/logging"
	"github.com/fyrsmithlabs/docqd/internal/pipeline"
	"github.com/fyrsmithlabs/docqd/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docqd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (default ~/.config/docqd/config.yaml)")
	flag.Parse()

	// Optional; local development keeps API keys in .env.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	embedder, err := embeddings.NewProvider(cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("initializing embeddings: %w", err)
	}

	store, err := vectorstore.NewStore(cfg, embedder.Dimension(), logger)
	if err != nil {
		embedder.Close() //nolint:errcheck
		return fmt.Errorf("initializing vector store: %w", err)
	}

	generator, err := generation.NewGenerator(cfg.Generation)
	if err != nil {
		embedder.Close() //nolint:errcheck
		store.Close()    //nolint:errcheck
		return fmt.Errorf("initializing generator: %w", err)
	}

	chunk, err := newChunker(cfg.Pipeline)
	if err != nil {
		return fmt.Errorf("initializing chunker: %w", err)
	}

	asm, err := assembler.New(cfg.Pipeline.ContextBudget)
	if err != nil {
		return fmt.Errorf("initializing assembler: %w", err)
	}

	service, err := pipeline.NewService(
		extractor.NewPDF(),
		chunk,
		embedder,
		store,
		asm,
		generator,
		pipeline.Options{TopK: cfg.Pipeline.TopK},
		logger,
	)
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}
	defer service.Close() //nolint:errcheck

	server, err := httpapi.New(service, cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newChunker(cfg config.PipelineConfig) (chunker.Chunker, error) {
	switch cfg.Chunking {
	case "split":
		return chunker.NewSplitChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	default:
		return chunker.NewPageChunker(), nil
	}
}
