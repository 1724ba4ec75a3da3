package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/lectern/lectern/api"
	"github.com/lectern/lectern/internal/log"
)

// runServe initializes the application and starts the HTTP API server.
// When docs_dir is configured, any documents in it are indexed before
// the server starts accepting requests.
func runServe(logger log.Logger) error {
	addr, err := parseServeAddr()
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting lectern server", "version", Version)

	a, err := bootstrap(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if a.Config.DocsDir != "" {
		courses, chunks, err := a.Ingestor.AddCourseFolder(ctx, a.Config.DocsDir)
		if err != nil {
			logger.Warn("startup ingestion failed", "dir", a.Config.DocsDir, "error", err)
		} else if courses > 0 {
			logger.Info("startup ingestion complete", "courses", courses, "chunks", chunks)
		}
	}

	srv := api.NewServer(a.Assistant, a.Index, a.Sessions, a.DBPool, logger)
	return srv.Run(ctx, addr)
}
