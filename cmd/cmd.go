// Package cmd provides CLI commands for Lectern.
//
// Commands:
//   - serve: HTTP API server for question answering
//   - ingest: load course documents into the index
//   - ask: answer a single question from the terminal
//   - stats: show indexed course analytics
//   - clear: wipe the whole index
//
// Signal handling and graceful shutdown are implemented for the server
// via context cancellation.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lectern/lectern/internal/app"
	"github.com/lectern/lectern/internal/config"
	"github.com/lectern/lectern/internal/log"
)

// Execute is the main entry point for the Lectern CLI application.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "ingest":
		return runIngest(logger)
	case "ask":
		return runAsk(logger)
	case "stats":
		return runStats(logger)
	case "clear":
		return runClear(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// bootstrap loads configuration and wires the application.
// The caller must Close the returned App.
func bootstrap(ctx context.Context, logger log.Logger) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Lectern - Retrieval-augmented QA over course materials")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lectern serve [addr]     Start HTTP API server (default: 127.0.0.1:8000)")
	fmt.Println("  lectern ingest [dir]     Index course documents from a folder")
	fmt.Println("  lectern ask <question>   Answer one question and exit")
	fmt.Println("  lectern stats            Show indexed course analytics")
	fmt.Println("  lectern clear --yes      Remove all indexed courses")
	fmt.Println("  lectern --version        Show version information")
	fmt.Println("  lectern --help           Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY           Required: Gemini API key")
	fmt.Println("  DATABASE_URL             PostgreSQL connection URL (with pgvector)")
	fmt.Println("  DEBUG                    Optional: enable debug logging")
}
