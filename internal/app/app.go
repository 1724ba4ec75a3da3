// Package app wires the application together: configuration, tracing,
// database, Genkit, index, tools and the assistant.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/config"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/ingest"
	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/tools"
)

// App holds the initialized application components. Create with Setup;
// release with Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Index     *index.Store
	Sessions  *session.Store
	Registry  *tools.Registry
	Assistant *chat.Assistant
	Ingestor  *ingest.Ingestor

	dbCleanup   func()
	otelCleanup func()
}

// Close releases all resources held by the App. Safe to call on a
// partially-initialized App.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
