// Package app assembles the editor's components from configuration: the
// persistence backend (local sqlite or remote Postgres), the document
// store, the generation service and the renderer.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ultrasop/ultrasop/db"
	"github.com/ultrasop/ultrasop/internal/config"
	"github.com/ultrasop/ultrasop/internal/generate"
	"github.com/ultrasop/ultrasop/internal/log"
	"github.com/ultrasop/ultrasop/internal/render"
	"github.com/ultrasop/ultrasop/internal/store"
	"github.com/ultrasop/ultrasop/internal/store/postgres"
	"github.com/ultrasop/ultrasop/internal/store/sqlite"
)

// App holds the assembled components and their teardown state.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Store    *store.Store
	Gen      *generate.Service
	Renderer *render.Renderer

	pool  *pgxpool.Pool
	local *sqlite.Backend
}

// Setup builds the application. userID selects the remote workspace when
// Postgres is enabled; with an empty userID the editor stays on the local
// store.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger, userID string) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Renderer: render.New()}

	ok := false
	defer func() {
		if !ok {
			a.Close(ctx)
		}
	}()

	backend, err := a.provideBackend(ctx, userID)
	if err != nil {
		return nil, err
	}

	a.Store, err = store.New(ctx, backend, logger)
	if err != nil {
		return nil, err
	}

	a.Gen = a.provideGenerate(ctx)

	ok = true
	return a, nil
}

// Close flushes pending saves and releases connections.
func (a *App) Close(ctx context.Context) {
	if a.Store != nil {
		a.Store.Close(ctx)
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.local != nil {
		_ = a.local.Close()
	}
}

func (a *App) provideBackend(ctx context.Context, userID string) (store.Backend, error) {
	if a.Config.Postgres.Enabled && userID != "" {
		url := a.Config.PostgresURL()
		if err := db.Migrate(url); err != nil {
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.pool = pool
		a.Logger.Info("using remote document store", "user", userID)
		return postgres.New(pool, userID, a.Logger)
	}

	path := a.Config.Local.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	local, err := sqlite.New(path, a.Logger)
	if err != nil {
		return nil, err
	}
	a.local = local
	a.Logger.Debug("using local document store", "path", path)
	return local, nil
}

// provideGenerate wires the model backend when an API key is present. The
// service still works without one: generation reports ErrNotConfigured and
// callers use the heuristic fallback.
func (a *App) provideGenerate(ctx context.Context) *generate.Service {
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		a.Logger.Debug("no model API key, generation disabled")
		return generate.New(nil, a.Config.Generate.Model, a.Logger)
	}
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		a.Logger.Warn("model backend initialization failed, generation disabled")
	}
	return generate.New(g, a.Config.Generate.Model, a.Logger)
}
