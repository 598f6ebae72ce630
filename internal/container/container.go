// Package container wires the default analysis stack from configuration.
package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gomarker/adapters/fit"
	"gomarker/adapters/normalize"
	"gomarker/adapters/postgres"
	"gomarker/adapters/rng"
	"gomarker/adapters/taxonomy"
	"gomarker/app"
	"gomarker/internal"
	"gomarker/internal/config"
	"gomarker/ports"
)

// Container holds the wired application dependencies and manages their
// lifecycle.
type Container struct {
	Config config.Config
	Log    *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Delegated services
	Normalizer ports.Normalizer
	Summarizer ports.Summarizer

	// Pipeline
	Service *app.MarkerService
	Batch   *app.BatchRunner

	// Repositories (nil unless a DSN is configured)
	MarkerRepo ports.MarkerRepository
}

// New wires the default service stack. The database layer stays down unless
// the configuration carries a DSN; the pipeline itself has no storage
// dependency.
func New(cfg config.Config) *Container {
	normalizer := normalize.NewService(rng.NewDeterministic())
	summarizer := taxonomy.NewService()

	service := app.NewMarkerServiceWithDefaults(
		normalizer,
		summarizer,
		fit.NewLogNormal(),
		fit.NewZIG(),
		fit.NewLimma(),
		app.Defaults{
			Transform:    ports.TransformMethod(cfg.Transform),
			Norm:         ports.NormMethod(cfg.Norm),
			Model:        app.ModelVariant(cfg.Model),
			Adjust:       ports.AdjustMethod(cfg.Adjust),
			PValueCutoff: cfg.PValueCutoff,
		},
	)

	return &Container{
		Config:     cfg,
		Log:        internal.NewDefaultLogger(),
		Normalizer: normalizer,
		Summarizer: summarizer,
		Service:    service,
		Batch:      app.NewBatchRunner(service, cfg.BatchLimit),
	}
}

// InitRepository connects the marker-result repository and runs migrations.
func (c *Container) InitRepository(ctx context.Context) error {
	if c.Config.PostgresDSN == "" {
		return fmt.Errorf("no postgres DSN configured")
	}

	db, err := postgres.Open(c.Config.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect marker repository: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("migrate marker repository: %w", err)
	}

	c.DB = db
	c.MarkerRepo = postgres.NewMarkerRepository(db)
	c.Log.Info("marker repository ready")
	return nil
}

// Close releases held resources.
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
