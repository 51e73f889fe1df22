// Package bootstrap wires configuration into a ready set of services. It is
// shared by the HTTP server and the command line tool.
package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/soilfusion/cropadvisor/internal/artifact"
	"github.com/soilfusion/cropadvisor/internal/cache"
	"github.com/soilfusion/cropadvisor/internal/database"
	"github.com/soilfusion/cropadvisor/internal/logger"
	"github.com/soilfusion/cropadvisor/internal/repository"
	"github.com/soilfusion/cropadvisor/internal/scoring"
	"github.com/soilfusion/cropadvisor/internal/services"
	"github.com/soilfusion/cropadvisor/pkg/config"
)

// App holds the wired services and the resources behind them
type App struct {
	Services *services.Services
	Artifact *artifact.Artifact
	Cache    cache.ResultCache
	DB       *database.DB

	closers []func() error
}

// Options turn optional parts of the wiring off
type Options struct {
	// SkipHistory leaves the database unconfigured even when DATABASE_URL is set
	SkipHistory bool
	// SkipCache disables result caching
	SkipCache bool
}

// New loads the model artifact, advisory rules, cache and history store
// described by cfg. A missing or invalid model only degrades predictions;
// bad rules and an unreachable database are startup errors.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	app := &App{}

	app.Artifact = artifact.LoadOptional(ctx, cfg.ModelPath, log,
		artifact.WithRegion(cfg.AWSRegion),
		artifact.WithEndpoint(cfg.AWSEndpointURL),
	)

	engine, err := newScoringEngine(cfg, log)
	if err != nil {
		return nil, err
	}

	if !opts.SkipCache {
		app.Cache, err = newCache(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, app.Cache.Close)
	}

	var repos *repository.Repositories
	if cfg.HasDatabase() && !opts.SkipHistory {
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.closers = append(app.closers, db.Close)
		if err := db.Migrate(); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		app.DB = db
		repos = repository.NewRepositories(db.DB)
		log.Info("Prediction history enabled")
	}

	app.Services = services.NewServices(services.Deps{
		Artifact:         app.Artifact,
		Scoring:          engine,
		Cache:            app.Cache,
		Repos:            repos,
		Logger:           log,
		BatchConcurrency: cfg.BatchConcurrency,
	})
	return app, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return stderrors.Join(errs...)
}

func newScoringEngine(cfg *config.Config, log logger.Logger) (*scoring.ScoringEngine, error) {
	if cfg.AdvisoryRulesPath == "" {
		return scoring.NewScoringEngine(), nil
	}
	rules, err := scoring.LoadRuleSet(cfg.AdvisoryRulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load advisory rules: %w", err)
	}
	rules.OnError = func(rule string, err error) {
		log.Warn("Advisory rule skipped", "rule", rule, "error", err.Error())
	}
	log.Info("Advisory rules loaded", "path", cfg.AdvisoryRulesPath, "rules", rules.Len())
	return scoring.NewScoringEngine(scoring.WithAdvisoryRules(rules)), nil
}

func newCache(ctx context.Context, cfg *config.Config, log logger.Logger) (cache.ResultCache, error) {
	if !cfg.HasRedis() {
		return cache.NewMemory(cfg.CacheTTL), nil
	}
	rc, err := cache.NewRedis(cfg.RedisURL, cfg.CacheTTL, log)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn("Redis unreachable, cache lookups will miss until it recovers", "error", err.Error())
	}
	return rc, nil
}
