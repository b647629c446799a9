package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadenrich/internal/discovery"
	"github.com/sells-group/leadenrich/internal/fetch"
	"github.com/sells-group/leadenrich/internal/identity"
	"github.com/sells-group/leadenrich/internal/job"
	"github.com/sells-group/leadenrich/internal/monitor"
	"github.com/sells-group/leadenrich/internal/personalize"
	"github.com/sells-group/leadenrich/internal/resilience"
	"github.com/sells-group/leadenrich/internal/scrape"
	"github.com/sells-group/leadenrich/internal/store"
	anthropicpkg "github.com/sells-group/leadenrich/pkg/anthropic"
)

// pipelineEnv holds the initialized store, processor, and monitor shared by
// the import/process/serve/recover commands.
type pipelineEnv struct {
	Store     store.Store
	Processor *job.Processor
	Monitor   *monitor.Monitor
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "leadenrich.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, the enrichment pipeline with all its stages, the
// job processor, and the stale-job monitor. Callers should defer env.Close().
func initEnv(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	scraper := scrape.New(scrape.Options{
		UserAgent:      cfg.Scrape.UserAgent,
		AttemptTimeout: cfg.Scrape.Timeout(),
		MaxAttempts:    cfg.Scrape.MaxRetries,
		Rate:           rate.Limit(cfg.Scrape.RequestsPerSec),
	})

	// Domain discovery is optional; records without a website are scored as
	// thin when it is disabled.
	var discoverer *discovery.Discoverer
	if cfg.Discovery.Enabled {
		prober := fetch.NewHTTPClient(fetch.HTTPOptions{
			UserAgent: cfg.Scrape.UserAgent,
			Timeout:   cfg.Scrape.Timeout(),
		})
		discoverer = discovery.New(prober, cfg.Discovery.MaxParallel)
	} else {
		zap.L().Debug("domain discovery disabled")
	}

	// LLM icebreaker polish is optional; the template draft ships as-is when
	// no API key is configured.
	var polisher *personalize.Polisher
	if cfg.Anthropic.Key != "" {
		polisher = personalize.NewPolisher(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.HaikuModel, zap.L())
	} else {
		zap.L().Debug("LEADENRICH_ANTHROPIC_KEY not set, icebreaker polish disabled")
	}

	pipeline := job.NewPipeline(
		st,
		identity.NewResolver(st),
		scraper,
		discoverer,
		polisher,
		resilience.NewBreakerSet(resilience.DefaultBreakerConfig()),
		zap.L(),
	)

	jobCfg := job.DefaultConfig()
	jobCfg.MaxRetries = cfg.Job.MaxRetries
	jobCfg.RetryDelay = cfg.Job.RetryDelay()
	jobCfg.CheckpointEvery = cfg.Job.CheckpointEvery

	processor := job.NewProcessor(st, pipeline, job.NewRegistry(), jobCfg, zap.L())

	mon := monitor.New(st, processor, cfg.Monitor.StaleThreshold(), zap.L())

	return &pipelineEnv{
		Store:     st,
		Processor: processor,
		Monitor:   mon,
	}, nil
}
