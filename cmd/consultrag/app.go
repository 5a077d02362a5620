package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/consultrag/internal/ai"
	"github.com/xxxsen/consultrag/internal/composer"
	"github.com/xxxsen/consultrag/internal/config"
	"github.com/xxxsen/consultrag/internal/embedcache"
	"github.com/xxxsen/consultrag/internal/escalation"
	"github.com/xxxsen/consultrag/internal/filestore"
	"github.com/xxxsen/consultrag/internal/job"
	"github.com/xxxsen/consultrag/internal/kvstore"
	"github.com/xxxsen/consultrag/internal/service"
	"github.com/xxxsen/consultrag/internal/source"
)

// app holds everything the subcommands share. source and snapshots are nil
// when the config does not declare them.
type app struct {
	cfg       *config.Config
	kv        kvstore.Store
	pool      *service.Pool
	source    source.Source
	snapshots *service.SnapshotService
	reindex   *job.ReindexJob
}

func newApp(cfg *config.Config) (*app, error) {
	kv, err := kvstore.New(cfg.Store.Type, cfg.Store.Data)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	deps, err := buildRAGDeps(cfg)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	pool, err := service.NewPool(deps, kv, cfg.Server.PoolSize)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("init service pool: %w", err)
	}
	a := &app{cfg: cfg, kv: kv, pool: pool}
	if cfg.Source != nil {
		src, err := source.New(cfg.Source.Type, cfg.Source.Data)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init source: %w", err)
		}
		a.source = src
		a.reindex = job.NewReindexJob(pool, src, cfg.Users)
	}
	if cfg.Snapshot != nil {
		files, err := filestore.New(cfg.Snapshot.Type, cfg.Snapshot.Data)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init snapshot store: %w", err)
		}
		a.snapshots = service.NewSnapshotService(files)
	}
	return a, nil
}

func (a *app) Close() {
	if a.source != nil {
		_ = a.source.Close()
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
}

func buildRAGDeps(cfg *config.Config) (service.RAGDeps, error) {
	logger := logutil.GetLogger(context.Background())
	apiKey := cfg.AI.ResolveAPIKey()
	credentials := cfg.AI.CredentialsConfigured()
	if !credentials {
		logger.Warn("no api key configured, assistant answers will be unavailable",
			zap.String("env", cfg.AI.APIKeyEnv))
	}
	breaker := func(name string) ai.BreakerConfig {
		return ai.BreakerConfig{
			Name:                name,
			ConsecutiveFailures: cfg.AI.Breaker.ConsecutiveFailures,
			OpenTimeout:         time.Duration(cfg.AI.Breaker.OpenTimeoutSec) * time.Second,
		}
	}

	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Embed.Provider, cfg.AI.Embed.ProviderArgs(apiKey))
	if err != nil {
		return service.RAGDeps{}, fmt.Errorf("init embed provider: %w", err)
	}
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.Embed.Model)
	embedder = ai.WrapBreakerEmbedder(embedder, breaker("embed:"+embedder.ModelName()))
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.EmbedCacheSize, cfg.AI.EmbedCacheTTL())

	models := append([]config.ModelConfig{cfg.AI.Generate}, cfg.AI.Fallbacks...)
	entries := make([]ai.GeneratorEntry, 0, len(models))
	for _, m := range models {
		provider, err := ai.NewProvider(m.Provider, m.ProviderArgs(apiKey))
		if err != nil {
			return service.RAGDeps{}, fmt.Errorf("init generate provider %s: %w", m.Provider, err)
		}
		name := m.Provider + "/" + m.Model
		entries = append(entries, ai.GeneratorEntry{
			Name:      name,
			Generator: ai.WrapBreakerGenerator(ai.NewGenerator(provider, m.Model), breaker("generate:"+name)),
		})
	}
	generator := entries[0].Generator
	if len(entries) > 1 {
		generator = ai.NewGroupGenerator(entries)
	}

	var limiter *rate.Limiter
	if cfg.Index.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Index.RatePerSecond), cfg.Index.Burst)
	}
	rules := escalation.DefaultRules().WithExtra(cfg.Escalation.ExtraKeywords, cfg.Escalation.ExtraHedges)
	rules.GenericAnswerChars = cfg.Escalation.GenericAnswerChars

	logger.Info("assistant configured",
		zap.String("embed_model", embedder.ModelName()),
		zap.Int("generators", len(entries)),
		zap.Int("top_k", cfg.Query.TopK),
		zap.Bool("credentials", credentials))

	return service.RAGDeps{
		Vectorizer: ai.NewVectorizer(embedder, cfg.AI.Timeout()),
		Composer: composer.New(generator, composer.Options{
			Temperature:     cfg.AI.Temperature,
			MaxOutputTokens: cfg.AI.MaxOutputTokens,
			MaxContextChars: cfg.Query.MaxContextChars,
			Timeout:         cfg.AI.Timeout(),
		}),
		Rules:   rules,
		Limiter: limiter,
		Indexer: service.IndexerOptions{
			Concurrency:   cfg.Index.Concurrency,
			SkipUnchanged: cfg.Index.SkipUnchanged,
		},
		TopK:                  cfg.Query.TopK,
		CredentialsConfigured: credentials,
	}, nil
}
