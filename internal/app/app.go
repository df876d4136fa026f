// Package app builds the pipeline's components from configuration.
// Every command goes through it so stores and clients are wired the same way.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wallet-score-lab/internal/cache"
	"wallet-score-lab/internal/config"
	"wallet-score-lab/internal/logger"
	"wallet-score-lab/internal/orchestrator"
	"wallet-score-lab/internal/provider"
	"wallet-score-lab/internal/resolver"
	"wallet-score-lab/internal/storage"
	chstore "wallet-score-lab/internal/storage/clickhouse"
	"wallet-score-lab/internal/storage/memory"
	"wallet-score-lab/internal/storage/migrations"
	pgstore "wallet-score-lab/internal/storage/postgres"
)

// Stores holds the storage implementations selected by configuration.
type Stores struct {
	Transactions storage.TransactionStore
	Features     storage.FeatureStore
	Scores       storage.ScoreStore

	// Backend names the store for features and scores: memory, postgres or clickhouse.
	Backend string

	closers []func()
}

// Close releases database connections.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects the configured stores. PostgreSQL holds transactions,
// features and scores when its DSN is set. ClickHouse, when configured, takes
// over features and scores. Anything left unconfigured is kept in memory.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stores{
		Transactions: memory.NewTransactionStore(),
		Features:     memory.NewFeatureStore(),
		Scores:       memory.NewScoreStore(),
		Backend:      "memory",
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		if cfg.Migrate {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied", zap.Strings("files", applied))
		}

		s.Transactions = pgstore.NewTransactionStore(pool)
		s.Features = pgstore.NewFeatureStore(pool)
		s.Scores = pgstore.NewScoreStore(pool)
		s.Backend = "postgres"
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := openClickhouse(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { conn.Close() })

		s.Features = chstore.NewFeatureStore(conn)
		s.Scores = chstore.NewScoreStore(conn)
		s.Backend = "clickhouse"
	}

	logger.Info("stores opened",
		zap.Bool("postgres", cfg.PostgresDSN != ""),
		zap.Bool("clickhouse", cfg.ClickhouseDSN != ""),
		zap.String("scores", s.Backend),
	)
	return s, nil
}

func openClickhouse(ctx context.Context, cfg config.StorageConfig) (*chstore.Conn, error) {
	if cfg.Migrate {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return conn, nil
	}
	conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	return conn, nil
}

// NewProvider creates the data provider client.
func NewProvider(cfg config.ProviderConfig) *provider.Client {
	return provider.NewClient(cfg.BaseURL, cfg.APIKey,
		provider.WithChainID(cfg.ChainID),
		provider.WithPageSize(cfg.PageSize),
		provider.WithMaxPages(cfg.MaxPages),
		provider.WithTimeout(cfg.Timeout),
		provider.WithMaxRetries(cfg.MaxRetries),
		provider.WithRetryDelay(cfg.RetryDelay),
		provider.WithMaxDelay(cfg.MaxDelay),
	)
}

// NewActionCache creates the resolver cache. It returns a nil cache for "none".
func NewActionCache(ctx context.Context, cfg config.ResolverConfig) (resolver.ActionCache, func(), error) {
	switch cfg.Cache {
	case "", "none":
		return nil, func() {}, nil
	case "memory":
		return cache.NewMemoryCache(cfg.CacheTTL), func() {}, nil
	case "redis":
		rc, err := cache.NewRedisCacheFromURL(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return rc, func() { rc.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown resolver cache %q", cfg.Cache)
	}
}

// Pipeline bundles an orchestrator with the resources it holds.
type Pipeline struct {
	*orchestrator.Orchestrator
	Stores *Stores

	closers []func()
}

// Close releases the cache and store connections.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}

// NewPipeline wires an orchestrator from configuration. The provider and
// resolver are only created when an API key is configured; stages that need
// them fail without one.
func NewPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	stores, err := OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{Stores: stores, closers: []func(){stores.Close}}

	opts := orchestrator.Options{
		Targets:   cfg.ContractSet(),
		Workers:   cfg.Fetch.Workers,
		BatchSize: cfg.Fetch.BatchSize,
		Paths: orchestrator.Paths{
			Wallets:   cfg.Paths.Wallets,
			Raw:       cfg.Paths.Raw,
			Decoded:   cfg.Paths.Decoded,
			Processed: cfg.Paths.Processed,
			Scores:    cfg.Paths.Scores,
		},
		TransactionStore: stores.Transactions,
		FeatureStore:     stores.Features,
		ScoreStore:       stores.Scores,
		Logger:           logger,
	}

	if cfg.RequireAPIKey() == nil {
		client := NewProvider(cfg.Provider)
		actionCache, closeCache, err := NewActionCache(ctx, cfg.Resolver)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("action cache: %w", err)
		}
		p.closers = append(p.closers, closeCache)

		opts.Source = client
		opts.Resolver = resolver.New(client, resolver.Options{
			MinInterval: cfg.Resolver.MinInterval,
			Cache:       actionCache,
			Logger:      logger,
		})
	}

	p.Orchestrator = orchestrator.New(opts)
	return p, nil
}

// Load reads and validates the configuration and builds the logger.
func Load(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}
