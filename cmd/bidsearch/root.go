package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kitbuilder587/bid-search/internal/aggregator"
	"github.com/kitbuilder587/bid-search/internal/cache"
	"github.com/kitbuilder587/bid-search/internal/cache/memory"
	rediscache "github.com/kitbuilder587/bid-search/internal/cache/redis"
	"github.com/kitbuilder587/bid-search/internal/config"
	"github.com/kitbuilder587/bid-search/internal/g2b"
	"github.com/kitbuilder587/bid-search/internal/metrics"
	"github.com/kitbuilder587/bid-search/internal/repository"
	"github.com/kitbuilder587/bid-search/internal/repository/postgres"
	"github.com/kitbuilder587/bid-search/internal/service"
)

var (
	cfgFile string
	debug   bool
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bidsearch",
		Short:         "나라장터 bid announcement search aggregator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	root.AddCommand(serveCommand())
	root.AddCommand(searchCommand())
	root.AddCommand(migrateCommand())

	return root
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	if cfgFile != "" {
		os.Setenv("CONFIG_FILE", cfgFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Log.Level = "debug"
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

// app - собранный граф зависимостей, общий для serve и search
type app struct {
	service service.SearchService
	metrics *metrics.Metrics
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type appOptions struct {
	// Registry - nil значит глобальный prometheus registry
	Registry prometheus.Registerer
	// WithLog - писать журнал поиска, если задан DATABASE_URL
	WithLog bool
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts appOptions) (*app, error) {
	a := &app{metrics: metrics.New(opts.Registry)}

	if !cfg.G2BConfigured() {
		logger.Warn("G2B_API_KEY is not set, searches will fail with not configured")
	}
	client := g2b.New(g2b.Config{
		APIKey:    cfg.G2B.APIKey,
		BaseURL:   cfg.G2B.BaseURL,
		Timeout:   cfg.G2B.Timeout,
		Endpoints: cfg.G2B.Endpoints,
	}, logger)

	c, err := newCache(ctx, cfg.Cache, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	agg := aggregator.New(aggregator.Deps{
		Fetcher: client,
		Cache:   c,
		Logger:  logger,
		Metrics: a.metrics,
		Config: aggregator.Config{
			Window:             cfg.Search.Window,
			MaxUpstreamRows:    cfg.G2B.MaxRows,
			MinSuccessfulCalls: cfg.Search.MinSuccessfulCalls,
			Pagination:         cfg.Search.Pagination,
			RetryAttempts:      cfg.Search.RetryAttempts,
			RetryDelay:         cfg.Search.RetryDelay,
			CacheTTL:           cfg.Cache.TTL,
		},
	})

	var searchLog repository.SearchLogRepository
	if opts.WithLog && cfg.Database.URL != "" {
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		db, err := postgres.New(ctx, cfg.Database.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		searchLog = postgres.NewSearchLogRepo(db)
		logger.Info("search log enabled")
	}

	a.service = service.NewSearchService(service.SearchServiceDeps{
		Aggregator: agg,
		Log:        searchLog,
		Logger:     logger,
		Metrics:    a.metrics,
	})
	return a, nil
}

func newCache(ctx context.Context, cfg config.CacheConfig, a *app) (cache.Cache, error) {
	switch cfg.Type {
	case config.CacheRedis:
		rc, err := rediscache.New(rediscache.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "bid-search:",
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { rc.Close() })
		return rc, nil
	case config.CacheNone:
		return cache.Noop{}, nil
	default:
		mc := memory.NewWithContext(ctx, memory.DefaultCleanupInterval)
		a.closers = append(a.closers, mc.Stop)
		return mc, nil
	}
}
