package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/voyagen/folio/internal/arena"
	"github.com/voyagen/folio/internal/cache"
	"github.com/voyagen/folio/internal/config"
	"github.com/voyagen/folio/internal/embedding"
	"github.com/voyagen/folio/internal/sanity"
	"github.com/voyagen/folio/internal/server"
	"github.com/voyagen/folio/internal/service"
	"github.com/voyagen/folio/internal/shuffle"
	"github.com/voyagen/folio/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use environment")
	syncSlug := flag.String("sync", "", "Snapshot the given channel and exit (requires DATABASE_URL)")
	syncPer := flag.Int("per", 0, "Page size for -sync drains (default 100)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger, *syncSlug, *syncPer); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, syncSlug string, syncPer int) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.Timeout}

	var api arena.API = arena.NewClient(
		arena.WithBaseURL(cfg.ArenaBaseURL),
		arena.WithAccessToken(cfg.ArenaAccessToken),
		arena.WithHTTPClient(httpClient),
		arena.WithUserAgent(cfg.UserAgent),
		arena.WithRateLimit(cfg.ArenaRateLimit),
	)
	if cfg.ArenaAccessToken == "" {
		logger.Info("are.na requests are anonymous (ARENA_ACCESS_TOKEN not set)")
	}

	cms := sanity.NewClient(cfg.SanityProjectID, cfg.SanityDataset,
		sanity.WithAPIVersion(cfg.SanityAPIVersion),
		sanity.WithCDN(cfg.SanityUseCDN),
		sanity.WithHTTPClient(httpClient),
		sanity.WithUserAgent(cfg.UserAgent),
	)

	// Connect to Redis if REDIS_URL is configured.
	var rds *cache.Redis
	if cfg.CacheEnabled() {
		var err error
		rds, err = connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rds.Close()
		api = arena.NewCachedClient(api, rds, logger)
		logger.Info("redis connected (caching enabled)")
	} else {
		logger.Info("redis disabled (REDIS_URL not set)")
	}

	deps := server.Deps{Arena: api, CMS: cms, Seed: shuffle.NewSeed()}

	if cfg.SnapshotsEnabled() {
		if err := store.EnsurePgvector(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("pgvector: %w", err)
		}
		if err := store.RunMigrations(cfg.DatabaseURL, "file://"+migrationsDir()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pg.Close()

		var opts []service.SyncerOption
		if cfg.SearchEnabled() {
			embedder := embedding.NewClient(cfg.VoyageAPIKey,
				embedding.WithModel(cfg.VoyageModel),
				embedding.WithHTTPClient(httpClient),
			)
			opts = append(opts, service.WithEmbeddings(embedder, pg))
			deps.Search = service.NewSearcher(embedder, pg)
			logger.Info("semantic search enabled (VoyageAI)", "model", embedder.Model())
		} else {
			logger.Info("semantic search disabled (VOYAGE_API_KEY not set)")
		}

		deps.Store = pg
		deps.Syncer = service.NewSyncer(api, pg, rds, logger, opts...)
		logger.Info("snapshots enabled")
	} else {
		logger.Info("snapshots disabled (DATABASE_URL not set)")
	}

	if syncSlug != "" {
		if deps.Syncer == nil {
			return fmt.Errorf("-sync requires DATABASE_URL")
		}
		res, err := deps.Syncer.Sync(ctx, syncSlug, syncPer)
		if err != nil {
			return fmt.Errorf("sync %s: %w", syncSlug, err)
		}
		fmt.Printf("%s: %d blocks saved in %s\n", res.Slug, res.Blocks, res.Duration)
		return nil
	}

	// Background snapshot worker, only when jobs can be queued.
	if deps.Syncer != nil && rds != nil {
		go deps.Syncer.Work(ctx)
	}

	srv := server.New(cfg, deps, logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func connectRedis(ctx context.Context, url string) (*cache.Redis, error) {
	rds, err := cache.New(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if err := rds.Ping(ctx); err != nil {
		_ = rds.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rds, nil
}

// migrationsDir finds migrations/ in the working directory, falling back
// to the directory of the executable.
func migrationsDir() string {
	abs, err := filepath.Abs("migrations")
	if err != nil {
		abs = "migrations"
	}
	if _, err := os.Stat(abs); err != nil {
		if exe, e := os.Executable(); e == nil {
			abs = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	return abs
}
