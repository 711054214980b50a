// Command gatherr runs the acquisition core: indexer search
// orchestration, release decisioning, and download dispatch, with a
// scheduled automatic search sweep.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gatherr/gatherr/internal/autosearch"
	"github.com/gatherr/gatherr/internal/config"
	"github.com/gatherr/gatherr/internal/database"
	"github.com/gatherr/gatherr/internal/downloader"
	"github.com/gatherr/gatherr/internal/indexer/cache"
	"github.com/gatherr/gatherr/internal/indexer/grab"
	"github.com/gatherr/gatherr/internal/indexer/ratelimit"
	"github.com/gatherr/gatherr/internal/indexer/registry"
	"github.com/gatherr/gatherr/internal/indexer/scoring"
	"github.com/gatherr/gatherr/internal/indexer/search"
	"github.com/gatherr/gatherr/internal/indexer/status"
	"github.com/gatherr/gatherr/internal/logger"
	"github.com/gatherr/gatherr/internal/metadata/tmdb"
	"github.com/gatherr/gatherr/internal/quality"
	"github.com/gatherr/gatherr/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "gatherr:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Recent log entries are buffered so an attached surface can replay
	// them; without one the buffer just sits there.
	logStream := logger.NewLogBroadcaster(nil, 500)
	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Path:        cfg.Logging.Path,
		ExtraWriter: logStream,
	})
	defer log.Close()

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	store := database.NewStore(db.Conn())

	statusSvc := status.NewService(store, status.BackoffConfig{
		FailureThreshold:  cfg.Backoff.FailureThreshold,
		InitialBackoff:    cfg.Backoff.InitialBackoff(),
		BackoffMultiplier: cfg.Backoff.Multiplier,
		MaxBackoff:        cfg.Backoff.MaxBackoff(),
	}, log.Logger)
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		IndexerRequestsPerMinute: cfg.RateLimit.IndexerRequestsPerMinute,
		HostRequestsPerMinute:    cfg.RateLimit.HostRequestsPerMinute,
		GrabsPerHour:             cfg.RateLimit.GrabsPerHour,
	}, log.Logger)
	releaseCache := cache.NewReleaseCache(cfg.Search.CacheTTL(), log.Logger)
	profiles := quality.NewRegistry()
	enricher := scoring.NewEnricher(profiles, log.Logger)

	searchSvc := search.NewService(statusSvc, limiter, releaseCache, enricher, log.Logger)
	searchSvc.SetHistoryStore(store)
	if cfg.TMDB.APIKey != "" {
		searchSvc.SetResolver(tmdb.NewClient(tmdb.Config{
			APIKey:  cfg.TMDB.APIKey,
			BaseURL: cfg.TMDB.BaseURL,
			Timeout: cfg.TMDB.TimeoutSeconds,
		}, log.Logger))
	} else {
		log.Warn().Msg("No TMDB API key configured; searches run without metadata enrichment")
	}

	indexers := registry.New(store, log.Logger)
	clients := downloader.NewRegistry()

	grabSvc := grab.NewService(store, clients, log.Logger)
	grabSvc.SetIndexerProvider(indexers)
	grabSvc.SetStatusService(statusSvc)
	grabSvc.SetRateLimiter(limiter)
	grabSvc.SetStreamDir(cfg.Download.StreamDir)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if cfg.Autosearch.Enabled {
		auto := autosearch.NewService(
			autosearch.NewFileWantedProvider(cfg.Autosearch.WantedFile),
			indexers, searchSvc, grabSvc,
			autosearch.Config{
				Interval:       cfg.Autosearch.Interval(),
				MaxItemsPerRun: cfg.Autosearch.MaxItemsPerRun,
				SearchLimit:    cfg.Search.MaxResults,
			}, log.Logger)
		if err := auto.Register(sched); err != nil {
			return fmt.Errorf("failed to register autosearch task: %w", err)
		}
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info().Str("database", cfg.Database.Path).Msg("gatherr started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("Shutting down")
	if err := sched.Stop(); err != nil {
		log.Warn().Err(err).Msg("Scheduler shutdown failed")
	}
	return nil
}
