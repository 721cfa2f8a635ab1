// Package main wires together the admissions-results harvester binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gradmetrics/admit-harvester/internal/api"
	"github.com/gradmetrics/admit-harvester/internal/artifact"
	"github.com/gradmetrics/admit-harvester/internal/config"
	"github.com/gradmetrics/admit-harvester/internal/crawl"
	"github.com/gradmetrics/admit-harvester/internal/enrich"
	"github.com/gradmetrics/admit-harvester/internal/fetcher"
	"github.com/gradmetrics/admit-harvester/internal/logging"
	"github.com/gradmetrics/admit-harvester/internal/normalizer"
	"github.com/gradmetrics/admit-harvester/internal/pipeline"
	"github.com/gradmetrics/admit-harvester/internal/scrape"
	"github.com/gradmetrics/admit-harvester/internal/storage/postgres"
	"github.com/gradmetrics/admit-harvester/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	refreshOnce := flag.Bool("refresh", false, "Run one full refresh (crawl + normalize + sync) and exit")
	syncOnce := flag.Bool("sync", false, "Normalize any staged batch, sync the store, and exit")
	rebuild := flag.Bool("rebuild", false, "Rebuild the destination table from the cumulative artifact and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	telemetry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipe, store, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("build pipeline failed", zap.Error(err))
	}
	defer store.Close()

	switch {
	case *rebuild:
		if err := pipe.RebuildStore(ctx); err != nil {
			logger.Fatal("rebuild failed", zap.Error(err))
		}
	case *refreshOnce:
		count, err := pipe.Run(ctx)
		if err != nil {
			logger.Fatal("refresh failed", zap.Error(err))
		}
		logger.Info("refresh finished", zap.Int("new_records", count))
	case *syncOnce:
		count, err := pipe.Process(ctx)
		if err != nil {
			logger.Fatal("sync failed", zap.Error(err))
		}
		logger.Info("sync finished", zap.Int("processed", count))
	default:
		serve(ctx, cfg, pipe, logger)
	}
}

func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline.Pipeline, *postgres.Store, error) {
	fetch := fetcher.New(fetcher.Config{
		UserAgent:   cfg.Source.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxRetries:  cfg.HTTP.MaxRetries,
		BackoffBase: cfg.FetchBackoffBase(),
	}, logger)

	store := artifact.NewStore(cfg.Files.StagingPath, cfg.Files.CumulativePath, logger)

	controller := crawl.New(crawl.Config{
		ListingURL:    cfg.Source.ListingURL,
		SeenThreshold: cfg.Crawl.SeenThreshold,
	}, fetch, scrape.NewListingParser(cfg.Source.BaseURL), logger)

	enricher := enrich.New(enrich.Config{
		DetailURL: cfg.Source.DetailURL,
		Workers:   cfg.Enrich.Workers,
	}, fetch, scrape.NewDetailParser(), logger)

	processor := normalizer.NewProcessor(
		normalizer.NewClient(cfg.Normalizer.Endpoint, cfg.NormalizerTimeout()),
		store,
		logger,
	)

	dbStore, err := postgres.NewStore(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect store: %w", err)
	}

	return pipeline.New(controller, enricher, store, processor, dbStore, logger), dbStore, nil
}

func serve(ctx context.Context, cfg config.Config, pipe *pipeline.Pipeline, logger *zap.Logger) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(pipe, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("control surface listening", zap.Int("port", cfg.Server.Port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}
