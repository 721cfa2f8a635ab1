// Package pipeline orchestrates the harvest stages end to end.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gradmetrics/admit-harvester/internal/artifact"
	"github.com/gradmetrics/admit-harvester/internal/crawl"
	"github.com/gradmetrics/admit-harvester/internal/enrich"
	"github.com/gradmetrics/admit-harvester/internal/normalizer"
	"github.com/gradmetrics/admit-harvester/internal/scrape"
	"github.com/gradmetrics/admit-harvester/internal/storage/postgres"
	"github.com/gradmetrics/admit-harvester/internal/telemetry"
)

// Syncer is the durable-store boundary the pipeline drives.
type Syncer interface {
	Sync(ctx context.Context, rows []postgres.Row) (int64, error)
	Rebuild(ctx context.Context, rows []postgres.Row) error
}

// Pipeline wires the crawl, enrichment, staging, normalization and sync
// stages together. Only the artifact store and the destination table carry
// state across runs; every stage in between is a pure transform.
type Pipeline struct {
	controller *crawl.Controller
	enricher   *enrich.Enricher
	store      *artifact.Store
	processor  *normalizer.Processor
	syncer     Syncer
	logger     *zap.Logger
}

// New builds a Pipeline.
func New(
	controller *crawl.Controller,
	enricher *enrich.Enricher,
	store *artifact.Store,
	processor *normalizer.Processor,
	syncer Syncer,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		controller: controller,
		enricher:   enricher,
		store:      store,
		processor:  processor,
		syncer:     syncer,
		logger:     logger,
	}
}

// Refresh runs the incremental crawl: recompute the seen-ID set, collect
// unseen records, enrich them from detail pages, clean them, and overwrite
// the staging artifact. It returns the number of new records staged.
func (p *Pipeline) Refresh(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { telemetry.ObserveRefresh(time.Since(start)) }()

	seen, err := p.store.SeenIDs()
	if err != nil {
		return 0, fmt.Errorf("load seen ids: %w", err)
	}

	newRecords, err := p.controller.Run(ctx, seen)
	if err != nil {
		return 0, fmt.Errorf("crawl listing: %w", err)
	}
	telemetry.NewRecords(len(newRecords))
	if len(newRecords) == 0 {
		p.logger.Info("no new records found")
		return 0, nil
	}

	p.enricher.Enrich(ctx, newRecords)
	scrape.CleanBatch(newRecords)

	if err := p.store.WriteStaging(newRecords); err != nil {
		return 0, fmt.Errorf("stage batch: %w", err)
	}

	p.logger.Info("refresh complete", zap.Int("new_records", len(newRecords)))
	return len(newRecords), nil
}

// Process runs the downstream half: normalize the staged batch into the
// cumulative artifact, then sync the whole artifact into the destination
// table incrementally. It returns the number of records normalized.
func (p *Pipeline) Process(ctx context.Context) (int, error) {
	processed, err := p.processor.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("normalize staged batch: %w", err)
	}

	rows, err := postgres.LoadRows(p.store, p.logger)
	if err != nil {
		return processed, fmt.Errorf("load cumulative rows: %w", err)
	}
	if _, err := p.syncer.Sync(ctx, rows); err != nil {
		return processed, fmt.Errorf("sync rows: %w", err)
	}
	return processed, nil
}

// RebuildStore drops and reloads the destination table from the cumulative
// artifact in one transaction.
func (p *Pipeline) RebuildStore(ctx context.Context) error {
	rows, err := postgres.LoadRows(p.store, p.logger)
	if err != nil {
		return fmt.Errorf("load cumulative rows: %w", err)
	}
	if err := p.syncer.Rebuild(ctx, rows); err != nil {
		return fmt.Errorf("rebuild table: %w", err)
	}
	return nil
}

// Run executes a full refresh followed by normalize-and-sync, the sequence
// the operator's "pull data" action triggers.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	staged, err := p.Refresh(ctx)
	if err != nil {
		return 0, err
	}
	if staged == 0 {
		return 0, nil
	}
	if _, err := p.Process(ctx); err != nil {
		return staged, err
	}
	return staged, nil
}
