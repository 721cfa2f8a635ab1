// Package enrich runs detail-page fetches over a bounded worker pool.
package enrich

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gradmetrics/admit-harvester/internal/records"
	"github.com/gradmetrics/admit-harvester/internal/telemetry"
)

// Fetcher fetches one URL and returns its body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DetailParser parses one detail page.
type DetailParser interface {
	Parse(body string) (records.DetailFields, error)
}

// Config controls pool sizing.
type Config struct {
	// DetailURL is a format string taking the result ID, e.g.
	// "https://example.com/result/%s".
	DetailURL string
	Workers   int
}

// Enricher merges detail-page fields into a batch of records.
type Enricher struct {
	cfg     Config
	fetcher Fetcher
	parser  DetailParser
	logger  *zap.Logger
}

// New builds an Enricher.
func New(cfg Config, fetcher Fetcher, parser DetailParser, logger *zap.Logger) *Enricher {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	return &Enricher{cfg: cfg, fetcher: fetcher, parser: parser, logger: logger}
}

// Enrich fetches and parses the detail page for every record, mutating the
// slice in place. Results land at the index of the record they belong to, so
// output order always matches input order regardless of completion order. A
// failed detail fetch leaves that record with its listing-only fields; it
// never aborts the batch.
func (e *Enricher) Enrich(ctx context.Context, recs []records.Record) {
	if len(recs) == 0 {
		return
	}

	workers := e.cfg.Workers
	if workers > len(recs) {
		workers = len(recs)
	}

	jobs := make(chan int, len(recs))
	results := make([]*records.DetailFields, len(recs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				fields, err := e.fetchDetail(ctx, recs[i].ResultID)
				if err != nil {
					telemetry.DetailFetch("error")
					e.logger.Warn("detail enrichment failed",
						zap.String("result_id", recs[i].ResultID),
						zap.Error(err),
					)
					continue
				}
				telemetry.DetailFetch("ok")
				results[i] = &fields
			}
		}()
	}

	for i := range recs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i := range recs {
		if results[i] != nil {
			recs[i].MergeDetail(*results[i])
		}
	}
}

func (e *Enricher) fetchDetail(ctx context.Context, resultID string) (records.DetailFields, error) {
	body, err := e.fetcher.Fetch(ctx, fmt.Sprintf(e.cfg.DetailURL, resultID))
	if err != nil {
		return records.DetailFields{}, fmt.Errorf("fetch detail %s: %w", resultID, err)
	}
	fields, err := e.parser.Parse(body)
	if err != nil {
		return records.DetailFields{}, fmt.Errorf("parse detail %s: %w", resultID, err)
	}
	return fields, nil
}
