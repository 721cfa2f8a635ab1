// Package crawl drives pagination against the survey listing.
package crawl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gradmetrics/admit-harvester/internal/records"
	"github.com/gradmetrics/admit-harvester/internal/telemetry"
)

// Fetcher fetches one URL and returns its body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ListingParser parses one listing page into partial records.
type ListingParser interface {
	Parse(body string) ([]records.Record, error)
}

// Config controls the pagination loop.
type Config struct {
	// ListingURL is a format string taking the page number, e.g.
	// "https://example.com/survey/?page=%d".
	ListingURL string

	// SeenThreshold is how many consecutive already-seen records stop the
	// crawl. The listing is served newest-first, so a run of stale records
	// means everything below is stale too. This is an accepted heuristic,
	// not a guarantee: a new record sorted below the run would be missed
	// until a later run.
	SeenThreshold int
}

// Controller pages through the listing and collects unseen records.
type Controller struct {
	cfg     Config
	fetcher Fetcher
	parser  ListingParser
	logger  *zap.Logger
}

// New builds a Controller.
func New(cfg Config, fetcher Fetcher, parser ListingParser, logger *zap.Logger) *Controller {
	if cfg.SeenThreshold <= 0 {
		cfg.SeenThreshold = 3
	}
	return &Controller{cfg: cfg, fetcher: fetcher, parser: parser, logger: logger}
}

// Run pages through the listing from page 1, returning records whose IDs are
// not in seen, in page order. It stops when a page yields no records, or
// immediately (even mid-page) once SeenThreshold consecutive seen IDs occur.
// A listing fetch failure is page-fatal and aborts the run.
func (c *Controller) Run(ctx context.Context, seen map[string]struct{}) ([]records.Record, error) {
	var newRecords []records.Record
	consecutiveSeen := 0

	for page := 1; ; page++ {
		c.logger.Info("fetching listing page", zap.Int("page", page))

		body, err := c.fetcher.Fetch(ctx, fmt.Sprintf(c.cfg.ListingURL, page))
		if err != nil {
			return nil, fmt.Errorf("fetch listing page %d: %w", page, err)
		}
		telemetry.ListingPageFetched()

		pageRecords, err := c.parser.Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse listing page %d: %w", page, err)
		}
		if len(pageRecords) == 0 {
			c.logger.Info("listing exhausted", zap.Int("page", page))
			return newRecords, nil
		}

		for _, rec := range pageRecords {
			if _, ok := seen[rec.ResultID]; ok {
				consecutiveSeen++
				if consecutiveSeen >= c.cfg.SeenThreshold {
					c.logger.Info("stopping on consecutive seen records",
						zap.Int("threshold", c.cfg.SeenThreshold),
						zap.Int("new_records", len(newRecords)),
					)
					return newRecords, nil
				}
				continue
			}
			consecutiveSeen = 0
			newRecords = append(newRecords, rec)
		}
	}
}
