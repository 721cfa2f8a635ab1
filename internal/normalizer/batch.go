package normalizer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gradmetrics/admit-harvester/internal/artifact"
	"github.com/gradmetrics/admit-harvester/internal/telemetry"
)

// Normalizer is the per-record standardization call.
type Normalizer interface {
	Normalize(ctx context.Context, text string) (Result, error)
}

// Processor runs the staged batch through the normalizer and commits it to
// the cumulative artifact.
type Processor struct {
	client Normalizer
	store  *artifact.Store
	logger *zap.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(client Normalizer, store *artifact.Store, logger *zap.Logger) *Processor {
	return &Processor{client: client, store: store, logger: logger}
}

// Run normalizes every staged record and appends the whole batch to the
// cumulative artifact atomically, then resets the staging artifact. A failed
// call leaves that record's normalized fields nil; the record is still
// appended, so one bad call never loses a record. An absent or empty staging
// artifact means no work: Run returns 0 with no side effects.
func (p *Processor) Run(ctx context.Context) (int, error) {
	recs, err := p.store.ReadStaging()
	if err != nil {
		if errors.Is(err, artifact.ErrNoStaging) || errors.Is(err, artifact.ErrEmptyStaging) {
			p.logger.Info("no staged records to normalize")
			return 0, nil
		}
		return 0, err
	}

	for i := range recs {
		text := recs[i].Program + ", " + recs[i].University

		result, err := p.client.Normalize(ctx, text)
		if err != nil {
			telemetry.NormalizerCall("error")
			p.logger.Warn("normalizer call failed; marking record unavailable",
				zap.String("result_id", recs[i].ResultID),
				zap.Error(err),
			)
			recs[i].NormalizedProgram = nil
			recs[i].NormalizedUniversity = nil
			continue
		}
		telemetry.NormalizerCall("ok")
		program := result.StandardizedProgram
		university := result.StandardizedUniversity
		recs[i].NormalizedProgram = &program
		recs[i].NormalizedUniversity = &university
	}

	if err := p.store.AppendCumulative(recs); err != nil {
		return 0, fmt.Errorf("commit normalized batch: %w", err)
	}
	if err := p.store.ResetStaging(); err != nil {
		return 0, fmt.Errorf("reset staging artifact: %w", err)
	}

	p.logger.Info("normalized batch committed", zap.Int("records", len(recs)))
	return len(recs), nil
}
