package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// Stager runs normalization and validation over a batch
type Stager struct {
	normalizer *Normalizer
	gate       *Gate
	workers    int
	logger     *utils.ETLLogger
}

// NewStager creates a stager using at most workers goroutines
func NewStager(normalizer *Normalizer, gate *Gate, workers int, logger *utils.ETLLogger) *Stager {
	if workers < 1 {
		workers = 1
	}
	return &Stager{
		normalizer: normalizer,
		gate:       gate,
		workers:    workers,
		logger:     logger,
	}
}

// StageResult holds one verdict per input record, in input order
type StageResult struct {
	Validated []models.ValidatedRecord
	Accepted  []*models.CanonicalRecord
	Rejected  []models.ValidatedRecord
}

// Stage normalizes and validates every record. Per-record problems become
// rejections; only cancellation of ctx fails the call.
func (s *Stager) Stage(ctx context.Context, raws []models.RawRecord) (*StageResult, error) {
	startTime := time.Now()
	s.logger.LogStageStart("stage")

	validated := make([]models.ValidatedRecord, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range raws {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			validated[i] = s.stageOne(raws[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stage records: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("stage records: %w", err)
	}

	result := &StageResult{Validated: validated}
	for i := range validated {
		if validated[i].Verdict.Accepted {
			result.Accepted = append(result.Accepted, validated[i].Record)
		} else {
			result.Rejected = append(result.Rejected, validated[i])
		}
	}

	s.logger.LogStageComplete("stage", startTime, len(result.Accepted))
	return result, nil
}

func (s *Stager) stageOne(raw models.RawRecord) models.ValidatedRecord {
	rec, warnings, err := s.normalizer.Normalize(raw)
	for _, w := range warnings {
		s.logger.Warn("value coerced", "ref", raw.Ref(), "detail", w)
	}
	if err != nil {
		detail := err.Error()
		var nerr *NormalizationError
		if !errors.As(err, &nerr) {
			detail = "unexpected: " + detail
		}
		return models.ValidatedRecord{
			Raw:     raw,
			Verdict: models.Verdict{Reason: models.ReasonNormalizationError, Detail: detail},
		}
	}

	verdict := s.gate.Check(rec)
	if !verdict.Accepted {
		s.logger.Debug("record rejected", "ref", raw.Ref(), "reason", verdict.Reason, "detail", verdict.Detail)
	}
	return models.ValidatedRecord{Raw: raw, Record: rec, Verdict: verdict}
}
