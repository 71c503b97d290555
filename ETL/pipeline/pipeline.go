package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/config"
	"github.com/LilVoxy/delivery_analytics/ETL/load"
	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/stage"
	"github.com/LilVoxy/delivery_analytics/ETL/transform"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
	"github.com/LilVoxy/delivery_analytics/processor"
)

// Pipeline runs one batch from raw records to a published star schema
type Pipeline struct {
	stager      *stage.Stager
	transformer *transform.Transformer
	loads       *load.LoadManager
	logger      *utils.ETLLogger
}

// New wires the stages from configuration
func New(cfg config.ETLConfig, loader load.Loader, logger *utils.ETLLogger) (*Pipeline, error) {
	zones, err := stage.NewZoneCatalog(cfg.Zones)
	if err != nil {
		return nil, fmt.Errorf("zone catalog: %w", err)
	}

	rules, err := stage.RulesFromConfig(cfg.Validation, zones)
	if err != nil {
		return nil, fmt.Errorf("validation rules: %w", err)
	}

	normalizer := stage.NewNormalizer(
		stage.DefaultSpreadsheetAliases().Merge(cfg.Aliases.Spreadsheet),
		stage.DefaultOCRAliases().Merge(cfg.Aliases.OCR),
		zones,
	)

	return &Pipeline{
		stager:      stage.NewStager(normalizer, stage.NewGate(rules), cfg.Workers, logger),
		transformer: transform.NewTransformer(zones, logger),
		loads:       load.NewLoadManager(loader, logger),
		logger:      logger,
	}, nil
}

// Run stages, deduplicates, builds and publishes one batch. The returned
// summary is filled as far as the run got, also on failure.
func (p *Pipeline) Run(ctx context.Context, runID string, raws []models.RawRecord) (*models.RunSummary, error) {
	summary := models.NewRunSummary(runID, time.Now())
	logger := p.logger.With("run_id", runID)

	err := p.run(ctx, runID, raws, summary)
	summary.EndTime = time.Now()
	if err != nil {
		summary.Status = models.RunStatusFailed
		summary.ErrorMessage = err.Error()
		logger.Error("run failed", "error", err)
		return summary, err
	}

	summary.Status = models.RunStatusSuccess
	logger.LogETLComplete(summary.StartTime, summary.Accepted, summary.Rejected, summary.ShiftFacts+summary.OrderFacts)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, raws []models.RawRecord, summary *models.RunSummary) error {
	summary.TotalRecords = len(raws)

	staged, err := p.stager.Stage(ctx, raws)
	if err != nil {
		return err
	}
	summary.Accepted = len(staged.Accepted)
	summary.Rejected = len(staged.Rejected)
	for _, v := range staged.Rejected {
		summary.RejectedByReason[v.Verdict.Reason]++
	}

	// surrogate keys are derived from stored state, so everything from
	// reading it to publishing happens under the run lock
	unlock, err := p.loads.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	state, err := p.loads.ReadState(ctx)
	if err != nil {
		return err
	}

	dedup := stage.Deduplicate(staged.Accepted, state.Fingerprints)
	summary.Superseded = len(dedup.Superseded)
	summary.Unchanged = dedup.Unchanged
	for _, sup := range dedup.Superseded {
		p.logger.Info("duplicate superseded",
			"natural_key", sup.NaturalKey,
			"kept", sup.Winner.RawRef,
			"dropped", sup.Loser.RawRef)
	}

	data, dims, err := p.transformer.Transform(runID, dedup.Records, staged.Accepted, state.Dimensions)
	if err != nil {
		return err
	}

	data.Quarantine, err = quarantineEntries(runID, staged, dedup.Superseded, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := p.loads.Load(ctx, data); err != nil {
		return err
	}

	for dim, n := range dims.NewMembers {
		summary.NewMembers[dim] = n
	}
	summary.ShiftFacts = len(data.ShiftFacts)
	summary.OrderFacts = len(data.OrderFacts)
	summary.Quarantined = len(data.Quarantine)
	return nil
}

// quarantineEntries builds the audit rows for rejected and superseded records
func quarantineEntries(runID string, staged *stage.StageResult, superseded []models.SupersededRecord, recordedAt time.Time) ([]models.QuarantineEntry, error) {
	rawOf := make(map[*models.CanonicalRecord]models.RawRecord, len(staged.Validated))
	for _, v := range staged.Validated {
		if v.Record != nil {
			rawOf[v.Record] = v.Raw
		}
	}

	entries := make([]models.QuarantineEntry, 0, len(staged.Rejected)+len(superseded))
	for _, v := range staged.Rejected {
		entry, err := newEntry(runID, v.Raw, v.Verdict.Reason, v.Verdict.Detail, recordedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	for _, sup := range superseded {
		detail := fmt.Sprintf("superseded by %s (raw %s)", sup.Winner.RawRef, sup.Winner.Ref.RawHash)
		entry, err := newEntry(runID, rawOf[sup.Loser], models.ReasonDuplicateSuperseded, detail, recordedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func newEntry(runID string, raw models.RawRecord, reason models.RejectReason, detail string, recordedAt time.Time) (models.QuarantineEntry, error) {
	payload, err := processor.EncodeQuarantinePayload(processor.QuarantinePayload{
		Source:  string(raw.Source),
		File:    raw.File,
		Locator: raw.Locator,
		Fields:  raw.Fields,
	})
	if err != nil {
		return models.QuarantineEntry{}, fmt.Errorf("quarantine %s: %w", raw.Ref(), err)
	}
	return models.QuarantineEntry{
		RunID:      runID,
		RawRef:     raw.Ref(),
		RawHash:    raw.Hash(),
		Source:     raw.Source,
		Reason:     reason,
		Detail:     detail,
		Payload:    payload,
		RecordedAt: recordedAt,
	}, nil
}
