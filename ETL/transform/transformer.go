package transform

import (
	"fmt"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/stage"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// Transformer turns deduplicated records into dimension changes and facts
type Transformer struct {
	logger     *utils.ETLLogger
	dimensions *DimensionBuilder
	facts      *FactBuilder
}

// NewTransformer creates a new Transformer
func NewTransformer(zones *stage.ZoneCatalog, logger *utils.ETLLogger) *Transformer {
	return &Transformer{
		logger:     logger,
		dimensions: NewDimensionBuilder(zones, logger),
		facts:      NewFactBuilder(logger),
	}
}

// Transform builds the star-schema rows for one run.
// records are the deduplicated records to publish; batch is every accepted
// record of the run, used for the weather fallback.
func (t *Transformer) Transform(runID string, records, batch []*models.CanonicalRecord, snapshot *models.DimensionSnapshot) (*models.TransformedData, *DimensionResult, error) {
	startTime := time.Now()
	t.logger.LogStageStart("transform")

	if snapshot == nil {
		snapshot = &models.DimensionSnapshot{}
	}

	dims := t.dimensions.Build(records, batch, snapshot)

	shifts, orders, err := t.facts.Build(records, dims)
	if err != nil {
		t.logger.Error("fact build failed", "error", err)
		return nil, nil, fmt.Errorf("build facts: %w", err)
	}

	data := &models.TransformedData{
		RunID:      runID,
		Dimensions: dims.Changes,
		ShiftFacts: shifts,
		OrderFacts: orders,
	}

	t.logger.LogStageComplete("transform", startTime, len(shifts)+len(orders))
	return data, dims, nil
}
