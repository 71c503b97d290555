package transform

import (
	"errors"
	"fmt"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// ErrUnresolvedDimensionReference means a fact points at a natural key the
// dimension build did not produce. It fails the whole batch.
var ErrUnresolvedDimensionReference = errors.New("unresolved dimension reference")

// FactBuilder turns records into shift and order facts
type FactBuilder struct {
	logger *utils.ETLLogger
}

// NewFactBuilder creates a new FactBuilder
func NewFactBuilder(logger *utils.ETLLogger) *FactBuilder {
	return &FactBuilder{logger: logger}
}

// Build emits one fact per record. Every required reference must resolve.
func (b *FactBuilder) Build(records []*models.CanonicalRecord, dims *DimensionResult) ([]models.ShiftFact, []models.OrderFact, error) {
	startTime := time.Now()
	b.logger.LogStageStart("facts")

	var (
		shifts []models.ShiftFact
		orders []models.OrderFact
	)
	for _, rec := range records {
		refs, err := resolveRefs(rec, dims)
		if err != nil {
			return nil, nil, err
		}

		switch rec.Kind {
		case models.KindOrder:
			orders = append(orders, models.OrderFact{
				NaturalKey:      rec.NaturalKey(),
				SourceID:        rec.SourceID,
				TimeKey:         refs.time,
				ProviderKey:     refs.provider,
				ZoneKey:         refs.zone,
				CustomerZoneKey: refs.customerZone,
				WeatherKey:      refs.weather,
				AcceptedAt:      optionalTime(rec.Start),
				DeliveredAt:     optionalTime(rec.End),
				Income:          rec.Measures.Income,
				Tips:            rec.Measures.Tips,
				DistanceKm:      rec.Measures.DistanceKm,
				DeliveryMinutes: rec.Measures.DurationMinutes,
				Fingerprint:     rec.Fingerprint(),
			})
		default:
			shifts = append(shifts, models.ShiftFact{
				NaturalKey:      rec.NaturalKey(),
				SourceID:        rec.SourceID,
				TimeKey:         refs.time,
				ProviderKey:     refs.provider,
				ZoneKey:         refs.zone,
				WeatherKey:      refs.weather,
				StartTime:       optionalTime(rec.Start),
				EndTime:         optionalTime(rec.End),
				WeeklyGroup:     rec.WeeklyGroup,
				SpecialEvent:    rec.SpecialEvent,
				Income:          rec.Measures.Income,
				Tips:            rec.Measures.Tips,
				DistanceKm:      rec.Measures.DistanceKm,
				OrderCount:      rec.Measures.OrderCount,
				DurationMinutes: rec.Measures.DurationMinutes,
				Fingerprint:     rec.Fingerprint(),
			})
		}
	}

	b.logger.LogStageComplete("facts", startTime, len(shifts)+len(orders))
	return shifts, orders, nil
}

type factRefs struct {
	time, provider, zone, weather int64
	customerZone                  *int64
}

func resolveRefs(rec *models.CanonicalRecord, dims *DimensionResult) (factRefs, error) {
	var refs factRefs

	resolve := func(dim models.Dimension, nk string) (int64, error) {
		key, ok := dims.Lookups.Resolve(dim, nk)
		if !ok {
			return 0, fmt.Errorf("%w: %s %q for record %s", ErrUnresolvedDimensionReference, dim, nk, rec.RawRef)
		}
		return key, nil
	}

	var err error
	if refs.time, err = resolve(models.DimTime, rec.DateKey()); err != nil {
		return refs, err
	}
	if refs.provider, err = resolve(models.DimProvider, models.FoldName(rec.Provider)); err != nil {
		return refs, err
	}
	if refs.zone, err = resolve(models.DimZone, rec.Zone); err != nil {
		return refs, err
	}
	if rec.CustomerZone != "" {
		key, err := resolve(models.DimZone, rec.CustomerZone)
		if err != nil {
			return refs, err
		}
		refs.customerZone = &key
	}

	weather, ok := dims.WeatherKeys[rec.NaturalKey()]
	if !ok {
		return refs, fmt.Errorf("%w: no weather resolved for record %s", ErrUnresolvedDimensionReference, rec.RawRef)
	}
	if refs.weather, err = resolve(models.DimWeather, weather); err != nil {
		return refs, err
	}
	return refs, nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
