package load

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// FactLoader upserts shift and order facts by natural key
type FactLoader struct {
	logger *utils.ETLLogger
}

// NewFactLoader creates a new FactLoader
func NewFactLoader(logger *utils.ETLLogger) *FactLoader {
	return &FactLoader{logger: logger}
}

const (
	upsertShiftQuery = `
		INSERT INTO fact_shift
		(natural_key, source_id, time_key, provider_key, zone_key, weather_key,
		start_time, end_time, weekly_group, special_event, income, tips,
		distance_km, order_count, duration_minutes, fingerprint, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		source_id = VALUES(source_id),
		time_key = VALUES(time_key),
		provider_key = VALUES(provider_key),
		zone_key = VALUES(zone_key),
		weather_key = VALUES(weather_key),
		start_time = VALUES(start_time),
		end_time = VALUES(end_time),
		weekly_group = VALUES(weekly_group),
		special_event = VALUES(special_event),
		income = VALUES(income),
		tips = VALUES(tips),
		distance_km = VALUES(distance_km),
		order_count = VALUES(order_count),
		duration_minutes = VALUES(duration_minutes),
		fingerprint = VALUES(fingerprint),
		run_id = VALUES(run_id)`

	upsertOrderQuery = `
		INSERT INTO fact_order
		(natural_key, source_id, time_key, provider_key, zone_key, customer_zone_key,
		weather_key, accepted_at, delivered_at, income, tips, distance_km,
		delivery_minutes, fingerprint, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		source_id = VALUES(source_id),
		time_key = VALUES(time_key),
		provider_key = VALUES(provider_key),
		zone_key = VALUES(zone_key),
		customer_zone_key = VALUES(customer_zone_key),
		weather_key = VALUES(weather_key),
		accepted_at = VALUES(accepted_at),
		delivered_at = VALUES(delivered_at),
		income = VALUES(income),
		tips = VALUES(tips),
		distance_km = VALUES(distance_km),
		delivery_minutes = VALUES(delivery_minutes),
		fingerprint = VALUES(fingerprint),
		run_id = VALUES(run_id)`
)

func (l *FactLoader) LoadShiftFacts(ctx context.Context, tx *sql.Tx, runID string, facts []models.ShiftFact) error {
	if len(facts) == 0 {
		l.logger.Debug("no shift facts to load")
		return nil
	}

	args := make([][]any, 0, len(facts))
	for _, f := range facts {
		args = append(args, []any{f.NaturalKey, f.SourceID, f.TimeKey, f.ProviderKey, f.ZoneKey, f.WeatherKey,
			f.StartTime, f.EndTime, f.WeeklyGroup, f.SpecialEvent, f.Income, f.Tips,
			f.DistanceKm, f.OrderCount, f.DurationMinutes, f.Fingerprint, runID})
	}
	if err := execEach(ctx, tx, upsertShiftQuery, args); err != nil {
		return fmt.Errorf("load fact_shift: %w", err)
	}

	l.logger.Debug("shift facts loaded", "count", len(facts))
	return nil
}

func (l *FactLoader) LoadOrderFacts(ctx context.Context, tx *sql.Tx, runID string, facts []models.OrderFact) error {
	if len(facts) == 0 {
		l.logger.Debug("no order facts to load")
		return nil
	}

	args := make([][]any, 0, len(facts))
	for _, f := range facts {
		args = append(args, []any{f.NaturalKey, f.SourceID, f.TimeKey, f.ProviderKey, f.ZoneKey, f.CustomerZoneKey,
			f.WeatherKey, f.AcceptedAt, f.DeliveredAt, f.Income, f.Tips, f.DistanceKm,
			f.DeliveryMinutes, f.Fingerprint, runID})
	}
	if err := execEach(ctx, tx, upsertOrderQuery, args); err != nil {
		return fmt.Errorf("load fact_order: %w", err)
	}

	l.logger.Debug("order facts loaded", "count", len(facts))
	return nil
}
