package load

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// DimensionLoader reads and upserts the four dimension tables.
// Upserts only ever touch descriptive columns; surrogate keys stay as written.
type DimensionLoader struct {
	logger *utils.ETLLogger
}

// NewDimensionLoader creates a new DimensionLoader
func NewDimensionLoader(logger *utils.ETLLogger) *DimensionLoader {
	return &DimensionLoader{logger: logger}
}

const (
	upsertTimeQuery = `
		INSERT INTO dim_time
		(time_key, full_date, year, quarter, month, month_name, day_of_month,
		day_of_week, day_name, week_of_year, is_weekend)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		month_name = VALUES(month_name),
		day_name = VALUES(day_name)`

	upsertProviderQuery = `
		INSERT INTO dim_provider (provider_key, natural_key, name, business_type, is_chain)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		name = VALUES(name),
		business_type = VALUES(business_type),
		is_chain = VALUES(is_chain)`

	upsertZoneQuery = `
		INSERT INTO dim_zone (zone_key, zone_code, zone_name, city)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		zone_name = VALUES(zone_name),
		city = VALUES(city)`

	upsertWeatherQuery = `
		INSERT INTO dim_weather (weather_key, natural_key, condition_code, label, temp_bucket)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		label = VALUES(label)`
)

// Load upserts the members of every dimension, time first
func (l *DimensionLoader) Load(ctx context.Context, tx *sql.Tx, changes models.DimensionChanges) error {
	if changes.Empty() {
		l.logger.Debug("no dimension changes to load")
		return nil
	}

	timeArgs := make([][]any, 0, len(changes.Time))
	for _, m := range changes.Time {
		timeArgs = append(timeArgs, []any{m.Key, m.FullDate, m.Year, m.Quarter, m.Month, m.MonthName,
			m.DayOfMonth, m.DayOfWeek, m.DayName, m.WeekOfYear, m.IsWeekend})
	}
	if err := execEach(ctx, tx, upsertTimeQuery, timeArgs); err != nil {
		return fmt.Errorf("load dim_time: %w", err)
	}

	providerArgs := make([][]any, 0, len(changes.Providers))
	for _, m := range changes.Providers {
		providerArgs = append(providerArgs, []any{m.Key, m.NaturalKey, m.Name, m.BusinessType, m.IsChain})
	}
	if err := execEach(ctx, tx, upsertProviderQuery, providerArgs); err != nil {
		return fmt.Errorf("load dim_provider: %w", err)
	}

	zoneArgs := make([][]any, 0, len(changes.Zones))
	for _, m := range changes.Zones {
		zoneArgs = append(zoneArgs, []any{m.Key, m.ZoneCode, m.ZoneName, m.City})
	}
	if err := execEach(ctx, tx, upsertZoneQuery, zoneArgs); err != nil {
		return fmt.Errorf("load dim_zone: %w", err)
	}

	weatherArgs := make([][]any, 0, len(changes.Weather))
	for _, m := range changes.Weather {
		weatherArgs = append(weatherArgs, []any{m.Key, m.NaturalKey, m.ConditionCode, m.Label, m.TempBucket})
	}
	if err := execEach(ctx, tx, upsertWeatherQuery, weatherArgs); err != nil {
		return fmt.Errorf("load dim_weather: %w", err)
	}

	l.logger.Debug("dimensions loaded",
		"time", len(changes.Time),
		"providers", len(changes.Providers),
		"zones", len(changes.Zones),
		"weather", len(changes.Weather))
	return nil
}

// Snapshot reads every stored member ordered by surrogate key
func (l *DimensionLoader) Snapshot(ctx context.Context, db *sql.DB) (*models.DimensionSnapshot, error) {
	snapshot := &models.DimensionSnapshot{}

	err := queryEach(ctx, db, `
		SELECT time_key, full_date, year, quarter, month, month_name, day_of_month,
		day_of_week, day_name, week_of_year, is_weekend
		FROM dim_time ORDER BY time_key`,
		func(rows *sql.Rows) error {
			var m models.TimeDimension
			if err := rows.Scan(&m.Key, &m.FullDate, &m.Year, &m.Quarter, &m.Month, &m.MonthName,
				&m.DayOfMonth, &m.DayOfWeek, &m.DayName, &m.WeekOfYear, &m.IsWeekend); err != nil {
				return err
			}
			snapshot.Time = append(snapshot.Time, m)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("read dim_time: %w", err)
	}

	err = queryEach(ctx, db, `
		SELECT provider_key, natural_key, name, business_type, is_chain
		FROM dim_provider ORDER BY provider_key`,
		func(rows *sql.Rows) error {
			var (
				m     models.ProviderDimension
				chain sql.NullBool
			)
			if err := rows.Scan(&m.Key, &m.NaturalKey, &m.Name, &m.BusinessType, &chain); err != nil {
				return err
			}
			if chain.Valid {
				m.IsChain = &chain.Bool
			}
			snapshot.Providers = append(snapshot.Providers, m)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("read dim_provider: %w", err)
	}

	err = queryEach(ctx, db, `
		SELECT zone_key, zone_code, zone_name, city
		FROM dim_zone ORDER BY zone_key`,
		func(rows *sql.Rows) error {
			var m models.ZoneDimension
			if err := rows.Scan(&m.Key, &m.ZoneCode, &m.ZoneName, &m.City); err != nil {
				return err
			}
			snapshot.Zones = append(snapshot.Zones, m)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("read dim_zone: %w", err)
	}

	err = queryEach(ctx, db, `
		SELECT weather_key, natural_key, condition_code, label, temp_bucket
		FROM dim_weather ORDER BY weather_key`,
		func(rows *sql.Rows) error {
			var m models.WeatherDimension
			if err := rows.Scan(&m.Key, &m.NaturalKey, &m.ConditionCode, &m.Label, &m.TempBucket); err != nil {
				return err
			}
			snapshot.Weather = append(snapshot.Weather, m)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("read dim_weather: %w", err)
	}

	return snapshot, nil
}

func queryEach(ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
