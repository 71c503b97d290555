package transform

import (
	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// WeatherDimensionProcessor derives weather members and decides which member
// each record points at
type WeatherDimensionProcessor struct {
	logger *utils.ETLLogger
}

// NewWeatherDimensionProcessor creates a new WeatherDimensionProcessor
func NewWeatherDimensionProcessor(logger *utils.ETLLogger) *WeatherDimensionProcessor {
	return &WeatherDimensionProcessor{logger: logger}
}

// ResolveWeather maps each record's natural key to a weather natural key.
// A record without weather takes the weather reported for its zone and date
// elsewhere in the batch (latest report wins), then UNKNOWN/UNKNOWN.
func (p *WeatherDimensionProcessor) ResolveWeather(records, batch []*models.CanonicalRecord) map[string]string {
	type zoneDay struct{ zone, date string }

	observed := make(map[zoneDay]*models.CanonicalRecord)
	for _, rec := range batch {
		if rec.Weather == "" {
			continue
		}
		k := zoneDay{rec.Zone, rec.DateKey()}
		if prev, ok := observed[k]; !ok || prev.IngestedBefore(rec) {
			observed[k] = rec
		}
	}

	resolved := make(map[string]string, len(records))
	for _, rec := range records {
		key := rec.Weather
		if key == "" {
			if obs, ok := observed[zoneDay{rec.Zone, rec.DateKey()}]; ok {
				key = obs.Weather
			} else {
				key = models.UnknownWeatherKey
			}
		}
		resolved[rec.NaturalKey()] = key
	}
	return resolved
}

// Process returns the members to insert, the lookup and the count of new members
func (p *WeatherDimensionProcessor) Process(resolved map[string]string, existing []models.WeatherDimension) ([]models.WeatherDimension, map[string]int64, int) {
	registry := newKeyRegistry()
	for _, member := range existing {
		registry.seed(member.NaturalKey, member.Key)
	}
	for _, key := range resolved {
		registry.want(key)
	}

	fresh := registry.assign()
	lookup := registry.lookup()

	members := make([]models.WeatherDimension, 0, len(fresh))
	for _, nk := range fresh {
		desc := models.ParseWeatherKey(nk)
		members = append(members, models.WeatherDimension{
			Key:           lookup[nk],
			NaturalKey:    nk,
			ConditionCode: desc.Condition,
			Label:         desc.Label(),
			TempBucket:    desc.TempBucket,
		})
	}

	p.logger.Debug("weather dimension processed", "new", len(fresh))
	return members, lookup, len(fresh)
}
