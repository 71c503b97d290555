package transform

import (
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/stage"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// DimensionResult is the output of the dimension build for one run
type DimensionResult struct {
	// Lookups resolve natural keys to surrogate keys, stored and new members alike
	Lookups models.DimensionLookups

	// Changes holds new members and descriptive corrections to publish
	Changes models.DimensionChanges

	NewMembers map[models.Dimension]int

	// WeatherKeys maps a record's natural key to its weather natural key
	WeatherKeys map[string]string
}

// DimensionBuilder derives all four dimensions from the records of a run
type DimensionBuilder struct {
	timeDim     *TimeDimensionProcessor
	providerDim *ProviderDimensionProcessor
	zoneDim     *ZoneDimensionProcessor
	weatherDim  *WeatherDimensionProcessor
	logger      *utils.ETLLogger
}

// NewDimensionBuilder creates a new DimensionBuilder
func NewDimensionBuilder(zones *stage.ZoneCatalog, logger *utils.ETLLogger) *DimensionBuilder {
	return &DimensionBuilder{
		timeDim:     NewTimeDimensionProcessor(logger),
		providerDim: NewProviderDimensionProcessor(logger),
		zoneDim:     NewZoneDimensionProcessor(zones, logger),
		weatherDim:  NewWeatherDimensionProcessor(logger),
		logger:      logger,
	}
}

// Build assigns surrogate keys to every natural key the records reference.
// batch is every accepted record of the run and feeds the zone/date weather
// fallback. The caller must hold the run lock from snapshot load to publication.
func (b *DimensionBuilder) Build(records, batch []*models.CanonicalRecord, snapshot *models.DimensionSnapshot) *DimensionResult {
	startTime := time.Now()
	b.logger.LogStageStart("dimensions")

	result := &DimensionResult{
		Lookups:    make(models.DimensionLookups),
		NewMembers: make(map[models.Dimension]int),
	}

	var n int
	result.Changes.Time, result.Lookups[models.DimTime], n = b.timeDim.Process(records, snapshot.Time)
	result.NewMembers[models.DimTime] = n

	result.Changes.Providers, result.Lookups[models.DimProvider], n = b.providerDim.Process(records, snapshot.Providers)
	result.NewMembers[models.DimProvider] = n

	result.Changes.Zones, result.Lookups[models.DimZone], n = b.zoneDim.Process(records, snapshot.Zones)
	result.NewMembers[models.DimZone] = n

	result.WeatherKeys = b.weatherDim.ResolveWeather(records, batch)
	result.Changes.Weather, result.Lookups[models.DimWeather], n = b.weatherDim.Process(result.WeatherKeys, snapshot.Weather)
	result.NewMembers[models.DimWeather] = n

	members := len(result.Changes.Time) + len(result.Changes.Providers) + len(result.Changes.Zones) + len(result.Changes.Weather)
	b.logger.LogStageComplete("dimensions", startTime, members)
	return result
}
