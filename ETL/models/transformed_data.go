package models

// DimensionChanges lists the members a run inserts or corrects
type DimensionChanges struct {
	Time      []TimeDimension
	Providers []ProviderDimension
	Zones     []ZoneDimension
	Weather   []WeatherDimension
}

// Empty reports whether there is nothing to write
func (c DimensionChanges) Empty() bool {
	return len(c.Time) == 0 && len(c.Providers) == 0 && len(c.Zones) == 0 && len(c.Weather) == 0
}

// TransformedData is everything a run publishes
type TransformedData struct {
	RunID string

	// Dimensions
	Dimensions DimensionChanges

	// Facts
	ShiftFacts []ShiftFact
	OrderFacts []OrderFact

	// Audit
	Quarantine []QuarantineEntry
}
