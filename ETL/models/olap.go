package models

import (
	"time"
)

// Dimension names one of the four conformed dimensions
type Dimension string

const (
	DimTime     Dimension = "time"
	DimProvider Dimension = "provider"
	DimZone     Dimension = "zone"
	DimWeather  Dimension = "weather"
)

// Dimensions lists every dimension in publication order
var Dimensions = []Dimension{DimTime, DimProvider, DimZone, DimWeather}

// TimeDimension is one calendar day
type TimeDimension struct {
	Key        int64
	FullDate   time.Time
	Year       int
	Quarter    int
	Month      int
	MonthName  string
	DayOfMonth int
	DayOfWeek  int // ISO: 1=Monday, 7=Sunday
	DayName    string
	WeekOfYear int // ISO week
	IsWeekend  bool
}

// NaturalKey returns the calendar date as YYYY-MM-DD
func (d TimeDimension) NaturalKey() string {
	return d.FullDate.Format("2006-01-02")
}

// ProviderDimension is a venue or merchant orders are picked up from
type ProviderDimension struct {
	Key          int64
	NaturalKey   string
	Name         string
	BusinessType string
	IsChain      *bool
}

// ZoneDimension is a postal code or operational zone token
type ZoneDimension struct {
	Key      int64
	ZoneCode string
	ZoneName string
	City     string
}

// WeatherDimension is a weather condition with a temperature bucket
type WeatherDimension struct {
	Key           int64
	NaturalKey    string
	ConditionCode string
	Label         string
	TempBucket    string
}

// DimensionSnapshot holds every member of every dimension as stored
type DimensionSnapshot struct {
	Time      []TimeDimension
	Providers []ProviderDimension
	Zones     []ZoneDimension
	Weather   []WeatherDimension
}

// DimensionLookups maps natural keys to surrogate keys, per dimension
type DimensionLookups map[Dimension]map[string]int64

// Resolve returns the surrogate key for a natural key
func (l DimensionLookups) Resolve(dim Dimension, naturalKey string) (int64, bool) {
	keys, ok := l[dim]
	if !ok {
		return 0, false
	}
	key, ok := keys[naturalKey]
	return key, ok
}

// ShiftFact is one worked shift
type ShiftFact struct {
	ID              int64
	NaturalKey      string
	SourceID        string
	TimeKey         int64
	ProviderKey     int64
	ZoneKey         int64
	WeatherKey      int64
	StartTime       *time.Time
	EndTime         *time.Time
	WeeklyGroup     int
	SpecialEvent    string
	Income          float64
	Tips            float64
	DistanceKm      float64
	OrderCount      int
	DurationMinutes float64
	Fingerprint     string
}

// OrderFact is one delivered order
type OrderFact struct {
	ID              int64
	NaturalKey      string
	SourceID        string
	TimeKey         int64
	ProviderKey     int64
	ZoneKey         int64
	CustomerZoneKey *int64
	WeatherKey      int64
	AcceptedAt      *time.Time
	DeliveredAt     *time.Time
	Income          float64
	Tips            float64
	DistanceKm      float64
	DeliveryMinutes float64
	Fingerprint     string
}
