package models

import (
	"regexp"
	"strconv"
	"strings"
)

// Weather condition codes
const (
	WeatherClear   = "CLEAR"
	WeatherCloudy  = "CLOUDY"
	WeatherRain    = "RAIN"
	WeatherStorm   = "STORM"
	WeatherWind    = "WIND"
	WeatherFog     = "FOG"
	WeatherSnow    = "SNOW"
	WeatherUnknown = "UNKNOWN"
)

// Temperature buckets
const (
	TempCold    = "COLD"
	TempMild    = "MILD"
	TempHot     = "HOT"
	TempUnknown = "UNKNOWN"
)

// UnknownWeatherKey is the member records resolve to when nothing is known
const UnknownWeatherKey = WeatherUnknown + "/" + TempUnknown

var weatherLabels = map[string]string{
	WeatherClear:   "Clear",
	WeatherCloudy:  "Cloudy",
	WeatherRain:    "Rain",
	WeatherStorm:   "Storm",
	WeatherWind:    "Wind",
	WeatherFog:     "Fog",
	WeatherSnow:    "Snow",
	WeatherUnknown: "Unknown",
}

// Checked in order; "tormenta" must win over "lluvia" in "lluvia y tormenta"
var weatherSynonyms = []struct {
	code  string
	words []string
}{
	{WeatherStorm, []string{"tormenta", "storm", "thunder", "electrica"}},
	{WeatherSnow, []string{"nieve", "snow", "granizo", "hail"}},
	{WeatherRain, []string{"lluvia", "llovizna", "lluvioso", "rain", "drizzle", "chaparron"}},
	{WeatherFog, []string{"niebla", "neblina", "fog", "mist", "bruma"}},
	{WeatherWind, []string{"viento", "ventoso", "wind"}},
	{WeatherCloudy, []string{"nublado", "nubes", "cloud", "overcast", "cubierto"}},
	{WeatherClear, []string{"soleado", "despejado", "sol", "sunny", "clear", "bueno"}},
}

var temperaturePattern = regexp.MustCompile(`(-?\d+(?:[.,]\d+)?)\s*°?\s*[cC]?`)

// WeatherDescriptor is a classified weather observation
type WeatherDescriptor struct {
	Condition  string
	TempBucket string
}

// Key returns the weather natural key, CONDITION/BUCKET
func (w WeatherDescriptor) Key() string {
	return w.Condition + "/" + w.TempBucket
}

// Label returns a display label for the descriptor
func (w WeatherDescriptor) Label() string {
	label := weatherLabels[w.Condition]
	if label == "" {
		label = weatherLabels[WeatherUnknown]
	}
	switch w.TempBucket {
	case TempCold:
		return label + ", cold"
	case TempMild:
		return label + ", mild"
	case TempHot:
		return label + ", hot"
	}
	return label
}

// TempBucketFor buckets a temperature in degrees Celsius
func TempBucketFor(celsius float64) string {
	switch {
	case celsius < 10:
		return TempCold
	case celsius < 25:
		return TempMild
	default:
		return TempHot
	}
}

// ClassifyWeather maps free weather text and an optional temperature to a
// descriptor. A temperature embedded in the text ("Lluvia 8°C") is used when
// temp is nil. ok is false when neither the text nor temp carries anything.
func ClassifyWeather(text string, temp *float64) (WeatherDescriptor, bool) {
	folded := FoldName(text)
	if folded == "" && temp == nil {
		return WeatherDescriptor{}, false
	}

	desc := WeatherDescriptor{Condition: WeatherUnknown, TempBucket: TempUnknown}
	for _, syn := range weatherSynonyms {
		if containsWord(folded, syn.words) {
			desc.Condition = syn.code
			break
		}
	}

	if temp == nil {
		if m := temperaturePattern.FindStringSubmatch(folded); m != nil {
			if v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64); err == nil {
				temp = &v
			}
		}
	}
	if temp != nil {
		desc.TempBucket = TempBucketFor(*temp)
	}

	return desc, true
}

// ParseWeatherKey splits a CONDITION/BUCKET natural key
func ParseWeatherKey(key string) WeatherDescriptor {
	condition, bucket, found := strings.Cut(key, "/")
	if !found {
		return WeatherDescriptor{Condition: WeatherUnknown, TempBucket: TempUnknown}
	}
	return WeatherDescriptor{Condition: condition, TempBucket: bucket}
}

func containsWord(folded string, words []string) bool {
	for _, token := range strings.FieldsFunc(folded, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		for _, w := range words {
			if strings.HasPrefix(token, w) {
				return true
			}
		}
	}
	return false
}
