package stage

import (
	"fmt"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/config"
	"github.com/LilVoxy/delivery_analytics/ETL/models"
)

// Rules are the thresholds the gate checks records against
type Rules struct {
	MinDate      time.Time
	MaxDaysAhead int
	Ceilings     config.CeilingsConfig
	Zones        *ZoneCatalog

	// Now is the clock used for the upper date bound
	Now func() time.Time
}

// RulesFromConfig builds gate rules from the validation section
func RulesFromConfig(cfg config.ValidationConfig, zones *ZoneCatalog) (Rules, error) {
	minDate, err := cfg.MinDateValue()
	if err != nil {
		return Rules{}, err
	}
	return Rules{
		MinDate:      minDate,
		MaxDaysAhead: cfg.MaxDaysAhead,
		Ceilings:     cfg.Ceilings,
		Zones:        zones,
		Now:          time.Now,
	}, nil
}

// Gate applies the validation rules in order; the first failure decides
type Gate struct {
	rules Rules
}

// NewGate creates a new Gate enforcing rules
func NewGate(rules Rules) *Gate {
	if rules.Now == nil {
		rules.Now = time.Now
	}
	return &Gate{rules: rules}
}

// Check returns the verdict for one canonical record. It never fails the run.
func (g *Gate) Check(rec *models.CanonicalRecord) models.Verdict {
	checks := []func(*models.CanonicalRecord) (models.RejectReason, string){
		g.checkRequired,
		g.checkDate,
		g.checkMeasures,
		g.checkZone,
	}
	for _, check := range checks {
		if reason, detail := check(rec); reason != "" {
			return models.Verdict{Reason: reason, Detail: detail}
		}
	}
	return models.Verdict{Accepted: true}
}

func (g *Gate) checkRequired(rec *models.CanonicalRecord) (models.RejectReason, string) {
	switch {
	case rec.Date.IsZero():
		return models.ReasonMissingField, "date is empty"
	case rec.Provider == "":
		return models.ReasonMissingField, "provider is empty"
	case rec.Zone == "":
		return models.ReasonMissingField, "zone is empty"
	}
	return "", ""
}

func (g *Gate) checkDate(rec *models.CanonicalRecord) (models.RejectReason, string) {
	now := g.rules.Now().UTC()
	latest := time.Date(now.Year(), now.Month(), now.Day()+g.rules.MaxDaysAhead, 0, 0, 0, 0, time.UTC)
	if rec.Date.Before(g.rules.MinDate) || rec.Date.After(latest) {
		return models.ReasonImplausibleDate, fmt.Sprintf("%s outside [%s, %s]",
			rec.DateKey(), g.rules.MinDate.Format("2006-01-02"), latest.Format("2006-01-02"))
	}
	return "", ""
}

func (g *Gate) checkMeasures(rec *models.CanonicalRecord) (models.RejectReason, string) {
	m := rec.Measures
	c := g.rules.Ceilings
	measures := []struct {
		name    string
		value   float64
		ceiling float64
	}{
		{"income", m.Income, c.Income},
		{"tips", m.Tips, c.Tips},
		{"distance_km", m.DistanceKm, c.DistanceKm},
		{"order_count", float64(m.OrderCount), c.OrderCount},
		{"duration_minutes", m.DurationMinutes, c.DurationMinutes},
	}
	for _, ms := range measures {
		if ms.value < 0 || ms.value > ms.ceiling {
			return models.ReasonOutOfRange, fmt.Sprintf("%s %.2f outside [0, %.2f]", ms.name, ms.value, ms.ceiling)
		}
	}
	return "", ""
}

func (g *Gate) checkZone(rec *models.CanonicalRecord) (models.RejectReason, string) {
	if !g.rules.Zones.Recognized(rec.Zone) {
		return models.ReasonUnknownZone, fmt.Sprintf("zone %q is not a postal code or known zone", rec.Zone)
	}
	if rec.CustomerZone != "" && !g.rules.Zones.Recognized(rec.CustomerZone) {
		return models.ReasonUnknownZone, fmt.Sprintf("customer zone %q is not a postal code or known zone", rec.CustomerZone)
	}
	return "", ""
}
