package transform

import (
	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/stage"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// ZoneDimensionProcessor derives zone members, venue and customer zones alike
type ZoneDimensionProcessor struct {
	zones  *stage.ZoneCatalog
	logger *utils.ETLLogger
}

// NewZoneDimensionProcessor creates a new ZoneDimensionProcessor backed by the zone catalog
func NewZoneDimensionProcessor(zones *stage.ZoneCatalog, logger *utils.ETLLogger) *ZoneDimensionProcessor {
	return &ZoneDimensionProcessor{zones: zones, logger: logger}
}

// Process returns the members to insert or correct, the lookup and the count of new members.
// Stored zones are corrected only when the lookup names them explicitly.
func (p *ZoneDimensionProcessor) Process(records []*models.CanonicalRecord, existing []models.ZoneDimension) ([]models.ZoneDimension, map[string]int64, int) {
	registry := newKeyRegistry()
	stored := make(map[string]models.ZoneDimension, len(existing))
	for _, member := range existing {
		registry.seed(member.ZoneCode, member.Key)
		stored[member.ZoneCode] = member
	}

	referenced := make(map[string]bool)
	for _, rec := range records {
		for _, code := range []string{rec.Zone, rec.CustomerZone} {
			if code == "" {
				continue
			}
			referenced[code] = true
			registry.want(code)
		}
	}

	fresh := registry.assign()
	lookup := registry.lookup()

	var members []models.ZoneDimension
	for _, code := range fresh {
		info := p.zones.Describe(code)
		members = append(members, models.ZoneDimension{
			Key:      lookup[code],
			ZoneCode: code,
			ZoneName: info.Name,
			City:     info.City,
		})
	}

	corrected := 0
	for _, code := range sortedKeys(referenced) {
		current, ok := stored[code]
		if !ok || !p.zones.Listed(code) {
			continue
		}
		info := p.zones.Describe(code)
		if current.ZoneName != info.Name || current.City != info.City {
			current.ZoneName, current.City = info.Name, info.City
			members = append(members, current)
			corrected++
		}
	}

	p.logger.Debug("zone dimension processed", "referenced", len(referenced), "new", len(fresh), "corrected", corrected)
	return members, lookup, len(fresh)
}
