package transform

import (
	"sort"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// ProviderDimensionProcessor derives venue members and keeps their business
// type and chain flag current
type ProviderDimensionProcessor struct {
	logger *utils.ETLLogger
}

// NewProviderDimensionProcessor creates a new ProviderDimensionProcessor
func NewProviderDimensionProcessor(logger *utils.ETLLogger) *ProviderDimensionProcessor {
	return &ProviderDimensionProcessor{logger: logger}
}

// venueProfile is what the batch knows about a venue, taken from the latest
// record that carries each attribute
type venueProfile struct {
	name         string
	businessType string
	isChain      *bool
}

// Process returns the members to insert or correct, the lookup and the count of new members
func (p *ProviderDimensionProcessor) Process(records []*models.CanonicalRecord, existing []models.ProviderDimension) ([]models.ProviderDimension, map[string]int64, int) {
	registry := newKeyRegistry()
	stored := make(map[string]models.ProviderDimension, len(existing))
	for _, member := range existing {
		registry.seed(member.NaturalKey, member.Key)
		stored[member.NaturalKey] = member
	}

	ordered := make([]*models.CanonicalRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].IngestedBefore(ordered[j])
	})

	profiles := make(map[string]*venueProfile)
	for _, rec := range ordered {
		nk := models.FoldName(rec.Provider)
		registry.want(nk)

		profile, ok := profiles[nk]
		if !ok {
			profile = &venueProfile{}
			profiles[nk] = profile
		}
		profile.name = rec.Provider
		if rec.BusinessType != "" {
			profile.businessType = rec.BusinessType
		}
		if rec.IsChain != nil {
			profile.isChain = rec.IsChain
		}
	}

	fresh := registry.assign()
	lookup := registry.lookup()

	var members []models.ProviderDimension
	for _, nk := range fresh {
		profile := profiles[nk]
		members = append(members, models.ProviderDimension{
			Key:          lookup[nk],
			NaturalKey:   nk,
			Name:         profile.name,
			BusinessType: profile.businessType,
			IsChain:      profile.isChain,
		})
	}

	corrected := 0
	for _, nk := range sortedKeys(profiles) {
		current, ok := stored[nk]
		if !ok {
			continue
		}
		profile := profiles[nk]
		updated := current
		if profile.businessType != "" {
			updated.BusinessType = profile.businessType
		}
		if profile.isChain != nil {
			updated.IsChain = profile.isChain
		}
		if updated.BusinessType != current.BusinessType || !sameBool(updated.IsChain, current.IsChain) {
			members = append(members, updated)
			corrected++
		}
	}

	p.logger.Debug("provider dimension processed", "referenced", len(profiles), "new", len(fresh), "corrected", corrected)
	return members, lookup, len(fresh)
}

func sameBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
