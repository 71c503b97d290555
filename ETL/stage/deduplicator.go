package stage

import (
	"sort"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
)

// DedupResult is what survives duplicate resolution
type DedupResult struct {
	// Records are new or changed, sorted by natural key
	Records []*models.CanonicalRecord

	// Superseded lists every duplicate that lost to a later submission
	Superseded []models.SupersededRecord

	New       int
	Updated   int
	Unchanged int
}

// Deduplicate collapses accepted records sharing a natural key. The record
// ingested last wins; each earlier one is reported as superseded. Winners whose
// fingerprint equals the published one are counted as unchanged and dropped.
func Deduplicate(accepted []*models.CanonicalRecord, published map[string]string) DedupResult {
	groups := make(map[string][]*models.CanonicalRecord)
	for _, rec := range accepted {
		key := rec.NaturalKey()
		groups[key] = append(groups[key], rec)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var result DedupResult
	for _, key := range keys {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].IngestedBefore(group[j])
		})

		winner := group[len(group)-1]
		for _, loser := range group[:len(group)-1] {
			result.Superseded = append(result.Superseded, models.SupersededRecord{
				NaturalKey: key,
				Winner:     winner,
				Loser:      loser,
			})
		}

		fingerprint, seen := published[key]
		switch {
		case !seen:
			result.New++
		case fingerprint == winner.Fingerprint():
			result.Unchanged++
			continue
		default:
			result.Updated++
		}
		result.Records = append(result.Records, winner)
	}
	return result
}
