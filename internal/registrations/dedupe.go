package registrations

import (
	"cmp"
	"slices"

	"github.com/aura-events/regreview/internal/models"
)

// Deduplicate groups registrations by identity key. The newest record of each key becomes the
// primary and the older ones its history, newest first. Records with an empty key stand alone.
// The result is ordered newest primary first; ties keep input order.
func Deduplicate(records []models.Registration) []models.CanonicalRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b models.Registration) int {
		return cmp.Compare(b.SubmissionTime, a.SubmissionTime)
	})

	out := make([]models.CanonicalRecord, 0, len(sorted))
	primaries := make(map[string]int)
	for _, reg := range sorted {
		key := reg.IdentityKey()
		if key == "" {
			out = append(out, models.CanonicalRecord{Registration: reg, History: []models.Registration{}})
			continue
		}
		idx, seen := primaries[key]
		if !seen {
			primaries[key] = len(out)
			out = append(out, models.CanonicalRecord{Registration: reg, History: []models.Registration{}})
			continue
		}
		out[idx].History = append(out[idx].History, reg)
		out[idx].HasDuplicates = true
	}
	return out
}
