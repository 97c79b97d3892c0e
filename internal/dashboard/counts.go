package dashboard

import "github.com/aura-events/regreview/internal/models"

// Counts are per-status totals over the canonical records.
type Counts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// CountStatuses tallies records by status. Unknown statuses only count towards Total.
func CountStatuses(records []models.CanonicalRecord) Counts {
	c := Counts{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case models.StatusPending:
			c.Pending++
		case models.StatusApproved:
			c.Approved++
		case models.StatusRejected:
			c.Rejected++
		}
	}
	return c
}
