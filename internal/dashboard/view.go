package dashboard

import (
	"slices"
	"strings"
	"time"

	"github.com/aura-events/regreview/internal/models"
)

// Filter selects records by status. FilterAll matches every record.
type Filter string

const FilterAll Filter = "all"

// ParseFilter validates a status filter value.
func ParseFilter(s string) (Filter, error) {
	f := Filter(s)
	if f == FilterAll || models.Status(s).Valid() {
		return f, nil
	}
	return "", ErrInvalidFilter
}

// Matches reports whether r passes the status filter.
func (f Filter) Matches(r models.CanonicalRecord) bool {
	return f == FilterAll || string(r.Status) == string(f)
}

// MatchesQuery reports whether query occurs, case-insensitively, in the first name, last name
// or email of r. An empty query matches everything.
func MatchesQuery(r models.CanonicalRecord, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(r.FirstName), q) ||
		strings.Contains(strings.ToLower(r.LastName), q) ||
		strings.Contains(strings.ToLower(r.Email), q)
}

// FilterRecords keeps the records matching both the query and the status filter, in order.
func FilterRecords(records []models.CanonicalRecord, query string, filter Filter) []models.CanonicalRecord {
	out := make([]models.CanonicalRecord, 0, len(records))
	for _, r := range records {
		if filter.Matches(r) && MatchesQuery(r, query) {
			out = append(out, r)
		}
	}
	return out
}

// ViewState is the single source of truth the dashboard renders from.
type ViewState struct {
	Records  []models.CanonicalRecord
	Query    string
	Filter   Filter
	Page     int
	Loaded   bool
	LoadedAt time.Time
}

// NewViewState returns the pre-load empty state.
func NewViewState() ViewState {
	return ViewState{
		Records: []models.CanonicalRecord{},
		Filter:  FilterAll,
		Page:    1,
	}
}

// Replace installs a freshly loaded canonical set. Query, filter and page carry over.
func (s *ViewState) Replace(records []models.CanonicalRecord, at time.Time) {
	s.Records = records
	s.Loaded = true
	s.LoadedAt = at
}

// Clear drops the records, returning to the pre-load empty state.
func (s *ViewState) Clear() {
	s.Records = []models.CanonicalRecord{}
	s.Loaded = false
	s.LoadedAt = time.Time{}
}

// SetQuery changes the search text and returns to page 1.
func (s *ViewState) SetQuery(q string) {
	s.Query = q
	s.Page = 1
}

// SetFilter changes the status filter and returns to page 1.
func (s *ViewState) SetFilter(f Filter) {
	s.Filter = f
	s.Page = 1
}

// SetPage moves to page n, which must exist for the current filtered set.
func (s *ViewState) SetPage(n int) error {
	total := TotalPages(len(s.Filtered()), PageSize)
	if n < 1 || n > total {
		return ErrPageOutOfRange
	}
	s.Page = n
	return nil
}

// Filtered returns the records matching the current query and filter.
func (s ViewState) Filtered() []models.CanonicalRecord {
	return FilterRecords(s.Records, s.Query, s.Filter)
}

// Find returns the primary record with the given id.
func (s ViewState) Find(id string) (models.CanonicalRecord, bool) {
	i := s.index(id)
	if i < 0 {
		return models.CanonicalRecord{}, false
	}
	return s.Records[i], true
}

// ApplyStatus updates one primary record in place. Order, grouping and history are untouched.
func (s *ViewState) ApplyStatus(id string, status models.Status, reason *string) (models.CanonicalRecord, bool) {
	i := s.index(id)
	if i < 0 {
		return models.CanonicalRecord{}, false
	}
	s.Records[i].Status = status
	s.Records[i].RejectionReason = nil
	if status == models.StatusRejected {
		s.Records[i].RejectionReason = reason
	}
	return s.Records[i], true
}

func (s ViewState) index(id string) int {
	return slices.IndexFunc(s.Records, func(r models.CanonicalRecord) bool { return r.ID == id })
}

// View is the rendered form of the state: one page plus counts and pagination controls.
type View struct {
	Records    []models.CanonicalRecord `json:"records"`
	Query      string                   `json:"query"`
	Filter     Filter                   `json:"filter"`
	Counts     Counts                   `json:"counts"`
	Pagination Pagination               `json:"pagination"`
	Loaded     bool                     `json:"loaded"`
	LoadedAt   *time.Time               `json:"loaded_at,omitempty"`
}

// Render computes the current view. The page number is not corrected when it exceeds the
// filtered page count; the page is then empty.
func (s ViewState) Render() View {
	filtered := s.Filtered()
	v := View{
		Records:    slices.Clone(Paginate(filtered, s.Page, PageSize)),
		Query:      s.Query,
		Filter:     s.Filter,
		Counts:     CountStatuses(s.Records),
		Pagination: NewPagination(s.Page, len(filtered)),
		Loaded:     s.Loaded,
	}
	if s.Loaded {
		at := s.LoadedAt
		v.LoadedAt = &at
	}
	return v
}

// Snapshot is a read-only copy of the state for exporters.
type Snapshot struct {
	Records []models.CanonicalRecord
	Query   string
	Filter  Filter
	Counts  Counts
	TakenAt time.Time
}

// Filtered returns the snapshot records matching its query and filter.
func (s Snapshot) Filtered() []models.CanonicalRecord {
	return FilterRecords(s.Records, s.Query, s.Filter)
}

// Snapshot copies the state for use outside the owning service.
func (s ViewState) Snapshot(at time.Time) Snapshot {
	return Snapshot{
		Records: slices.Clone(s.Records),
		Query:   s.Query,
		Filter:  s.Filter,
		Counts:  CountStatuses(s.Records),
		TakenAt: at,
	}
}
