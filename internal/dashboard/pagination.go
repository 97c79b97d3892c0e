package dashboard

import "strconv"

// PageSize is the number of rows on a dashboard page.
const PageSize = 10

const maxVisiblePages = 5

// PageLink is one control in the pagination bar.
type PageLink struct {
	Label    string `json:"label"`
	Page     int    `json:"page,omitempty"`
	Active   bool   `json:"active,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Ellipsis bool   `json:"ellipsis,omitempty"`
}

// Pagination describes the current page of the filtered records.
type Pagination struct {
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalItems int        `json:"total_items"`
	TotalPages int        `json:"total_pages"`
	From       int        `json:"from"`
	To         int        `json:"to"`
	Links      []PageLink `json:"links"`
}

// TotalPages returns ceil(items / size).
func TotalPages(items, size int) int {
	if size <= 0 {
		return 0
	}
	return (items + size - 1) / size
}

// Paginate returns the 1-based page of items. Out-of-range pages are empty.
func Paginate[T any](items []T, page, size int) []T {
	if page < 1 || size <= 0 {
		return []T{}
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}

// PageWindow returns the first and last page number shown around current, at most
// maxVisiblePages wide and clamped to [1, total].
func PageWindow(current, total int) (start, end int) {
	start = max(1, current-maxVisiblePages/2)
	end = min(total, start+maxVisiblePages-1)
	if end-start < maxVisiblePages-1 {
		start = max(1, end-maxVisiblePages+1)
	}
	return start, end
}

// PageLinks builds the pagination bar. A single page needs no links.
func PageLinks(current, total int) []PageLink {
	if total <= 1 {
		return []PageLink{}
	}
	links := []PageLink{{Label: "Previous", Page: current - 1, Disabled: current <= 1}}

	start, end := PageWindow(current, total)
	if start > 1 {
		links = append(links, PageLink{Label: "1", Page: 1})
		if start > 2 {
			links = append(links, PageLink{Label: "...", Disabled: true, Ellipsis: true})
		}
	}
	for i := start; i <= end; i++ {
		links = append(links, PageLink{Label: strconv.Itoa(i), Page: i, Active: i == current})
	}
	if end < total {
		if end < total-1 {
			links = append(links, PageLink{Label: "...", Disabled: true, Ellipsis: true})
		}
		links = append(links, PageLink{Label: strconv.Itoa(total), Page: total})
	}

	return append(links, PageLink{Label: "Next", Page: current + 1, Disabled: current >= total})
}

// NewPagination computes the pagination for page over totalItems filtered records.
func NewPagination(page, totalItems int) Pagination {
	p := Pagination{
		Page:       page,
		PageSize:   PageSize,
		TotalItems: totalItems,
		TotalPages: TotalPages(totalItems, PageSize),
	}
	if page >= 1 && page <= p.TotalPages {
		p.From = (page-1)*PageSize + 1
		p.To = min(page*PageSize, totalItems)
	}
	p.Links = PageLinks(page, p.TotalPages)
	return p
}
