package domain

// DefaultPageSize is the number of open jobs shown per board page.
const DefaultPageSize = 8

// Window is a clamped, 1-based page over a list of total items.
type Window struct {
	Page       int
	TotalPages int
	Total      int
	Offset     int
	Limit      int
}

// PageWindow clamps page into [1, TotalPages]. An empty list still has one
// page.
func PageWindow(total, page, size int) Window {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	return Window{
		Page:       page,
		TotalPages: pages,
		Total:      total,
		Offset:     (page - 1) * size,
		Limit:      size,
	}
}
