package common

import "net/http"

// DefaultPageSize matches the dashboard tables.
const DefaultPageSize = 10

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ParsePagination extracts page and per-page parameters from query values.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	return QueryInt(r, "page", 1), QueryInt(r, "limit", defaultPerPage)
}

// Paginate computes slice bounds for a page over total items. There is always
// at least one page and the page is clamped into range.
func Paginate(total, page, perPage int) (start, end int, meta Pagination) {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start = (page - 1) * perPage
	if start > total {
		start = total
	}
	end = start + perPage
	if end > total {
		end = total
	}
	return start, end, Pagination{Page: page, PerPage: perPage, TotalItems: total, TotalPages: totalPages}
}
