package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// DefaultLimit applies when a listing does not specify a limit.
const DefaultLimit = 50

// MaxLimit caps listing sizes.
const MaxLimit = 500

// NormalizeLimit clamps limit and offset to sane values.
func NormalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// NewPagination computes pagination metadata.
func NewPagination(limit, offset, total int) Pagination {
	limit, offset = NormalizeLimit(limit, offset)
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{Limit: limit, Offset: offset, Total: total, TotalPages: totalPages}
}
