package pagination

import (
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"
)

// DefaultPageSize is used when the caller does not ask for a size.
const DefaultPageSize = 20

// PageRequest holds pagination parameters parsed from query strings.
// Pages are zero-based.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=0"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Defaults fills in default values when page_size is not provided.
func (p *PageRequest) Defaults() {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p *PageRequest) Offset() int {
	return p.Page * p.PageSize
}

// PageResponse wraps a paginated list of items with metadata.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(totalItems) / float64(pageSize)))
	}
	if data == nil {
		data = []T{}
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given page request.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}

// Sort directions.
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// SortRequest holds the caller-chosen ordering.
type SortRequest struct {
	Field     string `form:"sort_field"`
	Direction string `form:"sort_dir" binding:"omitempty,sort_direction"`
}

// NormalizedDirection returns ASC only when explicitly asked for; anything
// else sorts descending.
func (s SortRequest) NormalizedDirection() string {
	if strings.EqualFold(strings.TrimSpace(s.Direction), SortAsc) {
		return SortAsc
	}
	return SortDesc
}

// OrderBy resolves the requested field against an allow-list of columns and
// returns an ORDER BY expression. An empty field falls back to defaultField.
func (s SortRequest) OrderBy(columns map[string]string, defaultField string) (string, error) {
	field := strings.TrimSpace(s.Field)
	if field == "" {
		field = defaultField
	}
	column, ok := columns[field]
	if !ok {
		return "", fmt.Errorf("unsupported sort field %q", field)
	}
	return column + " " + s.NormalizedDirection(), nil
}
