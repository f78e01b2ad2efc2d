package catalog

import (
	"context"
	"strings"
)

const defaultSearchPageSize = 20

// Criteria is the public search request. Page is 0-based.
//
// There is no category field: category filtering exists on Store.Page but
// is deliberately not offered through this entry point.
type Criteria struct {
	Title    string
	Type     string
	Genre    string
	SortBy   SortField
	Page     int
	PageSize int
}

// SearchEngine answers read-only paginated searches straight from the
// store, next to the Service.
type SearchEngine struct {
	store Store
}

func NewSearchEngine(store Store) *SearchEngine {
	return &SearchEngine{store: store}
}

// Search maps c onto a store page query. An unrecognized Type means "no
// type filter", not an error.
func (e *SearchEngine) Search(ctx context.Context, c Criteria) (Page, error) {
	if c.Page < 0 {
		return Page{}, &ValidationError{Fields: []FieldError{{Field: "page", Message: "page must be at least 0"}}}
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultSearchPageSize
	}

	q := PageQuery{
		PageNumber: c.Page + 1,
		PageSize:   c.PageSize,
		Term:       strings.TrimSpace(c.Title),
		Genre:      strings.TrimSpace(c.Genre),
		SortBy:     c.SortBy,
	}
	if t, ok := ParseType(c.Type); ok {
		q.Type = &t
	}

	items, total, err := e.store.Page(ctx, q)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []Record{}
	}
	return Page{Items: items, TotalCount: total}, nil
}
