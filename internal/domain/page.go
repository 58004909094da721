package domain

const maxPageLimit = 100

// Page is a 1-based page request
type Page struct {
	Page  int64
	Limit int64
}

// NewPage clamps a requested page into a usable one
func NewPage(page, limit, defaultLimit int64) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return Page{Page: page, Limit: limit}
}

// Skip is the number of documents before this page
func (p Page) Skip() int64 {
	return (p.Page - 1) * p.Limit
}

// Pagination is the envelope returned alongside list results
type Pagination struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func NewPagination(p Page, total int64) Pagination {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// PagedResult is a page of items with its pagination envelope
type PagedResult[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

func NewPagedResult[T any](items []T, p Page, total int64) *PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PagedResult[T]{Items: items, Pagination: NewPagination(p, total)}
}
