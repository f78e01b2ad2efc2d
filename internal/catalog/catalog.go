package catalog

import (
	"time"
)

// Status is the lifecycle state of a Record. A purged record has no
// status: its row no longer exists.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Record is one catalog entry: a title/edition with a physical or digital
// copy count.
type Record struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title" validate:"required,max=200"`
	Author            string     `json:"author,omitempty" validate:"max=100"`
	ISBN              string     `json:"isbn,omitempty" validate:"max=20"`
	Type              Type       `json:"type"`
	Genre             string     `json:"genre,omitempty" validate:"max=50"`
	Category          string     `json:"category,omitempty" validate:"max=50"`
	PublicationDate   *time.Time `json:"publication_date,omitempty"`
	Description       string     `json:"description,omitempty" validate:"max=1000"`
	Quantity          int        `json:"quantity" validate:"gte=0"`
	AvailableQuantity int        `json:"available_quantity" validate:"gte=0,ltefield=Quantity"`
	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
	CreatedByUserID   int64      `json:"created_by_user_id"`
	UpdatedByUserID   *int64     `json:"updated_by_user_id,omitempty"`
}

func (r Record) IsDeleted() bool {
	return r.Status == StatusDeleted
}

// IsAvailable reports whether at least one copy can be loaned.
func (r Record) IsAvailable() bool {
	return r.AvailableQuantity > 0 && !r.IsDeleted()
}

// Borrowed is the number of copies currently out.
func (r Record) Borrowed() int {
	return r.Quantity - r.AvailableQuantity
}

// CanBorrow reports whether requested copies are on the shelf.
func (r Record) CanBorrow(requested int) bool {
	return !r.IsDeleted() && r.AvailableQuantity >= requested
}

// SetQuantity changes the total stock while keeping the borrowed count
// where possible. AvailableQuantity is clamped into [0, n].
func (r *Record) SetQuantity(n int) error {
	if n < 0 {
		return &ValidationError{Fields: []FieldError{{Field: "quantity", Message: "quantity cannot be negative"}}}
	}
	delta := n - r.Quantity
	r.Quantity = n
	r.AvailableQuantity = clamp(r.AvailableQuantity+delta, 0, n)
	return nil
}

func (r *Record) markUpdated(userID int64, at time.Time) {
	r.UpdatedAt = &at
	r.UpdatedByUserID = &userID
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Filter narrows a listing by exact field matches. Zero fields are ignored.
type Filter struct {
	Title         string
	Type          *Type
	Category      string
	Genre         string
	Author        string
	ISBN          string
	AvailableOnly bool
}

// SortField selects the ordering of a page. Title is the default.
type SortField int

const (
	SortByTitle SortField = iota
	SortByAuthor
	SortByYear
	SortByID
)

func ParseSortField(s string) SortField {
	switch s {
	case "author", "Author":
		return SortByAuthor
	case "year", "Year":
		return SortByYear
	case "id", "Id", "ID":
		return SortByID
	default:
		return SortByTitle
	}
}

// PageQuery defines filters and pagination for Store.Page. PageNumber is
// 1-based.
type PageQuery struct {
	PageNumber     int
	PageSize       int
	Term           string
	Type           *Type
	Category       string
	Genre          string
	IncludeDeleted bool
	SortBy         SortField
}

func (q PageQuery) offset() int {
	return (q.PageNumber - 1) * q.PageSize
}

// Page is one slice of an ordered, filtered result set.
type Page struct {
	Items      []Record `json:"items"`
	TotalCount int      `json:"total_count"`
}
