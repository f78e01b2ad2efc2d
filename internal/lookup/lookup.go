// Package lookup manages the category and genre lists that media records
// are classified with.
package lookup

import (
	"fmt"
	"strings"
	"time"

	"mediacatalog/internal/catalog"
	"mediacatalog/internal/platform/validate"
)

// Entry holds the fields shared by every lookup list.
type Entry struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name" validate:"required,max=50"`
	Description     string    `json:"description,omitempty" validate:"max=200"`
	Active          bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	CreatedByUserID int64     `json:"created_by_user_id"`
}

type Category struct {
	Entry
}

// Genre optionally narrows itself to one media type. A nil ApplicableTo
// applies to every type.
type Genre struct {
	Entry
	ApplicableTo *catalog.Type `json:"applicable_to_media_type,omitempty"`
}

// AppliesTo reports whether the genre can classify records of type t.
func (g Genre) AppliesTo(t catalog.Type) bool {
	return g.ApplicableTo == nil || *g.ApplicableTo == t
}

// Unique index names on lower(name).
const (
	ConstraintCategoryName = "categories_name_uq"
	ConstraintGenreName    = "genres_name_uq"
)

func validateEntry(e Entry) []validate.FieldError {
	fields := validate.Struct(e)
	if strings.TrimSpace(e.Name) == "" && len(fields) == 0 {
		fields = append(fields, validate.FieldError{Field: "name", Message: "name is required"})
	}
	return fields
}

func validateCategory(c Category) error {
	if fields := validateEntry(c.Entry); len(fields) > 0 {
		return &catalog.ValidationError{Fields: fields}
	}
	return nil
}

func validateGenre(g Genre) error {
	fields := validateEntry(g.Entry)
	if g.ApplicableTo != nil && !g.ApplicableTo.Valid() {
		fields = append(fields, validate.FieldError{
			Field:   "applicable_to_media_type",
			Message: fmt.Sprintf("type %d is not a known media type", int(*g.ApplicableTo)),
		})
	}
	if len(fields) > 0 {
		return &catalog.ValidationError{Fields: fields}
	}
	return nil
}

func notFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, catalog.ErrNotFound)
}

func nameNotFound(entity, name string) error {
	return fmt.Errorf("%s %q: %w", entity, name, catalog.ErrNotFound)
}
