package catalog

import (
	"fmt"
	"strings"

	"mediacatalog/internal/platform/validate"
)

// Validate checks field limits and the record-local invariants: non-empty
// title, 0 <= available <= quantity, and an ISBN for types that need one.
// Uniqueness is checked against the store by the Service.
func Validate(r Record) error {
	fields := validate.Struct(r)

	if strings.TrimSpace(r.Title) == "" && !hasField(fields, "title") {
		fields = append(fields, FieldError{Field: "title", Message: "title is required"})
	}
	if !r.Type.Valid() {
		fields = append(fields, FieldError{Field: "type", Message: fmt.Sprintf("type %d is not a known media type", int(r.Type))})
	} else if r.Type.RequiresISBN() && strings.TrimSpace(r.ISBN) == "" {
		fields = append(fields, FieldError{Field: "isbn", Message: fmt.Sprintf("isbn is required for %s", r.Type.DisplayName())})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// normalize trims the identifying fields so validation, uniqueness checks
// and storage agree on what an empty or duplicate value is.
func (r *Record) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
	r.ISBN = strings.TrimSpace(r.ISBN)
	r.Category = strings.TrimSpace(r.Category)
	r.Genre = strings.TrimSpace(r.Genre)
}

func hasField(fields []FieldError, name string) bool {
	for _, f := range fields {
		if f.Field == name {
			return true
		}
	}
	return false
}
