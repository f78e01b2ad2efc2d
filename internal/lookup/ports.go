package lookup

import (
	"context"

	"mediacatalog/internal/catalog"
)

// Store is the persistence contract shared by the lookup lists. Names are
// compared case-insensitively. Reads report absence with
// catalog.ErrNotFound; name collisions fail with a
// *catalog.ConstraintError.
type Store[T any] interface {
	Create(ctx context.Context, v T) (T, error)
	GetByID(ctx context.Context, id int64) (T, error)
	// List orders by name. activeOnly hides deactivated entries.
	List(ctx context.Context, activeOnly bool) ([]T, error)
	// Update replaces name and description. It returns false for an
	// unknown id.
	Update(ctx context.Context, v T) (bool, error)
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
	GetByName(ctx context.Context, name string) (T, error)
	// Search matches name or description among active entries. A blank
	// term lists every active entry.
	Search(ctx context.Context, term string) ([]T, error)
}

type CategoryRepository interface {
	Store[Category]
}

type GenreRepository interface {
	Store[Genre]
	// ListByMediaType returns active genres that apply to t, including
	// the ones without a type restriction.
	ListByMediaType(ctx context.Context, t catalog.Type) ([]Genre, error)
}
