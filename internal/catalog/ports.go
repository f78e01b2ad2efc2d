package catalog

import (
	"context"
	"time"
)

// Store is the persistence contract for media records. Implementations
// keep no business rules: callers guarantee invariants before writing,
// and the store's unique indexes are the last line against races.
//
// Reads report absence with ErrNotFound. Writes rejected by a unique
// index fail with an error matching ErrConstraintViolation.
type Store interface {
	Create(ctx context.Context, r Record) (Record, error)
	GetByID(ctx context.Context, id int64, includeDeleted bool) (Record, error)
	// List returns records ordered by title.
	List(ctx context.Context, includeDeleted bool) ([]Record, error)
	// Update replaces the stored row with the same id.
	Update(ctx context.Context, r Record) (bool, error)
	// SoftDelete marks an active record deleted. It returns false when no
	// active record has the id.
	SoftDelete(ctx context.Context, id, actingUserID int64, at time.Time) (bool, error)

	// Search matches term case-insensitively against title, author, ISBN
	// and description. A blank term returns every active record.
	Search(ctx context.Context, term string) ([]Record, error)
	Filter(ctx context.Context, f Filter) ([]Record, error)
	// Page filters, orders and slices. The count covers the filtered set
	// before slicing.
	Page(ctx context.Context, q PageQuery) ([]Record, int, error)

	ExistsByISBN(ctx context.Context, isbn string) (bool, error)
	ExistsByTitleAuthor(ctx context.Context, title, author string) (bool, error)

	CountTotal(ctx context.Context) (int, error)
	CountAvailable(ctx context.Context) (int, error)
	CountByType(ctx context.Context, t Type) (int, error)

	// BulkCreate inserts all records in one transaction.
	BulkCreate(ctx context.Context, records []Record) ([]Record, error)
	// BulkUpdateQuantities applies Record.SetQuantity to every listed
	// active record in one transaction and returns the ids it skipped
	// because they are unknown or deleted.
	BulkUpdateQuantities(ctx context.Context, quantities map[int64]int, actingUserID int64, at time.Time) ([]int64, error)
}

// Purger removes rows for good. It is kept off Store so that only
// administrative wiring can reach it.
type Purger interface {
	HardDelete(ctx context.Context, id int64) (bool, error)
}
