package catalog

import (
	"context"
	"fmt"
	"log/slog"
)

// Admin exposes the administrative operations that the default Service
// surface leaves out: listings that include deleted records and purging.
type Admin struct {
	store  Store
	purger Purger
	logger *slog.Logger
}

func NewAdmin(store Store, purger Purger, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{store: store, purger: purger, logger: logger.With("component", "catalog_admin")}
}

// ListAll returns active and deleted records ordered by title.
func (a *Admin) ListAll(ctx context.Context) ([]Record, error) {
	return a.store.List(ctx, true)
}

// Get returns a record in any lifecycle state.
func (a *Admin) Get(ctx context.Context, id int64) (Record, error) {
	return a.store.GetByID(ctx, id, true)
}

// HardDelete removes the row for good. It returns false when the id is
// unknown.
func (a *Admin) HardDelete(ctx context.Context, id int64) (bool, error) {
	a.logger.WarnContext(ctx, "purging media record", "id", id)

	ok, err := a.purger.HardDelete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("hard delete media record %d: %w", id, err)
	}
	if !ok {
		a.logger.WarnContext(ctx, "media record not found for purge", "id", id)
	}
	return ok, nil
}
