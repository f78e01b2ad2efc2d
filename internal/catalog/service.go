package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const entityName = "media record"

// Service enforces the catalog's business rules on top of a Store. It
// holds no state of its own: every call reads and writes through the store.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a catalog service. A nil logger falls back to
// slog.Default.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "catalog"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for audit stamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates r, rejects duplicates and stores it with every copy
// available.
func (s *Service) Create(ctx context.Context, r Record, actingUserID int64) (Record, error) {
	s.logger.InfoContext(ctx, "creating media record", "title", r.Title, "author", r.Author)

	r = s.prepareNew(r, actingUserID)
	if err := Validate(r); err != nil {
		return Record{}, err
	}
	if err := s.checkNewIsUnique(ctx, r); err != nil {
		return Record{}, err
	}

	created, err := s.store.Create(ctx, r)
	if err != nil {
		s.logger.ErrorContext(ctx, "create media record failed", "title", r.Title, "error", err)
		return Record{}, translateStoreErr(err, r)
	}

	s.logger.InfoContext(ctx, "media record created", "id", created.ID)
	return created, nil
}

func (s *Service) prepareNew(r Record, actingUserID int64) Record {
	r.normalize()
	r.ID = 0
	r.Status = StatusActive
	r.AvailableQuantity = r.Quantity
	r.CreatedAt = s.now()
	r.CreatedByUserID = actingUserID
	r.UpdatedAt = nil
	r.UpdatedByUserID = nil
	return r
}

func (s *Service) checkNewIsUnique(ctx context.Context, r Record) error {
	if r.ISBN != "" {
		exists, err := s.store.ExistsByISBN(ctx, r.ISBN)
		if err != nil {
			return fmt.Errorf("check isbn: %w", err)
		}
		if exists {
			return NewDuplicateError(entityName, "isbn", r.ISBN, nil)
		}
	}

	exists, err := s.store.ExistsByTitleAuthor(ctx, r.Title, r.Author)
	if err != nil {
		return fmt.Errorf("check title and author: %w", err)
	}
	if exists {
		return NewDuplicateError(entityName, "title and author", titleAuthor(r), nil)
	}
	return nil
}

// Get returns an active record or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	s.logger.DebugContext(ctx, "retrieving media record", "id", id)
	return s.store.GetByID(ctx, id, false)
}

// List returns every active record ordered by title.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	s.logger.DebugContext(ctx, "retrieving all media records")
	return s.store.List(ctx, false)
}

// Update replaces the descriptive and inventory fields of an active
// record. Lifecycle and creation fields are kept from the stored row.
func (s *Service) Update(ctx context.Context, r Record, actingUserID int64) (bool, error) {
	s.logger.InfoContext(ctx, "updating media record", "id", r.ID, "title", r.Title)
	r.normalize()

	existing, err := s.store.GetByID(ctx, r.ID, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "media record not found for update", "id", r.ID)
		}
		return false, err
	}

	r.Status = existing.Status
	r.CreatedAt = existing.CreatedAt
	r.CreatedByUserID = existing.CreatedByUserID
	if err := Validate(r); err != nil {
		return false, err
	}

	if r.ISBN != "" && r.ISBN != existing.ISBN {
		exists, err := s.store.ExistsByISBN(ctx, r.ISBN)
		if err != nil {
			return false, fmt.Errorf("check isbn: %w", err)
		}
		if exists {
			return false, NewDuplicateError(entityName, "isbn", r.ISBN, nil)
		}
	}
	if r.Title != existing.Title || r.Author != existing.Author {
		exists, err := s.store.ExistsByTitleAuthor(ctx, r.Title, r.Author)
		if err != nil {
			return false, fmt.Errorf("check title and author: %w", err)
		}
		if exists {
			return false, NewDuplicateError(entityName, "title and author", titleAuthor(r), nil)
		}
	}

	r.markUpdated(actingUserID, s.now())
	ok, err := s.store.Update(ctx, r)
	if err != nil {
		s.logger.ErrorContext(ctx, "update media record failed", "id", r.ID, "error", err)
		return false, translateStoreErr(err, r)
	}

	s.logger.InfoContext(ctx, "media record updated", "id", r.ID)
	return ok, nil
}

// SoftDelete moves an active record to the deleted state. It returns false
// when no active record has the id.
func (s *Service) SoftDelete(ctx context.Context, id, actingUserID int64) (bool, error) {
	s.logger.InfoContext(ctx, "soft deleting media record", "id", id)

	ok, err := s.store.SoftDelete(ctx, id, actingUserID, s.now())
	if err != nil {
		return false, fmt.Errorf("soft delete media record %d: %w", id, err)
	}
	if !ok {
		s.logger.WarnContext(ctx, "media record not found for deletion", "id", id)
		return false, nil
	}

	s.logger.InfoContext(ctx, "media record soft deleted", "id", id)
	return true, nil
}

// Restore brings a deleted record back. Restoring an active record is a
// successful no-op. It fails with a DuplicateError when the ISBN or
// title/author pair was reused while the record was deleted.
func (s *Service) Restore(ctx context.Context, id, actingUserID int64) (bool, error) {
	s.logger.InfoContext(ctx, "restoring media record", "id", id)

	r, err := s.store.GetByID(ctx, id, true)
	if errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "media record not found for restoration", "id", id)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !r.IsDeleted() {
		s.logger.InfoContext(ctx, "media record is not deleted, no restoration needed", "id", id)
		return true, nil
	}

	if err := s.checkNewIsUnique(ctx, r); err != nil {
		return false, err
	}

	r.Status = StatusActive
	r.markUpdated(actingUserID, s.now())
	ok, err := s.store.Update(ctx, r)
	if err != nil {
		return false, translateStoreErr(err, r)
	}

	if ok {
		s.logger.InfoContext(ctx, "media record restored", "id", id)
	}
	return ok, nil
}

// UpdateQuantity sets the total number of copies. The borrowed count is
// preserved where the new total allows it.
func (s *Service) UpdateQuantity(ctx context.Context, id int64, newQuantity int, actingUserID int64) (bool, error) {
	s.logger.InfoContext(ctx, "updating media record quantity", "id", id, "quantity", newQuantity)

	if newQuantity < 0 {
		return false, &ValidationError{Fields: []FieldError{{Field: "quantity", Message: "quantity cannot be negative"}}}
	}

	r, err := s.getActiveForWrite(ctx, id, "quantity update")
	if err != nil {
		return false, err
	}
	return s.applyQuantity(ctx, r, newQuantity, actingUserID)
}

// AdjustQuantity changes the total number of copies by delta.
func (s *Service) AdjustQuantity(ctx context.Context, id int64, delta int, actingUserID int64) (bool, error) {
	s.logger.InfoContext(ctx, "adjusting media record quantity", "id", id, "delta", delta)

	r, err := s.getActiveForWrite(ctx, id, "quantity adjustment")
	if err != nil {
		return false, err
	}

	newQuantity := r.Quantity + delta
	if newQuantity < 0 {
		return false, &ValidationError{Fields: []FieldError{{
			Field:   "quantity",
			Message: fmt.Sprintf("adjustment %d would make quantity negative (current %d)", delta, r.Quantity),
		}}}
	}
	return s.applyQuantity(ctx, r, newQuantity, actingUserID)
}

func (s *Service) getActiveForWrite(ctx context.Context, id int64, op string) (Record, error) {
	r, err := s.store.GetByID(ctx, id, false)
	if errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "media record not found for "+op, "id", id)
	}
	return r, err
}

func (s *Service) applyQuantity(ctx context.Context, r Record, newQuantity int, actingUserID int64) (bool, error) {
	oldQuantity := r.Quantity
	if err := r.SetQuantity(newQuantity); err != nil {
		return false, err
	}
	r.markUpdated(actingUserID, s.now())

	ok, err := s.store.Update(ctx, r)
	if err != nil {
		return false, translateStoreErr(err, r)
	}
	if ok {
		s.logger.InfoContext(ctx, "media record quantity updated",
			"id", r.ID,
			"old_quantity", oldQuantity,
			"new_quantity", r.Quantity,
			"available_quantity", r.AvailableQuantity,
		)
	}
	return ok, nil
}

// IsAvailable reports whether requested copies of an active record are on
// the shelf. Unknown ids are simply not available.
func (s *Service) IsAvailable(ctx context.Context, id int64, requested int) (bool, error) {
	if requested < 1 {
		return false, &ValidationError{Fields: []FieldError{{Field: "requested", Message: "requested must be at least 1"}}}
	}
	r, err := s.store.GetByID(ctx, id, false)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.CanBorrow(requested), nil
}

// AvailableQuantity returns the number of copies on the shelf.
func (s *Service) AvailableQuantity(ctx context.Context, id int64) (int, error) {
	r, err := s.store.GetByID(ctx, id, false)
	if err != nil {
		return 0, err
	}
	return r.AvailableQuantity, nil
}

// CreateBulk validates every record, including duplicates inside the
// batch, before persisting any of them. Either all records are stored or
// none are.
func (s *Service) CreateBulk(ctx context.Context, records []Record, actingUserID int64) ([]Record, error) {
	s.logger.InfoContext(ctx, "creating media records in bulk", "count", len(records))

	prepared := make([]Record, len(records))
	seenISBN := make(map[string]int, len(records))
	seenPair := make(map[string]int, len(records))
	for i, r := range records {
		r = s.prepareNew(r, actingUserID)
		if err := Validate(r); err != nil {
			return nil, fmt.Errorf("record %d (%q): %w", i, r.Title, err)
		}

		if r.ISBN != "" {
			if j, dup := seenISBN[r.ISBN]; dup {
				return nil, fmt.Errorf("record %d repeats record %d: %w", i, j, NewDuplicateError(entityName, "isbn", r.ISBN, nil))
			}
			seenISBN[r.ISBN] = i
		}
		key := r.Title + "\x00" + r.Author
		if j, dup := seenPair[key]; dup {
			return nil, fmt.Errorf("record %d repeats record %d: %w", i, j, NewDuplicateError(entityName, "title and author", titleAuthor(r), nil))
		}
		seenPair[key] = i

		if err := s.checkNewIsUnique(ctx, r); err != nil {
			return nil, fmt.Errorf("record %d (%q): %w", i, r.Title, err)
		}
		prepared[i] = r
	}

	created, err := s.store.BulkCreate(ctx, prepared)
	if err != nil {
		s.logger.ErrorContext(ctx, "bulk creation of media records failed", "error", err)
		return nil, translateStoreErr(err, Record{})
	}

	s.logger.InfoContext(ctx, "bulk creation completed", "count", len(created))
	return created, nil
}

// BulkRejection names an entry of a bulk request that was not applied.
type BulkRejection struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// BulkQuantityResult reports the outcome of UpdateQuantitiesBulk per id.
// Every requested id appears in exactly one list.
type BulkQuantityResult struct {
	Updated  []int64         `json:"updated"`
	Skipped  []int64         `json:"skipped"`
	Rejected []BulkRejection `json:"rejected"`
}

// UpdateQuantitiesBulk applies quantity updates as a best-effort batch
// correction. Negative quantities are rejected, unknown or deleted ids are
// skipped, and the rest is applied in a single store transaction.
func (s *Service) UpdateQuantitiesBulk(ctx context.Context, quantities map[int64]int, actingUserID int64) (BulkQuantityResult, error) {
	s.logger.InfoContext(ctx, "bulk updating media record quantities", "count", len(quantities))

	res := BulkQuantityResult{Updated: []int64{}, Skipped: []int64{}, Rejected: []BulkRejection{}}
	valid := make(map[int64]int, len(quantities))
	for id, q := range quantities {
		if q < 0 {
			res.Rejected = append(res.Rejected, BulkRejection{ID: id, Reason: "quantity cannot be negative"})
			continue
		}
		valid[id] = q
	}
	sort.Slice(res.Rejected, func(i, j int) bool { return res.Rejected[i].ID < res.Rejected[j].ID })

	if len(valid) == 0 {
		return res, nil
	}

	skipped, err := s.store.BulkUpdateQuantities(ctx, valid, actingUserID, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "bulk quantity update failed", "error", err)
		return BulkQuantityResult{}, fmt.Errorf("bulk update quantities: %w", err)
	}

	skippedSet := make(map[int64]struct{}, len(skipped))
	for _, id := range skipped {
		skippedSet[id] = struct{}{}
	}
	for id := range valid {
		if _, ok := skippedSet[id]; ok {
			res.Skipped = append(res.Skipped, id)
		} else {
			res.Updated = append(res.Updated, id)
		}
	}
	sortIDs(res.Updated)
	sortIDs(res.Skipped)

	if len(res.Skipped) > 0 {
		s.logger.WarnContext(ctx, "bulk quantity update skipped unknown or deleted records", "ids", res.Skipped)
	}
	s.logger.InfoContext(ctx, "bulk quantity update completed",
		"updated", len(res.Updated),
		"skipped", len(res.Skipped),
		"rejected", len(res.Rejected),
	)
	return res, nil
}

func (s *Service) Search(ctx context.Context, term string) ([]Record, error) {
	s.logger.DebugContext(ctx, "searching media records", "term", term)
	return s.store.Search(ctx, term)
}

func (s *Service) Filter(ctx context.Context, f Filter) ([]Record, error) {
	return s.store.Filter(ctx, f)
}

// Available lists active records with at least one copy on the shelf.
func (s *Service) Available(ctx context.Context) ([]Record, error) {
	s.logger.DebugContext(ctx, "retrieving available media records")
	return s.store.Filter(ctx, Filter{AvailableOnly: true})
}

// GetByISBN returns the active record carrying isbn, or ErrNotFound.
func (s *Service) GetByISBN(ctx context.Context, isbn string) (Record, error) {
	s.logger.DebugContext(ctx, "retrieving media record by isbn", "isbn", isbn)
	if strings.TrimSpace(isbn) == "" {
		return Record{}, ErrNotFound
	}
	records, err := s.store.Filter(ctx, Filter{ISBN: isbn})
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, fmt.Errorf("isbn %s: %w", isbn, ErrNotFound)
	}
	return records[0], nil
}

// Page returns one page of records. PageNumber is 1-based.
func (s *Service) Page(ctx context.Context, q PageQuery) (Page, error) {
	s.logger.DebugContext(ctx, "retrieving paged media records", "page", q.PageNumber, "size", q.PageSize)
	if err := validatePageQuery(q); err != nil {
		return Page{}, err
	}
	items, total, err := s.store.Page(ctx, q)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []Record{}
	}
	return Page{Items: items, TotalCount: total}, nil
}

func validatePageQuery(q PageQuery) error {
	var fields []FieldError
	if q.PageNumber < 1 {
		fields = append(fields, FieldError{Field: "page", Message: "page must be at least 1"})
	}
	if q.PageSize < 1 {
		fields = append(fields, FieldError{Field: "page_size", Message: "page_size must be at least 1"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// IsUnique reports whether a record with the given identity could be
// stored without colliding with an active record other than excludeID.
// Pass 0 to exclude nothing.
func (s *Service) IsUnique(ctx context.Context, title, author, isbn string, excludeID int64) (bool, error) {
	if isbn != "" {
		byISBN, err := s.store.Filter(ctx, Filter{ISBN: isbn})
		if err != nil {
			return false, err
		}
		for _, r := range byISBN {
			if r.ID != excludeID {
				return false, nil
			}
		}
	}

	byTitle, err := s.store.Filter(ctx, Filter{Title: title})
	if err != nil {
		return false, err
	}
	for _, r := range byTitle {
		if r.Author == author && r.ID != excludeID {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) TotalCount(ctx context.Context) (int, error) {
	return s.store.CountTotal(ctx)
}

func (s *Service) AvailableCount(ctx context.Context) (int, error) {
	return s.store.CountAvailable(ctx)
}

// CountByType returns a count for every declared media type, zero for
// types without records.
func (s *Service) CountByType(ctx context.Context) (map[Type]int, error) {
	out := make(map[Type]int, len(AllTypes()))
	for _, t := range AllTypes() {
		n, err := s.store.CountByType(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", t, err)
		}
		out[t] = n
	}
	return out, nil
}

// translateStoreErr turns a unique index violation into the duplicate
// error the pre-checks would have produced.
func translateStoreErr(err error, r Record) error {
	var cerr *ConstraintError
	if !errors.As(err, &cerr) {
		return err
	}
	switch cerr.Constraint {
	case ConstraintISBN:
		return NewDuplicateError(entityName, "isbn", r.ISBN, err)
	case ConstraintTitleAuthor:
		return NewDuplicateError(entityName, "title and author", titleAuthor(r), err)
	default:
		return NewDuplicateError(entityName, "unique key", "", err)
	}
}

func titleAuthor(r Record) string {
	if r.Author == "" {
		return r.Title
	}
	return r.Title + " by " + r.Author
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
