package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-process Store and Purger. Every method holds the
// lock for its whole duration, so bulk operations are all-or-nothing and
// the unique rules behave like the Postgres partial indexes.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[int64]Record)}
}

func (m *MemoryRepo) Create(ctx context.Context, r Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = 0
	if err := m.checkUniqueLocked(r, nil); err != nil {
		return Record{}, err
	}
	m.nextID++
	r.ID = m.nextID
	m.rows[r.ID] = cloneRecord(r)
	return cloneRecord(r), nil
}

func (m *MemoryRepo) GetByID(ctx context.Context, id int64, includeDeleted bool) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rows[id]
	if !ok || (r.IsDeleted() && !includeDeleted) {
		return Record{}, notFound(id)
	}
	return cloneRecord(r), nil
}

func (m *MemoryRepo) List(ctx context.Context, includeDeleted bool) ([]Record, error) {
	return m.collect(ctx, SortByTitle, func(r Record) bool {
		return includeDeleted || !r.IsDeleted()
	})
}

func (m *MemoryRepo) Update(ctx context.Context, r Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[r.ID]; !ok {
		return false, nil
	}
	if err := m.checkUniqueLocked(r, nil); err != nil {
		return false, err
	}
	m.rows[r.ID] = cloneRecord(r)
	return true, nil
}

func (m *MemoryRepo) SoftDelete(ctx context.Context, id, actingUserID int64, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok || r.IsDeleted() {
		return false, nil
	}
	r.Status = StatusDeleted
	r.markUpdated(actingUserID, at)
	m.rows[id] = r
	return true, nil
}

func (m *MemoryRepo) HardDelete(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *MemoryRepo) Search(ctx context.Context, term string) ([]Record, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	return m.collect(ctx, SortByTitle, func(r Record) bool {
		if r.IsDeleted() {
			return false
		}
		return term == "" || containsFold(term, r.Title, r.Author, r.ISBN, r.Description)
	})
}

func (m *MemoryRepo) Filter(ctx context.Context, f Filter) ([]Record, error) {
	return m.collect(ctx, SortByTitle, func(r Record) bool {
		return !r.IsDeleted() && matchesFilter(r, f)
	})
}

func (m *MemoryRepo) Page(ctx context.Context, q PageQuery) ([]Record, int, error) {
	if q.PageNumber < 1 || q.PageSize < 1 {
		return nil, 0, &ValidationError{Fields: []FieldError{{Field: "page", Message: "page number and size must be positive"}}}
	}
	term := strings.ToLower(strings.TrimSpace(q.Term))
	matched, err := m.collect(ctx, q.SortBy, func(r Record) bool {
		if r.IsDeleted() && !q.IncludeDeleted {
			return false
		}
		if term != "" && !containsFold(term, r.Title, r.Author, r.ISBN) {
			return false
		}
		return matchesFilter(r, Filter{Type: q.Type, Category: q.Category, Genre: q.Genre})
	})
	if err != nil {
		return nil, 0, err
	}

	total := len(matched)
	start := q.offset()
	if start >= total {
		return []Record{}, total, nil
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *MemoryRepo) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	return m.exists(ctx, func(r Record) bool { return r.ISBN == isbn })
}

func (m *MemoryRepo) ExistsByTitleAuthor(ctx context.Context, title, author string) (bool, error) {
	return m.exists(ctx, func(r Record) bool { return r.Title == title && r.Author == author })
}

func (m *MemoryRepo) CountTotal(ctx context.Context) (int, error) {
	return m.count(ctx, func(r Record) bool { return true })
}

func (m *MemoryRepo) CountAvailable(ctx context.Context) (int, error) {
	return m.count(ctx, func(r Record) bool { return r.AvailableQuantity > 0 })
}

func (m *MemoryRepo) CountByType(ctx context.Context, t Type) (int, error) {
	return m.count(ctx, func(r Record) bool { return r.Type == t })
}

func (m *MemoryRepo) BulkCreate(ctx context.Context, records []Record) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make([]Record, 0, len(records))
	for _, r := range records {
		r.ID = 0
		if err := m.checkUniqueLocked(r, staged); err != nil {
			return nil, err
		}
		staged = append(staged, r)
	}

	out := make([]Record, len(staged))
	for i, r := range staged {
		m.nextID++
		r.ID = m.nextID
		m.rows[r.ID] = cloneRecord(r)
		out[i] = cloneRecord(r)
	}
	return out, nil
}

func (m *MemoryRepo) BulkUpdateQuantities(ctx context.Context, quantities map[int64]int, actingUserID int64, at time.Time) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var skipped []int64
	staged := make(map[int64]Record, len(quantities))
	for id, q := range quantities {
		r, ok := m.rows[id]
		if !ok || r.IsDeleted() {
			skipped = append(skipped, id)
			continue
		}
		if err := r.SetQuantity(q); err != nil {
			return nil, err
		}
		r.markUpdated(actingUserID, at)
		staged[id] = r
	}

	for id, r := range staged {
		m.rows[id] = r
	}
	sortIDs(skipped)
	return skipped, nil
}

func (m *MemoryRepo) collect(ctx context.Context, by SortField, keep func(Record) bool) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Record{}
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, cloneRecord(r))
		}
	}
	sortRecords(out, by)
	return out, nil
}

// exists and count only look at active records.
func (m *MemoryRepo) exists(ctx context.Context, match func(Record) bool) (bool, error) {
	n, err := m.count(ctx, match)
	return n > 0, err
}

func (m *MemoryRepo) count(ctx context.Context, match func(Record) bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.rows {
		if !r.IsDeleted() && match(r) {
			n++
		}
	}
	return n, nil
}

// checkUniqueLocked mirrors the partial unique indexes: among active rows
// the ISBN (when set) and the title/author pair are unique.
func (m *MemoryRepo) checkUniqueLocked(r Record, staged []Record) error {
	if r.IsDeleted() {
		return nil
	}
	conflict := func(other Record) error {
		if other.IsDeleted() || (r.ID != 0 && other.ID == r.ID) {
			return nil
		}
		if r.ISBN != "" && other.ISBN == r.ISBN {
			return &ConstraintError{Constraint: ConstraintISBN}
		}
		if other.Title == r.Title && other.Author == r.Author {
			return &ConstraintError{Constraint: ConstraintTitleAuthor}
		}
		return nil
	}
	for _, other := range m.rows {
		if err := conflict(other); err != nil {
			return err
		}
	}
	for _, other := range staged {
		if err := conflict(other); err != nil {
			return err
		}
	}
	return nil
}

func matchesFilter(r Record, f Filter) bool {
	if f.Title != "" && r.Title != f.Title {
		return false
	}
	if f.Type != nil && r.Type != *f.Type {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.Genre != "" && r.Genre != f.Genre {
		return false
	}
	if f.Author != "" && r.Author != f.Author {
		return false
	}
	if f.ISBN != "" && r.ISBN != f.ISBN {
		return false
	}
	if f.AvailableOnly && r.AvailableQuantity <= 0 {
		return false
	}
	return true
}

func containsFold(lowerTerm string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowerTerm) {
			return true
		}
	}
	return false
}

func sortRecords(records []Record, by SortField) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch by {
		case SortByID:
			return a.ID < b.ID
		case SortByAuthor:
			if c := compareFold(a.Author, b.Author); c != 0 {
				return c < 0
			}
		case SortByYear:
			switch {
			case a.PublicationDate == nil && b.PublicationDate != nil:
				return false
			case a.PublicationDate != nil && b.PublicationDate == nil:
				return true
			case a.PublicationDate != nil && !a.PublicationDate.Equal(*b.PublicationDate):
				return a.PublicationDate.Before(*b.PublicationDate)
			}
		}
		if c := compareFold(a.Title, b.Title); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}

// compareFold orders case-insensitively first, like the database collation,
// and falls back to a byte comparison so the order stays total.
func compareFold(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func cloneRecord(r Record) Record {
	if r.PublicationDate != nil {
		d := *r.PublicationDate
		r.PublicationDate = &d
	}
	if r.UpdatedAt != nil {
		t := *r.UpdatedAt
		r.UpdatedAt = &t
	}
	if r.UpdatedByUserID != nil {
		u := *r.UpdatedByUserID
		r.UpdatedByUserID = &u
	}
	return r
}
