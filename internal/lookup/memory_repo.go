package lookup

import (
	"context"
	"sort"
	"strings"
	"sync"

	"mediacatalog/internal/catalog"
)

// memoryTable is an in-process Store keeping a case-insensitive unique
// name, like the lower(name) index in Postgres.
type memoryTable[T any] struct {
	mu         sync.RWMutex
	nextID     int64
	rows       map[int64]T
	entity     string
	constraint string
	entry      func(*T) *Entry
}

func newMemoryTable[T any](entity, constraint string, entry func(*T) *Entry) *memoryTable[T] {
	return &memoryTable[T]{rows: make(map[int64]T), entity: entity, constraint: constraint, entry: entry}
}

func (m *memoryTable[T]) Create(ctx context.Context, v T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(&v)
	if m.nameTakenLocked(e.Name, 0) {
		return zero, &catalog.ConstraintError{Constraint: m.constraint}
	}
	m.nextID++
	e.ID = m.nextID
	m.rows[e.ID] = v
	return v, nil
}

func (m *memoryTable[T]) GetByID(ctx context.Context, id int64) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.rows[id]
	if !ok {
		return zero, notFound(m.entity, id)
	}
	return v, nil
}

func (m *memoryTable[T]) List(ctx context.Context, activeOnly bool) ([]T, error) {
	return m.collect(ctx, func(v T) bool {
		return !activeOnly || m.entry(&v).Active
	})
}

func (m *memoryTable[T]) Update(ctx context.Context, v T) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(&v)
	if _, ok := m.rows[e.ID]; !ok {
		return false, nil
	}
	if m.nameTakenLocked(e.Name, e.ID) {
		return false, &catalog.ConstraintError{Constraint: m.constraint}
	}
	m.rows[e.ID] = v
	return true, nil
}

func (m *memoryTable[T]) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	m.entry(&v).Active = active
	m.rows[id] = v
	return true, nil
}

func (m *memoryTable[T]) GetByName(ctx context.Context, name string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, v := range m.rows {
		if strings.EqualFold(m.entry(&v).Name, name) {
			return v, nil
		}
	}
	return zero, nameNotFound(m.entity, name)
}

func (m *memoryTable[T]) Search(ctx context.Context, term string) ([]T, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	return m.collect(ctx, func(v T) bool {
		e := m.entry(&v)
		if !e.Active {
			return false
		}
		return term == "" ||
			strings.Contains(strings.ToLower(e.Name), term) ||
			strings.Contains(strings.ToLower(e.Description), term)
	})
}

func (m *memoryTable[T]) collect(ctx context.Context, keep func(T) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []T{}
	for _, v := range m.rows {
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := m.entry(&out[i]), m.entry(&out[j])
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (m *memoryTable[T]) nameTakenLocked(name string, exceptID int64) bool {
	for id, v := range m.rows {
		if id != exceptID && strings.EqualFold(m.entry(&v).Name, name) {
			return true
		}
	}
	return false
}

type MemoryCategoryRepo struct {
	*memoryTable[Category]
}

func NewMemoryCategoryRepo() *MemoryCategoryRepo {
	return &MemoryCategoryRepo{newMemoryTable("category", ConstraintCategoryName, func(c *Category) *Entry { return &c.Entry })}
}

type MemoryGenreRepo struct {
	*memoryTable[Genre]
}

func NewMemoryGenreRepo() *MemoryGenreRepo {
	return &MemoryGenreRepo{newMemoryTable("genre", ConstraintGenreName, func(g *Genre) *Entry { return &g.Entry })}
}

func (m *MemoryGenreRepo) ListByMediaType(ctx context.Context, t catalog.Type) ([]Genre, error) {
	return m.collect(ctx, func(g Genre) bool {
		return g.Active && g.AppliesTo(t)
	})
}
