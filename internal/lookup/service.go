package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediacatalog/internal/catalog"
)

// registry holds the rules shared by the category and genre services.
// Deleting deactivates: entries referenced by records by name must stay
// resolvable.
type registry[T any] struct {
	store      Store[T]
	entity     string
	constraint string
	entry      func(*T) *Entry
	validate   func(T) error
	logger     *slog.Logger
	now        func() time.Time
}

func newRegistry[T any](store Store[T], entity, constraint string, entry func(*T) *Entry, validate func(T) error, logger *slog.Logger) registry[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return registry[T]{
		store:      store,
		entity:     entity,
		constraint: constraint,
		entry:      entry,
		validate:   validate,
		logger:     logger.With("component", entity),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *registry[T]) Create(ctx context.Context, v T, actingUserID int64) (T, error) {
	var zero T
	e := s.entry(&v)
	e.ID = 0
	e.Name = strings.TrimSpace(e.Name)
	e.Active = true
	e.CreatedAt = s.now()
	e.CreatedByUserID = actingUserID

	s.logger.InfoContext(ctx, "creating "+s.entity, "name", e.Name)

	if err := s.validate(v); err != nil {
		return zero, err
	}
	unique, err := s.IsNameUnique(ctx, e.Name, 0)
	if err != nil {
		return zero, err
	}
	if !unique {
		return zero, catalog.NewDuplicateError(s.entity, "name", e.Name, nil)
	}

	created, err := s.store.Create(ctx, v)
	if err != nil {
		s.logger.ErrorContext(ctx, "create "+s.entity+" failed", "name", e.Name, "error", err)
		return zero, s.translate(err, e.Name)
	}
	s.logger.InfoContext(ctx, s.entity+" created", "id", s.entry(&created).ID)
	return created, nil
}

func (s *registry[T]) Get(ctx context.Context, id int64) (T, error) {
	return s.store.GetByID(ctx, id)
}

// List returns active and inactive entries ordered by name.
func (s *registry[T]) List(ctx context.Context) ([]T, error) {
	return s.store.List(ctx, false)
}

func (s *registry[T]) ListActive(ctx context.Context) ([]T, error) {
	return s.store.List(ctx, true)
}

// Update changes name and description. Activity and creation stamps are
// kept from the stored entry.
func (s *registry[T]) Update(ctx context.Context, v T) (bool, error) {
	e := s.entry(&v)
	e.Name = strings.TrimSpace(e.Name)
	s.logger.InfoContext(ctx, "updating "+s.entity, "id", e.ID, "name", e.Name)

	existing, err := s.store.GetByID(ctx, e.ID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.logger.WarnContext(ctx, s.entity+" not found for update", "id", e.ID)
		}
		return false, err
	}
	prev := s.entry(&existing)
	e.Active = prev.Active
	e.CreatedAt = prev.CreatedAt
	e.CreatedByUserID = prev.CreatedByUserID

	if err := s.validate(v); err != nil {
		return false, err
	}
	unique, err := s.IsNameUnique(ctx, e.Name, e.ID)
	if err != nil {
		return false, err
	}
	if !unique {
		return false, catalog.NewDuplicateError(s.entity, "name", e.Name, nil)
	}

	ok, err := s.store.Update(ctx, v)
	if err != nil {
		s.logger.ErrorContext(ctx, "update "+s.entity+" failed", "id", e.ID, "error", err)
		return false, s.translate(err, e.Name)
	}
	s.logger.InfoContext(ctx, s.entity+" updated", "id", e.ID)
	return ok, nil
}

// Delete deactivates the entry. It returns false for an unknown id.
func (s *registry[T]) Delete(ctx context.Context, id int64) (bool, error) {
	s.logger.InfoContext(ctx, "deactivating "+s.entity, "id", id)

	ok, err := s.store.SetActive(ctx, id, false)
	if err != nil {
		return false, fmt.Errorf("deactivate %s %d: %w", s.entity, id, err)
	}
	if ok {
		s.logger.InfoContext(ctx, s.entity+" deactivated", "id", id)
	} else {
		s.logger.WarnContext(ctx, s.entity+" not found for deactivation", "id", id)
	}
	return ok, nil
}

func (s *registry[T]) Reactivate(ctx context.Context, id int64) (bool, error) {
	s.logger.InfoContext(ctx, "reactivating "+s.entity, "id", id)

	ok, err := s.store.SetActive(ctx, id, true)
	if err != nil {
		return false, fmt.Errorf("reactivate %s %d: %w", s.entity, id, err)
	}
	return ok, nil
}

func (s *registry[T]) GetByName(ctx context.Context, name string) (T, error) {
	return s.store.GetByName(ctx, strings.TrimSpace(name))
}

// IsNameUnique reports whether name is free, ignoring case. excludeID
// lets an entry keep its own name; pass 0 to exclude nothing.
func (s *registry[T]) IsNameUnique(ctx context.Context, name string, excludeID int64) (bool, error) {
	existing, err := s.store.GetByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, catalog.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s name: %w", s.entity, err)
	}
	return excludeID != 0 && s.entry(&existing).ID == excludeID, nil
}

func (s *registry[T]) Search(ctx context.Context, term string) ([]T, error) {
	return s.store.Search(ctx, strings.TrimSpace(term))
}

func (s *registry[T]) translate(err error, name string) error {
	var cerr *catalog.ConstraintError
	if errors.As(err, &cerr) && cerr.Constraint == s.constraint {
		return catalog.NewDuplicateError(s.entity, "name", name, err)
	}
	return err
}

type CategoryService struct {
	registry[Category]
}

func NewCategoryService(repo CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		registry: newRegistry[Category](repo, "category", ConstraintCategoryName,
			func(c *Category) *Entry { return &c.Entry }, validateCategory, logger),
	}
}

type GenreService struct {
	registry[Genre]
	repo GenreRepository
}

func NewGenreService(repo GenreRepository, logger *slog.Logger) *GenreService {
	return &GenreService{
		registry: newRegistry[Genre](repo, "genre", ConstraintGenreName,
			func(g *Genre) *Entry { return &g.Entry }, validateGenre, logger),
		repo: repo,
	}
}

// ListByMediaType returns the active genres usable for records of type t.
func (s *GenreService) ListByMediaType(ctx context.Context, t catalog.Type) ([]Genre, error) {
	if !t.Valid() {
		return nil, &catalog.ValidationError{Fields: []catalog.FieldError{{Field: "type", Message: fmt.Sprintf("type %d is not a known media type", int(t))}}}
	}
	return s.repo.ListByMediaType(ctx, t)
}
