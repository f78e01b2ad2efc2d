package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mediacatalog/internal/catalog"
)

const (
	colID          = "id"
	colName        = "name"
	colDescription = "description"
	colActive      = "is_active"
	colCreatedAt   = "created_at"
	colCreatedBy   = "created_by_user_id"
	colApplicable  = "applicable_to_media_type"

	pgUniqueViolation = "23505"
)

var dialect = goqu.Dialect("postgres")

// pgTable implements Store for one lookup table. Columns past the shared
// Entry ones are described by extraCols, extraValues and scan.
type pgTable[T any] struct {
	db      *pgxpool.Pool
	timeout time.Duration
	tracer  trace.Tracer

	table       string
	entity      string
	entry       func(*T) *Entry
	extraCols   []any
	extraValues func(T) goqu.Record
	scan        func(pgx.Row) (T, error)
}

func (p *pgTable[T]) columns() []any {
	cols := []any{colID, colName, colDescription, colActive, colCreatedAt, colCreatedBy}
	return append(cols, p.extraCols...)
}

func (p *pgTable[T]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *pgTable[T]) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "lookup."+p.entity+"."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (p *pgTable[T]) Create(ctx context.Context, v T) (_ T, err error) {
	ctx, span := p.startSpan(ctx, "create")
	defer func() { endSpan(span, err) }()

	e := p.entry(&v)
	row := goqu.Record{
		colName:        e.Name,
		colDescription: e.Description,
		colActive:      e.Active,
		colCreatedAt:   e.CreatedAt,
		colCreatedBy:   e.CreatedByUserID,
	}
	if p.extraValues != nil {
		for k, val := range p.extraValues(v) {
			row[k] = val
		}
	}
	query, args, err := dialect.Insert(p.table).Prepared(true).Rows(row).Returning(colID).ToSQL()
	if err != nil {
		return v, fmt.Errorf("build insert %s: %w", p.entity, err)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if err := p.db.QueryRow(ctx, query, args...).Scan(&e.ID); err != nil {
		var zero T
		return zero, fmt.Errorf("insert %s: %w", p.entity, mapWriteErr(err))
	}
	return v, nil
}

func (p *pgTable[T]) GetByID(ctx context.Context, id int64) (_ T, err error) {
	ctx, span := p.startSpan(ctx, "get_by_id", attribute.Int64("lookup.id", id))
	defer func() { endSpan(span, err) }()

	v, err := p.selectOne(ctx, goqu.C(colID).Eq(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return v, notFound(p.entity, id)
	}
	return v, err
}

func (p *pgTable[T]) GetByName(ctx context.Context, name string) (_ T, err error) {
	ctx, span := p.startSpan(ctx, "get_by_name")
	defer func() { endSpan(span, err) }()

	v, err := p.selectOne(ctx, goqu.Func("lower", goqu.C(colName)).Eq(strings.ToLower(name)))
	if errors.Is(err, pgx.ErrNoRows) {
		return v, nameNotFound(p.entity, name)
	}
	return v, err
}

func (p *pgTable[T]) List(ctx context.Context, activeOnly bool) ([]T, error) {
	var where []exp.Expression
	if activeOnly {
		where = append(where, goqu.C(colActive).IsTrue())
	}
	return p.selectMany(ctx, "list", where...)
}

func (p *pgTable[T]) Search(ctx context.Context, term string) ([]T, error) {
	where := []exp.Expression{goqu.C(colActive).IsTrue()}
	if term = strings.TrimSpace(term); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		where = append(where, goqu.Or(
			goqu.C(colName).ILike(pattern),
			goqu.C(colDescription).ILike(pattern),
		))
	}
	return p.selectMany(ctx, "search", where...)
}

func (p *pgTable[T]) Update(ctx context.Context, v T) (_ bool, err error) {
	e := p.entry(&v)
	ctx, span := p.startSpan(ctx, "update", attribute.Int64("lookup.id", e.ID))
	defer func() { endSpan(span, err) }()

	set := goqu.Record{colName: e.Name, colDescription: e.Description}
	if p.extraValues != nil {
		for k, val := range p.extraValues(v) {
			set[k] = val
		}
	}
	query, args, err := dialect.Update(p.table).Prepared(true).Set(set).Where(goqu.C(colID).Eq(e.ID)).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build update %s: %w", p.entity, err)
	}
	return p.exec(ctx, query, args)
}

func (p *pgTable[T]) SetActive(ctx context.Context, id int64, active bool) (_ bool, err error) {
	ctx, span := p.startSpan(ctx, "set_active", attribute.Int64("lookup.id", id), attribute.Bool("lookup.active", active))
	defer func() { endSpan(span, err) }()

	query, args, err := dialect.Update(p.table).Prepared(true).
		Set(goqu.Record{colActive: active}).
		Where(goqu.C(colID).Eq(id)).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build set_active %s: %w", p.entity, err)
	}
	return p.exec(ctx, query, args)
}

func (p *pgTable[T]) exec(ctx context.Context, query string, args []any) (bool, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("write %s: %w", p.entity, mapWriteErr(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (p *pgTable[T]) selectOne(ctx context.Context, where exp.Expression) (T, error) {
	var zero T
	query, args, err := dialect.From(p.table).Prepared(true).Select(p.columns()...).Where(where).Limit(1).ToSQL()
	if err != nil {
		return zero, fmt.Errorf("build %s query: %w", p.entity, err)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	return p.scan(p.db.QueryRow(ctx, query, args...))
}

func (p *pgTable[T]) selectMany(ctx context.Context, op string, where ...exp.Expression) (_ []T, err error) {
	ctx, span := p.startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	query, args, err := dialect.From(p.table).Prepared(true).
		Select(p.columns()...).
		Where(where...).
		Order(goqu.C(colName).Asc(), goqu.C(colID).Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s %s query: %w", p.entity, op, err)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := p.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanEntry(e *Entry) []any {
	return []any{&e.ID, &e.Name, &e.Description, &e.Active, &e.CreatedAt, &e.CreatedByUserID}
}

type PostgresCategoryRepo struct {
	*pgTable[Category]
}

func NewPostgresCategoryRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{&pgTable[Category]{
		db:      db,
		timeout: timeout,
		tracer:  otel.Tracer("mediacatalog/lookup"),
		table:   "categories",
		entity:  "category",
		entry:   func(c *Category) *Entry { return &c.Entry },
		scan: func(row pgx.Row) (Category, error) {
			var c Category
			err := row.Scan(scanEntry(&c.Entry)...)
			return c, err
		},
	}}
}

type PostgresGenreRepo struct {
	*pgTable[Genre]
}

func NewPostgresGenreRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresGenreRepo {
	return &PostgresGenreRepo{&pgTable[Genre]{
		db:        db,
		timeout:   timeout,
		tracer:    otel.Tracer("mediacatalog/lookup"),
		table:     "genres",
		entity:    "genre",
		entry:     func(g *Genre) *Entry { return &g.Entry },
		extraCols: []any{colApplicable},
		extraValues: func(g Genre) goqu.Record {
			var applicable *int16
			if g.ApplicableTo != nil {
				t := int16(*g.ApplicableTo)
				applicable = &t
			}
			return goqu.Record{colApplicable: applicable}
		},
		scan: scanGenre,
	}}
}

func scanGenre(row pgx.Row) (Genre, error) {
	var (
		g          Genre
		applicable *int16
	)
	if err := row.Scan(append(scanEntry(&g.Entry), &applicable)...); err != nil {
		return Genre{}, err
	}
	if applicable != nil {
		t := catalog.Type(*applicable)
		g.ApplicableTo = &t
	}
	return g, nil
}

func (r *PostgresGenreRepo) ListByMediaType(ctx context.Context, t catalog.Type) ([]Genre, error) {
	return r.selectMany(ctx, "list_by_media_type",
		goqu.C(colActive).IsTrue(),
		goqu.Or(goqu.C(colApplicable).IsNull(), goqu.C(colApplicable).Eq(int16(t))),
	)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &catalog.ConstraintError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}
