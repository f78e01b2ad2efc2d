package catalog

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
)

const (
	tableMedia = "media_items"

	colID                = "id"
	colTitle             = "title"
	colAuthor            = "author"
	colISBN              = "isbn"
	colType              = "type"
	colGenre             = "genre"
	colCategory          = "category"
	colPublicationDate   = "publication_date"
	colDescription       = "description"
	colQuantity          = "quantity"
	colAvailableQuantity = "available_quantity"
	colStatus            = "status"
	colCreatedAt         = "created_at"
	colUpdatedAt         = "updated_at"
	colCreatedBy         = "created_by_user_id"
	colUpdatedBy         = "updated_by_user_id"

	pgUniqueViolation = "23505"
)

var (
	dialect = goqu.Dialect("postgres")

	recordColumns = []any{
		colID, colTitle, colAuthor, colISBN, colType, colGenre, colCategory,
		colPublicationDate, colDescription, colQuantity, colAvailableQuantity,
		colStatus, colCreatedAt, colUpdatedAt, colCreatedBy, colUpdatedBy,
	}
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepo is the Store and Purger backed by Postgres. Dynamic reads
// are built with goqu; writes are plain SQL.
type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
	tracer  trace.Tracer
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{
		db:      db,
		timeout: timeout,
		tracer:  otel.Tracer("mediacatalog/catalog"),
	}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "catalog.store."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (r *PostgresRepo) Create(ctx context.Context, rec Record) (_ Record, err error) {
	ctx, span := r.startSpan(ctx, "create", attribute.String("media.title", rec.Title))
	defer func() { endSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return insertRecord(ctx, r.db, rec)
}

const insertSQL = `
	INSERT INTO media_items (title, author, isbn, type, genre, category, publication_date, description,
	                         quantity, available_quantity, status, created_at, created_by_user_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING id`

func insertRecord(ctx context.Context, q querier, rec Record) (Record, error) {
	if rec.Status == "" {
		rec.Status = StatusActive
	}
	err := q.QueryRow(ctx, insertSQL,
		rec.Title, rec.Author, rec.ISBN, int16(rec.Type), rec.Genre, rec.Category, rec.PublicationDate,
		rec.Description, rec.Quantity, rec.AvailableQuantity, string(rec.Status), rec.CreatedAt, rec.CreatedByUserID,
	).Scan(&rec.ID)
	if err != nil {
		return Record{}, fmt.Errorf("insert media record: %w", mapWriteErr(err))
	}
	return rec, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id int64, includeDeleted bool) (_ Record, err error) {
	ctx, span := r.startSpan(ctx, "get_by_id", attribute.Int64("media.id", id))
	defer func() { endSpan(span, err) }()

	ds := dialect.From(tableMedia).Prepared(true).Select(recordColumns...).Where(goqu.C(colID).Eq(id))
	if !includeDeleted {
		ds = ds.Where(activeOnly())
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return Record{}, fmt.Errorf("build get query: %w", err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rec, err := scanRecord(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, notFound(id)
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *PostgresRepo) List(ctx context.Context, includeDeleted bool) ([]Record, error) {
	var where []exp.Expression
	if !includeDeleted {
		where = append(where, activeOnly())
	}
	return r.selectRecords(ctx, "list", where, SortByTitle)
}

const updateSQL = `
	UPDATE media_items
	SET title = $2, author = $3, isbn = $4, type = $5, genre = $6, category = $7, publication_date = $8,
	    description = $9, quantity = $10, available_quantity = $11, status = $12,
	    updated_at = $13, updated_by_user_id = $14
	WHERE id = $1`

func (r *PostgresRepo) Update(ctx context.Context, rec Record) (_ bool, err error) {
	ctx, span := r.startSpan(ctx, "update", attribute.Int64("media.id", rec.ID))
	defer func() { endSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, updateSQL,
		rec.ID, rec.Title, rec.Author, rec.ISBN, int16(rec.Type), rec.Genre, rec.Category, rec.PublicationDate,
		rec.Description, rec.Quantity, rec.AvailableQuantity, string(rec.Status), rec.UpdatedAt, rec.UpdatedByUserID,
	)
	if err != nil {
		return false, fmt.Errorf("update media record %d: %w", rec.ID, mapWriteErr(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id, actingUserID int64, at time.Time) (_ bool, err error) {
	ctx, span := r.startSpan(ctx, "soft_delete", attribute.Int64("media.id", id))
	defer func() { endSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const query = `
		UPDATE media_items
		SET status = 'deleted', updated_at = $2, updated_by_user_id = $3
		WHERE id = $1 AND status = 'active'`
	tag, err := r.db.Exec(ctx, query, id, at, actingUserID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) HardDelete(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := r.startSpan(ctx, "hard_delete", attribute.Int64("media.id", id))
	defer func() { endSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM media_items WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) Search(ctx context.Context, term string) ([]Record, error) {
	where := []exp.Expression{activeOnly()}
	if term = strings.TrimSpace(term); term != "" {
		where = append(where, termMatch(term, colTitle, colAuthor, colISBN, colDescription))
	}
	return r.selectRecords(ctx, "search", where, SortByTitle)
}

func (r *PostgresRepo) Filter(ctx context.Context, f Filter) ([]Record, error) {
	where := append([]exp.Expression{activeOnly()}, filterExpressions(f)...)
	return r.selectRecords(ctx, "filter", where, SortByTitle)
}

func (r *PostgresRepo) Page(ctx context.Context, q PageQuery) (_ []Record, _ int, err error) {
	ctx, span := r.startSpan(ctx, "page",
		attribute.Int("page.number", q.PageNumber),
		attribute.Int("page.size", q.PageSize),
	)
	defer func() { endSpan(span, err) }()

	if q.PageNumber < 1 || q.PageSize < 1 {
		return nil, 0, &ValidationError{Fields: []FieldError{{Field: "page", Message: "page number and size must be positive"}}}
	}

	countSQL, countArgs, err := pageCountQuery(q).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL, dataArgs, err := pageQuery(q).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build page query: %w", err)
	}

	items, err := queryRecords(ctx, r.db, dataSQL, dataArgs)
	if err != nil {
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int("page.total", total), attribute.Int("page.items", len(items)))
	return items, total, nil
}

func pageWhere(q PageQuery) []exp.Expression {
	var where []exp.Expression
	if !q.IncludeDeleted {
		where = append(where, activeOnly())
	}
	if term := strings.TrimSpace(q.Term); term != "" {
		where = append(where, termMatch(term, colTitle, colAuthor, colISBN))
	}
	return append(where, filterExpressions(Filter{Type: q.Type, Category: q.Category, Genre: q.Genre})...)
}

func pageCountQuery(q PageQuery) *goqu.SelectDataset {
	return dialect.From(tableMedia).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(pageWhere(q)...)
}

func pageQuery(q PageQuery) *goqu.SelectDataset {
	return dialect.From(tableMedia).Prepared(true).
		Select(recordColumns...).
		Where(pageWhere(q)...).
		Order(orderBy(q.SortBy)...).
		Limit(uint(q.PageSize)).
		Offset(uint(q.offset()))
}

func (r *PostgresRepo) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	return r.exists(ctx, "exists_by_isbn", goqu.C(colISBN).Eq(isbn))
}

func (r *PostgresRepo) ExistsByTitleAuthor(ctx context.Context, title, author string) (bool, error) {
	return r.exists(ctx, "exists_by_title_author", goqu.C(colTitle).Eq(title), goqu.C(colAuthor).Eq(author))
}

func (r *PostgresRepo) CountTotal(ctx context.Context) (int, error) {
	return r.count(ctx, "count_total")
}

func (r *PostgresRepo) CountAvailable(ctx context.Context) (int, error) {
	return r.count(ctx, "count_available", goqu.C(colAvailableQuantity).Gt(0))
}

func (r *PostgresRepo) CountByType(ctx context.Context, t Type) (int, error) {
	return r.count(ctx, "count_by_type", goqu.C(colType).Eq(int16(t)))
}

func (r *PostgresRepo) BulkCreate(ctx context.Context, records []Record) (_ []Record, err error) {
	ctx, span := r.startSpan(ctx, "bulk_create", attribute.Int("media.count", len(records)))
	defer func() { endSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := make([]Record, 0, len(records))
	for i, rec := range records {
		created, err := insertRecord(ctx, tx, rec)
		if err != nil {
			return nil, fmt.Errorf("bulk create record %d: %w", i, err)
		}
		out = append(out, created)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepo) BulkUpdateQuantities(ctx context.Context, quantities map[int64]int, actingUserID int64, at time.Time) (_ []int64, err error) {
	ctx, span := r.startSpan(ctx, "bulk_update_quantities", attribute.Int("media.count", len(quantities)))
	defer func() { endSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sortIDs(ids)

	// Lock the rows in id order so concurrent batches cannot deadlock.
	rows, err := tx.Query(ctx, `
		SELECT id, quantity, available_quantity
		FROM media_items
		WHERE id = ANY($1) AND status = 'active'
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	current := make(map[int64]Record, len(ids))
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Quantity, &rec.AvailableQuantity); err != nil {
			rows.Close()
			return nil, err
		}
		current[rec.ID] = rec
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var skipped []int64
	for _, id := range ids {
		rec, ok := current[id]
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		if err := rec.SetQuantity(quantities[id]); err != nil {
			return nil, fmt.Errorf("record %d: %w", id, err)
		}
		const query = `
			UPDATE media_items
			SET quantity = $2, available_quantity = $3, updated_at = $4, updated_by_user_id = $5
			WHERE id = $1`
		if _, err := tx.Exec(ctx, query, id, rec.Quantity, rec.AvailableQuantity, at, actingUserID); err != nil {
			return nil, fmt.Errorf("update quantity of record %d: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("media.skipped", len(skipped)))
	return skipped, nil
}

func (r *PostgresRepo) selectRecords(ctx context.Context, op string, where []exp.Expression, by SortField) (_ []Record, err error) {
	ctx, span := r.startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	query, args, err := dialect.From(tableMedia).Prepared(true).
		Select(recordColumns...).
		Where(where...).
		Order(orderBy(by)...).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", op, err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return queryRecords(ctx, r.db, query, args)
}

func (r *PostgresRepo) exists(ctx context.Context, op string, where ...exp.Expression) (bool, error) {
	n, err := r.count(ctx, op, where...)
	return n > 0, err
}

// count only considers active records.
func (r *PostgresRepo) count(ctx context.Context, op string, where ...exp.Expression) (_ int, err error) {
	ctx, span := r.startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	query, args, err := dialect.From(tableMedia).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(append([]exp.Expression{activeOnly()}, where...)...).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build %s query: %w", op, err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func queryRecords(ctx context.Context, q querier, query string, args []any) ([]Record, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		typ    int16
		status string
	)
	err := row.Scan(
		&rec.ID, &rec.Title, &rec.Author, &rec.ISBN, &typ, &rec.Genre, &rec.Category,
		&rec.PublicationDate, &rec.Description, &rec.Quantity, &rec.AvailableQuantity,
		&status, &rec.CreatedAt, &rec.UpdatedAt, &rec.CreatedByUserID, &rec.UpdatedByUserID,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Type = Type(typ)
	rec.Status = Status(status)
	return rec, nil
}

func activeOnly() exp.Expression {
	return goqu.C(colStatus).Eq(string(StatusActive))
}

// termMatch is a case-insensitive substring match over cols.
func termMatch(term string, cols ...string) exp.Expression {
	pattern := "%" + escapeLike(term) + "%"
	ors := make([]exp.Expression, 0, len(cols))
	for _, c := range cols {
		ors = append(ors, goqu.C(c).ILike(pattern))
	}
	return goqu.Or(ors...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func filterExpressions(f Filter) []exp.Expression {
	var out []exp.Expression
	if f.Title != "" {
		out = append(out, goqu.C(colTitle).Eq(f.Title))
	}
	if f.Type != nil {
		out = append(out, goqu.C(colType).Eq(int16(*f.Type)))
	}
	if f.Category != "" {
		out = append(out, goqu.C(colCategory).Eq(f.Category))
	}
	if f.Genre != "" {
		out = append(out, goqu.C(colGenre).Eq(f.Genre))
	}
	if f.Author != "" {
		out = append(out, goqu.C(colAuthor).Eq(f.Author))
	}
	if f.ISBN != "" {
		out = append(out, goqu.C(colISBN).Eq(f.ISBN))
	}
	if f.AvailableOnly {
		out = append(out, goqu.C(colAvailableQuantity).Gt(0))
	}
	return out
}

func orderBy(by SortField) []exp.OrderedExpression {
	switch by {
	case SortByID:
		return []exp.OrderedExpression{goqu.I(colID).Asc()}
	case SortByAuthor:
		return []exp.OrderedExpression{goqu.I(colAuthor).Asc(), goqu.I(colTitle).Asc(), goqu.I(colID).Asc()}
	case SortByYear:
		return []exp.OrderedExpression{goqu.I(colPublicationDate).Asc().NullsLast(), goqu.I(colTitle).Asc(), goqu.I(colID).Asc()}
	default:
		return []exp.OrderedExpression{goqu.I(colTitle).Asc(), goqu.I(colID).Asc()}
	}
}

// mapWriteErr classifies unique index violations so the service can
// report them as duplicates.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &ConstraintError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}
