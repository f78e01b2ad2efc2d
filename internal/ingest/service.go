package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"mediacatalog/internal/catalog"
	"mediacatalog/internal/platform/openlibrary"
)

const (
	maxISBNsPerRequest = 100
	defaultBatchSize   = 20
)

type Config struct {
	BatchSize int
}

type MetadataClient interface {
	GetBooksByISBN(ctx context.Context, isbns []string) (map[string]openlibrary.BookDetails, error)
}

// Creator is the part of the catalog service an import writes through, so
// imported records get the same validation and duplicate checks.
type Creator interface {
	Create(ctx context.Context, r catalog.Record, actingUserID int64) (catalog.Record, error)
}

type Service struct {
	client  MetadataClient
	catalog Creator
	cfg     Config
	logger  *slog.Logger
}

func NewService(client MetadataClient, creator Creator, cfg Config, logger *slog.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, catalog: creator, cfg: cfg, logger: logger.With("component", "ingest")}
}

// Import fetches metadata for req.ISBNs in batches and creates a book for
// each ISBN Open Library knows. A failed fetch aborts the import; records
// created before it stay.
func (s *Service) Import(ctx context.Context, req Request, actingUserID int64) (Result, error) {
	isbns, err := normalizeRequest(req)
	if err != nil {
		return Result{}, err
	}

	started := time.Now()
	result := Result{Created: []catalog.Record{}, Skipped: []Issue{}, Missing: []string{}, Rejected: []Issue{}}
	fetched := 0

	for start := 0; start < len(isbns); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(isbns))
		batch := isbns[start:end]

		details, err := s.client.GetBooksByISBN(ctx, batch)
		if err != nil {
			s.logger.ErrorContext(ctx, "metadata fetch failed", "batch_start", start, "error", err)
			return result, fmt.Errorf("fetch metadata: %w", err)
		}
		fetched += len(details)

		for _, isbn := range batch {
			d, ok := details[isbn]
			if !ok {
				result.Missing = append(result.Missing, isbn)
				continue
			}
			s.create(ctx, &result, recordFromDetails(isbn, d, req), actingUserID)
		}
	}

	run := result.run(len(isbns), fetched)
	s.logger.InfoContext(ctx, "import finished",
		"requested", run.Requested,
		"fetched", run.Fetched,
		"created", run.Created,
		"skipped", run.Skipped,
		"missing", run.Missing,
		"rejected", run.Rejected,
		"duration", time.Since(started),
	)
	return result, nil
}

func (s *Service) create(ctx context.Context, result *Result, r catalog.Record, actingUserID int64) {
	created, err := s.catalog.Create(ctx, r, actingUserID)
	switch {
	case err == nil:
		result.Created = append(result.Created, created)
	case errors.Is(err, catalog.ErrDuplicate):
		result.Skipped = append(result.Skipped, Issue{ISBN: r.ISBN, Reason: err.Error()})
	case errors.Is(err, catalog.ErrValidation):
		result.Rejected = append(result.Rejected, Issue{ISBN: r.ISBN, Reason: err.Error()})
	default:
		s.logger.ErrorContext(ctx, "import create failed", "isbn", r.ISBN, "error", err)
		result.Rejected = append(result.Rejected, Issue{ISBN: r.ISBN, Reason: "internal error"})
	}
}

// normalizeRequest validates req and returns its ISBNs with separators
// stripped, blanks dropped and duplicates removed, in request order.
func normalizeRequest(req Request) ([]string, error) {
	var fields []catalog.FieldError
	if req.Quantity < 0 {
		fields = append(fields, catalog.FieldError{Field: "quantity", Message: "quantity must be at least 0"})
	}

	seen := make(map[string]bool, len(req.ISBNs))
	isbns := make([]string, 0, len(req.ISBNs))
	for _, raw := range req.ISBNs {
		isbn := normalizeISBN(raw)
		if isbn == "" || seen[isbn] {
			continue
		}
		seen[isbn] = true
		isbns = append(isbns, isbn)
	}
	switch {
	case len(isbns) == 0:
		fields = append(fields, catalog.FieldError{Field: "isbns", Message: "at least one isbn is required"})
	case len(isbns) > maxISBNsPerRequest:
		fields = append(fields, catalog.FieldError{Field: "isbns", Message: fmt.Sprintf("at most %d isbns per request", maxISBNsPerRequest)})
	}

	if len(fields) > 0 {
		return nil, &catalog.ValidationError{Fields: fields}
	}
	return isbns, nil
}

func normalizeISBN(s string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(s)))
}

func recordFromDetails(isbn string, d openlibrary.BookDetails, req Request) catalog.Record {
	title := d.Title
	if d.Subtitle != "" {
		title += ": " + d.Subtitle
	}
	r := catalog.Record{
		Title:       truncate(strings.TrimSpace(title), 200),
		Author:      truncate(d.AuthorNames(), 100),
		ISBN:        isbn,
		Type:        catalog.TypeBook,
		Genre:       strings.TrimSpace(req.Genre),
		Category:    strings.TrimSpace(req.Category),
		Description: truncate(d.Notes, 1000),
		Quantity:    req.Quantity,
	}
	if published, ok := parsePublishDate(d.PublishDate); ok {
		r.PublicationDate = &published
	}
	return r
}

var publishDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"January 2006",
	"Jan 2006",
	"2006-01-02",
	"2006",
}

// parsePublishDate understands the free-form dates Open Library returns.
// Missing parts default to the first month or day.
func parsePublishDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}
