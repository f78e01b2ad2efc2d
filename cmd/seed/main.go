package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mediacatalog/internal/catalog"
	"mediacatalog/internal/config"
	"mediacatalog/internal/lookup"
)

// seedUserID stamps rows created by the seeder.
const seedUserID int64 = 1

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	s := seeder{
		media:      catalog.NewService(catalog.NewPostgresRepo(pool, cfg.DBTimeout), logger),
		categories: lookup.NewCategoryService(lookup.NewPostgresCategoryRepo(pool, cfg.DBTimeout), logger),
		genres:     lookup.NewGenreService(lookup.NewPostgresGenreRepo(pool, cfg.DBTimeout), logger),
		logger:     logger,
	}
	report, err := s.run(ctx)
	if err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	total, err := s.media.TotalCount(ctx)
	if err != nil {
		logger.Error("count media records", "error", err)
		os.Exit(1)
	}
	logger.Info("seeding complete",
		"created", report.created,
		"skipped", report.skipped,
		"media_total", total,
	)
}

type seeder struct {
	media      *catalog.Service
	categories *lookup.CategoryService
	genres     *lookup.GenreService
	logger     *slog.Logger
}

type seedReport struct {
	created int
	skipped int
}

// run inserts the sample data. Entries that already exist are skipped, so
// running it twice is harmless.
func (s seeder) run(ctx context.Context) (seedReport, error) {
	var report seedReport
	track := func(kind, name string, err error) error {
		switch {
		case err == nil:
			report.created++
			s.logger.Info("seeded", "kind", kind, "name", name)
			return nil
		case errors.Is(err, catalog.ErrDuplicate):
			report.skipped++
			s.logger.Info("already present", "kind", kind, "name", name)
			return nil
		default:
			return err
		}
	}

	for _, c := range sampleCategories() {
		_, err := s.categories.Create(ctx, c, seedUserID)
		if err := track("category", c.Name, err); err != nil {
			return report, err
		}
	}
	for _, g := range sampleGenres() {
		_, err := s.genres.Create(ctx, g, seedUserID)
		if err := track("genre", g.Name, err); err != nil {
			return report, err
		}
	}
	for _, r := range sampleMedia() {
		_, err := s.media.Create(ctx, r, seedUserID)
		if err := track("media", r.Title, err); err != nil {
			return report, err
		}
	}
	return report, nil
}
