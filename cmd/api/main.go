package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediacatalog/internal/catalog"
	"mediacatalog/internal/config"
	"mediacatalog/internal/httpx"
	"mediacatalog/internal/ingest"
	"mediacatalog/internal/lookup"
	"mediacatalog/internal/platform/openlibrary"
)

const userAgent = "mediacatalog/1.0 (+https://openlibrary.org/developers/api)"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		slog.Error("missing required environment variable", "name", "JWT_SECRET")
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := appDeps{
		cfg:      cfg,
		logger:   logger,
		metadata: openlibrary.NewClient(cfg.OpenLibraryURL, userAgent, cfg.OpenLibraryRPS, cfg.OpenLibraryRetries),
	}
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on exit")
		deps.media = catalog.NewMemoryRepo()
		deps.categories = lookup.NewMemoryCategoryRepo()
		deps.genres = lookup.NewMemoryGenreRepo()
	} else {
		pool := mustOpenDB(ctx, cfg.DSN, logger)
		defer pool.Close()
		deps.media = catalog.NewPostgresRepo(pool, cfg.DBTimeout)
		deps.categories = lookup.NewPostgresCategoryRepo(pool, cfg.DBTimeout)
		deps.genres = lookup.NewPostgresGenreRepo(pool, cfg.DBTimeout)
		deps.ping = pool.Ping
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(ctx, deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("starting server", "addr", cfg.Addr, "store", cfg.Store)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// mediaStore is what the catalog services need from a backend.
type mediaStore interface {
	catalog.Store
	catalog.Purger
}

type appDeps struct {
	cfg        *config.Config
	logger     *slog.Logger
	media      mediaStore
	categories lookup.CategoryRepository
	genres     lookup.GenreRepository
	metadata   ingest.MetadataClient
	// ping checks the backing database; nil for the memory store.
	ping func(context.Context) error
}

func newRouter(ctx context.Context, deps appDeps) http.Handler {
	cfg, logger := deps.cfg, deps.logger

	svc := catalog.NewService(deps.media, logger)
	mediaHandler := catalog.NewHTTPHandler(svc, catalog.NewSearchEngine(deps.media), catalog.NewAdmin(deps.media, deps.media, logger))
	lookupHandler := lookup.NewHTTPHandler(
		lookup.NewCategoryService(deps.categories, logger),
		lookup.NewGenreService(deps.genres, logger),
	)

	r := chi.NewRouter()
	r.Use(
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(logger),
		httpx.RecoveryMiddleware(logger),
		httpx.SecurityHeadersMiddleware(cfg.EnableHSTS),
		httpx.CORSMiddleware(cfg.CORSOrigins),
		httpx.RequestSizeLimitMiddleware(cfg.MaxBodyBytes),
	)
	if cfg.RateLimitRPS > 0 {
		r.Use(httpx.NewRateLimitMiddleware(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := deps.ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	auth := httpx.AuthMiddleware(cfg.JWTSecret)
	mediaHandler.RegisterRoutes(r, auth)
	lookupHandler.RegisterRoutes(r, auth)
	if deps.metadata != nil {
		importer := ingest.NewService(deps.metadata, svc, ingest.Config{BatchSize: cfg.ImportBatchSize}, logger)
		ingest.NewHTTPHandler(importer).RegisterRoutes(r, auth)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	return r
}

func mustOpenDB(ctx context.Context, dsn string, logger *slog.Logger) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Error("cannot create db pool", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		logger.Error("cannot ping database", "dsn", redactDSN(dsn), "error", err)
		os.Exit(1)
	}
	logger.Info("database connection OK")
	return pool
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
