package lookup

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mediacatalog/internal/catalog"
	"mediacatalog/internal/httpx"
)

type service[T any] interface {
	Create(ctx context.Context, v T, actingUserID int64) (T, error)
	Get(ctx context.Context, id int64) (T, error)
	List(ctx context.Context) ([]T, error)
	ListActive(ctx context.Context) ([]T, error)
	Update(ctx context.Context, v T) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Reactivate(ctx context.Context, id int64) (bool, error)
	GetByName(ctx context.Context, name string) (T, error)
	IsNameUnique(ctx context.Context, name string, excludeID int64) (bool, error)
	Search(ctx context.Context, term string) ([]T, error)
}

// EntryRequest is the writable part of a category.
type EntryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type GenreRequest struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	ApplicableTo *catalog.Type `json:"applicable_to_media_type"`
}

// entryHandler serves one lookup list under a common route shape.
type entryHandler[T any] struct {
	svc    service[T]
	decode func(r *http.Request, id int64) (T, error)
}

func (h *entryHandler[T]) routes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/", h.List)
	r.Get("/active", h.ListActive)
	r.Get("/search", h.Search)
	r.Get("/unique", h.IsUnique)
	r.Get("/name/{name}", h.GetByName)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/reactivate", h.Reactivate)
	})
}

func (h *entryHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	h.respondList(w, r, items, err)
}

func (h *entryHandler[T]) ListActive(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListActive(r.Context())
	h.respondList(w, r, items, err)
}

func (h *entryHandler[T]) Search(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	h.respondList(w, r, items, err)
}

func (h *entryHandler[T]) IsUnique(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	name := query.Get("name")
	if name == "" {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "name is required", []httpx.ErrorDetail{{Field: "name", Message: "name is required"}})
		return
	}
	var exclude int64
	if raw := query.Get("exclude_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid exclude_id", nil)
			return
		}
		exclude = id
	}
	unique, err := h.svc.IsNameUnique(r.Context(), name, exclude)
	if err != nil {
		catalog.RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]any{"name": name, "is_unique": unique}, nil)
}

func (h *entryHandler[T]) GetByName(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		catalog.RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, v, nil)
}

func (h *entryHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.respondEntry(w, r, id)
}

func (h *entryHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFrom(r)
	if !ok {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}
	v, err := h.decode(r, 0)
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}
	created, err := h.svc.Create(r.Context(), v, userID)
	if err != nil {
		catalog.RespondError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, created)
}

func (h *entryHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.decode(r, id)
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}
	if _, err := h.svc.Update(r.Context(), v); err != nil {
		catalog.RespondError(w, r, err)
		return
	}
	h.respondEntry(w, r, id)
}

// Delete deactivates; the entry stays readable by id and name.
func (h *entryHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.respondToggle(w, r, id, h.svc.Delete)
}

func (h *entryHandler[T]) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.respondToggle(w, r, id, h.svc.Reactivate)
}

func (h *entryHandler[T]) respondToggle(w http.ResponseWriter, r *http.Request, id int64, toggle func(context.Context, int64) (bool, error)) {
	found, err := toggle(r.Context(), id)
	if err != nil {
		catalog.RespondError(w, r, err)
		return
	}
	if !found {
		catalog.RespondError(w, r, catalog.ErrNotFound)
		return
	}
	httpx.JSONNoContent(w)
}

func (h *entryHandler[T]) respondEntry(w http.ResponseWriter, r *http.Request, id int64) {
	v, err := h.svc.Get(r.Context(), id)
	if err != nil {
		catalog.RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, v, nil)
}

func (h *entryHandler[T]) respondList(w http.ResponseWriter, r *http.Request, items []T, err error) {
	if err != nil {
		catalog.RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, items, map[string]any{"count": len(items)})
}

// HTTPHandler serves /v1/categories and /v1/genres. Reads are public and
// writes go through auth.
type HTTPHandler struct {
	categories *entryHandler[Category]
	genres     *entryHandler[Genre]
	genreSvc   *GenreService
}

func NewHTTPHandler(categories *CategoryService, genres *GenreService) *HTTPHandler {
	return &HTTPHandler{
		categories: &entryHandler[Category]{svc: categories, decode: decodeCategory},
		genres:     &entryHandler[Genre]{svc: genres, decode: decodeGenre},
		genreSvc:   genres,
	}
}

func (h *HTTPHandler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/v1/categories", func(r chi.Router) {
		h.categories.routes(r, auth)
	})
	r.Route("/v1/genres", func(r chi.Router) {
		r.Get("/media-type/{type}", h.GenresByMediaType)
		h.genres.routes(r, auth)
	})
}

// GenresByMediaType handles GET /v1/genres/media-type/{type}
func (h *HTTPHandler) GenresByMediaType(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "type")
	t, ok := catalog.ParseType(raw)
	if !ok {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown media type", []httpx.ErrorDetail{{Field: "type", Message: "unknown media type " + strconv.Quote(raw)}})
		return
	}
	genres, err := h.genreSvc.ListByMediaType(r.Context(), t)
	h.genres.respondList(w, r, genres, err)
}

func decodeCategory(r *http.Request, id int64) (Category, error) {
	var req EntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return Category{}, err
	}
	return Category{Entry: Entry{ID: id, Name: req.Name, Description: req.Description}}, nil
}

func decodeGenre(r *http.Request, id int64) (Genre, error) {
	var req GenreRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return Genre{}, err
	}
	return Genre{
		Entry:        Entry{ID: id, Name: req.Name, Description: req.Description},
		ApplicableTo: req.ApplicableTo,
	}, nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid id", nil)
		return 0, false
	}
	return id, true
}
