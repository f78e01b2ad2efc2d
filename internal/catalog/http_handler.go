package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"mediacatalog/internal/httpx"
	"mediacatalog/internal/platform/crypto"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	dateLayout      = "2006-01-02"
)

type HTTPHandler struct {
	svc    *Service
	search *SearchEngine
	admin  *Admin
}

func NewHTTPHandler(svc *Service, search *SearchEngine, admin *Admin) *HTTPHandler {
	return &HTTPHandler{svc: svc, search: search, admin: admin}
}

// RegisterRoutes mounts the catalog endpoints. Reads are public, writes go
// through auth, and the admin routes also require the ADMIN role.
func (h *HTTPHandler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/v1/media", func(r chi.Router) {
		r.Get("/", h.Page)
		r.Get("/all", h.List)
		r.Get("/search", h.Search)
		r.Get("/find", h.Find)
		r.Get("/filter", h.Filter)
		r.Get("/available", h.Available)
		r.Get("/stats", h.Stats)
		r.Get("/unique", h.IsUnique)
		r.Get("/isbn/{isbn}", h.GetByISBN)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/availability", h.Availability)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/", h.Create)
			r.Post("/bulk", h.CreateBulk)
			r.Patch("/quantities", h.UpdateQuantitiesBulk)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.SoftDelete)
			r.Post("/{id}/restore", h.Restore)
			r.Patch("/{id}/quantity", h.UpdateQuantity)
		})
	})

	r.Route("/v1/admin/media", func(r chi.Router) {
		r.Use(auth, httpx.RequireRole(crypto.RoleAdmin))
		r.Get("/", h.ListAll)
		r.Get("/{id}", h.AdminGet)
		r.Delete("/{id}", h.HardDelete)
	})
}

// RecordRequest is the writable part of a Record.
type RecordRequest struct {
	Title             string `json:"title"`
	Author            string `json:"author"`
	ISBN              string `json:"isbn"`
	Type              Type   `json:"type"`
	Genre             string `json:"genre"`
	Category          string `json:"category"`
	PublicationDate   string `json:"publication_date"`
	Description       string `json:"description"`
	Quantity          int    `json:"quantity"`
	AvailableQuantity *int   `json:"available_quantity,omitempty"`
}

func (req RecordRequest) toRecord() (Record, error) {
	r := Record{
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		ISBN:        strings.TrimSpace(req.ISBN),
		Type:        req.Type,
		Genre:       strings.TrimSpace(req.Genre),
		Category:    strings.TrimSpace(req.Category),
		Description: req.Description,
		Quantity:    req.Quantity,
	}
	if req.PublicationDate != "" {
		d, err := parseDate(req.PublicationDate)
		if err != nil {
			return Record{}, &ValidationError{Fields: []FieldError{{Field: "publication_date", Message: "publication_date must be YYYY-MM-DD"}}}
		}
		r.PublicationDate = &d
	}
	return r, nil
}

func parseDate(s string) (time.Time, error) {
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Page handles GET /v1/media
// @Summary List media records
// @Description Paginated listing filtered by term, type, category and genre
// @Tags media
// @Param q query string false "Matches title, author or ISBN"
// @Param type query string false "Media type"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Router /v1/media [get]
func (h *HTTPHandler) Page(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	q := PageQuery{
		PageNumber: page,
		PageSize:   pageSize,
		Term:       query.Get("q"),
		Category:   query.Get("category"),
		Genre:      query.Get("genre"),
		SortBy:     ParseSortField(query.Get("sort")),
	}
	if raw := query.Get("type"); raw != "" {
		t, ok := ParseType(raw)
		if !ok {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown media type", []httpx.ErrorDetail{{Field: "type", Message: "unknown media type " + strconv.Quote(raw)}})
			return
		}
		q.Type = &t
	}

	result, err := h.svc.Page(r.Context(), q)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	httpx.JSONSuccess(w, r, result.Items, pageMeta(page, pageSize, result.TotalCount))
}

// Search handles GET /v1/media/search. Page is 0-based here.
func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := 0
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "page must be an integer", nil)
			return
		}
		page = n
	}
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	c := Criteria{
		Title:    query.Get("title"),
		Type:     query.Get("type"),
		Genre:    query.Get("genre"),
		SortBy:   ParseSortField(query.Get("sort")),
		Page:     page,
		PageSize: pageSize,
	}
	result, err := h.search.Search(r.Context(), c)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultSearchPageSize
	}

	httpx.JSONSuccess(w, r, result.Items, pageMeta(c.Page, c.PageSize, result.TotalCount))
}

// Find handles GET /v1/media/find?q=, a free-text search that also looks
// at descriptions.
func (h *HTTPHandler) Find(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, records, map[string]any{"total": len(records)})
}

func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, records, map[string]any{"total": len(records)})
}

// Filter handles GET /v1/media/filter with exact-match parameters.
func (h *HTTPHandler) Filter(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	f := Filter{
		Category:      query.Get("category"),
		Genre:         query.Get("genre"),
		Author:        query.Get("author"),
		ISBN:          query.Get("isbn"),
		AvailableOnly: query.Get("available") == "true",
	}
	if raw := query.Get("type"); raw != "" {
		t, ok := ParseType(raw)
		if !ok {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown media type", nil)
			return
		}
		f.Type = &t
	}

	records, err := h.svc.Filter(r.Context(), f)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, records, map[string]any{"total": len(records)})
}

func (h *HTTPHandler) Available(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Available(r.Context())
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, records, map[string]any{"total": len(records)})
}

// Stats handles GET /v1/media/stats
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := h.svc.TotalCount(ctx)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	available, err := h.svc.AvailableCount(ctx)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	byType, err := h.svc.CountByType(ctx)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	counts := make(map[string]int, len(byType))
	for t, n := range byType {
		counts[t.String()] = n
	}
	httpx.JSONSuccess(w, r, map[string]any{
		"total":     total,
		"available": available,
		"by_type":   counts,
	}, nil)
}

// IsUnique handles GET /v1/media/unique?title=&author=&isbn=&exclude_id=
func (h *HTTPHandler) IsUnique(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	title := strings.TrimSpace(query.Get("title"))
	if title == "" {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "title is required", []httpx.ErrorDetail{{Field: "title", Message: "title is required"}})
		return
	}
	var excludeID int64
	if raw := query.Get("exclude_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "exclude_id must be an integer", nil)
			return
		}
		excludeID = id
	}

	unique, err := h.svc.IsUnique(r.Context(), title, strings.TrimSpace(query.Get("author")), strings.TrimSpace(query.Get("isbn")), excludeID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]bool{"unique": unique}, nil)
}

// GetByISBN handles GET /v1/media/isbn/{isbn}
func (h *HTTPHandler) GetByISBN(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetByISBN(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, rec, nil)
}

// Get handles GET /v1/media/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, rec, nil)
}

// Availability handles GET /v1/media/{id}/availability?requested=n
func (h *HTTPHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	requested := 1
	if raw := r.URL.Query().Get("requested"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "requested must be an integer", nil)
			return
		}
		requested = n
	}

	if requested < 1 {
		RespondError(w, r, &ValidationError{Fields: []FieldError{{Field: "requested", Message: "requested must be at least 1"}}})
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]any{
		"id":                 id,
		"available_quantity": rec.AvailableQuantity,
		"requested":          requested,
		"is_available":       rec.CanBorrow(requested),
	}, nil)
}

// Create handles POST /v1/media
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req RecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}
	rec, err := req.toRecord()
	if err != nil {
		RespondError(w, r, err)
		return
	}

	created, err := h.svc.Create(r.Context(), rec, userID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, created)
}

// CreateBulk handles POST /v1/media/bulk with a JSON array of records.
func (h *HTTPHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var reqs []RecordRequest
	if err := httpx.DecodeJSON(r, &reqs); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}
	if len(reqs) == 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "At least one record is required", nil)
		return
	}

	records := make([]Record, 0, len(reqs))
	for _, req := range reqs {
		rec, err := req.toRecord()
		if err != nil {
			RespondError(w, r, err)
			return
		}
		records = append(records, rec)
	}

	created, err := h.svc.CreateBulk(r.Context(), records, userID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, created)
}

// Update handles PUT /v1/media/{id}. When available_quantity is omitted
// the borrowed count is carried over to the new quantity.
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req RecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}
	rec, err := req.toRecord()
	if err != nil {
		RespondError(w, r, err)
		return
	}
	rec.ID = id

	if req.AvailableQuantity != nil {
		rec.AvailableQuantity = *req.AvailableQuantity
	} else {
		existing, err := h.svc.Get(r.Context(), id)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		if err := existing.SetQuantity(rec.Quantity); err != nil {
			RespondError(w, r, err)
			return
		}
		rec.AvailableQuantity = existing.AvailableQuantity
	}

	updated, err := h.svc.Update(r.Context(), rec, userID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if !updated {
		RespondError(w, r, notFound(id))
		return
	}
	h.respondRecord(w, r, id)
}

// SoftDelete handles DELETE /v1/media/{id}
func (h *HTTPHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := h.svc.SoftDelete(r.Context(), id, userID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if !deleted {
		RespondError(w, r, notFound(id))
		return
	}
	httpx.JSONNoContent(w)
}

// Restore handles POST /v1/media/{id}/restore
func (h *HTTPHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	restored, err := h.svc.Restore(r.Context(), id, userID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if !restored {
		RespondError(w, r, notFound(id))
		return
	}
	h.respondRecord(w, r, id)
}

// QuantityRequest sets the total quantity or adjusts it by a delta.
// Exactly one field must be present.
type QuantityRequest struct {
	Quantity *int `json:"quantity,omitempty"`
	Delta    *int `json:"delta,omitempty"`
}

// UpdateQuantity handles PATCH /v1/media/{id}/quantity
func (h *HTTPHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req QuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}
	if (req.Quantity == nil) == (req.Delta == nil) {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Provide exactly one of quantity or delta", nil)
		return
	}

	var (
		updated bool
		err     error
	)
	if req.Quantity != nil {
		updated, err = h.svc.UpdateQuantity(r.Context(), id, *req.Quantity, userID)
	} else {
		updated, err = h.svc.AdjustQuantity(r.Context(), id, *req.Delta, userID)
	}
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if !updated {
		RespondError(w, r, notFound(id))
		return
	}
	h.respondRecord(w, r, id)
}

// BulkQuantityRequest maps record ids to new total quantities.
type BulkQuantityRequest struct {
	Quantities map[int64]int `json:"quantities"`
}

// UpdateQuantitiesBulk handles PATCH /v1/media/quantities
func (h *HTTPHandler) UpdateQuantitiesBulk(w http.ResponseWriter, r *http.Request) {
	userID, ok := actingUser(w, r)
	if !ok {
		return
	}
	var req BulkQuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}
	if len(req.Quantities) == 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "quantities must not be empty", nil)
		return
	}

	result, err := h.svc.UpdateQuantitiesBulk(r.Context(), req.Quantities, userID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, result, nil)
}

// ListAll handles GET /v1/admin/media, including deleted records.
func (h *HTTPHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	records, err := h.admin.ListAll(r.Context())
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, records, map[string]any{"total": len(records)})
}

func (h *HTTPHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.admin.Get(r.Context(), id)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, rec, nil)
}

// HardDelete handles DELETE /v1/admin/media/{id}
func (h *HTTPHandler) HardDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	purged, err := h.admin.HardDelete(r.Context(), id)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if !purged {
		RespondError(w, r, notFound(id))
		return
	}
	httpx.JSONNoContent(w)
}

func (h *HTTPHandler) respondRecord(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, rec, nil)
}

// RespondError writes the JSON error envelope matching err's kind.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	var derr *DuplicateError
	switch {
	case errors.As(err, &verr):
		details := make([]httpx.ErrorDetail, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, httpx.ErrorDetail{Field: f.Field, Message: f.Message})
		}
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)
	case errors.As(err, &derr):
		httpx.JSONError(w, r, http.StatusConflict, "DUPLICATE", derr.Error(), []httpx.ErrorDetail{{Field: derr.Field, Message: derr.Error()}})
	case errors.Is(err, ErrDuplicate):
		httpx.JSONError(w, r, http.StatusConflict, "DUPLICATE", "Duplicate entry", nil)
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, context.DeadlineExceeded):
		httpx.JSONError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out", nil)
	default:
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid id", nil)
		return 0, false
	}
	return id, true
}

func actingUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := httpx.UserIDFrom(r)
	if !ok {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return 0, false
	}
	return userID, true
}

func pageMeta(page, pageSize, total int) map[string]any {
	return map[string]any{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
}
