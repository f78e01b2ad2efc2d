package ingest

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediacatalog/internal/catalog"
	"mediacatalog/internal/httpx"
	"mediacatalog/internal/platform/crypto"
)

type HTTPHandler struct {
	svc *Service
}

func NewHTTPHandler(svc *Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

// RegisterRoutes mounts the import endpoint. Only admins may import.
func (h *HTTPHandler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.With(auth, httpx.RequireRole(crypto.RoleAdmin)).Post("/v1/admin/imports", h.Import)
}

// Import handles POST /v1/admin/imports
// @Summary Import books by ISBN
// @Description Creates catalog records from Open Library metadata
// @Tags admin
// @Accept json
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 502 {object} httpx.ErrorResponse
// @Router /v1/admin/imports [post]
func (h *HTTPHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFrom(r)
	if !ok {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}

	result, err := h.svc.Import(r.Context(), req, userID)
	if err != nil {
		if errors.Is(err, catalog.ErrValidation) {
			catalog.RespondError(w, r, err)
			return
		}
		httpx.JSONError(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "Metadata lookup failed", nil)
		return
	}
	httpx.JSONSuccess(w, r, result, map[string]any{
		"created":  len(result.Created),
		"skipped":  len(result.Skipped),
		"missing":  len(result.Missing),
		"rejected": len(result.Rejected),
	})
}
