package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacatalog/internal/httpx"
	"mediacatalog/internal/platform/crypto"
)

// fakeAuth trusts the X-Test-Role header; requests without it are anonymous.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Test-Role")
		if role == "" {
			httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(httpx.ContextWithUser(r.Context(), testUser, role)))
	})
}

type handlerFixture struct {
	router http.Handler
	svc    *Service
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	repo := NewMemoryRepo()
	svc := NewService(repo, testLogger())
	h := NewHTTPHandler(svc, NewSearchEngine(repo), NewAdmin(repo, repo, testLogger()))

	r := chi.NewRouter()
	h.RegisterRoutes(r, fakeAuth)
	return &handlerFixture{router: r, svc: svc}
}

func (f *handlerFixture) do(t *testing.T, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool                    `json:"success"`
	Data    json.RawMessage         `json:"data"`
	Meta    map[string]any          `json:"meta"`
	Error   httpx.ErrorResponseBody `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

func TestHTTPHandler_CreateAndGet(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/v1/media", crypto.RoleUser, map[string]any{
		"title":            "The Hobbit",
		"author":           "J.R.R. Tolkien",
		"isbn":             "978-0547928227",
		"type":             "Book",
		"publication_date": "1937-09-21",
		"quantity":         5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created Record
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, 5, created.AvailableQuantity)
	assert.Equal(t, TypeBook, created.Type)
	require.NotNil(t, created.PublicationDate)
	assert.Equal(t, 1937, created.PublicationDate.Year())

	w = f.do(t, http.MethodGet, "/v1/media/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/v1/media/isbn/978-0547928227", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPHandler_Create_Errors(t *testing.T) {
	f := newHandlerFixture(t)
	book := map[string]any{"title": "Dune", "type": "Book", "isbn": "X", "quantity": 1}

	t.Run("requires auth", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/media", "", book)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("validation", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/media", crypto.RoleUser, map[string]any{"title": "No ISBN", "type": "Book"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		require.NotEmpty(t, env.Error.Details)
		assert.Equal(t, "isbn", env.Error.Details[0].Field)
	})

	t.Run("duplicate", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/media", crypto.RoleUser, book)
		require.Equal(t, http.StatusCreated, w.Code)

		w = f.do(t, http.MethodPost, "/v1/media", crypto.RoleUser, map[string]any{"title": "Other", "type": "Book", "isbn": "X"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "DUPLICATE", decode(t, w).Error.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/media", crypto.RoleUser, map[string]any{"title": "x", "type": "CD", "id": 5})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/media", crypto.RoleUser, map[string]any{"title": "x", "type": "CD", "publication_date": "yesterday"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHTTPHandler_GetNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/v1/media/42", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/v1/media/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPHandler_Page(t *testing.T) {
	f := newHandlerFixture(t)
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		w := f.do(t, http.MethodPost, "/v1/media", crypto.RoleUser, map[string]any{"title": title, "type": "CD"})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(t, http.MethodGet, "/v1/media?page=2&page_size=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)

	var items []Record
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Equal(t, []string{"C", "D"}, titles(items))
	assert.EqualValues(t, 5, env.Meta["total"])
	assert.EqualValues(t, 3, env.Meta["total_pages"])

	w = f.do(t, http.MethodGet, "/v1/media?type=vinyl", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/v1/media/search?title=c&page=0", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &items))
	assert.Equal(t, []string{"C"}, titles(items))
}

func TestHTTPHandler_UpdateKeepsBorrowed(t *testing.T) {
	f := newHandlerFixture(t)
	w := f.do(t, http.MethodPost, "/v1/media", crypto.RoleUser, map[string]any{"title": "Heat", "type": "DVD", "quantity": 5})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPut, "/v1/media/1", crypto.RoleUser, map[string]any{"title": "Heat", "type": "DVD", "quantity": 5, "available_quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPut, "/v1/media/1", crypto.RoleUser, map[string]any{"title": "Heat (1995)", "type": "DVD", "quantity": 8})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got Record
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, "Heat (1995)", got.Title)
	assert.Equal(t, 8, got.Quantity)
	assert.Equal(t, 6, got.AvailableQuantity)
}

func TestHTTPHandler_Quantity(t *testing.T) {
	f := newHandlerFixture(t)
	w := f.do(t, http.MethodPost, "/v1/media", crypto.RoleUser, map[string]any{"title": "Heat", "type": "DVD", "quantity": 5})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPatch, "/v1/media/1/quantity", crypto.RoleUser, map[string]any{"delta": -2})
	require.Equal(t, http.StatusOK, w.Code)
	var got Record
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, 3, got.Quantity)

	w = f.do(t, http.MethodPatch, "/v1/media/1/quantity", crypto.RoleUser, map[string]any{"quantity": 1, "delta": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, "/v1/media/1/quantity", crypto.RoleUser, map[string]any{"quantity": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, "/v1/media/9/quantity", crypto.RoleUser, map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPatch, "/v1/media/quantities", crypto.RoleUser, map[string]any{"quantities": map[string]int{"1": 10, "9": 2}})
	require.Equal(t, http.StatusOK, w.Code)
	var res BulkQuantityResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, []int64{1}, res.Updated)
	assert.Equal(t, []int64{9}, res.Skipped)

	w = f.do(t, http.MethodGet, "/v1/media/1/availability?requested=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var avail map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &avail))
	assert.Equal(t, true, avail["is_available"])
	assert.EqualValues(t, 10, avail["available_quantity"])

	w = f.do(t, http.MethodGet, "/v1/media/1/availability?requested=11", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &avail))
	assert.Equal(t, false, avail["is_available"])

	w = f.do(t, http.MethodGet, "/v1/media/1/availability?requested=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/v1/media/9/availability", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPHandler_DeleteRestoreAndPurge(t *testing.T) {
	f := newHandlerFixture(t)
	w := f.do(t, http.MethodPost, "/v1/media", crypto.RoleUser, map[string]any{"title": "Gone Girl", "type": "AudioBook"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodDelete, "/v1/media/1", crypto.RoleUser, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodDelete, "/v1/media/1", crypto.RoleUser, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/v1/admin/media/1", crypto.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/v1/media/1/restore", crypto.RoleUser, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/v1/admin/media/1", crypto.RoleUser, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodDelete, "/v1/admin/media/1", crypto.RoleAdmin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/v1/admin/media/1", crypto.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPHandler_Stats(t *testing.T) {
	f := newHandlerFixture(t)
	w := f.do(t, http.MethodPost, "/v1/media/bulk", crypto.RoleUser, []map[string]any{
		{"title": "One", "type": "CD", "quantity": 1},
		{"title": "Two", "type": "CD"},
		{"title": "Three", "type": "Journal", "quantity": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/v1/media/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		Total     int            `json:"total"`
		Available int            `json:"available"`
		ByType    map[string]int `json:"by_type"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Available)
	assert.Equal(t, 2, stats.ByType["CD"])
	assert.Equal(t, 0, stats.ByType["Book"])
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&ValidationError{Fields: []FieldError{{Field: "title", Message: "title is required"}}}, http.StatusBadRequest},
		{NewDuplicateError(entityName, "isbn", "X", nil), http.StatusConflict},
		{notFound(1), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		RespondError(w, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
	}
}
