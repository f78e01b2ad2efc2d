package lookup

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacatalog/internal/httpx"
)

func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test-Role") == "" {
			httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(httpx.ContextWithUser(r.Context(), testUser, r.Header.Get("X-Test-Role"))))
	})
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	h := NewHTTPHandler(
		NewCategoryService(NewMemoryCategoryRepo(), testLogger()),
		NewGenreService(NewMemoryGenreRepo(), testLogger()),
	)
	r := chi.NewRouter()
	h.RegisterRoutes(r, fakeAuth)
	return r
}

func do(t *testing.T, router http.Handler, method, path string, authed bool, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("X-Test-Role", "USER")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Meta  map[string]any          `json:"meta"`
	Error httpx.ErrorResponseBody `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

func TestHTTPHandler_Categories(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/v1/categories", false, map[string]any{"name": "Fiction"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/v1/categories", true, map[string]any{"name": "Fiction", "description": "Stories"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created Category
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &created))
	assert.Equal(t, "Fiction", created.Name)

	w = do(t, router, http.MethodPost, "/v1/categories", true, map[string]any{"name": "fiction"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE", decodeEnvelope(t, w).Error.Code)

	w = do(t, router, http.MethodPost, "/v1/categories", true, map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w).Error.Code)

	w = do(t, router, http.MethodGet, "/v1/categories/name/FICTION", false, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/v1/categories/unique?name=Fiction", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var unique struct {
		IsUnique bool `json:"is_unique"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &unique))
	assert.False(t, unique.IsUnique)

	w = do(t, router, http.MethodPut, "/v1/categories/1", true, map[string]any{"name": "Novels"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated Category
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &updated))
	assert.Equal(t, "Novels", updated.Name)
	assert.Empty(t, updated.Description)

	w = do(t, router, http.MethodDelete, "/v1/categories/1", true, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodGet, "/v1/categories/active", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decodeEnvelope(t, w).Meta["count"])

	w = do(t, router, http.MethodPost, "/v1/categories/1/reactivate", true, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodGet, "/v1/categories/search?q=nov", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeEnvelope(t, w).Meta["count"])
}

func TestHTTPHandler_CategoryErrors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		authed bool
		body   any
		status int
	}{
		{name: "unknown id", method: http.MethodGet, path: "/v1/categories/9", status: http.StatusNotFound},
		{name: "bad id", method: http.MethodGet, path: "/v1/categories/abc", status: http.StatusBadRequest},
		{name: "unknown name", method: http.MethodGet, path: "/v1/categories/name/Nope", status: http.StatusNotFound},
		{name: "unique without name", method: http.MethodGet, path: "/v1/categories/unique", status: http.StatusBadRequest},
		{name: "delete unknown", method: http.MethodDelete, path: "/v1/categories/9", authed: true, status: http.StatusNotFound},
		{name: "update unknown", method: http.MethodPut, path: "/v1/categories/9", authed: true, body: map[string]any{"name": "X"}, status: http.StatusNotFound},
		{name: "unknown field", method: http.MethodPost, path: "/v1/categories", authed: true, body: map[string]any{"title": "X"}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, tt.authed, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHTTPHandler_Genres(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/v1/genres", true, map[string]any{"name": "Mystery"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(t, router, http.MethodPost, "/v1/genres", true, map[string]any{"name": "Jazz", "applicable_to_media_type": "CD"})
	require.Equal(t, http.StatusCreated, w.Code)
	var jazz Genre
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &jazz))
	require.NotNil(t, jazz.ApplicableTo)

	w = do(t, router, http.MethodPost, "/v1/genres", true, map[string]any{"name": "Odd", "applicable_to_media_type": "Scroll"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/v1/genres/media-type/Book", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var genres []Genre
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &genres))
	require.Len(t, genres, 1)
	assert.Equal(t, "Mystery", genres[0].Name)

	w = do(t, router, http.MethodGet, "/v1/genres/media-type/cd", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeEnvelope(t, w).Meta["count"])

	w = do(t, router, http.MethodGet, "/v1/genres/media-type/Scroll", false, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
