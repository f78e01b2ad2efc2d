// Package testutil holds fixtures shared by handler and routing tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mediacatalog/internal/catalog"
	"mediacatalog/internal/platform/crypto"
)

const (
	TestUserID  int64 = 42
	TestAdminID int64 = 1
)

// TestBook returns a valid book record that has not been stored yet.
func TestBook() catalog.Record {
	published := time.Date(2012, time.September, 18, 0, 0, 0, 0, time.UTC)
	return catalog.Record{
		Title:           "The Hobbit",
		Author:          "J.R.R. Tolkien",
		ISBN:            "978-0547928227",
		Type:            catalog.TypeBook,
		Genre:           "Fantasy",
		Category:        "Fiction",
		PublicationDate: &published,
		Quantity:        5,
	}
}

// TestDVD returns a valid DVD record. DVDs need no ISBN.
func TestDVD() catalog.Record {
	return catalog.Record{
		Title:    "Inception",
		Author:   "Christopher Nolan",
		Type:     catalog.TypeDVD,
		Genre:    "Thriller",
		Category: "Movies",
		Quantity: 3,
	}
}

// GenerateTestToken signs a token valid for an hour.
func GenerateTestToken(secret string, userID int64, role string) string {
	token, _ := crypto.GenerateToken(secret, userID, role, time.Hour)
	return token
}

// GenerateExpiredToken signs a token that expired an hour ago.
func GenerateExpiredToken(secret string, userID int64, role string) string {
	c := crypto.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	token, _ := t.SignedString([]byte(secret))
	return token
}

// NewRequest builds a request with body encoded as JSON when non-nil.
func NewRequest(method, path string, body any) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(method, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// NewRequestWithAuth is NewRequest plus a bearer token.
func NewRequestWithAuth(method, path string, body any, token string) *http.Request {
	r := NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// Envelope is the decoded shape of every JSON response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DecodeEnvelope reads w's body. A body that is not JSON yields a zero
// Envelope.
func DecodeEnvelope(w *httptest.ResponseRecorder) Envelope {
	var env Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return env
}
