// AngelaMos | 2026
// handler_test.go

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeydae/giftcards/internal/middleware"
)

func newAuthRouter(t *testing.T) *chi.Mux {
	t.Helper()

	svc, _ := newTestAuthService(t)
	noLimit := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, middleware.Authenticator(svc), noLimit)
	return r
}

func call(
	t *testing.T,
	r http.Handler,
	method, path, token, body string,
) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) AuthResponse {
	t.Helper()

	var env struct {
		Data AuthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func TestHandlerSessionLifecycle(t *testing.T) {
	r := newAuthRouter(t)

	rec := call(t, r, http.MethodPost, "/auth/register", "",
		`{"email":"maria@example.com","password":"cliente123","name":"Maria"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decodeAuth(t, rec)

	rec = call(t, r, http.MethodPost, "/auth/register", "",
		`{"email":"maria@example.com","password":"cliente123","name":"Maria"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, r, http.MethodGet, "/auth/me", session.Tokens.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"maria@example.com"`)

	rec = call(t, r, http.MethodPost, "/auth/login", "",
		`{"email":"maria@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, r, http.MethodPost, "/auth/refresh", "",
		`{"refresh_token":"`+session.Tokens.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decodeAuth(t, rec)

	rec = call(t, r, http.MethodPost, "/auth/refresh", "",
		`{"refresh_token":"`+session.Tokens.RefreshToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_REUSE_DETECTED")

	rec = call(t, r, http.MethodPost, "/auth/logout", rotated.Tokens.AccessToken, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, r, http.MethodGet, "/auth/me", rotated.Tokens.AccessToken, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_REVOKED")
}

func TestHandlerRegisterValidation(t *testing.T) {
	r := newAuthRouter(t)

	rec := call(t, r, http.MethodPost, "/auth/register", "",
		`{"email":"maria@example.com","password":"short","name":"Maria"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "password must be at least 8 characters")

	rec = call(t, r, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
