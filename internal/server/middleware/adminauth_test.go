package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubadineke/sekadotfun-escrow/internal/crypto"
	"github.com/ubadineke/sekadotfun-escrow/internal/server/middleware"
)

func adminRequest(t *testing.T, auth *crypto.AdminAuth, body string) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	h := middleware.AdminAuth(auth)(next)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/faucet", strings.NewReader(body))
	if auth != nil {
		for k, v := range auth.Headers(http.MethodPost, "/api/admin/faucet", body) {
			req.Header.Set(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, called
}

func TestAdminAuthAcceptsSignedRequest(t *testing.T) {
	auth := &crypto.AdminAuth{Key: "ops", Secret: "s3cret"}
	rec, called := adminRequest(t, auth, `{"user":"x","amount":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, called)
}

func TestAdminAuthRejectsWhenDisabled(t *testing.T) {
	rec, called := adminRequest(t, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAdminAuthRejectsTamperedBody(t *testing.T) {
	auth := &crypto.AdminAuth{Key: "ops", Secret: "s3cret"}
	body := `{"user":"x","amount":5}`

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := middleware.AdminAuth(auth)(next)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/faucet", strings.NewReader(`{"user":"x","amount":500}`))
	for k, v := range auth.Headers(http.MethodPost, "/api/admin/faucet", body) {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuthRejectsStaleTimestamp(t *testing.T) {
	auth := &crypto.AdminAuth{Key: "ops", Secret: "s3cret"}
	body := `{}`

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := middleware.AdminAuth(auth)(next)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/faucet", strings.NewReader(body))
	stale := time.Now().Add(-10 * time.Minute).Unix()
	for k, v := range auth.HeadersAt(http.MethodPost, "/api/admin/faucet", body, stale) {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuthRejectsWrongKey(t *testing.T) {
	serverAuth := &crypto.AdminAuth{Key: "ops", Secret: "s3cret"}
	clientAuth := &crypto.AdminAuth{Key: "intruder", Secret: "s3cret"}
	body := `{}`

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := middleware.AdminAuth(serverAuth)(next)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/faucet", strings.NewReader(body))
	for k, v := range clientAuth.Headers(http.MethodPost, "/api/admin/faucet", body) {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
