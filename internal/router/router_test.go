package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-ledger/internal/config"
	"contract-ledger/internal/contracts"
	"contract-ledger/internal/handler"
	"contract-ledger/internal/ledger"
	"contract-ledger/internal/metrics"
	"contract-ledger/internal/middleware"
	"contract-ledger/internal/model"
	"contract-ledger/internal/service"
	"contract-ledger/internal/storage"
)

func newRouter(t *testing.T, writeRoles []string) (http.Handler, *service.AuthService) {
	t.Helper()

	cfg := &config.Config{
		RequestTimeout: time.Second,
		CORSOrigins:    []string{"*"},
		WriteRoles:     writeRoles,
	}

	collector := metrics.NewCollector("test")
	store := storage.NewMemoryStore()
	l := ledger.New(context.Background(), ledger.NewNodeStore(store, "", nil), ledger.Options{Metrics: collector})
	svc := service.NewLedgerService(l, contracts.NewCache(store))
	auth := service.NewAuthService("secret")

	return New(cfg, middleware.NewAuthMiddleware(auth), Handlers{
		Ledger:    handler.NewLedgerHandler(svc),
		Contracts: handler.NewContractsHandler(svc),
		Metrics:   collector.Handler(),
	}, nil), auth
}

func bearer(t *testing.T, auth *service.AuthService, role string) string {
	t.Helper()
	token, err := auth.IssueToken(model.AuthClaims{UserID: "u-1", Role: role}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r, _ := newRouter(t, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_ledger_records")
}

func TestRouter_ListIsPublicWritesAreNot(t *testing.T) {
	r, auth := newRouter(t, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/deleted", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/deleted", strings.NewReader(`{"id":"c-1","name":"NDA"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deleted", strings.NewReader(`{"id":"c-1","name":"NDA"}`))
	req.Header.Set("Authorization", bearer(t, auth, "viewer"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRouter_WriteRolesEnforced(t *testing.T) {
	r, auth := newRouter(t, []string{"editor"})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/deleted/c-1", nil)
	req.Header.Set("Authorization", bearer(t, auth, "viewer"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/deleted/c-1", nil)
	req.Header.Set("Authorization", bearer(t, auth, "Editor"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// reads of the caller's own contracts need a token but no write role
	req = httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	req.Header.Set("Authorization", bearer(t, auth, "viewer"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Ready(t *testing.T) {
	cfg := &config.Config{RequestTimeout: time.Second}
	auth := middleware.NewAuthMiddleware(service.NewAuthService("secret"))

	var pingErr error
	r := New(cfg, auth, Handlers{
		Ready: func(context.Context) error { return pingErr },
	}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	pingErr = errors.New("connection refused")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
