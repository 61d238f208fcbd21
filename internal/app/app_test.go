package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-ledger/internal/config"
	"contract-ledger/internal/model"
	"contract-ledger/internal/service"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	return &config.Config{
		ServerPort:          "0",
		RequestTimeout:      time.Second,
		CORSOrigins:         []string{"*"},
		JWTSecret:           "secret",
		LogFormat:           "json",
		StorageBackend:      backend,
		StateRoot:           t.TempDir(),
		SQLitePath:          t.TempDir() + "/ledger.db",
		LedgerSweepInterval: time.Hour,
	}
}

func TestNew_ServesLedgerAcrossRestart(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)

			first, err := New(context.Background(), cfg, nil)
			require.NoError(t, err)

			token, err := service.NewAuthService(cfg.JWTSecret).IssueToken(model.AuthClaims{UserID: "u-1"}, time.Hour)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/deleted", strings.NewReader(`{"id":"c-1","name":"NDA"}`))
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			first.Handler().ServeHTTP(rec, req)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			for _, cleanup := range first.cleanupFuncs {
				cleanup()
			}

			second, err := New(context.Background(), cfg, nil)
			require.NoError(t, err)
			defer func() {
				for _, cleanup := range second.cleanupFuncs {
					cleanup()
				}
			}()

			assert.Equal(t, 1, second.ledger.Len())
			assert.Equal(t, "c-1", second.ledger.Head())
		})
	}
}

func TestNew_MemoryBackendHasNoPushChannel(t *testing.T) {
	app, err := New(context.Background(), testConfig(t, config.BackendMemory), nil)
	require.NoError(t, err)

	assert.Equal(t, "", app.listener.Transport())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
