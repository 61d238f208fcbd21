package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func TestLogging_RequestIDAndRoutePattern(t *testing.T) {
	logs := captureLogs(t)

	var seenID string
	r := chi.NewRouter()
	r.Use(Logging)
	r.Delete("/deleted/{id}", func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"NOT_FOUND","message":"gone"}}`))
	})

	req := httptest.NewRequest(http.MethodDelete, "/deleted/c-42", nil)
	req.Header.Set(requestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", seenID)
	assert.Equal(t, "req-1", rec.Header().Get(requestIDHeader))
	assert.Contains(t, logs.String(), `"route":"/deleted/{id}"`)
	assert.Contains(t, logs.String(), `"error_code":"NOT_FOUND"`)
	assert.NotContains(t, logs.String(), "c-42")
}

func TestLogging_GeneratesRequestID(t *testing.T) {
	captureLogs(t)

	rec := httptest.NewRecorder()
	Logging(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}
