//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"contract-ledger/internal/config"
	"contract-ledger/internal/contracts"
	"contract-ledger/internal/event"
	"contract-ledger/internal/handler"
	"contract-ledger/internal/ledger"
	"contract-ledger/internal/listener"
	"contract-ledger/internal/metrics"
	"contract-ledger/internal/middleware"
	"contract-ledger/internal/model"
	"contract-ledger/internal/remote"
	"contract-ledger/internal/router"
	"contract-ledger/internal/service"
	"contract-ledger/internal/storage"
	"contract-ledger/internal/websocket"
)

// fakeBackend stands in for the contract backend: it pushes deletions over an
// event stream and records the purge calls it receives.
type fakeBackend struct {
	server *httptest.Server
	push   chan string

	mu      sync.Mutex
	deletes []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{push: make(chan string, 8)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case payload := <-b.push:
				_, _ = fmt.Fprintf(w, "event: contract.deleted\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	})
	mux.HandleFunc("DELETE /api/contracts/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.deletes = append(b.deletes, r.PathValue("id"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) deleted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deletes...)
}

type ledgerServer struct {
	server *httptest.Server
	ledger *ledger.Ledger
	token  string
}

func newLedgerServer(t *testing.T, backend *fakeBackend) *ledgerServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	remoteClient, err := remote.NewClient(remote.DefaultConfig(backend.server.URL))
	require.NoError(t, err)

	collector := metrics.NewCollector("integration")
	bus := event.NewBus()
	l := ledger.New(ctx, ledger.NewNodeStore(store, "", nil), ledger.Options{
		Remote:  remoteClient,
		Bus:     bus,
		Metrics: collector,
	})

	hub := websocket.NewHub(bus, func() any { return l.View() })
	push := listener.New(listener.Config{
		SSEURL:            backend.server.URL + "/events",
		ReconnectInterval: 50 * time.Millisecond,
	}, l, collector, nil)

	cfg := &config.Config{
		RequestTimeout:    5 * time.Second,
		CORSOrigins:       []string{"*"},
		RateLimitRPM:      1000,
		RateLimitWriteRPM: 1000,
		JWTSecret:         "test-secret",
	}

	auth := service.NewAuthService(cfg.JWTSecret)
	svc := service.NewLedgerService(l, contracts.NewCache(store))
	server := httptest.NewServer(router.New(cfg, middleware.NewAuthMiddleware(auth), router.Handlers{
		Ledger:    handler.NewLedgerHandler(svc),
		Contracts: handler.NewContractsHandler(svc),
		Metrics:   collector.Handler(),
	}, hub))

	var workers sync.WaitGroup
	workers.Go(func() { hub.Run(ctx) })
	workers.Go(func() { push.Run(ctx) })

	t.Cleanup(func() {
		cancel()
		server.Close()
		workers.Wait()
	})

	token, err := auth.IssueToken(model.AuthClaims{UserID: "user-1", Username: "alice", Role: "editor"}, time.Hour)
	require.NoError(t, err)

	return &ledgerServer{server: server, ledger: l, token: token}
}

func (s *ledgerServer) request(t *testing.T, method string, path string, body any) (*http.Response, json.RawMessage) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope.Data
}

func (s *ledgerServer) dialView(t *testing.T) *gws.Conn {
	t.Helper()

	conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type viewEvent struct {
	Type    string           `json:"type"`
	Subject string           `json:"subject"`
	Payload model.LedgerView `json:"payload"`
}

func readViewEvent(t *testing.T, conn *gws.Conn) viewEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var decoded viewEvent
	require.NoError(t, json.Unmarshal(message, &decoded))
	return decoded
}
