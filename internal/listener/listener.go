// Package listener feeds deletions pushed by the contract backend into the
// ledger. It holds at most one push channel: an event stream when configured,
// otherwise a WebSocket.
package listener

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"contract-ledger/internal/metrics"
	"contract-ledger/internal/model"
)

const (
	TransportSSE       = "sse"
	TransportWebSocket = "ws"

	maxMessageSize   = 1 << 20
	handshakeTimeout = 10 * time.Second
)

var errStreamClosed = errors.New("push stream closed by server")

// Upserter is the ledger side of the listener.
type Upserter interface {
	Upsert(ctx context.Context, records ...model.ContractRecord) int
}

type Config struct {
	SSEURL string
	WSURL  string
	Header http.Header

	// ReconnectInterval paces reconnect attempts. Zero means a single
	// connection attempt with no retry.
	ReconnectInterval time.Duration
}

type Listener struct {
	cfg     Config
	target  Upserter
	metrics *metrics.Collector
	logger  *slog.Logger
	client  *http.Client
	dialer  *websocket.Dialer
	now     func() time.Time
}

func New(cfg Config, target Upserter, collector *metrics.Collector, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		cfg:     cfg,
		target:  target,
		metrics: collector,
		logger:  logger.With("component", "listener"),
		// no client timeout: the event stream is long-lived and bounded by ctx
		client: &http.Client{},
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		now:    time.Now,
	}
}

// Transport reports which push channel Run will use, or "" when none is configured.
func (l *Listener) Transport() string {
	switch {
	case strings.TrimSpace(l.cfg.SSEURL) != "":
		return TransportSSE
	case strings.TrimSpace(l.cfg.WSURL) != "":
		return TransportWebSocket
	default:
		return ""
	}
}

// Run consumes the push channel until ctx is done. Connection errors are
// logged, never returned.
func (l *Listener) Run(ctx context.Context) {
	transport := l.Transport()
	if transport == "" {
		l.logger.Info("no push channel configured")
		return
	}

	var limiter *rate.Limiter
	if l.cfg.ReconnectInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(l.cfg.ReconnectInterval), 1)
	}

	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		err := l.connect(ctx, transport)
		if ctx.Err() != nil {
			return
		}

		l.metrics.PushConnection(transport, "error")
		l.logger.Warn("push channel disconnected", "transport", transport, "error", err)

		if limiter == nil {
			return
		}
	}
}

func (l *Listener) connect(ctx context.Context, transport string) error {
	if transport == TransportSSE {
		return l.streamSSE(ctx)
	}
	return l.streamWebSocket(ctx)
}

// HandleMessage applies one inbound payload with a single Upsert call and
// returns the number of records applied. Malformed payloads are dropped.
func (l *Listener) HandleMessage(ctx context.Context, data []byte) int {
	records, dropped, err := ParseMessage(data, l.now())
	if err != nil {
		l.metrics.DroppedMessage("malformed")
		l.logger.Debug("push message dropped", "error", err)
		return 0
	}

	for _, reason := range dropped {
		l.metrics.DroppedMessage(reason)
		l.logger.Debug("push record dropped", "reason", reason)
	}

	if len(records) == 0 {
		return 0
	}
	return l.target.Upsert(ctx, records...)
}

func (l *Listener) streamSSE(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.SSEURL, nil)
	if err != nil {
		return fmt.Errorf("build event stream request: %w", err)
	}
	for key, values := range l.cfg.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	l.metrics.PushConnection(TransportSSE, "connected")
	l.logger.Info("push channel connected", "transport", TransportSSE, "url", l.cfg.SSEURL)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				l.HandleMessage(ctx, data.Bytes())
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// event:, id: and retry: fields carry nothing the ledger uses
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return errStreamClosed
}

func (l *Listener) streamWebSocket(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.cfg.WSURL, l.cfg.Header)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	l.metrics.PushConnection(TransportWebSocket, "connected")
	l.logger.Info("push channel connected", "transport", TransportWebSocket, "url", l.cfg.WSURL)

	conn.SetReadLimit(maxMessageSize)
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errStreamClosed
			}
			return fmt.Errorf("read websocket: %w", err)
		}

		if messageType != websocket.TextMessage {
			l.logger.Debug("ignoring non-text websocket frame", "type", messageType)
			continue
		}
		l.HandleMessage(ctx, message)
	}
}
