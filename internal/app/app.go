package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"contract-ledger/internal/config"
	"contract-ledger/internal/contracts"
	"contract-ledger/internal/database"
	"contract-ledger/internal/event"
	"contract-ledger/internal/handler"
	"contract-ledger/internal/ledger"
	"contract-ledger/internal/listener"
	"contract-ledger/internal/metrics"
	"contract-ledger/internal/middleware"
	"contract-ledger/internal/remote"
	"contract-ledger/internal/repository"
	"contract-ledger/internal/router"
	"contract-ledger/internal/service"
	"contract-ledger/internal/storage"
	"contract-ledger/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg          *config.Config
	logger       *slog.Logger
	server       *http.Server
	ledger       *ledger.Ledger
	hub          *websocket.Hub
	listener     *listener.Listener
	cleanupFuncs []func()
}

// Core is the ledger with its storage and collaborators, without any
// transport. The server and ledgerctl both build on it.
type Core struct {
	Ledger    *ledger.Ledger
	Contracts *contracts.Cache
	Bus       event.Bus
	Metrics   *metrics.Collector
	// Ping reports whether the state store is reachable.
	Ping  func(ctx context.Context) error
	Close func()
}

func OpenCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	store, closeStore := backend.store, backend.close

	collector := metrics.NewCollector("contract_ledger")
	bus := event.NewBus()

	var remoteDeleter ledger.RemoteDeleter
	if cfg.RemoteBaseURL != "" {
		remoteCfg := remote.DefaultConfig(cfg.RemoteBaseURL)
		remoteCfg.Token = cfg.RemoteToken
		remoteCfg.Timeout = cfg.RemoteTimeout
		client, err := remote.NewClient(remoteCfg)
		if err != nil {
			closeStore()
			return nil, fmt.Errorf("failed to initialize remote client: %w", err)
		}
		remoteDeleter = client
		logger.Info("remote purge enabled", "base_url", cfg.RemoteBaseURL)
	}

	deletedLedger := ledger.New(ctx, ledger.NewNodeStore(store, cfg.LedgerNamespace, logger), ledger.Options{
		Remote:    remoteDeleter,
		Bus:       bus,
		Metrics:   collector,
		Logger:    logger,
		Retention: cfg.LedgerRetention,
	})

	return &Core{
		Ledger:    deletedLedger,
		Contracts: contracts.NewCache(store),
		Bus:       bus,
		Metrics:   collector,
		Ping:      backend.ping,
		Close:     closeStore,
	}, nil
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	core, err := OpenCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub(core.Bus, func() any { return core.Ledger.View() })

	pushHeader := http.Header{}
	if cfg.PushToken != "" {
		pushHeader.Set("Authorization", "Bearer "+cfg.PushToken)
	}
	pushListener := listener.New(listener.Config{
		SSEURL:            cfg.PushSSEURL,
		WSURL:             cfg.PushWSURL,
		Header:            pushHeader,
		ReconnectInterval: cfg.PushReconnectInterval,
	}, core.Ledger, core.Metrics, logger)

	authService := service.NewAuthService(cfg.JWTSecret)
	authMiddleware := middleware.NewAuthMiddleware(authService)
	ledgerService := service.NewLedgerService(core.Ledger, core.Contracts)

	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Ledger:    handler.NewLedgerHandler(ledgerService),
		Contracts: handler.NewContractsHandler(ledgerService),
		Docs:      handler.NewDocsHandler(cfg.OpenAPIPath),
		Metrics:   core.Metrics.Handler(),
		Ready:     core.Ping,
	}, hub)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		cfg:          cfg,
		logger:       logger,
		server:       server,
		ledger:       core.Ledger,
		hub:          hub,
		listener:     pushListener,
		cleanupFuncs: []func(){core.Close},
	}, nil
}

type stateBackend struct {
	store storage.Store
	ping  func(ctx context.Context) error
	close func()
}

func noopPing(context.Context) error { return nil }

// openStore builds the key-value backend selected by STORAGE_BACKEND.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stateBackend, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory storage; ledger state is lost on restart")
		return stateBackend{store: storage.NewMemoryStore(), ping: noopPing, close: func() {}}, nil

	case config.BackendSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return stateBackend{}, err
		}
		return stateBackend{
			store: repository.NewSQLiteKVRepository(db),
			ping:  db.PingContext,
			close: func() { _ = db.Close() },
		}, nil

	case config.BackendPostgres:
		logger.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, database.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return stateBackend{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return stateBackend{}, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		logger.Info("database ready")
		return stateBackend{store: repository.NewKVRepository(db.Pool), ping: db.Health, close: db.Close}, nil

	default:
		fileStore, err := storage.NewFileStore(cfg.StateRoot)
		if err != nil {
			return stateBackend{}, err
		}
		logger.Info("file state store ready", "root", fileStore.RootAbs())
		return stateBackend{store: fileStore, ping: fileStore.Ping, close: func() {}}, nil
	}
}

// Run serves until SIGINT/SIGTERM, then drains the server and background
// workers.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup
	workers.Go(func() { a.hub.Run(ctx) })
	workers.Go(func() { a.listener.Run(ctx) })
	workers.Go(func() { a.ledger.StartSweeper(ctx, a.cfg.LedgerSweepInterval) })

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}

	workers.Wait()

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if runErr == nil {
		a.logger.Info("server stopped")
	}
	return runErr
}

// Handler exposes the routed HTTP handler for in-process tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}
