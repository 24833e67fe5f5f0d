// Package main provides the AgentFlow server implementation.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/agentprocessor/agentspec"
	"github.com/BaSui01/agentprocessor/api/handlers"
	"github.com/BaSui01/agentprocessor/config"
	"github.com/BaSui01/agentprocessor/eventstore"
	"github.com/BaSui01/agentprocessor/internal/cache"
	"github.com/BaSui01/agentprocessor/internal/database"
	"github.com/BaSui01/agentprocessor/internal/demoagents"
	"github.com/BaSui01/agentprocessor/internal/metrics"
	"github.com/BaSui01/agentprocessor/internal/migration"
	"github.com/BaSui01/agentprocessor/internal/pool"
	"github.com/BaSui01/agentprocessor/internal/server"
	"github.com/BaSui01/agentprocessor/internal/telemetry"
	"github.com/BaSui01/agentprocessor/process"
	"github.com/glebarez/sqlite"
)

// =============================================================================
// 🖥️ Server — wires the process controller stack and its two HTTP listeners
// =============================================================================

// Server owns every component the Route Builder needs and the two listeners
// (API, metrics) built from it.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	telemetry  *telemetry.Providers

	// reloadAgentSpec, when true, makes Start spawn a goroutine that
	// re-scans cfg.AgentSpec.Dir and hot-swaps the mounted router whenever
	// a descriptor file changes. It is the CLI's --reload flag; see §6.
	reloadAgentSpec bool

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler *handlers.HealthHandler

	metricsCollector *metrics.Collector
	eventStore       eventstore.Store
	cacheManager     *cache.Manager
	workerPool       *pool.GoroutinePool
	locker           process.Locker

	router        atomic.Pointer[http.Handler]
	reloadCancel  context.CancelFunc
	rateLimiterCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer builds a Server from an already-loaded, validated config.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, otelProviders *telemetry.Providers, reloadAgentSpec bool) *Server {
	return &Server{
		cfg:             cfg,
		configPath:      configPath,
		logger:          logger,
		telemetry:       otelProviders,
		reloadAgentSpec: reloadAgentSpec,
	}
}

// =============================================================================
// 🚀 Start
// =============================================================================

// Start builds the Agent Registry, the Event Store backend, the per-process
// locker, the Execution Runner, and the Route Builder's router, then brings
// up the HTTP and metrics listeners. It does not block.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("agentprocessor", s.logger)

	eventStore, err := s.buildEventStore()
	if err != nil {
		return fmt.Errorf("build event store: %w", err)
	}
	s.eventStore = eventStore

	s.locker = s.buildLocker()

	s.workerPool = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
		MaxWorkers: s.cfg.Execution.MaxWorkers,
		QueueSize:  s.cfg.Execution.QueueSize,
		PanicHandler: func(v any) {
			s.logger.Error("goroutine pool task panicked", zap.Any("panic", v))
		},
	})

	router, agentNames, err := s.buildRouter()
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	s.router.Store(&router)
	s.logger.Info("agent registry loaded", zap.Strings("agents", agentNames))

	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	if s.reloadAgentSpec {
		s.startReloadWatcher()
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("event_store_backend", s.cfg.EventStore.Backend),
		zap.Bool("reload_enabled", s.reloadAgentSpec),
	)

	return nil
}

// buildRouter loads the Agent Registry from cfg.AgentSpec.Dir and assembles
// a fresh Execution Runner, Controller, and mounted router over it. Called
// once at startup and again on every reload tick when --reload is set.
func (s *Server) buildRouter() (http.Handler, []string, error) {
	registry, err := process.LoadRegistry(agentspec.NewYAMLLoader(), s.cfg.AgentSpec.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("load agent registry: %w", err)
	}

	impls := process.NewImplementations()
	demoagents.Register(impls)

	reducer := process.NewReducer(s.eventStore, registry)
	runner := process.NewRunner(s.eventStore, s.workerPool, s.metricsCollector, s.logger, s.cfg.Execution.CallbackTimeout)
	controller := process.NewController(registry, reducer, runner, impls, s.locker, s.logger)
	return process.NewRouter(registry, controller), registry.Names(), nil
}

// startReloadWatcher polls cfg.AgentSpec.Dir's aggregate modification time
// and rebuilds the router whenever a descriptor file changes, swapping it
// into s.router atomically so in-flight requests never see a half-built
// registry.
func (s *Server) startReloadWatcher() {
	ctx, cancel := context.WithCancel(context.Background())
	s.reloadCancel = cancel

	lastSig, _ := dirSignature(s.cfg.AgentSpec.Dir)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sig, err := dirSignature(s.cfg.AgentSpec.Dir)
				if err != nil || sig == lastSig {
					continue
				}
				lastSig = sig
				router, agentNames, err := s.buildRouter()
				if err != nil {
					s.logger.Error("agent spec reload failed, keeping previous router", zap.Error(err))
					continue
				}
				s.router.Store(&router)
				s.logger.Info("agent spec reloaded", zap.Strings("agents", agentNames))
			}
		}
	}()
}

// dirSignature summarizes a directory's contents cheaply enough to poll: the
// file count and the latest modification time among its direct entries.
func dirSignature(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var latest time.Time
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return fmt.Sprintf("%d:%d", len(entries), latest.UnixNano()), nil
}

// =============================================================================
// 🗄️ Event Store backend selection
// =============================================================================

// buildEventStore selects and opens the configured Event Store backend. It
// is the pluggable-backend seam §4.6 requires: memory for tests and local
// development, sql (via GORM, across postgres/mysql/sqlite) or mongo for a
// durable deployment.
func (s *Server) buildEventStore() (eventstore.Store, error) {
	switch s.cfg.EventStore.Backend {
	case "", "memory":
		return eventstore.NewMemoryStore(), nil

	case "sql":
		db, err := openGormDB(s.cfg.Database)
		if err != nil {
			return nil, err
		}
		migrator, err := migration.NewMigratorFromConfig(s.cfg)
		if err != nil {
			return nil, fmt.Errorf("build migrator: %w", err)
		}
		if err := migrator.Up(context.Background()); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		poolCfg := database.DefaultPoolConfig()
		if s.cfg.Database.MaxOpenConns > 0 {
			poolCfg.MaxOpenConns = s.cfg.Database.MaxOpenConns
		}
		if s.cfg.Database.MaxIdleConns > 0 {
			poolCfg.MaxIdleConns = s.cfg.Database.MaxIdleConns
		}
		if s.cfg.Database.ConnMaxLifetime > 0 {
			poolCfg.ConnMaxLifetime = s.cfg.Database.ConnMaxLifetime
		}
		dbPool, err := database.NewPoolManager(db, poolCfg, s.logger)
		if err != nil {
			return nil, fmt.Errorf("build database pool: %w", err)
		}
		return eventstore.NewSQLStoreWithPool(dbPool), nil

	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := eventstore.NewMongoStore(ctx, eventstore.MongoConfig{
			URI:        s.cfg.Mongo.URI,
			Database:   s.cfg.Mongo.Database,
			Collection: s.cfg.Mongo.Collection,
			Timeout:    s.cfg.Mongo.Timeout,
		}, s.logger)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported event store backend: %q", s.cfg.EventStore.Backend)
	}
}

// openGormDB opens a *gorm.DB for cfg.Driver, matching the dialects
// internal/migration supports.
func openGormDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %q (supported: postgres, mysql, sqlite)", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

// =============================================================================
// 🔒 Per-process locker selection
// =============================================================================

// buildLocker returns a Redis-backed process.CacheLocker when Redis is
// reachable, falling back to an in-process process.LocalLocker otherwise.
// This is §9's resolved Open Question: a single controller instance is
// correct either way, but only CacheLocker gives cross-instance exclusion.
func (s *Server) buildLocker() process.Locker {
	if s.cfg.Redis.Addr == "" {
		s.logger.Info("redis not configured, using in-process locker")
		return process.NewLocalLocker()
	}

	mgr, err := cache.NewManager(cache.Config{
		Addr:         s.cfg.Redis.Addr,
		Password:     s.cfg.Redis.Password,
		DB:           s.cfg.Redis.DB,
		PoolSize:     s.cfg.Redis.PoolSize,
		MinIdleConns: s.cfg.Redis.MinIdleConns,
	}, s.logger)
	if err != nil {
		s.logger.Warn("redis unavailable, falling back to in-process locker", zap.Error(err))
		return process.NewLocalLocker()
	}

	s.cacheManager = mgr
	ttl := s.cfg.Redis.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return process.NewCacheLocker(mgr, ttl, 50*time.Millisecond)
}

// =============================================================================
// 🔧 Handlers
// =============================================================================

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(cacheHealthCheck{s.cacheManager})
	}
	s.logger.Info("handlers initialized")
}

// cacheHealthCheck adapts *cache.Manager's Ping to handlers.HealthCheck.
type cacheHealthCheck struct {
	mgr *cache.Manager
}

func (c cacheHealthCheck) Name() string { return "redis" }

func (c cacheHealthCheck) Check(ctx context.Context) error {
	return c.mgr.Ping(ctx)
}

// =============================================================================
// 🌐 HTTP server
// =============================================================================

// startHTTPServer mounts the Route Builder's router behind the health
// endpoints and the middleware chain, then starts the listener.
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		(*s.router.Load()).ServeHTTP(w, r)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		RateLimiter(ctx, 50, 100, s.logger),
		CORS(nil),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics server
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 Shutdown
// =============================================================================

// WaitForShutdown blocks on the HTTP manager's signal handling, then
// shuts everything down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown releases every component Start brought up, in reverse order.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.reloadCancel != nil {
		s.reloadCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	if s.workerPool != nil {
		s.workerPool.Close()
	}

	if s.eventStore != nil {
		if err := s.eventStore.Close(ctx); err != nil {
			s.logger.Error("event store close error", zap.Error(err))
		}
	}

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	s.logger.Info("graceful shutdown completed")
}
