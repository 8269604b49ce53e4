package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/uihost/internal/api/http"
	"github.com/GriffinCanCode/uihost/internal/api/middleware"
	"github.com/GriffinCanCode/uihost/internal/api/ws"
	"github.com/GriffinCanCode/uihost/internal/domain/document"
	"github.com/GriffinCanCode/uihost/internal/guest"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/config"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uihost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/uihost/internal/sandbox"
	"github.com/GriffinCanCode/uihost/internal/wasmgen"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	handler http.Handler
	manager *document.Manager
	loader  *guest.Loader
	wasm    *sandbox.WasmEngine
	pool    *sandbox.Pool
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

// NewServer wires the sandbox engines, document manager and routes
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		logger = logging.NewDefault()
		logger.Warn("Invalid log configuration, using defaults", zap.Error(err))
	}

	logger.Info("Initializing uihost",
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("guest_call_timeout", cfg.Sandbox.CallTimeout),
		zap.Int("js_pool", cfg.Sandbox.JSPoolSize),
	)

	metrics := monitoring.NewMetrics()

	sbx := cfg.Sandbox.SandboxOptions()
	wasm, err := sandbox.NewWasmEngine(ctx, sbx, logger.Named("wasm"))
	if err != nil {
		return nil, fmt.Errorf("failed to start wasm engine: %w", err)
	}
	pool, err := sandbox.NewPool(sbx)
	if err != nil {
		wasm.Close(ctx)
		return nil, fmt.Errorf("failed to start script pool: %w", err)
	}

	manager := document.NewManager(wasm, pool).
		WithLogger(logger.Named("documents")).
		WithObserver(metrics)
	metrics.WatchTotals(func() monitoring.Totals {
		t := manager.Totals()
		return monitoring.Totals{Frames: t.Frames, Attachments: t.Attachments}
	})
	loader := guest.NewLoader(cfg.Guests.LoaderOptions(), logger.Named("loader"))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	var tracer *tracing.Tracer
	if cfg.Logging.Tracing {
		tracer = tracing.New("uihost", logger.Named("trace"))
		router.Use(tracing.HTTPMiddleware(tracer, logging.RequestIDHeader))
	}
	router.Use(logging.Middleware(logger.Named("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.CORSOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(manager, loader, metrics, apihttp.Options{
		ViewportWidth:  cfg.Layout.ViewportWidth,
		ViewportHeight: cfg.Layout.ViewportHeight,
		GuestsDir:      cfg.Guests.Dir,
	}).WithLogger(logger.Named("api"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(manager, metrics, cfg.Layout.ViewportWidth, cfg.Layout.ViewportHeight).
		WithLogger(logger.Named("ws"))
	router.GET("/documents/:id/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(logger.Named("metrics")),
	})))

	gzip, err := gzhttp.NewWrapper(gzhttp.MinSize(1024))
	if err != nil {
		pool.Close()
		wasm.Close(ctx)
		if tracer != nil {
			tracer.Close()
		}
		return nil, fmt.Errorf("failed to build compression wrapper: %w", err)
	}

	logger.Info("Server initialized successfully")
	return &Server{
		router:  router,
		handler: gzip(router),
		manager: manager,
		loader:  loader,
		wasm:    wasm,
		pool:    pool,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		tracer:  tracer,
	}, nil
}

// Handler returns the root handler with response compression
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Manager returns the document manager
func (s *Server) Manager() *document.Manager {
	return s.manager
}

// Seed creates the startup documents. The built-in counter guest is used
// when nothing else loads.
func (s *Server) Seed(ctx context.Context) (document.SeedResult, error) {
	seeder := document.NewSeeder(s.manager, s.loader, s.logger.Named("seed"))
	return seeder.Seed(ctx, document.SeedOptions{
		Manifest: s.config.Guests.Manifest,
		Dir:      s.config.Guests.Dir,
		Pattern:  s.config.Guests.Pattern,
		Fallback: wasmgen.Counter(),
	})
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Graceful shutdown incomplete", zap.Error(err))
		return srv.Close()
	}
	return nil
}

// Close releases every document and both engines
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.manager.CloseAll(ctx); err != nil {
		s.logger.Error("Failed to close documents", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close script pool: %w", err))
	}
	if err := s.wasm.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close wasm engine: %w", err))
	}

	if s.tracer != nil {
		s.tracer.Close()
	}
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
