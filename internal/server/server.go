package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/storage"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shell"
)

const shutdownTimeout = 10 * time.Second

// serviceTab tags writes made by the reference toggle service
const serviceTab id.TabID = "tab_toggle-service"

// Options configures a Server
type Options struct {
	Config *config.Config
	Tab    *shell.Tab
	// Remote backs the reference toggle service; nil keeps it in memory
	Remote  storage.Backend
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// Server wraps the admin HTTP router and its dependencies
type Server struct {
	router   *gin.Engine
	config   *config.Config
	handlers *Handlers
	stream   *StreamHandler
	logger   *zap.Logger
}

// New creates the admin server
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Remote == nil {
		opts.Remote = storage.NewMemory()
	}
	cfg := opts.Config
	logger := opts.Logger

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(monitoring.Middleware(opts.Metrics, "/stream"))
	router.Use(CORS(DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(RateLimit(RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := NewHandlers(opts.Tab, storage.ForTab(opts.Remote, serviceTab, logger.Named("toggle-service")), opts.Metrics, logger.Named("api"))
	stream := NewStreamHandler(opts.Tab, opts.Metrics, logger.Named("stream"))

	router.GET("/health", handlers.Health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.GET("/state", handlers.State)

		// Reference remote toggle service
		api.GET("/mfe-toggle", handlers.GetToggle)
		api.POST("/mfe-toggle", handlers.SaveToggle)

		// Device-local overrides
		api.POST("/local/toggle", handlers.LocalToggle)
		api.POST("/local/mode", handlers.LocalMode)

		api.GET("/perf", handlers.Perf)
		api.GET("/perf/panel", handlers.GetPanel)
		api.PUT("/perf/panel", handlers.SavePanel)

		api.PUT("/visibility", handlers.SetVisibility)
	}

	router.GET("/stream", stream.HandleConnection)

	return &Server{
		router:   router,
		config:   cfg,
		handlers: handlers,
		stream:   stream,
		logger:   logger,
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
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

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.stream.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
