package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kitbuilder587/bid-search/internal/metrics"
	"github.com/kitbuilder587/bid-search/internal/ratelimit"
	"github.com/kitbuilder587/bid-search/internal/service"
)

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 15 * time.Second
)

type Config struct {
	Port           int
	AllowedOrigins []string
	Debug          bool
}

type Deps struct {
	Service service.SearchService
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	// MetricsHandler - по умолчанию глобальный registry
	MetricsHandler http.Handler
	Logger         *zap.Logger
	Config         Config
}

type Server struct {
	router *gin.Engine
	server *http.Server
	logger *zap.Logger
}

func NewServer(deps Deps) *Server {
	if deps.Config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	router := NewRouter(deps)

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", deps.Config.Port),
			Handler:      router,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
		logger: deps.Logger,
	}
}

// NewRouter собирает gin.Engine со всеми middleware и маршрутами
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(deps.Config.AllowedOrigins))

	SetupRoutes(router, NewHandler(deps.Service, logger), deps)
	return router
}

func SetupRoutes(router *gin.Engine, h *Handler, deps Deps) {
	router.GET("/health", h.Health)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = metrics.Handler()
	}
	router.GET("/metrics", gin.WrapH(metricsHandler))

	api := router.Group("/api")
	api.Use(InFlightMiddleware(deps.Metrics))
	if deps.Limiter != nil {
		api.Use(RateLimitMiddleware(deps.Limiter, deps.Metrics))
	}
	{
		api.GET("/bid-search", h.BidSearch)
		api.GET("/bid-search/history", h.History)
		api.GET("/bid-detail", h.BidDetail)
	}
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run блокируется до отмены ctx, потом мягко останавливает сервер
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
