package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Nordur12/SmartAquaria/internal/config"
	"github.com/Nordur12/SmartAquaria/internal/metrics"
	"github.com/Nordur12/SmartAquaria/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AlertProcessor evaluates one reading end to end
type AlertProcessor interface {
	Process(ctx context.Context, reading models.DeviceReading) (*models.DeviceOutcome, error)
}

// CycleRunner runs one poll cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (*models.CycleReport, error)
}

// StateDeleter forgets a device's stored state
type StateDeleter interface {
	Delete(ctx context.Context, deviceID string) error
}

// Server trigger API: direct alerts, on-demand polls, deprovisioning, health and metrics
type Server struct {
	cfg       *config.Config
	processor AlertProcessor
	cycles    CycleRunner
	states    StateDeleter
	engine    *gin.Engine
	logger    *zap.Logger
}

// New constructs a server with routes and middleware
func New(
	cfg *config.Config,
	processor AlertProcessor,
	cycles CycleRunner,
	states StateDeleter,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestMiddleware(logger))

	server := &Server{
		cfg:       cfg,
		processor: processor,
		cycles:    cycles,
		states:    states,
		engine:    engine,
		logger:    logger,
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("HTTP server listening",
		zap.String("addr", srv.Addr),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, Ok(gin.H{"status": "ok"}))
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/api/v1")
	if s.cfg.HTTP.BearerToken != "" {
		v1.Use(bearerAuthMiddleware(s.cfg.HTTP.BearerToken))
	}
	{
		v1.POST("/alerts", s.handleAlert)
		v1.POST("/poll", s.handlePoll)
		v1.DELETE("/devices/:deviceId/state", s.handleDeleteState)
	}
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Fail("missing bearer token"))
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Fail("invalid bearer token"))
			return
		}
		c.Next()
	}
}

// requestMiddleware tags each request with an id, logs it and records HTTP metrics
func requestMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration.Seconds())

		logger.Info("Request completed",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		)
	}
}
