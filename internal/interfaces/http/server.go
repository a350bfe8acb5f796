// Package http exposes the cash advance ledger over a JSON REST API.
// Handlers only translate requests into application service calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/cash-advance/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthFunc reports whether the service dependencies are reachable
type HealthFunc func(ctx context.Context) error

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MaxUploadBytes bounds the in-memory part of multipart uploads
	MaxUploadBytes int64
	// DocumentsDir is served under DocumentsPath when both are set
	DocumentsDir  string
	DocumentsPath string
	Version       string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  32 << 20,
		Version:         "dev",
	}
}

// Services groups the application services the API exposes
type Services struct {
	Advances    service.AdvanceService
	Movements   service.MovementService
	Liquidation service.LiquidationService
	Treasury    service.TreasuryService
	Statements  service.StatementService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, health HealthFunc, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if config.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = config.MaxUploadBytes
	}

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(services, health, config.Version, logger),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware logs one line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		kv := []interface{}{
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("HTTP request", kv...)
			return
		}
		s.logger.Info("HTTP request", kv...)
	}
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	if s.config.DocumentsDir != "" && s.config.DocumentsPath != "" {
		s.router.Static(s.config.DocumentsPath, s.config.DocumentsDir)
	}

	api := s.router.Group("/api/v1")
	{
		api.POST("/advances", h.CreateAdvance)
		api.GET("/advances", h.ListAdvances)
		api.GET("/advances/:id", h.GetAdvance)
		api.GET("/advances/:id/balance", h.GetBalance)
		api.GET("/advances/:id/assignments", h.GetAssignments)
		api.GET("/advances/:id/history", h.GetHistory)
		api.GET("/advances/:id/statement", h.ExportStatement)
		api.GET("/advances/:id/cash-movements", h.ListCashMovements)
		api.POST("/advances/:id/liquidate", h.Liquidate)
		api.POST("/advances/:id/movements", h.CreateMovement)

		api.GET("/movements/:id", h.GetMovement)
		api.PUT("/movements/:id", h.UpdateMovement)
		api.DELETE("/movements/:id", h.DeleteMovement)
		api.POST("/movements/:id/documents", h.AttachDocuments)

		api.POST("/cash-movements", h.RegisterCashMovement)
		api.GET("/cash-movements/:id", h.GetCashMovement)
		api.POST("/cash-movements/:id/approve", h.ApproveCashMovement)
		api.POST("/cash-movements/:id/reject", h.RejectCashMovement)
		api.POST("/cash-movements/:id/revert", h.RevertCashMovement)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
