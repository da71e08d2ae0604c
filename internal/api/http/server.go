package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Zereker/nlu/pkg/log"
)

// Server represents an HTTP server
type Server struct {
	logger  *slog.Logger
	hertz   *server.Hertz
	handler *Handler
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Metrics      bool // 是否暴露 /metrics
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Metrics:      true,
	}
}

// NewServer creates a new HTTP server
func NewServer(robot Robot, config ServerConfig) *Server {
	logger := log.Logger("http")
	handler := NewHandler(robot)

	h := server.New(
		server.WithHostPorts(fmt.Sprintf("%s:%d", config.Host, config.Port)),
		server.WithReadTimeout(config.ReadTimeout),
		server.WithWriteTimeout(config.WriteTimeout),
		server.WithExitWaitTime(time.Second),
	)

	// Wrap with middleware
	h.Use(
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
		corsMiddleware(),
	)

	handler.RegisterRoutes(h)
	if config.Metrics {
		h.GET("/metrics", adaptor.HertzHandler(promhttp.Handler()))
	}

	return &Server{
		logger:  logger,
		hertz:   h,
		handler: handler,
	}
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("starting server")
	return s.hertz.Run()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.hertz.Shutdown(ctx)
}

// Middleware functions

func loggingMiddleware(logger *slog.Logger) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()

		c.Next(ctx)

		logger.Info("request",
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", c.Response.StatusCode(),
			"duration", time.Since(start).Milliseconds(),
			"remote", c.ClientIP(),
		)
	}
}

func recoveryMiddleware(logger *slog.Logger) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", "error", err, "path", string(c.Path()))
				c.AbortWithStatusJSON(consts.StatusInternalServerError, Response{
					Success: false,
					Error:   "internal server error",
				})
			}
		}()
		c.Next(ctx)
	}
}

func corsMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusOK)
			return
		}

		c.Next(ctx)
	}
}
