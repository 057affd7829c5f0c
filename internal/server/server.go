// Package server exposes the assistant over HTTP: a chat endpoint,
// session inspection, a WebSocket stream and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"calbot/internal/agent"
	"calbot/internal/agent/ports"
	"calbot/internal/logging"
	"calbot/internal/session"
)

// Config holds the server settings.
type Config struct {
	ListenAddr      string
	Debug           bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute, // chat turns can run several tool rounds
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server hosts the chat API.
type Server struct {
	agent    *agent.Agent
	sessions *session.Manager
	registry ports.ToolRegistry

	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader

	config    Config
	logger    logging.Logger
	startTime time.Time
}

func New(a *agent.Agent, sessions *session.Manager, registry ports.ToolRegistry, config Config) *Server {
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultConfig().ListenAddr
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowWebSockets = true
	engine.Use(cors.New(corsConfig))
	engine.Use(metricsMiddleware())

	s := &Server{
		agent:    a,
		sessions: sessions,
		registry: registry,
		engine:   engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		config:    config,
		logger:    logging.NewComponentLogger("server"),
		startTime: time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.handleHealth)
	api.POST("/chat", s.handleChat)
	api.GET("/tools", s.handleGetTools)

	sessions := api.Group("/sessions")
	{
		sessions.GET("/:id/messages", s.handleGetMessages)
		sessions.DELETE("/:id", s.handleDeleteSession)
	}
	api.GET("/sessions/:id/stream", s.handleWebSocket)

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Listening on %s", s.config.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop() error {
	s.logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
