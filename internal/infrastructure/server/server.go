// Package server assembles the pipeline: session store, renderer,
// collaborators, orchestrator, and both API surfaces behind one gin router.
package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/forgeworks/appforge/internal/api/http"
	"github.com/forgeworks/appforge/internal/api/middleware"
	"github.com/forgeworks/appforge/internal/api/ws"
	"github.com/forgeworks/appforge/internal/domain/build"
	"github.com/forgeworks/appforge/internal/domain/renderer"
	"github.com/forgeworks/appforge/internal/domain/session"
	"github.com/forgeworks/appforge/internal/generator"
	"github.com/forgeworks/appforge/internal/infrastructure/config"
	"github.com/forgeworks/appforge/internal/infrastructure/logging"
	"github.com/forgeworks/appforge/internal/infrastructure/monitoring"
	"github.com/forgeworks/appforge/internal/publisher"
)

// Server wraps the router and owned components.
type Server struct {
	router *gin.Engine
	orch   *build.Orchestrator
	logger *logging.Logger
	config *config.Config
}

// NewServer wires the full pipeline from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	logger.Info("initializing appforge server",
		zap.String("port", cfg.Server.Port),
		zap.String("workspace", cfg.Workspace.Dir),
		zap.String("generator_addr", cfg.Generator.Address),
	)

	metrics := monitoring.NewMetrics()
	store := session.NewStore()

	pub, err := publisher.New(cfg.Workspace, cfg.Server, logger)
	if err != nil {
		return nil, err
	}

	// The remote generator is optional: a configured address enables
	// free-text revisions and remote scaffolding; without one, structured
	// deltas still build against the local scaffolder.
	var proposer generator.Proposer
	var scaffolder generator.Scaffolder = generator.NewLocalScaffolder()
	if cfg.Generator.Address != "" {
		client := generator.NewClient(cfg.Generator, logger)
		proposer = client
		scaffolder = client
		logger.Info("remote generator configured", zap.String("addr", cfg.Generator.Address))
	} else {
		logger.Info("no generator address, using local scaffolder")
	}

	orch := build.New(build.Options{
		Store:       store,
		Renderer:    renderer.New(),
		Scaffolder:  scaffolder,
		Proposer:    proposer,
		Publisher:   pub,
		Broadcaster: build.NewBroadcaster(),
		Metrics:     metrics,
		Logger:      logger,
		Timeout:     cfg.Generator.Timeout,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS())
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	handlers := apihttp.NewHandlers(store, orch, metrics, logger)
	gateway := ws.NewGateway(store, orch, cfg.Stream, metrics, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	router.POST("/revise", handlers.Revise)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.GET("/sessions/:id/blueprint", handlers.GetBlueprint)

	router.GET("/stream", gateway.HandleConnection)

	// published bundles and their zip archives
	router.Static("/apps", pub.Root())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("server initialized")

	return &Server{
		router: router,
		orch:   orch,
		logger: logger,
		config: cfg,
	}, nil
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close drains in-flight builds and flushes logs.
func (s *Server) Close() error {
	s.logger.Info("shutting down")
	s.orch.Close()
	s.logger.Sync()
	return nil
}
