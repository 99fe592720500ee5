package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	config "github.com/agentwire/a2a/server/config"
	middlewares "github.com/agentwire/a2a/server/middlewares"
	otel "github.com/agentwire/a2a/server/otel"
	skills "github.com/agentwire/a2a/server/skills"
	types "github.com/agentwire/a2a/types"
	gin "github.com/gin-gonic/gin"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	envconfig "github.com/sethvargo/go-envconfig"
	zap "go.uber.org/zap"
)

// A2AServer defines the interface for an A2A-compatible server
type A2AServer interface {
	// Start starts the A2A server on the configured port
	Start(ctx context.Context) error

	// Stop gracefully stops the A2A server
	Stop(ctx context.Context) error

	// GetAgentCard returns the discovery document
	GetAgentCard() *types.AgentCard

	// GetCatalog returns the capability catalog
	GetCatalog() *skills.Registry

	// GetTaskManager returns the task lifecycle manager
	GetTaskManager() TaskManager
}

// A2AServerImpl wires the dispatcher, router, task manager, store, payment
// gate and discovery publisher behind the HTTP surface.
type A2AServerImpl struct {
	cfg            *config.Config
	logger         *zap.Logger
	catalog        *skills.Registry
	store          TaskStore
	router         IntentRouter
	gate           PaymentGate
	taskManager    *DefaultTaskManager
	responseSender ResponseSender
	agentCard      *types.AgentCard
	protocol       A2AProtocolHandler
	otel           otel.OpenTelemetry

	httpServer    *http.Server
	metricsServer *http.Server
}

var _ A2AServer = (*A2AServerImpl)(nil)

// NewA2AServer creates a new A2A server with the provided configuration and
// logger. All components receive their collaborators explicitly.
func NewA2AServer(cfg *config.Config, logger *zap.Logger, telemetry otel.OpenTelemetry) (*A2AServerImpl, error) {
	catalog, err := skills.NewDefaultRegistry(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build skill catalog: %w", err)
	}

	return NewA2AServerWithCatalog(cfg, logger, telemetry, catalog)
}

// NewA2AServerWithCatalog creates a new A2A server with a custom capability
// catalog
func NewA2AServerWithCatalog(cfg *config.Config, logger *zap.Logger, telemetry otel.OpenTelemetry, catalog *skills.Registry) (*A2AServerImpl, error) {
	ctx := context.Background()

	store, err := CreateTaskStore(ctx, cfg.StoreConfig, logger)
	if err != nil {
		if cfg.StoreConfig.Provider == "" || cfg.StoreConfig.Provider == "memory" {
			logger.Info("using in-memory task store")
		} else {
			logger.Warn("failed to create configured task store, falling back to in-memory",
				zap.String("provider", cfg.StoreConfig.Provider),
				zap.Error(err))
		}
		store = NewInMemoryTaskStore(logger, cfg.StoreConfig.Capacity)
	}

	gate := NewDefaultPaymentGate(logger, cfg.PaymentConfig, nil)
	router := NewDefaultIntentRouter(logger, catalog, cfg.DefaultSkill)
	taskManager := NewDefaultTaskManager(logger, store, catalog, gate, cfg.SkillTimeout)
	responseSender := NewDefaultResponseSender(logger)
	agentCard := BuildAgentCard(cfg, catalog, gate)

	if telemetry != nil {
		taskManager.SetTelemetry(telemetry)
	}

	server := &A2AServerImpl{
		cfg:            cfg,
		logger:         logger,
		catalog:        catalog,
		store:          store,
		router:         router,
		gate:           gate,
		taskManager:    taskManager,
		responseSender: responseSender,
		agentCard:      agentCard,
		otel:           telemetry,
	}

	server.protocol = NewDefaultA2AProtocolHandler(
		logger,
		catalog,
		router,
		gate,
		taskManager,
		responseSender,
		agentCard,
		cfg.SkillTimeout,
	)

	return server, nil
}

// NewDefaultA2AServer creates a server from environment configuration with
// its own logger and telemetry
func NewDefaultA2AServer(cfg *config.Config) *A2AServerImpl {
	finalCfg, err := config.LoadWithLookuper(context.Background(), cfg, envconfig.OsLookuper())
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var logger *zap.Logger
	if finalCfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	var telemetryInstance otel.OpenTelemetry
	if finalCfg.TelemetryConfig.Enable {
		telemetryInstance, err = otel.NewOpenTelemetry(finalCfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize telemetry", zap.Error(err))
		}
	}

	server, err := NewA2AServer(finalCfg, logger, telemetryInstance)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	return server
}

// GetAgentCard returns the discovery document
func (s *A2AServerImpl) GetAgentCard() *types.AgentCard {
	return s.agentCard
}

// GetCatalog returns the capability catalog
func (s *A2AServerImpl) GetCatalog() *skills.Registry {
	return s.catalog
}

// GetTaskManager returns the task lifecycle manager
func (s *A2AServerImpl) GetTaskManager() TaskManager {
	return s.taskManager
}

// SetupRouter configures the HTTP router with the A2A endpoints
func (s *A2AServerImpl) setupRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.LoggingMiddleware(s.logger, cfg.ServerConfig.DisableHealthcheckLog))

	if s.cfg.TelemetryConfig.Enable && s.otel != nil {
		telemetryMw := middlewares.NewTelemetryMiddleware(s.cfg.TelemetryConfig, s.otel, s.logger)
		r.Use(telemetryMw.Middleware())
	}

	r.GET("/health", s.handleHealth)
	r.GET("/.well-known/agent-card.json", s.handleAgentCard)
	r.GET("/skills", s.handleSkills)
	r.POST("/", s.handleA2ARequest)

	return r
}

// Handler returns the configured HTTP handler without binding a listener,
// so the server can be mounted into an existing mux or exercised in tests.
func (s *A2AServerImpl) Handler() http.Handler {
	return s.setupRouter(s.cfg)
}

// Start starts the A2A server
func (s *A2AServerImpl) Start(ctx context.Context) error {
	router := s.setupRouter(s.cfg)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.ServerConfig.Port),
		Handler:      router,
		ReadTimeout:  s.cfg.ServerConfig.ReadTimeout,
		WriteTimeout: s.cfg.ServerConfig.WriteTimeout,
		IdleTimeout:  s.cfg.ServerConfig.IdleTimeout,
	}

	s.logger.Info("starting A2A server",
		zap.String("port", s.cfg.ServerConfig.Port),
		zap.String("agent_name", s.cfg.AgentName),
		zap.String("agent_version", s.cfg.AgentVersion),
		zap.Int("skills", s.catalog.Size()))

	if s.cfg.TelemetryConfig.Enable && s.otel != nil {
		go s.startMetricsServer()
	}

	if s.cfg.ServerConfig.TLSConfig.Enable {
		return s.httpServer.ListenAndServeTLS(s.cfg.ServerConfig.TLSConfig.CertPath, s.cfg.ServerConfig.TLSConfig.KeyPath)
	}

	return s.httpServer.ListenAndServe()
}

// startMetricsServer exposes the prometheus metrics endpoint
func (s *A2AServerImpl) startMetricsServer() {
	metricsRouter := gin.New()
	metricsRouter.Use(gin.Recovery())
	metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	metricsCfg := s.cfg.TelemetryConfig.MetricsConfig
	metricsAddr := metricsCfg.Host + ":" + metricsCfg.Port
	s.metricsServer = &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  metricsCfg.ReadTimeout,
		WriteTimeout: metricsCfg.WriteTimeout,
		IdleTimeout:  metricsCfg.IdleTimeout,
	}

	s.logger.Info("starting metrics server", zap.String("port", metricsCfg.Port))
	if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("metrics server failed", zap.Error(err))
	}
}

// Stop gracefully stops the A2A server
func (s *A2AServerImpl) Stop(ctx context.Context) error {
	s.logger.Info("stopping A2A server")

	var err error

	if s.httpServer != nil {
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("error stopping HTTP server", zap.Error(shutdownErr))
			err = shutdownErr
		}
	}

	if s.metricsServer != nil {
		if shutdownErr := s.metricsServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("error stopping metrics server", zap.Error(shutdownErr))
			if err == nil {
				err = shutdownErr
			}
		}
	}

	if s.otel != nil {
		if shutdownErr := s.otel.ShutDown(ctx); shutdownErr != nil {
			s.logger.Error("error shutting down telemetry", zap.Error(shutdownErr))
			if err == nil {
				err = shutdownErr
			}
		}
	}

	defer func() {
		_ = s.logger.Sync()
	}()

	return err
}

// handleHealth reports service status and store occupancy
func (s *A2AServerImpl) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"service":         s.cfg.AgentName,
		"protocolVersion": s.cfg.ProtocolVersion,
		"skills":          s.catalog.Size(),
		"activeTasks":     s.store.ActiveCount(),
	})
}

// handleAgentCard serves the discovery document
func (s *A2AServerImpl) handleAgentCard(c *gin.Context) {
	c.JSON(http.StatusOK, s.agentCard)
}

// handleSkills serves the flattened skill list, a REST mirror of skills/list
func (s *A2AServerImpl) handleSkills(c *gin.Context) {
	summaries := make([]types.AgentSkill, 0, s.catalog.Size())
	for _, skill := range s.catalog.List() {
		summaries = append(summaries, types.AgentSkill{
			ID:          skill.ID,
			Name:        skill.Name,
			Description: skill.Description,
			Tags:        skill.Tags,
			InputSchema: skill.InputSchema,
		})
	}
	c.JSON(http.StatusOK, types.SkillsListResult{Skills: summaries})
}

// handleA2ARequest is the JSON-RPC entry point. The envelope is decoded
// manually so an undecodable body can be answered with id null, the one case
// the protocol forces the echoed id to null.
func (s *A2AServerImpl) handleA2ARequest(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.responseSender.SendError(c, nil, int(ErrParseError), "Parse error")
		return
	}

	var req types.JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Error("failed to parse json request", zap.Error(err))
		s.responseSender.SendError(c, nil, int(ErrParseError), "Parse error")
		return
	}

	if req.JSONRPC != "2.0" {
		s.responseSender.SendError(c, req.ID, int(ErrInvalidRequest), `Invalid Request: jsonrpc must be "2.0"`)
		return
	}

	s.logger.Info("received a2a request",
		zap.String("method", req.Method),
		zap.Any("id", req.ID))

	switch req.Method {
	case "message/send":
		s.protocol.HandleMessageSend(c, req)
	case "tasks/send":
		s.protocol.HandleTaskSend(c, req)
	case "tasks/get":
		s.protocol.HandleTaskGet(c, req)
	case "tasks/cancel":
		s.protocol.HandleTaskCancel(c, req)
	case "agent/describe":
		s.protocol.HandleAgentDescribe(c, req)
	case "skills/list":
		s.protocol.HandleSkillsList(c, req)
	default:
		s.logger.Warn("unknown method requested", zap.String("method", req.Method))
		s.responseSender.SendError(c, req.ID, int(ErrMethodNotFound), fmt.Sprintf("Method not found: %s", req.Method))
	}
}
