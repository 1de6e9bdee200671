// internal/app/server.go
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"gestia-service/internal/config"
	"gestia-service/internal/db"
	authHandler "gestia-service/internal/handlers/auth"
	wsHandler "gestia-service/internal/handlers/websocket"
	"gestia-service/internal/identity"
	"gestia-service/internal/metrics"
	"gestia-service/internal/middleware"
	"gestia-service/internal/pkg/ratelimit"
	"gestia-service/internal/pkg/session"
	"gestia-service/internal/repository/postgres"
	"gestia-service/internal/store"
	"gestia-service/internal/websocket"
)

type Server struct {
	cfg      config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	sessions *session.Manager
	cancel   context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- Redis (durable session scope) -----
	redisClient, err := db.NewRedisClient(ctx, s.cfg.RedisAddr, s.cfg.RedisPass)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", s.cfg.RedisAddr))

	durable := store.NewRedisScope(redisClient, "gestia:session", logger)
	volatile := store.NewMemoryScope()
	sessionStore := store.New(durable, volatile, logger)

	// ----- Identity provider -----
	var provider identity.Provider
	switch s.cfg.ProviderMode {
	case "local":
		local := identity.NewLocalProvider()
		if _, err := local.SignUp(ctx, "dev@gestia.local", "devpassword", "Dev User"); err != nil {
			return fmt.Errorf("failed to seed local provider: %w", err)
		}
		logger.Warn("using local identity provider, dev account dev@gestia.local is active")
		provider = local
	default:
		provider = identity.NewHTTPProvider(s.cfg.ProviderBaseURL, s.cfg.ProviderAPIKey)
	}
	client := identity.NewClient(provider, sessionStore, logger)

	// ----- Metrics -----
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// ----- Audit trail (optional) -----
	var audit session.AuditLog
	if s.cfg.DatabaseURL != "" {
		if err := postgres.RunMigrations(s.cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		pool, err := postgres.Connect(ctx, s.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		audit = postgres.NewAuthEventRepository(pool)
		logger.Info("auth event auditing enabled")
	} else {
		logger.Info("DATABASE_URL not set, auth event auditing disabled")
	}

	// ----- Session manager -----
	sessionCfg := session.Config{
		IdleTimeout:      s.cfg.IdleTimeout,
		ValidateInterval: s.cfg.ValidateInterval,
		TouchDebounce:    s.cfg.TouchDebounce,
	}
	manager := session.NewManager(client, sessionStore, sessionCfg, audit, collector, logger)
	s.sessions = manager

	// ----- WebSocket hub -----
	hub := websocket.NewHub(manager, logger)
	go hub.Run(ctx)
	manager.SubscribeState(hub.BroadcastSnapshot)

	// ----- Handlers & middleware -----
	guard := middleware.NewGuard(manager, s.cfg.LoginPath)
	limiter := ratelimit.NewLimiter(redisClient)
	handlers := &Handlers{
		AuthHandler: authHandler.NewAuthHandler(client, manager, audit, collector, limiter, logger),
		WSHandler:   wsHandler.NewHandler(hub, manager, logger),
		Guard:       guard,
		Registry:    registry,
	}

	s.engine.Use(middleware.RecoveryMiddleware(logger))
	s.engine.Use(middleware.LoggingMiddleware(logger))
	s.engine.Use(middleware.CORSMiddleware())

	SetupRouter(s.engine, logger, handlers)

	// Subscribe before the client starts so the initial auth event lands.
	manager.Start()
	client.Start(ctx)

	logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown stops the session lifecycle and background workers.
func (s *Server) Shutdown() {
	if s.sessions != nil {
		s.sessions.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.logger != nil {
		s.logger.Info("server stopped")
	}
}
