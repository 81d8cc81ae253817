package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/stemchat/agent"
	"github.com/BaSui01/stemchat/api/handlers"
	"github.com/BaSui01/stemchat/config"
	"github.com/BaSui01/stemchat/internal/auth"
	"github.com/BaSui01/stemchat/internal/cache"
	"github.com/BaSui01/stemchat/internal/chat"
	"github.com/BaSui01/stemchat/internal/database"
	"github.com/BaSui01/stemchat/internal/events"
	"github.com/BaSui01/stemchat/internal/inventory"
	"github.com/BaSui01/stemchat/internal/lessons"
	"github.com/BaSui01/stemchat/internal/metrics"
	"github.com/BaSui01/stemchat/internal/server"
	"github.com/BaSui01/stemchat/internal/telemetry"
	"github.com/BaSui01/stemchat/llm/providers/openaicompat"
	"github.com/BaSui01/stemchat/router"
)

// =============================================================================
// 🧩 应用装配
// =============================================================================

// app holds every long-lived component of a running server.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector

	pool      *database.Pool
	cache     *cache.Manager
	publisher events.Publisher
	tokens    *auth.TokenService
	auth      *auth.Service
	inventory inventory.Repository
	router    *router.Router
	hub       *chat.Hub
	bot       *chat.Bot
	chat      *chat.Service
	health    *handlers.HealthHandler
}

// buildApp wires the components on top of an open database.
func buildApp(cfg *config.Config, db *gorm.DB, collector *metrics.Collector, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, collector: collector}

	poolCfg := database.DefaultPoolConfig()
	if cfg.Database.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite 只允许一个写者
		poolCfg.MaxOpenConns = 1
		poolCfg.MaxIdleConns = 1
	}
	driver := cfg.Database.Driver
	pool, err := database.NewPool(db, poolCfg, logger, database.WithObserver(
		func(op string, d time.Duration, _ error) {
			collector.RecordDBQuery(driver, op, d)
		}))
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	a.pool = pool

	// 库存存储，可选 redis 缓存
	var repo inventory.Repository = inventory.NewGormStore(pool, logger)
	if cfg.Redis.Enabled {
		cm, err := cache.NewManager(cache.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			KeyPrefix:    "stemchat:",
			DefaultTTL:   cfg.Redis.TTL,
			MaxRetries:   3,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			TLS:          cfg.Redis.TLS,
		}, logger, collector.CacheObserver("inventory"))
		if err != nil {
			_ = a.close(context.Background())
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.cache = cm
		repo = inventory.NewCachedStore(repo, cm, logger)
	}
	a.inventory = repo

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		logger.Warn("auth.jwt_secret not set, using a random secret; tokens will not survive a restart")
	}
	a.tokens = auth.NewTokenService(secret, cfg.Auth.TokenTTL)
	a.auth = auth.NewService(pool.DB(), a.tokens, logger)

	if cfg.Events.Enabled {
		a.publisher = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Events.Brokers,
			Topic:        cfg.Events.Topic,
			WriteTimeout: cfg.Events.WriteTimeout,
		}, logger)
	} else {
		a.publisher = events.Noop{}
	}

	// 路由器：库存 Agent + 课程 Agent，兜底走 OpenAI 兼容接口
	provider := openaicompat.New(openaicompat.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		DefaultModel:   cfg.LLM.Model,
		Timeout:        cfg.LLM.Timeout,
		EndpointPath:   "/chat/completions",
		ModelsEndpoint: "/models",
	}, logger)
	fallback := router.NewLLMFallback(provider, router.FallbackConfig{
		Model:         cfg.LLM.Model,
		Temperature:   float32(cfg.LLM.Temperature),
		MaxTokens:     cfg.LLM.MaxTokens,
		HistoryTokens: cfg.LLM.HistoryTokens,
		Timeout:       cfg.LLM.Timeout,
	}, nil, collector, logger)

	agents := []agent.Agent{
		agent.NewInventoryAgent(logger),
		agent.NewLessonPlanAgent(lessons.NewStore(pool.DB(), logger), logger),
	}
	r, err := router.New(agents, fallback,
		router.WithThreshold(cfg.Bot.Threshold),
		router.WithLogger(logger),
		router.WithMetrics(collector),
		router.WithTracer(telemetry.Tracer("router")),
	)
	if err != nil {
		_ = a.close(context.Background())
		return nil, fmt.Errorf("create router: %w", err)
	}
	a.router = r

	a.hub = chat.NewHub(chat.DefaultHubConfig(), collector, logger)
	a.bot = chat.NewBot(chat.BotConfig{
		TriggerPrefix: cfg.Bot.TriggerPrefix,
		Timeout:       cfg.Bot.Timeout,
		HistorySize:   cfg.Bot.HistorySize,
		Workers:       cfg.Bot.Workers,
		QueueSize:     cfg.Bot.QueueSize,
	}, r, repo, collector, logger)
	a.chat = chat.NewService(pool.DB(), a.hub, logger,
		chat.WithPublisher(a.publisher),
		chat.WithBot(a.bot),
		chat.WithMetrics(collector),
	)

	a.health = handlers.NewHealthHandler(handlers.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}, logger)
	a.health.RegisterCheck(handlers.NewPingCheck("database", func(ctx context.Context) error {
		stats := pool.Stats()
		collector.RecordDBConnections(driver, stats.OpenConnections, stats.Idle)
		return pool.Ping(ctx)
	}))
	if a.cache != nil {
		a.health.RegisterCheck(handlers.NewPingCheck("redis", a.cache.Ping))
	}

	return a, nil
}

// routes builds the API handler. ctx bounds the rate limiter's janitor.
func (a *app) routes(ctx context.Context) http.Handler {
	authH := handlers.NewAuthHandler(a.auth, a.logger)
	chatH := handlers.NewChatHandler(a.chat, a.hub, a.cfg.Server.CORSOrigins, a.logger)
	invH := handlers.NewInventoryHandler(a.inventory, a.publisher, a.collector, a.logger)
	agentH := handlers.NewAgentHandler(a.router)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.health.HandleHealth)
	mux.HandleFunc("GET /healthz", a.health.HandleHealth)
	mux.HandleFunc("GET /ready", a.health.HandleReady)
	mux.HandleFunc("GET /version", a.health.HandleVersion)

	mux.HandleFunc("POST /api/signup", authH.HandleSignup)
	mux.HandleFunc("POST /api/login", authH.HandleLogin)

	mux.HandleFunc("GET /api/messages", chatH.HandleList)
	mux.HandleFunc("POST /api/messages", chatH.HandlePost)
	mux.HandleFunc("DELETE /api/messages", chatH.HandleClear)
	mux.HandleFunc("PUT /api/messages/{id}", chatH.HandleEdit)
	mux.HandleFunc("DELETE /api/messages/{id}", chatH.HandleDelete)
	mux.HandleFunc("GET /ws", chatH.HandleWebSocket)

	mux.HandleFunc("GET /api/inventory", invH.HandleListItems)
	mux.HandleFunc("POST /api/inventory", invH.HandleCreateItem)
	mux.HandleFunc("GET /api/inventory/low-stock", invH.HandleLowStock)
	mux.HandleFunc("PUT /api/inventory/{id}", invH.HandleUpdateQuantity)
	mux.HandleFunc("GET /api/inventory/{id}/transactions", invH.HandleTransactions)
	mux.HandleFunc("GET /api/suppliers", invH.HandleListSuppliers)
	mux.HandleFunc("POST /api/suppliers", invH.HandleCreateSupplier)

	mux.HandleFunc("GET /api/agents", agentH.HandleListAgents)

	middlewares := []Middleware{
		Recovery(a.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(a.logger),
		MetricsMiddleware(a.collector),
		OTelTracing(),
		CORS(a.cfg.Server.CORSOrigins),
	}
	if a.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares, RateLimiter(ctx, float64(a.cfg.Server.RateLimitRPS), a.cfg.Server.RateLimitBurst))
	}
	middlewares = append(middlewares, JWTAuth(a.tokens, a.cfg.Auth.SkipPaths, a.logger))

	return Chain(mux, middlewares...)
}

// close releases the backing resources. Fields not yet built are skipped.
func (a *app) close(ctx context.Context) error {
	var steps []server.ShutdownFunc
	if a.publisher != nil {
		steps = append(steps, func(context.Context) error { return a.publisher.Close() })
	}
	if a.cache != nil {
		steps = append(steps, func(context.Context) error { return a.cache.Close() })
	}
	if a.pool != nil {
		steps = append(steps, func(context.Context) error { return a.pool.Close() })
	}
	return server.ShutdownAll(ctx, steps...)
}

// =============================================================================
// 🚀 启动与优雅关闭
// =============================================================================

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	tel, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	collector := metrics.NewCollector("stemchat", logger)

	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return err
	}
	if cfg.Database.AutoMigrate {
		if err := migrateUp(ctx, cfg.Database, logger); err != nil {
			_ = tel.Shutdown(ctx)
			return err
		}
	}

	a, err := buildApp(cfg, db, collector, logger)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return err
	}

	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()

	api := server.NewManager(a.routes(limiterCtx), server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	// WebSocket 连接被劫持，http.Server.Shutdown 不会等待它们
	api.RegisterOnShutdown(a.hub.Close)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := server.NewManager(metricsMux, server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	if err := api.Start(); err != nil {
		_ = a.close(ctx)
		_ = tel.Shutdown(ctx)
		return fmt.Errorf("start api server: %w", err)
	}
	if err := metricsSrv.Start(); err != nil {
		logger.Warn("metrics server not started", zap.Error(err))
		metricsSrv = nil
	}

	logger.Info("StemChat ready",
		zap.String("api_addr", api.Addr()),
		zap.Int("agents", len(a.router.Agents())),
		zap.Bool("redis", a.cache != nil),
		zap.Bool("events", cfg.Events.Enabled),
	)

	managers := []*server.Manager{api}
	if metricsSrv != nil {
		managers = append(managers, metricsSrv)
	}
	reason := server.WaitForShutdown(ctx, logger, managers...)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(reason, shutdown(shutdownCtx, a, tel, stopLimiter, managers...))
}

// shutdown 分三阶段：停止接收请求，等待机器人回复，释放后端资源
func shutdown(ctx context.Context, a *app, tel *telemetry.Providers, stopLimiter func(), managers ...*server.Manager) error {
	a.logger.Info("shutting down")

	var steps []server.ShutdownFunc
	for _, m := range managers {
		steps = append(steps, m.Shutdown)
	}
	var errs []error
	if err := server.ShutdownAll(ctx, steps...); err != nil {
		errs = append(errs, err)
	}

	stopLimiter()
	// 回复 worker 必须在数据库关闭前全部退出
	if err := a.bot.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pending bot replies: %w", err))
		a.bot.Abort()
	} else {
		a.bot.Close()
	}

	if err := server.ShutdownAll(ctx,
		a.close,
		tel.Shutdown,
	); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		a.logger.Info("shutdown complete")
	}
	return errors.Join(errs...)
}
