package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketing-realtime/internal/api/handlers"
	apimiddleware "ticketing-realtime/internal/api/middleware"
	"ticketing-realtime/internal/config"
	"ticketing-realtime/internal/domain"
	"ticketing-realtime/internal/infrastructure/auth"
	"ticketing-realtime/internal/infrastructure/memory"
	"ticketing-realtime/internal/infrastructure/mysql"
	"ticketing-realtime/internal/infrastructure/redis"
	"ticketing-realtime/internal/infrastructure/websocket"
	"ticketing-realtime/internal/metrics"
	"ticketing-realtime/internal/services"
	"ticketing-realtime/pkg/logger"
	"ticketing-realtime/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer func() { _ = log.Sync() }()
	log.Info("Starting realtime service", "config", cfg.GetConfigString())

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	clock := clockwork.NewRealClock()

	// Presence core
	rooms := websocket.NewRoomDirectory()
	connections := websocket.NewRegistry(rooms, clock, m, log)
	broadcaster := websocket.NewBroadcaster(connections, clock, m, log)

	// Stores
	var (
		db     *sql.DB
		repo   domain.NotificationRepository
		stats  domain.StatsSource
		ledger *memory.SalesLedger
	)
	switch cfg.Realtime.NotificationStore {
	case "mysql":
		db, err = utils.InitializeMysql(ctx, cfg, log)
		if err != nil {
			log.Error("Failed to initialize MySQL", "error", err)
			os.Exit(1)
		}
		defer func(db *sql.DB) {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}(db)
		repo = mysql.NewMySQLNotificationRepository(db)
		stats = mysql.NewMySQLStatsRepository(db)
	case "memory":
		log.Warn("Using in-memory notification store, notifications will not survive a restart")
		repo = memory.NewNotificationRepository()
		ledger = memory.NewSalesLedger(clock)
		stats = ledger
	}

	// Services
	dashboard := services.NewDashboardCache(stats, connections, broadcaster, clock, m, log)
	notifications := services.NewNotificationService(repo, broadcaster, clock, cfg.Realtime.CatchupLimit, m, log)
	orchestrator := services.NewOrchestrator(dashboard, broadcaster, notifications, cfg.Realtime.NotifyOnSale, m, log)
	if ledger != nil {
		orchestrator.RecordSalesTo(ledger)
	}
	reaper := services.NewIdleReaper(connections, clock, cfg.Realtime.IdleThreshold, log)
	scheduler := services.NewCronScheduler(reaper, dashboard, connections,
		cfg.Realtime.ReapInterval, cfg.Realtime.DashboardPushInterval, log)

	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	wsHandler := websocket.NewWebSocketHandler(verifier, connections, broadcaster, notifications, dashboard,
		websocket.HandlerOptions{
			Session: websocket.SessionOptions{
				BufferSize:   cfg.Realtime.SendBufferSize,
				WriteTimeout: cfg.Realtime.WriteTimeout,
				PingInterval: cfg.Realtime.PingInterval,
			},
			MaxMessageSize: cfg.Realtime.MaxMessageSize,
			AllowedOrigins: cfg.Realtime.AllowedOrigins,
		}, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Realtime.AllowedOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			apimiddleware.HeaderServiceKey,
		},
		MaxAge: 86400,
	}))

	// Initialize handlers
	wsHandlers := handlers.NewWebSocketHandlers(wsHandler)
	mutationHandler := handlers.NewMutationHandler(orchestrator, log)
	statsHandler := handlers.NewStatsHandler(connections)

	e.GET("/ws", wsHandlers.HandleConnection)

	// API routes
	api := e.Group("/api/v1")

	collaborators := api.Group("", apimiddleware.ServiceKey(cfg.Auth.ServiceKey, log))
	collaborators.POST("/mutations/sales", mutationHandler.SaleCompleted)
	collaborators.POST("/mutations/events/:eventId/seats/:seatId", mutationHandler.SeatStatusChanged)
	collaborators.POST("/mutations/events/:eventId/seats", mutationHandler.SeatsUpdated)
	collaborators.POST("/mutations/invalidate", mutationHandler.Invalidate)
	collaborators.POST("/notifications", mutationHandler.CreateNotification)

	admin := api.Group("", apimiddleware.RequireRole(verifier, domain.RoleAdmin))
	admin.GET("/connections/stats", statsHandler.ConnectionStats)

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     "realtime-service",
			"instance":    cfg.Instance.ID,
			"connections": connections.Count(),
			"timestamp":   time.Now().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Start background services
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	if err := scheduler.Start(runCtx); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	subscriber := redis.NewRedisEventSubscriber(rdb, cfg.Redis.Channel, log)
	go func() {
		if err := orchestrator.Start(runCtx, subscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Mutation subscriber stopped", "error", err)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting realtime server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down realtime service...")

	// Graceful shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stopRun()
	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}

	broadcaster.ToAll(domain.ServerShutdown{Reason: "restarting"})
	log.Info("Drained connections", "count", connections.Drain(shutdownCtx))

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := rdb.Close(); err != nil {
		log.Error("Failed to close Redis client", "error", err)
	}

	log.Info("Realtime service stopped")
}
