package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/config"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/connection"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/fanout"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/handler"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/health"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/jwt"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/lifecycle"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/presence"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/protocol"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/reaction"
	rtRedis "github.com/mpjgroup/OrganizationalMessenger-sub000/internal/redis"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/repository"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/server"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/snowflake"
	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/workerpool"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	redisClient := rtRedis.NewClient(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)

	ids, err := snowflake.NewNode(cfg.Server.NodeID)
	if err != nil {
		logger.Error("Invalid node id", "node_id", cfg.Server.NodeID, "error", err)
		os.Exit(1)
	}

	// repositories
	messages := repository.NewMessageRepository(db)
	receipts := repository.NewReceiptRepository(db)
	reactions := repository.NewReactionRepository(db)
	users := repository.NewUserRepository(db)
	members := repository.NewMembershipRepository(db)
	attachments := repository.NewAttachmentRepository(db)
	settings := repository.NewSettingsRepository(db, 30*time.Second)
	perms := repository.NewPermissionRepository(db)

	// a restart empties the registry, so presence state starts from scratch
	if err := users.ResetAllOnline(ctx); err != nil {
		logger.Error("Failed to reset presence columns", "error", err)
		os.Exit(1)
	}
	if err := redisClient.Reset(ctx); err != nil {
		logger.Warn("Failed to reset presence mirror", "error", err)
	}

	registry := connection.NewRegistry()
	pool := workerpool.New(cfg.Fanout.Workers, cfg.Fanout.QueueSize, logger)
	dispatcher := fanout.NewDispatcher(registry, members, pool)

	tracker := presence.NewTracker(users, redisClient, messages, dispatcher,
		cfg.Presence.ReplayWindow, cfg.Presence.ReplayBatchSize)
	lifecycleService := lifecycle.NewService(messages, receipts, attachments, settings, perms, dispatcher, ids)
	ledger := reaction.NewLedger(reactions, messages, dispatcher)

	events := handler.New(lifecycleService, ledger, dispatcher, logger)
	tokens := jwt.NewService(cfg.Auth.TokenSecret)
	sessionHandler := protocol.NewHandler(registry, tracker, tokens, events, logger)

	heartbeat := connection.NewHeartbeatChecker(registry,
		cfg.Server.HeartbeatTimeout, cfg.Server.HeartbeatCheckInterval, logger)
	go heartbeat.Start(ctx)

	srv := server.New(cfg, registry, tracker, sessionHandler, logger)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	healthChecker := health.NewChecker(db, redisClient, registry)
	go startHealthServer(cfg.Server.HealthAddr, healthChecker, logger)

	logger.Info("Realtime server started",
		"addr", cfg.Server.Addr,
		"node_id", cfg.Server.NodeID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()
	srv.Shutdown()
	pool.Shutdown()
	logger.Info("Server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func startHealthServer(addr string, healthChecker *health.Checker, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/health", healthChecker)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if healthChecker.IsHealthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Not Ready"))
		}
	})

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logger.Info("Health check server started", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Health check server failed", "error", err)
	}
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}
