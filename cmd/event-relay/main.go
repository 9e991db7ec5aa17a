package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketing-realtime/internal/api/relay"
	"ticketing-realtime/internal/config"
	"ticketing-realtime/internal/domain"
	"ticketing-realtime/internal/infrastructure/auth"
	"ticketing-realtime/internal/infrastructure/redis"
	"ticketing-realtime/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer func() { _ = log.Sync() }()
	log.Info("Starting event relay")

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address, "channel", cfg.Redis.Channel)

	publisher := redis.NewEventPublisher(rdb, cfg.Redis.Channel)
	handler := relay.NewHandler(publisher, clockwork.NewRealClock(), log)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Relay.Host, cfg.Relay.Port),
		Handler:           handler.Router(cfg.Auth.ServiceKey, cfg.Realtime.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting relay server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down event relay...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := rdb.Close(); err != nil {
		log.Error("Failed to close Redis client", "error", err)
	}

	log.Info("Event relay stopped")
}

// issueToken prints a signed bearer token for local testing of the websocket handshake.
func issueToken(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	userID := fs.String("user", "", "user id placed in the sub claim")
	role := fs.String("role", string(domain.RoleUser), "role: admin, organizer, user or guest")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *userID == "" {
		return errors.New("--user is required")
	}
	if !domain.Role(*role).Valid() {
		return fmt.Errorf("unknown role %q", *role)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}

	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	token, err := verifier.IssueToken(domain.Identity{UserID: *userID, Role: domain.Role(*role)}, *ttl)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
