package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"pinky-backend/internal/config"
	"pinky-backend/internal/database"
	"pinky-backend/internal/handlers"
	"pinky-backend/internal/middleware"
	"pinky-backend/internal/models"
	"pinky-backend/internal/repository"
	"pinky-backend/internal/router"
	"pinky-backend/internal/services"
	"pinky-backend/internal/websocket"
)

type slotStore interface {
	Read(ctx context.Context, key string) (string, bool, error)
	Write(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

func main() {
	log.Println("🚀 Starting Pinky chat server...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Connect Redis (store and/or state fan-out) ────
	var pubsub *redis.Client
	var store slotStore
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()
		pubsub = redisClients.PubSub
		if cfg.StoreBackend == config.StoreRedis {
			store = repository.NewRedisSlotRepo(redisClients.Store)
		}
		log.Println("✓ Redis connected")
	}

	// ──── Step 3: Initialize History Store ────
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(context.Background(), pool, database.Migrations()); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")
		store = repository.NewPostgresSlotRepo(pool)
	case config.StoreMemory:
		store = repository.NewMemorySlotRepo()
		log.Println("⚠ Using in-memory history store; history is lost on restart")
	}
	log.Printf("✓ History store ready (%s, key %q)", cfg.StoreBackend, cfg.HistoryKey)

	// ──── Step 4: Initialize Services ────
	answerClient := services.NewAnswerClient(
		cfg.AnswerServiceURL,
		time.Duration(cfg.AnswerTimeoutSeconds)*time.Second,
		cfg.AnswerLegacyFields,
	)
	log.Printf("✓ Answer service: %s", cfg.AnswerServiceURL)

	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret, cfg.Env == "production")
	wsHub := websocket.NewHub(pubsub, sessionAuth, cfg.FrontendURL)

	sessions := services.NewSessionManager(
		store,
		answerClient,
		cfg.HistoryKey,
		time.Duration(cfg.SessionIdleMinutes)*time.Minute,
		func(sessionID string, state services.ChatState) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			wsHub.Publish(ctx, sessionID, models.WSMessage{Type: "state", Payload: state.Response()})
		},
	)
	sessions.Start()
	log.Println("✓ Session manager started")

	askLimiter := middleware.NewRateLimiter(cfg.AskRequestsPerMin, time.Minute)

	// ──── Step 5: Start HTTP Server ────
	r := router.New(
		sessionAuth,
		askLimiter,
		handlers.NewChatHandler(sessions),
		wsHub,
		cfg.FrontendURL,
		cfg.TrustProxy,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		sessions.Stop()
		askLimiter.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Pinky ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
