package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"gate-ticketing/internal/admin_api"
	"gate-ticketing/internal/attendance"
	"gate-ticketing/internal/auth"
	"gate-ticketing/internal/config"
	"gate-ticketing/internal/gateway"
	"gate-ticketing/internal/kafka"
	"gate-ticketing/internal/logger"
	"gate-ticketing/internal/order"
	"gate-ticketing/internal/order/db"
	"gate-ticketing/internal/order/discount"
	"gate-ticketing/internal/order/order_api"
	"gate-ticketing/internal/qr"
	"gate-ticketing/internal/turnstile"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Ticketing Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid configuration: %v", err))
	}

	client := &http.Client{
		Timeout: time.Second * 10,
	}
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		log.Info("KAFKA", "Kafka producer initialized successfully")

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.Topics()); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	store := &db.DB{Bun: bunDB}
	discountService := discount.NewService(store, log)
	snapClient := gateway.NewSnapClient(cfg.Gateway, client, log)
	verifier := turnstile.NewClient(cfg.Turnstile, client, log)

	// Producer is an interface-shaped dependency; a nil *Producer must not
	// reach the services as a non-nil interface.
	var events order.EventPublisher
	var attEvents attendance.EventPublisher
	if producer != nil {
		events = producer
		attEvents = producer
	}

	orderService := order.NewService(store, discountService, snapClient, verifier, events, cfg.Gateway.ServerKey, log)
	attendanceService := attendance.NewService(store, attEvents, log)

	handler := order_api.NewHandler(orderService, attendanceService, discountService, qr.NewGenerator(), log)
	adminHandler := admin_api.NewHandler(store, attendanceService, log)

	authVerifier, err := auth.NewVerifier(ctx, cfg.Auth.OIDCIssuer, auth.NewCache(redisClient), log)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to initialize OIDC verifier: %v", err))
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/api/tickets/tiers", handler.Tiers)
	r.Post("/api/payments/token", handler.Checkout)
	r.Post("/api/webhooks/gateway", handler.GatewayWebhook)
	r.Get("/api/webhooks/gateway", handler.GatewayWebhookPing)
	r.Post("/api/discounts/validate", handler.ValidateDiscount)
	r.Get("/api/tickets/{orderId}/qr", handler.TicketQR)
	r.Handle("/metrics", promhttp.Handler())
	log.Info("ROUTER", "Public checkout and webhook endpoints registered")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(authVerifier.Middleware())
		log.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Post("/api/admin/scan", handler.Scan)
		adminHandler.RegisterRoutes(r)
		log.Info("ROUTER", "Scan and admin routes registered")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Ticketing Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}
	log.Info("APP", "Service stopped cleanly")
}
