package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"delivery/internal/app"
	"delivery/internal/auth"
	"delivery/internal/config"
	"delivery/internal/handler"
	"delivery/internal/hub"
	internalRedis "delivery/internal/redis"
	"delivery/internal/repository/postgres"
	"delivery/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) *http.Server {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	presenceStore := internalRedis.NewPresenceStore(redisClient)

	// Initialize repositories.
	customerRepo := postgres.NewCustomerRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	promoRepo := postgres.NewPromoRepository(db)
	chatRepo := postgres.NewChatRepository(db)

	// Realtime hub. Wired after the services below exist.
	realtimeHub := hub.New()

	// Initialize services.
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	notificationService := service.NewNotificationService()
	dispatchService := service.NewDispatchService(orderRepo, driverRepo, lockStore, presenceStore, realtimeHub, notificationService, cfg.Dispatch.SearchTimeout)
	orderService := service.NewOrderService(orderRepo, promoRepo, driverRepo, dispatchService, realtimeHub, notificationService)
	driverService := service.NewDriverService(driverRepo, orderRepo, locationStore, presenceStore, realtimeHub)
	chatService := service.NewChatService(chatRepo, orderRepo, realtimeHub)
	paymentService := service.NewPaymentService(orderRepo, service.NewHMACVerifier(cfg.Payment.WebhookSecret), notificationService)

	realtimeHub.Wire(orderService, driverService, &service.InboundRelay{
		Chat:    chatService,
		Drivers: driverService,
	})

	// Initialize handlers.
	customerHandler := handler.NewCustomerHandler(customerRepo, tokens)
	driverHandler := handler.NewDriverHandler(driverRepo, driverService, dispatchService, tokens)
	orderHandler := handler.NewOrderHandler(orderService)
	chatHandler := handler.NewChatHandler(chatService)
	fareHandler := handler.NewFareHandler(promoRepo)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	wsHandler := handler.NewWSHandler(realtimeHub, tokens)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		OrderHandler:    orderHandler,
		DriverHandler:   driverHandler,
		CustomerHandler: customerHandler,
		ChatHandler:     chatHandler,
		FareHandler:     fareHandler,
		PaymentHandler:  paymentHandler,
		WSHandler:       wsHandler,
		Tokens:          tokens,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
