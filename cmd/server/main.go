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

	"busline/internal/app"
	"busline/internal/cache"
	"busline/internal/config"
	"busline/internal/handler"
	"busline/internal/queue"
	"busline/internal/repository/postgres"
	"busline/internal/service"
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
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
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

	// Event publisher is optional: without a broker URL events are dropped.
	var events *queue.Publisher
	if cfg.Queue.URL != "" {
		events, err = queue.NewPublisher(cfg.Queue.URL)
		if err != nil {
			log.Printf("event publisher disabled: %v", err)
			events = nil
		} else {
			defer events.Close()
			log.Println("Connected to RabbitMQ")
		}
	}

	// Local fallback cache tier owns a janitor goroutine; stop it on exit.
	localTier := cache.NewLocalTier(cfg.Cache.LocalSweep)
	defer localTier.Close()

	server, reservationService := wireServer(db, redisClient, localTier, events, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Expiry sweep: release capacity held by bookings that never paid.
	sweepDone := make(chan struct{})
	go runExpirySweep(reservationService, cfg.Booking.SweepInterval, sweepDone)

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	close(sweepDone)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server together
// with the reservation service the expiry sweep drives.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	localTier *cache.LocalTier,
	events *queue.Publisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
) (*http.Server, *service.ReservationService) {
	// Cache facade: durable Redis tier first, node-local fallback second.
	cacheFacade := cache.NewFacade(cfg.Cache.OpTimeout, cache.NewRedisTier(redisClient), localTier)

	// Initialize repositories.
	tripRepo := postgres.NewTripRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)

	// Initialize services.
	provider := service.NewMockProvider()
	reservationService := service.NewReservationService(tripRepo, bookingRepo, provider, cacheFacade, events, cfg.Booking.ExpiryWindow)
	reconciliationService := service.NewReconciliationService(bookingRepo, provider, events)
	tripService := service.NewTripService(tripRepo, cacheFacade)

	// Initialize handlers.
	tripHandler := handler.NewTripHandler(tripService)
	bookingHandler := handler.NewBookingHandler(reservationService)
	paymentHandler := handler.NewPaymentHandler(reconciliationService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		TripHandler:    tripHandler,
		BookingHandler: bookingHandler,
		PaymentHandler: paymentHandler,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		AuthJWTSecret:  cfg.Auth.JWTSecret,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return server, reservationService
}

// runExpirySweep periodically cancels overdue PENDING_PAYMENT bookings. The
// sweep is idempotent, so overlapping with user cancellations or late
// confirmations is safe.
func runExpirySweep(reservationService *service.ReservationService, interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			expired, err := reservationService.ExpireStale(ctx)
			cancel()
			if err != nil {
				log.Printf("[SWEEP] failed: %v", err)
				continue
			}
			if expired > 0 {
				log.Printf("[SWEEP] released capacity for %d expired bookings", expired)
			}
		}
	}
}
