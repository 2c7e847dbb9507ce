package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/config"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/handlers"
	"github.com/smarttransit/seat-reservation/internal/lock"
	"github.com/smarttransit/seat-reservation/internal/middleware"
	"github.com/smarttransit/seat-reservation/internal/policy"
	"github.com/smarttransit/seat-reservation/internal/queue"
	"github.com/smarttransit/seat-reservation/internal/services"
	"github.com/smarttransit/seat-reservation/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SmartTransit Seat Reservation Service")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	checks := map[string]handlers.HealthCheck{}

	// Ledger and catalog
	var (
		ledger  database.Ledger
		catalog database.Catalog
	)
	switch cfg.Booking.LedgerDriver {
	case config.LedgerPostgres:
		logger.Info("Connecting to database...")
		db, err := database.NewConnection(cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Info("Database connection established")

		if cfg.Database.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := database.Migrate(ctx, db.DB)
			cancel()
			if err != nil {
				logger.Fatalf("Failed to apply schema: %v", err)
			}
			logger.Info("Schema is up to date")
		}

		ledger = database.NewBookingRepository(db.DB)
		catalog = database.NewCatalogRepository(db.DB)
		checks["database"] = db.PingContext

	case config.LedgerMemory:
		seeded, err := database.LoadCatalogSeed(cfg.Booking.CatalogSeedFile)
		if err != nil {
			logger.Fatalf("Failed to load catalog seed: %v", err)
		}
		ledger = database.NewMemoryLedger()
		catalog = seeded
		logger.WithField("seed_file", cfg.Booking.CatalogSeedFile).Warn("Using in-memory ledger, bookings are lost on restart")
	}

	// Seat locks
	var locker lock.Locker
	switch cfg.Booking.LockBackend {
	case config.LockBackendRedis:
		redisClient, err := database.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.Booking.LockTTL, "seat-reservation:lock:", logger)
		checks["redis"] = func(ctx context.Context) error {
			return redisPing(ctx, redisClient)
		}
		logger.Info("Using Redis seat locks")
	default:
		locker = lock.NewLocalLocker()
		logger.Info("Using in-process seat locks")
	}

	// Booking events
	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		publisher = queue.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
		logger.WithField("queue", cfg.RabbitMQ.Queue).Info("Publishing booking events to RabbitMQ")
	}
	defer publisher.Close()

	// Initialize services
	logger.Info("Initializing services...")
	coordinatorCfg := services.DefaultCoordinatorConfig()
	coordinatorCfg.Strategy = cfg.Booking.Strategy
	coordinatorCfg.MaxCommitRetries = cfg.Booking.MaxCommitRetries
	coordinatorCfg.LockWait = cfg.Booking.LockWait
	coordinatorCfg.InternationalPhones = cfg.Booking.InternationalPhones

	policyEngine := policy.NewEngine(cfg.Booking.ModificationWindow)
	coordinator := services.NewReservationCoordinator(
		ledger,
		catalog,
		policyEngine,
		locker,
		publisher,
		coordinatorCfg,
		logger,
	)
	inventoryService := services.NewInventoryService(ledger, catalog, logger)
	verifier := jwt.NewVerifier(cfg.JWT.Secret)

	cronService := services.NewCronService(ledger, coordinator, cfg.Booking.CompletionCron, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"strategy":     cfg.Booking.Strategy,
		"lock_backend": cfg.Booking.LockBackend,
		"ledger":       cfg.Booking.LedgerDriver,
		"window":       policyEngine.Window().String(),
	}).Info("Reservation engine ready")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(coordinator, inventoryService, logger)
	adminHandler := handlers.NewAdminHandler(cronService, logger)
	healthHandler := handlers.NewHealthHandler(version, checks)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(verifier, logger))
	{
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.PUT("/:id", bookingHandler.EditBooking)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
			bookings.POST("/:id/refund", bookingHandler.RefundBooking)
		}

		v1.GET("/availability", bookingHandler.GetAvailability)
		v1.GET("/reports/bookings", bookingHandler.GetBookingReport)

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.GET("/jobs", adminHandler.GetJobStatus)
			admin.POST("/jobs/complete-bookings", adminHandler.CompleteBookings)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop cron service
	logger.Info("Stopping cron service...")
	cronService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

func redisPing(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
