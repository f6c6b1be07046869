package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pilltick/backend/internal/clock"
	"github.com/pilltick/backend/internal/config"
	"github.com/pilltick/backend/internal/events"
	"github.com/pilltick/backend/internal/friends"
	"github.com/pilltick/backend/internal/handler"
	"github.com/pilltick/backend/internal/middleware"
	"github.com/pilltick/backend/internal/notify"
	"github.com/pilltick/backend/internal/repository"
	"github.com/pilltick/backend/internal/scheduler"
	"github.com/pilltick/backend/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize Zap logger
	var logger *zap.Logger
	if cfg.Server.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
	)

	// Initialize database connection pool with pgx
	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Test database connection
	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Successfully connected to database")

	clk := clock.System{}

	// Initialize repositories
	medicationRepo := repository.NewMedicationRepository(pool, logger)
	doseLogRepo := repository.NewDoseLogRepository(pool, logger)
	retryRepo := repository.NewRetryRepository(pool, logger)
	friendshipRepo := repository.NewFriendshipRepository(pool, logger)

	// Initialize event buses
	doseBus := events.NewBus[events.DoseLogged]()
	medicationBus := events.NewBus[events.MedicationChanged]()

	// Initialize notification gateway. The delivery callback is wrapped by
	// the retry controller, which is constructed right after; delivery only
	// starts once Run is called below.
	deliver := func(ctx context.Context, booking notify.Booking) {
		logger.Info("notification fired",
			zap.String("booking_id", booking.ID),
			zap.String("title", booking.Payload.Title),
			zap.Strings("channels", booking.Payload.Channels),
			zap.Bool("critical", booking.Payload.Critical),
		)
	}
	var retryController *scheduler.RetryController
	gateway := notify.NewHeapGateway(func(ctx context.Context, booking notify.Booking) {
		retryController.FilterDelivery(deliver)(ctx, booking)
	}, clk, cfg.Reminder.TickInterval, logger)

	retryController = scheduler.NewRetryController(
		retryRepo,
		gateway,
		medicationRepo,
		cfg.Reminder.RetryInterval,
		clk,
		logger,
	)
	retryController.SubscribeDoseLogged(doseBus)
	retryController.SubscribeMedicationChanged(medicationBus)

	reminderScheduler := scheduler.NewReminderScheduler(
		gateway,
		retryController,
		clk,
		cfg.Reminder.ScheduleWindow,
		logger,
	)

	// Initialize services
	medicationService := service.NewMedicationService(
		medicationRepo,
		doseLogRepo,
		reminderScheduler,
		medicationBus,
		clk,
		logger,
	)
	doseLogService := service.NewDoseLogService(doseLogRepo, medicationRepo, doseBus, clk, logger)
	reconcileService := service.NewReconcileService(medicationRepo, doseLogRepo, clk, cfg.Reminder.ReconcileHorizon, logger)
	adherenceService := service.NewAdherenceService(doseLogRepo, clk, logger)

	// Initialize friend-request processing
	authenticator := friends.NewAuthenticator([]byte(cfg.Auth.TokenKey))
	friendService := friends.NewService(friendshipRepo, gateway, clk, logger)

	// Initialize handlers
	medicationHandler := handler.NewMedicationHandler(medicationService, retryRepo, logger)
	doseHandler := handler.NewDoseHandler(reconcileService, doseLogService, logger)
	adherenceHandler := handler.NewAdherenceHandler(adherenceService, logger)
	friendHandler := handler.NewFriendHandler(friendService, authenticator, logger)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Configure appropriately for production
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add request ID middleware
	r.Use(middleware.RequestIDMiddleware())

	// Add request logging middleware
	r.Use(middleware.RequestLoggingMiddleware(logger))

	// Add error logging middleware
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	// Register routes
	r.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			logger.Error("health check failed: database unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "connected",
			"service":  "pilltick-backend",
			"version":  "1.0.0",
		})
	})

	v1 := r.Group("/api/v1")
	{
		medications := v1.Group("/medications")
		{
			medications.POST("", medicationHandler.Create)
			medications.GET("", medicationHandler.List)
			medications.GET("/:id", medicationHandler.Get)
			medications.PUT("/:id", medicationHandler.Update)
			medications.DELETE("/:id", medicationHandler.Delete)
			medications.GET("/:id/retries", medicationHandler.ListRetries)
		}

		doses := v1.Group("/doses")
		{
			doses.GET("/today", doseHandler.Today)
			doses.POST("/log", doseHandler.Log)
			doses.POST("/undo/:medicationId", doseHandler.Undo)
		}

		v1.GET("/adherence/stats", adherenceHandler.Stats)
	}

	r.POST("/process-friend-request", friendHandler.ProcessFriendRequest)

	// Start the notification delivery loop
	gatewayCtx, stopGateway := context.WithCancel(context.Background())
	defer stopGateway()
	go gateway.Run(gatewayCtx)

	// Rebuild bookings for every active medication so reminders survive a
	// process restart
	if err := medicationService.RescheduleAll(context.Background()); err != nil {
		logger.Error("failed to reschedule medications at startup", zap.Error(err))
	}

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	stopGateway()
	pool.Close()

	logger.Info("Server exited")
}
