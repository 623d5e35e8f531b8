package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/snapvault/backend/internal/config"
	"github.com/snapvault/backend/internal/handlers"
	"github.com/snapvault/backend/internal/middleware"
	"github.com/snapvault/backend/internal/models"
	"github.com/snapvault/backend/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.New()

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Run migrations
	if err := models.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis
	redisClient := models.InitRedis(cfg)
	defer redisClient.Close()

	// Initialize services
	b2Service := services.NewB2Service(cfg)
	eventLogService := services.NewEventLogService(db)
	uploadService := services.NewUploadService(db, cfg, b2Service, eventLogService)
	imageService := services.NewImageService(db, cfg, b2Service, eventLogService)
	userService := services.NewUserService(db, b2Service)
	authService := services.NewAuthService(db, redisClient, cfg)
	apiKeyService := services.NewAPIKeyService(db)
	domainService := services.NewDomainService(db)
	shareService := services.NewShareService(db, cfg)
	emailService := services.NewEmailService(cfg)
	billingService := services.NewBillingService(db, cfg)
	adminService := services.NewAdminService(db, cfg, eventLogService)
	reconcileService := services.NewReconcileService(db, cfg, b2Service, eventLogService)
	// Attach email service so AuthService and BillingService can send emails
	authService.AttachEmailService(emailService)
	billingService.AttachEmailService(emailService)

	s3Service, err := services.NewS3Service(cfg)
	if err != nil {
		log.Fatalf("Failed to init backup S3 service: %v", err)
	}
	backupService := services.NewBackupService(db, cfg, s3Service)

	// Create admin user if not exists
	if err := adminService.CreateDefaultAdmin(); err != nil {
		log.Printf("Failed to create default admin: %v", err)
	}

	// Event log retention sweep
	go func() {
		for {
			deleted, err := eventLogService.CleanupOlderThan(cfg.EventLogRetentionDays)
			if err != nil {
				log.Printf("Event log cleanup error: %v", err)
			} else if deleted > 0 {
				log.Printf("Event log cleanup: removed %d entries", deleted)
			}
			time.Sleep(cfg.EventLogCleanupInterval)
		}
	}()

	// Reconciliation sweep for orphaned storage objects
	if cfg.ReconcileEnabled {
		go func() {
			// Initial delay to let the server start first
			time.Sleep(1 * time.Minute)
			for {
				removed, err := reconcileService.Sweep(context.Background())
				if err != nil {
					log.Printf("Reconcile sweep error: %v", err)
				} else if removed > 0 {
					log.Printf("Reconcile sweep: removed %d orphaned objects", removed)
				}
				time.Sleep(cfg.ReconcileInterval)
			}
		}()
	}

	// Expired refresh token cleanup
	go func() {
		for {
			if err := authService.CleanupExpiredTokens(); err != nil {
				log.Printf("Token cleanup error: %v", err)
			}
			time.Sleep(1 * time.Hour)
		}
	}()

	// Scheduled database backups
	if cfg.BackupEnabled {
		go func() {
			time.Sleep(5 * time.Minute)
			for {
				if _, err := backupService.RunBackup(context.Background(), "automatic", nil); err != nil {
					log.Printf("Scheduled backup error: %v", err)
				}
				time.Sleep(cfg.BackupInterval)
			}
		}()
	}

	// Setup Gin router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(redisClient, cfg))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	imageHandler := handlers.NewImageHandler(uploadService, imageService, userService)
	publicHandler := handlers.NewPublicHandler(imageService, shareService)
	userHandler := handlers.NewUserHandler(userService, shareService)
	apiKeyHandler := handlers.NewAPIKeyHandler(apiKeyService)
	domainHandler := handlers.NewDomainHandler(domainService)
	billingHandler := handlers.NewBillingHandler(billingService, userService, cfg)
	adminHandler := handlers.NewAdminHandler(adminService, userService, imageService, eventLogService, backupService)

	// Health check outside API group (no /api/v1 prefix)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Setup routes
	api := router.Group("/api/v1")
	{
		// Health check also available under /api/v1/health for compatibility
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		// Catch-all OPTIONS handler for CORS preflight requests
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		// Public routes
		public := api.Group("/public")
		{
			public.GET("/images", publicHandler.ListImages)
			public.GET("/images/:id", publicHandler.GetImage)
			public.GET("/images/:id/qr", publicHandler.GetImageQR)
		}

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/verify-email", authHandler.VerifyEmail)
			auth.POST("/logout", middleware.Auth(authService, apiKeyService), authHandler.Logout)
		}

		// Stripe webhook, authenticated by signature instead of a bearer token
		api.POST("/stripe/webhook", billingHandler.HandleWebhook)

		// Authenticated routes
		user := api.Group("")
		user.Use(middleware.Auth(authService, apiKeyService))
		{
			images := user.Group("/images")
			images.POST("/upload", middleware.UploadRateLimit(redisClient, cfg), imageHandler.Upload)
			images.GET("", imageHandler.List)
			images.GET("/:id", imageHandler.Get)
			images.PATCH("/:id", imageHandler.UpdateMetadata)
			images.PUT("/:id/visibility", imageHandler.UpdateVisibility)
			images.DELETE("/:id", imageHandler.Delete)

			me := user.Group("/me")
			me.GET("", userHandler.GetProfile)
			me.PUT("", userHandler.UpdateProfile)
			me.GET("/usage", userHandler.GetUsage)
			me.GET("/usage/statement.pdf", userHandler.GetUsageStatement)

			keys := user.Group("/api-keys")
			keys.POST("", apiKeyHandler.Create)
			keys.GET("", apiKeyHandler.List)
			keys.DELETE("/:id", apiKeyHandler.Revoke)

			domains := user.Group("/domains")
			domains.POST("", domainHandler.Add)
			domains.GET("", domainHandler.List)
			domains.POST("/:id/verify", domainHandler.Verify)
			domains.DELETE("/:id", domainHandler.Remove)

			billing := user.Group("/billing")
			billing.POST("/checkout", billingHandler.CreateCheckout)
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(authService, apiKeyService))
		admin.Use(middleware.AdminOnly())
		{
			admin.GET("/stats", adminHandler.GetStats)
			admin.GET("/users", adminHandler.ListUsers)
			admin.PUT("/users/:id/active", adminHandler.SetUserActive)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.GET("/images", adminHandler.ListImages)
			admin.GET("/event-logs", adminHandler.ListEventLogs)
			admin.GET("/backups", adminHandler.ListBackups)
			admin.POST("/backups", adminHandler.CreateBackup)
			admin.POST("/backups/sync", adminHandler.SyncBackups)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  120 * time.Second, // 2 min for large image uploads
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
