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

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/invoice-service/internal/api"
	"github.com/hypernova-labs/invoice-service/internal/config"
	"github.com/hypernova-labs/invoice-service/internal/database"
	"github.com/hypernova-labs/invoice-service/internal/email"
	"github.com/hypernova-labs/invoice-service/internal/services"
	"github.com/hypernova-labs/invoice-service/internal/workflows"
	"github.com/sirupsen/logrus"
)

func main() {
	// Cargar configuración
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger := setupLogger(cfg)
	logger.Info("Starting invoice service...")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Conectar a la base de datos
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Fatalf("Error applying schema: %v", err)
		}
		logger.Info("Database schema up to date")
	}

	// Redis es opcional: sin él no hay rate limiting
	var limiter *api.RateLimiter
	redis, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Warnf("Error connecting to Redis, rate limiting disabled: %v", err)
	} else {
		defer redis.Close()
		limiter = api.NewRateLimiter(redis, cfg.RateLimit, logger)
	}

	files, err := setupFileStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Error initializing file storage: %v", err)
	}

	renderer := services.NewChromeRenderer(cfg.PDF, logger)
	documents := services.NewDocumentService(renderer, files, logger)
	invoiceService := services.NewInvoiceService(database.NewInvoiceRepository(db, logger), documents, logger)
	authService := services.NewAuthService(database.NewUserRepository(db, logger), cfg.JWT, logger)

	apiHandler := api.NewAPI(invoiceService, authService, logger)
	if limiter != nil {
		apiHandler.WithRateLimiter(limiter)
	}

	if cfg.Email.ResendAPIKey != "" {
		apiHandler.WithMailer(email.NewResendService(cfg.Email.ResendAPIKey, cfg.Email.FromAddress, logger))
		logger.Info("Resend service initialized successfully")
	} else {
		logger.Warn("Resend API key not provided, email service will not be available")
	}

	var inngestClient *workflows.InngestClient
	if cfg.InngestEnabled() {
		inngestClient, err = workflows.NewInngestClient(cfg, logger)
		if err != nil {
			logger.Warnf("Error initializing Inngest client: %v", err)
			inngestClient = nil
		} else if err := inngestClient.RegisterWorkflows(invoiceService); err != nil {
			logger.Warnf("Error registering workflows: %v", err)
			inngestClient = nil
		} else {
			apiHandler.WithQueue(inngestClient)
		}
	} else {
		logger.Warn("Inngest credentials not provided, PDF regeneration runs inline")
	}

	router := setupRouter(apiHandler, inngestClient, db, redis, cfg, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PDF.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Canal para señales de terminación
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger configura el logger según la configuración
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// setupFileStore elige dónde se guardan los PDF: disco local o un bucket S3
func setupFileStore(cfg *config.Config, logger *logrus.Logger) (services.FileStore, error) {
	if !cfg.UsesS3() {
		store, err := services.NewLocalFileStore(cfg.Storage.Path, cfg.Server.BaseURL)
		if err != nil {
			return nil, err
		}
		logger.WithField("dir", store.Dir()).Info("Storing PDFs on local disk")
		return store, nil
	}

	objects, err := database.NewObjectStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Warnf("Object storage bucket check failed: %v", err)
	} else {
		logger.WithField("bucket", objects.Bucket()).Info("Object storage connection healthy")
	}

	return services.NewS3FileStore(objects, cfg.Storage.PublicURL), nil
}

// setupRouter configura el router principal
func setupRouter(apiHandler *api.API, inngestClient *workflows.InngestClient, db *database.DB, redis *database.Redis, cfg *config.Config, logger *logrus.Logger) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Middleware de CORS para desarrollo
	if cfg.IsDevelopment() {
		router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}

			c.Next()
		})
	}

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unavailable"
		}
		if logger.IsLevelEnabled(logrus.DebugLevel) {
			db.LogStats(logger)
		}

		// Redis solo alimenta el rate limiter, su caída no marca el servicio como caído
		cacheStatus := "disabled"
		if redis != nil {
			cacheStatus = "ok"
			if err := redis.HealthCheck(c.Request.Context()); err != nil {
				cacheStatus = "unavailable"
			}
		}

		c.JSON(status, gin.H{
			"status":    dbStatus,
			"redis":     cacheStatus,
			"timestamp": time.Now().UTC(),
			"service":   "invoice-service",
			"version":   "1.0.0",
		})
	})

	// PDFs generados en disco local
	if !cfg.UsesS3() {
		router.Static("/uploads", cfg.Storage.Path)
	}

	if inngestClient != nil {
		router.Any("/api/inngest", gin.WrapH(inngestClient.Handler()))
	}

	apiHandler.RegisterRoutes(router)

	return router
}
