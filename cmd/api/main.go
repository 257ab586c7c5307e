package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stagecast/internal/core/services"
	httphandlers "stagecast/internal/handlers/http"
	"stagecast/internal/infrastructure/broadcast"
	"stagecast/internal/infrastructure/middleware"
	"stagecast/internal/infrastructure/monitoring"
	repositories "stagecast/internal/infrastructure/repositories"
	"stagecast/internal/infrastructure/repositories/memory"
	"stagecast/pkg/config"
	"stagecast/pkg/logger"
	"stagecast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/stagecast/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracingCfg := tracing.DefaultConfig()
	tracingCfg.Enabled = cfg.Tracing.Enabled
	tracingCfg.JaegerURL = cfg.Tracing.JaegerURL
	tracingCfg.SampleRate = cfg.Tracing.SampleRate
	tp, err := tracing.Init(tracingCfg)
	if err != nil {
		log.Warnw("failed to initialize tracing", "error", err)
	} else {
		defer tp.Shutdown(context.Background())
	}

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	streamRepo := repoFactory.CreateStreamRepository()
	peekInRepo := repoFactory.CreatePeekInRepository()
	presence := repoFactory.CreatePresenceDirectory()

	// Collaborator providers. These back onto the platform's user, billing
	// and chat systems; the in-process implementations stand in until those
	// integrations are configured.
	balances := memory.NewMemoryBalanceProvider()
	performers := memory.NewMemoryPerformerProvider()
	blocks := memory.NewMemoryBlockListProvider()
	purchases := memory.NewMemoryPurchaseVerifier()
	conversations := memory.NewMemoryConversationBridge()

	// Media server client
	provisioner := broadcast.NewClient(
		cfg.Broadcast.BaseURL,
		cfg.Broadcast.APIKey,
		cfg.Broadcast.RequestTimeout,
		log,
	)
	metrics := monitoring.NewPrometheusCollector()
	provisioner.OnCall(metrics.RecordProvisionerCall)

	// Initialize services
	gate := services.NewAuthorizationGate(blocks)
	sessionService := services.NewSessionService(
		streamRepo,
		presence,
		conversations,
		performers,
		provisioner,
		gate,
		cfg.Broadcast.WebhookBaseURL,
		cfg.Broadcast.JoinGraceWindow,
		log,
	)
	peekInService := services.NewPeekInService(peekInRepo, streamRepo, performers, purchases, log)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	// Initialize HTTP handlers
	sessionHandler := httphandlers.NewSessionHandler(sessionService, peekInService, balances, log)
	webhookHandler := httphandlers.NewWebhookHandler(streamRepo, sessionService, log)
	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	sessionHandler.SetupRoutes(
		router,
		middleware.AuthMiddleware(authService),
		middleware.OptionalAuthMiddleware(authService),
		middleware.PerformerOnlyMiddleware(),
	)
	webhookHandler.SetupRoutes(router)
	authHandler.SetupRoutes(router)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	// Readiness endpoint
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("repositories", func(ctx context.Context) (bool, error) {
		if err := repoFactory.HealthCheck(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, 2*time.Second)

	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := 200
		if status.Status != "healthy" {
			code = 503
		}
		c.JSON(code, status)
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Stagecast API server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down Stagecast API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("Stagecast API server stopped")
}
