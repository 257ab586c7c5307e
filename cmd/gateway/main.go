package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stagecast/internal/core/services"
	"stagecast/internal/infrastructure/broadcast"
	"stagecast/internal/infrastructure/distributed"
	"stagecast/internal/infrastructure/gateway"
	"stagecast/internal/infrastructure/monitoring"
	repositories "stagecast/internal/infrastructure/repositories"
	"stagecast/internal/infrastructure/repositories/memory"
	"stagecast/pkg/config"
	"stagecast/pkg/logger"
	"stagecast/pkg/utils"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
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
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	streamRepo := repoFactory.CreateStreamRepository()
	peekInRepo := repoFactory.CreatePeekInRepository()
	presence := repoFactory.CreatePresenceDirectory()

	balances := memory.NewMemoryBalanceProvider()
	performers := memory.NewMemoryPerformerProvider()
	blocks := memory.NewMemoryBlockListProvider()
	ranks := memory.NewMemoryRankProvider()
	stats := memory.NewMemoryStatsCollector()
	purchases := memory.NewMemoryPurchaseVerifier()
	conversations := memory.NewMemoryConversationBridge()

	provisioner := broadcast.NewClient(
		cfg.Broadcast.BaseURL,
		cfg.Broadcast.APIKey,
		cfg.Broadcast.RequestTimeout,
		log,
	)

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

	var billing *services.BillingMeter
	if cfg.Billing.Enabled {
		billing = services.NewBillingMeter(balances, cfg.Billing.ChargeInterval, log)
	}

	metrics := monitoring.NewPrometheusCollector()
	provisioner.OnCall(metrics.RecordProvisionerCall)

	// Cross-node room fan-out when Redis is available; single-node otherwise.
	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()

	var bus *distributed.RoomEventBus
	if client := repoFactory.RedisClient(); client != nil {
		bus = distributed.NewRoomEventBus(client, utils.GenerateConnectionID(), log)
		defer bus.Close()
	}

	var hub *gateway.Hub
	if bus != nil {
		hub = gateway.NewHub(bus, log)
		go func() {
			if err := bus.Subscribe(busCtx, hub.DeliverRemote); err != nil && busCtx.Err() == nil {
				log.Errorw("room event bus subscription ended", "error", err)
			}
		}()
	} else {
		hub = gateway.NewHub(nil, log)
	}

	server := gateway.NewServer(
		sessionService,
		peekInService,
		presence,
		performers,
		ranks,
		stats,
		conversations,
		authService,
		billing,
		hub,
		metrics,
		log,
	)
	server.SetPingInterval(cfg.Gateway.PingInterval)
	server.SetPongTimeout(cfg.Gateway.PongTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWebSocket)
	mux.HandleFunc("/health", server.HealthCheck)
	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{
		Addr:    cfg.Gateway.Address,
		Handler: mux,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Stagecast gateway on %s", cfg.Gateway.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Gateway failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down Stagecast gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Gateway.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during gateway shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing gateway", "error", closeErr)
		}
	} else {
		log.Info("Gateway shutdown gracefully")
	}

	log.Info("Stagecast gateway stopped")
}
