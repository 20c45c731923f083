package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gatepass-backend/internal/cache"
	"gatepass-backend/internal/client"
	"gatepass-backend/internal/config"
	"gatepass-backend/internal/logger"
	"gatepass-backend/internal/metrics"
	"gatepass-backend/internal/repository"
	"gatepass-backend/internal/server"
	"gatepass-backend/internal/service"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db := client.InitMysqlClient(cfg.DatabaseURL)

	requestTimeout := time.Duration(cfg.Polling.RequestTimeoutSecs) * time.Second
	sumupClient := client.NewSumupClient(&cfg.SumUp, requestTimeout)

	var providerClient client.ProviderClient = sumupClient
	if cfg.Polling.Provider == "braintree" {
		providerClient = client.NewBraintreeClient(&cfg.BrainTree)
	}

	var tokenCache cache.TokenCache
	if cfg.Redis.Addr != "" {
		tokenCache = cache.NewRedisCache(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		tokenCache = cache.NewMemoryCache()
	}

	orderRepo := repository.NewOrderRepository(db)
	checkoutRepo := repository.NewCheckoutRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	credentialManager := service.NewCredentialManager(
		sumupClient,
		credentialRepo,
		tokenCache,
		time.Duration(cfg.Polling.TokenMarginSecs)*time.Second,
		log,
	)

	alerter := service.NewWebhookAlerter(cfg.Alerting.WebhookURL, log)
	notifier := service.NewLogNotificationService(log)
	ticketIssuer := service.NewTicketIssuer(ticketRepo)

	finalizer := service.NewOrderFinalizer(
		db,
		orderRepo,
		checkoutRepo,
		ticketIssuer,
		notifier,
		alerter,
		log,
	)

	registry := prometheus.NewRegistry()
	pollingMetrics := metrics.New(registry)

	pollingService := service.NewPollingService(
		checkoutRepo,
		orderRepo,
		credentialManager,
		providerClient,
		finalizer,
		alerter,
		log,
		pollingMetrics,
		service.PollingConfig{
			BatchSize:        cfg.Polling.BatchSize,
			Workers:          cfg.Polling.Workers,
			StuckThreshold:   time.Duration(cfg.Alerting.StuckThresholdMins) * time.Minute,
			PlatformFallback: cfg.Polling.PlatformFallback,
		},
	)

	checkoutService := service.NewCheckoutService(
		db,
		providerClient,
		credentialManager,
		orderRepo,
		checkoutRepo,
		cfg.BaseURL,
		time.Duration(cfg.Polling.MaxPollMinutes)*time.Minute,
		log,
	)

	payeeService := service.NewPayeeService(credentialRepo, credentialManager)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(checkoutService, pollingService, payeeService, registry, cfg.Auth.JWTSecret)

	log.Info("Starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Scheduler loop: one cycle per interval, strictly sequential, so cycles
	// never overlap. A cycle in flight runs to completion on shutdown.
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		interval := time.Duration(cfg.Polling.IntervalSeconds) * time.Second
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info("Payment polling scheduler started", zap.Duration("interval", interval))
		for {
			select {
			case <-ticker.C:
				pollingService.RunCycle(schedulerCtx)
			case <-schedulerCtx.Done():
				return
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("Signal received, starting graceful shutdown...")

	stopScheduler()
	select {
	case <-schedulerDone:
	case <-time.After(30 * time.Second):
		log.Warn("Scheduler did not stop in time")
	}

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error", zap.Error(err))
	}
}
