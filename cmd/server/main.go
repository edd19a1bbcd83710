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

	"marketplace-service/config"
	"marketplace-service/internal/api"
	"marketplace-service/internal/broker"
	"marketplace-service/internal/pricing"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/restclient"
	"marketplace-service/internal/service"
	"marketplace-service/internal/session"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"
	"marketplace-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting marketplace service")

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	rates, err := pricing.ParseRates(cfg.Pricing.FeePercent, cfg.Pricing.TaxPercent)
	if err != nil {
		log.Fatalf("Invalid pricing configuration: %v", err)
	}
	calc := pricing.NewCalculator(rates)

	var (
		repo     repository.Repository
		pingRepo func(ctx context.Context) error
	)
	if cfg.Backend.Hosted() {
		db, err := store.NewStore(cfg.Backend.HostedDatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.Migrate(context.Background()); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		repo = db
		pingRepo = db.GetDB().PingContext
		logger.Info("Using hosted backend")
	} else {
		rest := restclient.New(cfg.Backend.RESTBaseURL, cfg.Backend.RESTTimeout)
		rest.SetServiceToken(cfg.Backend.RESTServiceToken)
		repo = rest
		logger.Info("Using REST backend", zap.String("base_url", cfg.Backend.RESTBaseURL))
	}
	defer repo.Close()

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	logger.Info("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer, cfg.Kafka.TopicOrder, cfg.Kafka.TopicListing)

	promoService := service.NewPromoService(repo, nil)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Listings:       repo,
		Orders:         repo,
		Promos:         promoService,
		Calculator:     calc,
		Idempotency:    redisClient,
		Publisher:      eventPublisher,
		IdempotencyTTL: cfg.Session.IdempotencyTTL,
	})
	listingService := service.NewListingService(service.ListingDeps{
		Listings:   repo,
		Categories: repo,
		Wizards:    redisClient,
		Publisher:  eventPublisher,
		Calculator: calc,
		WizardTTL:  cfg.Session.WizardTTL,
	})
	payoutService := service.NewPayoutService(repo, redisClient, cfg.Session.IdempotencyTTL)
	accountService := service.NewAccountService(repo)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	orderConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	payoutWorker := worker.NewPayoutWorker(orderConsumer, payoutService)
	go func() {
		if err := payoutWorker.Start(workerCtx); err != nil {
			logger.Error("Payout worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Sessions: session.NewManager(redisClient, cfg.Session.SessionTTL),
		Checkout: checkoutService,
		Promos:   promoService,
		Listings: listingService,
		Payouts:  payoutService,
		Accounts: accountService,
		Ready: func(ctx context.Context) error {
			if err := redisClient.GetClient().Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			if pingRepo != nil {
				if err := pingRepo(ctx); err != nil {
					return fmt.Errorf("database: %w", err)
				}
			}
			return nil
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := payoutWorker.Stop(); err != nil {
		logger.Error("Failed to stop payout worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
