package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"prize-redemption-system/config"
	"prize-redemption-system/handlers"
	"prize-redemption-system/models"
	"prize-redemption-system/repository"
	"prize-redemption-system/services"
	"prize-redemption-system/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, reading environment variables directly")
	}
	log.SetFormatter(&log.JSONFormatter{})

	cfg, shippingKey, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration error")
	}

	vault, err := services.NewEncryptionVault(shippingKey)
	if err != nil {
		log.WithError(err).Fatal("invalid shipping encryption key")
	}

	// Repositories: Postgres when DATABASE_URL is set, in-memory otherwise
	// (local development).
	var repos *repository.Repositories
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
		if err := db.AutoMigrate(
			&models.Game{},
			&models.Prize{},
			&models.PlayRecord{},
			&models.Nft{},
			&models.RedemptionRecord{},
		); err != nil {
			log.WithError(err).Fatal("failed to migrate database")
		}
		repos = repository.NewGormRepositories(db)
	} else {
		log.Warn("⚠️  DATABASE_URL not set — using in-memory repositories")
		repos = repository.NewInMemoryRepositories()
	}

	// Replay cache: shared via Redis when available, per-instance otherwise.
	var replayCache services.ReplayCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		replayCache = services.NewRedisReplayCache(rdb)
	} else {
		log.Warn("⚠️  REDIS_ADDR not set — replay cache is per-instance only")
		replayCache = services.NewMemoryReplayCache()
	}

	chain := services.NewSolanaChainClient(cfg.SolanaRPCURL, cfg.SignerURL, cfg.ServiceToken)
	carrier := services.NewHTTPCarrierClient(cfg.CarrierAPIURL, cfg.CarrierAPIKey)

	var notifier services.Notifier = services.NopNotifier{}
	if cfg.NotifyURL != "" {
		notifier = services.NewHTTPNotifier(cfg.NotifyURL, cfg.ServiceToken)
	}

	verifier := services.NewSignatureVerifier(replayCache, nil)
	engine := services.NewWeightedDrawEngine()

	redemptionService := services.NewRedemptionService(repos, verifier, vault, chain, carrier, notifier)
	redemptionService.BurnTimeout = cfg.BurnTimeout
	settlementService := services.NewSettlementService(repos, engine, chain)
	webhookService := services.NewWebhookService(repos, vault, carrier, notifier)

	retention := workers.NewRetentionWorker(repos, cfg.RedemptionClaimTimeout)
	if err := retention.Start(); err != nil {
		log.WithError(err).Fatal("failed to start retention worker")
	}
	defer retention.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // claims are small
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.SetupRedemptionRoutes(app, redemptionService, webhookService, repos, cfg.OperatorToken)
	handlers.SetupPlayRoutes(app, settlementService, cfg.ServiceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.WithError(err).Error("server error")
			stop()
		}
	}()

	log.WithField("addr", cfg.ListenAddr).Info("✅ redemption service running")

	<-ctx.Done()
	log.Info("shutting down...")
	if err := app.Shutdown(); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
}
