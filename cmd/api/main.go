package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/giftlink/backend/internal/clients"
	"github.com/giftlink/backend/internal/config"
	"github.com/giftlink/backend/internal/custody"
	"github.com/giftlink/backend/internal/db"
	"github.com/giftlink/backend/internal/events"
	apphttp "github.com/giftlink/backend/internal/http"
	"github.com/giftlink/backend/internal/http/handlers"
	"github.com/giftlink/backend/internal/repositories"
	"github.com/giftlink/backend/internal/services"
	"github.com/giftlink/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if err := cfg.Validate(log); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Custody + chain
	vault, err := custody.NewVault(cfg.EscrowEncryptionKey)
	if err != nil {
		log.Fatal("failed to initialise custody vault", zap.Error(err))
	}
	chain, err := ton.Connect(ctx, cfg)
	if err != nil {
		log.Fatal("failed to connect to TON", zap.Error(err))
	}

	// Repositories
	giftRepo := repositories.NewGiftRepo(pool)
	assetRepo := repositories.NewAssetRepo(pool)
	bundleRepo := repositories.NewBundleRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	swapRepo := repositories.NewSwapRepo(pool)
	creditRepo := repositories.NewCreditRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Collaborator clients
	aggClient := clients.NewAggregatorClient(cfg.AggregatorURL, log)
	priceClient := clients.NewPriceClient(cfg.PriceOracleURL, log)
	notifyClient := clients.NewNotifyClient(cfg.NotifyURL, log)

	// Services
	feeService := services.NewFeeService(cfg, assetRepo, bundleRepo, priceClient, log)
	creditService := services.NewCreditService(cfg, creditRepo, log)
	swapService := services.NewSwapService(cfg, vault, chain, assetRepo, escrowRepo, swapRepo, giftRepo, aggClient, publisher, log)
	giftService := services.NewGiftService(cfg, vault, chain, giftRepo, assetRepo, bundleRepo, escrowRepo, swapRepo, auditRepo,
		swapService, creditService, priceClient, notifyClient, rdb, publisher, log)

	// Handlers
	giftHandler := handlers.NewGiftHandler(giftService, log)
	feeHandler := handlers.NewFeeHandler(feeService, log)
	creditHandler := handlers.NewCreditHandler(creditService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, giftHandler, feeHandler, creditHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
