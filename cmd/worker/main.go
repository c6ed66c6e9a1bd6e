package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giftlink/backend/internal/clients"
	"github.com/giftlink/backend/internal/config"
	"github.com/giftlink/backend/internal/custody"
	"github.com/giftlink/backend/internal/db"
	"github.com/giftlink/backend/internal/events"
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

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	vault, err := custody.NewVault(cfg.EscrowEncryptionKey)
	if err != nil {
		log.Fatal("failed to initialise custody vault", zap.Error(err))
	}
	chain, err := ton.Connect(ctx, cfg)
	if err != nil {
		log.Fatal("failed to connect to TON", zap.Error(err))
	}

	// Repos
	giftRepo := repositories.NewGiftRepo(pool)
	assetRepo := repositories.NewAssetRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	creditRepo := repositories.NewCreditRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	notifyClient := clients.NewNotifyClient(cfg.NotifyURL, log)
	refundService := services.NewRefundService(cfg, vault, chain, giftRepo, assetRepo, escrowRepo, auditRepo, notifyClient, publisher, log)
	creditService := services.NewCreditService(cfg, creditRepo, log)

	// Health endpoint so orchestration can probe the worker
	health := fiber.New(fiber.Config{DisableStartupMessage: true})
	health.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	go func() {
		if err := health.Listen(fmt.Sprintf(":%s", cfg.WorkerPort)); err != nil {
			log.Error("health server error", zap.Error(err))
		}
	}()

	log.Info("worker started",
		zap.Duration("refund_interval", cfg.RefundInterval),
		zap.Duration("credit_sweep_interval", cfg.CreditSweepInterval))

	refundTicker := time.NewTicker(cfg.RefundInterval)
	creditTicker := time.NewTicker(cfg.CreditSweepInterval)
	startupTimer := time.NewTimer(cfg.RefundStartupDelay)
	defer refundTicker.Stop()
	defer creditTicker.Stop()
	defer startupTimer.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-startupTimer.C:
			// one sweep shortly after boot catches gifts that expired
			// while no worker was running
			runExpirySweep(ctx, refundService, log)
		case <-refundTicker.C:
			runExpirySweep(ctx, refundService, log)
		case <-creditTicker.C:
			if _, err := creditService.ExpireSweep(ctx); err != nil {
				log.Error("credit sweep failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			_ = health.Shutdown()
			return
		case <-ctx.Done():
			_ = health.Shutdown()
			return
		}
	}
}

func runExpirySweep(ctx context.Context, refundService *services.RefundService, log *zap.Logger) {
	result, err := refundService.RunExpirySweep(ctx)
	if err != nil {
		log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if result.Total > 0 {
		log.Info("expiry sweep",
			zap.Int("total", result.Total),
			zap.Int("success", result.Success),
			zap.Int("failed", result.Failed))
	}
}
