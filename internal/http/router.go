package http

import (
	"time"

	"github.com/giftlink/backend/internal/config"
	"github.com/giftlink/backend/internal/http/handlers"
	"github.com/giftlink/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	giftHandler *handlers.GiftHandler,
	feeHandler *handlers.FeeHandler,
	creditHandler *handlers.CreditHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Fee quotes and claims are public: quoting needs no account, claiming
	// proves wallet control with a connect proof instead of a session.
	api.Post("/fees/quote", feeHandler.Quote)
	api.Get("/gifts/:id/status", giftHandler.PollStatus)
	api.Post("/gifts/:id/claim", giftHandler.Claim)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	protected.Post("/gifts", giftHandler.CreateSend)
	protected.Post("/gifts/:id/complete", giftHandler.CompleteSend)
	protected.Post("/gifts/:id/swaps/:swapId/confirm", giftHandler.ConfirmSwapSigned)

	protected.Get("/me/credit", creditHandler.GetActive)
	protected.Post("/me/credit/issue", creditHandler.Issue)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
