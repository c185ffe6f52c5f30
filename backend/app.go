// Package backend is the HTTP API of the mini-app.
package backend

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/nanopets/giftbot/backend/handlers"
	"github.com/nanopets/giftbot/backend/middleware"
	"github.com/nanopets/giftbot/backend/utils"
	"github.com/nanopets/giftbot/internal/gateways/metrics"
)

type Options struct {
	AllowOrigins string
}

// NewApp builds the fiber application with every route mounted.
func NewApp(webApp *handlers.WebApp, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "giftbot API",
		ServerHeader:          "giftbot",
		ErrorHandler:          middleware.CustomErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.SecurityHeaders())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(middleware.CORS(opts.AllowOrigins))
	app.Use(middleware.LoggingMiddleware())

	setupRoutes(app, webApp)
	return app
}

func setupRoutes(app *fiber.App, webApp *handlers.WebApp) {
	app.Get("/health", handlers.HealthCheck(webApp))
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api", middleware.AuthRequired(webApp))

	dailyGroup := api.Group("/daily")
	dailyGroup.Post("/start", handlers.DailyStart(webApp))
	dailyGroup.Post("/generate", handlers.DailyGenerate(webApp))
	dailyGroup.Post("/choose", handlers.DailyChoose(webApp))

	fusionGroup := api.Group("/fusion")
	fusionGroup.Post("/start", handlers.FusionStart(webApp))
	fusionGroup.Post("/complete", handlers.FusionComplete(webApp))

	api.Get("/gifts", handlers.GiftsList(webApp))
	api.Get("/gifts/:id", handlers.GiftDetail(webApp))
	api.Get("/gift/:id", handlers.GiftDetail(webApp))

	api.Get("/user/style", handlers.StyleGet(webApp))
	api.Post("/user/style", handlers.StyleSet(webApp))

	app.Use(func(c *fiber.Ctx) error {
		slog.Warn("No route matched for request",
			slog.String("type", "http"),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()))
		return utils.SendError(c, fiber.StatusNotFound, "NOT_FOUND", "The requested endpoint does not exist", nil)
	})
}
