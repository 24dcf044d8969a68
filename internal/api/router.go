package api

import (
	"errors"

	"statement-parser/internal/api/handlers"
	"statement-parser/pkg/config"
	"statement-parser/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const genericFailureMessage = "Something went wrong while processing your request. Please try again."

func SetupRouter(
	stmtHandler *handlers.StatementHandler,
	gatherer prometheus.Gatherer,
	cfg *config.ServerConfig,
	defaultModel string,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BodyLimit:    cfg.BodyLimit,
		ErrorHandler: errorHandler(defaultModel, appLogger),
	})

	// Middleware
	app.Use(middleware.RequestLogger(appLogger))
	app.Use(recover.New())

	app.Get("/", stmtHandler.Index)
	app.Post("/", stmtHandler.Upload)
	app.Post("/download", stmtHandler.Download)
	app.Post("/download/xlsx", stmtHandler.DownloadXLSX)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return app
}

// errorHandler renders client errors with their message and everything
// else as one generic failure page.
func errorHandler(defaultModel string, logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
			return handlers.RenderError(c, fe.Code, fe.Message, defaultModel)
		}

		var re *handlers.RequestError
		if errors.As(err, &re) {
			logger.Error("Unexpected error in web route",
				zap.String("op", re.Op),
				zap.String("request_id", middleware.RequestID(c)),
				zap.Error(re.Err),
			)
		} else {
			logger.Error("Unexpected error in web route",
				zap.String("request_id", middleware.RequestID(c)),
				zap.Error(err),
			)
		}

		if renderErr := handlers.RenderError(c, fiber.StatusInternalServerError, genericFailureMessage, defaultModel); renderErr != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(genericFailureMessage)
		}
		return nil
	}
}
