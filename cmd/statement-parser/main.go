package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"statement-parser/internal/api"
	"statement-parser/internal/api/handlers"
	"statement-parser/internal/service"
	"statement-parser/pkg/config"
	"statement-parser/pkg/logger"
	"statement-parser/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := logger.New(cfg.Logger.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(appLogger)

	appLogger.Info("Starting statement parser",
		zap.String("provider", cfg.Inference.Provider),
		zap.String("default_model", cfg.Inference.DefaultModel),
		zap.String("pdf_backend", cfg.PDF.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)

	open, err := service.NewPDFOpener(cfg.PDF.Backend)
	if err != nil {
		appLogger.Fatal("Failed to select PDF backend", zap.Error(err))
	}
	extractor := service.NewTextExtractor(open, appLogger)

	inferencer, closeInferencer, err := newInferencer(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize inference client", zap.Error(err))
	}
	defer closeInferencer()

	stmtService, err := service.NewStatementService(extractor, inferencer, appMetrics, cfg.Upload.Dir, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize statement service", zap.Error(err))
	}

	stmtHandler := handlers.NewStatementHandler(stmtService, cfg.Inference.DefaultModel, appLogger)
	app := api.SetupRouter(stmtHandler, reg, &cfg.Server, cfg.Inference.DefaultModel, appLogger)

	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}

func newInferencer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.Inferencer, func(), error) {
	switch cfg.Inference.Provider {
	case config.ProviderGigaChat:
		client, err := service.NewGigaChatClient(ctx, &cfg.GigaChat, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close GigaChat client", zap.Error(err))
			}
		}, nil
	default:
		return service.NewOllamaClient(&cfg.Inference, logger), func() {}, nil
	}
}
