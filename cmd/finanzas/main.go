package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/backend"
	"finanzas/internal/cache"
	"finanzas/internal/cli"
	apphttp "finanzas/internal/http"
	"finanzas/internal/log"
	"finanzas/internal/marketdata"
	"finanzas/internal/metrics"
	"finanzas/internal/middleware/security"
	"finanzas/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	logger.Info("Starting finanzas", "port", cfg.Port, "backend", cfg.DataBackend)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	store, err := backend.NewFactory(logger.Slog()).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}
	defer store.Close()

	if cfg.MarketDataAPIKey == "" {
		logger.Warn("MARKET_DATA_API_KEY not set, market data requests will likely be refused")
	}
	prices := marketdata.NewClient(cfg.MarketDataURL, cfg.MarketDataAPIKey,
		marketdata.WithLogger(logger))

	m := metrics.New()
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(m),
		services.WithSummaryCache(cfg.SummaryCacheSize, cfg.SummaryCacheTTL),
		services.WithSeriesCache(cache.NewSeriesCache(256, cfg.PriceCacheTTL)),
	}

	amqpClient, err := cli.InitAMQP(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	if amqpClient != nil {
		defer amqpClient.Close()
		opts = append(opts, services.WithPublisher(amqpClient))
	}

	svc := services.NewAnalyticsService(store.Store, prices, opts...)

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	for _, c := range svc.Caches() {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	if amqpClient != nil {
		go consumeLedgerChanges(ctx, amqpClient, svc, logger)
	}

	detector, err := security.NewDetector(cfg.TrustedProxies...)
	if err != nil {
		cli.Fatal(logger, "Invalid trusted proxies", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		Metrics:            m,
		Detector:           detector,
		WriteRatePerMinute: cfg.WriteRatePerMinute,
		DefaultUser:        cfg.DefaultUser,
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err.Error())
	}
	logger.Info("Server stopped gracefully")
}

// consumeLedgerChanges drops cached summaries when another instance or an
// import changes a ledger. It returns when ctx is cancelled.
func consumeLedgerChanges(ctx context.Context, client *amqp.Client, svc *services.AnalyticsService, logger *log.Logger) {
	err := client.ConsumeLedgerChanged(ctx, svc.HandleLedgerChanged)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Ledger change consumption stopped", log.FieldError, err.Error())
	}
}
