// Package cli provides common CLI initialization utilities shared by
// cmd/finanzas and cmd/finanzas-import.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"finanzas/internal/amqp"
	"finanzas/internal/config"
	"finanzas/internal/log"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// It exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// SetupLogger builds the process logger from the configured level and
// installs it as the slog default. LOG_FORMAT=json switches the encoding.
func SetupLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	if f := os.Getenv("LOG_FORMAT"); f != "" {
		lc.Format = f
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// Fatal logs err and exits.
func Fatal(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err.Error()}, args...)...)
	os.Exit(1)
}

// InitAMQP dials the broker when configured. It returns nil when AMQP is
// disabled so callers can run without notifications.
func InitAMQP(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled, ledger change notifications off")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		logger.WithComponent(log.ComponentAMQP).Slog())
	if err != nil {
		return nil, err
	}
	logger.Info("AMQP client connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
