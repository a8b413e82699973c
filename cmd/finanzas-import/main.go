package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"finanzas/internal/cli"
	"finanzas/internal/config"
	"finanzas/internal/log"
	gsheet "finanzas/internal/sheets/google"
	"finanzas/internal/storage"
	"finanzas/internal/worker"

	"github.com/spf13/cobra"
)

func main() {
	cli.LoadEnvFile()

	rootCmd := &cobra.Command{
		Use:   "finanzas-import",
		Short: "Copy ledgers from Google Sheets into the local SQLite store",
		Long: "Reads movements and budgets from the configured spreadsheet and appends\n" +
			"the ones missing locally. Each import is announced over AMQP when configured.",
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.Flags().StringSliceP("users", "u", nil, "Users to import (comma-separated, default: DEFAULT_USER)")
	rootCmd.Flags().DurationP("interval", "i", 0, "Repeat the import at this interval until interrupted (0 runs once)")
	rootCmd.Flags().String("budgets-sheet", "Budgets", "Name of the sheet holding category budgets")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	users, _ := cmd.Flags().GetStringSlice("users")
	interval, _ := cmd.Flags().GetDuration("interval")
	budgetsSheet, _ := cmd.Flags().GetString("budgets-sheet")

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)
	if err := checkSheetsConfig(cfg); err != nil {
		return err
	}
	if len(users) == 0 {
		users = []string{cfg.DefaultUser}
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	source, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		MovementsSheet:     cfg.GoogleSheetName,
		BudgetsSheet:       budgetsSheet,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger.WithComponent(log.ComponentSheets).Slog())
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}

	sink, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("initialize SQLite repository: %w", err)
	}
	defer sink.Close()

	amqpClient, err := cli.InitAMQP(cfg, logger)
	if err != nil {
		// Imports still work without notifications; servers pick changes up on TTL expiry.
		logger.Warn("AMQP unavailable, imports will not be announced", log.FieldError, err.Error())
	}
	var publisher worker.Publisher
	if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	w := worker.NewImportWorker(source, sink, publisher, logger)

	if interval <= 0 {
		results, err := w.ImportAll(ctx, users)
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: imported %d, skipped %d, rejected %d, budgets %d\n",
				r.User, r.Imported, r.Skipped, r.Rejected, r.Budgets)
		}
		return err
	}

	if interval < time.Minute {
		return fmt.Errorf("interval %v too short: must be at least 1m", interval)
	}
	logger.Info("Starting periodic import", "users", users, "interval", interval.String())
	if err := w.Run(ctx, users, interval); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Import worker stopped")
	return nil
}

func checkSheetsConfig(cfg *config.Config) error {
	var missing []string
	if cfg.GoogleSpreadsheetID == "" {
		missing = append(missing, "GOOGLE_SPREADSHEET_ID")
	}
	if cfg.GoogleServiceAccountFile == "" {
		missing = append(missing, "GOOGLE_SERVICE_ACCOUNT_FILE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("import requires %v", missing)
	}
	return nil
}
