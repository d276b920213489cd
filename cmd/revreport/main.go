package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"revreport/internal/amqp"
	"revreport/internal/config"
	"revreport/internal/export"
	applog "revreport/internal/log"
	"revreport/internal/services"
	"revreport/internal/storage"
)

func main() {
	listRuns := flag.Int("list-runs", 0, "print the N most recent persisted runs and exit (requires SQLITE_DB_PATH)")
	flag.Parse()

	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := applog.New(applog.Config{Level: logLevel, Component: applog.ComponentApp})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	// Cancel the run on SIGINT/SIGTERM so a partial report never lands in
	// the warehouse or on the wire.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run warehouse (optional)
	var store services.RunStore
	if cfg.SQLiteDBPath != "" {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, applog.FieldPath, cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		store = repo
		logger.Info("Run warehouse enabled", applog.FieldPath, cfg.SQLiteDBPath)

		if *listRuns > 0 {
			if err := printRuns(ctx, repo, *listRuns); err != nil {
				logger.Error("Failed to list runs", applog.FieldError, err)
				os.Exit(1)
			}
			return
		}
	}
	if *listRuns > 0 {
		logger.Error("Cannot list runs without SQLITE_DB_PATH")
		os.Exit(1)
	}

	// Spreadsheet export (optional)
	var exporter services.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsExporter, err := export.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", applog.FieldError, err)
			os.Exit(1)
		}
		exporter = sheetsExporter
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	// Run-completed notification (optional)
	var notifier services.Notifier
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		notifier = amqpClient
		logger.Info("AMQP notifications enabled", "exchange", cfg.AMQPExchange)
	}

	svc := services.NewReportService(cfg, logger, exporter, store, notifier)
	result, err := svc.RunToFile(ctx)
	if err != nil {
		logger.Error("Report run failed", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Done",
		applog.FieldRunID, result.RunID,
		applog.FieldDuration, result.Elapsed,
		"issues", len(result.Issues))
}

func printRuns(ctx context.Context, repo *storage.SQLiteRepository, limit int) error {
	runs, err := repo.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No persisted runs.")
		return nil
	}
	fmt.Printf("%-36s  %-10s  %-12s  %6s  %-10s  %s\n",
		"RUN ID", "VARIANT", "REVENUE", "TXNS", "BEST", "CREATED")
	for _, r := range runs {
		fmt.Printf("%-36s  %-10s  %-12s  %6d  %-10s  %s\n",
			r.ID, r.Variant, r.TotalRevenue, r.TransactionCount, r.BestPeriod,
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
