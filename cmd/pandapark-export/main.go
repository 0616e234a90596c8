package main

import (
	"context"
	"os"
	"time"

	"pandapark/internal/cli"
	"pandapark/internal/dataset"
	"pandapark/internal/export"
	"pandapark/internal/parkdata/memory"
)

// pandapark-export pushes the aggregated daily stats to a Google Sheet.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for export")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	exporter, err := export.New(ctx, export.Options{
		SpreadsheetID:  cfg.GoogleSpreadsheetID,
		SheetName:      cfg.GoogleSheetName,
		CredentialFile: cfg.GoogleCredentialFile,
		CredentialJSON: cfg.GoogleCredentialJSON,
	})
	if err != nil {
		logger.Error("Failed to initialize Sheets exporter", "error", err)
		os.Exit(1)
	}

	store := memory.New(cfg.DatasetPath, dataset.NewCache(cfg.CacheSize, cfg.CacheTTL))
	if err := exporter.Export(ctx, store); err != nil {
		logger.Error("Failed to export stats", "error", err, "dataset", cfg.DatasetPath)
		os.Exit(1)
	}

	logger.Info("Export complete", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
}
