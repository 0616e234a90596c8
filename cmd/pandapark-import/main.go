package main

import (
	"context"
	"flag"
	"os"
	"time"

	"pandapark/internal/cli"
	"pandapark/internal/dataset"
)

// pandapark-import loads a JSON dataset and imports it into the SQLite
// database, replacing whatever was imported before.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	datasetPath := flag.String("dataset", cfg.DatasetPath, "path to the JSON dataset")
	dbPath := flag.String("db", cfg.SQLiteDBPath, "path to the SQLite database")
	flag.Parse()

	snap, err := dataset.Load(*datasetPath)
	if err != nil {
		logger.Error("Failed to load dataset", "error", err, "path", *datasetPath)
		os.Exit(1)
	}
	logger.Info("Dataset loaded", "path", *datasetPath, "transactions", snap.TotalCount())

	repo := cli.InitSQLite(logger, *dbPath)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := repo.Import(ctx, snap); err != nil {
		logger.Error("Failed to import dataset", "error", err, "db_path", *dbPath)
		os.Exit(1)
	}

	logger.Info("Import complete", "db_path", *dbPath, "transactions", snap.TotalCount())
}
