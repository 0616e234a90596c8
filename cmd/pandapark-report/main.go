package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"pandapark/internal/cli"
	"pandapark/internal/core"
	"pandapark/internal/dataset"
	"pandapark/internal/parkdata/memory"
)

// pandapark-report prints the aggregate panels for a dataset to stdout.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	datasetPath := flag.String("dataset", cfg.DatasetPath, "path to the JSON dataset")
	method := flag.String("payment-method", core.MethodAll, "payment method filter for the transaction list")
	listRows := flag.Bool("list", false, "print the filtered transaction list")
	flag.Parse()

	store := memory.New(*datasetPath, dataset.NewCache(cfg.CacheSize, cfg.CacheTTL))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	overview, err := store.Overview(ctx)
	if err != nil {
		logger.Error("Failed to load dataset", "error", err, "path", *datasetPath)
		os.Exit(1)
	}

	fmt.Printf("Panda Park — %s\n\n", *datasetPath)
	fmt.Printf("Total transactions: %d\n", overview.TotalTransactions)
	if overview.LatestDay.Date != "" {
		fmt.Printf("Latest day:         %s (%d transactions, %+d vs previous)\n",
			overview.LatestDay.Date, overview.LatestDay.Count, overview.LatestDay.Delta)
	}

	counts, err := store.DailyCounts(ctx)
	if err != nil {
		logger.Error("Failed to compute daily counts", "error", err)
		os.Exit(1)
	}
	durations, err := store.DailyAverageDuration(ctx)
	if err != nil {
		logger.Error("Failed to compute daily durations", "error", err)
		os.Exit(1)
	}
	avgByDate := make(map[string]float64, len(durations))
	for _, d := range durations {
		avgByDate[d.Date] = d.AvgMinutes
	}

	fmt.Println("\nDaily transactions:")
	for _, c := range counts {
		fmt.Printf("  %s  %4d  avg %.1f min\n", c.Date, c.Count, avgByDate[c.Date])
	}

	methods, err := store.PaymentMethodCounts(ctx)
	if err != nil {
		logger.Error("Failed to compute payment method counts", "error", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nPayment methods:")
	for _, name := range names {
		fmt.Printf("  %-12s %4d\n", name, methods[name])
	}

	buckets, err := store.HourBucketCounts(ctx)
	if err != nil {
		logger.Error("Failed to compute hour buckets", "error", err)
		os.Exit(1)
	}
	fmt.Println("\nEntries by hour bucket:")
	fmt.Printf("  10-13  %4d\n", buckets.From10To13)
	fmt.Printf("  13-16  %4d\n", buckets.From13To16)
	fmt.Printf("  16-19  %4d\n", buckets.From16To19)
	fmt.Printf("  19-22  %4d\n", buckets.From19To22)

	if *listRows {
		rows, err := store.ListTransactions(ctx, *method)
		if err != nil {
			logger.Error("Failed to list transactions", "error", err)
			os.Exit(1)
		}
		fmt.Printf("\nTransactions (%s): %d\n", *method, len(rows))
		for _, t := range rows {
			fmt.Printf("  %s  %-8s  %.0f min\n",
				t.EntryTime.Format(core.EntryTimeLayout), t.PaymentMethod, t.DurationMinutes)
		}
	}
}
