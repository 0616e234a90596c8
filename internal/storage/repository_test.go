package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"pandapark/internal/core"
	"pandapark/internal/stats"
)

func testTx(date string, hour int, method string, duration float64) core.Transaction {
	parsed, _ := time.Parse(core.DateLayout, date)
	return core.Transaction{
		TransactionDate: date,
		EntryTime:       time.Date(parsed.Year(), parsed.Month(), parsed.Day(), hour, 15, 0, 0, time.UTC),
		DurationMinutes: duration,
		PaymentMethod:   method,
	}
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "pandapark.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestImportAndQueries(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	snap := stats.NewSnapshot([]core.Transaction{
		testTx("2024-01-01", 11, "QRIS", 30),
		testTx("2024-01-01", 20, "QRIS", 45),
		testTx("2024-01-02", 14, "OVO", 15),
		testTx("2024-01-02", 9, "CASH???", 5), // before opening, unknown method
	})
	if err := repo.Import(ctx, snap); err != nil {
		t.Fatalf("Import: %v", err)
	}

	ov, err := repo.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.TotalTransactions != 4 {
		t.Fatalf("TotalTransactions = %d, want 4", ov.TotalTransactions)
	}
	if ov.LatestDay.Date != "2024-01-02" || ov.LatestDay.Count != 2 || ov.LatestDay.Delta != 0 {
		t.Fatalf("LatestDay = %+v", ov.LatestDay)
	}

	daily, err := repo.DailyCounts(ctx)
	if err != nil {
		t.Fatalf("DailyCounts: %v", err)
	}
	if len(daily) != 2 || daily[0] != (core.DailyCount{Date: "2024-01-01", Count: 2}) {
		t.Fatalf("DailyCounts = %+v", daily)
	}

	avg, err := repo.DailyAverageDuration(ctx)
	if err != nil {
		t.Fatalf("DailyAverageDuration: %v", err)
	}
	if avg[0].AvgMinutes != 37.5 || avg[1].AvgMinutes != 10 {
		t.Fatalf("DailyAverageDuration = %+v", avg)
	}

	methods, err := repo.PaymentMethodCounts(ctx)
	if err != nil {
		t.Fatalf("PaymentMethodCounts: %v", err)
	}
	if methods["QRIS"] != 2 || methods["OVO"] != 1 || methods["CASH???"] != 1 {
		t.Fatalf("PaymentMethodCounts = %v (unknown values must keep their literal key)", methods)
	}

	buckets, err := repo.HourBucketCounts(ctx)
	if err != nil {
		t.Fatalf("HourBucketCounts: %v", err)
	}
	want := core.HourBuckets{From10To13: 1, From13To16: 1, From19To22: 1}
	if buckets != want {
		t.Fatalf("HourBucketCounts = %+v, want %+v (9:00 entry must be dropped)", buckets, want)
	}
}

func TestListTransactionsFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	withExtra := testTx("2024-01-01", 11, "QRIS", 30)
	withExtra.Extra = map[string]json.RawMessage{"gate": json.RawMessage(`"A2"`)}
	snap := stats.NewSnapshot([]core.Transaction{
		withExtra,
		testTx("2024-01-01", 20, "GOPAY", 45),
		testTx("2024-01-02", 14, "QRIS", 15),
	})
	if err := repo.Import(ctx, snap); err != nil {
		t.Fatalf("Import: %v", err)
	}

	all, err := repo.ListTransactions(ctx, core.MethodAll)
	if err != nil {
		t.Fatalf("ListTransactions(All): %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListTransactions(All) len = %d, want 3", len(all))
	}
	// Original record order is preserved.
	if all[0].PaymentMethod != "QRIS" || all[1].PaymentMethod != "GOPAY" {
		t.Fatalf("order not preserved: %+v", all)
	}
	if string(all[0].Extra["gate"]) != `"A2"` {
		t.Fatalf("passthrough fields lost: %+v", all[0].Extra)
	}

	qris, err := repo.ListTransactions(ctx, "QRIS")
	if err != nil {
		t.Fatalf("ListTransactions(QRIS): %v", err)
	}
	if len(qris) != 2 {
		t.Fatalf("ListTransactions(QRIS) len = %d, want 2", len(qris))
	}

	empty, err := repo.ListTransactions(ctx, "BITCOIN")
	if err != nil {
		t.Fatalf("ListTransactions(BITCOIN): %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("unknown method must return empty result, got %+v", empty)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	snap := stats.NewSnapshot([]core.Transaction{
		testTx("2024-01-01", 11, "QRIS", 30),
		testTx("2024-01-02", 14, "OVO", 15),
	})
	for i := 0; i < 2; i++ {
		if err := repo.Import(ctx, snap); err != nil {
			t.Fatalf("Import #%d: %v", i, err)
		}
	}

	ov, err := repo.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.TotalTransactions != 2 {
		t.Fatalf("TotalTransactions = %d after reimport, want 2", ov.TotalTransactions)
	}
}

func TestEmptyRepository(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	ov, err := repo.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.TotalTransactions != 0 || ov.LatestDay != (core.DaySummary{}) {
		t.Fatalf("Overview on empty db = %+v", ov)
	}

	buckets, err := repo.HourBucketCounts(ctx)
	if err != nil {
		t.Fatalf("HourBucketCounts: %v", err)
	}
	if buckets.Total() != 0 {
		t.Fatalf("HourBucketCounts on empty db = %+v", buckets)
	}
}
