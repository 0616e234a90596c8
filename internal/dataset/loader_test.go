package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pandapark/internal/stats"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panda-park-data.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

const validDataset = `[
  {"transaction_date": "2024-01-01", "entry_time": "2024-01-01 11:05:00", "duration_minutes": 30, "payment_method": "QRIS", "gate": "A"},
  {"transaction_date": "2024-01-01", "entry_time": "2024-01-01 20:15:00", "duration_minutes": 45, "payment_method": "QRIS"},
  {"transaction_date": "2024-01-02", "entry_time": "2024-01-02 14:00:00", "duration_minutes": 15, "payment_method": "OVO", "capture_license_plate_url": "https://img.example/p.jpg"}
]`

func TestLoadValidDataset(t *testing.T) {
	snap, err := Load(writeDataset(t, validDataset))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.TotalCount() != 3 {
		t.Fatalf("TotalCount() = %d, want 3", snap.TotalCount())
	}

	// Passthrough fields survive the load.
	rows := snap.FilterByPaymentMethod("All").Rows()
	if _, ok := rows[0].Extra["gate"]; !ok {
		t.Fatalf("passthrough field lost: %+v", rows[0])
	}
	if rows[2].CaptureLicensePlateURL == "" {
		t.Fatal("capture_license_plate_url lost")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("want *LoadError, got %T: %v", err, err)
	}
	if loadErr.Path == "" {
		t.Fatal("LoadError must name the failing path")
	}
}

func TestLoadTruncatedJSON(t *testing.T) {
	_, err := Load(writeDataset(t, `[{"transaction_date": "2024-`))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("want *LoadError, got %T: %v", err, err)
	}
}

func TestLoadRejectsWholeSetOnBadEntryTime(t *testing.T) {
	bad := `[
  {"transaction_date": "2024-01-01", "entry_time": "2024-01-01 11:05:00", "duration_minutes": 30, "payment_method": "QRIS"},
  {"transaction_date": "2024-01-01", "entry_time": "yesterday-ish", "duration_minutes": 45, "payment_method": "QRIS"}
]`
	_, err := Load(writeDataset(t, bad))
	var recErr *RecordError
	if !errors.As(err, &recErr) {
		t.Fatalf("want *RecordError, got %T: %v", err, err)
	}
	if recErr.Index != 1 {
		t.Fatalf("RecordError.Index = %d, want 1", recErr.Index)
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatal("record failures must still surface as a load error")
	}
}

func TestLoadRejectsMissingEntryTime(t *testing.T) {
	bad := `[{"transaction_date": "2024-01-01", "duration_minutes": 30, "payment_method": "QRIS"}]`
	if _, err := Load(writeDataset(t, bad)); err == nil {
		t.Fatal("expected error for record without entry_time")
	}
}

func TestCacheMemoizesAndInvalidates(t *testing.T) {
	path := writeDataset(t, validDataset)
	c := NewCache(4, time.Hour)

	loads := 0
	c.load = func(p string) (*stats.Snapshot, error) {
		loads++
		return Load(p)
	}

	for i := 0; i < 3; i++ {
		if _, err := c.Load(path); err != nil {
			t.Fatalf("Load #%d: %v", i, err)
		}
	}
	if loads != 1 {
		t.Fatalf("source read %d times, want 1 (memoized)", loads)
	}

	c.Invalidate(path)
	if _, err := c.Load(path); err != nil {
		t.Fatalf("Load after invalidate: %v", err)
	}
	if loads != 2 {
		t.Fatalf("source read %d times after invalidate, want 2", loads)
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	c := NewCache(4, time.Hour)
	missing := filepath.Join(t.TempDir(), "gone.json")
	if _, err := c.Load(missing); err == nil {
		t.Fatal("expected load error")
	}

	// Once the file appears the cache must pick it up.
	if err := os.WriteFile(missing, []byte(validDataset), 0644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	snap, err := c.Load(missing)
	if err != nil {
		t.Fatalf("Load after file appeared: %v", err)
	}
	if snap.TotalCount() != 3 {
		t.Fatalf("TotalCount() = %d, want 3", snap.TotalCount())
	}
}
