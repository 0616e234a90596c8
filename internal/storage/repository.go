package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pandapark/internal/core"
	"pandapark/internal/parkdata"
	"pandapark/internal/stats"

	_ "modernc.org/sqlite"
)

// Repository serves the aggregate queries from a SQLite copy of the
// dataset. The SQL reproduces the in-memory engine's semantics exactly:
// same bucket bounds, same ordering, same "All" sentinel.
type Repository struct {
	db *sql.DB
}

var (
	_ parkdata.StatsReader       = (*Repository)(nil)
	_ parkdata.TransactionLister = (*Repository)(nil)
)

func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Import replaces the stored transaction set with the snapshot's records.
// It runs in a single transaction so a failed import leaves the previous
// set intact.
func (r *Repository) Import(ctx context.Context, snap *stats.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO transactions(
  position, transaction_date, entry_time, entry_hour,
  duration_minutes, payment_method, capture_license_plate_url, extra
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	rows := snap.FilterByPaymentMethod(core.MethodAll).Rows()
	for i, t := range rows {
		extra := "{}"
		if len(t.Extra) > 0 {
			b, err := json.Marshal(t.Extra)
			if err != nil {
				return fmt.Errorf("marshal extra for record %d: %w", i, err)
			}
			extra = string(b)
		}
		if _, err := stmt.ExecContext(ctx,
			i,
			t.TransactionDate,
			t.EntryTime.Format(core.EntryTimeLayout),
			t.EntryHour(),
			t.DurationMinutes,
			t.PaymentMethod,
			t.CaptureLicensePlateURL,
			extra,
		); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Dataset imported into SQLite", "records", len(rows))
	return nil
}

func (r *Repository) Overview(ctx context.Context) (core.Overview, error) {
	var ov core.Overview
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&ov.TotalTransactions); err != nil {
		return ov, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT transaction_date, COUNT(*) AS n
FROM transactions
GROUP BY transaction_date
ORDER BY transaction_date DESC
LIMIT 2`)
	if err != nil {
		return ov, fmt.Errorf("latest day summary: %w", err)
	}
	defer rows.Close()

	var last []core.DailyCount
	for rows.Next() {
		var d core.DailyCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return ov, fmt.Errorf("scan latest day: %w", err)
		}
		last = append(last, d)
	}
	if err := rows.Err(); err != nil {
		return ov, fmt.Errorf("latest day rows: %w", err)
	}

	if len(last) > 0 {
		ov.LatestDay = core.DaySummary{Date: last[0].Date, Count: last[0].Count}
		if len(last) == 2 {
			ov.LatestDay.Delta = last[0].Count - last[1].Count
		}
	}
	return ov, nil
}

func (r *Repository) DailyCounts(ctx context.Context) ([]core.DailyCount, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT transaction_date, COUNT(*) AS n
FROM transactions
GROUP BY transaction_date
ORDER BY transaction_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	defer rows.Close()

	var out []core.DailyCount
	for rows.Next() {
		var d core.DailyCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, fmt.Errorf("scan daily count: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) DailyAverageDuration(ctx context.Context) ([]core.DailyDuration, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT transaction_date, AVG(duration_minutes)
FROM transactions
GROUP BY transaction_date
ORDER BY transaction_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("daily average duration: %w", err)
	}
	defer rows.Close()

	var out []core.DailyDuration
	for rows.Next() {
		var d core.DailyDuration
		if err := rows.Scan(&d.Date, &d.AvgMinutes); err != nil {
			return nil, fmt.Errorf("scan daily duration: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) PaymentMethodCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT payment_method, COUNT(*) AS n
FROM transactions
GROUP BY payment_method`)
	if err != nil {
		return nil, fmt.Errorf("payment method counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var method string
		var n int
		if err := rows.Scan(&method, &n); err != nil {
			return nil, fmt.Errorf("scan payment method count: %w", err)
		}
		out[method] = n
	}
	return out, rows.Err()
}

func (r *Repository) HourBucketCounts(ctx context.Context) (core.HourBuckets, error) {
	var b core.HourBuckets
	// Half-open windows; hours outside [10,22) land in no bucket.
	err := r.db.QueryRowContext(ctx, `
SELECT
  COALESCE(SUM(CASE WHEN entry_hour >= 10 AND entry_hour < 13 THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN entry_hour >= 13 AND entry_hour < 16 THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN entry_hour >= 16 AND entry_hour < 19 THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN entry_hour >= 19 AND entry_hour < 22 THEN 1 ELSE 0 END), 0)
FROM transactions`).Scan(&b.From10To13, &b.From13To16, &b.From16To19, &b.From19To22)
	if err != nil {
		return b, fmt.Errorf("hour bucket counts: %w", err)
	}
	return b, nil
}

func (r *Repository) ListTransactions(ctx context.Context, method string) ([]core.Transaction, error) {
	query := `
SELECT transaction_date, entry_time, duration_minutes, payment_method,
       capture_license_plate_url, extra
FROM transactions`
	var args []any
	if method != core.MethodAll {
		query += ` WHERE payment_method = ?`
		args = append(args, method)
	}
	query += ` ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		var t core.Transaction
		var entryTime, extra string
		if err := rows.Scan(&t.TransactionDate, &entryTime, &t.DurationMinutes,
			&t.PaymentMethod, &t.CaptureLicensePlateURL, &extra); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.EntryTime, err = core.ParseEntryTime(entryTime)
		if err != nil {
			return nil, fmt.Errorf("stored entry_time: %w", err)
		}
		if extra != "" && extra != "{}" {
			if err := json.Unmarshal([]byte(extra), &t.Extra); err != nil {
				return nil, fmt.Errorf("stored extra: %w", err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
