package dataset

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"pandapark/internal/core"
	"pandapark/internal/stats"
)

// LoadError reports that a dataset source could not be turned into a
// snapshot: the file is missing, unreadable, not a JSON array, or one of
// its records is invalid. Load exposes no partial state on failure.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load dataset %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// RecordError identifies the record that made a load fail. A single bad
// entry_time rejects the whole load; skipping records would silently skew
// the hour-bucket statistics.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Load reads a JSON array of transaction objects from path and returns an
// immutable snapshot. It is the only fallible entry point of the engine;
// every aggregate query downstream is total over the result.
func Load(path string) (*stats.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("not a JSON array of transactions: %w", err)}
	}

	txs := make([]core.Transaction, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &txs[i]); err != nil {
			return nil, &LoadError{Path: path, Err: &RecordError{Index: i, Err: err}}
		}
		warnDateMismatch(path, i, txs[i])
	}

	slog.Info("Dataset loaded", "path", path, "records", len(txs))
	return stats.NewSnapshot(txs), nil
}

// warnDateMismatch surfaces records whose transaction_date disagrees with
// the date component of entry_time. The two fields are trusted as
// independent, as they always have been; this only makes the inconsistency
// visible.
func warnDateMismatch(path string, index int, t core.Transaction) {
	derived := t.EntryTime.Format(core.DateLayout)
	if t.TransactionDate != "" && t.TransactionDate != derived {
		slog.Warn("transaction_date disagrees with entry_time",
			"path", path,
			"record", index,
			"transaction_date", t.TransactionDate,
			"entry_time_date", derived)
	}
}
