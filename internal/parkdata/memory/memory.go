package memory

import (
	"context"

	"pandapark/internal/core"
	"pandapark/internal/dataset"
	"pandapark/internal/parkdata"
	"pandapark/internal/stats"
)

// Store serves every query from an in-memory snapshot of the dataset file.
// The snapshot is memoized by the dataset cache; Refresh drops it so the
// next query rereads the source.
type Store struct {
	source string
	data   *dataset.Cache
}

var (
	_ parkdata.StatsReader       = (*Store)(nil)
	_ parkdata.TransactionLister = (*Store)(nil)
	_ parkdata.Refresher         = (*Store)(nil)
)

func New(source string, data *dataset.Cache) *Store {
	return &Store{source: source, data: data}
}

func (s *Store) snapshot() (*stats.Snapshot, error) {
	return s.data.Load(s.source)
}

func (s *Store) Overview(_ context.Context) (core.Overview, error) {
	snap, err := s.snapshot()
	if err != nil {
		return core.Overview{}, err
	}
	return core.Overview{
		TotalTransactions: snap.TotalCount(),
		LatestDay:         snap.LatestDaySummary(),
	}, nil
}

func (s *Store) DailyCounts(_ context.Context) ([]core.DailyCount, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.DailyCounts(), nil
}

func (s *Store) DailyAverageDuration(_ context.Context) ([]core.DailyDuration, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.DailyAverageDuration(), nil
}

func (s *Store) PaymentMethodCounts(_ context.Context) (map[string]int, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.PaymentMethodCounts(), nil
}

func (s *Store) HourBucketCounts(_ context.Context) (core.HourBuckets, error) {
	snap, err := s.snapshot()
	if err != nil {
		return core.HourBuckets{}, err
	}
	return snap.HourBucketCounts(), nil
}

func (s *Store) ListTransactions(_ context.Context, method string) ([]core.Transaction, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.FilterByPaymentMethod(method).Rows(), nil
}

// Refresh invalidates the memoized snapshot for this store's source.
func (s *Store) Refresh(_ context.Context) error {
	s.data.Invalidate(s.source)
	return nil
}
