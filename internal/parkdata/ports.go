package parkdata

import (
	"context"

	"pandapark/internal/core"
)

// Ports implemented by the data backends.
type (
	// StatsReader answers the aggregate queries over the transaction set.
	StatsReader interface {
		Overview(ctx context.Context) (core.Overview, error)
		DailyCounts(ctx context.Context) ([]core.DailyCount, error)
		DailyAverageDuration(ctx context.Context) ([]core.DailyDuration, error)
		PaymentMethodCounts(ctx context.Context) (map[string]int, error)
		HourBucketCounts(ctx context.Context) (core.HourBuckets, error)
	}

	// TransactionLister returns transactions filtered by payment method.
	// The sentinel core.MethodAll returns every record in original order.
	TransactionLister interface {
		ListTransactions(ctx context.Context, method string) ([]core.Transaction, error)
	}

	// Refresher is implemented by backends that can drop cached state and
	// reread their source.
	Refresher interface {
		Refresh(ctx context.Context) error
	}
)
