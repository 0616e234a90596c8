package stats

import (
	"sort"

	"pandapark/internal/core"
)

// Snapshot is an immutable set of transactions loaded from a single source.
// All aggregate queries are pure functions over it, so concurrent readers
// never contend.
type Snapshot struct {
	transactions []core.Transaction
}

// NewSnapshot copies txs into a snapshot. The caller's slice is not
// retained.
func NewSnapshot(txs []core.Transaction) *Snapshot {
	cp := make([]core.Transaction, len(txs))
	copy(cp, txs)
	return &Snapshot{transactions: cp}
}

// TotalCount returns the number of records in the snapshot.
func (s *Snapshot) TotalCount() int {
	return len(s.transactions)
}

// DailyCounts groups records by transaction_date and returns per-date
// counts ascending by date.
func (s *Snapshot) DailyCounts() []core.DailyCount {
	byDate := make(map[string]int)
	for _, t := range s.transactions {
		byDate[t.TransactionDate]++
	}
	out := make([]core.DailyCount, 0, len(byDate))
	for date, n := range byDate {
		out = append(out, core.DailyCount{Date: date, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// LatestDaySummary reports the count for the last date in the data and the
// change against the date before it. With fewer than two distinct dates the
// delta is zero. The reference day is the data maximum, never the clock.
func (s *Snapshot) LatestDaySummary() core.DaySummary {
	daily := s.DailyCounts()
	if len(daily) == 0 {
		return core.DaySummary{}
	}
	last := daily[len(daily)-1]
	summary := core.DaySummary{Date: last.Date, Count: last.Count}
	if len(daily) >= 2 {
		summary.Delta = last.Count - daily[len(daily)-2].Count
	}
	return summary
}

// DailyAverageDuration groups records by transaction_date and returns the
// arithmetic mean of duration_minutes per date, ascending by date. Groups
// are non-empty by construction, so the mean is always defined.
func (s *Snapshot) DailyAverageDuration() []core.DailyDuration {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, t := range s.transactions {
		sums[t.TransactionDate] += t.DurationMinutes
		counts[t.TransactionDate]++
	}
	out := make([]core.DailyDuration, 0, len(sums))
	for date, sum := range sums {
		out = append(out, core.DailyDuration{Date: date, AvgMinutes: sum / float64(counts[date])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// PaymentMethodCounts counts records per observed payment_method value.
func (s *Snapshot) PaymentMethodCounts() map[string]int {
	out := make(map[string]int)
	for _, t := range s.transactions {
		out[paymentMethodKey(t.PaymentMethod)]++
	}
	return out
}

// HourBucketCounts buckets records by entry hour into the four busy-hour
// windows.
func (s *Snapshot) HourBucketCounts() core.HourBuckets {
	var b core.HourBuckets
	for _, t := range s.transactions {
		switch bucketForHour(t.EntryHour()) {
		case bucket10to13:
			b.From10To13++
		case bucket13to16:
			b.From13To16++
		case bucket16to19:
			b.From16To19++
		case bucket19to22:
			b.From19To22++
		}
	}
	return b
}

// FilterByPaymentMethod returns a transient view of the snapshot filtered
// by payment method. The sentinel "All" keeps every record.
func (s *Snapshot) FilterByPaymentMethod(method string) *View {
	return newView(s.transactions).Filter(method)
}

// paymentMethodKey maps an observed payment_method value to its count key.
// Unknown and malformed values are counted under their literal string
// rather than rejected; the dataset has always been trusted here and the
// filter endpoint's fixed option list is the only validation surface.
func paymentMethodKey(method string) string {
	return method
}

type hourBucket int

const (
	bucketNone hourBucket = iota
	bucket10to13
	bucket13to16
	bucket16to19
	bucket19to22
)

// bucketForHour assigns an entry hour to its half-open busy-hour window.
// Hours outside [10,22) fall in no bucket and are dropped from the
// statistic without being reported; callers rely on this exact behavior.
func bucketForHour(hour int) hourBucket {
	switch {
	case hour >= 10 && hour < 13:
		return bucket10to13
	case hour >= 13 && hour < 16:
		return bucket13to16
	case hour >= 16 && hour < 19:
		return bucket16to19
	case hour >= 19 && hour < 22:
		return bucket19to22
	default:
		return bucketNone
	}
}
