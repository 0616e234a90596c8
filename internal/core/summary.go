package core

// DailyCount is one point of the daily transaction count series.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DailyDuration is one point of the daily average parking duration series.
type DailyDuration struct {
	Date       string  `json:"date"`
	AvgMinutes float64 `json:"avg_duration_minutes"`
}

// DaySummary compares the last day in the data against the one before it.
// Date is whichever transaction_date sorts last, not the wall clock.
type DaySummary struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Delta int    `json:"delta"`
}

// HourBuckets counts entries per busy-hour window within the 10:00-22:00
// operating day. Entries outside the window belong to no bucket.
type HourBuckets struct {
	From10To13 int `json:"10-13"`
	From13To16 int `json:"13-16"`
	From16To19 int `json:"16-19"`
	From19To22 int `json:"19-22"`
}

// Total returns the number of entries covered by the four buckets.
func (b HourBuckets) Total() int {
	return b.From10To13 + b.From13To16 + b.From16To19 + b.From19To22
}

// Overview is the top-panel summary for the whole dataset.
type Overview struct {
	TotalTransactions int        `json:"total_transactions"`
	LatestDay         DaySummary `json:"latest_day"`
}
