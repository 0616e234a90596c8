package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Payment methods accepted at the facility gates. The dataset is not
// validated against this list; it only drives the filter options exposed
// to callers.
const (
	MethodEmoney = "EMONEY"
	MethodFlash  = "FLASH"
	MethodQris   = "QRIS"
	MethodGopay  = "GOPAY"
	MethodDana   = "DANA"
	MethodOvo    = "OVO"

	// MethodAll is the filter sentinel meaning "no filtering".
	MethodAll = "All"
)

// EntryTimeLayout is the canonical encoding of entry_time in the dataset.
const EntryTimeLayout = "2006-01-02 15:04:05"

// DateLayout is the encoding of transaction_date.
const DateLayout = "2006-01-02"

var (
	ErrMissingEntryTime = errors.New("missing entry_time")
	ErrInvalidDuration  = errors.New("duration_minutes must be >= 0")
)

// entryTimeLayouts are the accepted encodings for entry_time, tried in order.
var entryTimeLayouts = []string{
	EntryTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Transaction is one recorded parking event.
//
// Fields the engine does not interpret are carried in Extra so a record
// survives a load/filter/serve round trip intact.
type Transaction struct {
	TransactionDate        string
	EntryTime              time.Time
	DurationMinutes        float64
	PaymentMethod          string
	CaptureLicensePlateURL string
	Extra                  map[string]json.RawMessage
}

// ParseEntryTime parses an entry_time value in any of the accepted layouts.
func ParseEntryTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingEntryTime
	}
	for _, layout := range entryTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable entry_time %q", s)
}

// FilterOptions returns the fixed ordered list of payment method filter
// values exposed to callers, the sentinel first.
func FilterOptions() []string {
	return []string{MethodAll, MethodEmoney, MethodFlash, MethodQris, MethodGopay, MethodDana, MethodOvo}
}

func (t Transaction) Validate() error {
	if t.EntryTime.IsZero() {
		return ErrMissingEntryTime
	}
	if t.DurationMinutes < 0 {
		return ErrInvalidDuration
	}
	return nil
}

// EntryHour returns the hour-of-day derived from the entry timestamp.
func (t Transaction) EntryHour() int {
	return t.EntryTime.Hour()
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var entryTime string
	if v, ok := raw["entry_time"]; ok {
		if err := json.Unmarshal(v, &entryTime); err != nil {
			return fmt.Errorf("entry_time: %w", err)
		}
		delete(raw, "entry_time")
	}
	parsed, err := ParseEntryTime(entryTime)
	if err != nil {
		return err
	}
	t.EntryTime = parsed

	if v, ok := raw["transaction_date"]; ok {
		if err := json.Unmarshal(v, &t.TransactionDate); err != nil {
			return fmt.Errorf("transaction_date: %w", err)
		}
		delete(raw, "transaction_date")
	}
	if v, ok := raw["duration_minutes"]; ok {
		if err := json.Unmarshal(v, &t.DurationMinutes); err != nil {
			return fmt.Errorf("duration_minutes: %w", err)
		}
		delete(raw, "duration_minutes")
	}
	if v, ok := raw["payment_method"]; ok {
		if err := json.Unmarshal(v, &t.PaymentMethod); err != nil {
			return fmt.Errorf("payment_method: %w", err)
		}
		delete(raw, "payment_method")
	}
	if v, ok := raw["capture_license_plate_url"]; ok {
		if err := json.Unmarshal(v, &t.CaptureLicensePlateURL); err != nil {
			return fmt.Errorf("capture_license_plate_url: %w", err)
		}
		delete(raw, "capture_license_plate_url")
	}

	if len(raw) > 0 {
		t.Extra = raw
	}
	return nil
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(t.Extra)+5)
	for k, v := range t.Extra {
		out[k] = v
	}

	put := func(key string, value any) error {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		out[key] = b
		return nil
	}
	if err := put("transaction_date", t.TransactionDate); err != nil {
		return nil, err
	}
	if err := put("entry_time", t.EntryTime.Format(EntryTimeLayout)); err != nil {
		return nil, err
	}
	if err := put("duration_minutes", t.DurationMinutes); err != nil {
		return nil, err
	}
	if err := put("payment_method", t.PaymentMethod); err != nil {
		return nil, err
	}
	if t.CaptureLicensePlateURL != "" {
		if err := put("capture_license_plate_url", t.CaptureLicensePlateURL); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}
