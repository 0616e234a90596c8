package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pandapark/internal/core"
)

type fakeBackend struct {
	overviewCalls int64
	listCalls     int64
	refreshCalls  int64
	failing       bool
}

func (f *fakeBackend) err() error {
	if f.failing {
		return errors.New("backend down")
	}
	return nil
}

func (f *fakeBackend) Overview(ctx context.Context) (core.Overview, error) {
	atomic.AddInt64(&f.overviewCalls, 1)
	return core.Overview{
		TotalTransactions: 3,
		LatestDay:         core.DaySummary{Date: "2024-01-02", Count: 1, Delta: -1},
	}, f.err()
}

func (f *fakeBackend) DailyCounts(ctx context.Context) ([]core.DailyCount, error) {
	return []core.DailyCount{{Date: "2024-01-01", Count: 2}, {Date: "2024-01-02", Count: 1}}, f.err()
}

func (f *fakeBackend) DailyAverageDuration(ctx context.Context) ([]core.DailyDuration, error) {
	return []core.DailyDuration{{Date: "2024-01-01", AvgMinutes: 37.5}, {Date: "2024-01-02", AvgMinutes: 15}}, f.err()
}

func (f *fakeBackend) PaymentMethodCounts(ctx context.Context) (map[string]int, error) {
	return map[string]int{"QRIS": 2, "OVO": 1}, f.err()
}

func (f *fakeBackend) HourBucketCounts(ctx context.Context) (core.HourBuckets, error) {
	return core.HourBuckets{From10To13: 1, From13To16: 1, From19To22: 1}, f.err()
}

func (f *fakeBackend) ListTransactions(ctx context.Context, method string) ([]core.Transaction, error) {
	atomic.AddInt64(&f.listCalls, 1)
	all := []core.Transaction{
		{TransactionDate: "2024-01-01", EntryTime: time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), DurationMinutes: 30, PaymentMethod: "QRIS"},
		{TransactionDate: "2024-01-02", EntryTime: time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC), DurationMinutes: 15, PaymentMethod: "OVO"},
	}
	if method == core.MethodAll {
		return all, f.err()
	}
	out := make([]core.Transaction, 0)
	for _, t := range all {
		if t.PaymentMethod == method {
			out = append(out, t)
		}
	}
	return out, f.err()
}

func (f *fakeBackend) Refresh(ctx context.Context) error {
	atomic.AddInt64(&f.refreshCalls, 1)
	return f.err()
}

type fakePublisher struct {
	published int64
	lastSrc   string
}

func (p *fakePublisher) PublishReload(ctx context.Context, source, requestedBy string) error {
	atomic.AddInt64(&p.published, 1)
	p.lastSrc = source
	return nil
}

func newTestServer(backend *fakeBackend, pub ReloadPublisher) *Server {
	return NewServer(":0", backend, backend, Options{
		Source:    "data/panda-park-data.json",
		Publisher: pub,
	})
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestOverviewEndpoint(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, nil)
	defer srv.Shutdown(context.Background())

	rr := get(t, srv, "/stats/overview")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var ov core.Overview
	if err := json.Unmarshal(rr.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ov.TotalTransactions != 3 || ov.LatestDay.Delta != -1 {
		t.Fatalf("overview = %+v", ov)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}
}

func TestDailyEndpoint(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, nil)
	defer srv.Shutdown(context.Background())

	rr := get(t, srv, "/stats/daily")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var payload struct {
		Counts           []core.DailyCount    `json:"daily_counts"`
		AverageDurations []core.DailyDuration `json:"daily_average_duration"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Counts) != 2 || payload.AverageDurations[0].AvgMinutes != 37.5 {
		t.Fatalf("daily payload = %+v", payload)
	}
}

func TestPaymentMethodsEndpointIncludesFixedOptions(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, nil)
	defer srv.Shutdown(context.Background())

	rr := get(t, srv, "/stats/payment-methods")
	var payload struct {
		Counts  map[string]int `json:"counts"`
		Options []string       `json:"filter_options"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Counts["QRIS"] != 2 {
		t.Fatalf("counts = %v", payload.Counts)
	}
	if len(payload.Options) != 7 || payload.Options[0] != "All" {
		t.Fatalf("filter options = %v", payload.Options)
	}
}

func TestHourBucketsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, nil)
	defer srv.Shutdown(context.Background())

	rr := get(t, srv, "/stats/hour-buckets")
	var buckets core.HourBuckets
	if err := json.Unmarshal(rr.Body.Bytes(), &buckets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buckets.Total() != 3 {
		t.Fatalf("buckets = %+v", buckets)
	}
	if !strings.Contains(rr.Body.String(), `"10-13"`) {
		t.Fatalf("bucket keys missing from payload: %s", rr.Body.String())
	}
}

func TestTransactionsFilter(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, nil)
	defer srv.Shutdown(context.Background())

	tests := []struct {
		name      string
		query     string
		wantCount int
	}{
		{name: "default is All", query: "", wantCount: 2},
		{name: "explicit All", query: "?payment_method=All", wantCount: 2},
		{name: "exact match", query: "?payment_method=OVO", wantCount: 1},
		{name: "unknown method empty not error", query: "?payment_method=BITCOIN", wantCount: 0},
		{name: "case sensitive", query: "?payment_method=ovo", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, srv, "/transactions"+tt.query)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			var payload struct {
				Count        int                `json:"count"`
				Transactions []core.Transaction `json:"transactions"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Count != tt.wantCount || len(payload.Transactions) != tt.wantCount {
				t.Fatalf("count = %d (%d rows), want %d", payload.Count, len(payload.Transactions), tt.wantCount)
			}
		})
	}
}

func TestStatsResponsesAreCached(t *testing.T) {
	backend := &fakeBackend{}
	srv := newTestServer(backend, nil)
	defer srv.Shutdown(context.Background())

	for i := 0; i < 3; i++ {
		if rr := get(t, srv, "/stats/overview"); rr.Code != http.StatusOK {
			t.Fatalf("request #%d status = %d", i, rr.Code)
		}
	}
	if calls := atomic.LoadInt64(&backend.overviewCalls); calls != 1 {
		t.Fatalf("backend queried %d times, want 1 (cached)", calls)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, nil)
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/stats/overview", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}

	rr = get(t, srv, "/admin/reload")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /admin/reload status = %d, want 405", rr.Code)
	}
}

func TestReloadRefreshesBackendAndInvalidatesCache(t *testing.T) {
	backend := &fakeBackend{}
	pub := &fakePublisher{}
	srv := newTestServer(backend, pub)
	defer srv.Shutdown(context.Background())

	// Warm the cache.
	get(t, srv, "/stats/overview")
	if calls := atomic.LoadInt64(&backend.overviewCalls); calls != 1 {
		t.Fatalf("overview calls = %d, want 1", calls)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("reload status = %d: %s", rr.Code, rr.Body.String())
	}

	if refreshes := atomic.LoadInt64(&backend.refreshCalls); refreshes != 1 {
		t.Fatalf("refresh calls = %d, want 1", refreshes)
	}
	if published := atomic.LoadInt64(&pub.published); published != 1 {
		t.Fatalf("published = %d, want 1", published)
	}
	if pub.lastSrc != "data/panda-park-data.json" {
		t.Fatalf("published source = %q", pub.lastSrc)
	}

	// Cache was dropped, so the next read hits the backend again.
	get(t, srv, "/stats/overview")
	if calls := atomic.LoadInt64(&backend.overviewCalls); calls != 2 {
		t.Fatalf("overview calls after reload = %d, want 2", calls)
	}
}

func TestBackendErrorSurfacesAs500(t *testing.T) {
	srv := newTestServer(&fakeBackend{failing: true}, nil)
	defer srv.Shutdown(context.Background())

	rr := get(t, srv, "/stats/overview")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "backend down") {
		t.Fatalf("error body = %s", rr.Body.String())
	}
}

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, nil)
	defer srv.Shutdown(context.Background())

	if rr := get(t, srv, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("/healthz status = %d", rr.Code)
	}
	if rr := get(t, srv, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("/readyz status = %d", rr.Code)
	}

	down := newTestServer(&fakeBackend{failing: true}, nil)
	defer down.Shutdown(context.Background())
	if rr := get(t, down, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz with failing backend status = %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeBackend{}, nil)
	defer srv.Shutdown(context.Background())

	get(t, srv, "/stats/overview")
	rr := get(t, srv, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{"http_requests_total", "cache_misses_total", "dataset_reloads_total", "uptime_seconds"} {
		if !strings.Contains(body, metric) {
			t.Fatalf("metrics output missing %s:\n%s", metric, body)
		}
	}
}
