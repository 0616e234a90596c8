package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"pandapark/internal/core"
	"pandapark/internal/parkdata"
)

// handleOverview serves the top panel: total transactions plus the latest
// day's count and its change against the day before.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	s.cachedJSON(w, r, "stats:overview", func(ctx context.Context) (any, error) {
		return s.stats.Overview(ctx)
	})
}

// handleDaily serves both daily series: transaction counts and average
// parking duration, each ascending by date.
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	s.cachedJSON(w, r, "stats:daily", func(ctx context.Context) (any, error) {
		counts, err := s.stats.DailyCounts(ctx)
		if err != nil {
			return nil, err
		}
		durations, err := s.stats.DailyAverageDuration(ctx)
		if err != nil {
			return nil, err
		}
		return struct {
			Counts           []core.DailyCount    `json:"daily_counts"`
			AverageDurations []core.DailyDuration `json:"daily_average_duration"`
		}{Counts: counts, AverageDurations: durations}, nil
	})
}

func (s *Server) handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	s.cachedJSON(w, r, "stats:payment-methods", func(ctx context.Context) (any, error) {
		counts, err := s.stats.PaymentMethodCounts(ctx)
		if err != nil {
			return nil, err
		}
		return struct {
			Counts  map[string]int `json:"counts"`
			Options []string       `json:"filter_options"`
		}{Counts: counts, Options: core.FilterOptions()}, nil
	})
}

func (s *Server) handleHourBuckets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	s.cachedJSON(w, r, "stats:hour-buckets", func(ctx context.Context) (any, error) {
		return s.stats.HourBucketCounts(ctx)
	})
}

// handleTransactions serves the filterable transaction table. Filtering is
// exact and case-sensitive; an unknown payment_method yields an empty
// list, never an error.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	method := strings.TrimSpace(r.URL.Query().Get("payment_method"))
	if method == "" {
		method = core.MethodAll
	}

	s.cachedJSON(w, r, "transactions:"+method, func(ctx context.Context) (any, error) {
		txs, err := s.lister.ListTransactions(ctx, method)
		if err != nil {
			return nil, err
		}
		return struct {
			PaymentMethod string             `json:"payment_method"`
			Count         int                `json:"count"`
			Transactions  []core.Transaction `json:"transactions"`
		}{PaymentMethod: method, Count: len(txs), Transactions: txs}, nil
	})
}

// handleReload is the explicit invalidation hook for when the operator
// swaps the dataset file. It drops cached responses, asks the backend to
// reread its source, and broadcasts the reload when a publisher is wired.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	clientIP := r.Header.Get("X-Forwarded-For")
	if clientIP == "" {
		clientIP = r.RemoteAddr
	}
	if !s.rateLimiter.allow(clientIP) {
		slog.WarnContext(r.Context(), "Reload rate limit exceeded", "client_ip", clientIP)
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	s.invalidateResponses()
	if refresher, ok := s.stats.(parkdata.Refresher); ok {
		if err := refresher.Refresh(ctx); err != nil {
			slog.ErrorContext(ctx, "Backend refresh failed", "error", err)
			writeError(w, http.StatusInternalServerError, "refresh failed: "+err.Error())
			return
		}
	}

	if s.publisher != nil {
		requestID := requestIDFromContext(ctx)
		if err := s.publisher.PublishReload(ctx, s.source, requestID); err != nil {
			// The local reload already happened; the broadcast is best
			// effort.
			slog.ErrorContext(ctx, "Reload broadcast failed", "error", err, "source", s.source)
		}
	}

	atomic.AddInt64(&s.metrics.reloads, 1)
	slog.InfoContext(ctx, "Dataset reload triggered", "source", s.source, "client_ip", clientIP)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded", "source": s.source})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleReady verifies the backend can actually answer a query.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.stats.Overview(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleMetrics exposes application counters in plain text.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", atomic.LoadInt64(&s.metrics.requests))

	fmt.Fprintf(w, "# HELP cache_hits_total Total response cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", atomic.LoadInt64(&s.metrics.cacheHits))

	fmt.Fprintf(w, "# HELP cache_misses_total Total response cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", atomic.LoadInt64(&s.metrics.cacheMisses))

	fmt.Fprintf(w, "# HELP cache_entries Current response cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries %d\n\n", s.responseCache.Len())

	fmt.Fprintf(w, "# HELP dataset_reloads_total Total dataset reloads triggered\n")
	fmt.Fprintf(w, "# TYPE dataset_reloads_total counter\n")
	fmt.Fprintf(w, "dataset_reloads_total %d\n\n", atomic.LoadInt64(&s.metrics.reloads))

	fmt.Fprintf(w, "# HELP uptime_seconds Seconds since the server started\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %d\n", int64(time.Since(s.metrics.startedAt).Seconds()))
}
