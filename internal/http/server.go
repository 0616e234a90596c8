package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"pandapark/internal/cache"
	"pandapark/internal/parkdata"
)

// ReloadPublisher broadcasts a dataset reload to other replicas. Optional;
// a nil publisher keeps reloads local to this process.
type ReloadPublisher interface {
	PublishReload(ctx context.Context, source, requestedBy string) error
}

// Options tunes the parts of the server that have sensible defaults.
type Options struct {
	// Source is the dataset path announced in reload broadcasts.
	Source string
	// Publisher, when set, fans reloads out to other replicas.
	Publisher ReloadPublisher
	// CacheSize and CacheTTL bound the rendered-response cache.
	CacheSize int
	CacheTTL  time.Duration
}

type appMetrics struct {
	startedAt   time.Time
	requests    int64
	cacheHits   int64
	cacheMisses int64
	reloads     int64
}

type Server struct {
	http.Server
	stats     parkdata.StatsReader
	lister    parkdata.TransactionLister
	publisher ReloadPublisher
	source    string

	// Rendered JSON payloads keyed by endpoint and filter. Stats never
	// change between reloads, so the TTL is just a memory bound.
	responseCache *cache.LRU[[]byte]

	rateLimiter *rateLimiter
	metrics     appMetrics

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, sr parkdata.StatsReader, tl parkdata.TransactionLister, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		stats:            sr,
		lister:           tl,
		publisher:        opts.Publisher,
		source:           opts.Source,
		responseCache:    cache.New[[]byte](opts.CacheSize, opts.CacheTTL),
		rateLimiter:      newRateLimiter(),
		metrics:          appMetrics{startedAt: time.Now()},
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/stats/overview", s.withRequestContext(s.handleOverview))
	mux.HandleFunc("/stats/daily", s.withRequestContext(s.handleDaily))
	mux.HandleFunc("/stats/payment-methods", s.withRequestContext(s.handlePaymentMethods))
	mux.HandleFunc("/stats/hour-buckets", s.withRequestContext(s.handleHourBuckets))
	mux.HandleFunc("/transactions", s.withRequestContext(s.handleTransactions))
	mux.HandleFunc("/admin/reload", s.withRequestContext(s.handleReload))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	return s
}

// startCacheCleanup periodically drops expired response cache entries.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if purged := s.responseCache.PurgeExpired(); purged > 0 {
				slog.Debug("Response cache cleanup completed", "entries_removed", purged)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully stops the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// cachedJSON serves the rendered payload for key from the response cache,
// rendering it with build on a miss.
func (s *Server) cachedJSON(w http.ResponseWriter, r *http.Request, key string, build func(ctx context.Context) (any, error)) {
	if body, ok := s.responseCache.Get(key); ok {
		atomic.AddInt64(&s.metrics.cacheHits, 1)
		writeJSONBytes(w, http.StatusOK, body)
		return
	}
	atomic.AddInt64(&s.metrics.cacheMisses, 1)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	payload, err := build(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Stats query failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "stats unavailable: "+err.Error())
		return
	}

	body, err := renderJSON(payload)
	if err != nil {
		slog.ErrorContext(ctx, "Response encoding failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "response encoding failed")
		return
	}

	s.responseCache.Set(key, body)
	writeJSONBytes(w, http.StatusOK, body)
}

// invalidateResponses drops every cached payload. Called on reload.
func (s *Server) invalidateResponses() {
	s.responseCache.Clear()
}

// InvalidateCache drops cached responses. Exposed for reload notifications
// arriving from outside the HTTP surface, such as broker messages.
func (s *Server) InvalidateCache() {
	s.invalidateResponses()
}
