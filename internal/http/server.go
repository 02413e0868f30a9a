// Package http exposes the receipt pipeline as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"jangbu/internal/advisor"
	"jangbu/internal/cache"
	"jangbu/internal/core"
	"jangbu/internal/geo"
	"jangbu/internal/log"
	"jangbu/internal/middleware/ratelimit"
	"jangbu/internal/middleware/security"
	"jangbu/internal/middleware/trace"
	"jangbu/internal/services"
)

// Advisor answers free-text questions about the ledger. The HTTP layer only
// needs Ask; the concrete Gemini client lives in internal/advisor.
type Advisor interface {
	Ask(ctx context.Context, receipts []core.Receipt, history []advisor.Turn, question string) (string, error)
}

var _ Advisor = (*advisor.Client)(nil)

const (
	summaryCacheKey = "summary"
	summaryCacheTTL = 5 * time.Minute

	// uploads past this size are rejected before extraction
	maxUploadBytes = 10 << 20
)

type appMetrics struct {
	receiptsRecorded int64
	cacheHits        int64
	cacheMisses      int64
	startedAt        time.Time
}

// Server wires the receipt service, advisor and geocoder behind the
// middleware chain.
type Server struct {
	http.Server

	receipts     *services.ReceiptService
	advisor      Advisor
	geocoder     *geo.Geocoder
	homeCurrency string

	logger     *log.Logger
	structured *log.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	headersMW        *security.HeadersMiddleware
	traceMW          *trace.Middleware

	summaryCache *cache.LRUCache[SummaryReport]
	cacheManager *cache.Manager

	metrics      appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. advisor may be nil when no API key is configured; POST /advisor
// then answers 503.
func NewServer(addr string, receipts *services.ReceiptService, advisor Advisor, geocoder *geo.Geocoder, homeCurrency string) *Server {
	mux := http.NewServeMux()

	detector := security.NewDetector()
	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		receipts:         receipts,
		advisor:          advisor,
		geocoder:         geocoder,
		homeCurrency:     homeCurrency,
		logger:           logger,
		structured:       log.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: detector,
		headersMW:        security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		traceMW:          trace.NewMiddleware(detector.ExtractClientIP),
		summaryCache:     cache.NewLRUCache[SummaryReport](16, summaryCacheTTL),
		cacheManager:     cache.NewManager(),
		metrics:          appMetrics{startedAt: time.Now()},
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.Handle("/receipts", s.protect(s.handleAnalyzeReceipt))
	mux.Handle("/entries", s.protect(s.handleManualEntry))
	mux.Handle("/import", s.protect(s.handleImportCSV))
	mux.Handle("/reset", s.protect(s.handleReset))
	mux.Handle("/advisor", s.protect(s.handleAdvisor))
	mux.Handle("/summary", s.protect(s.handleSummary))
	mux.Handle("/export.csv", s.protect(s.handleExportCSV))

	return s
}

// protect applies the middleware chain to a handler: tracing and request
// logging, security headers, suspicious-request rejection, and rate
// limiting on mutating methods.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request rejected",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
			writeError(w, http.StatusForbidden, "request rejected")
			return
		}
		if r.Method == http.MethodPost && !s.rateLimiter.Allow(s.securityDetector.ExtractClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		h(w, r)
	})
	return s.traceMW.Middleware(s.headersMW.Middleware(log.Middleware(s.logger)(inner)))
}

// invalidateSummary drops the cached summary after any ledger mutation.
func (s *Server) invalidateSummary() {
	s.summaryCache.Delete(summaryCacheKey)
}

// Shutdown stops the cleanup goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) recordReceipt() {
	atomic.AddInt64(&s.metrics.receiptsRecorded, 1)
}
