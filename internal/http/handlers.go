package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"jangbu/internal/advisor"
	"jangbu/internal/core"
	"jangbu/internal/extraction"
	"jangbu/internal/log"
	"jangbu/internal/services"
)

// handleAnalyzeReceipt accepts a multipart upload under the "receipt" field,
// runs the extraction pipeline and returns the recorded receipt.
func (s *Server) handleAnalyzeReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("receipt")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing receipt file")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(imageData) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	result, err := s.receipts.AnalyzeUpload(r.Context(), imageData, mimeType, header.Filename)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Receipt analysis failed",
			log.FieldError, err,
			"filename", header.Filename,
			"size_bytes", len(imageData))
		writePipelineError(w, err)
		return
	}

	s.afterRecord(r, result)
	writeJSON(w, http.StatusOK, result)
}

// handleManualEntry records a hand-entered receipt posted as the raw
// extraction shape.
func (s *Server) handleManualEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var raw core.RawExtraction
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.receipts.AddManualEntry(r.Context(), raw)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Manual entry failed",
			log.FieldError, err,
			log.FieldStore, raw.StoreName)
		writePipelineError(w, err)
		return
	}

	s.afterRecord(r, result)
	writeJSON(w, http.StatusOK, result)
}

// handleImportCSV replays an exported CSV, one synthetic receipt per
// currency group.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	results, err := s.receipts.ImportCSV(r.Context(), io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "CSV import failed", log.FieldError, err)
		writePipelineError(w, err)
		return
	}

	appended := 0
	for _, res := range results {
		if !res.Duplicate {
			appended++
			s.recordReceipt()
		}
	}
	s.invalidateSummary()
	s.logger.InfoContext(r.Context(), "CSV imported",
		log.FieldOperation, log.OpImport,
		"receipts", len(results),
		"appended", appended)

	writeJSON(w, http.StatusOK, map[string]any{
		"imported": appended,
		"results":  results,
	})
}

// handleReset clears the ledger.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	logger := log.FromContext(r.Context())
	if err := s.receipts.Reset(r.Context()); err != nil {
		logger.ErrorContext(r.Context(), "Ledger reset failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}

	s.invalidateSummary()
	logger.InfoContext(r.Context(), "Ledger reset", log.FieldOperation, log.OpReset)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type advisorRequest struct {
	Question string         `json:"question"`
	History  []advisor.Turn `json:"history,omitempty"`
}

type advisorResponse struct {
	Answer string `json:"answer"`
}

// handleAdvisor answers one consultation turn grounded in the current
// ledger. History is caller-held and echoed back on each request.
func (s *Server) handleAdvisor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.advisor == nil {
		writeError(w, http.StatusServiceUnavailable, "advisor not configured")
		return
	}

	var req advisorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	receipts, err := s.receipts.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}

	answer, err := s.advisor.Ask(r.Context(), receipts, req.History, req.Question)
	if err != nil {
		if errors.Is(err, core.ErrEmptyLedger) {
			writeError(w, http.StatusUnprocessableEntity, "record at least one receipt before asking the advisor")
			return
		}
		s.logger.ErrorContext(r.Context(), "Advisor call failed", log.FieldError, err)
		writeError(w, http.StatusBadGateway, "advisor unavailable")
		return
	}

	writeJSON(w, http.StatusOK, advisorResponse{Answer: answer})
}

// handleSummary serves the aggregate report, cached until the next ledger
// mutation.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	if report, ok := s.summaryCache.Get(summaryCacheKey); ok {
		atomic.AddInt64(&s.metrics.cacheHits, 1)
		writeJSON(w, http.StatusOK, report)
		return
	}
	atomic.AddInt64(&s.metrics.cacheMisses, 1)

	receipts, err := s.receipts.Snapshot(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Ledger snapshot failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}

	report := s.buildSummary(r.Context(), receipts)
	s.summaryCache.Set(summaryCacheKey, report)
	writeJSON(w, http.StatusOK, report)
}

// handleExportCSV streams the ledger as CSV, one row per line item.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)
	if err := s.receipts.ExportCSV(r.Context(), w); err != nil {
		// Headers are out at this point; log and cut the stream.
		s.structured.LogError(r.Context(), "CSV export failed", err, log.ComponentHTTP, log.OpExport, log.NewFields())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.startedAt).String(),
	})
}

// handleReady verifies the store answers before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "ready"
	httpStatus := http.StatusOK

	if _, err := s.receipts.Snapshot(r.Context()); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.advisor == nil {
		checks["advisor"] = "not_configured"
	} else {
		checks["advisor"] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in a Prometheus-like plain text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.traceMW.GetMetrics()

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP receipts_recorded_total Total number of receipts recorded\n")
	fmt.Fprintf(w, "# TYPE receipts_recorded_total counter\n")
	fmt.Fprintf(w, "receipts_recorded_total %d\n\n", atomic.LoadInt64(&s.metrics.receiptsRecorded))

	fmt.Fprintf(w, "# HELP summary_cache_hits_total Summary cache hits\n")
	fmt.Fprintf(w, "# TYPE summary_cache_hits_total counter\n")
	fmt.Fprintf(w, "summary_cache_hits_total %d\n\n", atomic.LoadInt64(&s.metrics.cacheHits))

	fmt.Fprintf(w, "# HELP summary_cache_misses_total Summary cache misses\n")
	fmt.Fprintf(w, "# TYPE summary_cache_misses_total counter\n")
	fmt.Fprintf(w, "summary_cache_misses_total %d\n\n", atomic.LoadInt64(&s.metrics.cacheMisses))

	fmt.Fprintf(w, "# HELP suspicious_requests_total Suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", s.securityDetector.GetMetrics().SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.metrics.startedAt).Seconds())
}

// afterRecord handles the bookkeeping shared by every append path: cache
// invalidation, the receipt-recorded log line and the metrics counter.
func (s *Server) afterRecord(r *http.Request, result services.AnalyzeResult) {
	s.invalidateSummary()
	if result.Duplicate {
		return
	}
	s.recordReceipt()
	sum := result.Receipt.Summary
	s.structured.LogReceiptRecorded(r.Context(), sum.ID, sum.Store, len(result.Receipt.Items), sum.HomeTotal)
}

// writePipelineError maps pipeline failures to status codes: document and
// content problems are the client's (422), upstream extraction failures are
// a bad gateway (502), a missing API key is 503.
func writePipelineError(w http.ResponseWriter, err error) {
	var extErr *extraction.ExtractionError
	if errors.As(err, &extErr) {
		switch extErr.Code {
		case extraction.ErrInvalidDocument:
			writeError(w, http.StatusUnprocessableEntity, extErr.Message)
		case extraction.ErrNotConfigured:
			writeError(w, http.StatusServiceUnavailable, extErr.Message)
		case extraction.ErrGeminiRateLimited:
			w.Header().Set("Retry-After", "30")
			writeError(w, http.StatusBadGateway, extErr.Message)
		default:
			writeError(w, http.StatusBadGateway, extErr.Message)
		}
		return
	}
	if errors.Is(err, core.ErrNoItems) {
		writeError(w, http.StatusUnprocessableEntity, "receipt contains no line items")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to record receipt")
}
