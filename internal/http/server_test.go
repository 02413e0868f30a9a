package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jangbu/internal/advisor"
	"jangbu/internal/core"
	"jangbu/internal/ledger"
	"jangbu/internal/rates"
	"jangbu/internal/services"
)

type stubExtractor struct {
	raw core.RawExtraction
	err error
}

func (s *stubExtractor) ExtractReceipt(ctx context.Context, imageData []byte, mimeType string) (core.RawExtraction, error) {
	return s.raw, s.err
}

type stubRates struct{}

func (stubRates) Table(ctx context.Context) core.CurrencyTable {
	return rates.Fallback()
}

type stubAdvisor struct {
	answer string
	err    error
	asked  int
}

func (a *stubAdvisor) Ask(ctx context.Context, receipts []core.Receipt, history []advisor.Turn, question string) (string, error) {
	a.asked++
	if len(receipts) == 0 {
		return "", core.ErrEmptyLedger
	}
	return a.answer, a.err
}

func sampleRaw() core.RawExtraction {
	return core.RawExtraction{
		StoreName:    "Mega Coffee",
		Date:         "2026-03-02",
		CurrencyUnit: "KRW",
		TotalAmount:  4500.0,
		Items: []core.RawItem{
			{Name: "Americano", Price: 4500.0, Quantity: 1, Category: "Beverages"},
		},
	}
}

func newTestServer(t *testing.T, extractor services.Extractor, adv Advisor) *Server {
	t.Helper()
	svc := services.NewReceiptService(
		extractor,
		core.NewNormalizer(core.DefaultNormalizerConfig()),
		stubRates{},
		ledger.NewMemoryStore(),
		nil,
	)
	s := NewServer(":0", svc, adv, nil, "KRW")
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func doJSON(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestManualEntryRecordsReceipt(t *testing.T) {
	s := newTestServer(t, &stubExtractor{}, nil)

	rec := doJSON(s, http.MethodPost, "/entries", sampleRaw())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result services.AnalyzeResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Duplicate {
		t.Error("first entry reported as duplicate")
	}
	if got := result.Receipt.Summary.Store; got != "Mega Coffee" {
		t.Errorf("store = %q, want Mega Coffee", got)
	}
	if len(result.Receipt.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(result.Receipt.Items))
	}
}

func TestManualEntryWithoutItems(t *testing.T) {
	s := newTestServer(t, &stubExtractor{}, nil)

	raw := sampleRaw()
	raw.Items = nil
	rec := doJSON(s, http.MethodPost, "/entries", raw)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestAnalyzeReceiptUpload(t *testing.T) {
	s := newTestServer(t, &stubExtractor{raw: sampleRaw()}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("receipt", "receipt.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatal(err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/receipts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result services.AnalyzeResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if want := ledger.UploadID("receipt.jpg", int64(len("fake image bytes"))); result.Receipt.Summary.ID != want {
		t.Errorf("receipt ID = %q, want %q", result.Receipt.Summary.ID, want)
	}
}

func TestAnalyzeReceiptMissingFile(t *testing.T) {
	s := newTestServer(t, &stubExtractor{raw: sampleRaw()}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("note", "no file here")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/receipts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSummaryReflectsLedger(t *testing.T) {
	s := newTestServer(t, &stubExtractor{}, nil)

	if rec := doJSON(s, http.MethodPost, "/entries", sampleRaw()); rec.Code != http.StatusOK {
		t.Fatalf("entry status = %d", rec.Code)
	}

	rec := doJSON(s, http.MethodGet, "/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var report SummaryReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if report.ReceiptCount != 1 || report.ItemCount != 1 {
		t.Errorf("counts = (%d, %d), want (1, 1)", report.ReceiptCount, report.ItemCount)
	}
	if report.HomeCurrency != "KRW" {
		t.Errorf("home currency = %q", report.HomeCurrency)
	}
	if report.Total != 4500 {
		t.Errorf("total = %v, want 4500", report.Total)
	}
	if len(report.Stores) != 1 || report.Stores[0].Store != "Mega Coffee" {
		t.Errorf("stores = %+v", report.Stores)
	}
}

func TestSummaryCacheInvalidatedOnAppend(t *testing.T) {
	s := newTestServer(t, &stubExtractor{}, nil)

	if rec := doJSON(s, http.MethodGet, "/summary", nil); rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}

	if rec := doJSON(s, http.MethodPost, "/entries", sampleRaw()); rec.Code != http.StatusOK {
		t.Fatalf("entry status = %d", rec.Code)
	}

	rec := doJSON(s, http.MethodGet, "/summary", nil)
	var report SummaryReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if report.ReceiptCount != 1 {
		t.Errorf("receipt count = %d after append, want 1", report.ReceiptCount)
	}
}

func TestResetClearsLedger(t *testing.T) {
	s := newTestServer(t, &stubExtractor{}, nil)

	if rec := doJSON(s, http.MethodPost, "/entries", sampleRaw()); rec.Code != http.StatusOK {
		t.Fatalf("entry status = %d", rec.Code)
	}
	if rec := doJSON(s, http.MethodPost, "/reset", nil); rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}

	rec := doJSON(s, http.MethodGet, "/summary", nil)
	var report SummaryReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if report.ReceiptCount != 0 {
		t.Errorf("receipt count = %d after reset, want 0", report.ReceiptCount)
	}
}

func TestAdvisor(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newTestServer(t, &stubExtractor{}, nil)
		rec := doJSON(s, http.MethodPost, "/advisor", advisorRequest{Question: "where does my money go?"})
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("empty ledger", func(t *testing.T) {
		s := newTestServer(t, &stubExtractor{}, &stubAdvisor{answer: "spend less"})
		rec := doJSON(s, http.MethodPost, "/advisor", advisorRequest{Question: "where does my money go?"})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("answers with history", func(t *testing.T) {
		adv := &stubAdvisor{answer: "mostly coffee"}
		s := newTestServer(t, &stubExtractor{}, adv)
		if rec := doJSON(s, http.MethodPost, "/entries", sampleRaw()); rec.Code != http.StatusOK {
			t.Fatalf("entry status = %d", rec.Code)
		}

		req := advisorRequest{
			Question: "and last week?",
			History: []advisor.Turn{
				{Role: "user", Text: "where does my money go?"},
				{Role: "model", Text: "mostly coffee"},
			},
		}
		rec := doJSON(s, http.MethodPost, "/advisor", req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var resp advisorResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Answer != "mostly coffee" {
			t.Errorf("answer = %q", resp.Answer)
		}
		if adv.asked != 1 {
			t.Errorf("advisor asked %d times, want 1", adv.asked)
		}
	})
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t, &stubExtractor{}, nil)
	if rec := doJSON(s, http.MethodPost, "/entries", sampleRaw()); rec.Code != http.StatusOK {
		t.Fatalf("entry status = %d", rec.Code)
	}

	rec := doJSON(s, http.MethodGet, "/export.csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "itemName") || !strings.Contains(body, "Americano") {
		t.Errorf("csv body missing expected rows:\n%s", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &stubExtractor{}, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/receipts"},
		{http.MethodGet, "/entries"},
		{http.MethodGet, "/reset"},
		{http.MethodPost, "/summary"},
		{http.MethodPost, "/export.csv"},
	} {
		t.Run(fmt.Sprintf("%s %s", tc.method, tc.path), func(t *testing.T) {
			rec := doJSON(s, tc.method, tc.path, nil)
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want 405", rec.Code)
			}
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, &stubExtractor{}, nil)

	if rec := doJSON(s, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	rec := doJSON(s, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, body %s", rec.Code, rec.Body.String())
	}
}
