package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func geminiTextResponse(text string) string {
	resp := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]interface{}{
						{"text": text},
					},
				},
			},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

const sampleExtraction = `{
	"store_name": "Mega Coffee",
	"date": "2026-03-01",
	"store_location": "Seoul Gangnam",
	"total_amount": 9000,
	"tax_amount": 818,
	"tip_amount": 0,
	"discount_amount": 1000,
	"currency_unit": "KRW",
	"items": [
		{"name": "Americano", "price": 4500, "quantity": 2, "category": "Coffee & Beverages"}
	]
}`

func TestExtractReceipt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, ok := body["contents"]; !ok {
			t.Error("request missing contents")
		}
		w.Write([]byte(geminiTextResponse(sampleExtraction)))
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-2.5-flash").WithBaseURL(server.URL)

	raw, err := client.ExtractReceipt(context.Background(), []byte("fake-image"), "image/jpeg")
	if err != nil {
		t.Fatalf("ExtractReceipt: %v", err)
	}

	if raw.StoreName != "Mega Coffee" {
		t.Errorf("StoreName = %q, want %q", raw.StoreName, "Mega Coffee")
	}
	if raw.CurrencyUnit != "KRW" {
		t.Errorf("CurrencyUnit = %q, want KRW", raw.CurrencyUnit)
	}
	if len(raw.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(raw.Items))
	}
	if raw.Items[0].Name != "Americano" {
		t.Errorf("item name = %q, want Americano", raw.Items[0].Name)
	}
}

func TestExtractReceiptStripsFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiTextResponse("```json\n" + sampleExtraction + "\n```")))
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-2.5-flash").WithBaseURL(server.URL)

	raw, err := client.ExtractReceipt(context.Background(), []byte("fake-image"), "image/png")
	if err != nil {
		t.Fatalf("ExtractReceipt: %v", err)
	}
	if raw.StoreName != "Mega Coffee" {
		t.Errorf("StoreName = %q, want %q", raw.StoreName, "Mega Coffee")
	}
}

func TestExtractReceiptProseWrappedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiTextResponse("Here is the extraction:\n" + sampleExtraction + "\nDone.")))
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-2.5-flash").WithBaseURL(server.URL)

	raw, err := client.ExtractReceipt(context.Background(), []byte("fake-image"), "image/jpeg")
	if err != nil {
		t.Fatalf("ExtractReceipt: %v", err)
	}
	if raw.Date != "2026-03-01" {
		t.Errorf("Date = %q, want 2026-03-01", raw.Date)
	}
}

func TestExtractReceiptValidation(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		client := NewClient("", "gemini-2.5-flash")
		_, err := client.ExtractReceipt(context.Background(), []byte("img"), "image/jpeg")
		extErr, ok := err.(*ExtractionError)
		if !ok || extErr.Code != ErrNotConfigured {
			t.Fatalf("err = %v, want ExtractionError with ErrNotConfigured", err)
		}
	})

	t.Run("empty image", func(t *testing.T) {
		client := NewClient("key", "gemini-2.5-flash")
		_, err := client.ExtractReceipt(context.Background(), nil, "image/jpeg")
		extErr, ok := err.(*ExtractionError)
		if !ok || extErr.Code != ErrInvalidDocument {
			t.Fatalf("err = %v, want ExtractionError with ErrInvalidDocument", err)
		}
	})
}

func TestExtractReceiptRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(geminiTextResponse(sampleExtraction)))
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-2.5-flash").WithBaseURL(server.URL)
	client.retry = RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2.0}

	raw, err := client.ExtractReceipt(context.Background(), []byte("fake-image"), "image/jpeg")
	if err != nil {
		t.Fatalf("ExtractReceipt: %v", err)
	}
	if raw.StoreName != "Mega Coffee" {
		t.Errorf("StoreName = %q after retry", raw.StoreName)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestExtractReceiptDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-2.5-flash").WithBaseURL(server.URL)
	client.retry = RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2.0}

	_, err := client.ExtractReceipt(context.Background(), []byte("fake-image"), "image/jpeg")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.in); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
