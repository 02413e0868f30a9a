// Package extraction calls the Gemini API to turn receipt images into
// structured payloads for the normalization pipeline.
package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jangbu/internal/core"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const receiptPrompt = `You are an expert in receipt analysis and ledger recording.
Analyze the receipt image and extract its contents as JSON.

Respond with the JSON object only. No explanations, greetings or text outside it.

1. store_name: Store name (text)
2. date: Date in YYYY-MM-DD format. Leave empty if not found.
3. store_location: Store location/address (text). Leave empty if not found.
4. total_amount: Final amount settled via card or cash (numbers only, no commas). This is the FINAL total paid by the customer, reflecting tax and discount.
5. tax_amount: Tax or VAT amount on the receipt (numbers only). Must be 0 if not present.
6. tip_amount: Tip amount on the receipt (numbers only). Must be 0 if not present.
7. discount_amount: Total discount applied to the entire receipt, as a POSITIVE number (if the receipt shows -18,000 output 18000). Must be 0 if not present.
8. currency_unit: Official currency code shown on the receipt (e.g. KRW, USD, EUR).
9. items: List of purchased items. Each item must include:
   - name: Item name (text)
   - price: Unit price (numbers only). The final, VAT-inclusive price printed next to the item, before discount allocation.
   - quantity: Quantity (numbers only)
   - category: One of: %s

JSON schema:
{
  "store_name": "...",
  "date": "...",
  "store_location": "...",
  "total_amount": 0,
  "tax_amount": 0,
  "tip_amount": 0,
  "discount_amount": 0,
  "currency_unit": "...",
  "items": [
    {"name": "...", "price": 0, "quantity": 1, "category": "..."}
  ]
}`

// Client calls the Gemini generateContent endpoint with an inline receipt
// image and parses the structured result.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
}

// NewClient creates a Gemini extraction client. model is the bare model
// name, e.g. "gemini-2.5-flash".
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry: DefaultRetryConfig,
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// ExtractReceipt analyzes a receipt image and returns the raw extraction
// payload. Transient API failures are retried with backoff.
func (c *Client) ExtractReceipt(ctx context.Context, imageData []byte, mimeType string) (core.RawExtraction, error) {
	if c.apiKey == "" {
		return core.RawExtraction{}, &ExtractionError{
			Code:    ErrNotConfigured,
			Message: "Gemini API key not configured",
		}
	}
	if len(imageData) == 0 {
		return core.RawExtraction{}, &ExtractionError{
			Code:    ErrInvalidDocument,
			Message: "empty image data",
		}
	}

	return WithRetry(ctx, c.retry, func(ctx context.Context) (core.RawExtraction, error) {
		return c.extractOnce(ctx, imageData, mimeType)
	})
}

func (c *Client) extractOnce(ctx context.Context, imageData []byte, mimeType string) (core.RawExtraction, error) {
	encoded := base64.StdEncoding.EncodeToString(imageData)
	prompt := fmt.Sprintf(receiptPrompt, categoryList())

	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
					{
						"inline_data": map[string]string{
							"mime_type": mimeType,
							"data":      encoded,
						},
					},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      0.1,
			"maxOutputTokens":  4096,
			"responseMimeType": "application/json",
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return core.RawExtraction{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return core.RawExtraction{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.RawExtraction{}, classifyNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return core.RawExtraction{}, classifyHTTPError(resp.StatusCode, string(body))
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return core.RawExtraction{}, fmt.Errorf("decode response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return core.RawExtraction{}, &ExtractionError{
			Code:      ErrBadResponse,
			Message:   "empty Gemini response",
			Retryable: true,
		}
	}

	text := stripFences(geminiResp.Candidates[0].Content.Parts[0].Text)

	var raw core.RawExtraction
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		// Some responses wrap the object in prose despite the mime type
		// hint; fall back to scanning for the first balanced object.
		if err := extractJSON(text, &raw); err != nil {
			return core.RawExtraction{}, &ExtractionError{
				Code:    ErrBadResponse,
				Message: "parse extraction result",
				Cause:   err,
			}
		}
	}

	return raw, nil
}

func categoryList() string {
	cats := core.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// stripFences removes a markdown code fence around the payload if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// extractJSON scans text for the first balanced JSON object and unmarshals
// it into v.
func extractJSON(text string, v interface{}) error {
	start := -1
	end := -1
	braceCount := 0

	for i, c := range text {
		if c == '{' {
			if start == -1 {
				start = i
			}
			braceCount++
		} else if c == '}' {
			braceCount--
			if braceCount == 0 && start != -1 {
				end = i + 1
				break
			}
		}
	}

	if start == -1 || end == -1 {
		return fmt.Errorf("no JSON object found in response")
	}

	return json.Unmarshal([]byte(text[start:end]), v)
}

func classifyNetworkError(err error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrGeminiUnavailable,
		Message:   "Gemini API request failed",
		Retryable: true,
		Cause:     err,
	}
}

func classifyHTTPError(statusCode int, body string) *ExtractionError {
	if statusCode == http.StatusTooManyRequests {
		return &ExtractionError{
			Code:      ErrGeminiRateLimited,
			Message:   "Gemini API rate limited",
			Retryable: true,
		}
	}
	return &ExtractionError{
		Code:      ErrGeminiUnavailable,
		Message:   fmt.Sprintf("Gemini API error (HTTP %d): %s", statusCode, body),
		Retryable: statusCode >= 500,
	}
}
