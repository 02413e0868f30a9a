// Package advisor turns the accumulated ledger into personalized financial
// advice by prompting Gemini with the aggregate spending picture.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"jangbu/internal/core"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Turn is one message of the running consultation. Role is "user" or
// "model", matching the Gemini contents schema.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Client is a text-only Gemini client for the advisor chat.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// Ask answers one consultation turn. The system instruction carries the
// whole aggregate picture so the model grounds its advice in the user's
// actual spending; history holds the prior turns in order.
func (c *Client) Ask(ctx context.Context, receipts []core.Receipt, history []Turn, question string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("Gemini API key not configured")
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("empty question")
	}
	if len(receipts) == 0 {
		return "", core.ErrEmptyLedger
	}

	instruction := BuildInstruction(receipts)

	contents := make([]map[string]interface{}, 0, len(history)+1)
	for _, t := range history {
		role := t.Role
		if role != "model" {
			role = "user"
		}
		contents = append(contents, map[string]interface{}{
			"role":  role,
			"parts": []map[string]string{{"text": t.Text}},
		})
	}
	contents = append(contents, map[string]interface{}{
		"role":  "user",
		"parts": []map[string]string{{"text": question}},
	})

	requestBody := map[string]interface{}{
		"system_instruction": map[string]interface{}{
			"parts": []map[string]string{{"text": instruction}},
		},
		"contents": contents,
		"generationConfig": map[string]interface{}{
			"temperature":     0.7,
			"maxOutputTokens": 2048,
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Gemini API error %d: %s", resp.StatusCode, string(body))
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
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty Gemini response")
	}

	return strings.TrimSpace(geminiResp.Candidates[0].Content.Parts[0].Text), nil
}

// BuildInstruction renders the system instruction from the accumulated
// receipts: total spend, category breakdown, behavioral-class breakdown,
// impulse index, and the flattened item list.
func BuildInstruction(receipts []core.Receipt) string {
	var items []core.LineItem
	var total float64
	for _, r := range receipts {
		items = append(items, r.Items...)
		total += r.Summary.HomeTotal
	}

	var b strings.Builder
	b.WriteString("You are a supportive, friendly, and highly knowledgeable financial expert. ")
	b.WriteString("Your role is to provide personalized advice on saving money, budgeting, and making smarter consumption choices.\n\n")
	fmt.Fprintf(&b, "The user's cumulative spending data is as follows:\n")
	fmt.Fprintf(&b, "- Total accumulated spending: %.0f\n", total)

	b.WriteString("- Category breakdown (category, amount):\n")
	for _, line := range sortedAmountLines(stringKeyed(core.SumByCategory(items))) {
		fmt.Fprintf(&b, "  %s\n", line)
	}

	b.WriteString("- Behavioral class breakdown (class, amount):\n")
	for _, line := range sortedAmountLines(classKeyed(core.SumByClass(items))) {
		fmt.Fprintf(&b, "  %s\n", line)
	}

	fmt.Fprintf(&b, "- Impulse index (0 to 1, higher means more habitual/impulsive spending): %.3f\n", core.ImpulseIndex(items))

	b.WriteString("- Purchased items (name, category, amount):\n")
	for _, it := range items {
		fmt.Fprintf(&b, "  %s | %s | %.0f\n", it.Name, it.Category, it.HomeAmount)
	}

	b.WriteString("\nBase all your advice on this data. When asked for advice, refer directly to the spending patterns above. ")
	b.WriteString("Keep your tone professional yet encouraging. Respond with the advice only, without greetings.")
	return b.String()
}

func stringKeyed(m map[core.Category]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

func classKeyed(m map[core.SpendClass]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

// sortedAmountLines formats a name→amount map as lines ordered by amount
// descending, then name, so the instruction is deterministic.
func sortedAmountLines(m map[string]float64) []string {
	type entry struct {
		name   string
		amount float64
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, entry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].amount != entries[j].amount {
			return entries[i].amount > entries[j].amount
		}
		return entries[i].name < entries[j].name
	})
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%s: %.0f", e.name, e.amount)
	}
	return lines
}
