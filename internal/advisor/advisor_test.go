package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jangbu/internal/core"
)

func sampleReceipts() []core.Receipt {
	return []core.Receipt{
		{
			Summary: core.ReceiptSummary{ID: "r1", Store: "Mega Coffee", HomeTotal: 9000},
			Items: []core.LineItem{
				{Name: "Americano", Category: core.CategoryCoffee, HomeAmount: 9000},
			},
		},
		{
			Summary: core.ReceiptSummary{ID: "r2", Store: "E-Mart", HomeTotal: 32000},
			Items: []core.LineItem{
				{Name: "Eggs", Category: core.CategoryGroceries, HomeAmount: 32000},
			},
		},
	}
}

func TestBuildInstruction(t *testing.T) {
	got := BuildInstruction(sampleReceipts())

	for _, want := range []string{
		"Total accumulated spending: 41000",
		"Groceries: 32000",
		"Coffee & Beverages: 9000",
		string(core.ClassHabit),
		"Impulse index",
		"Americano",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("instruction missing %q\n%s", want, got)
		}
	}

	// Category lines are ordered by amount descending.
	if strings.Index(got, "Groceries: 32000") > strings.Index(got, "Coffee & Beverages: 9000") {
		t.Error("category breakdown not ordered by amount")
	}
}

func TestAsk(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]interface{}{{"text": "Cut back on coffee."}},
				}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-2.5-flash").WithBaseURL(server.URL)

	history := []Turn{
		{Role: "user", Text: "How am I doing?"},
		{Role: "model", Text: "Reasonably well."},
	}
	answer, err := client.Ask(context.Background(), sampleReceipts(), history, "Where should I save?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "Cut back on coffee." {
		t.Errorf("answer = %q", answer)
	}

	contents, ok := captured["contents"].([]interface{})
	if !ok || len(contents) != 3 {
		t.Fatalf("contents length = %d, want 3 (history + question)", len(contents))
	}
	last := contents[2].(map[string]interface{})
	if last["role"] != "user" {
		t.Errorf("final turn role = %v, want user", last["role"])
	}
	if _, ok := captured["system_instruction"]; !ok {
		t.Error("request missing system_instruction")
	}
}

func TestAskValidation(t *testing.T) {
	client := NewClient("test-key", "gemini-2.5-flash")

	t.Run("empty ledger", func(t *testing.T) {
		_, err := client.Ask(context.Background(), nil, nil, "advice?")
		if !errors.Is(err, core.ErrEmptyLedger) {
			t.Errorf("err = %v, want ErrEmptyLedger", err)
		}
	})

	t.Run("blank question", func(t *testing.T) {
		_, err := client.Ask(context.Background(), sampleReceipts(), nil, "   ")
		if err == nil {
			t.Error("expected error for blank question")
		}
	})
}
