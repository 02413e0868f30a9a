package core

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteCSVRoundTrip(t *testing.T) {
	receipts := []Receipt{
		{
			Summary: ReceiptSummary{Store: "Mart", NativeCurrency: "KRW"},
			Items: []LineItem{
				{Name: "Rice", UnitPrice: 20000, Quantity: 1, NetAmount: 20000, Currency: "KRW", HomeAmount: 20000, Category: CategoryGroceries},
				{Name: "Latte", UnitPrice: 5000, Quantity: 2, NetAmount: 10000, Currency: "KRW", HomeAmount: 10000, Category: CategoryCoffee},
			},
		},
		{
			Summary: ReceiptSummary{Store: "Diner", NativeCurrency: "USD"},
			Items: []LineItem{
				{Name: "Burger", UnitPrice: 15, Quantity: 1, NetAmount: 15, Currency: "USD", HomeAmount: 20250, Category: CategoryDiningOut},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, receipts); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "itemName,unitPrice,quantity,category,nativeTotal,currency,homeTotal") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "Latte,5000,2,Coffee & Beverages,10000,KRW,10000") {
		t.Errorf("missing latte row: %q", out)
	}

	raws, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	// One synthetic extraction per currency, in file order.
	if len(raws) != 2 {
		t.Fatalf("got %d extractions, want 2", len(raws))
	}
	if raws[0].CurrencyUnit != "KRW" || len(raws[0].Items) != 2 {
		t.Errorf("first extraction = %s with %d items, want KRW with 2", raws[0].CurrencyUnit, len(raws[0].Items))
	}
	if raws[1].CurrencyUnit != "USD" || len(raws[1].Items) != 1 {
		t.Errorf("second extraction = %s with %d items, want USD with 1", raws[1].CurrencyUnit, len(raws[1].Items))
	}
	if raws[0].StoreName != "Imported CSV" {
		t.Errorf("store = %q, want Imported CSV", raws[0].StoreName)
	}

	// Imported rows normalize cleanly through the standard pipeline.
	n := NewNormalizer(DefaultNormalizerConfig())
	summary, items, _, err := n.NormalizeAt(raws[0], testRates(), testNow)
	if err != nil {
		t.Fatalf("normalize import: %v", err)
	}
	if len(items) != 2 || !approxEqual(summary.HomeTotal, 30000) {
		t.Errorf("normalized import: %d items, home total %v", len(items), summary.HomeTotal)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := ReadCSV(strings.NewReader("itemName,unitPrice,quantity,category,nativeTotal,currency,homeTotal\n")); err != ErrNoItems {
		t.Errorf("expected ErrNoItems for header-only input, got %v", err)
	}
}
