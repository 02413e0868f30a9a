package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{"itemName", "unitPrice", "quantity", "category", "nativeTotal", "currency", "homeTotal"}

// WriteCSV exports one row per line item across all receipts. nativeTotal
// is the item's net amount in its native currency, homeTotal the converted
// amount; receipt-level tax and tip do not appear in the export.
func WriteCSV(w io.Writer, receipts []Receipt) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range receipts {
		for _, it := range r.Items {
			row := []string{
				it.Name,
				formatAmount(it.UnitPrice),
				formatAmount(it.Quantity),
				string(it.Category),
				formatAmount(it.NetAmount),
				it.Currency,
				formatAmount(it.HomeAmount),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a previously exported ledger back into raw extractions,
// one per currency found in the file, so imports run through the same
// normalization pipeline as everything else. Rows with an unreadable price
// degrade to zero just like extractor output.
func ReadCSV(r io.Reader) ([]RawExtraction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv")
	}

	start := 0
	if isCSVHeader(records[0]) {
		start = 1
	}

	itemsByCurrency := make(map[string][]RawItem)
	var order []string
	for _, rec := range records[start:] {
		if len(rec) < 7 {
			continue
		}
		currency := rec[5]
		if _, seen := itemsByCurrency[currency]; !seen {
			order = append(order, currency)
		}
		itemsByCurrency[currency] = append(itemsByCurrency[currency], RawItem{
			Name:     rec[0],
			Price:    rec[1],
			Quantity: rec[2],
			Category: rec[3],
		})
	}
	if len(order) == 0 {
		return nil, ErrNoItems
	}

	out := make([]RawExtraction, 0, len(order))
	for _, currency := range order {
		items := itemsByCurrency[currency]
		var total float64
		for _, it := range items {
			total += coerceAmount(it.Price) * coerceQuantity(it.Quantity)
		}
		out = append(out, RawExtraction{
			StoreName:    "Imported CSV",
			CurrencyUnit: currency,
			TotalAmount:  total,
			Items:        items,
		})
	}
	return out, nil
}

func isCSVHeader(rec []string) bool {
	return len(rec) > 0 && rec[0] == csvHeader[0]
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
