// Package core implements the receipt normalization pipeline: coercion of
// the loosely-typed extraction payload, discount allocation, currency
// conversion, category canonicalization and aggregation.
package core

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawExtraction is the untrusted payload returned by the extraction service.
// Every field is optional and the numeric fields may arrive as numbers,
// digit strings or garbage; nothing here is used without coercion.
type RawExtraction struct {
	StoreName      string    `json:"store_name"`
	Date           string    `json:"date"`
	StoreLocation  string    `json:"store_location"`
	TotalAmount    any       `json:"total_amount"`
	TaxAmount      any       `json:"tax_amount"`
	TipAmount      any       `json:"tip_amount"`
	DiscountAmount any       `json:"discount_amount"`
	CurrencyUnit   string    `json:"currency_unit"`
	Items          []RawItem `json:"items"`
}

// RawItem is one extracted purchase line. Price is the VAT-inclusive unit
// price before discount allocation; Category is a free-text label.
type RawItem struct {
	Name     string `json:"name"`
	Price    any    `json:"price"`
	Quantity any    `json:"quantity"`
	Category string `json:"category"`
}

// coerceAmount turns a loosely-typed extraction value into a float64,
// defaulting to 0 on absence or parse failure. Thousands separators in
// string values are tolerated.
func coerceAmount(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// coerceQuantity is coerceAmount with a default of 1: a line item with an
// unreadable or non-positive quantity still counts as one unit.
func coerceQuantity(v any) float64 {
	if v == nil {
		return 1
	}
	q := coerceAmount(v)
	if q <= 0 {
		return 1
	}
	return q
}
