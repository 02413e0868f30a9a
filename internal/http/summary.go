package http

import (
	"context"
	"sort"

	"jangbu/internal/core"
	"jangbu/internal/geo"
)

// StorePoint is one visited store with its resolved coordinates.
type StorePoint struct {
	Store    string    `json:"store"`
	Location string    `json:"location"`
	Spent    float64   `json:"spent"`
	Point    geo.Point `json:"point"`
}

// SummaryReport is the aggregate view of the ledger, all amounts in the
// home currency.
type SummaryReport struct {
	ReceiptCount int                `json:"receipt_count"`
	ItemCount    int                `json:"item_count"`
	HomeCurrency string             `json:"home_currency"`
	Total        float64            `json:"total"`
	ByCategory   map[string]float64 `json:"by_category"`
	ByClass      map[string]float64 `json:"by_class"`
	ImpulseIndex float64            `json:"impulse_index"`
	Stores       []StorePoint       `json:"stores"`
}

// buildSummary aggregates the ledger and geocodes each distinct store
// location. Geocoding never fails; unknown locations resolve to the
// fallback point.
func (s *Server) buildSummary(ctx context.Context, receipts []core.Receipt) SummaryReport {
	report := SummaryReport{
		ReceiptCount: len(receipts),
		HomeCurrency: s.homeCurrency,
		ByCategory:   make(map[string]float64),
		ByClass:      make(map[string]float64),
	}

	var items []core.LineItem
	spentByStore := make(map[string]float64)
	locationByStore := make(map[string]string)
	for _, rec := range receipts {
		items = append(items, rec.Items...)
		report.Total += rec.Summary.HomeTotal
		spentByStore[rec.Summary.Store] += rec.Summary.HomeTotal
		locationByStore[rec.Summary.Store] = rec.Summary.Location
	}
	report.ItemCount = len(items)

	for cat, amount := range core.SumByCategory(items) {
		report.ByCategory[string(cat)] = amount
	}
	for class, amount := range core.SumByClass(items) {
		report.ByClass[string(class)] = amount
	}
	report.ImpulseIndex = core.ImpulseIndex(items)

	stores := make([]string, 0, len(spentByStore))
	for store := range spentByStore {
		stores = append(stores, store)
	}
	sort.Strings(stores)
	for _, store := range stores {
		point := geo.Point{Lat: geo.FallbackLat, Lon: geo.FallbackLon}
		if s.geocoder != nil {
			point = s.geocoder.Locate(ctx, locationByStore[store])
		}
		report.Stores = append(report.Stores, StorePoint{
			Store:    store,
			Location: locationByStore[store],
			Spent:    spentByStore[store],
			Point:    point,
		})
	}

	return report
}
