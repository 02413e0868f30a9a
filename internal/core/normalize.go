package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// NormalizerConfig carries the deployment defaults the pipeline substitutes
// for missing extraction fields.
type NormalizerConfig struct {
	// HomeCurrency is the code everything is converted into.
	HomeCurrency string
	// DefaultLocation replaces a blank store location.
	DefaultLocation string
	// TotalTolerance is the absolute difference, in native minor units,
	// above which the reported total is overridden by the item sum.
	TotalTolerance float64
}

// DefaultNormalizerConfig matches the reference deployment: KRW home
// currency, Seoul default location, 100 minor units of total tolerance.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		HomeCurrency:    "KRW",
		DefaultLocation: "Seoul",
		TotalTolerance:  100,
	}
}

// Normalizer turns raw extractions into validated, home-currency ledger
// rows. It holds no state besides its configuration; normalizing the same
// input with the same rate table twice yields identical output.
type Normalizer struct {
	cfg NormalizerConfig
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	if cfg.HomeCurrency == "" {
		cfg.HomeCurrency = DefaultNormalizerConfig().HomeCurrency
	}
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = DefaultNormalizerConfig().DefaultLocation
	}
	if cfg.TotalTolerance <= 0 {
		cfg.TotalTolerance = DefaultNormalizerConfig().TotalTolerance
	}
	return &Normalizer{cfg: cfg}
}

// Normalize runs the pipeline with the current time as the date fallback.
func (n *Normalizer) Normalize(raw RawExtraction, rates CurrencyTable) (ReceiptSummary, []LineItem, []Warning, error) {
	return n.NormalizeAt(raw, rates, time.Now())
}

// NormalizeAt validates and converts one raw extraction. It fails only when
// the item list is empty; every other defect degrades to a default and a
// warning. The returned summary has no ID or source yet; the caller assigns
// those at the ledger-append boundary.
func (n *Normalizer) NormalizeAt(raw RawExtraction, rates CurrencyTable, now time.Time) (ReceiptSummary, []LineItem, []Warning, error) {
	if len(raw.Items) == 0 {
		return ReceiptSummary{}, nil, nil, ErrNoItems
	}

	var warnings []Warning

	// Receipt-level amounts: anything unreadable becomes zero. Discount is
	// trusted to arrive as a positive magnitude; it is not re-signed here.
	total := coerceAmount(raw.TotalAmount)
	tax := coerceAmount(raw.TaxAmount)
	tip := coerceAmount(raw.TipAmount)
	discount := coerceAmount(raw.DiscountAmount)

	currency := normalizeCurrency(raw.CurrencyUnit, n.cfg.HomeCurrency)

	date := raw.Date
	if _, err := time.Parse("2006-01-02", date); err != nil {
		date = now.Format("2006-01-02")
		warnings = append(warnings, Warning{
			Code:    WarnDateDefaulted,
			Message: fmt.Sprintf("unparseable date %q, defaulted to %s", raw.Date, date),
		})
	}

	location := trimmed(raw.StoreLocation)
	if location == "" {
		location = n.cfg.DefaultLocation
		warnings = append(warnings, Warning{
			Code:    WarnLocationDefaulted,
			Message: fmt.Sprintf("missing store location, defaulted to %s", location),
		})
	}

	items := make([]LineItem, len(raw.Items))
	var grossSum float64
	for i, ri := range raw.Items {
		price := coerceAmount(ri.Price)
		qty := coerceQuantity(ri.Quantity)
		items[i] = LineItem{
			Name:        trimmed(ri.Name),
			UnitPrice:   price,
			Quantity:    qty,
			GrossAmount: price * qty,
			Currency:    currency,
			Category:    CanonicalCategory(ri.Category),
		}
		grossSum += items[i].GrossAmount
	}

	// The item sum is treated as ground truth for the receipt total: the
	// extractor routinely reads the wrong "total" line (pre-tax vs settled),
	// so a reported total far from the internally consistent item sum loses.
	computedNet := grossSum - discount
	if math.Abs(computedNet-total) > n.cfg.TotalTolerance && computedNet > 0 {
		warnings = append(warnings, Warning{
			Code:     WarnTotalCorrected,
			Message:  fmt.Sprintf("reported total %.2f disagrees with item sum, corrected to %.2f", total, computedNet),
			Reported: total,
			Computed: computedNet,
		})
		total = computedNet
	}

	// Proportional discount allocation across the gross amounts. When the
	// discount exceeds the item sum the allocation still proceeds and net
	// amounts go negative; that gets a warning rather than a silent ledger
	// entry.
	if discount > 0 && grossSum > 0 {
		if discount > grossSum {
			warnings = append(warnings, Warning{
				Code:    WarnOverDiscount,
				Message: fmt.Sprintf("discount %.2f exceeds item sum %.2f, net amounts will be negative", discount, grossSum),
			})
		}
		rate := discount / grossSum
		for i := range items {
			items[i].AllocatedDiscount = items[i].GrossAmount * rate
			items[i].NetAmount = items[i].GrossAmount - items[i].AllocatedDiscount
		}
	} else {
		for i := range items {
			items[i].NetAmount = items[i].GrossAmount
		}
	}

	var homeSum float64
	for i := range items {
		items[i].HomeAmount = rates.Convert(items[i].NetAmount, currency, n.cfg.HomeCurrency)
		homeSum += items[i].HomeAmount
	}

	taxHome := rates.Convert(tax, currency, n.cfg.HomeCurrency)
	tipHome := rates.Convert(tip, currency, n.cfg.HomeCurrency)

	summary := ReceiptSummary{
		Store:          trimmed(raw.StoreName),
		Location:       location,
		Date:           date,
		NativeTotal:    total,
		NativeCurrency: currency,
		TaxHome:        taxHome,
		TipHome:        tipHome,
		HomeTotal:      homeSum + tipHome,
	}
	return summary, items, warnings, nil
}

// normalizeCurrency trims the extracted code and falls back to the home
// currency when the receipt carried none. The whole receipt shares one
// currency; there is no per-item override.
func normalizeCurrency(code, home string) string {
	c := trimmed(code)
	if c == "" {
		return home
	}
	return c
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
