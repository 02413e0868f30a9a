package core

import "errors"

// LineItem is one normalized purchase row, denominated in the receipt's
// native currency with a pre-computed home-currency amount.
type LineItem struct {
	Name              string   `json:"name"`
	UnitPrice         float64  `json:"unit_price"`
	Quantity          float64  `json:"quantity"`
	GrossAmount       float64  `json:"gross_amount"`
	AllocatedDiscount float64  `json:"allocated_discount"`
	NetAmount         float64  `json:"net_amount"`
	Currency          string   `json:"currency"`
	HomeAmount        float64  `json:"home_amount"`
	Category          Category `json:"category"`
}

// ReceiptSummary is the receipt-level roll-up. HomeTotal is the sum of the
// item home amounts plus the tip; tax is excluded because item prices are
// VAT-inclusive and adding it back would double count.
type ReceiptSummary struct {
	ID             string  `json:"id"`
	Store          string  `json:"store"`
	Location       string  `json:"location"`
	Date           string  `json:"date"` // YYYY-MM-DD
	NativeTotal    float64 `json:"native_total"`
	NativeCurrency string  `json:"native_currency"`
	TaxHome        float64 `json:"tax_home"`
	TipHome        float64 `json:"tip_home"`
	HomeTotal      float64 `json:"home_total"`
	SourceID       string  `json:"source_id"`
}

// Receipt bundles a summary with its line items, the unit the ledger stores.
type Receipt struct {
	Summary ReceiptSummary `json:"summary"`
	Items   []LineItem     `json:"items"`
}

// WarningCode identifies a non-fatal normalization adjustment.
type WarningCode string

const (
	WarnDateDefaulted     WarningCode = "date_defaulted"
	WarnLocationDefaulted WarningCode = "location_defaulted"
	WarnTotalCorrected    WarningCode = "total_corrected"
	WarnOverDiscount      WarningCode = "over_discount"
)

// Warning records an adjustment made during normalization. Reported and
// Computed are populated for total_corrected only.
type Warning struct {
	Code     WarningCode `json:"code"`
	Message  string      `json:"message"`
	Reported float64     `json:"reported,omitempty"`
	Computed float64     `json:"computed,omitempty"`
}

var (
	// ErrNoItems means the extraction carried no line items; the receipt
	// cannot produce ledger rows and is rejected as a whole.
	ErrNoItems = errors.New("extraction contains no items")

	ErrEmptyLedger = errors.New("ledger is empty")
)
