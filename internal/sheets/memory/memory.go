// Package memory is an in-memory ReceiptWriter for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"jangbu/internal/core"
	ports "jangbu/internal/sheets"
)

// Row is one mirrored line item.
type Row struct {
	Date       string
	Store      string
	Item       string
	Category   string
	Quantity   float64
	UnitPrice  float64
	NetAmount  float64
	Currency   string
	HomeAmount float64
	ReceiptID  string
}

type Writer struct {
	mu   sync.Mutex
	rows []Row
}

var _ ports.ReceiptWriter = (*Writer)(nil)

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) AppendReceipt(_ context.Context, rec core.Receipt) (string, error) {
	if len(rec.Items) == 0 {
		return "", core.ErrNoItems
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	start := len(w.rows) + 1
	for _, it := range rec.Items {
		w.rows = append(w.rows, Row{
			Date:       rec.Summary.Date,
			Store:      rec.Summary.Store,
			Item:       it.Name,
			Category:   string(it.Category),
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			NetAmount:  it.NetAmount,
			Currency:   it.Currency,
			HomeAmount: it.HomeAmount,
			ReceiptID:  rec.Summary.ID,
		})
	}

	return fmt.Sprintf("memory!A%d:J%d", start, len(w.rows)), nil
}

// Rows returns a copy of the mirrored rows.
func (w *Writer) Rows() []Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Row, len(w.rows))
	copy(out, w.rows)
	return out
}
