package sheets

import (
	"context"

	"jangbu/internal/core"
)

// ReceiptWriter mirrors a ledger receipt into a spreadsheet, one row per
// line item. It returns a reference to the written range.
type ReceiptWriter interface {
	AppendReceipt(ctx context.Context, rec core.Receipt) (rowRef string, err error)
}
