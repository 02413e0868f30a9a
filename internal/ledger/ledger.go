// Package ledger defines the append-only receipt ledger and its ports.
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"jangbu/internal/core"
)

// Store is the ledger port every pipeline call receives explicitly; there
// is no ambient session state. The ledger is append-only: Reset is the only
// way rows leave it.
type Store interface {
	// Append inserts a receipt unless one with the same summary ID already
	// exists. It reports whether the receipt was inserted.
	Append(ctx context.Context, r core.Receipt) (bool, error)
	// Reset clears the entire ledger.
	Reset(ctx context.Context) error
	// Snapshot returns all receipts in insertion order.
	Snapshot(ctx context.Context) ([]core.Receipt, error)
	Close() error
}

// UploadID derives the dedup key for an uploaded file from its name and
// byte size, so re-submitting the same upload never produces a second
// ledger row.
func UploadID(filename string, size int64) string {
	return fmt.Sprintf("%s-%d", filename, size)
}

// FreshID returns a unique token for receipts without a natural dedup key
// (manual entries, CSV imports).
func FreshID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("entry_%d", time.Now().UnixNano())
	}
	return "entry_" + hex.EncodeToString(b)
}
