// Package services orchestrates the receipt pipeline across extraction,
// normalization, the ledger store and the sync queue.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"jangbu/internal/amqp"
	"jangbu/internal/core"
	"jangbu/internal/ledger"
)

// Extractor is the receipt-image extraction dependency.
type Extractor interface {
	ExtractReceipt(ctx context.Context, imageData []byte, mimeType string) (core.RawExtraction, error)
}

// RateSource supplies the current currency table.
type RateSource interface {
	Table(ctx context.Context) core.CurrencyTable
}

// SyncPublisher announces appended receipts to the sync worker.
type SyncPublisher interface {
	PublishReceiptRecorded(ctx context.Context, receiptID string) error
}

var _ SyncPublisher = (*amqp.Client)(nil)

// Source labels recorded on receipts that do not come from an upload.
const (
	SourceManualEntry = "Manual Entry"
	SourceImportedCSV = "Imported CSV"
)

// AnalyzeResult is the outcome of one pipeline run.
type AnalyzeResult struct {
	Receipt   core.Receipt   `json:"receipt"`
	Warnings  []core.Warning `json:"warnings,omitempty"`
	Duplicate bool           `json:"duplicate"`
}

// ReceiptService runs the extract → normalize → append → publish pipeline.
type ReceiptService struct {
	extractor  Extractor
	normalizer *core.Normalizer
	rates      RateSource
	store      ledger.Store
	publisher  SyncPublisher
}

func NewReceiptService(extractor Extractor, normalizer *core.Normalizer, rates RateSource, store ledger.Store, publisher SyncPublisher) *ReceiptService {
	return &ReceiptService{
		extractor:  extractor,
		normalizer: normalizer,
		rates:      rates,
		store:      store,
		publisher:  publisher,
	}
}

// AnalyzeUpload extracts a receipt image and records it. The ledger ID is
// derived from the upload's name and size so re-uploading the same file is
// a no-op.
func (s *ReceiptService) AnalyzeUpload(ctx context.Context, imageData []byte, mimeType, filename string) (AnalyzeResult, error) {
	raw, err := s.extractor.ExtractReceipt(ctx, imageData, mimeType)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("extract receipt: %w", err)
	}

	id := ledger.UploadID(filename, int64(len(imageData)))
	return s.record(ctx, raw, id, filename)
}

// AddManualEntry records a hand-entered receipt through the same
// normalization path as uploads. Each call gets a fresh ID.
func (s *ReceiptService) AddManualEntry(ctx context.Context, raw core.RawExtraction) (AnalyzeResult, error) {
	return s.record(ctx, raw, ledger.FreshID(), SourceManualEntry)
}

// ImportCSV replays an exported CSV through the pipeline. Rows are grouped
// into one synthetic receipt per currency; the report lists each appended
// receipt.
func (s *ReceiptService) ImportCSV(ctx context.Context, r io.Reader) ([]AnalyzeResult, error) {
	raws, err := core.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(raws) == 0 {
		return nil, core.ErrNoItems
	}

	results := make([]AnalyzeResult, 0, len(raws))
	for _, raw := range raws {
		res, err := s.record(ctx, raw, ledger.FreshID(), SourceImportedCSV)
		if err != nil {
			return nil, fmt.Errorf("import %s rows: %w", raw.CurrencyUnit, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *ReceiptService) record(ctx context.Context, raw core.RawExtraction, id, sourceID string) (AnalyzeResult, error) {
	summary, items, warnings, err := s.normalizer.Normalize(raw, s.rates.Table(ctx))
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("normalize receipt: %w", err)
	}
	summary.ID = id
	summary.SourceID = sourceID

	rec := core.Receipt{Summary: summary, Items: items}

	appended, err := s.store.Append(ctx, rec)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("append receipt: %w", err)
	}
	if !appended {
		slog.InfoContext(ctx, "Duplicate receipt skipped", "id", id)
		return AnalyzeResult{Receipt: rec, Warnings: warnings, Duplicate: true}, nil
	}

	// Sync is best effort: the receipt is already in the ledger, so a
	// broker outage must not fail the request.
	if s.publisher != nil {
		if err := s.publisher.PublishReceiptRecorded(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
		}
	}

	return AnalyzeResult{Receipt: rec, Warnings: warnings}, nil
}

// Snapshot returns the ledger contents in insertion order.
func (s *ReceiptService) Snapshot(ctx context.Context) ([]core.Receipt, error) {
	return s.store.Snapshot(ctx)
}

// Reset clears the ledger.
func (s *ReceiptService) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	return nil
}

// ExportCSV writes the whole ledger as CSV, one row per line item.
func (s *ReceiptService) ExportCSV(ctx context.Context, w io.Writer) error {
	receipts, err := s.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot ledger: %w", err)
	}
	return core.WriteCSV(w, receipts)
}

// Close closes the underlying store.
func (s *ReceiptService) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
