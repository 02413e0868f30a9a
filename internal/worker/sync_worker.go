// Package worker mirrors recorded receipts from SQLite into a spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jangbu/internal/amqp"
	"jangbu/internal/core"
	"jangbu/internal/log"
	"jangbu/internal/sheets"
	"jangbu/internal/storage"
)

// ReceiptSource is the slice of the storage layer the worker needs: load a
// receipt, walk the unsynced backlog, and mark rows done.
type ReceiptSource interface {
	GetReceipt(ctx context.Context, id string) (core.Receipt, error)
	MarkSynced(ctx context.Context, id string) error
	ListUnsynced(ctx context.Context, limit int) ([]string, error)
}

// SyncWorker drains receipt-recorded messages and the periodic backlog into
// the configured sheet writer.
type SyncWorker struct {
	storage   ReceiptSource
	writer    sheets.ReceiptWriter
	batchSize int
}

var _ ReceiptSource = (*storage.SQLiteRepository)(nil)

func NewSyncWorker(storage ReceiptSource, writer sheets.ReceiptWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single receipt-recorded message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ReceiptRecordedMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		log.FieldReceiptID, msg.ReceiptID,
		"timestamp", msg.Timestamp)

	return w.syncReceipt(ctx, msg.ReceiptID)
}

// ProcessPending mirrors up to batchSize receipts that have no synced
// marker yet. It is the recovery path for lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	ids, err := w.storage.ListUnsynced(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unsynced receipts: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing unsynced receipts", "count", len(ids))

	for _, id := range ids {
		if err := w.syncReceipt(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync receipt", log.FieldReceiptID, id, log.FieldError, err)
		}
	}
	return nil
}

// StartupSyncCheck drains the backlog accumulated while the worker was
// down, using a larger batch than the periodic pass.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	ids, err := w.storage.ListUnsynced(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list unsynced receipts at startup: %w", err)
	}
	if len(ids) == 0 {
		slog.InfoContext(ctx, "No unsynced receipts found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found unsynced receipts on startup", "count", len(ids))

	synced, failed := 0, 0
	for _, id := range ids {
		if err := w.syncReceipt(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync receipt during startup", log.FieldReceiptID, id, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(ids),
		"synced", synced,
		"errors", failed)
	return nil
}

// RunPeriodic runs the backlog pass on the given interval until the context
// is cancelled.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sync pass failed", "error", err)
			}
		}
	}
}

func (w *SyncWorker) syncReceipt(ctx context.Context, id string) error {
	rec, err := w.storage.GetReceipt(ctx, id)
	if err != nil {
		return fmt.Errorf("load receipt %s: %w", id, err)
	}

	ref, err := w.writer.AppendReceipt(ctx, rec)
	if err != nil {
		return fmt.Errorf("append receipt %s to sheet: %w", id, err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		// The rows are in the sheet; a retry will duplicate them, so losing
		// the marker is worth a loud log line.
		slog.ErrorContext(ctx, "Failed to mark receipt as synced", log.FieldReceiptID, id, log.FieldError, err)
	}

	slog.InfoContext(ctx, "Receipt synced",
		log.FieldReceiptID, id,
		log.FieldSheetsRef, ref,
		log.FieldStore, rec.Summary.Store,
		log.FieldItemCount, len(rec.Items),
		log.FieldOperation, log.OpSync)
	return nil
}
