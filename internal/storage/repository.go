// Package storage provides the SQLite-backed ledger store.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"jangbu/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements ledger.Store on a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements ledger.Store. The receipt and its items are written in
// one transaction; a summary ID that already exists inserts nothing and
// reports false.
func (r *SQLiteRepository) Append(ctx context.Context, rec core.Receipt) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := rec.Summary
	res, err := tx.ExecContext(ctx, `
		INSERT INTO receipts (id, store, location, date, native_total, native_currency, tax_home, tip_home, home_total, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		s.ID, s.Store, s.Location, s.Date, s.NativeTotal, s.NativeCurrency, s.TaxHome, s.TipHome, s.HomeTotal, s.SourceID)
	if err != nil {
		return false, fmt.Errorf("insert receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Already recorded; dedup hit.
		return false, nil
	}

	for _, it := range rec.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (receipt_id, name, unit_price, quantity, gross_amount, allocated_discount, net_amount, currency, home_amount, category)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, it.Name, it.UnitPrice, it.Quantity, it.GrossAmount, it.AllocatedDiscount, it.NetAmount, it.Currency, it.HomeAmount, string(it.Category))
		if err != nil {
			return false, fmt.Errorf("insert line item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Receipt saved to SQLite",
		"id", s.ID,
		"store", s.Store,
		"items", len(rec.Items),
		"home_total", s.HomeTotal)
	return true, nil
}

// Reset implements ledger.Store by clearing both tables.
func (r *SQLiteRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM line_items`); err != nil {
		return fmt.Errorf("delete line items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM receipts`); err != nil {
		return fmt.Errorf("delete receipts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Ledger reset")
	return nil
}

// Snapshot implements ledger.Store, returning receipts in insertion order.
func (r *SQLiteRepository) Snapshot(ctx context.Context) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, store, location, date, native_total, native_currency, tax_home, tip_home, home_total, source_id
		FROM receipts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []core.Receipt
	index := make(map[string]int)
	for rows.Next() {
		var s core.ReceiptSummary
		if err := rows.Scan(&s.ID, &s.Store, &s.Location, &s.Date, &s.NativeTotal, &s.NativeCurrency, &s.TaxHome, &s.TipHome, &s.HomeTotal, &s.SourceID); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		index[s.ID] = len(receipts)
		receipts = append(receipts, core.Receipt{Summary: s})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT receipt_id, name, unit_price, quantity, gross_amount, allocated_discount, net_amount, currency, home_amount, category
		FROM line_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var receiptID, category string
		var it core.LineItem
		if err := itemRows.Scan(&receiptID, &it.Name, &it.UnitPrice, &it.Quantity, &it.GrossAmount, &it.AllocatedDiscount, &it.NetAmount, &it.Currency, &it.HomeAmount, &category); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		it.Category = core.Category(category)
		if i, ok := index[receiptID]; ok {
			receipts[i].Items = append(receipts[i].Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}

	return receipts, nil
}

// GetReceipt loads one receipt with its items, for the sync worker.
func (r *SQLiteRepository) GetReceipt(ctx context.Context, id string) (core.Receipt, error) {
	var s core.ReceiptSummary
	err := r.db.QueryRowContext(ctx, `
		SELECT id, store, location, date, native_total, native_currency, tax_home, tip_home, home_total, source_id
		FROM receipts WHERE id = ?`, id).
		Scan(&s.ID, &s.Store, &s.Location, &s.Date, &s.NativeTotal, &s.NativeCurrency, &s.TaxHome, &s.TipHome, &s.HomeTotal, &s.SourceID)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT name, unit_price, quantity, gross_amount, allocated_discount, net_amount, currency, home_amount, category
		FROM line_items WHERE receipt_id = ? ORDER BY id`, id)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("query line items for %s: %w", id, err)
	}
	defer rows.Close()

	rec := core.Receipt{Summary: s}
	for rows.Next() {
		var category string
		var it core.LineItem
		if err := rows.Scan(&it.Name, &it.UnitPrice, &it.Quantity, &it.GrossAmount, &it.AllocatedDiscount, &it.NetAmount, &it.Currency, &it.HomeAmount, &category); err != nil {
			return core.Receipt{}, fmt.Errorf("scan line item: %w", err)
		}
		it.Category = core.Category(category)
		rec.Items = append(rec.Items, it)
	}
	return rec, rows.Err()
}

// MarkSynced records that a receipt's rows reached the mirror sheet.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE receipts SET synced_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark synced %s: %w", id, err)
	}
	return nil
}

// ListUnsynced returns receipt IDs that never reached the mirror sheet,
// oldest first, so the worker can catch up after downtime.
func (r *SQLiteRepository) ListUnsynced(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM receipts WHERE synced_at IS NULL ORDER BY created_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsynced: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
