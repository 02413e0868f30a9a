package worker

import (
	"context"
	"errors"
	"testing"

	"jangbu/internal/amqp"
	"jangbu/internal/core"
	"jangbu/internal/sheets/memory"
)

type fakeSource struct {
	receipts map[string]core.Receipt
	synced   map[string]bool
	getErr   error
}

func newFakeSource(receipts ...core.Receipt) *fakeSource {
	s := &fakeSource{
		receipts: make(map[string]core.Receipt),
		synced:   make(map[string]bool),
	}
	for _, r := range receipts {
		s.receipts[r.Summary.ID] = r
	}
	return s
}

func (s *fakeSource) GetReceipt(ctx context.Context, id string) (core.Receipt, error) {
	if s.getErr != nil {
		return core.Receipt{}, s.getErr
	}
	rec, ok := s.receipts[id]
	if !ok {
		return core.Receipt{}, errors.New("receipt not found")
	}
	return rec, nil
}

func (s *fakeSource) MarkSynced(ctx context.Context, id string) error {
	s.synced[id] = true
	return nil
}

func (s *fakeSource) ListUnsynced(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	for id := range s.receipts {
		if !s.synced[id] {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func testReceipt(id string) core.Receipt {
	return core.Receipt{
		Summary: core.ReceiptSummary{
			ID:             id,
			Store:          "Mega Coffee",
			Date:           "2026-03-02",
			NativeCurrency: "KRW",
			HomeTotal:      4500,
		},
		Items: []core.LineItem{
			{Name: "Americano", UnitPrice: 4500, Quantity: 1, NetAmount: 4500, Currency: "KRW", HomeAmount: 4500, Category: core.CategoryCoffee},
		},
	}
}

func TestHandleSyncMessage(t *testing.T) {
	source := newFakeSource(testReceipt("r1"))
	writer := memory.NewWriter()
	w := NewSyncWorker(source, writer, 10)

	msg := amqp.NewReceiptRecordedMessage("r1")
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}

	if len(writer.Rows()) != 1 {
		t.Errorf("sheet rows = %d, want 1", len(writer.Rows()))
	}
	if !source.synced["r1"] {
		t.Error("receipt not marked synced")
	}
}

func TestHandleSyncMessageUnknownReceipt(t *testing.T) {
	w := NewSyncWorker(newFakeSource(), memory.NewWriter(), 10)

	msg := amqp.NewReceiptRecordedMessage("missing")
	if err := w.HandleSyncMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown receipt")
	}
}

func TestProcessPendingDrainsBacklog(t *testing.T) {
	source := newFakeSource(testReceipt("r1"), testReceipt("r2"))
	writer := memory.NewWriter()
	w := NewSyncWorker(source, writer, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	if len(writer.Rows()) != 2 {
		t.Errorf("sheet rows = %d, want 2", len(writer.Rows()))
	}
	if !source.synced["r1"] || !source.synced["r2"] {
		t.Errorf("synced map = %v, want both receipts", source.synced)
	}

	// A second pass finds nothing left to do.
	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("second ProcessPending: %v", err)
	}
	if len(writer.Rows()) != 2 {
		t.Errorf("sheet rows after second pass = %d, want 2", len(writer.Rows()))
	}
}

func TestStartupSyncCheckContinuesPastFailures(t *testing.T) {
	source := newFakeSource(testReceipt("r1"))
	source.receipts["broken"] = core.Receipt{Summary: core.ReceiptSummary{ID: "broken"}}
	writer := memory.NewWriter()
	w := NewSyncWorker(source, writer, 10)

	// The broken receipt has no items and the writer rejects it; the good
	// one must still go through.
	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("StartupSyncCheck: %v", err)
	}
	if !source.synced["r1"] {
		t.Error("good receipt not synced")
	}
	if source.synced["broken"] {
		t.Error("item-less receipt marked synced")
	}
}
