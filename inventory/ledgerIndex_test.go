package inventory

import (
	"testing"

	"github.com/mmdatafocus/sales_recon/models"
)

func ledgerOf(specs ...models.LedgerRow) []models.LedgerRow {
	return append([]models.LedgerRow{}, specs...)
}

func unit(id int, sku string) models.LedgerRow {
	return models.LedgerRow{ID: models.RowID(id), Sku: sku, Received: true, OnSale: true}
}

func soldUnit(id int, sku, orderNumber string) models.LedgerRow {
	return models.LedgerRow{ID: models.RowID(id), Sku: sku, Received: true, SoldOrDisposed: true, OrderNumber: orderNumber}
}

func TestFindNextAvailableSkipsSoldAndConsumed(t *testing.T) {
	idx := NewLedgerIndex(ledgerOf(
		unit(1, "B"),
		soldUnit(2, "A", "X-1"),
		unit(3, " A "),
		unit(4, "A"),
	))

	row, ok := idx.FindNextAvailable("A")
	if !ok || row.ID != 3 {
		t.Fatalf("expected row 3 (trimmed sku, sold row skipped), got %v ok=%v", row.ID, ok)
	}
	idx.MarkConsumed(3)

	row, ok = idx.FindNextAvailable(" A")
	if !ok || row.ID != 4 {
		t.Fatalf("expected row 4 after consuming 3, got %v ok=%v", row.ID, ok)
	}
	idx.MarkConsumed(4)

	if _, ok := idx.FindNextAvailable("A"); ok {
		t.Fatalf("expected no available row once all A units are used")
	}
}

func TestFindNextAvailableIsCaseSensitiveAndIgnoresBlank(t *testing.T) {
	idx := NewLedgerIndex(ledgerOf(unit(1, "abc")))
	if _, ok := idx.FindNextAvailable("ABC"); ok {
		t.Fatalf("sku matching must be exact")
	}
	if _, ok := idx.FindNextAvailable("   "); ok {
		t.Fatalf("blank sku must never match")
	}
}

func TestMarkConsumedIsIdempotent(t *testing.T) {
	idx := NewLedgerIndex(ledgerOf(unit(1, "A"), unit(2, "A")))
	idx.MarkConsumed(1)
	idx.MarkConsumed(1)
	if idx.ConsumedCount() != 1 {
		t.Fatalf("consumed=%d want 1", idx.ConsumedCount())
	}
	row, ok := idx.FindNextAvailable("A")
	if !ok || row.ID != 2 {
		t.Fatalf("expected row 2, got %v", row.ID)
	}
}

func TestMarkConsumedOutOfOrder(t *testing.T) {
	idx := NewLedgerIndex(ledgerOf(unit(1, "A"), unit(2, "A"), unit(3, "A")))
	idx.MarkConsumed(2)
	if row, _ := idx.FindNextAvailable("A"); row.ID != 1 {
		t.Fatalf("expected row 1, got %v", row.ID)
	}
	idx.MarkConsumed(1)
	if row, _ := idx.FindNextAvailable("A"); row.ID != 3 {
		t.Fatalf("expected row 3, got %v", row.ID)
	}
}

func TestFindByOrderNumberIgnoresConsumedSet(t *testing.T) {
	idx := NewLedgerIndex(ledgerOf(unit(1, "A"), soldUnit(2, "A", "249-1"), soldUnit(3, "A", "249-1")))
	idx.MarkConsumed(2)
	row, ok := idx.FindByOrderNumber(" 249-1 ")
	if !ok || row.ID != 2 {
		t.Fatalf("expected first row with order number, got %v ok=%v", row.ID, ok)
	}
	if _, ok := idx.FindByOrderNumber("nope"); ok {
		t.Fatalf("unexpected match")
	}
}

func TestAssignOrderNumberMakesRowFindable(t *testing.T) {
	idx := NewLedgerIndex(ledgerOf(unit(1, "A"), unit(2, "A")))
	idx.AssignOrderNumber(2, "ORD-9")
	row, ok := idx.FindByOrderNumber("ORD-9")
	if !ok || row.ID != 2 {
		t.Fatalf("expected row 2, got %v ok=%v", row.ID, ok)
	}
	if got, _ := idx.Row(2); got.OrderNumber != "ORD-9" {
		t.Fatalf("order number not recorded on snapshot copy: %q", got.OrderNumber)
	}
}

func TestFindAllByOrderNumber(t *testing.T) {
	idx := NewLedgerIndex(ledgerOf(soldUnit(1, "A", "ORD-3"), unit(2, "A"), soldUnit(3, "B", "ORD-3"), soldUnit(4, "A", "ORD-4")))
	idx.AssignOrderNumber(2, "ORD-3")
	idx.AssignOrderNumber(1, "ORD-5")
	rows := idx.FindAllByOrderNumber(" ORD-3 ")
	if len(rows) != 2 || rows[0].ID != 2 || rows[1].ID != 3 {
		t.Fatalf("expected rows 2 and 3, got %+v", rows)
	}
	if row, ok := idx.FindByOrderNumber("ORD-3"); !ok || row.ID != 2 {
		t.Fatalf("reassigned row should no longer match: %v ok=%v", row.ID, ok)
	}
	if idx.FindAllByOrderNumber("") != nil || idx.FindAllByOrderNumber("nope") != nil {
		t.Fatalf("unexpected match")
	}
}

func TestIndexAccessors(t *testing.T) {
	idx := NewLedgerIndex(ledgerOf(unit(1, "A"), unit(2, "A")))
	if idx.Len() != 2 {
		t.Fatalf("len=%d", idx.Len())
	}
	if _, ok := idx.Row(9); ok {
		t.Fatalf("row outside the snapshot should not be found")
	}
	idx.MarkConsumed(2)
	idx.MarkConsumed(2)
	if !idx.IsConsumed(2) || idx.IsConsumed(1) || idx.ConsumedCount() != 1 {
		t.Fatalf("consumed: 1=%v 2=%v count=%d", idx.IsConsumed(1), idx.IsConsumed(2), idx.ConsumedCount())
	}
}

func TestIndexCopiesSnapshot(t *testing.T) {
	rows := ledgerOf(unit(1, "A"))
	idx := NewLedgerIndex(rows)
	rows[0].SoldOrDisposed = true
	if _, ok := idx.FindNextAvailable("A"); !ok {
		t.Fatalf("index must not observe caller mutations")
	}
}
