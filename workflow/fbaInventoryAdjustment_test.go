package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/sales_recon/models"
)

func TestProcessFbaInventoryAdjustment(t *testing.T) {
	sold := unit(4, "G")
	sold.SoldOrDisposed = true
	store := models.NewMemoryStore([]models.LedgerRow{unit(1, "F"), unit(2, "F"), unit(3, "F"), sold})
	store.SetFbaInventory([]models.FbaInventoryCount{
		{ID: 2, Sku: "F", Count: 1},
		{ID: 3, Sku: "G", Count: 1},
		{ID: 4, Sku: "X", Count: 1},
		{ID: 5, Sku: "F", Count: 3, Status: models.AdjustmentStatusOK},
	})

	summary, err := ProcessFbaInventoryAdjustment(context.Background(), quietLogger(), storesOf(store))
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 || summary.Mutations != 3 {
		t.Fatalf("summary: %+v", summary)
	}
	for _, id := range []models.RowID{1, 2} {
		if !ledgerRow(t, store, id).SoldOrDisposed {
			t.Fatalf("row %d should be sold", id)
		}
	}
	if ledgerRow(t, store, 3).SoldOrDisposed || ledgerRow(t, store, 4).SoldOrDisposed {
		t.Fatalf("rows 3 and 4 should be unsold")
	}

	counts, _ := store.LoadFbaInventory(context.Background())
	want := map[models.RowID]models.AdjustmentStatus{
		2: models.AdjustmentStatusOK,
		3: models.AdjustmentStatusOK,
		4: models.AdjustmentStatusError,
		5: models.AdjustmentStatusOK,
	}
	for _, c := range counts {
		if c.Status != want[c.ID] {
			t.Fatalf("line %d status=%s want %s (%s)", c.ID, c.Status, want[c.ID], c.Message)
		}
	}

	again, err := ProcessFbaInventoryAdjustment(context.Background(), quietLogger(), storesOf(store))
	if err != nil {
		t.Fatalf("second adjust: %v", err)
	}
	if again.Total != 1 || again.Failed != 1 || again.Mutations != 0 {
		t.Fatalf("only the failed line should be retried: %+v", again)
	}
}

func TestProcessFbaInventoryAdjustmentNeedsStores(t *testing.T) {
	_, err := ProcessFbaInventoryAdjustment(context.Background(), quietLogger(), Stores{})
	if !errors.Is(err, ErrMissingFbaStore) {
		t.Fatalf("expected ErrMissingFbaStore, got %v", err)
	}
}
