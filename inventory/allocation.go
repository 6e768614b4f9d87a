package inventory

import "github.com/mmdatafocus/sales_recon/models"

type AllocationResult struct {
	Requested int
	Rows      []models.LedgerRow
	Shortfall int
}

func (r AllocationResult) RowIDs() []models.RowID {
	ids := make([]models.RowID, 0, len(r.Rows))
	for _, row := range r.Rows {
		ids = append(ids, row.ID)
	}
	return ids
}

// Allocate consumes up to quantity available rows for sku, in ledger order.
// Each row is marked consumed before the next search so a row is never handed out twice.
// The first miss stops the loop; quantity <= 0 counts as 1.
func Allocate(sku string, quantity int, index *LedgerIndex) AllocationResult {
	if quantity <= 0 {
		quantity = 1
	}
	res := AllocationResult{Requested: quantity}
	for i := 0; i < quantity; i++ {
		row, ok := index.FindNextAvailable(sku)
		if !ok {
			break
		}
		index.MarkConsumed(row.ID)
		res.Rows = append(res.Rows, row)
	}
	res.Shortfall = quantity - len(res.Rows)
	return res
}
