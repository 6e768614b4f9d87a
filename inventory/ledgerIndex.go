package inventory

import (
	"strings"

	"github.com/mmdatafocus/sales_recon/models"
)

// LedgerIndex is a searchable view over one ledger snapshot plus the set of
// rows consumed so far in the current run. It is not safe for concurrent use.
type LedgerIndex struct {
	rows     []models.LedgerRow
	position map[models.RowID]int

	// positions per trimmed SKU in ledger order, and how far each list is known to be exhausted
	bySku  map[string][]int
	cursor map[string]int

	byOrderNumber map[string]int
	consumed      map[models.RowID]struct{}
}

func NewLedgerIndex(rows []models.LedgerRow) *LedgerIndex {
	x := &LedgerIndex{
		rows:          make([]models.LedgerRow, len(rows)),
		position:      make(map[models.RowID]int, len(rows)),
		bySku:         map[string][]int{},
		cursor:        map[string]int{},
		byOrderNumber: map[string]int{},
		consumed:      map[models.RowID]struct{}{},
	}
	copy(x.rows, rows)
	for i, row := range x.rows {
		if _, dup := x.position[row.ID]; !dup {
			x.position[row.ID] = i
		}
		if sku := strings.TrimSpace(row.Sku); sku != "" {
			x.bySku[sku] = append(x.bySku[sku], i)
		}
		if on := strings.TrimSpace(row.OrderNumber); on != "" {
			if _, seen := x.byOrderNumber[on]; !seen {
				x.byOrderNumber[on] = i
			}
		}
	}
	return x
}

// Len is the number of rows in the snapshot.
func (x *LedgerIndex) Len() int {
	return len(x.rows)
}

// Row returns the snapshot copy of a row, including order numbers assigned during the run.
// The second result is false for an ID outside the snapshot.
func (x *LedgerIndex) Row(id models.RowID) (models.LedgerRow, bool) {
	i, ok := x.position[id]
	if !ok {
		return models.LedgerRow{}, false
	}
	return x.rows[i], true
}

// FindNextAvailable returns the first row in ledger order whose trimmed SKU equals
// the trimmed sku, that is not sold/disposed and not consumed in this run.
func (x *LedgerIndex) FindNextAvailable(sku string) (models.LedgerRow, bool) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return models.LedgerRow{}, false
	}
	positions := x.bySku[sku]
	start := x.cursor[sku]
	for k := start; k < len(positions); k++ {
		row := x.rows[positions[k]]
		if !x.available(row) {
			// consumed and sold rows never become available again within a run
			if k == start {
				start++
				x.cursor[sku] = start
			}
			continue
		}
		return row, true
	}
	return models.LedgerRow{}, false
}

func (x *LedgerIndex) available(row models.LedgerRow) bool {
	if _, used := x.consumed[row.ID]; used {
		return false
	}
	return RowStatus(row) != models.LedgerStatusSoldOrDisposed
}

// MarkConsumed excludes the row from further FindNextAvailable results. Idempotent.
func (x *LedgerIndex) MarkConsumed(id models.RowID) {
	x.consumed[id] = struct{}{}
}

// IsConsumed reports whether MarkConsumed has been called for the row in this run.
func (x *LedgerIndex) IsConsumed(id models.RowID) bool {
	_, ok := x.consumed[id]
	return ok
}

// ConsumedCount is the number of distinct rows consumed so far.
func (x *LedgerIndex) ConsumedCount() int {
	return len(x.consumed)
}

// FindByOrderNumber returns the first row in ledger order carrying the order number.
// The consumed set is ignored.
func (x *LedgerIndex) FindByOrderNumber(orderNumber string) (models.LedgerRow, bool) {
	rows := x.FindAllByOrderNumber(orderNumber)
	if len(rows) == 0 {
		return models.LedgerRow{}, false
	}
	return rows[0], true
}

// FindAllByOrderNumber returns every row in ledger order currently carrying the
// order number, including ones assigned during the run. The consumed set is ignored.
func (x *LedgerIndex) FindAllByOrderNumber(orderNumber string) []models.LedgerRow {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil
	}
	first, ok := x.byOrderNumber[orderNumber]
	if !ok {
		return nil
	}
	var rows []models.LedgerRow
	for _, row := range x.rows[first:] {
		if strings.TrimSpace(row.OrderNumber) == orderNumber {
			rows = append(rows, row)
		}
	}
	return rows
}

// AssignOrderNumber records an order number on the in-memory copy of a row so that
// later refunds in the same run can find it.
func (x *LedgerIndex) AssignOrderNumber(id models.RowID, orderNumber string) {
	i, ok := x.position[id]
	if !ok {
		return
	}
	orderNumber = strings.TrimSpace(orderNumber)
	x.rows[i].OrderNumber = orderNumber
	if orderNumber == "" {
		return
	}
	if cur, seen := x.byOrderNumber[orderNumber]; !seen || i < cur {
		x.byOrderNumber[orderNumber] = i
	}
}
