package inventory

import (
	"strings"
	"time"

	"github.com/mmdatafocus/sales_recon/models"
	"github.com/shopspring/decimal"
)

// LedgerMutations derives the ledger write-back for a run's outcomes.
// Allocated rows become sold and take the order number; refunded rows are
// reverted to unsold with their sale fields cleared.
func LedgerMutations(outcomes []models.Outcome, txs []models.TransactionRow) []models.LedgerMutation {
	orderNumbers := make(map[models.RowID]string, len(txs))
	for _, tx := range txs {
		orderNumbers[tx.ID] = strings.TrimSpace(tx.OrderNumber)
	}

	var mutations []models.LedgerMutation
	for _, o := range outcomes {
		switch o.Status {
		case models.OutcomeStatusAllocated:
			on := orderNumbers[o.TransactionRowID]
			for _, id := range o.AllocatedLedgerRowIDs {
				mutations = append(mutations, models.LedgerMutation{RowID: id, Field: models.LedgerFieldSoldOrDisposed, Value: true})
				if on != "" {
					mutations = append(mutations, models.LedgerMutation{RowID: id, Field: models.LedgerFieldOrderNumber, Value: on})
				}
			}
		case models.OutcomeStatusRefunded:
			for _, id := range o.AllocatedLedgerRowIDs {
				mutations = append(mutations, RevertSale(id)...)
			}
		}
	}
	return mutations
}

// RevertSale returns the mutations that put a ledger row back on the shelf.
func RevertSale(id models.RowID) []models.LedgerMutation {
	return []models.LedgerMutation{
		{RowID: id, Field: models.LedgerFieldSoldOrDisposed, Value: false},
		{RowID: id, Field: models.LedgerFieldOrderNumber, Value: ""},
		{RowID: id, Field: models.LedgerFieldSaleDate, Value: (*time.Time)(nil)},
		{RowID: id, Field: models.LedgerFieldSalePrice, Value: decimal.Zero},
		{RowID: id, Field: models.LedgerFieldDeposit, Value: decimal.Zero},
	}
}

// RecordableOutcomes filters outcomes down to those a store should write.
// Non-terminal outcomes are kept only when stampUnmatched is set.
func RecordableOutcomes(outcomes []models.Outcome, stampUnmatched bool) []models.Outcome {
	out := make([]models.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Status.IsTerminal() || stampUnmatched {
			out = append(out, o)
		}
	}
	return out
}
