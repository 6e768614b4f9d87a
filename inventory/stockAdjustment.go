package inventory

import (
	"fmt"
	"strings"

	"github.com/mmdatafocus/sales_recon/models"
)

// StockAdjustment is the result of aligning a SKU's unsold ledger rows with a physical count.
type StockAdjustment struct {
	Sku       string
	Status    models.AdjustmentStatus
	Unsold    int
	Target    int
	Mutations []models.LedgerMutation
	Message   string
}

// AdjustToCount flips sold flags so that exactly target rows of sku stay unsold.
// Surplus unsold rows are marked sold from the top of the ledger; missing unsold
// rows are taken back from the most recently listed sold rows.
func AdjustToCount(rows []models.LedgerRow, sku string, target int) StockAdjustment {
	sku = strings.TrimSpace(sku)
	res := StockAdjustment{Sku: sku, Target: target}
	if target < 0 {
		res.Status = models.AdjustmentStatusError
		res.Message = "在庫数が不正です"
		return res
	}

	var unsold, sold []models.RowID
	for _, row := range rows {
		if strings.TrimSpace(row.Sku) != sku || sku == "" {
			continue
		}
		if row.SoldOrDisposed {
			sold = append(sold, row.ID)
		} else {
			unsold = append(unsold, row.ID)
		}
	}
	res.Unsold = len(unsold)

	if len(unsold)+len(sold) == 0 {
		res.Status = models.AdjustmentStatusError
		res.Message = "商品管理シートにSKUが見つかりません"
		return res
	}
	if len(unsold) == target {
		res.Status = models.AdjustmentStatusSkip
		res.Message = "調整不要"
		return res
	}

	if len(unsold) > target {
		n := len(unsold) - target
		for _, id := range unsold[:n] {
			res.Mutations = append(res.Mutations, models.LedgerMutation{RowID: id, Field: models.LedgerFieldSoldOrDisposed, Value: true})
		}
		res.Message = fmt.Sprintf("Trueに変更: %d件", n)
	} else {
		n := target - len(unsold)
		for k := len(sold) - 1; k >= 0 && len(res.Mutations) < n; k-- {
			res.Mutations = append(res.Mutations, models.LedgerMutation{RowID: sold[k], Field: models.LedgerFieldSoldOrDisposed, Value: false})
		}
		res.Message = fmt.Sprintf("Falseに変更: %d件", len(res.Mutations))
	}
	res.Status = models.AdjustmentStatusOK
	return res
}
