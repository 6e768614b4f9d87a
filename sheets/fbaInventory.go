package sheets

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/mmdatafocus/sales_recon/models"
	"github.com/xuri/excelize/v2"
)

var ErrNoFbaLayout = errors.New("fba inventory layout not configured")

// The sheet only knows OK and NG; a skipped SKU is already in line and counts as OK.
const (
	resultOK = "OK"
	resultNG = "NG"
)

func resultText(st models.AdjustmentStatus) string {
	if st == models.AdjustmentStatusError {
		return resultNG
	}
	return resultOK
}

func parseResult(text string) models.AdjustmentStatus {
	switch strings.ToUpper(text) {
	case resultOK:
		return models.AdjustmentStatusOK
	case resultNG, string(models.AdjustmentStatusError):
		return models.AdjustmentStatusError
	case string(models.AdjustmentStatusSkip):
		return models.AdjustmentStatusSkip
	}
	return ""
}

// doneFill greys out finished rows.
var doneFill = excelize.Fill{Type: "pattern", Color: []string{"D3D3D3"}, Pattern: 1}

func (w *Workbook) fbaColumns() (sku, count, result, message int, err error) {
	l := w.cfg.FbaInventory
	if l.Sheet == "" || l.Sku == "" || l.Count == "" || l.Result == "" {
		return 0, 0, 0, 0, ErrNoFbaLayout
	}
	cols, err := w.columns(l.Sheet, l.Sku, l.Count, l.Result, l.Message)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return cols[0], cols[1], cols[2], cols[3], nil
}

// LoadFbaInventory reads one count per SKU line. Lines with an unreadable
// count get -1 so the adjustment reports them as errors.
func (w *Workbook) LoadFbaInventory(ctx context.Context) ([]models.FbaInventoryCount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	skuCol, countCol, resultCol, messageCol, err := w.fbaColumns()
	if err != nil {
		return nil, err
	}
	rows, err := w.rows(w.cfg.FbaInventory.Sheet)
	if err != nil {
		return nil, err
	}
	var counts []models.FbaInventoryCount
	for i := w.cfg.FbaInventory.DataStartRow - 1; i < len(rows); i++ {
		row := rows[i]
		sku := cell(row, skuCol)
		if sku == "" {
			continue
		}
		n, err := strconv.Atoi(strings.ReplaceAll(cell(row, countCol), ",", ""))
		if err != nil {
			n = -1
		}
		counts = append(counts, models.FbaInventoryCount{
			ID:      models.RowID(i + 1),
			Sku:     sku,
			Count:   n,
			Status:  parseResult(cell(row, resultCol)),
			Message: cell(row, messageCol),
		})
	}
	return counts, nil
}

func (w *Workbook) WriteFbaResults(ctx context.Context, results []models.FbaInventoryCount) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, _, resultCol, messageCol, err := w.fbaColumns()
	if err != nil {
		return err
	}
	sheet := w.cfg.FbaInventory.Sheet
	if _, err := w.rows(sheet); err != nil {
		return err
	}
	lastCol := resultCol
	if messageCol > lastCol {
		lastCol = messageCol
	}
	style, err := w.file.NewStyle(&excelize.Style{Fill: doneFill})
	if err != nil {
		return err
	}
	for _, res := range results {
		r := int(res.ID)
		if err := w.file.SetCellStr(sheet, cellName(resultCol, r), resultText(res.Status)); err != nil {
			return err
		}
		if messageCol > 0 {
			if err := w.file.SetCellStr(sheet, cellName(messageCol, r), res.Message); err != nil {
				return err
			}
		}
		if res.Status != models.AdjustmentStatusError {
			if err := w.file.SetCellStyle(sheet, cellName(1, r), cellName(lastCol, r), style); err != nil {
				return err
			}
		}
	}
	return nil
}
