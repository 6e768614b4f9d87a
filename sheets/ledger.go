package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/sales_recon/models"
	"github.com/shopspring/decimal"
)

type ledgerCols struct {
	sku, name, received, onSale, sold, orderNumber, saleDate, salePrice, deposit, shippingFee int
}

func (w *Workbook) ledgerColumns() (ledgerCols, error) {
	c := w.cfg.Ledger.Columns
	cols, err := w.columns(w.cfg.Ledger.Sheet,
		c.Sku, c.Name, c.Received, c.OnSale, c.SoldOrDisposed,
		c.OrderNumber, c.SaleDate, c.SalePrice, c.Deposit, c.ShippingFee)
	if err != nil {
		return ledgerCols{}, err
	}
	return ledgerCols{cols[0], cols[1], cols[2], cols[3], cols[4], cols[5], cols[6], cols[7], cols[8], cols[9]}, nil
}

func (c ledgerCols) forField(field models.LedgerField) int {
	switch field {
	case models.LedgerFieldSoldOrDisposed:
		return c.sold
	case models.LedgerFieldOrderNumber:
		return c.orderNumber
	case models.LedgerFieldSaleDate:
		return c.saleDate
	case models.LedgerFieldSalePrice:
		return c.salePrice
	case models.LedgerFieldDeposit:
		return c.deposit
	case models.LedgerFieldShippingFee:
		return c.shippingFee
	}
	return 0
}

func (w *Workbook) LoadLedger(ctx context.Context) ([]models.LedgerRow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sheet := w.cfg.Ledger.Sheet
	rows, err := w.rows(sheet)
	if err != nil {
		return nil, err
	}
	cols, err := w.ledgerColumns()
	if err != nil {
		return nil, err
	}

	ledger := make([]models.LedgerRow, 0, len(rows))
	for i := w.cfg.Ledger.DataStartRow - 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		ledger = append(ledger, models.LedgerRow{
			ID:             models.RowID(i + 1),
			Sku:            cell(row, cols.sku),
			Name:           cell(row, cols.name),
			Received:       parseBool(cell(row, cols.received)),
			OnSale:         parseBool(cell(row, cols.onSale)),
			SoldOrDisposed: parseBool(cell(row, cols.sold)),
			OrderNumber:    cell(row, cols.orderNumber),
			SaleDate:       parseDate(cell(row, cols.saleDate), w.loc),
			SalePrice:      parseAmount(cell(row, cols.salePrice)),
			Deposit:        parseAmount(cell(row, cols.deposit)),
			ShippingFee:    parseAmount(cell(row, cols.shippingFee)),
		})
	}
	return ledger, nil
}

// ApplyLedgerMutations writes each mutation into its cell. Mutations against a
// column the layout does not define are skipped, except the sold flag.
func (w *Workbook) ApplyLedgerMutations(ctx context.Context, mutations []models.LedgerMutation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sheet := w.cfg.Ledger.Sheet
	if _, err := w.rows(sheet); err != nil {
		return err
	}
	cols, err := w.ledgerColumns()
	if err != nil {
		return err
	}
	for _, m := range mutations {
		if !m.Field.IsValid() {
			return fmt.Errorf("ledger row %d: unknown field %q", m.RowID, m.Field)
		}
		col := cols.forField(m.Field)
		if col == 0 {
			if m.Field == models.LedgerFieldSoldOrDisposed {
				return fmt.Errorf("ledger layout has no %s column", m.Field)
			}
			continue
		}
		if err := w.writeValue(sheet, cellName(col, int(m.RowID)), m.Value); err != nil {
			return fmt.Errorf("ledger row %d %s: %w", m.RowID, m.Field, err)
		}
	}
	return nil
}

// writeValue clears the cell for nil, zero amounts and empty strings.
func (w *Workbook) writeValue(sheet, axis string, value any) error {
	switch v := value.(type) {
	case bool:
		return w.file.SetCellBool(sheet, axis, v)
	case string:
		return w.file.SetCellStr(sheet, axis, v)
	case *time.Time:
		if v == nil {
			return w.file.SetCellStr(sheet, axis, "")
		}
		return w.file.SetCellStr(sheet, axis, w.formatDate(*v))
	case time.Time:
		return w.file.SetCellStr(sheet, axis, w.formatDate(v))
	case decimal.Decimal:
		if v.IsZero() {
			return w.file.SetCellStr(sheet, axis, "")
		}
		f, _ := v.Float64()
		return w.file.SetCellFloat(sheet, axis, f, -1, 64)
	case nil:
		return w.file.SetCellStr(sheet, axis, "")
	}
	return fmt.Errorf("unsupported value type %T", value)
}
