package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/models"
	"github.com/shopspring/decimal"
)

const ledgerLinkText = "リンク"

func labelFor(labels config.OutcomeLabels, status models.OutcomeStatus) string {
	switch status {
	case models.OutcomeStatusAllocated:
		return labels.Allocated
	case models.OutcomeStatusExcluded:
		return labels.Excluded
	case models.OutcomeStatusRefunded:
		return labels.Refunded
	case models.OutcomeStatusCrossReference:
		return labels.CrossReference
	}
	return ""
}

// statusFromLabel maps status cell text back to an outcome. Text written by
// hand that matches no label yields "" but still marks the row processed.
func statusFromLabel(labels config.OutcomeLabels, text string) models.OutcomeStatus {
	switch text {
	case "":
		return ""
	case labels.Allocated:
		return models.OutcomeStatusAllocated
	case labels.Excluded:
		return models.OutcomeStatusExcluded
	case labels.Refunded:
		return models.OutcomeStatusRefunded
	case labels.CrossReference:
		return models.OutcomeStatusCrossReference
	}
	if st, err := models.ParseOutcomeStatus(text); err == nil {
		return st
	}
	return ""
}

type txCols struct {
	status, refs, link, processed, transfer int

	typ, tradeStatus, sku, orderNumber, quantity, quantityText int

	description, groupKey, saleDate, deposit, shippingFee int

	salePrice []int
}

func (w *Workbook) transactionColumns(ch config.ChannelConfig) (txCols, error) {
	c := ch.Columns
	cols, err := w.columns(ch.Sheet,
		c.Status, c.LedgerRefs, c.LedgerLink, c.ProcessedDate, c.TransferDate,
		c.Type, c.TradeStatus, c.Sku, c.OrderNumber, c.Quantity, c.QuantityText,
		c.Description, c.GroupKey, c.SaleDate, c.Deposit, c.ShippingFee)
	if err != nil {
		return txCols{}, err
	}
	price, err := w.columns(ch.Sheet, c.SalePrice...)
	if err != nil {
		return txCols{}, err
	}
	return txCols{
		status: cols[0], refs: cols[1], link: cols[2], processed: cols[3], transfer: cols[4],
		typ: cols[5], tradeStatus: cols[6], sku: cols[7], orderNumber: cols[8], quantity: cols[9], quantityText: cols[10],
		description: cols[11], groupKey: cols[12], saleDate: cols[13], deposit: cols[14], shippingFee: cols[15],
		salePrice: price,
	}, nil
}

func (w *Workbook) channel(name string) (config.ChannelConfig, txCols, error) {
	ch, err := w.cfg.Channel(name)
	if err != nil {
		return config.ChannelConfig{}, txCols{}, err
	}
	if _, err := w.rows(ch.Sheet); err != nil {
		return config.ChannelConfig{}, txCols{}, err
	}
	cols, err := w.transactionColumns(ch)
	if err != nil {
		return config.ChannelConfig{}, txCols{}, err
	}
	return ch, cols, nil
}

func (w *Workbook) LoadTransactions(ctx context.Context, channel string) ([]models.TransactionRow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch, cols, err := w.channel(channel)
	if err != nil {
		return nil, err
	}
	rows, err := w.rows(ch.Sheet)
	if err != nil {
		return nil, err
	}

	txs := make([]models.TransactionRow, 0, len(rows))
	for i := ch.DataStartRow - 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		statusText := cell(row, cols.status)
		refs := cell(row, cols.refs)
		price := decimal.Zero
		for _, col := range cols.salePrice {
			price = price.Add(parseAmount(cell(row, col)))
		}
		txs = append(txs, models.TransactionRow{
			ID:                models.RowID(i + 1),
			Channel:           ch.Name,
			Type:              cell(row, cols.typ),
			TradeStatus:       cell(row, cols.tradeStatus),
			Sku:               cell(row, cols.sku),
			OrderNumber:       cell(row, cols.orderNumber),
			Quantity:          leadingInt(cell(row, cols.quantity)),
			QuantityText:      cell(row, cols.quantityText),
			Description:       cell(row, cols.description),
			GroupKey:          cell(row, cols.groupKey),
			SaleDate:          parseDate(cell(row, cols.saleDate), w.loc),
			SalePrice:         price,
			Deposit:           parseAmount(cell(row, cols.deposit)),
			ShippingFee:       parseAmount(cell(row, cols.shippingFee)),
			Status:            statusFromLabel(ch.Labels, statusText),
			LedgerRowRefs:     refs,
			ProcessedAt:       parseDate(cell(row, cols.processed), w.loc),
			TransferredAt:     parseDate(cell(row, cols.transfer), w.loc),
			AlreadyProcessed:  statusText != "",
			PriorLedgerRowIDs: models.ParseRowRefs(refs),
		})
	}
	return txs, nil
}

// WriteOutcomes stamps the processed date on every outcome. Terminal outcomes
// also get their status label, ledger refs and a link to the first ledger row.
func (w *Workbook) WriteOutcomes(ctx context.Context, channel string, outcomes []models.Outcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch, cols, err := w.channel(channel)
	if err != nil {
		return err
	}
	sheet := ch.Sheet
	for _, o := range outcomes {
		r := int(o.TransactionRowID)
		if r < ch.DataStartRow {
			return fmt.Errorf("%w: transaction row %d", models.ErrRowNotFound, r)
		}
		if err := w.file.SetCellStr(sheet, cellName(cols.processed, r), w.formatDate(o.ProcessedAt)); err != nil {
			return err
		}
		if !o.Status.IsTerminal() {
			continue
		}
		if err := w.file.SetCellStr(sheet, cellName(cols.status, r), labelFor(ch.Labels, o.Status)); err != nil {
			return err
		}
		if len(o.AllocatedLedgerRowIDs) == 0 {
			continue
		}
		if err := w.file.SetCellStr(sheet, cellName(cols.refs, r), models.FormatRowRefs(o.AllocatedLedgerRowIDs)); err != nil {
			return err
		}
		if cols.link > 0 {
			if err := w.file.SetCellFormula(sheet, cellName(cols.link, r), w.ledgerLink(o.AllocatedLedgerRowIDs[0])); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Workbook) ledgerLink(id models.RowID) string {
	sheet := strings.ReplaceAll(w.cfg.Ledger.Sheet, "'", "''")
	return fmt.Sprintf(`HYPERLINK("#'%s'!A%d","%s")`, sheet, int(id), ledgerLinkText)
}

func (w *Workbook) MarkTransferred(ctx context.Context, channel string, ids []models.RowID, date time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch, cols, err := w.channel(channel)
	if err != nil {
		return err
	}
	if cols.transfer == 0 {
		return fmt.Errorf("channel %s has no transfer_date column", ch.Name)
	}
	for _, id := range ids {
		if err := w.file.SetCellStr(ch.Sheet, cellName(cols.transfer, int(id)), w.formatDate(date)); err != nil {
			return err
		}
	}
	return nil
}
