package workflow

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/inventory"
	"github.com/mmdatafocus/sales_recon/models"
	"github.com/mmdatafocus/sales_recon/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type TransferSummary struct {
	Channel     string `json:"channel"`
	Transferred int    `json:"transferred"`
	Shipping    int    `json:"shipping"`
	Refunded    int    `json:"refunded"`
	Excluded    int    `json:"excluded"`
	Skipped     int    `json:"skipped"`
	Mutations   int    `json:"mutations"`
}

// SplitAmount divides total into n shares rounded toward zero at precision
// decimal places. The first share takes the remainder so the shares add up to total.
func SplitAmount(total decimal.Decimal, n int, precision int32) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	shares := make([]decimal.Decimal, n)
	share := total.Div(decimal.NewFromInt(int64(n))).Truncate(precision)
	rest := total
	for i := 1; i < n; i++ {
		shares[i] = share
		rest = rest.Sub(share)
	}
	shares[0] = rest
	return shares
}

// TransferFinancials copies sale date and amounts from labelled transaction rows
// onto the ledger rows they were allocated to, then stamps the transfer date.
// Rows already transferred, excluded or carrying no ledger refs are left alone.
func TransferFinancials(ctx context.Context, logger *logrus.Logger, ch config.ChannelConfig, stores Stores, now time.Time) (*TransferSummary, error) {
	ctx, span := tracer.Start(ctx, "reconciliation.transfer", trace.WithAttributes(attribute.String("recon.channel", ch.Name)))
	defer span.End()

	txs, err := stores.Transactions.LoadTransactions(ctx, ch.Name)
	if err != nil {
		config.LogError(logger, "financialTransfer.go", "TransferFinancials", "LoadTransactions", ch.Name, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	summary := &TransferSummary{Channel: ch.Name}
	var mutations []models.LedgerMutation
	var done []models.RowID
	for _, tx := range txs {
		if tx.TransferredAt != nil || !tx.Status.IsTerminal() {
			continue
		}
		tradeStatus := strings.TrimSpace(tx.TradeStatus)
		switch {
		case tradeStatus != "" && slices.Contains(ch.TransferExcludeStatuses, tradeStatus):
			summary.Excluded++
		case tradeStatus != "" && slices.Contains(ch.TransferRefundStatuses, tradeStatus),
			tx.Status == models.OutcomeStatusRefunded:
			for _, id := range tx.PriorLedgerRowIDs {
				mutations = append(mutations, inventory.RevertSale(id)...)
			}
			summary.Refunded++
		case tx.Status == models.OutcomeStatusExcluded:
			continue
		case len(tx.PriorLedgerRowIDs) == 0:
			summary.Skipped++
			continue
		case tx.Status == models.OutcomeStatusCrossReference:
			mutations = append(mutations, shippingMutations(tx, ch.AmountPrecision)...)
			summary.Shipping++
		default:
			mutations = append(mutations, saleMutations(tx, ch.AmountPrecision)...)
			summary.Transferred++
		}
		done = append(done, tx.ID)
	}
	summary.Mutations = len(mutations)

	if len(mutations) > 0 {
		if err := stores.Ledger.ApplyLedgerMutations(ctx, mutations); err != nil {
			config.LogError(logger, "financialTransfer.go", "TransferFinancials", "ApplyLedgerMutations", len(mutations), err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	if len(done) > 0 {
		if err := stores.Transactions.MarkTransferred(ctx, ch.Name, done, now); err != nil {
			config.LogError(logger, "financialTransfer.go", "TransferFinancials", "MarkTransferred", done, err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	logger.WithFields(utils.LogFields(ctx)).WithFields(logrus.Fields{
		"field":       "TransferFinancials",
		"transferred": summary.Transferred,
		"shipping":    summary.Shipping,
		"refunded":    summary.Refunded,
		"excluded":    summary.Excluded,
		"skipped":     summary.Skipped,
	}).Info("financial transfer finished")
	return summary, nil
}

func saleMutations(tx models.TransactionRow, precision int32) []models.LedgerMutation {
	ids := tx.PriorLedgerRowIDs
	prices := SplitAmount(tx.SalePrice, len(ids), precision)
	deposits := SplitAmount(tx.Deposit, len(ids), precision)

	var out []models.LedgerMutation
	for i, id := range ids {
		if tx.SaleDate != nil {
			out = append(out, models.LedgerMutation{RowID: id, Field: models.LedgerFieldSaleDate, Value: tx.SaleDate})
		}
		if !tx.SalePrice.IsZero() {
			out = append(out, models.LedgerMutation{RowID: id, Field: models.LedgerFieldSalePrice, Value: prices[i]})
		}
		if !tx.Deposit.IsZero() {
			out = append(out, models.LedgerMutation{RowID: id, Field: models.LedgerFieldDeposit, Value: deposits[i]})
		}
		out = append(out, models.LedgerMutation{RowID: id, Field: models.LedgerFieldSoldOrDisposed, Value: true})
	}
	return out
}

// shippingMutations books the shipping charge as a positive fee on the referenced rows.
func shippingMutations(tx models.TransactionRow, precision int32) []models.LedgerMutation {
	if tx.ShippingFee.IsZero() {
		return nil
	}
	ids := tx.PriorLedgerRowIDs
	fees := SplitAmount(tx.ShippingFee.Abs(), len(ids), precision)
	out := make([]models.LedgerMutation, 0, len(ids))
	for i, id := range ids {
		out = append(out, models.LedgerMutation{RowID: id, Field: models.LedgerFieldShippingFee, Value: fees[i]})
	}
	return out
}
