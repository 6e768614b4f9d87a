package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRow is one line from a channel's sales/payment report.
type TransactionRow struct {
	ID           RowID           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Channel      string          `gorm:"primaryKey;size:50" json:"channel"`
	Type         string          `gorm:"size:100" json:"type"`
	TradeStatus  string          `gorm:"size:100" json:"trade_status"`
	Sku          string          `gorm:"size:100;index" json:"sku"`
	OrderNumber  string          `gorm:"size:100;index" json:"order_number"`
	Quantity     int             `json:"quantity"`
	QuantityText string          `gorm:"size:255" json:"quantity_text"`
	Description  string          `gorm:"size:500" json:"description"`
	GroupKey     string          `gorm:"size:100;index" json:"group_key"`
	SaleDate     *time.Time      `json:"sale_date"`
	SalePrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_price"`
	Deposit      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"deposit"`
	ShippingFee  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"shipping_fee"`

	// persisted outcome of an earlier run
	Status              OutcomeStatus `gorm:"size:20" json:"status"`
	LedgerRowRefs       string        `gorm:"size:500" json:"ledger_row_refs"`
	CrossReferenceRowID *RowID        `json:"cross_reference_row_id"`
	ProcessedAt         *time.Time    `json:"processed_at"`
	TransferredAt       *time.Time    `json:"transferred_at"`

	AlreadyProcessed  bool    `gorm:"-" json:"already_processed"`
	PriorLedgerRowIDs []RowID `gorm:"-" json:"prior_ledger_row_ids"`
}

// Outcome is the per-row result of a reconciliation run.
type Outcome struct {
	TransactionRowID      RowID         `json:"transaction_row_id"`
	Status                OutcomeStatus `json:"status"`
	AllocatedLedgerRowIDs []RowID       `json:"allocated_ledger_row_ids"`
	CrossReferenceRowID   *RowID        `json:"cross_reference_row_id,omitempty"`
	Shortfall             int           `json:"shortfall,omitempty"`
	ProcessedAt           time.Time     `json:"processed_at"`
	Note                  string        `json:"note,omitempty"`
}
