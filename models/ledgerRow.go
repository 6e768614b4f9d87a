package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RowID identifies a row inside one snapshot. Stores map it to their native key
// (sheet row number, primary key).
type RowID int

// LedgerRow is one physical unit of stock in the product ledger.
type LedgerRow struct {
	ID             RowID           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Sku            string          `gorm:"size:100;index;not null" json:"sku"`
	Name           string          `gorm:"size:255" json:"name"`
	Received       bool            `gorm:"not null;default:false" json:"received"`
	OnSale         bool            `gorm:"not null;default:false" json:"on_sale"`
	SoldOrDisposed bool            `gorm:"not null;default:false" json:"sold_or_disposed"`
	OrderNumber    string          `gorm:"size:100;index" json:"order_number"`
	SaleDate       *time.Time      `json:"sale_date"`
	SalePrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_price"`
	Deposit        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"deposit"`
	ShippingFee    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"shipping_fee"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// LedgerMutation is a single field write-back against a ledger row.
// Value is bool for flags, string for order numbers, *time.Time for dates
// and decimal.Decimal for amounts.
type LedgerMutation struct {
	RowID RowID       `json:"row_id"`
	Field LedgerField `json:"field"`
	Value any         `json:"value"`
}

// Apply writes the mutation onto row. Unknown fields and mistyped values are ignored.
func (m LedgerMutation) Apply(row *LedgerRow) {
	switch m.Field {
	case LedgerFieldSoldOrDisposed:
		if v, ok := m.Value.(bool); ok {
			row.SoldOrDisposed = v
		}
	case LedgerFieldOrderNumber:
		if v, ok := m.Value.(string); ok {
			row.OrderNumber = v
		}
	case LedgerFieldSaleDate:
		switch v := m.Value.(type) {
		case *time.Time:
			row.SaleDate = v
		case time.Time:
			row.SaleDate = &v
		case nil:
			row.SaleDate = nil
		}
	case LedgerFieldSalePrice:
		if v, ok := m.Value.(decimal.Decimal); ok {
			row.SalePrice = v
		}
	case LedgerFieldDeposit:
		if v, ok := m.Value.(decimal.Decimal); ok {
			row.Deposit = v
		}
	case LedgerFieldShippingFee:
		if v, ok := m.Value.(decimal.Decimal); ok {
			row.ShippingFee = v
		}
	}
}
