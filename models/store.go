package models

import (
	"context"
	"errors"
	"time"
)

var ErrRowNotFound = errors.New("row not found")

type LedgerStore interface {
	LoadLedger(ctx context.Context) ([]LedgerRow, error)
	ApplyLedgerMutations(ctx context.Context, mutations []LedgerMutation) error
}

type TransactionStore interface {
	// LoadTransactions returns every row of the channel in report order,
	// with AlreadyProcessed and PriorLedgerRowIDs populated.
	LoadTransactions(ctx context.Context, channel string) ([]TransactionRow, error)
	WriteOutcomes(ctx context.Context, channel string, outcomes []Outcome) error
	MarkTransferred(ctx context.Context, channel string, ids []RowID, date time.Time) error
}

// FbaInventoryCount is one line of the year-end FBA inventory sheet.
type FbaInventoryCount struct {
	ID      RowID            `json:"id"`
	Sku     string           `json:"sku"`
	Count   int              `json:"count"`
	Status  AdjustmentStatus `json:"status"`
	Message string           `json:"message"`
}

type FbaInventoryStore interface {
	LoadFbaInventory(ctx context.Context) ([]FbaInventoryCount, error)
	WriteFbaResults(ctx context.Context, results []FbaInventoryCount) error
}
