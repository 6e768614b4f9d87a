package models

import (
	"errors"
	"strings"
)

type LedgerStatus string

const (
	LedgerStatusNotReceived    LedgerStatus = "NOT_RECEIVED"
	LedgerStatusReceived       LedgerStatus = "RECEIVED"
	LedgerStatusOnSale         LedgerStatus = "ON_SALE"
	LedgerStatusSoldOrDisposed LedgerStatus = "SOLD_OR_DISPOSED"
)

// Label returns the text shown in the ledger's status column.
func (s LedgerStatus) Label() string {
	switch s {
	case LedgerStatusReceived:
		return "2.受領/検品済"
	case LedgerStatusOnSale:
		return "3.販売中"
	case LedgerStatusSoldOrDisposed:
		return "4.販売/処分済"
	default:
		return "1.商品未受領"
	}
}

type OutcomeStatus string

const (
	OutcomeStatusAllocated      OutcomeStatus = "ALLOCATED"
	OutcomeStatusExcluded       OutcomeStatus = "EXCLUDED"
	OutcomeStatusRefunded       OutcomeStatus = "REFUNDED"
	OutcomeStatusCrossReference OutcomeStatus = "CROSS_REFERENCE"
	OutcomeStatusUnmatched      OutcomeStatus = "UNMATCHED"
	OutcomeStatusUnclassified   OutcomeStatus = "UNCLASSIFIED"
)

// IsTerminal reports whether a row carrying this status counts as processed.
// Unmatched and unclassified rows are retried by the next run.
func (s OutcomeStatus) IsTerminal() bool {
	switch s {
	case OutcomeStatusAllocated, OutcomeStatusExcluded, OutcomeStatusRefunded, OutcomeStatusCrossReference:
		return true
	}
	return false
}

func ParseOutcomeStatus(str string) (OutcomeStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(str)) {
	case "ALLOCATED":
		return OutcomeStatusAllocated, nil
	case "EXCLUDED":
		return OutcomeStatusExcluded, nil
	case "REFUNDED":
		return OutcomeStatusRefunded, nil
	case "CROSS_REFERENCE":
		return OutcomeStatusCrossReference, nil
	case "UNMATCHED":
		return OutcomeStatusUnmatched, nil
	case "UNCLASSIFIED":
		return OutcomeStatusUnclassified, nil
	}
	return "", errors.New("invalid outcome status")
}

// LedgerField names a writable ledger column.
type LedgerField string

const (
	LedgerFieldSoldOrDisposed LedgerField = "sold_or_disposed"
	LedgerFieldOrderNumber    LedgerField = "order_number"
	LedgerFieldSaleDate       LedgerField = "sale_date"
	LedgerFieldSalePrice      LedgerField = "sale_price"
	LedgerFieldDeposit        LedgerField = "deposit"
	LedgerFieldShippingFee    LedgerField = "shipping_fee"
)

func (f LedgerField) IsValid() bool {
	switch f {
	case LedgerFieldSoldOrDisposed, LedgerFieldOrderNumber, LedgerFieldSaleDate,
		LedgerFieldSalePrice, LedgerFieldDeposit, LedgerFieldShippingFee:
		return true
	}
	return false
}

type AdjustmentStatus string

const (
	AdjustmentStatusOK    AdjustmentStatus = "OK"
	AdjustmentStatusSkip  AdjustmentStatus = "SKIP"
	AdjustmentStatusError AdjustmentStatus = "ERROR"
)
