// Package inventory matches channel transactions against the product ledger.
// Nothing in it performs I/O; callers load snapshots and persist outcomes.
package inventory

import "github.com/mmdatafocus/sales_recon/models"

// StatusOf derives a unit's lifecycle status from its three flags.
// The first true flag wins: sold/disposed, on sale, received.
// Inconsistent combinations (sold but never received) are accepted as-is.
func StatusOf(received, onSale, soldOrDisposed bool) models.LedgerStatus {
	switch {
	case soldOrDisposed:
		return models.LedgerStatusSoldOrDisposed
	case onSale:
		return models.LedgerStatusOnSale
	case received:
		return models.LedgerStatusReceived
	default:
		return models.LedgerStatusNotReceived
	}
}

// RowStatus is StatusOf applied to a ledger row's flags.
func RowStatus(row models.LedgerRow) models.LedgerStatus {
	return StatusOf(row.Received, row.OnSale, row.SoldOrDisposed)
}
