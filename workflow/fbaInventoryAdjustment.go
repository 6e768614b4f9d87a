package workflow

import (
	"context"
	"errors"

	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/inventory"
	"github.com/mmdatafocus/sales_recon/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const fbaLockScope = "fba"

var ErrMissingFbaStore = errors.New("fba inventory store is required")

type FbaAdjustmentSummary struct {
	Total     int                        `json:"total"`
	Succeeded int                        `json:"succeeded"`
	Skipped   int                        `json:"skipped"`
	Failed    int                        `json:"failed"`
	Mutations int                        `json:"mutations"`
	Results   []models.FbaInventoryCount `json:"results"`
}

// ProcessFbaInventoryAdjustment aligns the ledger's unsold rows with the
// year-end FBA count, one SKU line at a time. Lines already marked OK are skipped.
func ProcessFbaInventoryAdjustment(ctx context.Context, logger *logrus.Logger, stores Stores) (*FbaAdjustmentSummary, error) {
	if stores.Ledger == nil || stores.Fba == nil {
		return nil, ErrMissingFbaStore
	}
	ctx, span := tracer.Start(ctx, "reconciliation.fba_adjustment")
	defer span.End()

	release, err := ObtainRunLock(ctx, logger, fbaLockScope, config.RequireRunLock())
	if err != nil {
		config.LogError(logger, "fbaInventoryAdjustment.go", "ProcessFbaInventoryAdjustment", "ObtainRunLock", fbaLockScope, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer release()

	counts, err := stores.Fba.LoadFbaInventory(ctx)
	if err != nil {
		config.LogError(logger, "fbaInventoryAdjustment.go", "ProcessFbaInventoryAdjustment", "LoadFbaInventory", nil, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	ledger, err := stores.Ledger.LoadLedger(ctx)
	if err != nil {
		config.LogError(logger, "fbaInventoryAdjustment.go", "ProcessFbaInventoryAdjustment", "LoadLedger", nil, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	pos := make(map[models.RowID]int, len(ledger))
	for i, row := range ledger {
		pos[row.ID] = i
	}

	summary := &FbaAdjustmentSummary{}
	var mutations []models.LedgerMutation
	for _, c := range counts {
		if c.Status == models.AdjustmentStatusOK || c.Status == models.AdjustmentStatusSkip {
			continue
		}
		summary.Total++
		adj := inventory.AdjustToCount(ledger, c.Sku, c.Count)
		switch adj.Status {
		case models.AdjustmentStatusOK:
			summary.Succeeded++
		case models.AdjustmentStatusSkip:
			summary.Skipped++
		default:
			summary.Failed++
		}
		// later lines for the same SKU see the flags this one changed
		for _, m := range adj.Mutations {
			if i, ok := pos[m.RowID]; ok {
				m.Apply(&ledger[i])
			}
		}
		mutations = append(mutations, adj.Mutations...)
		c.Status, c.Message = adj.Status, adj.Message
		summary.Results = append(summary.Results, c)
	}
	summary.Mutations = len(mutations)

	if len(mutations) > 0 {
		if err := stores.Ledger.ApplyLedgerMutations(ctx, mutations); err != nil {
			config.LogError(logger, "fbaInventoryAdjustment.go", "ProcessFbaInventoryAdjustment", "ApplyLedgerMutations", len(mutations), err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	if len(summary.Results) > 0 {
		if err := stores.Fba.WriteFbaResults(ctx, summary.Results); err != nil {
			config.LogError(logger, "fbaInventoryAdjustment.go", "ProcessFbaInventoryAdjustment", "WriteFbaResults", len(summary.Results), err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int("recon.fba_total", summary.Total),
		attribute.Int("recon.fba_failed", summary.Failed),
	)
	logger.WithFields(logrus.Fields{
		"field":     "ProcessFbaInventoryAdjustment",
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}).Info("fba inventory adjustment finished")
	return summary, nil
}
