package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/inventory"
	"github.com/mmdatafocus/sales_recon/models"
	"github.com/mmdatafocus/sales_recon/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("sales-recon/workflow")

// publishJSON is swapped in tests.
var publishJSON = config.PublishJSON

// publishTimeout bounds client setup and the publish round trip of one summary.
var publishTimeout = 30 * time.Second

var ErrMissingStore = errors.New("ledger and transaction stores are required")

// Stores bundles the persistence collaborators of a run.
type Stores struct {
	Ledger       models.LedgerStore
	Transactions models.TransactionStore
	Fba          models.FbaInventoryStore
}

type RunRequest struct {
	Channel       string
	DryRun        bool
	Transfer      bool
	CorrelationId string
	// Now fixes the processed date; zero means time.Now.
	Now time.Time
}

type RunSummary struct {
	RunId              string                       `json:"run_id"`
	CorrelationId      string                       `json:"correlation_id,omitempty"`
	Channel            string                       `json:"channel"`
	DryRun             bool                         `json:"dry_run"`
	Rows               int                          `json:"rows"`
	ResumeRowId        *models.RowID                `json:"resume_row_id,omitempty"`
	Processed          int                          `json:"processed"`
	Counts             map[models.OutcomeStatus]int `json:"counts"`
	Shortfall          int                          `json:"shortfall"`
	LedgerMutations    int                          `json:"ledger_mutations"`
	Transfer           *TransferSummary             `json:"transfer,omitempty"`
	StartedAt          time.Time                    `json:"started_at"`
	FinishedAt         time.Time                    `json:"finished_at"`
	PublishedMessageId string                       `json:"published_message_id,omitempty"`
}

// ProcessReconciliationWorkflow loads the ledger and a channel's transactions,
// runs the engine once and writes the ledger mutations and outcomes back.
// Outcomes are returned even for a dry run.
func ProcessReconciliationWorkflow(ctx context.Context, logger *logrus.Logger, cfg *config.Config, stores Stores, req RunRequest) (*RunSummary, []models.Outcome, error) {
	if stores.Ledger == nil || stores.Transactions == nil {
		return nil, nil, ErrMissingStore
	}
	ch, err := cfg.Channel(req.Channel)
	if err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "ProcessReconciliationWorkflow", "Channel", req.Channel, err)
		return nil, nil, err
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	summary := &RunSummary{
		RunId:         uuid.NewString(),
		CorrelationId: req.CorrelationId,
		Channel:       ch.Name,
		DryRun:        req.DryRun,
		Counts:        map[models.OutcomeStatus]int{},
		StartedAt:     time.Now(),
	}

	ctx = utils.SetRunIdInContext(ctx, summary.RunId)
	ctx = utils.SetChannelInContext(ctx, ch.Name)
	ctx = utils.SetDryRunInContext(ctx, req.DryRun)
	if req.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, req.CorrelationId)
	}
	ctx, span := tracer.Start(ctx, "reconciliation.run", trace.WithAttributes(
		attribute.String("recon.run_id", summary.RunId),
		attribute.String("recon.channel", ch.Name),
		attribute.Bool("recon.dry_run", req.DryRun),
	))
	defer span.End()

	release, err := ObtainRunLock(ctx, logger, ch.Name, config.RequireRunLock())
	if err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "ProcessReconciliationWorkflow", "ObtainRunLock", ch.Name, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	defer release()

	outcomes, txs, err := executeRun(ctx, logger, ch, stores, summary, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	mutations := inventory.LedgerMutations(outcomes, txs)
	summary.LedgerMutations = len(mutations)
	if !req.DryRun {
		if err := writeBack(ctx, logger, ch.Name, stores, mutations, outcomes); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, nil, err
		}
		if req.Transfer {
			transfer, err := TransferFinancials(ctx, logger, ch, stores, now)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				return nil, nil, err
			}
			summary.Transfer = transfer
		}
	}
	summary.FinishedAt = time.Now()

	span.SetAttributes(
		attribute.Int("recon.processed", summary.Processed),
		attribute.Int("recon.shortfall", summary.Shortfall),
	)
	if !req.DryRun && config.PublishRunSummary() {
		summary.PublishedMessageId = publishSummary(ctx, logger, summary)
	}

	logger.WithFields(utils.LogFields(ctx)).WithFields(logrus.Fields{
		"field":            "ProcessReconciliationWorkflow",
		"rows":             summary.Rows,
		"processed":        summary.Processed,
		"ledger_mutations": summary.LedgerMutations,
		"dry_run":          req.DryRun,
	}).Info("reconciliation workflow finished")
	return summary, outcomes, nil
}

func executeRun(ctx context.Context, logger *logrus.Logger, ch config.ChannelConfig, stores Stores, summary *RunSummary, now time.Time) ([]models.Outcome, []models.TransactionRow, error) {
	ctx, span := tracer.Start(ctx, "reconciliation.execute")
	defer span.End()

	ledger, err := stores.Ledger.LoadLedger(ctx)
	if err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "executeRun", "LoadLedger", ch.Name, err)
		return nil, nil, err
	}
	txs, err := stores.Transactions.LoadTransactions(ctx, ch.Name)
	if err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "executeRun", "LoadTransactions", ch.Name, err)
		return nil, nil, err
	}
	summary.Rows = len(txs)
	if start := inventory.ResumePoint(txs); start < len(txs) {
		id := txs[start].ID
		summary.ResumeRowId = &id
	}

	run, err := inventory.NewRun(inventory.NewRuleClassifier(ch), ledger, logger,
		inventory.WithRunID(summary.RunId),
		inventory.WithClock(func() time.Time { return now }),
		inventory.WithQuantityParser(inventory.NewQuantityParser(ch.QuantityUnits)),
	)
	if err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "executeRun", "NewRun", ch.Name, err)
		return nil, nil, err
	}
	outcomes, err := run.Execute(txs)
	if err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "executeRun", "Execute", ch.Name, err)
		return nil, nil, err
	}

	summary.Processed = len(outcomes)
	for _, o := range outcomes {
		summary.Counts[o.Status]++
		summary.Shortfall += o.Shortfall
	}
	span.SetAttributes(attribute.Int("recon.ledger_rows", len(ledger)), attribute.Int("recon.rows", len(txs)))
	return outcomes, txs, nil
}

// writeBack applies ledger mutations before outcomes so a failed outcome write
// leaves rows unlabelled rather than labelled without their ledger change.
func writeBack(ctx context.Context, logger *logrus.Logger, channel string, stores Stores, mutations []models.LedgerMutation, outcomes []models.Outcome) error {
	ctx, span := tracer.Start(ctx, "reconciliation.write_back")
	defer span.End()

	if len(mutations) > 0 {
		if err := stores.Ledger.ApplyLedgerMutations(ctx, mutations); err != nil {
			config.LogError(logger, "reconciliationWorkflow.go", "writeBack", "ApplyLedgerMutations", len(mutations), err)
			return err
		}
	}
	recordable := inventory.RecordableOutcomes(outcomes, config.StampUnmatchedRows())
	if len(recordable) == 0 {
		return nil
	}
	if err := stores.Transactions.WriteOutcomes(ctx, channel, recordable); err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "writeBack", "WriteOutcomes", len(recordable), err)
		return err
	}
	return nil
}

// publishSummary is best effort; a failed publish never fails the run.
func publishSummary(ctx context.Context, logger *logrus.Logger, summary *RunSummary) string {
	attrs := map[string]string{
		"run_id":  summary.RunId,
		"channel": summary.Channel,
		"type":    "reconciliation_run",
	}
	if summary.CorrelationId != "" {
		attrs["correlation_id"] = summary.CorrelationId
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	id, err := publishJSON(pubCtx, summary, attrs)
	if err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "publishSummary", "PublishJSON", summary.RunId, err)
		return ""
	}
	return id
}
