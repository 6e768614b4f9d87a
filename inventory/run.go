package inventory

import (
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingLedgerSnapshot = errors.New("ledger snapshot is required")
	ErrMissingClassifier     = errors.New("classifier is required")
	ErrRunAlreadyExecuted    = errors.New("reconciliation run already executed")
)

// Run reconciles one batch of transaction rows against one ledger snapshot.
// It owns the consumed set for its lifetime and can be executed once.
type Run struct {
	id         string
	classifier Classifier
	index      *LedgerIndex
	quantity   *QuantityParser
	logger     *logrus.Logger
	now        func() time.Time
	executed   bool
}

type RunOption func(*Run)

func WithRunID(id string) RunOption {
	return func(r *Run) { r.id = id }
}

func WithClock(now func() time.Time) RunOption {
	return func(r *Run) {
		if now != nil {
			r.now = now
		}
	}
}

func WithQuantityParser(p *QuantityParser) RunOption {
	return func(r *Run) {
		if p != nil {
			r.quantity = p
		}
	}
}

// NewRun builds a run over ledger. A nil ledger is a configuration error;
// an empty one is valid and leaves every allocation unmatched.
func NewRun(classifier Classifier, ledger []models.LedgerRow, logger *logrus.Logger, opts ...RunOption) (*Run, error) {
	if classifier == nil {
		return nil, ErrMissingClassifier
	}
	if ledger == nil {
		return nil, ErrMissingLedgerSnapshot
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	r := &Run{
		classifier: classifier,
		index:      NewLedgerIndex(ledger),
		quantity:   defaultQuantityParser,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Run) ID() string {
	return r.id
}

func (r *Run) Index() *LedgerIndex {
	return r.index
}

// ResumePoint returns the position of the first row not yet processed, or len(txs).
func ResumePoint(txs []models.TransactionRow) int {
	for i, tx := range txs {
		if !tx.AlreadyProcessed {
			return i
		}
	}
	return len(txs)
}

// Execute walks txs from the resume point in order and returns one outcome per
// unprocessed row. Rows before the resume point are only used as cross-reference targets.
func (r *Run) Execute(txs []models.TransactionRow) ([]models.Outcome, error) {
	if r.executed {
		return nil, ErrRunAlreadyExecuted
	}
	r.executed = true

	outcomes := []models.Outcome{}
	start := ResumePoint(txs)
	if start == len(txs) {
		r.logger.WithFields(logrus.Fields{
			"field":  "Run.Execute",
			"run_id": r.id,
			"rows":   len(txs),
		}).Info("no unprocessed transaction rows")
		return outcomes, nil
	}

	b := newBatch(txs)

	actions := make([]Action, len(txs))
	cancelled := map[string]models.RowID{}
	for i := start; i < len(txs); i++ {
		if txs[i].AlreadyProcessed {
			continue
		}
		actions[i] = r.classifier.Classify(txs[i])
		if c, ok := actions[i].(CancelGroup); ok && c.GroupKey != "" {
			if _, seen := cancelled[c.GroupKey]; !seen {
				cancelled[c.GroupKey] = txs[i].ID
			}
		}
	}

	processedAt := r.now()
	for i := start; i < len(txs); i++ {
		tx := txs[i]
		if tx.AlreadyProcessed {
			continue
		}

		var o models.Outcome
		if owner, ok := cancelled[strings.TrimSpace(tx.GroupKey)]; ok && owner != tx.ID {
			o = models.Outcome{
				Status:              models.OutcomeStatusExcluded,
				CrossReferenceRowID: &owner,
				Note:                "cancelled with group " + strings.TrimSpace(tx.GroupKey),
			}
		} else {
			o = r.apply(b, i, actions[i])
		}
		o.TransactionRowID = tx.ID
		o.ProcessedAt = processedAt
		b.record(o)
		outcomes = append(outcomes, o)
	}

	r.logSummary(outcomes)
	return outcomes, nil
}

func (r *Run) apply(b *batch, i int, action Action) models.Outcome {
	tx := b.txs[i]
	switch a := action.(type) {
	case AllocateBySku:
		return r.allocate(tx, a.Sku, a.Quantity)
	case AllocateBySkuFuzzyQuantity:
		quantity, ok := r.quantity.Extract(a.QuantityText)
		if !ok && strings.TrimSpace(a.QuantityText) != "" {
			r.logger.WithFields(logrus.Fields{
				"field":          "Run.apply",
				"run_id":         r.id,
				"transaction_id": tx.ID,
				"quantity_text":  a.QuantityText,
			}).Info("no unit count in quantity text; defaulting to 1")
		}
		return r.allocate(tx, a.Sku, quantity)
	case CrossReferenceOrderNumber:
		return r.crossReference(b, i, a.OrderNumber)
	case MarkRefunded:
		return r.refund(b, i, a.OrderNumber)
	case MarkExcluded:
		return models.Outcome{Status: models.OutcomeStatusExcluded, Note: a.Reason}
	case CancelGroup:
		return models.Outcome{Status: models.OutcomeStatusExcluded, Note: "cancelled"}
	case Unclassified:
		r.logger.WithFields(logrus.Fields{
			"field":          "Run.apply",
			"run_id":         r.id,
			"transaction_id": tx.ID,
			"label":          a.Label,
		}).Warn("unknown transaction type")
		return models.Outcome{Status: models.OutcomeStatusUnclassified, Note: a.Label}
	}
	return models.Outcome{Status: models.OutcomeStatusUnclassified}
}

func (r *Run) allocate(tx models.TransactionRow, sku string, quantity int) models.Outcome {
	res := Allocate(sku, quantity, r.index)
	if len(res.Rows) == 0 {
		return models.Outcome{
			Status:    models.OutcomeStatusUnmatched,
			Shortfall: res.Shortfall,
			Note:      "no available ledger row for sku " + strings.TrimSpace(sku),
		}
	}

	ids := res.RowIDs()
	if on := strings.TrimSpace(tx.OrderNumber); on != "" {
		for _, id := range ids {
			r.index.AssignOrderNumber(id, on)
		}
	}
	if res.Shortfall > 0 {
		r.logger.WithFields(logrus.Fields{
			"field":          "Run.allocate",
			"run_id":         r.id,
			"transaction_id": tx.ID,
			"sku":            sku,
			"requested":      res.Requested,
			"shortfall":      res.Shortfall,
		}).Warn("partial allocation")
	}
	return models.Outcome{
		Status:                models.OutcomeStatusAllocated,
		AllocatedLedgerRowIDs: ids,
		Shortfall:             res.Shortfall,
	}
}

func (r *Run) crossReference(b *batch, i int, orderNumber string) models.Outcome {
	if orderNumber == "" {
		return models.Outcome{Status: models.OutcomeStatusUnmatched, Note: "order number missing"}
	}
	j := b.findOrigin(i, orderNumber)
	if j < 0 {
		j = b.findAny(i, orderNumber)
	}
	if j < 0 {
		return models.Outcome{Status: models.OutcomeStatusUnmatched, Note: "no row with order number " + orderNumber}
	}
	ref := b.txs[j].ID
	return models.Outcome{
		Status:                models.OutcomeStatusCrossReference,
		AllocatedLedgerRowIDs: b.ledgerRowsOf(j),
		CrossReferenceRowID:   &ref,
	}
}

// refund prefers the originating order row of the batch, which covers every unit it
// allocated, and falls back to the ledger's order number column. Only units that still
// carry the order number (or a sold unit with none recorded) are reverted.
func (r *Run) refund(b *batch, i int, orderNumber string) models.Outcome {
	if orderNumber == "" {
		return models.Outcome{Status: models.OutcomeStatusUnmatched, Note: "order number missing"}
	}
	if j := b.findOrigin(i, orderNumber); j >= 0 {
		origin := b.txs[j].ID
		if b.refunded[origin] {
			return models.Outcome{Status: models.OutcomeStatusUnmatched, Note: "order already refunded " + orderNumber}
		}
		if ids := r.stillSoldTo(b, b.ledgerRowsOf(j), orderNumber); len(ids) > 0 {
			b.refunded[origin] = true
			b.markReverted(ids)
			return models.Outcome{
				Status:                models.OutcomeStatusRefunded,
				AllocatedLedgerRowIDs: ids,
				CrossReferenceRowID:   &origin,
			}
		}
	}
	var ids []models.RowID
	for _, row := range r.index.FindAllByOrderNumber(orderNumber) {
		if !b.reverted[row.ID] {
			ids = append(ids, row.ID)
		}
	}
	if len(ids) == 0 {
		return models.Outcome{Status: models.OutcomeStatusUnmatched, Note: "no ledger row for order number " + orderNumber}
	}
	b.markReverted(ids)
	return models.Outcome{
		Status:                models.OutcomeStatusRefunded,
		AllocatedLedgerRowIDs: ids,
	}
}

// stillSoldTo drops refs whose unit has since been reverted or sold on another order.
func (r *Run) stillSoldTo(b *batch, refs []models.RowID, orderNumber string) []models.RowID {
	var ids []models.RowID
	for _, id := range refs {
		if b.reverted[id] {
			continue
		}
		row, ok := r.index.Row(id)
		if !ok {
			continue
		}
		switch on := strings.TrimSpace(row.OrderNumber); {
		case on == orderNumber:
		case on == "" && row.SoldOrDisposed:
		default:
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (r *Run) logSummary(outcomes []models.Outcome) {
	counts := map[models.OutcomeStatus]int{}
	shortfall := 0
	for _, o := range outcomes {
		counts[o.Status]++
		shortfall += o.Shortfall
	}
	r.logger.WithFields(logrus.Fields{
		"field":          "Run.Execute",
		"run_id":         r.id,
		"processed":      len(outcomes),
		"allocated":      counts[models.OutcomeStatusAllocated],
		"excluded":       counts[models.OutcomeStatusExcluded],
		"refunded":       counts[models.OutcomeStatusRefunded],
		"cross_ref":      counts[models.OutcomeStatusCrossReference],
		"unmatched":      counts[models.OutcomeStatusUnmatched],
		"unclassified":   counts[models.OutcomeStatusUnclassified],
		"shortfall":      shortfall,
		"consumed_units": r.index.ConsumedCount(),
	}).Info("reconciliation run finished")
}

// batch holds the lookups a run needs across transaction rows.
type batch struct {
	txs           []models.TransactionRow
	byOrderNumber map[string][]int
	status        map[models.RowID]models.OutcomeStatus
	allocated     map[models.RowID][]models.RowID
	refunded      map[models.RowID]bool
	reverted      map[models.RowID]bool
}

func newBatch(txs []models.TransactionRow) *batch {
	b := &batch{
		txs:           txs,
		byOrderNumber: map[string][]int{},
		status:        map[models.RowID]models.OutcomeStatus{},
		allocated:     map[models.RowID][]models.RowID{},
		refunded:      map[models.RowID]bool{},
		reverted:      map[models.RowID]bool{},
	}
	for i, tx := range txs {
		if on := strings.TrimSpace(tx.OrderNumber); on != "" {
			b.byOrderNumber[on] = append(b.byOrderNumber[on], i)
		}
		if tx.Status == models.OutcomeStatusRefunded && tx.CrossReferenceRowID != nil {
			b.refunded[*tx.CrossReferenceRowID] = true
		}
	}
	return b
}

func (b *batch) record(o models.Outcome) {
	b.status[o.TransactionRowID] = o.Status
	if o.Status == models.OutcomeStatusAllocated {
		b.allocated[o.TransactionRowID] = o.AllocatedLedgerRowIDs
	}
}

func (b *batch) markReverted(ids []models.RowID) {
	for _, id := range ids {
		b.reverted[id] = true
	}
}

func (b *batch) statusOf(j int) models.OutcomeStatus {
	if st, ok := b.status[b.txs[j].ID]; ok {
		return st
	}
	return b.txs[j].Status
}

func (b *batch) ledgerRowsOf(j int) []models.RowID {
	if ids, ok := b.allocated[b.txs[j].ID]; ok {
		return append([]models.RowID(nil), ids...)
	}
	return append([]models.RowID(nil), b.txs[j].PriorLedgerRowIDs...)
}

// findOrigin returns the first other row with the order number that holds an allocation.
// Rows with an unknown persisted status count when they carry ledger refs.
func (b *batch) findOrigin(i int, orderNumber string) int {
	for _, j := range b.byOrderNumber[orderNumber] {
		if j == i {
			continue
		}
		switch b.statusOf(j) {
		case models.OutcomeStatusAllocated, "":
			if len(b.ledgerRowsOf(j)) > 0 {
				return j
			}
		}
	}
	return -1
}

func (b *batch) findAny(i int, orderNumber string) int {
	for _, j := range b.byOrderNumber[orderNumber] {
		if j != i {
			return j
		}
	}
	return -1
}
