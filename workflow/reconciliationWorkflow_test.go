package workflow

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	return cfg
}

var runDate = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func unit(id int, sku string) models.LedgerRow {
	return models.LedgerRow{ID: models.RowID(id), Sku: sku, Received: true, OnSale: true}
}

func order(id int, sku string, qty int, orderNumber string) models.TransactionRow {
	return models.TransactionRow{ID: models.RowID(id), Channel: "amazon", Type: "注文", Sku: sku, Quantity: qty, OrderNumber: orderNumber}
}

func amazonStore() *models.MemoryStore {
	store := models.NewMemoryStore([]models.LedgerRow{unit(1, "A"), unit(2, "A"), unit(3, "B")})
	sold := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	first := order(10, "A", 2, "ORD-1")
	first.SaleDate = &sold
	first.SalePrice = decimal.NewFromInt(2000)
	first.Deposit = decimal.NewFromInt(1500)
	store.SetTransactions("amazon", []models.TransactionRow{
		first,
		order(11, "B", 1, "ORD-2"),
		order(12, "C", 1, "ORD-3"),
	})
	return store
}

func storesOf(s *models.MemoryStore) Stores {
	return Stores{Ledger: s, Transactions: s, Fba: s}
}

func ledgerRow(t *testing.T, s *models.MemoryStore, id models.RowID) models.LedgerRow {
	t.Helper()
	rows, _ := s.LoadLedger(context.Background())
	for _, r := range rows {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("ledger row %d missing", id)
	return models.LedgerRow{}
}

func txRow(t *testing.T, s *models.MemoryStore, channel string, id models.RowID) models.TransactionRow {
	t.Helper()
	for _, r := range s.Transactions(channel) {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("transaction row %d missing", id)
	return models.TransactionRow{}
}

func TestReconciliationWorkflowWritesBack(t *testing.T) {
	store := amazonStore()
	summary, outcomes, err := ProcessReconciliationWorkflow(context.Background(), quietLogger(), testConfig(t), storesOf(store), RunRequest{Channel: "Amazon", Now: runDate})
	if err != nil {
		t.Fatalf("workflow: %v", err)
	}
	if len(outcomes) != 3 || summary.Processed != 3 || summary.RunId == "" {
		t.Fatalf("summary: %+v", summary)
	}
	if summary.Counts[models.OutcomeStatusAllocated] != 2 || summary.Counts[models.OutcomeStatusUnmatched] != 1 || summary.Shortfall != 1 {
		t.Fatalf("counts: %+v shortfall=%d", summary.Counts, summary.Shortfall)
	}
	if summary.ResumeRowId == nil || *summary.ResumeRowId != 10 {
		t.Fatalf("resume row: %v", summary.ResumeRowId)
	}

	for _, id := range []models.RowID{1, 2} {
		if r := ledgerRow(t, store, id); !r.SoldOrDisposed || r.OrderNumber != "ORD-1" {
			t.Fatalf("ledger row %d: %+v", id, r)
		}
	}
	first := txRow(t, store, "amazon", 10)
	if first.Status != models.OutcomeStatusAllocated || first.LedgerRowRefs != "1,2" || first.ProcessedAt == nil {
		t.Fatalf("tx 10: %+v", first)
	}
	unmatched := txRow(t, store, "amazon", 12)
	if unmatched.Status != "" || unmatched.ProcessedAt != nil {
		t.Fatalf("unmatched row must stay unlabelled: %+v", unmatched)
	}
	if summary.Transfer != nil {
		t.Fatalf("transfer ran without being asked")
	}
}

func TestReconciliationWorkflowRerunOnlyRetriesOpenRows(t *testing.T) {
	store := amazonStore()
	cfg := testConfig(t)
	ctx := context.Background()
	if _, _, err := ProcessReconciliationWorkflow(ctx, quietLogger(), cfg, storesOf(store), RunRequest{Channel: "amazon", Now: runDate}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, outcomes, err := ProcessReconciliationWorkflow(ctx, quietLogger(), cfg, storesOf(store), RunRequest{Channel: "amazon", Now: runDate})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].TransactionRowID != 12 || outcomes[0].Status != models.OutcomeStatusUnmatched {
		t.Fatalf("second run outcomes: %+v", outcomes)
	}
	if summary.LedgerMutations != 0 {
		t.Fatalf("second run must not touch the ledger, got %d mutations", summary.LedgerMutations)
	}
	if r := ledgerRow(t, store, 3); r.OrderNumber != "ORD-2" {
		t.Fatalf("ledger row 3: %+v", r)
	}
}

func TestReconciliationWorkflowDryRun(t *testing.T) {
	store := amazonStore()
	summary, outcomes, err := ProcessReconciliationWorkflow(context.Background(), quietLogger(), testConfig(t), storesOf(store), RunRequest{Channel: "amazon", DryRun: true, Transfer: true})
	if err != nil {
		t.Fatalf("workflow: %v", err)
	}
	if len(outcomes) != 3 || summary.LedgerMutations != 6 {
		t.Fatalf("dry run summary: %+v", summary)
	}
	if r := ledgerRow(t, store, 1); r.SoldOrDisposed {
		t.Fatalf("dry run wrote the ledger: %+v", r)
	}
	if tx := txRow(t, store, "amazon", 10); tx.Status != "" {
		t.Fatalf("dry run wrote outcomes: %+v", tx)
	}
}

func TestReconciliationWorkflowWithTransfer(t *testing.T) {
	store := amazonStore()
	summary, _, err := ProcessReconciliationWorkflow(context.Background(), quietLogger(), testConfig(t), storesOf(store), RunRequest{Channel: "amazon", Transfer: true, Now: runDate})
	if err != nil {
		t.Fatalf("workflow: %v", err)
	}
	if summary.Transfer == nil || summary.Transfer.Transferred != 2 {
		t.Fatalf("transfer summary: %+v", summary.Transfer)
	}
	for _, id := range []models.RowID{1, 2} {
		r := ledgerRow(t, store, id)
		if !r.SalePrice.Equal(decimal.NewFromInt(1000)) || !r.Deposit.Equal(decimal.NewFromInt(750)) || r.SaleDate == nil {
			t.Fatalf("ledger row %d financials: %+v", id, r)
		}
	}
	if tx := txRow(t, store, "amazon", 10); tx.TransferredAt == nil {
		t.Fatalf("tx 10 not stamped")
	}
	if tx := txRow(t, store, "amazon", 12); tx.TransferredAt != nil {
		t.Fatalf("unmatched tx must not be transferred")
	}
}

func TestReconciliationWorkflowErrors(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	if _, _, err := ProcessReconciliationWorkflow(ctx, quietLogger(), cfg, Stores{}, RunRequest{Channel: "amazon"}); !errors.Is(err, ErrMissingStore) {
		t.Fatalf("expected ErrMissingStore, got %v", err)
	}
	store := amazonStore()
	if _, _, err := ProcessReconciliationWorkflow(ctx, quietLogger(), cfg, storesOf(store), RunRequest{Channel: "yahoo"}); !errors.Is(err, config.ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestReconciliationWorkflowPublishesSummary(t *testing.T) {
	t.Setenv("RECON_PUBLISH_SUMMARY", "true")
	var gotAttrs map[string]string
	orig := publishJSON
	publishJSON = func(ctx context.Context, payload any, attributes map[string]string) (string, error) {
		gotAttrs = attributes
		return "msg-1", nil
	}
	t.Cleanup(func() { publishJSON = orig })

	summary, _, err := ProcessReconciliationWorkflow(context.Background(), quietLogger(), testConfig(t), storesOf(amazonStore()), RunRequest{Channel: "amazon", CorrelationId: "corr-1"})
	if err != nil {
		t.Fatalf("workflow: %v", err)
	}
	if summary.PublishedMessageId != "msg-1" {
		t.Fatalf("message id=%q", summary.PublishedMessageId)
	}
	if gotAttrs["run_id"] != summary.RunId || gotAttrs["correlation_id"] != "corr-1" || gotAttrs["channel"] != "amazon" {
		t.Fatalf("attributes: %v", gotAttrs)
	}
}

func TestReconciliationWorkflowIgnoresPublishFailure(t *testing.T) {
	t.Setenv("RECON_PUBLISH_SUMMARY", "true")
	orig := publishJSON
	publishJSON = func(ctx context.Context, payload any, attributes map[string]string) (string, error) {
		return "", errors.New("pubsub down")
	}
	t.Cleanup(func() { publishJSON = orig })

	summary, _, err := ProcessReconciliationWorkflow(context.Background(), quietLogger(), testConfig(t), storesOf(amazonStore()), RunRequest{Channel: "amazon"})
	if err != nil {
		t.Fatalf("publish failure must not fail the run: %v", err)
	}
	if summary.PublishedMessageId != "" {
		t.Fatalf("unexpected message id %q", summary.PublishedMessageId)
	}
}

func TestReconciliationWorkflowBoundsPublish(t *testing.T) {
	t.Setenv("RECON_PUBLISH_SUMMARY", "true")
	origTimeout, origPublish := publishTimeout, publishJSON
	publishTimeout = 20 * time.Millisecond
	var hadDeadline bool
	publishJSON = func(ctx context.Context, payload any, attributes map[string]string) (string, error) {
		_, hadDeadline = ctx.Deadline()
		<-ctx.Done()
		return "", ctx.Err()
	}
	t.Cleanup(func() { publishTimeout, publishJSON = origTimeout, origPublish })

	done := make(chan error, 1)
	go func() {
		_, _, err := ProcessReconciliationWorkflow(context.Background(), quietLogger(), testConfig(t), storesOf(amazonStore()), RunRequest{Channel: "amazon"})
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("timed out publish must not fail the run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("workflow blocked on a hung publish")
	}
	if !hadDeadline {
		t.Fatalf("publish context carries no deadline")
	}
}

type fakeLocker struct {
	err error
}

func (f fakeLocker) Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error) {
	return nil, f.err
}

func withLocker(t *testing.T, l Locker) {
	t.Helper()
	orig := runLocker
	runLocker = func() Locker { return l }
	t.Cleanup(func() { runLocker = orig })
}

func TestRunLockHeldElsewhereAlwaysFails(t *testing.T) {
	withLocker(t, fakeLocker{err: redislock.ErrNotObtained})
	store := amazonStore()
	_, _, err := ProcessReconciliationWorkflow(context.Background(), quietLogger(), testConfig(t), storesOf(store), RunRequest{Channel: "amazon"})
	if !errors.Is(err, ErrRunLocked) {
		t.Fatalf("expected ErrRunLocked without RECON_REQUIRE_RUN_LOCK, got %v", err)
	}
	for _, tx := range store.Transactions("amazon") {
		if tx.Status != "" {
			t.Fatalf("locked run must not write outcomes: %+v", tx)
		}
	}
}

func TestRunLockToleratesUnreachableRedis(t *testing.T) {
	withLocker(t, fakeLocker{err: errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")})
	if _, _, err := ProcessReconciliationWorkflow(context.Background(), quietLogger(), testConfig(t), storesOf(amazonStore()), RunRequest{Channel: "amazon"}); err != nil {
		t.Fatalf("unreachable redis must not fail the run: %v", err)
	}
}

func TestRunLockRequired(t *testing.T) {
	t.Setenv("RECON_REQUIRE_RUN_LOCK", "true")
	withLocker(t, fakeLocker{err: redislock.ErrNotObtained})
	_, _, err := ProcessReconciliationWorkflow(context.Background(), quietLogger(), testConfig(t), storesOf(amazonStore()), RunRequest{Channel: "amazon"})
	if !errors.Is(err, ErrRunLocked) {
		t.Fatalf("expected ErrRunLocked, got %v", err)
	}

	withLocker(t, nil)
	if _, err := ObtainRunLock(context.Background(), quietLogger(), "amazon", true); !errors.Is(err, ErrRunLockUnavailable) {
		t.Fatalf("expected ErrRunLockUnavailable, got %v", err)
	}
	release, err := ObtainRunLock(context.Background(), quietLogger(), "amazon", false)
	if err != nil || release == nil {
		t.Fatalf("optional lock without redis: release=%v err=%v", release != nil, err)
	}
	release()
}
