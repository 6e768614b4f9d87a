package models

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps ledger and transaction rows in memory.
// Used by tests and dry runs.
type MemoryStore struct {
	mu           sync.RWMutex
	ledger       []LedgerRow
	transactions map[string][]TransactionRow
	fba          []FbaInventoryCount
}

func NewMemoryStore(ledger []LedgerRow) *MemoryStore {
	rows := make([]LedgerRow, len(ledger))
	copy(rows, ledger)
	return &MemoryStore{
		ledger:       rows,
		transactions: map[string][]TransactionRow{},
	}
}

func (s *MemoryStore) SetTransactions(channel string, rows []TransactionRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]TransactionRow, len(rows))
	copy(cp, rows)
	s.transactions[channel] = cp
}

func (s *MemoryStore) SetFbaInventory(counts []FbaInventoryCount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fba = append([]FbaInventoryCount(nil), counts...)
}

func (s *MemoryStore) LoadLedger(ctx context.Context) ([]LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]LedgerRow, len(s.ledger))
	copy(rows, s.ledger)
	return rows, nil
}

func (s *MemoryStore) ApplyLedgerMutations(ctx context.Context, mutations []LedgerMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := make(map[RowID]int, len(s.ledger))
	for i, row := range s.ledger {
		pos[row.ID] = i
	}
	for _, m := range mutations {
		i, ok := pos[m.RowID]
		if !ok {
			return fmt.Errorf("ledger row %d: %w", m.RowID, ErrRowNotFound)
		}
		m.Apply(&s.ledger[i])
	}
	return nil
}

func (s *MemoryStore) LoadTransactions(ctx context.Context, channel string) ([]TransactionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.transactions[channel]
	rows := make([]TransactionRow, len(src))
	for i, row := range src {
		row.AlreadyProcessed = row.Status.IsTerminal()
		row.PriorLedgerRowIDs = ParseRowRefs(row.LedgerRowRefs)
		rows[i] = row
	}
	return rows, nil
}

func (s *MemoryStore) WriteOutcomes(ctx context.Context, channel string, outcomes []Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.transactions[channel]
	pos := make(map[RowID]int, len(rows))
	for i, row := range rows {
		pos[row.ID] = i
	}
	for _, o := range outcomes {
		i, ok := pos[o.TransactionRowID]
		if !ok {
			return fmt.Errorf("transaction row %d: %w", o.TransactionRowID, ErrRowNotFound)
		}
		processedAt := o.ProcessedAt
		rows[i].ProcessedAt = &processedAt
		if !o.Status.IsTerminal() {
			continue
		}
		rows[i].Status = o.Status
		rows[i].LedgerRowRefs = FormatRowRefs(o.AllocatedLedgerRowIDs)
		rows[i].CrossReferenceRowID = o.CrossReferenceRowID
	}
	return nil
}

func (s *MemoryStore) MarkTransferred(ctx context.Context, channel string, ids []RowID, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[RowID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	rows := s.transactions[channel]
	for i := range rows {
		if want[rows[i].ID] {
			d := date
			rows[i].TransferredAt = &d
		}
	}
	return nil
}

func (s *MemoryStore) LoadFbaInventory(ctx context.Context) ([]FbaInventoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FbaInventoryCount(nil), s.fba...), nil
}

func (s *MemoryStore) WriteFbaResults(ctx context.Context, results []FbaInventoryCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := make(map[RowID]int, len(s.fba))
	for i, c := range s.fba {
		pos[c.ID] = i
	}
	for _, r := range results {
		if i, ok := pos[r.ID]; ok {
			s.fba[i].Status = r.Status
			s.fba[i].Message = r.Message
		}
	}
	return nil
}

// Transactions returns a copy of the stored rows for a channel.
func (s *MemoryStore) Transactions(channel string) []TransactionRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TransactionRow(nil), s.transactions[channel]...)
}
