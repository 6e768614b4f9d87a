package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/sales_recon/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists the ledger and channel reports in MySQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db, falling back to the shared connection when db is nil.
func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		db = config.GetDB()
	}
	return &GormStore{db: db}
}

func (s *GormStore) LoadLedger(ctx context.Context) ([]LedgerRow, error) {
	var rows []LedgerRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []LedgerRow{}
	}
	return rows, nil
}

func (s *GormStore) ApplyLedgerMutations(ctx context.Context, mutations []LedgerMutation) error {
	if len(mutations) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range mutations {
			if !m.Field.IsValid() {
				continue
			}
			err := tx.Model(&LedgerRow{}).
				Where("id = ?", m.RowID).
				Update(string(m.Field), m.Value).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) LoadTransactions(ctx context.Context, channel string) ([]TransactionRow, error) {
	var rows []TransactionRow
	err := s.db.WithContext(ctx).
		Where("channel = ?", channel).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].AlreadyProcessed = rows[i].Status.IsTerminal()
		rows[i].PriorLedgerRowIDs = ParseRowRefs(rows[i].LedgerRowRefs)
	}
	return rows, nil
}

func (s *GormStore) WriteOutcomes(ctx context.Context, channel string, outcomes []Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range outcomes {
			updates := map[string]interface{}{
				"processed_at": o.ProcessedAt,
			}
			if o.Status.IsTerminal() {
				updates["status"] = o.Status
				updates["ledger_row_refs"] = FormatRowRefs(o.AllocatedLedgerRowIDs)
				updates["cross_reference_row_id"] = o.CrossReferenceRowID
			}
			err := tx.Model(&TransactionRow{}).
				Where("channel = ? AND id = ?", channel, o.TransactionRowID).
				Updates(updates).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) MarkTransferred(ctx context.Context, channel string, ids []RowID, date time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&TransactionRow{}).
		Where("channel = ? AND id IN ?", channel, ids).
		Update("transferred_at", date).Error
}

// SaveLedger upserts ledger rows by id.
func (s *GormStore) SaveLedger(ctx context.Context, rows []LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, 500).Error
}

// SaveTransactions upserts report rows by (channel, id).
func (s *GormStore) SaveTransactions(ctx context.Context, channel string, rows []TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].Channel = channel
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, 500).Error
}
