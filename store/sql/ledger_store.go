package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ohjayaxel/syncengine/core"
	"github.com/uptrace/bun"
)

type CustomerLedgerStore struct {
	db *bun.DB
}

func NewCustomerLedgerStore(db *bun.DB) (*CustomerLedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &CustomerLedgerStore{db: db}, nil
}

// MergeFirstOrders applies a MIN-merge per customer: the stored pair only
// moves to a strictly earlier timestamp, or to a lexicographically smaller
// order id at the same timestamp. Replays and permutations are no-ops.
func (s *CustomerLedgerStore) MergeFirstOrders(ctx context.Context, entries []core.CustomerLedgerEntry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: customer ledger store is not configured")
	}
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	records := make([]*customerLedgerRecord, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.TenantID) == "" || strings.TrimSpace(entry.CustomerExternalID) == "" {
			return fmt.Errorf("sqlstore: ledger entry tenant id and customer id are required")
		}
		if entry.FirstOrderAt.IsZero() {
			return fmt.Errorf("sqlstore: ledger entry first order timestamp is required")
		}
		record := newCustomerLedgerRecord(entry, now)
		record.ID = uuid.NewString()
		records = append(records, record)
	}

	_, err := s.db.NewInsert().
		Model(&records).
		On("CONFLICT (tenant_id, customer_external_id) DO UPDATE").
		Set("first_order_at = EXCLUDED.first_order_at").
		Set("first_order_id = EXCLUDED.first_order_id").
		Set("updated_at = EXCLUDED.updated_at").
		Where("EXCLUDED.first_order_at < customer_ledger.first_order_at").
		WhereOr("EXCLUDED.first_order_at = customer_ledger.first_order_at AND EXCLUDED.first_order_id < customer_ledger.first_order_id").
		Exec(ctx)
	return err
}

func (s *CustomerLedgerStore) GetByCustomers(ctx context.Context, tenantID string, customerIDs []string) (map[string]core.CustomerLedgerEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: customer ledger store is not configured")
	}
	ids := make([]string, 0, len(customerIDs))
	for _, id := range customerIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return map[string]core.CustomerLedgerEntry{}, nil
	}

	var records []*customerLedgerRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.customer_external_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]core.CustomerLedgerEntry, len(records))
	for _, record := range records {
		entry := record.toDomain()
		out[entry.CustomerExternalID] = entry
	}
	return out, nil
}
