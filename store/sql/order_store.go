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

type OrderStore struct {
	db *bun.DB
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &OrderStore{db: db}, nil
}

// UpsertOrders replays detail rows on the natural key; a rerun over the same
// window rewrites every derived field instead of accumulating.
func (s *OrderStore) UpsertOrders(ctx context.Context, orders []core.CommerceOrder) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: order store is not configured")
	}
	if len(orders) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	records := make([]*orderRecord, 0, len(orders))
	for _, order := range orders {
		if strings.TrimSpace(order.TenantID) == "" || strings.TrimSpace(order.ExternalID) == "" {
			return 0, fmt.Errorf("sqlstore: order tenant id and external id are required")
		}
		record := newOrderRecord(order, now)
		record.ID = uuid.NewString()
		records = append(records, record)
	}

	_, err := s.db.NewInsert().
		Model(&records).
		On("CONFLICT (tenant_id, provider_id, external_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("financial_status = EXCLUDED.financial_status").
		Set("customer_external_id = EXCLUDED.customer_external_id").
		Set("processed_at = EXCLUDED.processed_at").
		Set("day = EXCLUDED.day").
		Set("currency = EXCLUDED.currency").
		Set("gross_sales = EXCLUDED.gross_sales").
		Set("discounts = EXCLUDED.discounts").
		Set("returns = EXCLUDED.returns").
		Set("net_sales = EXCLUDED.net_sales").
		Set("taxes = EXCLUDED.taxes").
		Set("shipping = EXCLUDED.shipping").
		Set("total_price = EXCLUDED.total_price").
		Set("is_first_order = EXCLUDED.is_first_order").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *OrderStore) UpsertRefundSlices(ctx context.Context, slices []core.RefundSlice) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: order store is not configured")
	}
	if len(slices) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	records := make([]*refundSliceRecord, 0, len(slices))
	for _, slice := range slices {
		if strings.TrimSpace(slice.TenantID) == "" || strings.TrimSpace(slice.RefundExternalID) == "" {
			return 0, fmt.Errorf("sqlstore: refund slice tenant id and refund id are required")
		}
		record := newRefundSliceRecord(slice, now)
		record.ID = uuid.NewString()
		records = append(records, record)
	}

	_, err := s.db.NewInsert().
		Model(&records).
		On("CONFLICT (tenant_id, provider_id, order_external_id, refund_external_id) DO UPDATE").
		Set("day = EXCLUDED.day").
		Set("amount = EXCLUDED.amount").
		Set("tax_amount = EXCLUDED.tax_amount").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *OrderStore) ListByDays(ctx context.Context, tenantID string, days []time.Time) ([]core.CommerceOrder, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: order store is not configured")
	}
	keys := dayKeys(days)
	if len(keys) == 0 {
		return nil, nil
	}
	var records []*orderRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.day IN (?)", bun.In(keys)).
		OrderExpr("?TableAlias.day ASC, ?TableAlias.external_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.CommerceOrder, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *OrderStore) ListRefundSlicesByDays(ctx context.Context, tenantID string, days []time.Time) ([]core.RefundSlice, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: order store is not configured")
	}
	keys := dayKeys(days)
	if len(keys) == 0 {
		return nil, nil
	}
	var records []*refundSliceRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.day IN (?)", bun.In(keys)).
		OrderExpr("?TableAlias.day ASC, ?TableAlias.refund_external_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.RefundSlice, 0, len(records))
	for _, record := range records {
		slice, convErr := record.toDomain()
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, slice)
	}
	return out, nil
}
