package sqlstore

import (
	"time"

	"github.com/ohjayaxel/syncengine/core"
)

func newConnectionRecord(conn core.Connection, now time.Time) *connectionRecord {
	record := &connectionRecord{
		ID:                    conn.ID,
		TenantID:              conn.TenantID,
		ProviderID:            conn.ProviderID,
		Status:                string(conn.Status),
		EncryptedAccessToken:  append([]byte(nil), conn.EncryptedAccessToken...),
		EncryptedRefreshToken: append([]byte(nil), conn.EncryptedRefreshToken...),
		Progress:              conn.Progress,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if conn.TokenExpiresAt != nil {
		expiresAt := conn.TokenExpiresAt.UTC()
		record.TokenExpiresAt = &expiresAt
	}
	if conn.Progress.LastSyncAt != nil {
		syncedAt := conn.Progress.LastSyncAt.UTC()
		record.LastSyncedAt = &syncedAt
	}
	return record
}

func (r *connectionRecord) toDomain() core.Connection {
	if r == nil {
		return core.Connection{}
	}
	conn := core.Connection{
		ID:                    r.ID,
		TenantID:              r.TenantID,
		ProviderID:            r.ProviderID,
		Status:                core.ConnectionStatus(r.Status),
		EncryptedAccessToken:  append([]byte(nil), r.EncryptedAccessToken...),
		EncryptedRefreshToken: append([]byte(nil), r.EncryptedRefreshToken...),
		Progress:              r.Progress,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	if r.TokenExpiresAt != nil {
		expiresAt := *r.TokenExpiresAt
		conn.TokenExpiresAt = &expiresAt
	}
	return conn
}

func newOrderRecord(order core.CommerceOrder, now time.Time) *orderRecord {
	record := &orderRecord{
		TenantID:           order.TenantID,
		ProviderID:         order.ProviderID,
		ExternalID:         order.ExternalID,
		Name:               order.Name,
		FinancialStatus:    order.FinancialStatus,
		CustomerExternalID: order.CustomerExternalID,
		ProcessedAt:        order.ProcessedAt,
		Currency:           order.Currency,
		GrossSales:         order.GrossSales,
		Discounts:          order.Discounts,
		Returns:            order.Returns,
		NetSales:           order.NetSales,
		Taxes:              order.Taxes,
		Shipping:           order.Shipping,
		TotalPrice:         order.TotalPrice,
		IsFirstOrder:       order.IsFirstOrder,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if !order.ProcessedAt.IsZero() {
		record.Day = core.FormatDay(order.ProcessedAt)
	}
	return record
}

func (r *orderRecord) toDomain() core.CommerceOrder {
	if r == nil {
		return core.CommerceOrder{}
	}
	return core.CommerceOrder{
		TenantID:           r.TenantID,
		ProviderID:         r.ProviderID,
		ExternalID:         r.ExternalID,
		Name:               r.Name,
		FinancialStatus:    r.FinancialStatus,
		CustomerExternalID: r.CustomerExternalID,
		ProcessedAt:        r.ProcessedAt,
		Currency:           r.Currency,
		GrossSales:         r.GrossSales,
		Discounts:          r.Discounts,
		Returns:            r.Returns,
		NetSales:           r.NetSales,
		Taxes:              r.Taxes,
		Shipping:           r.Shipping,
		TotalPrice:         r.TotalPrice,
		IsFirstOrder:       r.IsFirstOrder,
	}
}

func newRefundSliceRecord(slice core.RefundSlice, now time.Time) *refundSliceRecord {
	return &refundSliceRecord{
		TenantID:         slice.TenantID,
		ProviderID:       slice.ProviderID,
		OrderExternalID:  slice.OrderExternalID,
		RefundExternalID: slice.RefundExternalID,
		Day:              core.FormatDay(slice.Day),
		Amount:           slice.Amount,
		TaxAmount:        slice.TaxAmount,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (r *refundSliceRecord) toDomain() (core.RefundSlice, error) {
	if r == nil {
		return core.RefundSlice{}, nil
	}
	day, err := core.ParseDay(r.Day)
	if err != nil {
		return core.RefundSlice{}, err
	}
	return core.RefundSlice{
		TenantID:         r.TenantID,
		ProviderID:       r.ProviderID,
		OrderExternalID:  r.OrderExternalID,
		RefundExternalID: r.RefundExternalID,
		Day:              day,
		Amount:           r.Amount,
		TaxAmount:        r.TaxAmount,
	}, nil
}

func newAdsPerformanceRecord(row core.AdsPerformanceRow, now time.Time) *adsPerformanceRecord {
	return &adsPerformanceRecord{
		TenantID:           row.TenantID,
		ProviderID:         row.ProviderID,
		Day:                core.FormatDay(row.Day),
		CampaignID:         row.CampaignID,
		CampaignName:       row.CampaignName,
		AdGroupID:          row.AdGroupID,
		AdGroupName:        row.AdGroupName,
		CountryCriterionID: row.CountryCriterionID,
		CountryCode:        row.CountryCode,
		Spend:              row.Spend,
		Clicks:             row.Clicks,
		Impressions:        row.Impressions,
		Conversions:        row.Conversions,
		ConversionValue:    row.ConversionValue,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (r *adsPerformanceRecord) toDomain() (core.AdsPerformanceRow, error) {
	if r == nil {
		return core.AdsPerformanceRow{}, nil
	}
	day, err := core.ParseDay(r.Day)
	if err != nil {
		return core.AdsPerformanceRow{}, err
	}
	return core.AdsPerformanceRow{
		TenantID:           r.TenantID,
		ProviderID:         r.ProviderID,
		Day:                day,
		CampaignID:         r.CampaignID,
		CampaignName:       r.CampaignName,
		AdGroupID:          r.AdGroupID,
		AdGroupName:        r.AdGroupName,
		CountryCriterionID: r.CountryCriterionID,
		CountryCode:        r.CountryCode,
		Spend:              r.Spend,
		Clicks:             r.Clicks,
		Impressions:        r.Impressions,
		Conversions:        r.Conversions,
		ConversionValue:    r.ConversionValue,
	}, nil
}

func newCustomerLedgerRecord(entry core.CustomerLedgerEntry, now time.Time) *customerLedgerRecord {
	return &customerLedgerRecord{
		TenantID:           entry.TenantID,
		CustomerExternalID: entry.CustomerExternalID,
		FirstOrderAt:       entry.FirstOrderAt.UTC(),
		FirstOrderID:       entry.FirstOrderID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (r *customerLedgerRecord) toDomain() core.CustomerLedgerEntry {
	if r == nil {
		return core.CustomerLedgerEntry{}
	}
	return core.CustomerLedgerEntry{
		TenantID:           r.TenantID,
		CustomerExternalID: r.CustomerExternalID,
		FirstOrderAt:       r.FirstOrderAt,
		FirstOrderID:       r.FirstOrderID,
	}
}

func newDailyKPIRecord(row core.DailyKPI, now time.Time) *dailyKPIRecord {
	return &dailyKPIRecord{
		TenantID:    row.TenantID,
		Day:         core.FormatDay(row.Day),
		Source:      row.Source,
		Spend:       row.Spend,
		GrossSales:  row.GrossSales,
		NetSales:    row.NetSales,
		Revenue:     row.Revenue,
		Orders:      row.Orders,
		Conversions: row.Conversions,
		ROAS:        cloneFloatPointer(row.ROAS),
		COS:         cloneFloatPointer(row.COS),
		AOV:         cloneFloatPointer(row.AOV),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *dailyKPIRecord) toDomain() (core.DailyKPI, error) {
	if r == nil {
		return core.DailyKPI{}, nil
	}
	day, err := core.ParseDay(r.Day)
	if err != nil {
		return core.DailyKPI{}, err
	}
	return core.DailyKPI{
		TenantID:    r.TenantID,
		Day:         day,
		Source:      r.Source,
		Spend:       r.Spend,
		GrossSales:  r.GrossSales,
		NetSales:    r.NetSales,
		Revenue:     r.Revenue,
		Orders:      r.Orders,
		Conversions: r.Conversions,
		ROAS:        cloneFloatPointer(r.ROAS),
		COS:         cloneFloatPointer(r.COS),
		AOV:         cloneFloatPointer(r.AOV),
	}, nil
}

func newDailySalesRecord(row core.DailySales, now time.Time) *dailySalesRecord {
	return &dailySalesRecord{
		TenantID:        row.TenantID,
		Day:             core.FormatDay(row.Day),
		GrossSales:      row.GrossSales,
		Discounts:       row.Discounts,
		Returns:         row.Returns,
		NetSales:        row.NetSales,
		Taxes:           row.Taxes,
		Shipping:        row.Shipping,
		Revenue:         row.Revenue,
		Orders:          row.Orders,
		FirstTimeOrders: row.FirstTimeOrders,
		ReturningOrders: row.ReturningOrders,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (r *dailySalesRecord) toDomain() (core.DailySales, error) {
	if r == nil {
		return core.DailySales{}, nil
	}
	day, err := core.ParseDay(r.Day)
	if err != nil {
		return core.DailySales{}, err
	}
	return core.DailySales{
		TenantID:        r.TenantID,
		Day:             day,
		GrossSales:      r.GrossSales,
		Discounts:       r.Discounts,
		Returns:         r.Returns,
		NetSales:        r.NetSales,
		Taxes:           r.Taxes,
		Shipping:        r.Shipping,
		Revenue:         r.Revenue,
		Orders:          r.Orders,
		FirstTimeOrders: r.FirstTimeOrders,
		ReturningOrders: r.ReturningOrders,
	}, nil
}

func newSyncRunRecord(run core.SyncRun, now time.Time) *syncRunRecord {
	record := &syncRunRecord{
		ID:            run.ID,
		TenantID:      run.TenantID,
		Source:        run.Source,
		Status:        string(run.Status),
		StartedAt:     run.StartedAt.UTC(),
		Error:         run.Error,
		InsertedCount: run.InsertedCount,
		Metadata:      copyAnyMap(run.Metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if run.FinishedAt != nil {
		finishedAt := run.FinishedAt.UTC()
		record.FinishedAt = &finishedAt
	}
	return record
}

func (r *syncRunRecord) toDomain() core.SyncRun {
	if r == nil {
		return core.SyncRun{}
	}
	run := core.SyncRun{
		ID:            r.ID,
		TenantID:      r.TenantID,
		Source:        r.Source,
		Status:        core.SyncRunStatus(r.Status),
		StartedAt:     r.StartedAt,
		Error:         r.Error,
		InsertedCount: r.InsertedCount,
		Metadata:      copyAnyMap(r.Metadata),
	}
	if r.FinishedAt != nil {
		finishedAt := *r.FinishedAt
		run.FinishedAt = &finishedAt
	}
	return run
}

func newGeoTargetRecord(target core.GeoTarget, now time.Time) *geoTargetRecord {
	return &geoTargetRecord{
		CriterionID: target.CriterionID,
		CountryCode: target.CountryCode,
		Name:        target.Name,
		UpdatedAt:   now,
	}
}

func (r *geoTargetRecord) toDomain() core.GeoTarget {
	if r == nil {
		return core.GeoTarget{}
	}
	return core.GeoTarget{
		CriterionID: r.CriterionID,
		CountryCode: r.CountryCode,
		Name:        r.Name,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneFloatPointer(in *float64) *float64 {
	if in == nil {
		return nil
	}
	value := *in
	return &value
}

func dayKeys(days []time.Time) []string {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(days))
	keys := make([]string, 0, len(days))
	for _, day := range days {
		key := core.FormatDay(day)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
