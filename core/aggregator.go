package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Aggregator recomputes daily rollups from persisted detail rows. Every
// affected day is rebuilt in full; nothing is accumulated incrementally, so
// re-syncs, refund reattribution, and backfill overlap stay correct.
type Aggregator struct {
	orders OrderStore
	ads    AdsPerformanceStore
	kpis   DailyKPIStore
	sales  DailySalesStore
}

func NewAggregator(orders OrderStore, ads AdsPerformanceStore, kpis DailyKPIStore, sales DailySalesStore) *Aggregator {
	return &Aggregator{orders: orders, ads: ads, kpis: kpis, sales: sales}
}

// Ratio divides with NULL-on-zero-denominator semantics.
func Ratio(numerator, denominator float64) *float64 {
	if denominator == 0 {
		return nil
	}
	value := numerator / denominator
	return &value
}

// RecomputeCommerce rebuilds daily_sales and the commerce daily_kpis rows for
// the given days from stored orders and refund slices. Returns are summed by
// the refund's own day, not the order day.
func (a *Aggregator) RecomputeCommerce(ctx context.Context, tenantID string, source string, days []time.Time) error {
	if a == nil || a.orders == nil || a.kpis == nil || a.sales == nil {
		return fmt.Errorf("core: aggregator requires order, kpi, and sales stores")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("core: tenant id is required for aggregation")
	}
	days = normalizeDays(days)
	if len(days) == 0 {
		return nil
	}

	orders, err := a.orders.ListByDays(ctx, tenantID, days)
	if err != nil {
		return PersistenceError(err, "order listing failed")
	}
	slices, err := a.orders.ListRefundSlicesByDays(ctx, tenantID, days)
	if err != nil {
		return PersistenceError(err, "refund slice listing failed")
	}

	byDay := map[string]*DailySales{}
	dayFor := func(day time.Time) *DailySales {
		key := FormatDay(day)
		row, ok := byDay[key]
		if !ok {
			row = &DailySales{TenantID: tenantID, Day: DayOf(day)}
			byDay[key] = row
		}
		return row
	}

	for _, order := range orders {
		if !order.Countable() || order.GrossSales <= 0 {
			continue
		}
		row := dayFor(order.ProcessedAt)
		row.GrossSales += order.GrossSales
		row.Discounts += order.Discounts
		row.Taxes += order.Taxes
		row.Shipping += order.Shipping
		row.Orders++
		if order.IsFirstOrder {
			row.FirstTimeOrders++
		} else {
			row.ReturningOrders++
		}
	}
	for _, slice := range slices {
		dayFor(slice.Day).Returns += slice.Amount
	}

	salesRows := make([]DailySales, 0, len(byDay))
	kpiRows := make([]DailyKPI, 0, len(byDay))
	for _, key := range sortedKeys(byDay) {
		row := byDay[key]
		row.NetSales = row.GrossSales - row.Discounts - row.Returns
		row.Revenue = row.NetSales + row.Taxes + row.Shipping
		salesRows = append(salesRows, *row)

		kpiRows = append(kpiRows, DailyKPI{
			TenantID:   tenantID,
			Day:        row.Day,
			Source:     source,
			GrossSales: row.GrossSales,
			NetSales:   row.NetSales,
			Revenue:    row.Revenue,
			Orders:     row.Orders,
			AOV:        Ratio(row.Revenue, float64(row.Orders)),
		})
	}

	if err := a.sales.ReplaceDays(ctx, tenantID, days, salesRows); err != nil {
		return PersistenceError(err, "daily sales replace failed")
	}
	if err := a.kpis.ReplaceDays(ctx, tenantID, source, days, kpiRows); err != nil {
		return PersistenceError(err, "daily kpi replace failed")
	}
	return nil
}

// RecomputeAds rebuilds the ads daily_kpis rows for the given days from
// stored performance rows.
func (a *Aggregator) RecomputeAds(ctx context.Context, tenantID string, source string, days []time.Time) error {
	if a == nil || a.ads == nil || a.kpis == nil {
		return fmt.Errorf("core: aggregator requires ads and kpi stores")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("core: tenant id is required for aggregation")
	}
	days = normalizeDays(days)
	if len(days) == 0 {
		return nil
	}

	rows, err := a.ads.ListByDays(ctx, tenantID, days)
	if err != nil {
		return PersistenceError(err, "ads performance listing failed")
	}

	byDay := map[string]*DailyKPI{}
	for _, row := range rows {
		key := FormatDay(row.Day)
		kpi, ok := byDay[key]
		if !ok {
			kpi = &DailyKPI{TenantID: tenantID, Day: DayOf(row.Day), Source: source}
			byDay[key] = kpi
		}
		kpi.Spend += row.Spend
		kpi.Conversions += row.Conversions
		kpi.Revenue += row.ConversionValue
	}

	kpiRows := make([]DailyKPI, 0, len(byDay))
	for _, key := range sortedKeys(byDay) {
		kpi := byDay[key]
		kpi.ROAS = Ratio(kpi.Revenue, kpi.Spend)
		kpi.COS = Ratio(kpi.Spend, kpi.Revenue)
		kpi.AOV = Ratio(kpi.Revenue, kpi.Conversions)
		kpiRows = append(kpiRows, *kpi)
	}

	if err := a.kpis.ReplaceDays(ctx, tenantID, source, days, kpiRows); err != nil {
		return PersistenceError(err, "daily kpi replace failed")
	}
	return nil
}

func normalizeDays(days []time.Time) []time.Time {
	seen := map[string]struct{}{}
	out := make([]time.Time, 0, len(days))
	for _, day := range days {
		if day.IsZero() {
			continue
		}
		normalized := DayOf(day)
		key := normalized.Format(DayLayout)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, normalized)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sortedKeys[V any](m map[string]*V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
