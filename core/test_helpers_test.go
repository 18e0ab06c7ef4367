package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

func ptrTime(t time.Time) *time.Time {
	return &t
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type memoryLedgerStore struct {
	mu      sync.Mutex
	entries map[string]CustomerLedgerEntry
}

func newMemoryLedgerStore() *memoryLedgerStore {
	return &memoryLedgerStore{entries: map[string]CustomerLedgerEntry{}}
}

func (s *memoryLedgerStore) MergeFirstOrders(_ context.Context, entries []CustomerLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		key := entry.TenantID + ":" + entry.CustomerExternalID
		current, ok := s.entries[key]
		if !ok || entry.Earlier(current) {
			s.entries[key] = entry
		}
	}
	return nil
}

func (s *memoryLedgerStore) GetByCustomers(_ context.Context, tenantID string, customerIDs []string) (map[string]CustomerLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]CustomerLedgerEntry{}
	for _, customerID := range customerIDs {
		if entry, ok := s.entries[tenantID+":"+customerID]; ok {
			out[customerID] = entry
		}
	}
	return out, nil
}

type memoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]CommerceOrder
	slices map[string]RefundSlice
}

func newMemoryOrderStore() *memoryOrderStore {
	return &memoryOrderStore{
		orders: map[string]CommerceOrder{},
		slices: map[string]RefundSlice{},
	}
}

func (s *memoryOrderStore) UpsertOrders(_ context.Context, orders []CommerceOrder) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range orders {
		s.orders[order.TenantID+":"+order.ProviderID+":"+order.ExternalID] = order
	}
	return len(orders), nil
}

func (s *memoryOrderStore) UpsertRefundSlices(_ context.Context, slices []RefundSlice) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slice := range slices {
		s.slices[slice.TenantID+":"+slice.ProviderID+":"+slice.RefundExternalID] = slice
	}
	return len(slices), nil
}

func (s *memoryOrderStore) ListByDays(_ context.Context, tenantID string, days []time.Time) ([]CommerceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := daySet(days)
	out := []CommerceOrder{}
	for _, order := range s.orders {
		if order.TenantID != tenantID {
			continue
		}
		if _, ok := wanted[FormatDay(order.ProcessedAt)]; ok {
			out = append(out, order)
		}
	}
	return out, nil
}

func (s *memoryOrderStore) ListRefundSlicesByDays(_ context.Context, tenantID string, days []time.Time) ([]RefundSlice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := daySet(days)
	out := []RefundSlice{}
	for _, slice := range s.slices {
		if slice.TenantID != tenantID {
			continue
		}
		if _, ok := wanted[FormatDay(slice.Day)]; ok {
			out = append(out, slice)
		}
	}
	return out, nil
}

type memoryAdsStore struct {
	mu   sync.Mutex
	rows map[string]AdsPerformanceRow
}

func newMemoryAdsStore() *memoryAdsStore {
	return &memoryAdsStore{rows: map[string]AdsPerformanceRow{}}
}

func (s *memoryAdsStore) UpsertRows(_ context.Context, rows []AdsPerformanceRow) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		key := fmt.Sprintf("%s:%s:%s:%s:%s:%d",
			row.TenantID, row.ProviderID, FormatDay(row.Day), row.CampaignID, row.AdGroupID, row.CountryCriterionID)
		s.rows[key] = row
	}
	return len(rows), nil
}

func (s *memoryAdsStore) ListByDays(_ context.Context, tenantID string, days []time.Time) ([]AdsPerformanceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := daySet(days)
	out := []AdsPerformanceRow{}
	for _, row := range s.rows {
		if row.TenantID != tenantID {
			continue
		}
		if _, ok := wanted[FormatDay(row.Day)]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

type memoryKPIStore struct {
	mu   sync.Mutex
	rows map[string]DailyKPI
}

func newMemoryKPIStore() *memoryKPIStore {
	return &memoryKPIStore{rows: map[string]DailyKPI{}}
}

func (s *memoryKPIStore) ReplaceDays(_ context.Context, tenantID string, source string, days []time.Time, rows []DailyKPI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, day := range days {
		delete(s.rows, tenantID+":"+FormatDay(day)+":"+source)
	}
	for _, row := range rows {
		s.rows[row.TenantID+":"+FormatDay(row.Day)+":"+row.Source] = row
	}
	return nil
}

func (s *memoryKPIStore) ListRange(_ context.Context, tenantID string, from time.Time, to time.Time, source string) ([]DailyKPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []DailyKPI{}
	for _, row := range s.rows {
		if row.TenantID != tenantID {
			continue
		}
		if source != "" && row.Source != source {
			continue
		}
		if row.Day.Before(DayOf(from)) || row.Day.After(DayOf(to)) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *memoryKPIStore) get(tenantID string, day time.Time, source string) (DailyKPI, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[tenantID+":"+FormatDay(day)+":"+source]
	return row, ok
}

type memorySalesStore struct {
	mu   sync.Mutex
	rows map[string]DailySales
}

func newMemorySalesStore() *memorySalesStore {
	return &memorySalesStore{rows: map[string]DailySales{}}
}

func (s *memorySalesStore) ReplaceDays(_ context.Context, tenantID string, days []time.Time, rows []DailySales) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, day := range days {
		delete(s.rows, tenantID+":"+FormatDay(day))
	}
	for _, row := range rows {
		s.rows[row.TenantID+":"+FormatDay(row.Day)] = row
	}
	return nil
}

func (s *memorySalesStore) ListRange(_ context.Context, tenantID string, from time.Time, to time.Time) ([]DailySales, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []DailySales{}
	for _, row := range s.rows {
		if row.TenantID != tenantID {
			continue
		}
		if row.Day.Before(DayOf(from)) || row.Day.After(DayOf(to)) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *memorySalesStore) get(tenantID string, day time.Time) (DailySales, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[tenantID+":"+FormatDay(day)]
	return row, ok
}

type memoryRunStore struct {
	mu   sync.Mutex
	next int
	runs map[string]SyncRun
}

func newMemoryRunStore() *memoryRunStore {
	return &memoryRunStore{runs: map[string]SyncRun{}}
}

func (s *memoryRunStore) Begin(_ context.Context, run SyncRun) (SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	run.ID = fmt.Sprintf("run_%d", s.next)
	s.runs[run.ID] = run
	return run, nil
}

func (s *memoryRunStore) Update(_ context.Context, run SyncRun) (SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return SyncRun{}, ErrSyncRunNotFound
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *memoryRunStore) Get(_ context.Context, id string) (SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return SyncRun{}, ErrSyncRunNotFound
	}
	return run, nil
}

func (s *memoryRunStore) SweepStalled(_ context.Context, cutoff time.Time, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	for id, run := range s.runs {
		if run.Status != SyncRunStatusRunning || !run.StartedAt.Before(cutoff) {
			continue
		}
		finished := cutoff
		run.Status = SyncRunStatusFailed
		run.Error = reason
		run.FinishedAt = &finished
		s.runs[id] = run
		swept++
	}
	return swept, nil
}

func (s *memoryRunStore) ListByTenant(_ context.Context, tenantID string, limit int) ([]SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []SyncRun{}
	for _, run := range s.runs {
		if run.TenantID == tenantID {
			out = append(out, run)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func daySet(days []time.Time) map[string]struct{} {
	out := make(map[string]struct{}, len(days))
	for _, day := range days {
		out[FormatDay(day)] = struct{}{}
	}
	return out
}
