package syncengine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	syncengine "github.com/ohjayaxel/syncengine"
	"github.com/ohjayaxel/syncengine/core"
	"github.com/ohjayaxel/syncengine/providers/devkit"
	"github.com/ohjayaxel/syncengine/providers/shopify"
	"github.com/ohjayaxel/syncengine/security"
)

// Exercises the composed runtime the way a deployment does: configuration,
// vault, strategy registry, orchestrator, and the HTTP trigger surface, with
// provider traffic scripted through the devkit transport.
func TestEngineComposition_HTTPTriggerRunsShopifySync(t *testing.T) {
	ctx := context.Background()

	vault, err := security.NewMultiKeyVault([]string{"composition-test-key"})
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	encryptedToken, err := vault.Encrypt(ctx, []byte("shpat_composition"))
	if err != nil {
		t.Fatalf("encrypt token: %v", err)
	}

	stores := newCompStoreProvider()
	stores.connections.seed(core.Connection{
		ID:                   "conn_1",
		TenantID:             "t1",
		ProviderID:           shopify.Source,
		Status:               core.ConnectionStatusConnected,
		EncryptedAccessToken: encryptedToken,
		Progress:             core.SyncProgress{Version: core.SyncProgressVersion, ExternalAccountID: "demo.myshopify.com"},
	})

	fake := devkit.NewFakeTransportAdapter("graphql",
		devkit.OKScript(devkit.ShopifyOrdersPage(false, "",
			compOrderNode("gid://shopify/Order/1", "gid://shopify/Customer/1", "2024-05-01T10:00:00Z"),
			compOrderNode("gid://shopify/Order/2", "gid://shopify/Customer/2", "2024-05-02T10:00:00Z"),
		)),
	)
	registry := core.NewStrategyRegistry()
	strategy := shopify.NewStrategy(
		shopify.NewClient(fake, core.ShopifyConfig{APIVersion: "2024-07"}, 50),
		stores.orders,
		core.NewClassifier(stores.ledger),
		core.NewAggregator(stores.orders, stores.ads, stores.kpis, stores.sales),
		nil,
		"fallback.myshopify.com",
	)
	if err := registry.Register(strategy); err != nil {
		t.Fatalf("register strategy: %v", err)
	}

	cfg := syncengine.DefaultConfig()
	cfg.HTTP.SharedSecret = "composition-secret"

	engine, err := syncengine.NewEngine(cfg,
		syncengine.WithStores(stores),
		syncengine.WithRegistry(registry),
		syncengine.WithSecretProvider(vault),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	server := httptest.NewServer(engine.HTTPHandler())
	defer server.Close()

	res := compDoJSON(t, server.URL+"/sync/shopify", "composition-secret",
		`{"tenantId":"t1","mode":"explicit","dateFrom":"2024-05-01","dateTo":"2024-05-03"}`)
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	var out struct {
		Source  string `json:"source"`
		Results []struct {
			TenantID string `json:"tenantId"`
			Status   string `json:"status"`
			RunID    string `json:"runId"`
			Inserted *int   `json:"inserted"`
			Window   string `json:"window"`
			Error    string `json:"error"`
		} `json:"results"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Source != "shopify" || len(out.Results) != 1 {
		t.Fatalf("unexpected response: %#v", out)
	}
	result := out.Results[0]
	if result.Status != "succeeded" || result.TenantID != "t1" {
		t.Fatalf("expected succeeded result for t1, got %#v", result)
	}
	if result.Inserted == nil || *result.Inserted != 2 {
		t.Fatalf("expected 2 inserted, got %#v", result.Inserted)
	}
	if result.Window != "2024-05-01..2024-05-03" {
		t.Fatalf("unexpected window: %q", result.Window)
	}

	// Orders landed through the strategy and the natural key holds.
	if len(stores.orders.orders) != 2 {
		t.Fatalf("expected 2 persisted orders, got %d", len(stores.orders.orders))
	}
	if _, ok := stores.orders.orders["t1|1"]; !ok {
		t.Fatalf("expected order t1|1 persisted, got %v", stores.orders.orders)
	}

	// The job log reached a terminal state and the cursor advanced.
	run, err := stores.runs.Get(ctx, result.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != core.SyncRunStatusSucceeded || run.InsertedCount != 2 {
		t.Fatalf("unexpected run record: %#v", run)
	}
	progress, ok := stores.connections.progressByID["conn_1"]
	if !ok || progress.LastRunSummary == "" {
		t.Fatalf("expected progress advanced with a run summary, got %#v", progress)
	}

	// Read-after-write through the query endpoints.
	history := compGet(t, server.URL+"/tenants/t1/runs?limit=10", "composition-secret")
	defer history.Body.Close()
	if history.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 run history, got %d", history.StatusCode)
	}
	var historyOut struct {
		Runs []core.SyncRun `json:"runs"`
	}
	if err := json.NewDecoder(history.Body).Decode(&historyOut); err != nil {
		t.Fatalf("decode run history: %v", err)
	}
	if len(historyOut.Runs) != 1 || historyOut.Runs[0].ID != result.RunID {
		t.Fatalf("unexpected run history: %#v", historyOut.Runs)
	}

	kpiRes := compGet(t, server.URL+"/tenants/t1/kpis?from=2024-05-01&to=2024-05-03&source=shopify", "composition-secret")
	defer kpiRes.Body.Close()
	if kpiRes.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 kpis, got %d", kpiRes.StatusCode)
	}
	var kpiOut struct {
		Rows []core.DailyKPI `json:"kpis"`
	}
	if err := json.NewDecoder(kpiRes.Body).Decode(&kpiOut); err != nil {
		t.Fatalf("decode kpis: %v", err)
	}
	if len(kpiOut.Rows) != 2 {
		t.Fatalf("expected kpi rows for both order days, got %#v", kpiOut.Rows)
	}

	// The fake transport saw the shop-scoped endpoint with the decrypted token.
	requests := fake.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected a single provider call, got %d", len(requests))
	}
	if !strings.Contains(requests[0].URL, "demo.myshopify.com") {
		t.Fatalf("expected shop domain from connection progress, got %q", requests[0].URL)
	}
}

func TestEngineComposition_SharedSecretGatesTrigger(t *testing.T) {
	vault, err := security.NewMultiKeyVault([]string{"composition-test-key"})
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	registry := core.NewStrategyRegistry()
	if err := registry.Register(compNoopStrategy{}); err != nil {
		t.Fatalf("register strategy: %v", err)
	}

	cfg := syncengine.DefaultConfig()
	cfg.HTTP.SharedSecret = "composition-secret"
	engine, err := syncengine.NewEngine(cfg,
		syncengine.WithStores(newCompStoreProvider()),
		syncengine.WithRegistry(registry),
		syncengine.WithSecretProvider(vault),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	server := httptest.NewServer(engine.HTTPHandler())
	defer server.Close()

	res := compDoJSON(t, server.URL+"/sync/shopify", "wrong-secret", `{}`)
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong secret, got %d", res.StatusCode)
	}

	health, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz outside the gate, got %d", health.StatusCode)
	}
}

func compDoJSON(t *testing.T, url string, secret string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+secret)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return res
}

func compGet(t *testing.T, url string, secret string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return res
}

func compOrderNode(id string, customerID string, processedAt string) map[string]any {
	money := func(amount string) map[string]any {
		return map[string]any{"shopMoney": map[string]any{"amount": amount, "currencyCode": "EUR"}}
	}
	return map[string]any{
		"id":                     id,
		"name":                   "#" + id[strings.LastIndex(id, "/")+1:],
		"processedAt":            processedAt,
		"displayFinancialStatus": "PAID",
		"currencyCode":           "EUR",
		"taxesIncluded":          true,
		"customer":               map[string]any{"id": customerID},
		"subtotalPriceSet":       money("125.00"),
		"totalTaxSet":            money("25.00"),
		"totalDiscountsSet":      money("0.00"),
		"totalShippingPriceSet":  money("0.00"),
		"totalPriceSet":          money("125.00"),
		"lineItems": map[string]any{
			"nodes": []any{map[string]any{
				"id":                   "gid://shopify/LineItem/1",
				"quantity":             1,
				"originalUnitPriceSet": money("125.00"),
				"discountedTotalSet":   money("125.00"),
				"totalDiscountSet":     money("0.00"),
				"taxLines":             []any{map[string]any{"rate": 0.25, "priceSet": money("25.00")}},
			}},
		},
		"refunds": []any{},
	}
}

type compNoopStrategy struct{}

func (compNoopStrategy) Source() string { return "shopify" }

func (compNoopStrategy) Sync(context.Context, core.SyncInput) (core.SyncOutput, error) {
	return core.SyncOutput{}, nil
}

type compStoreProvider struct {
	connections *compConnectionStore
	orders      *compOrderStore
	ads         *compAdsStore
	ledger      *compLedgerStore
	kpis        *compKPIStore
	sales       *compSalesStore
	runs        *compRunStore
}

func newCompStoreProvider() *compStoreProvider {
	return &compStoreProvider{
		connections: &compConnectionStore{connections: map[string]core.Connection{}, progressByID: map[string]core.SyncProgress{}},
		orders:      &compOrderStore{orders: map[string]core.CommerceOrder{}, slices: map[string]core.RefundSlice{}},
		ads:         &compAdsStore{rows: map[string]core.AdsPerformanceRow{}},
		ledger:      &compLedgerStore{entries: map[string]core.CustomerLedgerEntry{}},
		kpis:        &compKPIStore{rows: map[string]core.DailyKPI{}},
		sales:       &compSalesStore{rows: map[string]core.DailySales{}},
		runs:        &compRunStore{runs: map[string]core.SyncRun{}},
	}
}

func (p *compStoreProvider) ConnectionStore() core.ConnectionStore         { return p.connections }
func (p *compStoreProvider) OrderStore() core.OrderStore                   { return p.orders }
func (p *compStoreProvider) AdsPerformanceStore() core.AdsPerformanceStore { return p.ads }
func (p *compStoreProvider) CustomerLedgerStore() core.CustomerLedgerStore { return p.ledger }
func (p *compStoreProvider) DailyKPIStore() core.DailyKPIStore             { return p.kpis }
func (p *compStoreProvider) DailySalesStore() core.DailySalesStore         { return p.sales }
func (p *compStoreProvider) SyncRunStore() core.SyncRunStore               { return p.runs }
func (p *compStoreProvider) GeoTargetStore() core.GeoTargetStore           { return nil }

type compConnectionStore struct {
	connections  map[string]core.Connection
	progressByID map[string]core.SyncProgress
}

func (s *compConnectionStore) seed(conn core.Connection) {
	s.connections[conn.TenantID+"/"+conn.ProviderID] = conn
}

func (s *compConnectionStore) Create(_ context.Context, conn core.Connection) (core.Connection, error) {
	s.seed(conn)
	return conn, nil
}

func (s *compConnectionStore) GetByTenant(_ context.Context, tenantID string, providerID string) (core.Connection, error) {
	conn, ok := s.connections[tenantID+"/"+providerID]
	if !ok {
		return core.Connection{}, core.ErrConnectionNotFound
	}
	return conn, nil
}

func (s *compConnectionStore) ListConnected(_ context.Context, providerID string, limit int) ([]core.Connection, error) {
	out := []core.Connection{}
	for _, conn := range s.connections {
		if conn.ProviderID == providerID && conn.Connected() {
			out = append(out, conn)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *compConnectionStore) UpdateProgress(_ context.Context, id string, progress core.SyncProgress, _ time.Time) error {
	s.progressByID[id] = progress
	return nil
}

func (s *compConnectionStore) UpdateTokens(_ context.Context, id string, access []byte, refresh []byte, expiresAt *time.Time) error {
	for key, conn := range s.connections {
		if conn.ID != id {
			continue
		}
		conn.EncryptedAccessToken = access
		conn.EncryptedRefreshToken = refresh
		conn.TokenExpiresAt = expiresAt
		s.connections[key] = conn
	}
	return nil
}

type compOrderStore struct {
	orders map[string]core.CommerceOrder
	slices map[string]core.RefundSlice
}

func (s *compOrderStore) UpsertOrders(_ context.Context, orders []core.CommerceOrder) (int, error) {
	for _, order := range orders {
		s.orders[order.TenantID+"|"+order.ExternalID] = order
	}
	return len(orders), nil
}

func (s *compOrderStore) UpsertRefundSlices(_ context.Context, slices []core.RefundSlice) (int, error) {
	for _, slice := range slices {
		s.slices[slice.TenantID+"|"+slice.OrderExternalID+"|"+slice.RefundExternalID] = slice
	}
	return len(slices), nil
}

func (s *compOrderStore) ListByDays(_ context.Context, tenantID string, days []time.Time) ([]core.CommerceOrder, error) {
	set := compDaySet(days)
	var out []core.CommerceOrder
	for _, order := range s.orders {
		if order.TenantID != tenantID {
			continue
		}
		if _, ok := set[core.DayOf(order.ProcessedAt)]; ok {
			out = append(out, order)
		}
	}
	return out, nil
}

func (s *compOrderStore) ListRefundSlicesByDays(_ context.Context, tenantID string, days []time.Time) ([]core.RefundSlice, error) {
	set := compDaySet(days)
	var out []core.RefundSlice
	for _, slice := range s.slices {
		if slice.TenantID != tenantID {
			continue
		}
		if _, ok := set[slice.Day]; ok {
			out = append(out, slice)
		}
	}
	return out, nil
}

func compDaySet(days []time.Time) map[time.Time]struct{} {
	set := make(map[time.Time]struct{}, len(days))
	for _, day := range days {
		set[core.DayOf(day)] = struct{}{}
	}
	return set
}

type compAdsStore struct {
	rows map[string]core.AdsPerformanceRow
}

func (s *compAdsStore) UpsertRows(_ context.Context, rows []core.AdsPerformanceRow) (int, error) {
	for i, row := range rows {
		s.rows[fmt.Sprintf("%s|%s|%d", row.TenantID, core.FormatDay(row.Day), i)] = row
	}
	return len(rows), nil
}

func (s *compAdsStore) ListByDays(_ context.Context, tenantID string, days []time.Time) ([]core.AdsPerformanceRow, error) {
	set := compDaySet(days)
	var out []core.AdsPerformanceRow
	for _, row := range s.rows {
		if row.TenantID != tenantID {
			continue
		}
		if _, ok := set[core.DayOf(row.Day)]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

type compLedgerStore struct {
	entries map[string]core.CustomerLedgerEntry
}

func (s *compLedgerStore) MergeFirstOrders(_ context.Context, entries []core.CustomerLedgerEntry) error {
	for _, entry := range entries {
		key := entry.TenantID + "|" + entry.CustomerExternalID
		existing, ok := s.entries[key]
		if !ok || entry.Earlier(existing) {
			s.entries[key] = entry
		}
	}
	return nil
}

func (s *compLedgerStore) GetByCustomers(_ context.Context, tenantID string, customerIDs []string) (map[string]core.CustomerLedgerEntry, error) {
	out := map[string]core.CustomerLedgerEntry{}
	for _, id := range customerIDs {
		if entry, ok := s.entries[tenantID+"|"+id]; ok {
			out[id] = entry
		}
	}
	return out, nil
}

type compKPIStore struct {
	rows map[string]core.DailyKPI
}

func (s *compKPIStore) ReplaceDays(_ context.Context, tenantID string, source string, days []time.Time, rows []core.DailyKPI) error {
	for _, day := range days {
		delete(s.rows, tenantID+"|"+source+"|"+core.FormatDay(day))
	}
	for _, row := range rows {
		s.rows[row.TenantID+"|"+row.Source+"|"+core.FormatDay(row.Day)] = row
	}
	return nil
}

func (s *compKPIStore) ListRange(_ context.Context, tenantID string, from time.Time, to time.Time, source string) ([]core.DailyKPI, error) {
	var out []core.DailyKPI
	for _, row := range s.rows {
		if row.TenantID != tenantID || (source != "" && row.Source != source) {
			continue
		}
		if row.Day.Before(core.DayOf(from)) || row.Day.After(core.DayOf(to)) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

type compSalesStore struct {
	rows map[string]core.DailySales
}

func (s *compSalesStore) ReplaceDays(_ context.Context, tenantID string, days []time.Time, rows []core.DailySales) error {
	for _, day := range days {
		delete(s.rows, tenantID+"|"+core.FormatDay(day))
	}
	for _, row := range rows {
		s.rows[row.TenantID+"|"+core.FormatDay(row.Day)] = row
	}
	return nil
}

func (s *compSalesStore) ListRange(_ context.Context, tenantID string, from time.Time, to time.Time) ([]core.DailySales, error) {
	var out []core.DailySales
	for _, row := range s.rows {
		if row.TenantID != tenantID {
			continue
		}
		if row.Day.Before(core.DayOf(from)) || row.Day.After(core.DayOf(to)) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

type compRunStore struct {
	runs map[string]core.SyncRun
	seq  int
}

func (s *compRunStore) Begin(_ context.Context, run core.SyncRun) (core.SyncRun, error) {
	s.seq++
	run.ID = fmt.Sprintf("run_%d", s.seq)
	s.runs[run.ID] = run
	return run, nil
}

func (s *compRunStore) Update(_ context.Context, run core.SyncRun) (core.SyncRun, error) {
	if _, ok := s.runs[run.ID]; !ok {
		return core.SyncRun{}, core.ErrSyncRunNotFound
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *compRunStore) Get(_ context.Context, id string) (core.SyncRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return core.SyncRun{}, core.ErrSyncRunNotFound
	}
	return run, nil
}

func (s *compRunStore) SweepStalled(_ context.Context, cutoff time.Time, reason string) (int, error) {
	swept := 0
	for id, run := range s.runs {
		if run.Status == core.SyncRunStatusRunning && run.StartedAt.Before(cutoff) {
			run.Status = core.SyncRunStatusFailed
			run.Error = reason
			s.runs[id] = run
			swept++
		}
	}
	return swept, nil
}

func (s *compRunStore) ListByTenant(_ context.Context, tenantID string, _ int) ([]core.SyncRun, error) {
	out := []core.SyncRun{}
	for _, run := range s.runs {
		if run.TenantID == tenantID {
			out = append(out, run)
		}
	}
	return out, nil
}
