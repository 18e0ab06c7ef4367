package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ohjayaxel/syncengine/core"
	syncengine "github.com/ohjayaxel/syncengine/sync"
)

type stubSyncService struct {
	gotSource string
	gotReq    syncengine.Request
	response  syncengine.Response
	err       error
}

func (s *stubSyncService) SyncProvider(_ context.Context, source string, req syncengine.Request) (syncengine.Response, error) {
	s.gotSource = source
	s.gotReq = req
	if s.err != nil {
		return syncengine.Response{}, s.err
	}
	return s.response, nil
}

type stubRunHistoryStore struct {
	tenantID string
	limit    int
	runs     []core.SyncRun
}

func (s *stubRunHistoryStore) Begin(_ context.Context, run core.SyncRun) (core.SyncRun, error) {
	return run, nil
}

func (s *stubRunHistoryStore) Update(_ context.Context, run core.SyncRun) (core.SyncRun, error) {
	return run, nil
}

func (s *stubRunHistoryStore) Get(context.Context, string) (core.SyncRun, error) {
	return core.SyncRun{}, core.ErrSyncRunNotFound
}

func (s *stubRunHistoryStore) SweepStalled(context.Context, time.Time, string) (int, error) {
	return 0, nil
}

func (s *stubRunHistoryStore) ListByTenant(_ context.Context, tenantID string, limit int) ([]core.SyncRun, error) {
	s.tenantID = tenantID
	s.limit = limit
	return s.runs, nil
}

func newTestServer(t *testing.T, deps Deps, secret string) *Server {
	t.Helper()
	srv, err := NewServer(deps, core.HTTPConfig{SharedSecret: secret}, core.NewObserver(nil, nil, "test"))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func TestServer_SyncTriggerReportsPerTenantOutcomes(t *testing.T) {
	service := &stubSyncService{response: syncengine.Response{
		Source: "shopify",
		Results: []syncengine.TenantResult{
			{TenantID: "t1", RunID: "run_1", Status: syncengine.ResultStatusSucceeded, Inserted: 12, Window: "2024-05-07..2024-05-10"},
			{TenantID: "t2", Status: syncengine.ResultStatusFailed, RunID: "run_2", Error: "provider unavailable"},
			{TenantID: "t3", Status: syncengine.ResultStatusSkipped},
		},
	}}
	srv := newTestServer(t, Deps{Sync: service}, "")

	body := `{"mode":"incremental"}`
	req := httptest.NewRequest(http.MethodPost, "/sync/shopify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if service.gotSource != "shopify" {
		t.Fatalf("expected shopify source, got %q", service.gotSource)
	}
	if service.gotReq.Mode != "incremental" {
		t.Fatalf("expected incremental mode forwarded, got %q", service.gotReq.Mode)
	}

	var resp syncResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Source != "shopify" || len(resp.Results) != 3 {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if resp.Results[0].Inserted == nil || *resp.Results[0].Inserted != 12 {
		t.Fatalf("expected inserted count on succeeded tenant, got %#v", resp.Results[0])
	}
	if resp.Results[1].Inserted != nil || resp.Results[1].Error != "provider unavailable" {
		t.Fatalf("expected error without inserted on failed tenant, got %#v", resp.Results[1])
	}
	if resp.Results[2].Status != syncengine.ResultStatusSkipped || resp.Results[2].Error != "" {
		t.Fatalf("unexpected skipped tenant shape: %#v", resp.Results[2])
	}
}

func TestServer_SyncForwardsExplicitWindowAndOrderIDs(t *testing.T) {
	service := &stubSyncService{response: syncengine.Response{Source: "shopify"}}
	srv := newTestServer(t, Deps{Sync: service}, "")

	body := `{"tenantId":"t1","mode":"explicit","dateFrom":"2024-04-01","dateTo":"2024-04-07","orderIds":["o1","o2"]}`
	req := httptest.NewRequest(http.MethodPost, "/sync/shopify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := syncengine.Request{
		TenantID: "t1",
		Mode:     "explicit",
		DateFrom: "2024-04-01",
		DateTo:   "2024-04-07",
		OrderIDs: []string{"o1", "o2"},
	}
	if service.gotReq.TenantID != want.TenantID || service.gotReq.DateFrom != want.DateFrom ||
		service.gotReq.DateTo != want.DateTo || len(service.gotReq.OrderIDs) != 2 {
		t.Fatalf("unexpected request forwarded: %#v", service.gotReq)
	}
}

func TestServer_SyncUnknownSourceMapsToNotFound(t *testing.T) {
	service := &stubSyncService{err: core.ErrSourceNotRegistered}
	srv := newTestServer(t, Deps{Sync: service}, "")

	req := httptest.NewRequest(http.MethodPost, "/sync/unknown", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload.TextCode != core.SyncErrorSourceNotFound {
		t.Fatalf("expected %q code, got %q", core.SyncErrorSourceNotFound, payload.TextCode)
	}
}

func TestServer_SyncMalformedBodyRejected(t *testing.T) {
	service := &stubSyncService{}
	srv := newTestServer(t, Deps{Sync: service}, "")

	req := httptest.NewRequest(http.MethodPost, "/sync/shopify", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if service.gotSource != "" {
		t.Fatalf("expected no dispatch on malformed body")
	}
}

func TestServer_BearerSecretGatesTriggers(t *testing.T) {
	service := &stubSyncService{response: syncengine.Response{Source: "shopify"}}
	srv := newTestServer(t, Deps{Sync: service}, "s3cret")
	router := srv.Router()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing_header", header: "", want: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Basic s3cret", want: http.StatusUnauthorized},
		{name: "wrong_secret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid_secret", header: "Bearer s3cret", want: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sync/shopify", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_HealthzBypassesAuth(t *testing.T) {
	srv := newTestServer(t, Deps{Sync: &stubSyncService{}}, "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServer_RunHistoryEndpointDelegates(t *testing.T) {
	store := &stubRunHistoryStore{runs: []core.SyncRun{{ID: "run_1", TenantID: "t1", Status: core.SyncRunStatusSucceeded}}}
	srv := newTestServer(t, Deps{Sync: &stubSyncService{}, Runs: store}, "")

	req := httptest.NewRequest(http.MethodGet, "/tenants/t1/runs?limit=5", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.tenantID != "t1" || store.limit != 5 {
		t.Fatalf("unexpected delegation: tenant=%q limit=%d", store.tenantID, store.limit)
	}
}

func TestServer_RunHistoryRejectsBadLimit(t *testing.T) {
	srv := newTestServer(t, Deps{Sync: &stubSyncService{}, Runs: &stubRunHistoryStore{}}, "")

	req := httptest.NewRequest(http.MethodGet, "/tenants/t1/runs?limit=lots", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestServer_ReadEndpointsAbsentWithoutStores(t *testing.T) {
	srv := newTestServer(t, Deps{Sync: &stubSyncService{}}, "")

	req := httptest.NewRequest(http.MethodGet, "/tenants/t1/runs", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected route miss, got %d", rec.Code)
	}
}
