package inbound

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ohjayaxel/syncengine/core"
	"github.com/ohjayaxel/syncengine/query"
	syncengine "github.com/ohjayaxel/syncengine/sync"
)

// SyncService is the orchestration surface the HTTP trigger delegates to.
type SyncService interface {
	SyncProvider(ctx context.Context, source string, req syncengine.Request) (syncengine.Response, error)
}

// Deps carries the collaborators for the inbound HTTP surface. Sync is
// required; the read stores are optional and gate their endpoints.
type Deps struct {
	Sync  SyncService
	Runs  core.SyncRunStore
	KPIs  core.DailyKPIStore
	Sales core.DailySalesStore
}

// Server exposes sync triggers and read endpoints over HTTP. Every tenant
// outcome of a trigger is reported in the 200 body; non-2xx statuses are
// reserved for request-level failures such as bad input or a missing source.
type Server struct {
	service  SyncService
	runs     *query.SyncRunHistoryQuery
	kpis     *query.DailyKPIRangeQuery
	sales    *query.DailySalesRangeQuery
	secret   string
	observer *core.Observer
}

func NewServer(deps Deps, cfg core.HTTPConfig, observer *core.Observer) (*Server, error) {
	if deps.Sync == nil {
		return nil, inboundInternal("inbound: sync service is required", nil)
	}
	srv := &Server{
		service:  deps.Sync,
		secret:   cfg.SharedSecret,
		observer: observer,
	}
	if deps.Runs != nil {
		srv.runs = query.NewSyncRunHistoryQuery(deps.Runs)
	}
	if deps.KPIs != nil {
		srv.kpis = query.NewDailyKPIRangeQuery(deps.KPIs)
	}
	if deps.Sales != nil {
		srv.sales = query.NewDailySalesRangeQuery(deps.Sales)
	}
	return srv, nil
}

// Router builds the chi mux. The health endpoint stays outside the
// shared-secret gate so probes do not need credentials.
func (s *Server) Router() http.Handler {
	mux := chi.NewRouter()

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Group(func(r chi.Router) {
		r.Use(s.authorize)
		r.Post("/sync/{source}", s.handleSync)
		if s.runs != nil {
			r.Get("/tenants/{tenantID}/runs", s.handleRunHistory)
		}
		if s.kpis != nil {
			r.Get("/tenants/{tenantID}/kpis", s.handleDailyKPIs)
		}
		if s.sales != nil {
			r.Get("/tenants/{tenantID}/sales", s.handleDailySales)
		}
	})

	return mux
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Empty secret disables the gate; local runs configure none.
		if s.secret == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
			writeError(w, inboundUnauthorized("inbound: invalid or missing bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

type syncRequestBody struct {
	TenantID string   `json:"tenantId"`
	Mode     string   `json:"mode"`
	DateFrom string   `json:"dateFrom"`
	DateTo   string   `json:"dateTo"`
	OrderIDs []string `json:"orderIds"`
}

type tenantResultBody struct {
	TenantID string `json:"tenantId"`
	Status   string `json:"status"`
	RunID    string `json:"runId,omitempty"`
	Inserted *int   `json:"inserted,omitempty"`
	Window   string `json:"window,omitempty"`
	Error    string `json:"error,omitempty"`
}

type syncResponseBody struct {
	Source  string             `json:"source"`
	Results []tenantResultBody `json:"results"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	source := strings.TrimSpace(chi.URLParam(r, "source"))
	if source == "" {
		writeError(w, inboundBadInput("inbound: source path segment is required", nil))
		return
	}

	var body syncRequestBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, inboundBadInput("inbound: malformed request body", map[string]any{
				"source": source,
			}))
			return
		}
	}

	req := syncengine.Request{
		TenantID: strings.TrimSpace(body.TenantID),
		Mode:     strings.TrimSpace(body.Mode),
		DateFrom: strings.TrimSpace(body.DateFrom),
		DateTo:   strings.TrimSpace(body.DateTo),
		OrderIDs: body.OrderIDs,
	}

	out, err := s.service.SyncProvider(r.Context(), source, req)
	if err != nil {
		s.observer.LogError(r.Context(), "sync trigger failed", map[string]any{
			"source": source,
			"error":  err.Error(),
		})
		writeError(w, err)
		return
	}

	resp := syncResponseBody{Source: out.Source, Results: make([]tenantResultBody, 0, len(out.Results))}
	for _, res := range out.Results {
		entry := tenantResultBody{
			TenantID: res.TenantID,
			Status:   res.Status,
			RunID:    res.RunID,
			Window:   res.Window,
		}
		switch res.Status {
		case syncengine.ResultStatusSucceeded:
			inserted := res.Inserted
			entry.Inserted = &inserted
		case syncengine.ResultStatusFailed:
			entry.Error = res.Error
		}
		resp.Results = append(resp.Results, entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	msg := query.SyncRunHistoryMessage{
		TenantID: chi.URLParam(r, "tenantID"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, inboundBadInput("inbound: limit must be an integer", nil))
			return
		}
		msg.Limit = limit
	}
	if err := msg.Validate(); err != nil {
		writeError(w, err)
		return
	}
	runs, err := s.runs.Query(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenantId": msg.TenantID, "runs": runs})
}

func (s *Server) handleDailyKPIs(w http.ResponseWriter, r *http.Request) {
	msg := query.DailyKPIRangeMessage{
		TenantID: chi.URLParam(r, "tenantID"),
		DateFrom: r.URL.Query().Get("from"),
		DateTo:   r.URL.Query().Get("to"),
		Source:   r.URL.Query().Get("source"),
	}
	if err := msg.Validate(); err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.kpis.Query(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenantId": msg.TenantID, "kpis": rows})
}

func (s *Server) handleDailySales(w http.ResponseWriter, r *http.Request) {
	msg := query.DailySalesRangeMessage{
		TenantID: chi.URLParam(r, "tenantID"),
		DateFrom: r.URL.Query().Get("from"),
		DateTo:   r.URL.Query().Get("to"),
	}
	if err := msg.Validate(); err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.sales.Query(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenantId": msg.TenantID, "sales": rows})
}

type errorBody struct {
	Error    string `json:"error"`
	TextCode string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	rich := core.MapSyncError(err)
	status := rich.Code
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Error: rich.Message, TextCode: rich.TextCode})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
