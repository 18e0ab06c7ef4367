package googleads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ohjayaxel/syncengine/core"
)

// Strategy runs one tenant's ads sync: fetch both reports, merge, resolve
// country codes, persist, recompute daily KPIs.
type Strategy struct {
	client     *Client
	ads        core.AdsPerformanceStore
	geo        core.GeoTargetStore
	aggregator *core.Aggregator
	observer   *core.Observer
}

func NewStrategy(
	client *Client,
	ads core.AdsPerformanceStore,
	geo core.GeoTargetStore,
	aggregator *core.Aggregator,
	observer *core.Observer,
) *Strategy {
	return &Strategy{
		client:     client,
		ads:        ads,
		geo:        geo,
		aggregator: aggregator,
		observer:   observer,
	}
}

func (s *Strategy) Source() string {
	return Source
}

func (s *Strategy) Sync(ctx context.Context, in core.SyncInput) (core.SyncOutput, error) {
	startedAt := time.Now()
	out, err := s.sync(ctx, in)
	s.observer.ObserveOperation(ctx, startedAt, "googleads_sync", err, map[string]any{
		"tenant_id":     in.Connection.TenantID,
		"connection_id": in.Connection.ID,
		"source":        Source,
		"inserted":      out.Inserted,
	})
	return out, err
}

func (s *Strategy) sync(ctx context.Context, in core.SyncInput) (core.SyncOutput, error) {
	if s == nil || s.client == nil || s.ads == nil || s.aggregator == nil {
		return core.SyncOutput{}, fmt.Errorf("googleads: strategy is not fully wired")
	}

	customerID := strings.TrimSpace(in.Connection.Progress.ExternalAccountID)
	if customerID == "" {
		return core.SyncOutput{}, core.ConfigError("googleads: connection has no customer id")
	}

	fetched, err := s.client.FetchPerformance(ctx, FetchRequest{
		CustomerID:  customerID,
		AccessToken: in.AccessToken,
		Window:      in.Window,
	})
	if err != nil {
		return core.SyncOutput{}, err
	}

	tenantID := in.Connection.TenantID
	rows := fetched.Rows
	unresolved := 0
	for i := range rows {
		rows[i].TenantID = tenantID
		rows[i].ProviderID = in.Connection.ProviderID
		rows[i].CountryCode = s.resolveCountry(ctx, rows[i].CountryCriterionID, &unresolved)
	}

	inserted, err := s.ads.UpsertRows(ctx, rows)
	if err != nil {
		return core.SyncOutput{}, err
	}

	days := affectedDays(in.Window, rows)
	if err := s.aggregator.RecomputeAds(ctx, tenantID, Source, days); err != nil {
		return core.SyncOutput{}, err
	}

	out := core.SyncOutput{
		Inserted:     inserted,
		AffectedDays: days,
		Metadata: map[string]any{
			"rows":  len(rows),
			"pages": fetched.Pages,
		},
	}
	if fetched.Truncated {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("page ceiling reached after %d pages, window persisted partially", fetched.Pages))
	}
	if fetched.Skipped > 0 {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("%d report rows skipped for unparseable dates", fetched.Skipped))
	}
	if unresolved > 0 {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("%d rows reference unknown geo criteria", unresolved))
	}
	return out, nil
}

// resolveCountry maps a criterion id to an ISO code. Unknown criteria keep
// an empty code; the row still persists and aggregates.
func (s *Strategy) resolveCountry(ctx context.Context, criterionID int64, unresolved *int) string {
	if s.geo == nil || criterionID == 0 {
		return ""
	}
	target, err := s.geo.Get(ctx, criterionID)
	if err != nil {
		if errors.Is(err, core.ErrGeoTargetNotFound) {
			*unresolved++
		}
		return ""
	}
	return target.CountryCode
}

func affectedDays(window core.Window, rows []core.AdsPerformanceRow) []time.Time {
	seen := map[time.Time]struct{}{}
	var days []time.Time
	add := func(day time.Time) {
		if day.IsZero() {
			return
		}
		day = core.DayOf(day)
		if _, ok := seen[day]; ok {
			return
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	for _, day := range window.Days() {
		add(day)
	}
	for _, row := range rows {
		add(row.Day)
	}
	return days
}

var _ core.SyncStrategy = (*Strategy)(nil)
