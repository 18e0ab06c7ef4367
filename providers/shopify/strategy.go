package shopify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ohjayaxel/syncengine/core"
)

// Strategy runs one tenant's commerce sync: fetch, transform, classify,
// persist, recompute. Locking, credentials, and the job log belong to the
// orchestrator.
type Strategy struct {
	client     *Client
	orders     core.OrderStore
	classifier *core.Classifier
	aggregator *core.Aggregator
	observer   *core.Observer

	// fallback shop domain when the connection does not carry one
	shopDomain string
}

func NewStrategy(
	client *Client,
	orders core.OrderStore,
	classifier *core.Classifier,
	aggregator *core.Aggregator,
	observer *core.Observer,
	shopDomain string,
) *Strategy {
	return &Strategy{
		client:     client,
		orders:     orders,
		classifier: classifier,
		aggregator: aggregator,
		observer:   observer,
		shopDomain: strings.TrimSpace(shopDomain),
	}
}

func (s *Strategy) Source() string {
	return Source
}

func (s *Strategy) Sync(ctx context.Context, in core.SyncInput) (core.SyncOutput, error) {
	startedAt := time.Now()
	out, err := s.sync(ctx, in)
	s.observer.ObserveOperation(ctx, startedAt, "shopify_sync", err, map[string]any{
		"tenant_id":     in.Connection.TenantID,
		"connection_id": in.Connection.ID,
		"source":        Source,
		"inserted":      out.Inserted,
	})
	return out, err
}

func (s *Strategy) sync(ctx context.Context, in core.SyncInput) (core.SyncOutput, error) {
	if s == nil || s.client == nil || s.orders == nil || s.classifier == nil || s.aggregator == nil {
		return core.SyncOutput{}, fmt.Errorf("shopify: strategy is not fully wired")
	}

	shop := s.shopFor(in.Connection)
	if shop == "" {
		return core.SyncOutput{}, core.ConfigError("shopify: connection has no shop domain")
	}

	fetched, err := s.client.FetchOrders(ctx, FetchRequest{
		Shop:        shop,
		AccessToken: in.AccessToken,
		Window:      in.Window,
		OrderIDs:    in.OrderIDs,
	})
	if err != nil {
		return core.SyncOutput{}, err
	}

	tenantID := in.Connection.TenantID
	providerID := in.Connection.ProviderID
	orders := make([]core.CommerceOrder, 0, len(fetched.Orders))
	var slices []core.RefundSlice
	malformedAmounts := 0
	for _, raw := range fetched.Orders {
		order, orderSlices, malformed := TransformOrder(tenantID, providerID, raw)
		orders = append(orders, order)
		slices = append(slices, orderSlices...)
		malformedAmounts += malformed
	}

	classified, err := s.classifier.Classify(ctx, tenantID, orders)
	if err != nil {
		return core.SyncOutput{}, err
	}

	insertedOrders, err := s.orders.UpsertOrders(ctx, classified)
	if err != nil {
		return core.SyncOutput{}, err
	}
	insertedSlices, err := s.orders.UpsertRefundSlices(ctx, slices)
	if err != nil {
		return core.SyncOutput{}, err
	}

	days := affectedDays(in.Window, classified, slices)
	if err := s.aggregator.RecomputeCommerce(ctx, tenantID, Source, days); err != nil {
		return core.SyncOutput{}, err
	}

	out := core.SyncOutput{
		Inserted:     insertedOrders + insertedSlices,
		AffectedDays: days,
		Metadata: map[string]any{
			"orders":        len(classified),
			"refund_slices": len(slices),
			"pages":         fetched.Pages,
		},
	}
	if fetched.Truncated {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("page ceiling reached after %d pages, window persisted partially", fetched.Pages))
	}
	if malformedAmounts > 0 {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("%d money amounts failed to parse and were read as zero", malformedAmounts))
	}
	return out, nil
}

func (s *Strategy) shopFor(conn core.Connection) string {
	if shop := strings.TrimSpace(conn.Progress.ExternalAccountID); shop != "" {
		return shop
	}
	return s.shopDomain
}

// affectedDays covers the requested window plus every day a detail row
// actually landed on, so refund slices outside the window recompute too.
func affectedDays(window core.Window, orders []core.CommerceOrder, slices []core.RefundSlice) []time.Time {
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
	for _, order := range orders {
		if !order.ProcessedAt.IsZero() {
			add(order.ProcessedAt)
		}
	}
	for _, slice := range slices {
		add(slice.Day)
	}
	return days
}

var _ core.SyncStrategy = (*Strategy)(nil)
