package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Classifier flags first orders against the persisted customer ledger.
type Classifier struct {
	ledger CustomerLedgerStore
}

func NewClassifier(ledger CustomerLedgerStore) *Classifier {
	return &Classifier{ledger: ledger}
}

// Classify runs the two-phase write-then-read flagging: batch candidates are
// MIN-merged into the ledger, then every order is flagged first iff its own
// (timestamp, order id) pair equals the ledger pair exactly. The read-back is
// what keeps the result stable under batch chunking and replay.
func (c *Classifier) Classify(ctx context.Context, tenantID string, orders []CommerceOrder) ([]CommerceOrder, error) {
	if c == nil || c.ledger == nil {
		return nil, fmt.Errorf("core: classifier requires a customer ledger store")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("core: tenant id is required for classification")
	}
	if len(orders) == 0 {
		return orders, nil
	}

	candidates := ledgerCandidates(tenantID, orders)
	if len(candidates) > 0 {
		if err := c.ledger.MergeFirstOrders(ctx, candidates); err != nil {
			return nil, PersistenceError(err, "customer ledger merge failed")
		}
	}

	customerIDs := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		customerIDs = append(customerIDs, candidate.CustomerExternalID)
	}
	ledger, err := c.ledger.GetByCustomers(ctx, tenantID, customerIDs)
	if err != nil {
		return nil, PersistenceError(err, "customer ledger read failed")
	}

	out := make([]CommerceOrder, len(orders))
	copy(out, orders)
	for i := range out {
		out[i].IsFirstOrder = false
		customerID := strings.TrimSpace(out[i].CustomerExternalID)
		if customerID == "" || out[i].ProcessedAt.IsZero() {
			continue
		}
		entry, ok := ledger[customerID]
		if !ok {
			return nil, fmt.Errorf("%w: customer %q", ErrLedgerCustomerNotClassified, customerID)
		}
		out[i].IsFirstOrder = entry.FirstOrderID == out[i].ExternalID &&
			entry.FirstOrderAt.Equal(out[i].ProcessedAt.UTC())
	}
	return out, nil
}

// ledgerCandidates reduces a batch to one earliest (timestamp, order id) pair
// per customer, sorted for deterministic merge order.
func ledgerCandidates(tenantID string, orders []CommerceOrder) []CustomerLedgerEntry {
	best := map[string]CustomerLedgerEntry{}
	for _, order := range orders {
		customerID := strings.TrimSpace(order.CustomerExternalID)
		if customerID == "" || order.ProcessedAt.IsZero() {
			continue
		}
		candidate := CustomerLedgerEntry{
			TenantID:           tenantID,
			CustomerExternalID: customerID,
			FirstOrderAt:       order.ProcessedAt.UTC(),
			FirstOrderID:       order.ExternalID,
		}
		current, ok := best[customerID]
		if !ok || candidate.Earlier(current) {
			best[customerID] = candidate
		}
	}

	keys := make([]string, 0, len(best))
	for key := range best {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]CustomerLedgerEntry, 0, len(keys))
	for _, key := range keys {
		out = append(out, best[key])
	}
	return out
}
