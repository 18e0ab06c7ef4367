package shopify

import (
	"math"
	"strings"

	"github.com/ohjayaxel/syncengine/core"
)

// moneyReader reads money fields while counting amounts that fail to
// parse, so callers can surface the silent zeroes.
type moneyReader struct {
	malformed int
}

func (r *moneyReader) value(m Money) float64 {
	value, ok := m.parse()
	if !ok {
		r.malformed++
	}
	return value
}

// TransformOrder derives the tax-exclusive accounting fields from one raw
// order. Shops with tax-inclusive pricing report line prices with embedded
// tax; conversion uses the per-order effective rate, or the line's own tax
// lines when rates are mixed across the order. The third return counts
// money amounts that failed to parse and were read as zero.
func TransformOrder(tenantID string, providerID string, o Order) (core.CommerceOrder, []core.RefundSlice, int) {
	money := &moneyReader{}
	order := core.CommerceOrder{
		TenantID:        tenantID,
		ProviderID:      providerID,
		ExternalID:      NumericID(o.ID),
		Name:            strings.TrimSpace(o.Name),
		FinancialStatus: strings.ToLower(strings.TrimSpace(o.DisplayFinancialStatus)),
		ProcessedAt:     o.ProcessedAt.UTC(),
		Currency:        strings.TrimSpace(o.CurrencyCode),
		TotalPrice:      round2(money.value(o.TotalPriceSet)),
	}
	if o.Customer != nil {
		order.CustomerExternalID = NumericID(o.Customer.ID)
	}

	taxTotal := money.value(o.TotalTaxSet)
	subtotal := money.value(o.SubtotalPriceSet)
	orderRate := effectiveRate(taxTotal, subtotal, o.TaxesIncluded)

	var gross, lineDiscounts, addbackTotal float64
	lineRates := map[string]float64{}
	for _, line := range o.LineItems.Nodes {
		rate := lineTaxRate(line, orderRate)
		lineRates[line.ID] = rate

		base := money.value(line.OriginalUnitPriceSet) * float64(line.Quantity)
		grossLine := base
		disc := money.value(line.TotalDiscountSet)
		if o.TaxesIncluded {
			grossLine = exTax(base, rate)
			disc = exTax(disc, rate)
		}
		// A 100%-discounted line never collected its embedded tax. Add the
		// tax back to both sides so gross and discounts agree on it.
		if o.TaxesIncluded && base > 0 && money.value(line.DiscountedTotalSet) == 0 {
			addback := base - exTax(base, rate)
			grossLine += addback
			disc += addback
			addbackTotal += addback
		}
		gross += grossLine
		lineDiscounts += disc
	}

	discounts := lineDiscounts
	if orderDiscount := money.value(o.TotalDiscountsSet); orderDiscount > 0 {
		if o.TaxesIncluded {
			orderDiscount = exTax(orderDiscount, orderRate)
		}
		discounts = orderDiscount + addbackTotal
	}

	shipping := money.value(o.TotalShippingPriceSet)
	if o.TaxesIncluded {
		shipping = exTax(shipping, orderRate)
	}

	slices := refundSlices(order, o, lineRates, orderRate, money)
	var returns float64
	for _, slice := range slices {
		returns += slice.Amount
	}

	if !order.Countable() {
		return order, nil, money.malformed
	}

	order.GrossSales = round2(gross)
	order.Discounts = round2(discounts)
	order.Returns = round2(returns)
	order.NetSales = round2(gross - discounts - returns)
	order.Taxes = round2(taxTotal)
	order.Shipping = round2(shipping)
	return order, slices, money.malformed
}

// refundSlices dates each refund by its own created day. Line-item subtotals
// convert via the original line's rate; refunds without a line-item breakdown
// fall back to successful refund transactions at the order rate.
func refundSlices(order core.CommerceOrder, o Order, lineRates map[string]float64, orderRate float64, money *moneyReader) []core.RefundSlice {
	var slices []core.RefundSlice
	for _, refund := range o.Refunds {
		var amount, tax float64
		if len(refund.RefundLineItems.Nodes) > 0 {
			for _, node := range refund.RefundLineItems.Nodes {
				rate, ok := lineRates[node.LineItem.ID]
				if !ok {
					rate = orderRate
				}
				value := money.value(node.SubtotalSet)
				if o.TaxesIncluded {
					value = exTax(value, rate)
				}
				amount += value
				if reported := money.value(node.TotalTaxSet); reported > 0 {
					tax += reported
				} else {
					tax += value * rate
				}
			}
		} else {
			for _, txn := range refund.Transactions {
				if !successfulRefundTransaction(txn) {
					continue
				}
				value := money.value(txn.AmountSet)
				if o.TaxesIncluded {
					value = exTax(value, orderRate)
				}
				amount += value
				tax += value * orderRate
			}
		}
		if amount == 0 {
			continue
		}
		slices = append(slices, core.RefundSlice{
			TenantID:         order.TenantID,
			ProviderID:       order.ProviderID,
			OrderExternalID:  order.ExternalID,
			RefundExternalID: NumericID(refund.ID),
			Day:              core.DayOf(refund.CreatedAt),
			Amount:           round2(amount),
			TaxAmount:        round2(tax),
		})
	}
	return slices
}

func successfulRefundTransaction(txn RefundTransaction) bool {
	return strings.EqualFold(strings.TrimSpace(txn.Kind), "refund") &&
		strings.EqualFold(strings.TrimSpace(txn.Status), "success")
}

// effectiveRate infers the order tax rate from reported totals. For
// inclusive pricing the subtotal embeds the tax, so the exclusive base is
// subtotal minus tax.
func effectiveRate(taxTotal float64, subtotal float64, taxesIncluded bool) float64 {
	if taxTotal <= 0 || subtotal <= 0 {
		return 0
	}
	if taxesIncluded {
		base := subtotal - taxTotal
		if base <= 0 {
			return 0
		}
		return taxTotal / base
	}
	return taxTotal / subtotal
}

func lineTaxRate(line LineItem, orderRate float64) float64 {
	if len(line.TaxLines) == 0 {
		return orderRate
	}
	var rate float64
	for _, taxLine := range line.TaxLines {
		rate += taxLine.Rate
	}
	return rate
}

func exTax(value float64, rate float64) float64 {
	if rate <= 0 {
		return value
	}
	return value / (1 + rate)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// NumericID strips the gid prefix, keeping the trailing numeric id that the
// natural keys use.
func NumericID(gid string) string {
	trimmed := strings.TrimSpace(gid)
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
