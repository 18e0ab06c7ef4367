package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/ohjayaxel/syncengine/core"
)

const Source = "shopify"

const (
	defaultPageSize    = 50
	defaultPageCeiling = 50
)

// ordersQuery pages the admin orders connection. The $search filter carries
// either a processed_at range or an explicit id list.
const ordersQuery = `query SyncOrders($first: Int!, $after: String, $search: String) {
  orders(first: $first, after: $after, query: $search, sortKey: PROCESSED_AT) {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        id
        name
        processedAt
        displayFinancialStatus
        currencyCode
        taxesIncluded
        customer { id }
        subtotalPriceSet { shopMoney { amount currencyCode } }
        totalTaxSet { shopMoney { amount currencyCode } }
        totalDiscountsSet { shopMoney { amount currencyCode } }
        totalShippingPriceSet { shopMoney { amount currencyCode } }
        totalPriceSet { shopMoney { amount currencyCode } }
        lineItems(first: 100) {
          nodes {
            id
            quantity
            originalUnitPriceSet { shopMoney { amount currencyCode } }
            discountedTotalSet { shopMoney { amount currencyCode } }
            totalDiscountSet { shopMoney { amount currencyCode } }
            taxLines { rate priceSet { shopMoney { amount currencyCode } } }
          }
        }
        refunds {
          id
          createdAt
          refundLineItems(first: 100) {
            nodes {
              quantity
              subtotalSet { shopMoney { amount currencyCode } }
              totalTaxSet { shopMoney { amount currencyCode } }
              lineItem { id }
            }
          }
          transactions { kind status gateway amountSet { shopMoney { amount currencyCode } } }
        }
      }
    }
  }
}`

type Money struct {
	ShopMoney struct {
		Amount       string `json:"amount"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"shopMoney"`
}

func (m Money) Value() float64 {
	value, _ := m.parse()
	return value
}

// parse reads the amount, reporting whether it was usable. An absent amount
// reads as zero and stays ok; a non-empty amount that fails to parse does
// not.
func (m Money) parse() (float64, bool) {
	amount := strings.TrimSpace(m.ShopMoney.Amount)
	if amount == "" {
		return 0, true
	}
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

type TaxLine struct {
	Rate     float64 `json:"rate"`
	PriceSet Money   `json:"priceSet"`
}

type LineItem struct {
	ID                   string    `json:"id"`
	Quantity             int       `json:"quantity"`
	OriginalUnitPriceSet Money     `json:"originalUnitPriceSet"`
	DiscountedTotalSet   Money     `json:"discountedTotalSet"`
	TotalDiscountSet     Money     `json:"totalDiscountSet"`
	TaxLines             []TaxLine `json:"taxLines"`
}

type RefundLineItem struct {
	Quantity    int   `json:"quantity"`
	SubtotalSet Money `json:"subtotalSet"`
	TotalTaxSet Money `json:"totalTaxSet"`
	LineItem    struct {
		ID string `json:"id"`
	} `json:"lineItem"`
}

type RefundTransaction struct {
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Gateway   string `json:"gateway"`
	AmountSet Money  `json:"amountSet"`
}

type Refund struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	RefundLineItems struct {
		Nodes []RefundLineItem `json:"nodes"`
	} `json:"refundLineItems"`
	Transactions []RefundTransaction `json:"transactions"`
}

type Order struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	ProcessedAt            time.Time `json:"processedAt"`
	DisplayFinancialStatus string    `json:"displayFinancialStatus"`
	CurrencyCode           string    `json:"currencyCode"`
	TaxesIncluded          bool      `json:"taxesIncluded"`
	Customer               *struct {
		ID string `json:"id"`
	} `json:"customer"`
	SubtotalPriceSet      Money `json:"subtotalPriceSet"`
	TotalTaxSet           Money `json:"totalTaxSet"`
	TotalDiscountsSet     Money `json:"totalDiscountsSet"`
	TotalShippingPriceSet Money `json:"totalShippingPriceSet"`
	TotalPriceSet         Money `json:"totalPriceSet"`
	LineItems             struct {
		Nodes []LineItem `json:"nodes"`
	} `json:"lineItems"`
	Refunds []Refund `json:"refunds"`
}

type ordersEnvelope struct {
	Data struct {
		Orders struct {
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
			Edges []struct {
				Node Order `json:"node"`
			} `json:"edges"`
		} `json:"orders"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type FetchRequest struct {
	Shop        string
	AccessToken string
	Window      core.Window
	OrderIDs    []string
	PageCeiling int
}

type FetchResult struct {
	Orders    []Order
	Pages     int
	Truncated bool
}

// Client fetches orders from the admin GraphQL API, one cursor page at a
// time. Adapter is expected to be retry-wrapped.
type Client struct {
	Adapter     core.TransportAdapter
	APIVersion  string
	PageSize    int
	PageCeiling int
}

func NewClient(adapter core.TransportAdapter, cfg core.ShopifyConfig, pageCeiling int) *Client {
	client := &Client{
		Adapter:     adapter,
		APIVersion:  strings.TrimSpace(cfg.APIVersion),
		PageSize:    defaultPageSize,
		PageCeiling: pageCeiling,
	}
	if client.APIVersion == "" {
		client.APIVersion = "2024-07"
	}
	if client.PageCeiling <= 0 {
		client.PageCeiling = defaultPageCeiling
	}
	return client
}

func (c *Client) FetchOrders(ctx context.Context, req FetchRequest) (FetchResult, error) {
	if c == nil || c.Adapter == nil {
		return FetchResult{}, fmt.Errorf("shopify: client requires a transport adapter")
	}
	shop := strings.TrimSpace(req.Shop)
	if shop == "" {
		return FetchResult{}, fmt.Errorf("shopify: shop domain is required")
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return FetchResult{}, fmt.Errorf("shopify: access token is required")
	}
	search, err := c.searchFilter(req)
	if err != nil {
		return FetchResult{}, err
	}

	ceiling := req.PageCeiling
	if ceiling <= 0 {
		ceiling = c.PageCeiling
	}
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := FetchResult{}
	cursor := ""
	for {
		variables := map[string]any{
			"first":  pageSize,
			"search": search,
		}
		if cursor != "" {
			variables["after"] = cursor
		}

		res, err := c.Adapter.Do(ctx, core.TransportRequest{
			URL: c.endpoint(shop),
			Headers: map[string]string{
				"X-Shopify-Access-Token": strings.TrimSpace(req.AccessToken),
			},
			Metadata: map[string]any{
				"operation":      "shopify orders page",
				"query":          ordersQuery,
				"operation_name": "SyncOrders",
				"variables":      variables,
			},
		})
		if err != nil {
			return result, err
		}
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return result, core.ReauthError(fmt.Sprintf(
				"shopify rejected credentials for shop %s (status %d), re-authenticate this connection",
				shop, res.StatusCode,
			))
		}
		if res.StatusCode != http.StatusOK {
			return result, goerrors.New(
				fmt.Sprintf("shopify: orders query for shop %s (%s) returned status %d", shop, search, res.StatusCode),
				goerrors.CategoryExternal,
			).WithCode(http.StatusBadGateway).WithTextCode(core.SyncErrorProviderUnavailable)
		}

		var envelope ordersEnvelope
		if err := json.Unmarshal(res.Body, &envelope); err != nil {
			return result, fmt.Errorf("shopify: decode orders page: %w", err)
		}
		if len(envelope.Errors) > 0 {
			return result, goerrors.New(
				fmt.Sprintf("shopify: graphql error: %s", envelope.Errors[0].Message),
				goerrors.CategoryExternal,
			).WithCode(http.StatusBadGateway).WithTextCode(core.SyncErrorProviderUnavailable)
		}

		result.Pages++
		for _, edge := range envelope.Data.Orders.Edges {
			result.Orders = append(result.Orders, edge.Node)
		}

		page := envelope.Data.Orders.PageInfo
		if !page.HasNextPage {
			return result, nil
		}
		if result.Pages >= ceiling {
			result.Truncated = true
			return result, nil
		}
		cursor = page.EndCursor
	}
}

func (c *Client) endpoint(shop string) string {
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, c.APIVersion)
}

func (c *Client) searchFilter(req FetchRequest) (string, error) {
	if len(req.OrderIDs) > 0 {
		parts := make([]string, 0, len(req.OrderIDs))
		for _, id := range req.OrderIDs {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				parts = append(parts, "id:"+trimmed)
			}
		}
		if len(parts) == 0 {
			return "", fmt.Errorf("shopify: order id list is empty")
		}
		return strings.Join(parts, " OR "), nil
	}
	if req.Window.Start.IsZero() || req.Window.End.IsZero() {
		return "", fmt.Errorf("shopify: sync window is required")
	}
	return fmt.Sprintf(
		"processed_at:>='%s' processed_at:<='%s'",
		core.FormatDay(req.Window.Start),
		core.FormatDay(req.Window.End),
	), nil
}
