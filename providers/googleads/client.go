package googleads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/ohjayaxel/syncengine/core"
)

const Source = "googleads"

const defaultPageCeiling = 50

// The query language cannot join cost metrics with conversion segments in
// one report, so the window is fetched as two reports and merged on
// (date, campaign, ad group, country criterion).
const metricsReport = `SELECT
  segments.date,
  campaign.id,
  campaign.name,
  ad_group.id,
  ad_group.name,
  geographic_view.country_criterion_id,
  metrics.cost_micros,
  metrics.clicks,
  metrics.impressions
FROM geographic_view
WHERE segments.date BETWEEN '%s' AND '%s'`

const conversionsReport = `SELECT
  segments.date,
  campaign.id,
  ad_group.id,
  geographic_view.country_criterion_id,
  metrics.conversions,
  metrics.conversions_value
FROM geographic_view
WHERE segments.date BETWEEN '%s' AND '%s'`

type searchResult struct {
	Segments struct {
		Date string `json:"date"`
	} `json:"segments"`
	Campaign struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"campaign"`
	AdGroup struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"adGroup"`
	GeographicView struct {
		CountryCriterionID string `json:"countryCriterionId"`
	} `json:"geographicView"`
	Metrics struct {
		CostMicros       string  `json:"costMicros"`
		Clicks           string  `json:"clicks"`
		Impressions      string  `json:"impressions"`
		Conversions      float64 `json:"conversions"`
		ConversionsValue float64 `json:"conversionsValue"`
	} `json:"metrics"`
}

type searchPage struct {
	Results       []searchResult `json:"results"`
	NextPageToken string         `json:"nextPageToken"`
	Error         *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type FetchRequest struct {
	CustomerID  string
	AccessToken string
	Window      core.Window
	PageCeiling int
}

type FetchResult struct {
	Rows      []core.AdsPerformanceRow
	Pages     int
	Truncated bool

	// report rows dropped for unparseable dates
	Skipped int
}

// Client fetches daily performance from the ads search API with page-token
// pagination.
type Client struct {
	Adapter        core.TransportAdapter
	APIVersion     string
	DeveloperToken string
	PageCeiling    int
}

func NewClient(adapter core.TransportAdapter, cfg core.GoogleAdsConfig, pageCeiling int) *Client {
	client := &Client{
		Adapter:        adapter,
		APIVersion:     strings.TrimSpace(cfg.APIVersion),
		DeveloperToken: strings.TrimSpace(cfg.DeveloperToken),
		PageCeiling:    pageCeiling,
	}
	if client.APIVersion == "" {
		client.APIVersion = "v17"
	}
	if client.PageCeiling <= 0 {
		client.PageCeiling = defaultPageCeiling
	}
	return client
}

// FetchPerformance runs both reports for the window and merges them into
// canonical rows. Cost arrives in micros.
func (c *Client) FetchPerformance(ctx context.Context, req FetchRequest) (FetchResult, error) {
	if c == nil || c.Adapter == nil {
		return FetchResult{}, fmt.Errorf("googleads: client requires a transport adapter")
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return FetchResult{}, fmt.Errorf("googleads: customer id is required")
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return FetchResult{}, fmt.Errorf("googleads: access token is required")
	}
	if req.Window.Start.IsZero() || req.Window.End.IsZero() {
		return FetchResult{}, fmt.Errorf("googleads: sync window is required")
	}

	from := core.FormatDay(req.Window.Start)
	to := core.FormatDay(req.Window.End)

	metrics, metricsPages, metricsTruncated, err := c.search(ctx, req, fmt.Sprintf(metricsReport, from, to), "ads metrics report")
	if err != nil {
		return FetchResult{}, err
	}
	conversions, conversionPages, conversionsTruncated, err := c.search(ctx, req, fmt.Sprintf(conversionsReport, from, to), "ads conversions report")
	if err != nil {
		return FetchResult{}, err
	}

	rows, skipped := mergeReports(metrics, conversions)
	return FetchResult{
		Rows:      rows,
		Pages:     metricsPages + conversionPages,
		Truncated: metricsTruncated || conversionsTruncated,
		Skipped:   skipped,
	}, nil
}

func (c *Client) search(ctx context.Context, req FetchRequest, query string, operation string) ([]searchResult, int, bool, error) {
	ceiling := req.PageCeiling
	if ceiling <= 0 {
		ceiling = c.PageCeiling
	}

	var results []searchResult
	pages := 0
	pageToken := ""
	for {
		payload := map[string]any{"query": query}
		if pageToken != "" {
			payload["pageToken"] = pageToken
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, pages, false, fmt.Errorf("googleads: marshal search payload: %w", err)
		}

		res, err := c.Adapter.Do(ctx, core.TransportRequest{
			Method: http.MethodPost,
			URL:    c.endpoint(req.CustomerID),
			Headers: map[string]string{
				"Authorization":   "Bearer " + strings.TrimSpace(req.AccessToken),
				"Content-Type":    "application/json",
				"developer-token": c.DeveloperToken,
			},
			Body:     body,
			Metadata: map[string]any{"operation": operation},
		})
		if err != nil {
			return nil, pages, false, err
		}
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return nil, pages, false, core.ReauthError(fmt.Sprintf(
				"ads api rejected credentials for customer %s (status %d), re-authenticate this connection",
				req.CustomerID, res.StatusCode,
			))
		}
		if res.StatusCode != http.StatusOK {
			return nil, pages, false, goerrors.New(
				fmt.Sprintf("googleads: search returned status %d", res.StatusCode),
				goerrors.CategoryExternal,
			).WithCode(http.StatusBadGateway).WithTextCode(core.SyncErrorProviderUnavailable)
		}

		var page searchPage
		if err := json.Unmarshal(res.Body, &page); err != nil {
			return nil, pages, false, fmt.Errorf("googleads: decode search page: %w", err)
		}
		if page.Error != nil {
			return nil, pages, false, goerrors.New(
				fmt.Sprintf("googleads: search error: %s", page.Error.Message),
				goerrors.CategoryExternal,
			).WithCode(http.StatusBadGateway).WithTextCode(core.SyncErrorProviderUnavailable)
		}

		pages++
		results = append(results, page.Results...)
		if page.NextPageToken == "" {
			return results, pages, false, nil
		}
		if pages >= ceiling {
			return results, pages, true, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) endpoint(customerID string) string {
	return fmt.Sprintf(
		"https://googleads.googleapis.com/%s/customers/%s/googleAds:search",
		c.APIVersion, strings.TrimSpace(customerID),
	)
}

func parseMicros(value string) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	micros, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0
	}
	return float64(micros) / 1e6
}

func parseCount(value string) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	count, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0
	}
	return count
}
