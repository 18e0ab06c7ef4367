package googleads

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ohjayaxel/syncengine/core"
	"github.com/ohjayaxel/syncengine/providers/devkit"
)

func metricsResult(date string, campaignID string, adGroupID string, criterion string, costMicros string, clicks string, impressions string) map[string]any {
	return map[string]any{
		"segments":       map[string]any{"date": date},
		"campaign":       map[string]any{"id": campaignID, "name": "Campaign " + campaignID},
		"adGroup":        map[string]any{"id": adGroupID, "name": "AdGroup " + adGroupID},
		"geographicView": map[string]any{"countryCriterionId": criterion},
		"metrics": map[string]any{
			"costMicros":  costMicros,
			"clicks":      clicks,
			"impressions": impressions,
		},
	}
}

func conversionsResult(date string, campaignID string, adGroupID string, criterion string, conversions float64, value float64) map[string]any {
	return map[string]any{
		"segments":       map[string]any{"date": date},
		"campaign":       map[string]any{"id": campaignID},
		"adGroup":        map[string]any{"id": adGroupID},
		"geographicView": map[string]any{"countryCriterionId": criterion},
		"metrics": map[string]any{
			"conversions":      conversions,
			"conversionsValue": value,
		},
	}
}

func adsWindow() core.Window {
	return core.Window{
		Start: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestClient_FetchPerformanceMergesReports(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest",
		devkit.OKScript(devkit.GoogleAdsSearchPage("",
			metricsResult("2024-05-01", "10", "20", "2840", "1250000", "10", "100"),
		)),
		devkit.OKScript(devkit.GoogleAdsSearchPage("",
			conversionsResult("2024-05-01", "10", "20", "2840", 2, 150),
		)),
	)
	client := NewClient(fake, core.GoogleAdsConfig{APIVersion: "v17", DeveloperToken: "dev-token"}, 50)

	result, err := client.FetchPerformance(context.Background(), FetchRequest{
		CustomerID:  "1234567890",
		AccessToken: "ya29.token",
		Window:      adsWindow(),
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected one merged row, got %d", len(result.Rows))
	}
	row := result.Rows[0]
	if row.Spend != 1.25 {
		t.Fatalf("expected cost micros converted to 1.25, got %.4f", row.Spend)
	}
	if row.Clicks != 10 || row.Impressions != 100 {
		t.Fatalf("expected metrics report counts, got %+v", row)
	}
	if row.Conversions != 2 || row.ConversionValue != 150 {
		t.Fatalf("expected conversion report merged, got %+v", row)
	}
	if row.CountryCriterionID != 2840 {
		t.Fatalf("expected criterion id parsed, got %d", row.CountryCriterionID)
	}
	if row.CampaignName != "Campaign 10" || row.AdGroupName != "AdGroup 20" {
		t.Fatalf("expected names from metrics report, got %+v", row)
	}

	requests := fake.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected one request per report, got %d", len(requests))
	}
	if !strings.Contains(requests[0].URL, "/v17/customers/1234567890/googleAds:search") {
		t.Fatalf("expected search endpoint, got %s", requests[0].URL)
	}
	if requests[0].Headers["developer-token"] != "dev-token" {
		t.Fatalf("expected developer token header, got %v", requests[0].Headers)
	}
	if requests[0].Headers["Authorization"] != "Bearer ya29.token" {
		t.Fatalf("expected bearer auth, got %v", requests[0].Headers)
	}

	var payload map[string]any
	if err := json.Unmarshal(requests[0].Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	query := payload["query"].(string)
	if !strings.Contains(query, "BETWEEN '2024-05-01' AND '2024-05-02'") {
		t.Fatalf("expected date range in query, got %q", query)
	}
	if !strings.Contains(query, "metrics.cost_micros") {
		t.Fatalf("expected cost report first, got %q", query)
	}
}

func TestClient_PaginatesWithPageToken(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest",
		devkit.OKScript(devkit.GoogleAdsSearchPage("token-1",
			metricsResult("2024-05-01", "10", "20", "2840", "1000000", "1", "10"),
		)),
		devkit.OKScript(devkit.GoogleAdsSearchPage("",
			metricsResult("2024-05-02", "10", "20", "2840", "2000000", "2", "20"),
		)),
		devkit.OKScript(devkit.GoogleAdsSearchPage("")),
	)
	client := NewClient(fake, core.GoogleAdsConfig{}, 50)

	result, err := client.FetchPerformance(context.Background(), FetchRequest{
		CustomerID:  "1234567890",
		AccessToken: "ya29.token",
		Window:      adsWindow(),
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected rows from both pages, got %d", len(result.Rows))
	}

	var second map[string]any
	if err := json.Unmarshal(fake.Requests()[1].Body, &second); err != nil {
		t.Fatalf("decode second payload: %v", err)
	}
	if second["pageToken"] != "token-1" {
		t.Fatalf("expected page token forwarded, got %v", second)
	}
}

func TestClient_PageCeilingTruncates(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest",
		devkit.OKScript(devkit.GoogleAdsSearchPage("token-1",
			metricsResult("2024-05-01", "10", "20", "2840", "1000000", "1", "10"),
		)),
	)
	client := NewClient(fake, core.GoogleAdsConfig{}, 1)

	result, err := client.FetchPerformance(context.Background(), FetchRequest{
		CustomerID:  "1234567890",
		AccessToken: "ya29.token",
		Window:      adsWindow(),
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !result.Truncated {
		t.Fatalf("expected truncation at ceiling")
	}
}

func TestClient_UnauthorizedMapsToReauth(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest", devkit.StatusScript(401, nil))
	client := NewClient(fake, core.GoogleAdsConfig{}, 50)

	_, err := client.FetchPerformance(context.Background(), FetchRequest{
		CustomerID:  "1234567890",
		AccessToken: "ya29.revoked",
		Window:      adsWindow(),
	})
	if err == nil || !strings.Contains(err.Error(), "re-authenticate") {
		t.Fatalf("expected reauth error, got %v", err)
	}
	if strings.Contains(err.Error(), "ya29.revoked") {
		t.Fatalf("error leaks token material: %v", err)
	}
}

func TestParseMicros(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  float64
	}{
		{name: "plain", value: "1250000", want: 1.25},
		{name: "zero", value: "0", want: 0},
		{name: "empty", value: "", want: 0},
		{name: "garbage", value: "abc", want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseMicros(tc.value); got != tc.want {
				t.Fatalf("expected %.2f, got %.2f", tc.want, got)
			}
		})
	}
}
