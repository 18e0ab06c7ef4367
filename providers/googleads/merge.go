package googleads

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ohjayaxel/syncengine/core"
)

type mergeKey struct {
	day         string
	campaignID  string
	adGroupID   string
	criterionID int64
}

// mergeReports joins the cost report and the conversion report on the
// composite dimension key. A conversion row without a matching cost row
// still produces output: spend stays zero, conversions are kept. Rows with
// an unparseable date are dropped and counted, never fail the merge.
func mergeReports(metrics []searchResult, conversions []searchResult) ([]core.AdsPerformanceRow, int) {
	merged := map[mergeKey]*core.AdsPerformanceRow{}
	var order []mergeKey
	skipped := 0

	upsert := func(result searchResult) *core.AdsPerformanceRow {
		day, err := core.ParseDay(result.Segments.Date)
		if err != nil {
			skipped++
			return nil
		}
		key := mergeKey{
			day:         core.FormatDay(day),
			campaignID:  strings.TrimSpace(result.Campaign.ID),
			adGroupID:   strings.TrimSpace(result.AdGroup.ID),
			criterionID: parseCriterionID(result.GeographicView.CountryCriterionID),
		}
		row, ok := merged[key]
		if !ok {
			row = &core.AdsPerformanceRow{
				Day:                day,
				CampaignID:         key.campaignID,
				AdGroupID:          key.adGroupID,
				CountryCriterionID: key.criterionID,
			}
			merged[key] = row
			order = append(order, key)
		}
		if name := strings.TrimSpace(result.Campaign.Name); name != "" {
			row.CampaignName = name
		}
		if name := strings.TrimSpace(result.AdGroup.Name); name != "" {
			row.AdGroupName = name
		}
		return row
	}

	for _, result := range metrics {
		row := upsert(result)
		if row == nil {
			continue
		}
		row.Spend += parseMicros(result.Metrics.CostMicros)
		row.Clicks += parseCount(result.Metrics.Clicks)
		row.Impressions += parseCount(result.Metrics.Impressions)
	}
	for _, result := range conversions {
		row := upsert(result)
		if row == nil {
			continue
		}
		row.Conversions += result.Metrics.Conversions
		row.ConversionValue += result.Metrics.ConversionsValue
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.day != b.day {
			return a.day < b.day
		}
		if a.campaignID != b.campaignID {
			return a.campaignID < b.campaignID
		}
		if a.adGroupID != b.adGroupID {
			return a.adGroupID < b.adGroupID
		}
		return a.criterionID < b.criterionID
	})

	rows := make([]core.AdsPerformanceRow, 0, len(order))
	for _, key := range order {
		rows = append(rows, *merged[key])
	}
	return rows, skipped
}

func parseCriterionID(value string) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
