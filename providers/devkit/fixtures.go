package devkit

import (
	"encoding/json"
	"fmt"

	"github.com/ohjayaxel/syncengine/core"
)

// Response builders for the two provider wire shapes the engine consumes:
// commerce admin GraphQL pages and ads search pages.

func JSONResponse(status int, payload any) core.TransportResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("devkit: marshal fixture payload: %v", err))
	}
	return core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func OKScript(payload any) TransportScript {
	return TransportScript{Response: JSONResponse(200, payload)}
}

func StatusScript(status int, headers map[string]string) TransportScript {
	response := core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{},
	}
	for key, value := range headers {
		response.Headers[key] = value
	}
	return TransportScript{Response: response}
}

// GraphQLData wraps a data payload in the GraphQL response envelope.
func GraphQLData(data map[string]any) map[string]any {
	return map[string]any{"data": data}
}

// GraphQLErrors builds a top-level GraphQL error response.
func GraphQLErrors(messages ...string) map[string]any {
	errs := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		errs = append(errs, map[string]any{"message": message})
	}
	return map[string]any{"errors": errs}
}

// ShopifyOrdersPage builds one page of the admin orders connection.
func ShopifyOrdersPage(hasNextPage bool, endCursor string, nodes ...map[string]any) map[string]any {
	edges := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		edges = append(edges, map[string]any{"node": node})
	}
	return GraphQLData(map[string]any{
		"orders": map[string]any{
			"pageInfo": map[string]any{
				"hasNextPage": hasNextPage,
				"endCursor":   endCursor,
			},
			"edges": edges,
		},
	})
}

// GoogleAdsSearchPage builds one page of the ads search response.
func GoogleAdsSearchPage(nextPageToken string, results ...map[string]any) map[string]any {
	page := map[string]any{
		"results": results,
	}
	if nextPageToken != "" {
		page["nextPageToken"] = nextPageToken
	}
	return page
}
