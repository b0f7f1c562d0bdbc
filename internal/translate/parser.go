package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/salesloom/internal/analytics"
	"github.com/KaramelBytes/salesloom/internal/utils"
)

// Plan is what the model returns: a query for the local executor and an
// answer template where {result} and {rows} are filled in after execution.
type Plan struct {
	Query      analytics.Query `json:"query"`
	Answer     string          `json:"answer"`
	Confidence float64         `json:"confidence"`
}

// parsePlan extracts a Plan from a model response, tolerating markdown fences
// and prose around the JSON object.
func parsePlan(response string) (*Plan, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)
	if start, end := strings.Index(response, "{"), strings.LastIndex(response, "}"); start >= 0 && end > start {
		response = response[start : end+1]
	}

	var plan Plan
	if err := json.Unmarshal([]byte(response), &plan); err != nil {
		return nil, fmt.Errorf("parse model response: %w (response: %s)", err, utils.TruncateToTokenLimit(response, 50))
	}
	if plan.Query.Aggregation == "" {
		plan.Query.Aggregation = analytics.AggSum
	}
	if plan.Query.Metric == "" {
		plan.Query.Metric = analytics.QueryMetricRevenue
	}
	for col, vals := range plan.Query.Filters {
		if len(vals) == 0 {
			delete(plan.Query.Filters, col)
		}
	}
	if plan.Confidence < 0 || plan.Confidence > 1 {
		plan.Confidence = 0
	}
	return &plan, nil
}
