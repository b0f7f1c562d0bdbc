package translate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/salesloom/internal/analytics"
	"github.com/KaramelBytes/salesloom/internal/sales"
)

// DataSummary is the only view of the dataset the model receives: counts,
// date bounds and the most frequent dimension values. Never rows.
type DataSummary struct {
	RecordCount int                 `json:"recordCount"`
	Period      string              `json:"period,omitempty"`
	Dimensions  map[string][]string `json:"dimensions"`
	Measures    []string            `json:"measures"`
}

// Summarize builds a DataSummary from a profile, keeping at most maxValues
// sample values per dimension.
func Summarize(p *sales.Profile, maxValues int) DataSummary {
	s := DataSummary{RecordCount: p.Rows, Dimensions: map[string][]string{}}
	for _, c := range p.Cols {
		switch {
		case c.Name == sales.ColDate:
			if c.First != "" {
				s.Period = c.First + " to " + c.Last
			}
		case sales.IsDimensionColumn(c.Name):
			vals := []string{}
			for i, tv := range c.TopValues {
				if i >= maxValues {
					break
				}
				vals = append(vals, tv.Value)
			}
			s.Dimensions[c.Name] = vals
		case sales.IsNumericColumn(c.Name):
			s.Measures = append(s.Measures, c.Name)
		}
	}
	if _, ok := s.Dimensions[sales.ColPromotionType]; ok {
		s.Dimensions[sales.ColPromotionType] = append(s.Dimensions[sales.ColPromotionType], analytics.SegmentNoPromotion)
	}
	return s
}

// BuildPrompt generates the system prompt for the translator.
func BuildPrompt(summary DataSummary, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are a query translator for a sales analytics catalog.

CURRENT DATE: %s

YOUR ROLE:
Translate the user's question into a structured query that a local engine will execute.
You are a TRANSLATOR ONLY: do NOT compute any values. The engine does all computation.

`, now.Format("2006-01-02"))

	summaryJSON, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Fprintf(&b, "DATA SUMMARY (what data is available, NOT actual values):\n%s\n\n", summaryJSON)

	b.WriteString("DATA MODEL:\n")
	b.WriteString(describeDimensions(summary))
	b.WriteString(describeMeasures(summary))
	b.WriteString("\n")

	b.WriteString(`RESPONSE FORMAT (ALWAYS one valid JSON object, no markdown):
{
  "query": {
    "filters": {"<dimension>": ["value", ...]},
    "start_date": "YYYY-MM-DD or empty",
    "end_date": "YYYY-MM-DD or empty",
    "group_by": ["<dimension>", ...],
    "metric": "<measure>",
    "aggregation": "sum|mean|count|min|max",
    "sort": "desc|asc|",
    "limit": 0
  },
  "answer": "One sentence for the user. Use {result} where the computed result goes and {rows} for the row count.",
  "confidence": 0.0
}

RULES:
- Use only the dimensions and measures listed above. Never invent columns.
- Filters are AND across dimensions and OR within one dimension's list.
- "revenue" means actual_quantity * actual_price; "volume" or "sales units" means actual_quantity.
- "average" means aggregation "mean"; "how many rows/transactions" means metric "rows".
- Rows without promotion have promotion_type "no promotion".
- Dates are inclusive; leave them empty when the question has no period.
- For "top N" questions set sort "desc" and limit N; for "worst" or "lowest" set sort "asc".
- confidence is between 0 and 1.

EXAMPLES:
"What was the revenue in SP?"
{"query":{"filters":{"local":["SP"]},"metric":"revenue","aggregation":"sum"},"answer":"Revenue in SP: {result}.","confidence":0.9}

"Top 3 products by volume in March 2024"
{"query":{"start_date":"2024-03-01","end_date":"2024-03-31","group_by":["product_id"],"metric":"actual_quantity","aggregation":"sum","sort":"desc","limit":3},"answer":"Top products by volume in March 2024:\n{result}","confidence":0.85}

"Average service level per location with promotion"
{"query":{"filters":{"promotion_type":["BLACK_FRIDAY"]},"group_by":["local"],"metric":"service_level","aggregation":"mean"},"answer":"Mean service level per location:\n{result}","confidence":0.7}
`)
	b.WriteString("\nRemember: you are a TRANSLATOR. Output instructions for the engine. Do NOT compute values.\n")
	return b.String()
}

func describeDimensions(s DataSummary) string {
	var b strings.Builder
	b.WriteString("DIMENSIONS (for grouping and filtering):\n")
	for _, col := range sales.Schema {
		vals, ok := s.Dimensions[col]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %q", col)
		if len(vals) > 0 {
			fmt.Fprintf(&b, " values: [%s]", strings.Join(quoted(vals), ", "))
		}
		b.WriteString("\n")
	}
	if s.Period != "" {
		fmt.Fprintf(&b, "- %q [TEMPORAL, YYYY-MM-DD, data covers %s]\n", sales.ColDate, s.Period)
	}
	return b.String()
}

func describeMeasures(s DataSummary) string {
	var b strings.Builder
	b.WriteString("\nMEASURES (numeric, for aggregation):\n")
	for _, m := range s.Measures {
		fmt.Fprintf(&b, "- %q\n", m)
	}
	fmt.Fprintf(&b, "- %q (actual_quantity * actual_price)\n", analytics.QueryMetricRevenue)
	fmt.Fprintf(&b, "- %q (row count)\n", analytics.QueryMetricRows)
	return b.String()
}

func quoted(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}
