package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/salesloom/internal/sales"
	"github.com/shopspring/decimal"
)

// Query metrics that are not dataset columns.
const (
	QueryMetricRevenue = "revenue"
	QueryMetricRows    = "rows"
)

// Aggregations accepted by RunQuery.
const (
	AggSum   = "sum"
	AggMean  = "mean"
	AggCount = "count"
	AggMin   = "min"
	AggMax   = "max"
)

// Query is an ad-hoc computation over the dataset. Filters are keyed by a
// grouping column: columns are AND-combined, values within a column are
// OR-combined, comparisons ignore case.
type Query struct {
	Filters     map[string][]string `json:"filters,omitempty"`
	StartDate   string              `json:"start_date,omitempty"`
	EndDate     string              `json:"end_date,omitempty"`
	GroupBy     []string            `json:"group_by,omitempty"`
	Metric      string              `json:"metric"`
	Aggregation string              `json:"aggregation,omitempty"`
	Sort        string              `json:"sort,omitempty"`
	Limit       int                 `json:"limit,omitempty"`
}

// QueryGroup is one output row of RunQuery.
type QueryGroup struct {
	Label  string   `json:"label"`
	Values []string `json:"values,omitempty"`
	Value  Value    `json:"value"`
	Rows   int      `json:"rows"`
}

// QueryResult is the output of RunQuery.
type QueryResult struct {
	Query  Query        `json:"query"`
	Groups []QueryGroup `json:"groups"`
	Rows   int          `json:"matched_rows"`
}

// Text renders the result as one line per group.
func (r *QueryResult) Text() string {
	if r.Rows == 0 {
		return "No rows match the query filters."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s(%s) over %d rows", r.Query.Aggregation, r.Query.Metric, r.Rows)
	if len(r.Query.GroupBy) > 0 {
		fmt.Fprintf(&b, " by %s", strings.Join(r.Query.GroupBy, ", "))
	}
	b.WriteString(":\n")
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "- %s: %s (%d rows)\n", g.Label, g.Value, g.Rows)
	}
	return strings.TrimRight(b.String(), "\n")
}

// normalize fills defaults and validates q against t.
func (q *Query) normalize(t *sales.Table) error {
	q.Metric = strings.ToLower(strings.TrimSpace(q.Metric))
	q.Aggregation = strings.ToLower(strings.TrimSpace(q.Aggregation))
	q.Sort = strings.ToLower(strings.TrimSpace(q.Sort))
	if q.Metric == "" {
		q.Metric = QueryMetricRevenue
	}
	switch q.Aggregation {
	case "":
		q.Aggregation = AggSum
	case "avg", "average":
		q.Aggregation = AggMean
	case AggSum, AggMean, AggCount, AggMin, AggMax:
	default:
		return &ParamError{Name: "aggregation", Value: q.Aggregation, Reason: "use sum, mean, count, min or max"}
	}
	if q.Metric == QueryMetricRows {
		q.Aggregation = AggCount
	}
	switch q.Sort {
	case "", "asc", "desc":
	default:
		return &ParamError{Name: "sort", Value: q.Sort, Reason: "use asc or desc"}
	}
	if q.Limit < 0 {
		return &ParamError{Name: "limit", Value: q.Limit, Reason: "must not be negative"}
	}

	var need []string
	switch q.Metric {
	case QueryMetricRows:
	case QueryMetricRevenue:
		need = append(need, sales.ColActualQuantity, sales.ColActualPrice)
	default:
		if !sales.IsNumericColumn(q.Metric) {
			return &sales.ColumnError{Columns: []string{q.Metric}, Reason: "not a numeric column"}
		}
		need = append(need, q.Metric)
	}
	for _, g := range q.GroupBy {
		if !sales.IsDimensionColumn(g) {
			return &sales.ColumnError{Columns: []string{g}, Reason: "not a grouping column"}
		}
		need = append(need, g)
	}
	for col := range q.Filters {
		if !sales.IsDimensionColumn(col) {
			return &sales.ColumnError{Columns: []string{col}, Reason: "not a grouping column"}
		}
		need = append(need, col)
	}
	if q.StartDate != "" || q.EndDate != "" {
		need = append(need, sales.ColDate)
	}
	return t.Require(need...)
}

// RunQuery filters, groups, aggregates, sorts and limits in that order.
// Groups keep first-appearance order unless Sort is set.
func RunQuery(t *sales.Table, q Query) (*QueryResult, error) {
	if err := q.normalize(t); err != nil {
		return nil, err
	}
	rows, err := filterRows(t.Rows(), q)
	if err != nil {
		return nil, err
	}

	type acc struct {
		values []string
		vals   []float64
		rows   int
	}
	var order []string
	groups := map[string]*acc{}
	for _, r := range rows {
		values := make([]string, 0, len(q.GroupBy))
		drop := false
		for _, col := range q.GroupBy {
			v, ok := groupKey(r, col)
			if !ok {
				drop = true
				break
			}
			values = append(values, v)
		}
		if drop {
			continue
		}
		label := "Total"
		if len(values) > 0 {
			label = strings.Join(values, " / ")
		}
		a, ok := groups[label]
		if !ok {
			a = &acc{values: values}
			groups[label] = a
			order = append(order, label)
		}
		a.rows++
		if v, ok := metricOf(r, q.Metric); ok {
			a.vals = append(a.vals, v)
		}
	}

	out := &QueryResult{Query: q, Groups: []QueryGroup{}, Rows: len(rows)}
	for _, label := range order {
		a := groups[label]
		g := QueryGroup{Label: label, Rows: a.rows, Value: aggregate(q.Aggregation, a.vals, a.rows)}
		if len(q.GroupBy) > 0 {
			g.Values = a.values
		}
		out.Groups = append(out.Groups, g)
	}
	sortGroups(out.Groups, q.Sort)
	if q.Limit > 0 && len(out.Groups) > q.Limit {
		out.Groups = out.Groups[:q.Limit]
	}
	return out, nil
}

var (
	minTime = time.Time{}
	maxTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

func filterRows(rows []sales.Record, q Query) ([]sales.Record, error) {
	var err error
	from, to := minTime, maxTime
	if q.StartDate != "" {
		if from, err = ParseBound(q.StartDate); err != nil {
			return nil, err
		}
	}
	if q.EndDate != "" {
		if to, err = ParseBound(q.EndDate); err != nil {
			return nil, err
		}
	}
	if from.After(to) {
		return nil, &DateError{Value: q.StartDate, Reason: fmt.Sprintf("start date is after end date %s", q.EndDate)}
	}
	dated := q.StartDate != "" || q.EndDate != ""

	sets := map[string]map[string]bool{}
	for col, allowed := range q.Filters {
		if len(allowed) == 0 {
			continue
		}
		set := make(map[string]bool, len(allowed))
		for _, v := range allowed {
			set[strings.ToLower(strings.TrimSpace(v))] = true
		}
		sets[col] = set
	}

	out := make([]sales.Record, 0, len(rows))
	for _, r := range rows {
		if dated && (r.Date.IsZero() || r.Date.Before(from) || r.Date.After(to)) {
			continue
		}
		pass := true
		for col, set := range sets {
			v, _ := groupKey(r, col)
			if !set[strings.ToLower(v)] {
				pass = false
				break
			}
		}
		if pass {
			out = append(out, r)
		}
	}
	return out, nil
}

func metricOf(r sales.Record, metric string) (float64, bool) {
	switch metric {
	case QueryMetricRows:
		return 1, true
	case QueryMetricRevenue:
		return r.Revenue()
	default:
		return r.Numeric(metric)
	}
}

func aggregate(agg string, vals []float64, rows int) Value {
	if agg == AggCount {
		return Computed(float64(rows))
	}
	if len(vals) == 0 {
		return NotComputable
	}
	switch agg {
	case AggMean, AggSum:
		sum := decimal.Zero
		for _, v := range vals {
			if !finite(v) {
				return NotComputable
			}
			sum = sum.Add(decimal.NewFromFloat(v))
		}
		if agg == AggMean {
			sum = sum.Div(decimal.NewFromInt(int64(len(vals))))
		}
		f, _ := sum.Float64()
		return Computed(f)
	case AggMin:
		m := math.Inf(1)
		for _, v := range vals {
			m = math.Min(m, v)
		}
		return Computed(m)
	case AggMax:
		m := math.Inf(-1)
		for _, v := range vals {
			m = math.Max(m, v)
		}
		return Computed(m)
	}
	return NotComputable
}

// sortGroups orders by value; NotComputable groups always sort last.
func sortGroups(groups []QueryGroup, dir string) {
	if dir == "" {
		return
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, okA := groups[i].Value.Float()
		b, okB := groups[j].Value.Float()
		if okA != okB {
			return okA
		}
		if dir == "asc" {
			return a < b
		}
		return a > b
	})
}
