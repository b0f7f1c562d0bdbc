package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/salesloom/internal/analytics"
	"github.com/KaramelBytes/salesloom/internal/sales"
)

// Title is the first line of every executive report.
const Title = "EXECUTIVE REPORT (Sales Dataset)"

// promotionSample is how many segment records the promotions section shows.
const promotionSample = 5

// Options configures ExecutiveReport.
type Options struct {
	TopN            int
	MinServiceLevel float64
	RiskThreshold   float64
}

// DefaultOptions returns the standard report parameters.
func DefaultOptions() Options {
	return Options{
		TopN:            analytics.DefaultTopEntities,
		MinServiceLevel: analytics.DefaultMinServiceLevel,
		RiskThreshold:   analytics.DefaultRiskThreshold,
	}
}

// Section is one numbered block of the report.
type Section struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
	NA    bool     `json:"not_available,omitempty"`
}

// Report is an executive summary of the dataset. Sections always appear in
// the same order; a section whose columns are missing is marked NA.
type Report struct {
	Title    string    `json:"title"`
	Header   []string  `json:"header"`
	Sections []Section `json:"sections"`
}

// Text renders the report as plain text. The first line is the title and
// blocks are separated by blank lines.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString(r.Title)
	for _, h := range r.Header {
		b.WriteString("\n")
		b.WriteString(h)
	}
	for _, s := range r.Sections {
		b.WriteString("\n\n")
		b.WriteString(s.Title)
		for _, l := range s.Lines {
			b.WriteString("\n")
			b.WriteString(l)
		}
	}
	return b.String()
}

// ExecutiveReport composes the fixed-order executive summary of t.
func ExecutiveReport(t *sales.Table, opt Options) *Report {
	if opt.TopN <= 0 {
		opt.TopN = analytics.DefaultTopEntities
	}
	r := &Report{Title: Title, Header: header(t)}
	build := []struct {
		title string
		na    string
		fn    func(*sales.Table, Options) ([]string, error)
	}{
		{"1) Volume & Revenue", "volume columns not available", volumeSection},
		{"2) Planning", "planning columns not available", planningSection},
		{"3) Service level", "service_level column not available", serviceSection},
		{fmt.Sprintf("4) Top %d products by volume", opt.TopN), "product or volume columns not available", topProductsSection},
		{fmt.Sprintf("5) Top %d locations by revenue", opt.TopN), "location or revenue columns not available", topLocationsSection},
		{"6) Promotions (sample)", "promotion columns not available", promotionSection},
		{"7) Promotion share", "promotion columns not available", shareSection},
		{"8) Average price", "actual_price column not available", averagePriceSection},
		{"9) Top revenue product", "product or revenue columns not available", topRevenueSection},
	}
	for _, s := range build {
		lines, err := s.fn(t, opt)
		sec := Section{Title: s.title, Lines: lines}
		if err != nil {
			sec.NA = true
			reason := s.na
			if !errors.Is(err, sales.ErrInvalidColumn) {
				reason = err.Error()
			}
			sec.Lines = []string{fmt.Sprintf("- N/A (%s)", reason)}
		}
		r.Sections = append(r.Sections, sec)
	}
	return r
}

func header(t *sales.Table) []string {
	period := "N/A"
	if first, last, ok := t.DateRange(); ok && t.Has(sales.ColDate) {
		period = fmt.Sprintf("%s to %s", first.Format("2006-01-02"), last.Format("2006-01-02"))
	}
	distinct := func(col string) string {
		if !t.Has(col) {
			return "N/A"
		}
		return strconv.Itoa(t.Distinct(col))
	}
	return []string{
		"Period: " + period,
		fmt.Sprintf("Coverage: %d rows | unique products: %s | unique locations: %s",
			t.Len(), distinct(sales.ColProductID), distinct(sales.ColLocal)),
	}
}

func total(t *sales.Table, metric string) (string, error) {
	res, err := analytics.RunQuery(t, analytics.Query{Metric: metric, Aggregation: analytics.AggSum})
	if err != nil {
		return "", err
	}
	if len(res.Groups) == 0 {
		return FormatMagnitude(0), nil
	}
	v, ok := res.Groups[0].Value.Float()
	if !ok {
		return "N/A", nil
	}
	return FormatMagnitude(v), nil
}

func volumeSection(t *sales.Table, _ Options) ([]string, error) {
	sold, err := total(t, sales.ColActualQuantity)
	if err != nil {
		return nil, err
	}
	lines := []string{"- Total sold (actual_quantity): " + sold}
	if planned, err := total(t, sales.ColPlannedQuantity); err == nil {
		lines = append(lines, "- Total planned (planned_quantity): "+planned)
	}
	if revenue, err := total(t, analytics.QueryMetricRevenue); err == nil {
		lines = append(lines, "- Estimated total revenue (qty * price): "+revenue)
	}
	return lines, nil
}

func planningSection(t *sales.Table, _ Options) ([]string, error) {
	g, err := analytics.PlanningGapSummary(t)
	if err != nil {
		return nil, err
	}
	return []string{
		"- Total gap (actual - planned): " + FormatMagnitude(g.GapTotal),
		fmt.Sprintf("- Mean MAPE: %s (over %d rows with planned > 0)", g.MAPEText, g.ValidRows),
		"- Trend: " + g.Trend,
	}, nil
}

func serviceSection(t *sales.Table, opt Options) ([]string, error) {
	res, err := analytics.RunQuery(t, analytics.Query{Metric: sales.ColServiceLevel, Aggregation: analytics.AggMean})
	if err != nil {
		return nil, err
	}
	mean := analytics.NotComputable
	if len(res.Groups) > 0 {
		mean = res.Groups[0].Value
	}
	lines := []string{"- Mean service level: " + mean.Fixed(3)}
	if low, err := analytics.ServiceLevelDegradation(t, opt.MinServiceLevel); err == nil {
		lines = append(lines, fmt.Sprintf("- Rows below %.2f: %d", opt.MinServiceLevel, len(low)))
	}
	if risk, err := analytics.ServiceRisk(t, opt.RiskThreshold); err == nil {
		lines = append(lines, fmt.Sprintf("- Location+product pairs below %.2f: %d", opt.RiskThreshold, len(risk)))
	}
	return lines, nil
}

func topProductsSection(t *sales.Table, opt Options) ([]string, error) {
	top, err := analytics.TopSellingProducts(t, opt.TopN)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return []string{"- No products found."}, nil
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "%s\t%s\t\n", sales.ColProductID, sales.ColActualQuantity)
	for _, e := range top {
		fmt.Fprintf(w, "%s\t%s\t\n", e.Key, FormatMagnitude(e.Value))
	}
	_ = w.Flush()
	return strings.Split(strings.TrimRight(b.String(), "\n"), "\n"), nil
}

func topLocationsSection(t *sales.Table, opt Options) ([]string, error) {
	ranking, err := analytics.RevenueRankingByLocation(t)
	if err != nil {
		return nil, err
	}
	if len(ranking) > opt.TopN {
		ranking = ranking[:opt.TopN]
	}
	if len(ranking) == 0 {
		return []string{"- No locations found."}, nil
	}
	lines := make([]string, 0, len(ranking))
	for _, e := range ranking {
		lines = append(lines, fmt.Sprintf("- %s: %s", e.Key, FormatMagnitude(e.Value)))
	}
	return lines, nil
}

func promotionSection(t *sales.Table, _ Options) ([]string, error) {
	impact, err := analytics.PromotionImpactByProduct(t)
	if err != nil {
		return nil, err
	}
	if len(impact.Segments) == 0 {
		return []string{"- No data to analyze promotion impact."}, nil
	}
	n := len(impact.Segments)
	if n > promotionSample {
		n = promotionSample
	}
	lines := make([]string, 0, n)
	for _, s := range impact.Segments[:n] {
		lines = append(lines, fmt.Sprintf("- %s / %s: media_volume=%s | preco_medio=%s | nivel_servico_medio=%s",
			s.ProductID, s.Segment, s.MeanVolume.Fixed(2), s.MeanPrice.Fixed(2), s.MeanServiceLevel.Fixed(3)))
	}
	return lines, nil
}

func shareSection(t *sales.Table, _ Options) ([]string, error) {
	s, err := analytics.PromotionShareOf(t)
	if err != nil {
		return nil, err
	}
	return []string{
		"- Rows with promotion: " + s.RowsPctText,
		"- Volume with promotion: " + s.VolumePctText,
		"- Revenue with promotion: " + s.RevenuePctText,
	}, nil
}

func averagePriceSection(t *sales.Table, _ Options) ([]string, error) {
	v, err := analytics.AveragePrice(t)
	if err != nil {
		return nil, err
	}
	return []string{"- Average price (actual_price): " + v.Fixed(2)}, nil
}

func topRevenueSection(t *sales.Table, _ Options) ([]string, error) {
	p, err := analytics.TopRevenueProduct(t)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return []string{"- No revenue found."}, nil
	}
	return []string{fmt.Sprintf("- %s: %s", p.ProductID, FormatMagnitude(p.Revenue))}, nil
}

// FormatMagnitude renders totals with a Thousand/Millions/Billions suffix.
// Only values of 1000 and above are scaled. Anything smaller, which includes
// every negative such as -2500 or -1e9, is printed as is, so -2500 renders
// "-2500" while 2500 renders "2.50 Thousand".
func FormatMagnitude(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2f Billions", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2f Millions", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2f Thousand", v/1e3)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
