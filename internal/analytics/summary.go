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

// Period metrics for TotalSalesInPeriod.
const (
	MetricVolume  = "volume"
	MetricRevenue = "revenue"
)

// Planning trends.
const (
	TrendUnderestimated = "underestimated"
	TrendOverestimated  = "overestimated"
)

// PeriodTotal is the output of TotalSalesInPeriod.
type PeriodTotal struct {
	Period string  `json:"periodo"`
	Start  string  `json:"inicio"`
	End    string  `json:"fim"`
	Metric string  `json:"metrica"`
	Total  float64 `json:"total_vendas"`
	Rows   int     `json:"linhas"`
}

var boundLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

// ParseBound parses a period bound (YYYY-MM-DD, DD/MM/YYYY or DD-MM-YYYY).
func ParseBound(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &DateError{Value: s, Reason: "empty"}
	}
	for _, l := range boundLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, &DateError{Value: s}
}

// TotalSalesInPeriod sums volume or revenue over rows with start <= date <= end.
func TotalSalesInPeriod(t *sales.Table, start, end, metric string) (*PeriodTotal, error) {
	if metric == "" {
		metric = MetricRevenue
	}
	from, err := ParseBound(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseBound(end)
	if err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, &DateError{Value: start, Reason: fmt.Sprintf("start date is after end date %s", end)}
	}
	cols := []string{sales.ColDate, sales.ColActualQuantity}
	switch metric {
	case MetricVolume:
	case MetricRevenue:
		cols = append(cols, sales.ColActualPrice)
	default:
		return nil, &ParamError{Name: "metric", Value: metric, Reason: "use volume or revenue"}
	}
	if err := t.Require(cols...); err != nil {
		return nil, err
	}
	sum := decimal.Zero
	n := 0
	for _, r := range t.Rows() {
		if r.Date.IsZero() || r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		n++
		var v float64
		var ok bool
		if metric == MetricRevenue {
			v, ok = r.Revenue()
		} else {
			v, ok = r.Numeric(sales.ColActualQuantity)
		}
		if ok && finite(v) {
			sum = sum.Add(decimal.NewFromFloat(v))
		}
	}
	total, _ := sum.Float64()
	return &PeriodTotal{
		Period: fmt.Sprintf("%s a %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		Start:  from.Format("2006-01-02"),
		End:    to.Format("2006-01-02"),
		Metric: metric,
		Total:  total,
		Rows:   n,
	}, nil
}

// GapSummary is the output of PlanningGapSummary. MAPE is a percentage
// computed only over rows with planned > 0; ValidRows counts those rows.
type GapSummary struct {
	GapTotal  float64 `json:"gap_total"`
	MAPE      Value   `json:"mape_pct"`
	MAPEText  string  `json:"mape_medio"`
	Trend     string  `json:"tendencia"`
	ValidRows int     `json:"linhas_validas_mape"`
}

// PlanningGapSummary reports the total gap (actual - planned), the mean
// absolute percentage error and the bias direction.
func PlanningGapSummary(t *sales.Table) (*GapSummary, error) {
	if err := t.Require(sales.ColPlannedQuantity, sales.ColActualQuantity); err != nil {
		return nil, err
	}
	gap := decimal.Zero
	var ape mean
	for _, r := range t.Rows() {
		if !finite(r.ActualQuantity) || !finite(r.PlannedQuantity) {
			continue
		}
		diff := r.ActualQuantity - r.PlannedQuantity
		gap = gap.Add(decimal.NewFromFloat(r.ActualQuantity).Sub(decimal.NewFromFloat(r.PlannedQuantity)))
		if r.PlannedQuantity > 0 {
			ape.add(math.Abs(diff) / r.PlannedQuantity)
		}
	}
	total, _ := gap.Float64()
	s := &GapSummary{GapTotal: total, ValidRows: ape.n, Trend: TrendOverestimated}
	if total > 0 {
		s.Trend = TrendUnderestimated
	}
	if m, ok := ape.value().Float(); ok {
		s.MAPE = Computed(m * 100)
	}
	s.MAPEText = s.MAPE.Percent()
	return s, nil
}

// PromotionSummary is the output of PromotionImpactSummary.
type PromotionSummary struct {
	With                 SegmentStats   `json:"com_promocao"`
	Without              SegmentStats   `json:"sem_promocao"`
	DeltaVolumePct       Value          `json:"delta_volume_pct"`
	DeltaPricePct        Value          `json:"delta_preco_pct"`
	DeltaServiceLevelPct Value          `json:"delta_nivel_servico_pct"`
	ByType               []SegmentStats `json:"por_tipo,omitempty"`
}

// PromotionImpactSummary compares promoted rows against the rest. Each delta
// is NotComputable when the no-promotion mean is zero or absent. ByType breaks
// the promoted segment down per promotion_type in first-appearance order.
func PromotionImpactSummary(t *sales.Table) (*PromotionSummary, error) {
	if err := t.Require(sales.ColPromotionType, sales.ColActualQuantity,
		sales.ColActualPrice, sales.ColServiceLevel); err != nil {
		return nil, err
	}
	var with, without segmentAcc
	var typeOrder []string
	byType := map[string]*segmentAcc{}
	for _, r := range t.Rows() {
		if !r.HasPromotion() {
			without.add(r)
			continue
		}
		with.add(r)
		a, ok := byType[r.PromotionType]
		if !ok {
			a = &segmentAcc{}
			byType[r.PromotionType] = a
			typeOrder = append(typeOrder, r.PromotionType)
		}
		a.add(r)
	}
	s := &PromotionSummary{
		With:    with.stats("", SegmentPromotion),
		Without: without.stats("", SegmentNoPromotion),
	}
	s.DeltaVolumePct = PctChange(s.With.MeanVolume, s.Without.MeanVolume)
	s.DeltaPricePct = PctChange(s.With.MeanPrice, s.Without.MeanPrice)
	s.DeltaServiceLevelPct = PctChange(s.With.MeanServiceLevel, s.Without.MeanServiceLevel)
	for _, k := range typeOrder {
		s.ByType = append(s.ByType, byType[k].stats("", k))
	}
	return s, nil
}

// PromotionShare gives the promoted share of rows, volume and revenue on a
// 0-100 scale, with preformatted strings. A zero denominator yields 0.
type PromotionShare struct {
	RowsPct        float64 `json:"share_rows_pct"`
	VolumePct      float64 `json:"share_volume_pct"`
	RevenuePct     float64 `json:"share_revenue_pct"`
	RowsPctText    string  `json:"share_rows"`
	VolumePctText  string  `json:"share_volume"`
	RevenuePctText string  `json:"share_revenue"`
}

// PromotionShareOf computes the promoted share of rows, volume and revenue.
func PromotionShareOf(t *sales.Table) (*PromotionShare, error) {
	if err := t.Require(sales.ColPromotionType, sales.ColActualQuantity, sales.ColActualPrice); err != nil {
		return nil, err
	}
	var rows, promoRows int
	var vol, promoVol, rev, promoRev float64
	for _, r := range t.Rows() {
		rows++
		promo := r.HasPromotion()
		if promo {
			promoRows++
		}
		if q, ok := r.Numeric(sales.ColActualQuantity); ok {
			vol += q
			if promo {
				promoVol += q
			}
		}
		if rv, ok := r.Revenue(); ok {
			rev += rv
			if promo {
				promoRev += rv
			}
		}
	}
	share := func(part, total float64) float64 {
		if total == 0 {
			return 0
		}
		return 100 * part / total
	}
	s := &PromotionShare{
		RowsPct:    share(float64(promoRows), float64(rows)),
		VolumePct:  share(promoVol, vol),
		RevenuePct: share(promoRev, rev),
	}
	s.RowsPctText = fmt.Sprintf("%.2f%%", s.RowsPct)
	s.VolumePctText = fmt.Sprintf("%.2f%%", s.VolumePct)
	s.RevenuePctText = fmt.Sprintf("%.2f%%", s.RevenuePct)
	return s, nil
}

// AveragePrice is the mean of the non-missing prices rounded to 2 decimals.
func AveragePrice(t *sales.Table) (Value, error) {
	if err := t.Require(sales.ColActualPrice); err != nil {
		return NotComputable, err
	}
	sum := decimal.Zero
	n := int64(0)
	for _, r := range t.Rows() {
		if p, ok := r.Numeric(sales.ColActualPrice); ok {
			sum = sum.Add(decimal.NewFromFloat(p))
			n++
		}
	}
	if n == 0 {
		return NotComputable, nil
	}
	avg, _ := sum.Div(decimal.NewFromInt(n)).Round(2).Float64()
	return Computed(avg), nil
}

// ProductRevenue is the output of TopRevenueProduct.
type ProductRevenue struct {
	ProductID string  `json:"product_id"`
	Revenue   float64 `json:"receita"`
}

// TopRevenueProduct returns the product with the highest summed revenue, or
// nil when no row has a computable revenue.
func TopRevenueProduct(t *sales.Table) (*ProductRevenue, error) {
	if err := t.Require(sales.ColProductID, sales.ColActualQuantity, sales.ColActualPrice); err != nil {
		return nil, err
	}
	s := newSummer()
	for _, r := range t.Rows() {
		if r.ProductID == "" {
			continue
		}
		if rev, ok := r.Revenue(); ok {
			s.add(r.ProductID, rev)
		}
	}
	top := sortDesc(s.ranking(), 1)
	if len(top) == 0 {
		return nil, nil
	}
	return &ProductRevenue{ProductID: top[0].Key, Revenue: top[0].Value}, nil
}

// RiskEntry is a (location, product) pair with its mean service level.
type RiskEntry struct {
	Local            string  `json:"local"`
	ProductID        string  `json:"product_id"`
	MeanServiceLevel float64 `json:"nivel_servico_medio"`
}

// ServiceRisk keeps the rows whose service level is below threshold and
// returns the mean of those rows per (location, product) pair, worst first.
// A pair with one critical row is flagged even when its other rows are fine.
func ServiceRisk(t *sales.Table, threshold float64) ([]RiskEntry, error) {
	if math.IsNaN(threshold) {
		return nil, &ParamError{Name: "threshold", Value: threshold, Reason: "must be a number"}
	}
	if err := t.Require(sales.ColLocal, sales.ColProductID, sales.ColServiceLevel); err != nil {
		return nil, err
	}
	type key struct{ local, product string }
	var order []key
	means := map[key]*mean{}
	for _, r := range t.Rows() {
		if r.Local == "" || r.ProductID == "" {
			continue
		}
		sl, ok := r.Numeric(sales.ColServiceLevel)
		if !ok || sl >= threshold {
			continue
		}
		k := key{r.Local, r.ProductID}
		m, ok := means[k]
		if !ok {
			m = &mean{}
			means[k] = m
			order = append(order, k)
		}
		m.add(sl)
	}
	out := []RiskEntry{}
	for _, k := range order {
		v, ok := means[k].value().Float()
		if !ok {
			continue
		}
		out = append(out, RiskEntry{Local: k.local, ProductID: k.product, MeanServiceLevel: v})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MeanServiceLevel < out[j].MeanServiceLevel })
	return out, nil
}
