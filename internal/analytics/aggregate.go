package analytics

import (
	"math"

	"github.com/KaramelBytes/salesloom/internal/sales"
)

// Promotion segments. A null promotion_type always lands in SegmentNoPromotion.
const (
	SegmentPromotion   = "promotion"
	SegmentNoPromotion = "no promotion"
)

// Defaults for the aggregation parameters.
const (
	DefaultTopSelling      = 10
	DefaultTopEntities     = 5
	DefaultMinServiceLevel = 0.95
	DefaultRiskThreshold   = 0.85
)

func segmentOf(r sales.Record) string {
	if r.HasPromotion() {
		return SegmentPromotion
	}
	return SegmentNoPromotion
}

// SegmentStats holds the means of one promotion segment, optionally per product.
type SegmentStats struct {
	ProductID        string `json:"product_id,omitempty"`
	Segment          string `json:"segment"`
	MeanVolume       Value  `json:"media_volume"`
	MeanPrice        Value  `json:"preco_medio"`
	MeanServiceLevel Value  `json:"nivel_servico_medio"`
	Rows             int    `json:"linhas"`
}

// ProductDelta compares a product's promotion segment to its no-promotion baseline.
type ProductDelta struct {
	ProductID      string `json:"product_id"`
	DeltaVolumePct Value  `json:"delta_volume_pct"`
	DeltaPricePct  Value  `json:"delta_preco_pct"`
}

// ProductPromotionImpact is the output of PromotionImpactByProduct.
type ProductPromotionImpact struct {
	Segments []SegmentStats `json:"segments"`
	Deltas   []ProductDelta `json:"deltas"`
}

type segmentAcc struct {
	volume, price, service mean
	rows                   int
}

func (a *segmentAcc) add(r sales.Record) {
	a.volume.add(r.ActualQuantity)
	a.price.add(r.ActualPrice)
	a.service.add(r.ServiceLevel)
	a.rows++
}

func (a *segmentAcc) stats(product, segment string) SegmentStats {
	return SegmentStats{
		ProductID:        product,
		Segment:          segment,
		MeanVolume:       a.volume.value(),
		MeanPrice:        a.price.value(),
		MeanServiceLevel: a.service.value(),
		Rows:             a.rows,
	}
}

// PromotionImpactByProduct groups by (product, promotion segment) and compares
// the promoted segment against the no-promotion baseline of each product.
// Deltas are NotComputable when the baseline is zero or absent.
func PromotionImpactByProduct(t *sales.Table) (*ProductPromotionImpact, error) {
	if err := t.Require(sales.ColProductID, sales.ColPromotionType, sales.ColActualQuantity,
		sales.ColActualPrice, sales.ColServiceLevel); err != nil {
		return nil, err
	}
	type key struct{ product, segment string }
	var order []key
	var products []string
	accs := map[key]*segmentAcc{}
	seenProduct := map[string]bool{}
	for _, r := range t.Rows() {
		if r.ProductID == "" {
			continue
		}
		k := key{r.ProductID, segmentOf(r)}
		a, ok := accs[k]
		if !ok {
			a = &segmentAcc{}
			accs[k] = a
			order = append(order, k)
		}
		if !seenProduct[r.ProductID] {
			seenProduct[r.ProductID] = true
			products = append(products, r.ProductID)
		}
		a.add(r)
	}

	out := &ProductPromotionImpact{Segments: []SegmentStats{}, Deltas: []ProductDelta{}}
	for _, k := range order {
		out.Segments = append(out.Segments, accs[k].stats(k.product, k.segment))
	}
	for _, p := range products {
		d := ProductDelta{ProductID: p}
		promo, okP := accs[key{p, SegmentPromotion}]
		base, okB := accs[key{p, SegmentNoPromotion}]
		if okP && okB {
			d.DeltaVolumePct = PctChange(promo.volume.value(), base.volume.value())
			d.DeltaPricePct = PctChange(promo.price.value(), base.price.value())
		}
		out.Deltas = append(out.Deltas, d)
	}
	return out, nil
}

// RevenueRankingByLocation sums revenue per location, descending. Rows
// without a computable revenue contribute nothing.
func RevenueRankingByLocation(t *sales.Table) (Ranking, error) {
	if err := t.Require(sales.ColLocal, sales.ColActualQuantity, sales.ColActualPrice); err != nil {
		return nil, err
	}
	s := newSummer()
	for _, r := range t.Rows() {
		if r.Local == "" {
			continue
		}
		rev, ok := r.Revenue()
		if !ok {
			s.touch(r.Local)
			continue
		}
		s.add(r.Local, rev)
	}
	return sortDesc(s.ranking(), -1), nil
}

// TopSellingProducts returns the topN products by summed actual_quantity.
// topN <= 0 yields an empty ranking.
func TopSellingProducts(t *sales.Table, topN int) (Ranking, error) {
	return TopPerformingEntities(t, sales.ColProductID, sales.ColActualQuantity, topN)
}

// ServiceLevelDegradation returns rows with service_level < minServiceLevel.
func ServiceLevelDegradation(t *sales.Table, minServiceLevel float64) ([]sales.Record, error) {
	if math.IsNaN(minServiceLevel) {
		return nil, &ParamError{Name: "min_service_level", Value: minServiceLevel, Reason: "must be a number"}
	}
	if err := t.Require(sales.ColServiceLevel); err != nil {
		return nil, err
	}
	out := []sales.Record{}
	for _, r := range t.Rows() {
		if sl, ok := r.Numeric(sales.ColServiceLevel); ok && sl < minServiceLevel {
			out = append(out, r)
		}
	}
	return out, nil
}

// TopPerformingEntities sums metric per groupBy value and returns the topN
// largest. Both columns must exist in the schema; metric must be numeric.
func TopPerformingEntities(t *sales.Table, groupBy, metric string, topN int) (Ranking, error) {
	if err := t.Require(groupBy, metric); err != nil {
		return nil, err
	}
	if !sales.IsDimensionColumn(groupBy) {
		return nil, &sales.ColumnError{Columns: []string{groupBy}, Reason: "not a grouping column"}
	}
	if !sales.IsNumericColumn(metric) {
		return nil, &sales.ColumnError{Columns: []string{metric}, Reason: "not a numeric column"}
	}
	if topN <= 0 {
		return Ranking{}, nil
	}
	s := newSummer()
	for _, r := range t.Rows() {
		k, ok := groupKey(r, groupBy)
		if !ok {
			continue
		}
		v, ok := r.Numeric(metric)
		if !ok {
			s.touch(k)
			continue
		}
		s.add(k, v)
	}
	return sortDesc(s.ranking(), topN), nil
}

// groupKey returns the grouping value of col. Empty keys are dropped except
// for promotion_type, where they form the no-promotion segment.
func groupKey(r sales.Record, col string) (string, bool) {
	v, ok := r.Text(col)
	if !ok {
		return "", false
	}
	if v == "" {
		if col == sales.ColPromotionType {
			return SegmentNoPromotion, true
		}
		return "", false
	}
	return v, true
}
