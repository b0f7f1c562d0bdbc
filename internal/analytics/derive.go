package analytics

import (
	"math"

	"github.com/KaramelBytes/salesloom/internal/sales"
)

// Alert statuses for RuptureOrExcess.
const (
	// StatusExcessRisk: sold well below plan, stock may pile up.
	StatusExcessRisk = "excess_risk"
	// StatusRuptureRisk: sold well above plan, stock may run out.
	StatusRuptureRisk = "rupture_risk"
)

// DefaultRuptureThreshold is the tolerated deviation of actual/planned from 1.
const DefaultRuptureThreshold = 0.2

// DeviationRow is a record with its planning deviation.
type DeviationRow struct {
	Record       sales.Record `json:"record"`
	Variation    Value        `json:"variation"`
	PctDeviation Value        `json:"pct_deviation"`
}

// PlanningDeviation computes variation = actual - planned and
// pct_deviation = variation / planned * 100 for every row. pct_deviation is
// NotComputable when planned is not positive.
func PlanningDeviation(t *sales.Table) ([]DeviationRow, error) {
	if err := t.Require(sales.ColPlannedQuantity, sales.ColActualQuantity); err != nil {
		return nil, err
	}
	rows := t.Rows()
	out := make([]DeviationRow, len(rows))
	for i, r := range rows {
		d := DeviationRow{Record: r}
		if !math.IsNaN(r.ActualQuantity) && !math.IsNaN(r.PlannedQuantity) {
			variation := r.ActualQuantity - r.PlannedQuantity
			d.Variation = Computed(variation)
			if r.PlannedQuantity > 0 {
				d.PctDeviation = Computed(variation / r.PlannedQuantity * 100)
			}
		}
		out[i] = d
	}
	return out, nil
}

// RatioRow is a record flagged by RuptureOrExcess.
type RatioRow struct {
	Record sales.Record `json:"record"`
	Ratio  float64      `json:"ratio"`
	Status string       `json:"status"`
}

// RuptureOrExcess returns the rows whose actual/planned ratio falls outside
// [1-threshold, 1+threshold]. Rows with planned <= 0 have no ratio and are
// never flagged. An empty result means no alerts.
func RuptureOrExcess(t *sales.Table, threshold float64) ([]RatioRow, error) {
	if math.IsNaN(threshold) || threshold <= 0 || threshold >= 1 {
		return nil, &ParamError{Name: "threshold", Value: threshold, Reason: "must be between 0 and 1 (exclusive)"}
	}
	if err := t.Require(sales.ColPlannedQuantity, sales.ColActualQuantity); err != nil {
		return nil, err
	}
	out := []RatioRow{}
	for _, r := range t.Rows() {
		if !(r.PlannedQuantity > 0) {
			continue
		}
		ratio, ok := Ratio(r.ActualQuantity, r.PlannedQuantity).Float()
		if !ok {
			continue
		}
		switch {
		case ratio < 1-threshold:
			out = append(out, RatioRow{Record: r, Ratio: ratio, Status: StatusExcessRisk})
		case ratio > 1+threshold:
			out = append(out, RatioRow{Record: r, Ratio: ratio, Status: StatusRuptureRisk})
		}
	}
	return out, nil
}

// RevenueRow is a record with its revenue.
type RevenueRow struct {
	Record  sales.Record `json:"record"`
	Revenue Value        `json:"revenue"`
}

// RevenueByRow computes revenue = actual_quantity * actual_price per row.
// Rows with a missing quantity or price have NotComputable revenue.
func RevenueByRow(t *sales.Table) ([]RevenueRow, error) {
	if err := t.Require(sales.ColActualQuantity, sales.ColActualPrice); err != nil {
		return nil, err
	}
	rows := t.Rows()
	out := make([]RevenueRow, len(rows))
	for i, r := range rows {
		out[i] = RevenueRow{Record: r}
		if rev, ok := r.Revenue(); ok {
			out[i].Revenue = Computed(rev)
		}
	}
	return out, nil
}

// PromotionRow is a record with its promotion segment.
type PromotionRow struct {
	Record       sales.Record `json:"record"`
	HasPromotion bool         `json:"has_promotion"`
}

// PromotionFlag marks each row as promoted or not. A null promotion_type is
// the no-promotion segment.
func PromotionFlag(t *sales.Table) ([]PromotionRow, error) {
	if err := t.Require(sales.ColPromotionType); err != nil {
		return nil, err
	}
	rows := t.Rows()
	out := make([]PromotionRow, len(rows))
	for i, r := range rows {
		out[i] = PromotionRow{Record: r, HasPromotion: r.HasPromotion()}
	}
	return out, nil
}
