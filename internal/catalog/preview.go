package catalog

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/salesloom/internal/analytics"
	"github.com/KaramelBytes/salesloom/internal/sales"
)

// table renders rows as aligned columns. Every row must have len(header) cells.
func table(header []string, rows [][]string) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(w, strings.Join(r, "\t"))
	}
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return analytics.FormatNumber(v)
}

func date(r sales.Record) string {
	if r.Date.IsZero() {
		return "NaT"
	}
	return r.Date.Format("2006-01-02")
}

func promo(r sales.Record) string {
	if r.PromotionType == "" {
		return "-"
	}
	return r.PromotionType
}

func deviationTable(rows []analytics.DeviationRow) string {
	out := make([][]string, len(rows))
	for i, d := range rows {
		out[i] = []string{
			d.Record.ProductID, d.Record.Local, date(d.Record),
			num(d.Record.PlannedQuantity), num(d.Record.ActualQuantity),
			d.Variation.String(), d.PctDeviation.Fixed(2),
		}
	}
	return table([]string{sales.ColProductID, sales.ColLocal, sales.ColDate, sales.ColPlannedQuantity,
		sales.ColActualQuantity, "variation", "pct_deviation"}, out)
}

func alertTable(rows []analytics.RatioRow) string {
	out := make([][]string, len(rows))
	for i, a := range rows {
		out[i] = []string{
			a.Record.ProductID, a.Record.Local, date(a.Record),
			num(a.Record.PlannedQuantity), num(a.Record.ActualQuantity),
			fmt.Sprintf("%.3f", a.Ratio), a.Status,
		}
	}
	return table([]string{sales.ColProductID, sales.ColLocal, sales.ColDate, sales.ColPlannedQuantity,
		sales.ColActualQuantity, "ratio", "status"}, out)
}

func segmentTable(rows []analytics.SegmentStats) string {
	out := make([][]string, len(rows))
	for i, s := range rows {
		out[i] = []string{
			s.ProductID, s.Segment, s.MeanVolume.Fixed(2), s.MeanPrice.Fixed(2),
			s.MeanServiceLevel.Fixed(3), fmt.Sprint(s.Rows),
		}
	}
	return table([]string{sales.ColProductID, "segment", "media_volume", "preco_medio",
		"nivel_servico_medio", "linhas"}, out)
}

func recordTable(rows []sales.Record) string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.ProductID, r.Local, date(r), num(r.ActualQuantity),
			num(r.ServiceLevel), promo(r),
		}
	}
	return table([]string{sales.ColProductID, sales.ColLocal, sales.ColDate, sales.ColActualQuantity,
		sales.ColServiceLevel, sales.ColPromotionType}, out)
}

func rankingTable(key, value string, ranking analytics.Ranking) string {
	out := make([][]string, len(ranking))
	for i, e := range ranking {
		out[i] = []string{e.Key, analytics.FormatNumber(e.Value)}
	}
	return table([]string{key, value}, out)
}
