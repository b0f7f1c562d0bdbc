package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/salesloom/internal/analytics"
	"github.com/KaramelBytes/salesloom/internal/report"
	"github.com/KaramelBytes/salesloom/internal/sales"
	"github.com/KaramelBytes/salesloom/internal/translate"
	"github.com/KaramelBytes/salesloom/internal/utils"
)

// Preview sizes for text operations.
const (
	accuracyPreviewRows = 20
	alertPreviewRows    = 50
	rankingPreviewRows  = 20
)

type generalQueryArgs struct {
	Question string `mapstructure:"pergunta" validate:"required"`
}

type thresholdArgs struct {
	Threshold float64 `mapstructure:"threshold" validate:"gt=0,lt=1"`
}

type topNArgs struct {
	TopN int `mapstructure:"top_n"`
}

type serviceLevelArgs struct {
	MinServiceLevel float64 `mapstructure:"min_service_level" validate:"gte=0,lte=1"`
}

type topEntitiesArgs struct {
	GroupByCol string `mapstructure:"group_by_col" validate:"required"`
	Metric     string `mapstructure:"metric" validate:"required"`
	TopN       int    `mapstructure:"top_n"`
}

type periodArgs struct {
	StartDate string `mapstructure:"start_date" validate:"required"`
	EndDate   string `mapstructure:"end_date" validate:"required"`
	Metric    string `mapstructure:"metric" validate:"oneof=volume revenue"`
}

type riskArgs struct {
	Threshold float64 `mapstructure:"threshold" validate:"gte=0,lte=1"`
}

type reportArgs struct {
	TopN int `mapstructure:"top_n" validate:"gte=1"`
}

type reportFileArgs struct {
	TopN       int    `mapstructure:"top_n" validate:"gte=1"`
	OutputPath string `mapstructure:"output_path"`
}

// operations lists the catalog. The order is part of the public surface.
func operations() []*Operation {
	ops := []*Operation{
		{
			Name:        "consulta_geral",
			Description: "Answers open questions about the dataset that no specific operation covers. Pass the full question.",
			Params: []Param{
				{Name: "pergunta", Type: "string", Required: true, Description: "The question, as asked by the user."},
			},
		},
		{
			Name:        "calcular_acuracia_planejamento",
			Description: "Computes the percentage deviation between planned_quantity and actual_quantity per row.",
		},
		{
			Name:        "identificar_ruptura_ou_excesso",
			Description: "Lists rows whose actual_quantity diverges from planned_quantity by more than the threshold (0.2 means ±20%).",
			Params: []Param{
				{Name: "threshold", Type: "number", Default: analytics.DefaultRuptureThreshold, Description: "Tolerated deviation of actual/planned from 1."},
			},
		},
		{
			Name:        "impacto_promocao_por_produto",
			Description: "Compares mean volume, price and service level per product_id with and without promotion.",
		},
		{
			Name:        "ranking_receita_por_local",
			Description: "Ranks locations by actual revenue (actual_quantity * actual_price).",
		},
		{
			Name:        "produtos_mais_vendidos",
			Description: "Returns the top N products by total volume sold (actual_quantity).",
			Params: []Param{
				{Name: "top_n", Type: "integer", Default: analytics.DefaultTopSelling, Description: "Number of products."},
			},
		},
		{
			Name:        "analisar_degradacao_servico",
			Description: "Lists transactions whose service_level is below a minimum.",
			Params: []Param{
				{Name: "min_service_level", Type: "number", Default: analytics.DefaultMinServiceLevel, Description: "Minimum acceptable service level."},
			},
		},
		{
			Name:        "top_entidades",
			Description: "Top N entities (product_id, local, ...) by the sum of a numeric metric.",
			Params: []Param{
				{Name: "group_by_col", Type: "string", Default: sales.ColProductID, Description: "Grouping column."},
				{Name: "metric", Type: "string", Default: sales.ColActualQuantity, Description: "Numeric column to sum."},
				{Name: "top_n", Type: "integer", Default: analytics.DefaultTopEntities, Description: "Number of entities."},
			},
		},
		{
			Name:        "vendas_por_periodo",
			Description: "Total sales between two dates, inclusive. Dates as YYYY-MM-DD.",
			Params: []Param{
				{Name: "start_date", Type: "string", Required: true, Description: "First day of the period."},
				{Name: "end_date", Type: "string", Required: true, Description: "Last day of the period."},
				{Name: "metric", Type: "string", Default: analytics.MetricRevenue, Description: "volume or revenue."},
			},
		},
		{
			Name:        "gap_planejamento",
			Description: "Difference between planned and actual quantities: total gap, mean MAPE and trend.",
		},
		{
			Name:        "impacto_promocao",
			Description: "Compares means with and without promotion, overall and per promotion_type.",
		},
		{
			Name:        "risco_servico",
			Description: "Location and product pairs whose mean service level is below a critical threshold.",
			Params: []Param{
				{Name: "threshold", Type: "number", Default: analytics.DefaultRiskThreshold, Description: "Critical mean service level."},
			},
		},
		{
			Name:        "gerar_relatorio",
			Description: "Builds the executive text report with the main indicators of the dataset.",
			Params: []Param{
				{Name: "top_n", Type: "integer", Default: analytics.DefaultTopEntities, Description: "Entries in ranked sections."},
			},
		},
		{
			Name:        "gerar_relatorio_pdf",
			Description: "Builds the executive report and saves it as a PDF. Returns the written path.",
			Params: []Param{
				{Name: "top_n", Type: "integer", Default: analytics.DefaultTopEntities, Description: "Entries in ranked sections."},
				{Name: "output_path", Type: "string", Default: report.DefaultOutputPath, Description: "Destination file (.pdf or .html), relative to the report directory."},
			},
		},
	}
	runs := map[string]func(context.Context, *Registry, map[string]any) (*Result, error){
		"consulta_geral":                 runGeneralQuery,
		"calcular_acuracia_planejamento": runPlanningAccuracy,
		"identificar_ruptura_ou_excesso": runRuptureOrExcess,
		"impacto_promocao_por_produto":   runPromotionByProduct,
		"ranking_receita_por_local":      runRevenueByLocation,
		"produtos_mais_vendidos":         runTopSelling,
		"analisar_degradacao_servico":    runServiceDegradation,
		"top_entidades":                  runTopEntities,
		"vendas_por_periodo":             runSalesInPeriod,
		"gap_planejamento":               runPlanningGap,
		"impacto_promocao":               runPromotionImpact,
		"risco_servico":                  runServiceRisk,
		"gerar_relatorio":                runReport,
		"gerar_relatorio_pdf":            runReportFile,
	}
	for _, op := range ops {
		op.run = runs[op.Name]
	}
	return ops
}

// decode is decodeArgs for the operation currently running.
func (r *Registry) decode(name string, args map[string]any, out any) error {
	return decodeArgs(name, r.index[name].Params, args, out)
}

func runGeneralQuery(ctx context.Context, r *Registry, args map[string]any) (*Result, error) {
	var a generalQueryArgs
	if err := r.decode("consulta_geral", args, &a); err != nil {
		return nil, err
	}
	if r.cfg.Translator == nil {
		return nil, &translate.Error{Stage: translate.StageInput, Err: errors.New("no translator configured")}
	}
	ans, err := r.cfg.Translator.Ask(ctx, a.Question)
	if err != nil {
		return nil, err
	}
	return &Result{Text: TranslatedMarker + " " + ans.Text, Data: ans, Translated: true}, nil
}

func runPlanningAccuracy(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	if err := r.decode("calcular_acuracia_planejamento", args, &struct{}{}); err != nil {
		return nil, err
	}
	rows, err := analytics.PlanningDeviation(r.table)
	if err != nil {
		return nil, err
	}
	return &Result{Text: deviationTable(head(rows, accuracyPreviewRows))}, nil
}

func runRuptureOrExcess(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	var a thresholdArgs
	if err := r.decode("identificar_ruptura_ou_excesso", args, &a); err != nil {
		return nil, err
	}
	alerts, err := analytics.RuptureOrExcess(r.table, a.Threshold)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return &Result{Text: fmt.Sprintf("No alerts found with threshold=%.2f.", a.Threshold)}, nil
	}
	return &Result{Text: alertTable(head(alerts, alertPreviewRows))}, nil
}

func runPromotionByProduct(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	if err := r.decode("impacto_promocao_por_produto", args, &struct{}{}); err != nil {
		return nil, err
	}
	impact, err := analytics.PromotionImpactByProduct(r.table)
	if err != nil {
		return nil, err
	}
	if len(impact.Segments) == 0 {
		return &Result{Text: "No data to analyze promotion impact by product."}, nil
	}
	return &Result{Text: segmentTable(head(impact.Segments, alertPreviewRows))}, nil
}

func runRevenueByLocation(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	if err := r.decode("ranking_receita_por_local", args, &struct{}{}); err != nil {
		return nil, err
	}
	ranking, err := analytics.RevenueRankingByLocation(r.table)
	if err != nil {
		return nil, err
	}
	if len(ranking) == 0 {
		return &Result{Text: "No locations with revenue found."}, nil
	}
	return &Result{Text: rankingTable(sales.ColLocal, "revenue", head(ranking, rankingPreviewRows))}, nil
}

func runTopSelling(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	var a topNArgs
	if err := r.decode("produtos_mais_vendidos", args, &a); err != nil {
		return nil, err
	}
	ranking, err := analytics.TopSellingProducts(r.table, a.TopN)
	if err != nil {
		return nil, err
	}
	if len(ranking) == 0 {
		return &Result{Text: "No products found."}, nil
	}
	return &Result{Text: rankingTable(sales.ColProductID, sales.ColActualQuantity, ranking)}, nil
}

func runServiceDegradation(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	var a serviceLevelArgs
	if err := r.decode("analisar_degradacao_servico", args, &a); err != nil {
		return nil, err
	}
	rows, err := analytics.ServiceLevelDegradation(r.table, a.MinServiceLevel)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Result{Text: fmt.Sprintf("No transactions below min_service_level=%.2f.", a.MinServiceLevel)}, nil
	}
	return &Result{Text: recordTable(head(rows, alertPreviewRows))}, nil
}

func runTopEntities(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	var a topEntitiesArgs
	if err := r.decode("top_entidades", args, &a); err != nil {
		return nil, err
	}
	ranking, err := analytics.TopPerformingEntities(r.table, a.GroupByCol, a.Metric, a.TopN)
	if err != nil {
		return nil, err
	}
	return structured(ranking)
}

func runSalesInPeriod(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	var a periodArgs
	if err := r.decode("vendas_por_periodo", args, &a); err != nil {
		return nil, err
	}
	total, err := analytics.TotalSalesInPeriod(r.table, a.StartDate, a.EndDate, a.Metric)
	if err != nil {
		return nil, err
	}
	return structured(total)
}

func runPlanningGap(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	if err := r.decode("gap_planejamento", args, &struct{}{}); err != nil {
		return nil, err
	}
	gap, err := analytics.PlanningGapSummary(r.table)
	if err != nil {
		return nil, err
	}
	return structured(gap)
}

func runPromotionImpact(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	if err := r.decode("impacto_promocao", args, &struct{}{}); err != nil {
		return nil, err
	}
	summary, err := analytics.PromotionImpactSummary(r.table)
	if err != nil {
		return nil, err
	}
	return structured(summary)
}

func runServiceRisk(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	var a riskArgs
	if err := r.decode("risco_servico", args, &a); err != nil {
		return nil, err
	}
	risk, err := analytics.ServiceRisk(r.table, a.Threshold)
	if err != nil {
		return nil, err
	}
	if len(risk) == 0 {
		return &Result{Text: fmt.Sprintf("No location+product pairs below threshold=%.2f.", a.Threshold), Data: risk}, nil
	}
	return structured(risk)
}

func runReport(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	var a reportArgs
	if err := r.decode("gerar_relatorio", args, &a); err != nil {
		return nil, err
	}
	rep := report.ExecutiveReport(r.table, r.reportOptions(a.TopN))
	return &Result{Text: rep.Text(), Data: rep}, nil
}

func runReportFile(_ context.Context, r *Registry, args map[string]any) (*Result, error) {
	var a reportFileArgs
	if err := r.decode("gerar_relatorio_pdf", args, &a); err != nil {
		return nil, err
	}
	path, err := r.reportPath(a.OutputPath)
	if err != nil {
		return nil, err
	}
	rep := report.ExecutiveReport(r.table, r.reportOptions(a.TopN))
	written, err := report.RendererFor(path).Render(rep.Text(), path)
	if err != nil {
		return nil, err
	}
	return &Result{Text: written, Data: map[string]string{"output_path": written}}, nil
}

// reportPath resolves output_path under the report directory. Absolute
// paths and paths climbing out of it are rejected.
func (r *Registry) reportPath(p string) (string, error) {
	if p == "" || p == report.DefaultOutputPath {
		return r.cfg.OutputPath, nil
	}
	if !filepath.IsLocal(p) {
		return "", &ParamError{
			Operation: "gerar_relatorio_pdf",
			Param:     "output_path",
			Reason:    "must be a relative path inside the report directory",
		}
	}
	return filepath.Join(r.cfg.ReportDir, p), nil
}

func (r *Registry) reportOptions(topN int) report.Options {
	opt := r.cfg.Report
	opt.TopN = topN
	return opt
}

// structured returns v as Data with its pretty JSON as Text.
func structured(v any) (*Result, error) {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return nil, err
	}
	return &Result{Text: string(b), Data: v}, nil
}

func head[T any](rows []T, n int) []T {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}
