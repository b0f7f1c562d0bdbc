package catalog

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/salesloom/internal/analytics"
	"github.com/KaramelBytes/salesloom/internal/sales"
	"github.com/KaramelBytes/salesloom/internal/translate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() *sales.Table {
	d := func(s string) time.Time {
		t, _ := time.Parse("2006-01-02", s)
		return t
	}
	return sales.NewTable(sales.Schema, []sales.Record{
		{ProductID: "A", Local: "SP", Date: d("2024-03-01"), PlannedQuantity: 100, ActualQuantity: 80, ActualPrice: 10, ServiceLevel: 0.97},
		{ProductID: "A", Local: "RJ", Date: d("2024-03-02"), PlannedQuantity: 0, ActualQuantity: 50, ActualPrice: 12, ServiceLevel: 0.80, PromotionType: "BLACK"},
		{ProductID: "B", Local: "SP", Date: d("2024-03-05"), PlannedQuantity: 50, ActualQuantity: 55, ActualPrice: 20, ServiceLevel: 0.99},
		{ProductID: "B", Local: "MG", Date: d("2024-03-10"), PlannedQuantity: 40, ActualQuantity: 60, ActualPrice: 18, ServiceLevel: 0.82, PromotionType: "BLACK"},
		{ProductID: "C", Local: "MG", Date: d("2024-04-01"), PlannedQuantity: 30, ActualQuantity: 20, ActualPrice: math.NaN(), ServiceLevel: 0.90, PromotionType: "PRICE"},
	})
}

type stubTranslator struct {
	text  string
	err   error
	panic bool
}

func (s stubTranslator) Ask(_ context.Context, q string) (*translate.Answer, error) {
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &translate.Answer{Question: q, Text: s.text}, nil
}

func registry(tr translate.Translator) *Registry {
	return New(fixture(), Config{Translator: tr})
}

func TestCatalogOrder(t *testing.T) {
	want := []string{
		"consulta_geral", "calcular_acuracia_planejamento", "identificar_ruptura_ou_excesso",
		"impacto_promocao_por_produto", "ranking_receita_por_local", "produtos_mais_vendidos",
		"analisar_degradacao_servico", "top_entidades", "vendas_por_periodo", "gap_planejamento",
		"impacto_promocao", "risco_servico", "gerar_relatorio", "gerar_relatorio_pdf",
	}
	var got []string
	for _, op := range registry(nil).Operations() {
		got = append(got, op.Name)
	}
	assert.Equal(t, want, got)
}

func TestInvokeSetsIdentity(t *testing.T) {
	res, err := registry(nil).Invoke(context.Background(), "gap_planejamento", nil)
	require.NoError(t, err)
	assert.Equal(t, "gap_planejamento", res.Operation)
	assert.Len(t, res.ID, 36)
	assert.False(t, res.Translated)
	assert.Contains(t, res.Text, `"tendencia"`)
}

func TestRuptureDefaultsAndEmpty(t *testing.T) {
	r := registry(nil)
	res, err := r.Invoke(context.Background(), "identificar_ruptura_ou_excesso", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Text, analytics.StatusRuptureRisk)
	assert.Contains(t, res.Text, analytics.StatusExcessRisk)

	res, err = r.Invoke(context.Background(), "identificar_ruptura_ou_excesso", map[string]any{"threshold": "0.9"})
	require.NoError(t, err)
	assert.Equal(t, "No alerts found with threshold=0.90.", res.Text)
}

func TestParamErrors(t *testing.T) {
	r := registry(nil)
	cases := []struct {
		op    string
		args  map[string]any
		param string
	}{
		{"identificar_ruptura_ou_excesso", map[string]any{"threshold": 1.5}, "threshold"},
		{"identificar_ruptura_ou_excesso", map[string]any{"threshold": "abc"}, ""},
		{"vendas_por_periodo", map[string]any{"end_date": "2024-03-31"}, "start_date"},
		{"vendas_por_periodo", map[string]any{"start_date": "2024-03-01", "end_date": "2024-03-31", "metric": "margin"}, "metric"},
		{"produtos_mais_vendidos", map[string]any{"top": 3}, ""},
	}
	for _, tc := range cases {
		_, err := r.Invoke(context.Background(), tc.op, tc.args)
		var perr *ParamError
		require.True(t, errors.As(err, &perr), "%s %v: %v", tc.op, tc.args, err)
		if tc.param != "" {
			assert.Equal(t, tc.param, perr.Param)
		}
	}
}

func TestTopSellingWeakTyping(t *testing.T) {
	res, err := registry(nil).Invoke(context.Background(), "produtos_mais_vendidos", map[string]any{"top_n": "2"})
	require.NoError(t, err)
	lines := strings.Split(res.Text, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "A "))
	assert.True(t, strings.HasPrefix(lines[2], "B "))
}

func TestSalesInPeriod(t *testing.T) {
	r := registry(nil)
	res, err := r.Invoke(context.Background(), "vendas_por_periodo", map[string]any{
		"start_date": "2024-03-01", "end_date": "2024-03-31", "metric": "volume",
	})
	require.NoError(t, err)
	total, ok := res.Data.(*analytics.PeriodTotal)
	require.True(t, ok)
	assert.InDelta(t, 245.0, total.Total, 1e-9)
	assert.Contains(t, res.Text, `"total_vendas": 245`)

	res, err = r.Invoke(context.Background(), "vendas_por_periodo", map[string]any{
		"start_date": "2024-03-01", "end_date": "2024-03-31",
	})
	require.NoError(t, err)
	assert.InDelta(t, 3580.0, res.Data.(*analytics.PeriodTotal).Total, 1e-9)

	_, err = r.Invoke(context.Background(), "vendas_por_periodo", map[string]any{
		"start_date": "2024-13-45", "end_date": "2024-03-31",
	})
	assert.ErrorIs(t, err, analytics.ErrInvalidDate)
}

func TestTopEntitiesInvalidColumn(t *testing.T) {
	_, err := registry(nil).Invoke(context.Background(), "top_entidades", map[string]any{"group_by_col": "region"})
	assert.ErrorIs(t, err, sales.ErrInvalidColumn)
}

func TestEmptyResultsAreMessages(t *testing.T) {
	r := registry(nil)
	res, err := r.Invoke(context.Background(), "risco_servico", map[string]any{"threshold": 0.5})
	require.NoError(t, err)
	assert.Equal(t, "No location+product pairs below threshold=0.50.", res.Text)

	res, err = r.Invoke(context.Background(), "analisar_degradacao_servico", map[string]any{"min_service_level": 0.1})
	require.NoError(t, err)
	assert.Equal(t, "No transactions below min_service_level=0.10.", res.Text)

	empty := New(sales.NewTable(sales.Schema, nil), Config{})
	res, err = empty.Invoke(context.Background(), "impacto_promocao_por_produto", nil)
	require.NoError(t, err)
	assert.Equal(t, "No data to analyze promotion impact by product.", res.Text)
}

func TestPlanningAccuracyPreview(t *testing.T) {
	res, err := registry(nil).Invoke(context.Background(), "calcular_acuracia_planejamento", nil)
	require.NoError(t, err)
	lines := strings.Split(res.Text, "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "pct_deviation")
	assert.True(t, strings.HasSuffix(lines[1], "-20.00"))
	assert.True(t, strings.HasSuffix(lines[2], "n/c"))
}

func TestGeneralQueryIsMarked(t *testing.T) {
	res, err := registry(stubTranslator{text: "Revenue is 42."}).Invoke(context.Background(), "consulta_geral", map[string]any{"pergunta": "revenue?"})
	require.NoError(t, err)
	assert.Equal(t, "[IA] Revenue is 42.", res.Text)
	assert.True(t, res.Translated)
}

func TestGeneralQueryFailures(t *testing.T) {
	_, err := registry(nil).Invoke(context.Background(), "consulta_geral", map[string]any{"pergunta": "revenue?"})
	assert.ErrorIs(t, err, translate.ErrTranslation)

	tr := stubTranslator{err: &translate.Error{Stage: translate.StageModel, Err: errors.New("timeout")}}
	msg := registry(tr).Dispatch(context.Background(), "consulta_geral", map[string]any{"pergunta": "revenue?"})
	assert.Equal(t, "Error in consulta_geral: the question could not be answered (timeout).", msg)
}

func TestDispatchNeverPanics(t *testing.T) {
	r := registry(stubTranslator{panic: true})
	msg := r.Dispatch(context.Background(), "consulta_geral", map[string]any{"pergunta": "x"})
	assert.Contains(t, msg, "internal error")

	// the registry keeps serving after a failure
	res, err := r.Invoke(context.Background(), "gap_planejamento", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Text)

	assert.Equal(t, `Error: unknown operation "nope".`, r.Dispatch(context.Background(), "nope", nil))
}

func TestReportOperations(t *testing.T) {
	r := registry(nil)
	res, err := r.Invoke(context.Background(), "gerar_relatorio", map[string]any{"top_n": 2})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Text, "EXECUTIVE REPORT (Sales Dataset)"))

	dir := t.TempDir()
	r = New(fixture(), Config{ReportDir: dir})
	for _, name := range []string{"out.html", "out.pdf"} {
		rel := filepath.Join("nested", name)
		res, err = r.Invoke(context.Background(), "gerar_relatorio_pdf", map[string]any{"output_path": rel})
		require.NoError(t, err)
		path := filepath.Join(dir, rel)
		assert.Equal(t, path, res.Text)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	def := filepath.Join(dir, "default.pdf")
	r = New(fixture(), Config{OutputPath: def})
	res, err = r.Invoke(context.Background(), "gerar_relatorio_pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, def, res.Text)
}

func TestReportFileStaysInReportDir(t *testing.T) {
	dir := t.TempDir()
	r := New(fixture(), Config{ReportDir: filepath.Join(dir, "reports")})
	outside := filepath.Join(dir, "escaped.html")
	for _, p := range []string{outside, "../escaped.html", "a/../../escaped.html"} {
		_, err := r.Invoke(context.Background(), "gerar_relatorio_pdf", map[string]any{"output_path": p})
		var perr *ParamError
		require.True(t, errors.As(err, &perr), "%s: %v", p, err)
		assert.Equal(t, "output_path", perr.Param)
	}
	_, err := os.Stat(outside)
	assert.True(t, os.IsNotExist(err))
}

func TestNegativeTopNIsEmpty(t *testing.T) {
	r := registry(nil)
	res, err := r.Invoke(context.Background(), "produtos_mais_vendidos", map[string]any{"top_n": -1})
	require.NoError(t, err)
	assert.Equal(t, "No products found.", res.Text)

	res, err = r.Invoke(context.Background(), "top_entidades", map[string]any{
		"group_by_col": "local", "metric": "actual_quantity", "top_n": -1,
	})
	require.NoError(t, err)
	assert.Equal(t, "[]", res.Text)
}

func TestToolSpecs(t *testing.T) {
	specs := registry(nil).ToolSpecs()
	require.Len(t, specs, 14)
	for _, s := range specs {
		assert.Equal(t, "function", s.Type)
		assert.Equal(t, "object", s.Function.Parameters.Type)
		if s.Function.Name == "vendas_por_periodo" {
			assert.Equal(t, []string{"start_date", "end_date"}, s.Function.Parameters.Required)
			assert.Contains(t, s.Function.Parameters.Properties, "metric")
		}
	}
}
