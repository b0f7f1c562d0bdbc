package translate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/salesloom/internal/ai"
	"github.com/KaramelBytes/salesloom/internal/analytics"
	"github.com/KaramelBytes/salesloom/internal/sales"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	reply string
	err   error
	got   []ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: ai.RoleAssistant, Content: f.reply}}}}, nil
}

func table() *sales.Table {
	d := func(s string) time.Time {
		t, _ := time.Parse("2006-01-02", s)
		return t
	}
	return sales.NewTable(sales.Schema, []sales.Record{
		{ProductID: "A", Local: "SP", Date: d("2024-03-01"), PlannedQuantity: 100, ActualQuantity: 80, ActualPrice: 12.34, ServiceLevel: 0.97},
		{ProductID: "A", Local: "RJ", Date: d("2024-03-02"), PlannedQuantity: 60, ActualQuantity: 50, ActualPrice: 10, ServiceLevel: 0.8, PromotionType: "BLACK"},
		{ProductID: "B", Local: "SP", Date: d("2024-03-05"), PlannedQuantity: 50, ActualQuantity: 55, ActualPrice: 20, ServiceLevel: 0.99},
	})
}

func engine(rt ai.Runtime) *LLMEngine {
	return &LLMEngine{
		Runtime: rt,
		Model:   "test-model",
		Table:   table(),
		Now:     func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestAskRunsQueryLocally(t *testing.T) {
	rt := &fakeRuntime{reply: "```json\n" + `{"query":{"filters":{"local":["sp"]},"group_by":["product_id"],"metric":"actual_quantity","sort":"desc"},"answer":"Volume in SP:\n{result}","confidence":0.9}` + "\n```"}
	ans, err := engine(rt).Ask(context.Background(), "volume per product in SP")
	require.NoError(t, err)

	require.Len(t, ans.Result.Groups, 2)
	assert.Equal(t, "A", ans.Result.Groups[0].Label)
	assert.Equal(t, "80", ans.Result.Groups[0].Value.String())
	assert.Equal(t, "B", ans.Result.Groups[1].Label)
	assert.Equal(t, analytics.AggSum, ans.Plan.Query.Aggregation)
	assert.True(t, strings.HasPrefix(ans.Text, "Volume in SP:\n"))
	assert.Contains(t, ans.Text, "- B: 55 (1 rows)")
	assert.Equal(t, "test-model", ans.Model)

	require.Len(t, rt.got, 1)
	req := rt.got[0]
	assert.True(t, req.JSONMode)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, ai.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "volume per product in SP", req.Messages[1].Content)
}

func TestAskScalarAnswer(t *testing.T) {
	rt := &fakeRuntime{reply: `Sure! {"query":{"metric":"revenue"},"answer":"Revenue is {result} over {rows} rows.","confidence":0.8}`}
	ans, err := engine(rt).Ask(context.Background(), "total revenue?")
	require.NoError(t, err)
	// 80*12.34 + 50*10 + 55*20
	assert.Equal(t, "Revenue is 2587.2 over 3 rows.", ans.Text)
}

func TestAskPromptCarriesNoRawValues(t *testing.T) {
	rt := &fakeRuntime{reply: `{"query":{"metric":"rows"},"answer":"{result}"}`}
	_, err := engine(rt).Ask(context.Background(), "how many rows?")
	require.NoError(t, err)

	system := rt.got[0].Messages[0].Content
	assert.Contains(t, system, "TRANSLATOR ONLY")
	assert.Contains(t, system, "CURRENT DATE: 2024-05-01")
	assert.Contains(t, system, `"recordCount": 3`)
	assert.Contains(t, system, "2024-03-01 to 2024-03-05")
	assert.Contains(t, system, `"no promotion"`)
	assert.NotContains(t, system, "12.34")
	assert.NotContains(t, system, "0.97")
}

func TestAskModelErrorKeepsCause(t *testing.T) {
	cause := &ai.AuthError{APIError: &ai.APIError{StatusCode: 401, Message: "bad key"}}
	_, err := engine(&fakeRuntime{err: cause}).Ask(context.Background(), "revenue?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranslation))

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, StageModel, terr.Stage)

	var auth *ai.AuthError
	assert.True(t, errors.As(err, &auth))
}

func TestAskParseError(t *testing.T) {
	_, err := engine(&fakeRuntime{reply: "I cannot help with that"}).Ask(context.Background(), "revenue?")
	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, StageParse, terr.Stage)
}

func TestAskExecuteErrorOnUnknownColumn(t *testing.T) {
	rt := &fakeRuntime{reply: `{"query":{"group_by":["region"],"metric":"revenue"},"answer":"{result}"}`}
	_, err := engine(rt).Ask(context.Background(), "revenue by region")
	require.Error(t, err)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, StageExecute, terr.Stage)
	assert.True(t, errors.Is(err, sales.ErrInvalidColumn))
}

func TestAskEmptyQuestion(t *testing.T) {
	rt := &fakeRuntime{}
	_, err := engine(rt).Ask(context.Background(), "   ")
	assert.True(t, errors.Is(err, ErrTranslation))
	assert.Empty(t, rt.got)
}

func TestParsePlanDefaults(t *testing.T) {
	plan, err := parsePlan(`{"query":{"filters":{"local":[]}},"answer":"x","confidence":3}`)
	require.NoError(t, err)
	assert.Equal(t, analytics.AggSum, plan.Query.Aggregation)
	assert.Equal(t, analytics.QueryMetricRevenue, plan.Query.Metric)
	assert.Empty(t, plan.Query.Filters)
	assert.Zero(t, plan.Confidence)
}

func TestSummarizeCapsValues(t *testing.T) {
	s := Summarize(sales.Describe(table()), 1)
	assert.Equal(t, 3, s.RecordCount)
	assert.Len(t, s.Dimensions[sales.ColLocal], 1)
	assert.Contains(t, s.Measures, sales.ColActualPrice)
}
