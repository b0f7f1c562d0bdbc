package translate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom/internal/ai"
	"github.com/KaramelBytes/salesloom/internal/analytics"
	"github.com/KaramelBytes/salesloom/internal/logging"
	"github.com/KaramelBytes/salesloom/internal/metrics"
	"github.com/KaramelBytes/salesloom/internal/sales"
	"github.com/KaramelBytes/salesloom/internal/utils"
)

const (
	defaultMaxValues   = 20
	defaultContext     = 8192
	defaultMaxTokens   = 512
	defaultTemperature = 0.1
)

// Translator answers free-text questions about the dataset.
type Translator interface {
	Ask(ctx context.Context, question string) (*Answer, error)
}

// Answer is the outcome of one translated question.
type Answer struct {
	Question string                `json:"question"`
	Plan     *Plan                 `json:"plan"`
	Result   *analytics.QueryResult `json:"result"`
	Text     string                `json:"text"`
	Model    string                `json:"model"`
}

// LLMEngine turns a question into a Query with a language model and runs the
// query locally. The model only sees the dataset profile.
type LLMEngine struct {
	Runtime     ai.Runtime
	Model       string
	Table       *sales.Table
	MaxTokens   int
	Temperature float64
	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

var _ Translator = (*LLMEngine)(nil)

func (e *LLMEngine) Ask(ctx context.Context, question string) (ans *Answer, err error) {
	timer := metrics.NewTimer()
	log := logging.WithContext(ctx).With(zap.String("model", e.Model))
	defer func() {
		metrics.RecordTranslation(err, timer.Elapsed())
		if err != nil {
			log.Warn("translation failed", zap.Error(err), zap.Duration("elapsed", timer.Elapsed()))
		}
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &Error{Stage: StageInput, Err: errors.New("question cannot be empty")}
	}
	if e.Runtime == nil || e.Table == nil {
		return nil, &Error{Stage: StageInput, Err: errors.New("translator is not configured")}
	}

	system, err := e.prompt(question)
	if err != nil {
		return nil, &Error{Stage: StagePrompt, Err: err}
	}

	req := ai.GenerateRequest{
		Model: e.Model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: system},
			{Role: ai.RoleUser, Content: question},
		},
		MaxTokens:   e.MaxTokens,
		Temperature: e.Temperature,
		JSONMode:    true,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature <= 0 {
		req.Temperature = defaultTemperature
	}
	log.Debug("asking model", zap.Any("prompt_tokens_est", utils.TokenBreakdown(map[string]string{"system": system, "question": question})))

	resp, err := e.Runtime.Generate(ctx, req)
	if err != nil {
		return nil, &Error{Stage: StageModel, Err: err}
	}
	content := resp.Content()
	if content == "" {
		return nil, &Error{Stage: StageModel, Err: ai.ErrEmptyResponse}
	}

	plan, err := parsePlan(content)
	if err != nil {
		return nil, &Error{Stage: StageParse, Err: err}
	}
	result, err := analytics.RunQuery(e.Table, plan.Query)
	if err != nil {
		return nil, &Error{Stage: StageExecute, Err: err}
	}
	plan.Query = result.Query

	log.Info("question translated",
		zap.Strings("group_by", result.Query.GroupBy),
		zap.String("metric", result.Query.Metric),
		zap.Int("matched_rows", result.Rows),
		zap.Float64("confidence", plan.Confidence),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return &Answer{
		Question: question,
		Plan:     plan,
		Result:   result,
		Text:     render(plan.Answer, result),
		Model:    e.Model,
	}, nil
}

// prompt builds the system prompt, shrinking the sample values per dimension
// until it fits the model's context window.
func (e *LLMEngine) prompt(question string) (string, error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	profile := sales.Describe(e.Table)
	budget := ai.ContextLimit(e.Model, defaultContext) - defaultMaxTokens - utils.CountTokens(question)
	for n := defaultMaxValues; ; n /= 2 {
		p := BuildPrompt(Summarize(profile, n), now())
		if utils.CountTokens(p) <= budget {
			return p, nil
		}
		if n == 0 {
			return "", fmt.Errorf("prompt needs %d tokens, model %q allows %d", utils.CountTokens(p), e.Model, budget)
		}
	}
}

// render fills the answer template. Without a template, or when nothing
// matched, the result text stands alone.
func render(template string, r *analytics.QueryResult) string {
	text := r.Text()
	if r.Rows == 0 || strings.TrimSpace(template) == "" {
		return text
	}
	value := text
	if len(r.Groups) == 1 && len(r.Query.GroupBy) == 0 {
		value = r.Groups[0].Value.String()
	}
	out := strings.ReplaceAll(template, "{result}", value)
	out = strings.ReplaceAll(out, "{rows}", strconv.Itoa(r.Rows))
	if !strings.Contains(template, "{result}") {
		out += "\n" + text
	}
	return out
}
