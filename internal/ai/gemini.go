package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient calls Google Gemini through the generative-ai-go SDK. A new
// SDK client is opened per call and closed before returning.
type GeminiClient struct {
	apiKey string
	opts   []option.ClientOption
}

// NewGeminiClient returns a runtime for the given API key. Extra options are
// passed to genai.NewClient.
func NewGeminiClient(apiKey string, opts ...option.ClientOption) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, opts: opts}
}

func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini: %w (set GEMINI_API_KEY)", ErrMissingAPIKey)
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	system, history, last, err := splitGeminiMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.JSONMode {
		model.ResponseMIMEType = "application/json"
	}

	cs := model.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text := geminiText(resp)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	out := &GenerateResponse{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: text}}}}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// splitGeminiMessages joins system messages into one instruction, maps prior
// turns to chat history and returns the final user turn separately.
func splitGeminiMessages(msgs []Message) (system string, history []*genai.Content, last string, err error) {
	var sys []string
	var turns []Message
	for _, m := range msgs {
		if m.Role == RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != RoleUser {
		return "", nil, "", errors.New("messages must end with a user message")
	}
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(sys, "\n\n"), history, turns[len(turns)-1].Content, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
