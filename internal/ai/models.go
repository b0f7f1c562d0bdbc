package ai

import "sort"

// ModelInfo describes a known model. ContextTokens bounds the prompt size.
type ModelInfo struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	ContextTokens int    `json:"context_tokens"`
}

var models = map[string]ModelInfo{
	"openai/gpt-4o-mini":          {Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000},
	"anthropic/claude-3.5-sonnet": {Name: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter, ContextTokens: 200000},
	"deepseek/deepseek-r1:free":   {Name: "deepseek/deepseek-r1:free", Provider: ProviderOpenRouter, ContextTokens: 128000},
	"gemini-1.5-flash":            {Name: "gemini-1.5-flash", Provider: ProviderGemini, ContextTokens: 1000000},
	"gemini-2.0-flash":            {Name: "gemini-2.0-flash", Provider: ProviderGemini, ContextTokens: 1000000},
	"llama3.1:8b":                 {Name: "llama3.1:8b", Provider: ProviderOllama, ContextTokens: 8192},
}

var defaultModels = map[string]string{
	ProviderOpenRouter: "openai/gpt-4o-mini",
	ProviderGemini:     "gemini-2.0-flash",
	ProviderOllama:     "llama3.1:8b",
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string { return defaultModels[provider] }

// LookupModel returns metadata for a known model.
func LookupModel(name string) (ModelInfo, bool) {
	m, ok := models[name]
	return m, ok
}

// ContextLimit returns the context window of model, or fallback when unknown.
func ContextLimit(model string, fallback int) int {
	if m, ok := models[model]; ok && m.ContextTokens > 0 {
		return m.ContextTokens
	}
	return fallback
}

// Models lists the known models ordered by provider, then name.
func Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}
