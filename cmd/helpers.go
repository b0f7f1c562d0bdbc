package cmd

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom/internal/ai"
	"github.com/KaramelBytes/salesloom/internal/catalog"
	cfgpkg "github.com/KaramelBytes/salesloom/internal/config"
	"github.com/KaramelBytes/salesloom/internal/logging"
	"github.com/KaramelBytes/salesloom/internal/metrics"
	"github.com/KaramelBytes/salesloom/internal/report"
	"github.com/KaramelBytes/salesloom/internal/sales"
	"github.com/KaramelBytes/salesloom/internal/translate"
)

// delimiterRune maps a delimiter setting to the CSV separator.
func delimiterRune(s string) (rune, error) {
	switch s {
	case "", ";":
		return ';', nil
	case ",":
		return ',', nil
	case "\t", "tab", "\\t":
		return '\t', nil
	case "|":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported delimiter: %q (use ';' ',' '|' or 'tab')", s)
}

func datasetOptions(c *cfgpkg.Global) (sales.Options, error) {
	opt := sales.DefaultOptions()
	d, err := delimiterRune(c.Delimiter)
	if err != nil {
		return opt, err
	}
	opt.Delimiter = d
	opt.Sheet = c.Sheet
	return opt, nil
}

// loadTable reads the configured dataset.
func loadTable() (*sales.Table, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.DataPath) == "" {
		return nil, fmt.Errorf("no dataset configured: pass --data or run 'salesloom config set data_path <file>'")
	}
	opt, err := datasetOptions(c)
	if err != nil {
		return nil, err
	}
	t, err := sales.Load(c.DataPath, opt)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	for _, w := range t.Warnings() {
		logging.Warn("dataset warning", zap.String("path", c.DataPath), zap.String("warning", w))
	}
	metrics.DatasetRows.Set(float64(t.Len()))
	logging.Info("dataset loaded", zap.String("path", c.DataPath), zap.Int("rows", t.Len()), zap.Strings("columns", t.Columns()))
	return t, nil
}

// buildTranslator returns nil when the provider is unknown; consulta_geral
// then fails with a translation error instead of the whole command.
func buildTranslator(c *cfgpkg.Global, t *sales.Table) translate.Translator {
	rt, ok := ai.GetRuntime(c.DefaultProvider, c.RuntimeConfig())
	if !ok {
		logging.Warn("unknown provider, free-text questions disabled", zap.String("provider", c.DefaultProvider))
		return nil
	}
	return &translate.LLMEngine{
		Runtime:     rt,
		Model:       c.Model(),
		Table:       t,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}

func reportOptions(c *cfgpkg.Global) report.Options {
	return report.Options{
		TopN:            c.ReportTopN,
		MinServiceLevel: c.MinServiceLevel,
		RiskThreshold:   c.ServiceRiskThreshold,
	}
}

// buildRegistry loads the dataset and wires the catalog over it.
func buildRegistry() (*catalog.Registry, *sales.Table, error) {
	t, err := loadTable()
	if err != nil {
		return nil, nil, err
	}
	return catalog.New(t, catalog.Config{
		Translator: buildTranslator(cfg, t),
		Report:     reportOptions(cfg),
		OutputPath: cfg.ReportPath(),
		ReportDir:  cfg.ReportDir,
	}), t, nil
}

// parseArgs turns key=value pairs into operation arguments. Values stay
// strings; the catalog converts them to the parameter types.
func parseArgs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value", p)
		}
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("argument %q given more than once", k)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
