package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/salesloom/internal/ai"
)

func TestLoadDefaultsAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("data_path: data/sales.csv\nreport_top_n: 7\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DataPath != "data/sales.csv" || c.ReportTopN != 7 {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.Delimiter != ";" || c.DefaultProvider != ai.ProviderOpenRouter || c.MinServiceLevel != 0.95 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.Model() != ai.DefaultModel(ai.ProviderOpenRouter) {
		t.Fatalf("model fallback: %q", c.Model())
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("report_top_n: 7\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SALESLOOM_REPORT_TOP_N", "9")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test-key-123456")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ReportTopN != 9 {
		t.Fatalf("env did not override: %d", c.ReportTopN)
	}
	if c.APIKey != "sk-or-test-key-123456" {
		t.Fatalf("api key from OPENROUTER_API_KEY not bound: %q", c.APIKey)
	}
	if got := c.Masked()["api_key"]; got != "sk-o*************3456" {
		t.Fatalf("masked key: %v", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ListenAddr == "" {
		t.Fatalf("expected default listen addr")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("min_service_level: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "min_service_level") {
		t.Fatalf("expected min_service_level error, got %v", err)
	}
}

func TestSetAndSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.Set("service_risk_threshold", "0.8"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Set("default_provider", "bogus"); err == nil {
		t.Fatalf("expected provider validation error")
	}
	if err := c.Set("no_such_key", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if c.ServiceRiskThreshold != 0.8 || c.DefaultProvider != ai.ProviderOpenRouter {
		t.Fatalf("unexpected state after set: %+v", c)
	}
	if err := Save(c, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.ServiceRiskThreshold != 0.8 {
		t.Fatalf("saved value lost: %v", again.ServiceRiskThreshold)
	}
}

func TestRuntimeConfigFollowsProvider(t *testing.T) {
	c := &Global{DefaultProvider: ai.ProviderGemini, APIKey: "or", GeminiAPIKey: "gm", HTTPTimeoutSec: 5, RetryBaseDelayMs: 100}
	rc := c.RuntimeConfig()
	if rc.APIKey != "gm" || rc.HTTPTimeout != 5*time.Second || rc.BaseDelay != 100*time.Millisecond {
		t.Fatalf("unexpected runtime config: %+v", rc)
	}
}
