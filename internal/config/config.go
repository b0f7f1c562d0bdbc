package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/salesloom/internal/ai"
)

// Global configuration structure.
type Global struct {
	// Dataset
	DataPath  string `mapstructure:"data_path" yaml:"data_path"`
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter" validate:"max=1"`
	Sheet     string `mapstructure:"sheet" yaml:"sheet"`

	// Translation runtime
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider" validate:"oneof=openrouter ollama gemini"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	GeminiAPIKey    string  `mapstructure:"gemini_api_key" yaml:"gemini_api_key"`
	OllamaHost      string  `mapstructure:"ollama_host" yaml:"ollama_host" validate:"omitempty,url"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=1"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec" validate:"gte=1"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts" validate:"gte=1"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms" validate:"gte=0"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms" validate:"gte=0"`

	// Report
	ReportDir            string  `mapstructure:"report_dir" yaml:"report_dir"`
	ReportTopN           int     `mapstructure:"report_top_n" yaml:"report_top_n" validate:"gte=1"`
	MinServiceLevel      float64 `mapstructure:"min_service_level" yaml:"min_service_level" validate:"gte=0,lte=1"`
	ServiceRiskThreshold float64 `mapstructure:"service_risk_threshold" yaml:"service_risk_threshold" validate:"gte=0,lte=1"`

	// Server
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return v
}

// Validate checks value ranges and enumerations.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
		}
		return err
	}
	return nil
}

// Model resolves the model for the configured provider.
func (c *Global) Model() string {
	if c.DefaultModel != "" {
		return c.DefaultModel
	}
	return ai.DefaultModel(c.DefaultProvider)
}

// RuntimeConfig maps the HTTP and retry knobs for the ai runtime registry.
// The API key follows the provider.
func (c *Global) RuntimeConfig() ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey,
		Host:        c.OllamaHost,
	}
	if c.DefaultProvider == ai.ProviderGemini {
		rc.APIKey = c.GeminiAPIKey
	}
	return rc
}

// ReportPath is the default destination of the PDF report.
func (c *Global) ReportPath() string {
	return filepath.Join(c.ReportDir, "relatorio_executivo.pdf")
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults)+len(unset))
	for k := range defaults {
		keys = append(keys, k)
	}
	keys = append(keys, unset...)
	sort.Strings(keys)
	return keys
}

// unset are the keys without a default.
var unset = []string{"data_path", "sheet", "default_model", "api_key", "gemini_api_key"}

// Masked returns the configuration as key/value pairs with secrets hidden.
func (c *Global) Masked() map[string]any {
	b, _ := yaml.Marshal(c)
	out := map[string]any{}
	_ = yaml.Unmarshal(b, &out)
	for _, k := range []string{"api_key", "gemini_api_key"} {
		if s, _ := out[k].(string); s != "" {
			out[k] = mask(s)
		}
	}
	return out
}

func mask(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

var defaults = map[string]any{
	"delimiter":              ";",
	"default_provider":       ai.ProviderOpenRouter,
	"max_tokens":             512,
	"temperature":            0.1,
	"ollama_host":            "http://127.0.0.1:11434",
	"http_timeout_sec":       60,
	"retry_max_attempts":     3,
	"retry_base_delay_ms":    500,
	"retry_max_delay_ms":     4000,
	"report_dir":             "reports",
	"report_top_n":           5,
	"min_service_level":      0.95,
	"service_risk_threshold": 0.85,
	"listen_addr":            "127.0.0.1:8080",
	"log_level":              "info",
}

// Dir returns ~/.salesloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".salesloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.salesloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SALESLOOM")
	v.AutomaticEnv()
	// Provider keys are also read under their conventional names.
	_ = v.BindEnv("api_key", "SALESLOOM_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("gemini_api_key", "SALESLOOM_GEMINI_API_KEY", "GEMINI_API_KEY")
	for _, k := range unset {
		if !strings.HasSuffix(k, "api_key") {
			_ = v.BindEnv(k)
		}
	}

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Set parses value for key and stores it on c. The result is validated.
func (c *Global) Set(key, value string) error {
	v := viper.New()
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(string(b))); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	v.Set(key, value)
	var next Global
	if err := v.Unmarshal(&next); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
