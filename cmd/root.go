package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/salesloom/internal/config"
	"github.com/KaramelBytes/salesloom/internal/logging"
)

var (
	// Global flags
	cfgFile       string
	debug         bool
	flagData      string
	flagSheet     string
	flagDelimiter string
	flagProvider  string
	flagModel     string
	runTimeout    time.Duration
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration; cfgErr is kept so commands that need it can report why it is missing.
	cfg    *cfgpkg.Global
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "salesloom",
	Short: "SalesLoom CLI: sales analytics catalog over a CSV/XLSX export",
	Long: `SalesLoom loads a sales dataset and exposes a fixed catalog of analytics
operations (planning accuracy, rupture risk, promotions, service level, rankings,
executive reports). Free-text questions are translated by an AI model into a local
query; the model never sees the raw rows.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is ~/.salesloom/config.yaml)")
	f.BoolVar(&debug, "debug", false, "enable debug logging")
	f.StringVar(&flagData, "data", "", "dataset path, .csv or .xlsx (overrides data_path)")
	f.StringVar(&flagSheet, "sheet", "", "XLSX worksheet name (default first sheet)")
	f.StringVar(&flagDelimiter, "delimiter", "", "CSV delimiter: ';' ',' or 'tab' (overrides config)")
	f.StringVar(&flagProvider, "provider", "", "translation provider: openrouter|ollama|gemini")
	f.StringVar(&flagModel, "model", "", "translation model (overrides default_model)")
	f.DurationVar(&runTimeout, "timeout", 2*time.Minute, "deadline for one operation or question")
	f.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	f.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	f.IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	f.IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	cfg, cfgErr = nil, nil
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands that need the config report cfgErr themselves
		cfgErr = err
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("data") {
		cfg.DataPath = flagData
	}
	if f.Changed("sheet") {
		cfg.Sheet = flagSheet
	}
	if f.Changed("delimiter") {
		cfg.Delimiter = flagDelimiter
	}
	if f.Changed("provider") && flagProvider != "" {
		cfg.DefaultProvider = flagProvider
	}
	if f.Changed("model") && flagModel != "" {
		cfg.DefaultModel = flagModel
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	if err := logging.Init(level, debug); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to init logger: %v\n", err)
	}
}

// requireConfig returns the loaded config or the reason it is missing.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	if cfgErr != nil {
		return nil, fmt.Errorf("config unavailable: %w", cfgErr)
	}
	return nil, fmt.Errorf("config unavailable")
}
