// Package config loads chatcore settings from YAML, an optional .env file
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	llmctx "github.com/aixgo-dev/chatcore/internal/llm/context"
	"github.com/aixgo-dev/chatcore/internal/strategy"
	"github.com/aixgo-dev/chatcore/internal/summary"
	"github.com/aixgo-dev/chatcore/pkg/llm"
	"github.com/aixgo-dev/chatcore/pkg/observability"
	"github.com/aixgo-dev/chatcore/pkg/session"
)

// MaxConfigSize bounds the size of a YAML config file.
const MaxConfigSize = 1 << 20

// SummaryStrategy selects the summary agent instead of a context strategy.
const SummaryStrategy = "summary"

// Config represents the application configuration
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Context       ContextConfig       `yaml:"context"`
	Summary       SummaryConfig       `yaml:"summary"`
	Store         session.Config      `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LLMConfig configures the chat completion endpoint.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	// TimeoutSeconds bounds each request.
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ContextConfig selects how prompts are assembled.
type ContextConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	// Strategy is sliding_window, sticky_facts, branching or summary.
	Strategy string `yaml:"strategy"`
	// Tail overrides the strategy's default tail size when positive.
	Tail     int           `yaml:"tail"`
	BranchID string        `yaml:"branch_id"`
	Budget   llmctx.Budget `yaml:"budget"`
}

// SummaryConfig tunes the summary agent.
type SummaryConfig struct {
	KeepLast  int `yaml:"keep_last"`
	BatchSize int `yaml:"batch_size"`
}

// ObservabilityConfig holds tracing and the metrics endpoint.
type ObservabilityConfig struct {
	Tracing observability.TracingConfig `yaml:"tracing"`
	// MetricsAddr serves /metrics and /health when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:        llm.DefaultBaseURL,
			Model:          llm.DefaultModel,
			Temperature:    llm.DefaultTemperature,
			TimeoutSeconds: 120,
		},
		Context: ContextConfig{
			Strategy: strategy.KindSlidingWindow.String(),
			BranchID: "A",
			Budget:   llmctx.DefaultBudget(),
		},
		Summary: SummaryConfig{
			KeepLast:  summary.DefaultKeepLast,
			BatchSize: summary.DefaultBatchSize,
		},
		Store: session.DefaultConfig(),
		Observability: ObservabilityConfig{
			Tracing: observability.TracingConfig{ServiceName: observability.DefaultServiceName},
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.Size() > MaxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Load builds the effective configuration: defaults, then the YAML file at
// path if non-empty, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from the environment. DEEPSEEK_API_KEY takes
// precedence over OPENAI_API_KEY, and both only fill an empty key.
func (c *Config) ApplyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = firstEnv("DEEPSEEK_API_KEY", "OPENAI_API_KEY")
	}
	setString(&c.LLM.BaseURL, "CHATCORE_BASE_URL")
	setString(&c.LLM.Model, "CHATCORE_MODEL")
	setString(&c.Context.Strategy, "CHATCORE_STRATEGY")
	setString(&c.Store.Store, "CHATCORE_STORE")
	setString(&c.Store.BaseDir, "CHATCORE_STORE_DIR")
	setString(&c.Store.Redis.Addr, "CHATCORE_REDIS_ADDR")
	setString(&c.Observability.MetricsAddr, "CHATCORE_METRICS_ADDR")

	if v := os.Getenv("CHATCORE_CONTEXT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Context.Budget.ContextLimitTokens = n
		}
	}

	if !c.Observability.Tracing.Enabled && os.Getenv("OTEL_TRACES_EXPORTER") != "" {
		c.Observability.Tracing = observability.TracingConfigFromEnv()
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	if !c.IsSummary() {
		if _, err := strategy.ParseKind(c.Context.Strategy); err != nil {
			return err
		}
	}
	if c.Context.Budget.MaxOutputTokens < 0 {
		return errors.New("context.budget.max_output_tokens must not be negative")
	}
	return c.Store.Validate()
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsSummary reports whether the summary agent is selected.
func (c *Config) IsSummary() bool {
	return strings.EqualFold(strings.TrimSpace(c.Context.Strategy), SummaryStrategy)
}

// StrategyConfig returns the context strategy configuration.
func (c *Config) StrategyConfig() (strategy.Config, error) {
	kind, err := strategy.ParseKind(c.Context.Strategy)
	if err != nil {
		return nil, err
	}
	return strategy.NewConfig(kind, c.Context.Tail, c.Context.BranchID)
}

// OpenAIConfig returns the client configuration for the LLM section.
func (c *Config) OpenAIConfig() llm.OpenAIConfig {
	return llm.OpenAIConfig{
		APIKey:            c.LLM.APIKey,
		BaseURL:           c.LLM.BaseURL,
		Model:             c.LLM.Model,
		Temperature:       c.LLM.Temperature,
		Timeout:           time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.LLM.RequestsPerSecond,
		Burst:             c.LLM.Burst,
	}
}

// SummaryOptions returns the summary manager options.
func (c *Config) SummaryOptions() []summary.Option {
	return []summary.Option{
		summary.WithKeepLast(c.Summary.KeepLast),
		summary.WithBatchSize(c.Summary.BatchSize),
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
