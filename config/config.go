package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/planmesh/core"
)

// ModelConfig describes one model endpoint. The map key under which it
// is registered doubles as the default model name; Roles may override
// the model per role (planner, worker, reporter, react).
type ModelConfig struct {
	// Provider selects the adapter ("openai" or "anthropic").
	Provider string `yaml:"provider"`
	// BaseURL is the API endpoint. ${VAR} references are expanded.
	BaseURL string `yaml:"base_url"`
	// APIKey authenticates requests. ${VAR} references are expanded.
	APIKey string `yaml:"api_key"`
	// Temperature controls sampling randomness.
	Temperature float64 `yaml:"temperature"`
	// MaxTokens caps the completion length per call.
	MaxTokens int `yaml:"max_tokens"`
	// TimeoutSeconds bounds a single model call.
	TimeoutSeconds int `yaml:"timeout"`
	// Roles maps a role name to the model that role should use.
	Roles map[string]string `yaml:"roles"`
}

// DefaultModelConfig returns a ModelConfig with the standard defaults.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:       "openai",
		Temperature:    0.1,
		MaxTokens:      8192,
		TimeoutSeconds: 60,
	}
}

// Timeout returns the per-call timeout as a duration.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func (m ModelConfig) withDefaults() ModelConfig {
	def := DefaultModelConfig()
	if m.Provider == "" {
		m.Provider = def.Provider
	}
	if m.Temperature == 0 {
		m.Temperature = def.Temperature
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = def.MaxTokens
	}
	if m.TimeoutSeconds == 0 {
		m.TimeoutSeconds = def.TimeoutSeconds
	}
	return m
}

// Config holds every tunable of an orchestration run.
type Config struct {
	// DefaultStrategy is used when a run does not name one.
	DefaultStrategy string `yaml:"default_strategy"`
	// MaxPlanIterations caps how often the planner may replan.
	MaxPlanIterations int `yaml:"max_plan_iterations"`
	// MaxReactIterations caps the reasoning loop.
	MaxReactIterations int `yaml:"max_react_iterations"`
	// MaxConcurrentTasks bounds parallel task execution. Zero means
	// no limit.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"`
	// MaxModelCalls bounds model calls per run. Zero means no limit.
	MaxModelCalls int `yaml:"max_model_calls"`
	// HistoryWindow limits how many trailing messages a task executor
	// sends to the model. Zero sends the full history.
	HistoryWindow int `yaml:"history_window"`
	// ToolResultWarnBytes is the tool payload size above which a
	// warning is logged. The payload is kept intact either way.
	ToolResultWarnBytes int `yaml:"tool_result_warn_bytes"`
	// Models registers model endpoints by name.
	Models map[string]ModelConfig `yaml:"models"`
	// DefaultModel names the Models entry used when a run does not
	// pick one.
	DefaultModel string `yaml:"default_model"`
	// OutputDir receives batch run artifacts.
	OutputDir string `yaml:"output_dir"`
	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config with the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultStrategy:     string(core.StrategyPlanExecute),
		MaxPlanIterations:   10,
		MaxReactIterations:  15,
		MaxConcurrentTasks:  0,
		MaxModelCalls:       0,
		HistoryWindow:       0,
		ToolResultWarnBytes: 5000,
		Models:              map[string]ModelConfig{},
		OutputDir:           "data/results",
		LogLevel:            "INFO",
	}
}

// Load reads a YAML file over DefaultConfig and applies environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.normalize()
	cfg.applyEnv()

	return cfg, nil
}

// normalize fills zero-valued model fields with their defaults.
func (c *Config) normalize() {
	if c.Models == nil {
		c.Models = map[string]ModelConfig{}
	}
	for name, m := range c.Models {
		c.Models[name] = m.withDefaults()
	}
}

// applyEnv expands ${VAR} references and fills model endpoints that the
// file left unset. LLM_BASE_URL and LLM_API_KEY apply to every model
// without an explicit value; LOG_LEVEL overrides the configured level.
func (c *Config) applyEnv() {
	baseURL := os.Getenv("LLM_BASE_URL")
	apiKey := os.Getenv("LLM_API_KEY")

	for name, m := range c.Models {
		m.BaseURL = os.ExpandEnv(m.BaseURL)
		m.APIKey = os.ExpandEnv(m.APIKey)
		if m.BaseURL == "" {
			m.BaseURL = baseURL
		}
		if m.APIKey == "" {
			m.APIKey = apiKey
		}
		c.Models[name] = m
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// Model returns the named model entry.
func (c *Config) Model(name string) (ModelConfig, bool) {
	m, ok := c.Models[name]
	return m, ok
}

// RoleModel resolves the model name a role should use from the given
// entry. The per-role override wins; otherwise the entry name itself is
// the model name.
func (c *Config) RoleModel(entry string, role core.Role) string {
	m, ok := c.Models[entry]
	if !ok {
		return entry
	}
	if name := m.Roles[string(role)]; name != "" {
		return name
	}
	return entry
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	switch core.Strategy(c.DefaultStrategy) {
	case core.StrategyPlanExecute, core.StrategyReact:
	default:
		errs = append(errs, fmt.Errorf("unknown default strategy %q", c.DefaultStrategy))
	}

	if c.MaxPlanIterations < 1 {
		errs = append(errs, errors.New("max_plan_iterations must be at least 1"))
	}
	if c.MaxReactIterations < 1 {
		errs = append(errs, errors.New("max_react_iterations must be at least 1"))
	}
	if c.MaxConcurrentTasks < 0 {
		errs = append(errs, errors.New("max_concurrent_tasks must not be negative"))
	}
	if c.MaxModelCalls < 0 {
		errs = append(errs, errors.New("max_model_calls must not be negative"))
	}
	if c.HistoryWindow < 0 {
		errs = append(errs, errors.New("history_window must not be negative"))
	}
	if c.ToolResultWarnBytes < 0 {
		errs = append(errs, errors.New("tool_result_warn_bytes must not be negative"))
	}

	if c.DefaultModel != "" {
		if _, ok := c.Models[c.DefaultModel]; !ok {
			errs = append(errs, fmt.Errorf("default model %q is not defined", c.DefaultModel))
		}
	}
	for name, m := range c.Models {
		if m.BaseURL == "" {
			errs = append(errs, fmt.Errorf("model %s missing base_url", name))
		}
		if m.APIKey == "" {
			errs = append(errs, fmt.Errorf("model %s missing api_key", name))
		}
		switch m.Provider {
		case "openai", "anthropic":
		default:
			errs = append(errs, fmt.Errorf("model %s has unknown provider %q", name, m.Provider))
		}
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
