package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	LLM         ProviderConfig    `yaml:"llm"`
	Agents      []AgentConfig     `yaml:"agents,omitempty"`
	Providers   []MCPServer       `yaml:"providers,omitempty"`
	Memory      MemoryConfig      `yaml:"memory"`
	Registry    RegistryConfig    `yaml:"registry"`
	Logger      LoggerConfig      `yaml:"logger"`
	Tracer      TracerConfig      `yaml:"tracer"`
}

// CoordinatorConfig tunes the top-level request path.
type CoordinatorConfig struct {
	// StepBuffer is added to the analyzer's estimated steps to form the
	// orchestrator's step budget.
	StepBuffer int `yaml:"step_buffer"`
	// HistoryLimit caps messages loaded per request. 0 = no limit.
	HistoryLimit int `yaml:"history_limit"`
	// Temperature for the orchestrator generation call.
	Temperature float64 `yaml:"temperature"`
	// DefaultTimeout bounds one request when the caller supplies none.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// ProviderConfig configures the generation backend (OpenAI-compatible API).
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig configures failure protection on the generator.
type CircuitBreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// AgentConfig declares one sub-agent (or overrides the orchestrator).
type AgentConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	SystemPrompt string   `yaml:"system_prompt"`
	Temperature  float64  `yaml:"temperature,omitempty"`
	MaxSteps     int      `yaml:"max_steps,omitempty"`
	Tools        []string `yaml:"tools,omitempty"`
}

// MCPServer configures one capability provider connection.
type MCPServer struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// MemoryConfig configures the conversation thread store.
type MemoryConfig struct {
	Path string `yaml:"path"`
}

// RegistryConfig tunes capability discovery.
type RegistryConfig struct {
	// RefreshCron re-pulls capability listings on this schedule. Empty
	// disables scheduled refresh (listings refresh once at startup).
	RefreshCron string `yaml:"refresh_cron"`
	// CallsPerSecond rate-limits calls into each provider. 0 = default.
	CallsPerSecond float64 `yaml:"calls_per_second"`
	// CallBurst is the rate limiter burst. 0 = default.
	CallBurst int `yaml:"call_burst"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Coordinator: CoordinatorConfig{
			StepBuffer:     2,
			HistoryLimit:   50,
			Temperature:    0.8,
			DefaultTimeout: 2 * time.Minute,
		},
		LLM: ProviderConfig{
			Name:        "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			ConnTimeout: 30 * time.Second,
			RespTimeout: 120 * time.Second,
		},
		Memory: MemoryConfig{
			Path: "./data/threads.db",
		},
		Registry: RegistryConfig{
			CallsPerSecond: 5,
			CallBurst:      10,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file on top of Defaults, expands ${ENV_VAR}
// references, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} with the environment value. Unset variables
// expand to the empty string, matching shell behavior.
func expandEnv(s string) string {
	return envRe.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envRe.FindStringSubmatch(m)[1])
	})
}

// Validate checks cross-field constraints before any component starts.
func (c *Config) Validate() error {
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Memory.Path == "" {
		return fmt.Errorf("memory.path is required")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		switch p.Transport {
		case "stdio":
			if p.Command == "" {
				return fmt.Errorf("provider %q: stdio transport requires command", p.Name)
			}
		case "http":
			if p.URL == "" {
				return fmt.Errorf("provider %q: http transport requires url", p.Name)
			}
		default:
			return fmt.Errorf("provider %q: unsupported transport %q", p.Name, p.Transport)
		}
	}
	agentIDs := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agents[%d]: id is required", i)
		}
		if agentIDs[a.ID] {
			return fmt.Errorf("agents[%d]: duplicate id %q", i, a.ID)
		}
		agentIDs[a.ID] = true
	}
	return nil
}
