package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Ikigai configuration
type Config struct {
	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Durable session store
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Transient interview state
	State StateConfig `json:"state" mapstructure:"state"`

	// AI configuration
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Job search provider
	JobSearch JobSearchConfig `json:"job_search" mapstructure:"job_search"`

	// HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Tool gateway
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Optional lexicon override file (JSON)
	LexiconPath string `json:"lexicon_path" mapstructure:"lexicon_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// StoreConfig holds durable store configuration
type StoreConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// StateConfig holds interview state store configuration
type StateConfig struct {
	Driver     string `json:"driver" mapstructure:"driver"` // memory, redis
	TTLMinutes int    `json:"ttl_minutes" mapstructure:"ttl_minutes"`
	RedisAddr  string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisDB    int    `json:"redis_db" mapstructure:"redis_db"`
	// Sweep is a cron spec for the memory driver eviction sweep.
	Sweep string `json:"sweep" mapstructure:"sweep"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles    []AIProfile  `json:"profiles" mapstructure:"profiles"`
	Model       string       `json:"model" mapstructure:"model"`
	Temperature float64      `json:"temperature" mapstructure:"temperature"`
	MaxRetries  int          `json:"max_retries" mapstructure:"max_retries"`
	Budgets     TokenBudgets `json:"budgets" mapstructure:"budgets"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model" mapstructure:"model"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// TokenBudgets bounds the output of each generation call site
type TokenBudgets struct {
	Questions     int `json:"questions" mapstructure:"questions"`
	Answer        int `json:"answer" mapstructure:"answer"`
	Profession    int `json:"profession" mapstructure:"profession"`
	JobSuggestion int `json:"job_suggestion" mapstructure:"job_suggestion"`
	JobConclusion int `json:"job_conclusion" mapstructure:"job_conclusion"`
	Plan          int `json:"plan" mapstructure:"plan"`
}

// JobSearchConfig holds job search provider settings
type JobSearchConfig struct {
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	AppID          string `json:"app_id" mapstructure:"app_id"`
	AppKey         string `json:"app_key" mapstructure:"app_key"`
	ResultsPerPage int    `json:"results_per_page" mapstructure:"results_per_page"`
	DefaultCountry string `json:"default_country" mapstructure:"default_country"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// GatewayConfig holds tool gateway settings
type GatewayConfig struct {
	ToolTimeoutSeconds int `json:"tool_timeout_seconds" mapstructure:"tool_timeout_seconds"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Redaction: true,
		},
		State: StateConfig{
			Driver:     "memory",
			TTLMinutes: 120,
			Sweep:      "@every 1m",
		},
		AI: AIConfig{
			Profiles:    []AIProfile{},
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxRetries:  3,
			Budgets: TokenBudgets{
				Questions:     600,
				Answer:        300,
				Profession:    20,
				JobSuggestion: 500,
				JobConclusion: 700,
				Plan:          900,
			},
		},
		JobSearch: JobSearchConfig{
			BaseURL:        "https://api.adzuna.com/v1/api/jobs",
			ResultsPerPage: 20,
			DefaultCountry: "it",
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Gateway: GatewayConfig{
			ToolTimeoutSeconds: 60,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Require at least one AI profile
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider == "" {
			return fmt.Errorf("AI profile %s: provider is required", profile.ID)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		if profile.Provider != "anthropic" && profile.Provider != "openai" {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: anthropic, openai)", profile.ID, profile.Provider)
		}
	}

	if c.State.Driver != "memory" && c.State.Driver != "redis" {
		return fmt.Errorf("invalid state driver: %s", c.State.Driver)
	}
	if c.State.Driver == "redis" && c.State.RedisAddr == "" {
		return fmt.Errorf("state.redis_addr is required for the redis driver")
	}
	if c.State.TTLMinutes <= 0 {
		return fmt.Errorf("state.ttl_minutes must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}
