package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateCountryCode validates a two-letter provider country code
func (v *Validator) ValidateCountryCode(code string) error {
	if len(code) != 2 || strings.ToLower(code) != code {
		return fmt.Errorf("invalid country code: %q (must be two lowercase letters)", code)
	}
	return nil
}

// ValidateSweepSpec validates the state eviction cron spec
func (v *Validator) ValidateSweepSpec(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid state sweep spec %q: %w", spec, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	for i, profile := range cfg.AI.Profiles {
		if profile.Provider != "" {
			if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
				errors = append(errors, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
			}
		}
	}

	if err := v.ValidateTemperature(cfg.AI.Temperature); err != nil {
		errors = append(errors, err)
	}

	budgets := map[string]int{
		"questions":      cfg.AI.Budgets.Questions,
		"answer":         cfg.AI.Budgets.Answer,
		"profession":     cfg.AI.Budgets.Profession,
		"job_suggestion": cfg.AI.Budgets.JobSuggestion,
		"job_conclusion": cfg.AI.Budgets.JobConclusion,
		"plan":           cfg.AI.Budgets.Plan,
	}
	for name, tokens := range budgets {
		if err := v.ValidateMaxTokens(tokens); err != nil {
			errors = append(errors, fmt.Errorf("ai.budgets.%s: %w", name, err))
		}
	}

	if err := v.ValidateCountryCode(cfg.JobSearch.DefaultCountry); err != nil {
		errors = append(errors, fmt.Errorf("job_search.default_country: %w", err))
	}
	if cfg.JobSearch.ResultsPerPage <= 0 || cfg.JobSearch.ResultsPerPage > 50 {
		errors = append(errors, fmt.Errorf("job_search.results_per_page must be between 1 and 50"))
	}

	if err := v.ValidateSweepSpec(cfg.State.Sweep); err != nil {
		errors = append(errors, err)
	}
	if time.Duration(cfg.State.TTLMinutes)*time.Minute < time.Minute {
		errors = append(errors, fmt.Errorf("state.ttl_minutes must be >= 1"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
