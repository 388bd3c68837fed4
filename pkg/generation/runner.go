package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/ikigai/internal/observability"
	"github.com/harun/ikigai/internal/tracing"
)

// Prompt is one single-shot completion request
type Prompt struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completer produces a completion for a prompt
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Runner sends prompts to the configured providers with failover and retry
type Runner struct {
	logger          zerolog.Logger
	providerFactory ProviderCreator
	model           string
	temperature     float64
	maxRetries      int
	retryBaseDelay  time.Duration
	cooldownStep    time.Duration

	profiles []Profile
	mu       sync.RWMutex
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	Profiles        []Profile
	ProviderFactory ProviderCreator
	Logger          zerolog.Logger
	Model           string
	Temperature     float64
	MaxRetries      int
	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration
	// CooldownStep is multiplied by the profile failure count.
	CooldownStep time.Duration
}

// NewRunner creates a new runner
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	observability.EnsureRegistered()

	if len(cfg.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	factory := cfg.ProviderFactory
	if factory == nil {
		factory = &ProviderFactory{}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.CooldownStep <= 0 {
		cfg.CooldownStep = time.Minute
	}

	profiles := make([]Profile, len(cfg.Profiles))
	copy(profiles, cfg.Profiles)

	return &Runner{
		logger:          cfg.Logger,
		providerFactory: factory,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxRetries:      cfg.MaxRetries,
		retryBaseDelay:  cfg.RetryBaseDelay,
		cooldownStep:    cfg.CooldownStep,
		profiles:        profiles,
	}, nil
}

// Complete runs the prompt against the first healthy profile
func (r *Runner) Complete(ctx context.Context, prompt Prompt) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "ikigai.generation", "generation.complete",
		attribute.Int("max_tokens", prompt.MaxTokens))
	defer span.End()

	content, err := r.completeWithFailover(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return content, nil
}

func (r *Runner) completeWithFailover(ctx context.Context, prompt Prompt) (string, error) {
	r.mu.RLock()
	profiles := make([]Profile, len(r.profiles))
	copy(profiles, r.profiles)
	r.mu.RUnlock()
	logger := tracing.LoggerFromContext(ctx, r.logger)

	sortProfilesByPriority(profiles)

	var lastErr error

	for _, profile := range profiles {
		start := time.Now()
		if profile.CooldownUntil != nil && time.Now().UnixMilli() < *profile.CooldownUntil {
			logger.Debug().Str("profile_id", profile.ID).Msg("Skipping profile in cooldown")
			continue
		}

		provider, err := r.providerFactory.NewProvider(profile)
		if err != nil {
			logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Failed to create provider")
			lastErr = err
			continue
		}

		content, err := r.callWithRetry(ctx, provider, r.request(profile, prompt))
		if err == nil {
			content = strings.TrimSpace(content)
			observability.RecordGeneration(provider.Provider(), time.Since(start), content != "")
			if content == "" {
				return "", fmt.Errorf("%w: empty completion from %s", ErrGeneration, provider.Provider())
			}
			r.updateProfileSuccess(profile.ID)
			return content, nil
		}

		lastErr = err
		observability.RecordGeneration(provider.Provider(), time.Since(start), false)
		logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Provider profile failed")
		r.updateProfileFailure(profile.ID)

		if !IsRetryableError(err) {
			return "", fmt.Errorf("%w: %v", ErrGeneration, err)
		}
	}

	if lastErr == nil {
		lastErr = errors.New("every profile is cooling down")
	}
	logger.Error().Err(lastErr).Msg("All provider profiles failed")
	return "", fmt.Errorf("%w: all provider profiles failed: %v", ErrGeneration, lastErr)
}

func (r *Runner) request(profile Profile, prompt Prompt) LLMRequest {
	model := profile.Model
	if model == "" {
		model = r.model
		if profile.Provider == "anthropic" {
			model = DefaultAnthropicModel
		}
	}
	temperature := prompt.Temperature
	if temperature == 0 {
		temperature = r.temperature
	}
	return LLMRequest{
		Model:        model,
		Messages:     prompt.Messages,
		Temperature:  temperature,
		MaxTokens:    prompt.MaxTokens,
		SystemPrompt: prompt.System,
	}
}

// callWithRetry calls the provider with exponential backoff retry
func (r *Runner) callWithRetry(ctx context.Context, provider LLMProvider, request LLMRequest) (string, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		response, err := provider.Call(ctx, request)
		if err == nil {
			return response.Content, nil
		}

		lastErr = err

		if !IsRetryableError(err) {
			return "", err
		}

		if attempt == r.maxRetries-1 {
			break
		}

		delay := r.retryBaseDelay * time.Duration(1<<attempt)
		r.logger.Info().
			Str("provider", provider.Provider()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", fmt.Errorf("max retries (%d) exceeded: %w", r.maxRetries, lastErr)
}

func (r *Runner) updateProfileSuccess(profileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.profiles {
		if r.profiles[i].ID == profileID {
			r.profiles[i].FailureCount = 0
			r.profiles[i].CooldownUntil = nil
			observability.SetProviderCooldown(profileID, false)
			break
		}
	}
}

func (r *Runner) updateProfileFailure(profileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.profiles {
		if r.profiles[i].ID == profileID {
			r.profiles[i].FailureCount++
			until := time.Now().Add(r.cooldownStep * time.Duration(r.profiles[i].FailureCount)).UnixMilli()
			r.profiles[i].CooldownUntil = &until
			observability.SetProviderCooldown(profileID, true)
			break
		}
	}
}

// sortProfilesByPriority sorts profiles by priority (lower = higher priority)
func sortProfilesByPriority(profiles []Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})
}

// IsRetryableError reports whether err is a rate limit, server error or
// network failure worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode == 429 || oaErr.StatusCode >= 500
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return anErr.StatusCode == 429 || anErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{"ECONNRESET", "ETIMEDOUT", "429", "rate limit", "500", "502", "503", "504", "overloaded"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
