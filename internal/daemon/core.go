package daemon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/harun/ikigai/internal/config"
	"github.com/harun/ikigai/pkg/commandqueue"
	"github.com/harun/ikigai/pkg/generation"
	"github.com/harun/ikigai/pkg/jobsearch"
	"github.com/harun/ikigai/pkg/lexicon"
	"github.com/harun/ikigai/pkg/orchestrator"
	"github.com/harun/ikigai/pkg/resume"
	"github.com/harun/ikigai/pkg/statestore"
	"github.com/harun/ikigai/pkg/store"
	"github.com/harun/ikigai/pkg/toolgateway"
)

// Core holds the modules shared by every entrypoint: the durable store, the
// tool gateway and the interview orchestrator.
type Core struct {
	Store        *store.SQLiteStore
	Lexicon      *lexicon.Source
	Runner       *generation.Runner
	Generator    *generation.Generator
	Jobs         *jobsearch.Client
	Executor     *toolgateway.Executor
	Gateway      *toolgateway.Client
	States       statestore.Store
	Queue        *commandqueue.CommandQueue
	Orchestrator *orchestrator.Orchestrator

	redis  *redis.Client
	logger zerolog.Logger
}

// coreDeps lets tests substitute the provider factory
type coreDeps struct {
	providers generation.ProviderCreator
}

// NewCore initializes the core modules in dependency order
func NewCore(cfg *config.Config, logger zerolog.Logger) (*Core, error) {
	return newCore(cfg, logger, coreDeps{})
}

func newCore(cfg *config.Config, logger zerolog.Logger, deps coreDeps) (_ *Core, err error) {
	c := &Core{logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.Store, err = store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	logger.Info().Str("path", cfg.Store.Path).Msg("Session store initialized")

	c.Lexicon, err = lexicon.NewSource(cfg.LexiconPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load lexicon: %w", err)
	}
	if cfg.LexiconPath == "" && cfg.JobSearch.DefaultCountry != "" {
		c.Lexicon.Current().DefaultCountry = strings.ToLower(cfg.JobSearch.DefaultCountry)
	}

	c.Runner, err = generation.NewRunner(generation.RunnerConfig{
		Profiles:        convertProfiles(cfg.AI.Profiles),
		ProviderFactory: deps.providers,
		Logger:          logger.With().Str("component", "runner").Logger(),
		Model:           cfg.AI.Model,
		Temperature:     cfg.AI.Temperature,
		MaxRetries:      cfg.AI.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create generation runner: %w", err)
	}
	c.Generator = generation.NewGenerator(c.Runner, generation.Budgets{
		Questions:     cfg.AI.Budgets.Questions,
		Answer:        cfg.AI.Budgets.Answer,
		Profession:    cfg.AI.Budgets.Profession,
		JobSuggestion: cfg.AI.Budgets.JobSuggestion,
		JobConclusion: cfg.AI.Budgets.JobConclusion,
		Plan:          cfg.AI.Budgets.Plan,
	}, logger)

	c.Jobs = jobsearch.NewClient(jobsearch.Config{
		BaseURL:        cfg.JobSearch.BaseURL,
		AppID:          cfg.JobSearch.AppID,
		AppKey:         cfg.JobSearch.AppKey,
		ResultsPerPage: cfg.JobSearch.ResultsPerPage,
		Timeout:        time.Duration(cfg.JobSearch.TimeoutSeconds) * time.Second,
	}, c.Lexicon, logger)

	c.Executor = toolgateway.New(logger, time.Duration(cfg.Gateway.ToolTimeoutSeconds)*time.Second)
	if err := toolgateway.RegisterCatalogue(c.Executor, toolgateway.Deps{
		Store:      c.Store,
		Profession: c.Generator,
		Jobs:       c.Jobs,
		Extractor:  resume.Extractor{},
	}); err != nil {
		return nil, fmt.Errorf("failed to register tool catalogue: %w", err)
	}
	c.Gateway = toolgateway.NewClient(c.Executor)
	logger.Info().Int("tools", len(c.Executor.ListTools())).Msg("Tool gateway initialized")

	c.States, err = c.newStateStore(cfg.State, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}

	c.Queue = commandqueue.New()
	c.Orchestrator = orchestrator.New(c.Gateway, c.Generator, c.States, c.Queue,
		orchestrator.WithLexicon(c.Lexicon),
		orchestrator.WithExtractor(resume.Extractor{}),
		orchestrator.WithLogger(logger),
	)
	logger.Info().Str("state_driver", cfg.State.Driver).Msg("Orchestrator initialized")

	return c, nil
}

func (c *Core) newStateStore(cfg config.StateConfig, logger zerolog.Logger) (statestore.Store, error) {
	opts := []statestore.Option{
		statestore.WithTTL(time.Duration(cfg.TTLMinutes) * time.Minute),
		statestore.WithLogger(logger),
	}

	switch cfg.Driver {
	case statestore.DriverRedis:
		c.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		opts = append(opts, statestore.WithRedisClient(c.redis))
	default:
		if cfg.Sweep != "" {
			opts = append(opts, statestore.WithSweep(cfg.Sweep))
		}
	}

	return statestore.New(cfg.Driver, opts...)
}

// Close releases every module that holds resources. It is safe on a
// partially initialized Core.
func (c *Core) Close() error {
	var errs []string

	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("command queue: %v", err))
		}
	}
	if c.States != nil {
		if err := c.States.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("state store: %v", err))
		}
	}
	if c.redis != nil && c.States == nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("redis: %v", err))
		}
	}
	if c.Lexicon != nil {
		if err := c.Lexicon.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("lexicon: %v", err))
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("session store: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func convertProfiles(profiles []config.AIProfile) []generation.Profile {
	result := make([]generation.Profile, 0, len(profiles))
	for _, p := range profiles {
		result = append(result, generation.Profile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			Model:    p.Model,
			Priority: p.Priority,
		})
	}
	return result
}
