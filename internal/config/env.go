package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// viper only consults the environment for keys it already knows about.
var envBoundKeys = []string{
	"logging.level",
	"logging.file",
	"data_dir",
	"store.path",
	"state.driver",
	"state.ttl_minutes",
	"state.redis_addr",
	"state.redis_db",
	"ai.model",
	"ai.temperature",
	"job_search.base_url",
	"job_search.app_id",
	"job_search.app_key",
	"job_search.default_country",
	"server.host",
	"server.port",
	"lexicon_path",
}

func bindEnvKeys(v *viper.Viper) {
	for _, key := range envBoundKeys {
		_ = v.BindEnv(key)
	}
}

// applyEnvProfiles adds provider profiles from the conventional API key
// variables when the config file declares none.
func applyEnvProfiles(cfg *Config) {
	if len(cfg.AI.Profiles) > 0 {
		return
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.AI.Profiles = append(cfg.AI.Profiles, AIProfile{
			ID:       "openai-env",
			Provider: "openai",
			APIKey:   key,
			Priority: 1,
		})
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.AI.Profiles = append(cfg.AI.Profiles, AIProfile{
			ID:       "anthropic-env",
			Provider: "anthropic",
			APIKey:   key,
			Model:    "claude-3-5-haiku-latest",
			Priority: 2,
		})
	}
	if cfg.JobSearch.AppID == "" {
		cfg.JobSearch.AppID = os.Getenv("ADZUNA_APP_ID")
	}
	if cfg.JobSearch.AppKey == "" {
		cfg.JobSearch.AppKey = os.Getenv("ADZUNA_APP_KEY")
	}
}
