package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/ikigai/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging defaults, the config file and
IKIGAI_* environment variables. Secrets are masked. Exits non-zero when the
configuration does not validate.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	data, err := json.MarshalIndent(masked(cfg), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))

	var problems []string
	if err := cfg.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	for _, err := range config.NewValidator().ValidateConfig(cfg) {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	fmt.Fprintln(out, "Configuration is valid")
	return nil
}

func masked(cfg *config.Config) config.Config {
	c := *cfg
	c.AI.Profiles = make([]config.AIProfile, len(cfg.AI.Profiles))
	for i, p := range cfg.AI.Profiles {
		p.APIKey = mask(p.APIKey)
		c.AI.Profiles[i] = p
	}
	c.JobSearch.AppKey = mask(cfg.JobSearch.AppKey)
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
