package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/mattsolo1/grove-core/config"
)

//go:generate sh -c "cd .. && go run ./tools/schema-generator/"

const (
	defaultSource       = "grove-planshare"
	defaultPollInterval = 30 * time.Second
)

// Environment variables that override grove.yml settings.
const (
	envAPIURL    = "PLANSHARE_API_URL"
	envAPIToken  = "PLANSHARE_API_TOKEN"
	envStateFile = "PLANSHARE_STATE_FILE"
)

// PlanshareConfig defines the structure for the 'planshare' section in grove.yml.
type PlanshareConfig struct {
	APIURL       string `yaml:"api_url" jsonschema:"description=Base URL of the chat backend API"`
	APIToken     string `yaml:"api_token" jsonschema:"description=Bearer token for the chat backend"`
	StateFile    string `yaml:"state_file" jsonschema:"description=Where tracked plans are recorded"`
	Source       string `yaml:"source" jsonschema:"description=Provenance label written into shared plans"`
	PollInterval string `yaml:"poll_interval" jsonschema:"description=How often watch polls for changes, e.g. 30s"`
	MaxRetries   int    `yaml:"max_retries"`
}

// loadPlanshareConfig loads the core grove config, unmarshals the
// 'planshare' extension and applies environment overrides and defaults.
func loadPlanshareConfig() (*PlanshareConfig, error) {
	coreCfg, err := config.LoadFrom(".")
	if err != nil {
		// It's okay if the core config doesn't exist, we'll just use an empty one.
		coreCfg = &config.Config{}
	}

	var cfg PlanshareConfig
	if err := coreCfg.UnmarshalExtension("planshare", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse 'planshare' configuration from grove.yml: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *PlanshareConfig) applyEnv() {
	if v := os.Getenv(envAPIURL); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(envAPIToken); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv(envStateFile); v != "" {
		c.StateFile = v
	}
}

func (c *PlanshareConfig) applyDefaults() {
	if c.Source == "" {
		c.Source = defaultSource
	}
	if c.PollInterval == "" {
		c.PollInterval = defaultPollInterval.String()
	}
}

// pollInterval returns the configured watch interval.
func (c *PlanshareConfig) pollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid poll_interval %q: %w", c.PollInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	return d, nil
}
