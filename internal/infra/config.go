package infra

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting. Sensitive or deployment-specific values
// can be overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Exchange struct {
		StartingCash      decimal.Decimal `yaml:"starting_cash"` // seeded into fresh wallets
		DepthLevels       int             `yaml:"depth_levels"`
		SettlementRetries int             `yaml:"settlement_retries"`
		StatsWindowHours  int             `yaml:"stats_window_hours"`
	} `yaml:"exchange"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies env overrides,
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	if c.Exchange.StartingCash.IsNegative() {
		return fmt.Errorf("starting cash must not be negative")
	}
	if c.Exchange.DepthLevels <= 0 {
		return fmt.Errorf("depth levels must be positive")
	}
	if c.Exchange.SettlementRetries <= 0 {
		return fmt.Errorf("settlement retries must be positive")
	}
	return nil
}

// overrideWithEnv applies environment variable overrides when present.
func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("MOVIEX_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if path := os.Getenv("MOVIEX_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("MOVIEX_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
