package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Petitions PetitionsConfig `yaml:"petitions" mapstructure:"petitions"`
	Refresh   RefreshConfig   `yaml:"refresh" mapstructure:"refresh"`
	Table     TableConfig     `yaml:"table" mapstructure:"table"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// APIConfig configures the petitions listing client.
type APIConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	State       string  `yaml:"state" mapstructure:"state"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	MaxPages    int     `yaml:"max_pages" mapstructure:"max_pages"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Timeout returns the per-request timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// PetitionsConfig configures record normalization.
type PetitionsConfig struct {
	UnassignedDepartment string `yaml:"unassigned_department" mapstructure:"unassigned_department"`
}

// RefreshConfig configures the snapshot cache.
type RefreshConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// TTL returns the snapshot lifetime.
func (c RefreshConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// TableConfig configures the query layer defaults.
type TableConfig struct {
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
	TopN     int `yaml:"top_n" mapstructure:"top_n"`
}

// StoreConfig configures the refresh log backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PETITIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("api.base_url", "https://petition.parliament.uk")
	v.SetDefault("api.state", "all")
	v.SetDefault("api.user_agent", "petition-cli/1.0")
	v.SetDefault("api.timeout_secs", 30)
	v.SetDefault("api.max_retries", 1)
	v.SetDefault("api.max_pages", 0)
	v.SetDefault("api.rate_per_sec", 5.0)
	v.SetDefault("petitions.unassigned_department", "Unassigned")
	v.SetDefault("refresh.ttl_minutes", 60)
	v.SetDefault("table.page_size", 50)
	v.SetDefault("table.top_n", 10)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Mode is one of
// "fetch" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "fetch":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Refresh.TTLMinutes <= 0 {
			errs = append(errs, "refresh.ttl_minutes must be > 0")
		}
		switch strings.ToLower(c.Store.Driver) {
		case "", "sqlite":
		case "postgres", "postgresql":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for postgres")
			}
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	}
	if c.API.TimeoutSecs <= 0 {
		errs = append(errs, "api.timeout_secs must be > 0")
	}
	if c.API.MaxRetries < 1 {
		errs = append(errs, "api.max_retries must be >= 1")
	}
	if c.API.MaxPages < 0 {
		errs = append(errs, "api.max_pages must be >= 0")
	}
	if c.API.RatePerSec < 0 {
		errs = append(errs, "api.rate_per_sec must be >= 0")
	}
	if c.Table.PageSize <= 0 {
		errs = append(errs, "table.page_size must be > 0")
	}
	if c.Table.TopN <= 0 {
		errs = append(errs, "table.top_n must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
