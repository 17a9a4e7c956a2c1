package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/modelforge/paramd/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Hierarchy HierarchyConfig `yaml:"hierarchy" mapstructure:"hierarchy"`
	Templates TemplateConfig  `yaml:"templates" mapstructure:"templates"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// HierarchyConfig configures the entity catalog and parent lookups.
type HierarchyConfig struct {
	EntityFile string       `yaml:"entity_file" mapstructure:"entity_file"`
	Lookup     LookupConfig `yaml:"lookup" mapstructure:"lookup"`
}

// LookupConfig holds retry and circuit breaker knobs for ancestor-chain
// parent lookups.
type LookupConfig struct {
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	JitterFraction    float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold  int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs  int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Retry converts the lookup knobs into a resilience.RetryConfig.
func (c LookupConfig) Retry() resilience.RetryConfig {
	return resilience.FromRetryConfig(c.MaxAttempts, c.InitialBackoffMs, c.MaxBackoffMs, c.BackoffMultiplier, c.JitterFraction)
}

// Breaker converts the lookup knobs into a resilience.CircuitBreakerConfig.
func (c LookupConfig) Breaker() resilience.CircuitBreakerConfig {
	return resilience.FromCircuitConfig(c.FailureThreshold, c.ResetTimeoutSecs)
}

// TemplateConfig configures template file loading.
type TemplateConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// NotionConfig holds Notion API credentials and the template database id.
type NotionConfig struct {
	Token      string  `yaml:"token" mapstructure:"token"`
	TemplateDB string  `yaml:"template_db" mapstructure:"template_db"`
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// Load reads configuration from file and environment. An empty path
// searches the working directory for an optional config.yaml; a named
// path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PARAMD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "paramd.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("hierarchy.lookup.max_attempts", 3)
	v.SetDefault("hierarchy.lookup.initial_backoff_ms", 100)
	v.SetDefault("hierarchy.lookup.max_backoff_ms", 2000)
	v.SetDefault("hierarchy.lookup.backoff_multiplier", 2.0)
	v.SetDefault("hierarchy.lookup.jitter_fraction", 0.2)
	v.SetDefault("hierarchy.lookup.failure_threshold", 5)
	v.SetDefault("hierarchy.lookup.reset_timeout_secs", 30)
	v.SetDefault("notion.rate_limit", 3.0)

	// A searched config file is optional, an explicitly named one is not.
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

// Validate checks the fields the given mode depends on. Modes: "serve"
// (store + HTTP server), "sync" (store + Notion credentials), "store"
// and "migrate" (store only). All problems are reported at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	storeProblems := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		default:
			problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		}
	}

	switch mode {
	case "serve":
		storeProblems()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if n := c.Hierarchy.Lookup.MaxAttempts; n < 1 || n > 10 {
			problems = append(problems, "hierarchy.lookup.max_attempts must be between 1 and 10")
		}
	case "sync":
		storeProblems()
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.TemplateDB == "" {
			problems = append(problems, "notion.template_db is required")
		}
	case "store", "migrate":
		storeProblems()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
