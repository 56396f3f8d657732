// Package config loads pubmed-tabulate settings from defaults, an optional
// YAML file, environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/observability"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// PUBMED_TABULATE_NCBI_PAGE_SIZE.
const EnvPrefix = "PUBMED_TABULATE"

// ConfigName is the base name of the optional config file.
const ConfigName = "pubmed-tabulate"

// Config holds all configuration for a run.
type Config struct {
	NCBI    NCBIConfig    `mapstructure:"ncbi"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
	Report  ReportConfig  `mapstructure:"report"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// NCBIConfig configures the E-utilities client.
type NCBIConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// APIKey falls back to NCBI_API_KEY when unset.
	APIKey     string        `mapstructure:"api_key"`
	Tool       string        `mapstructure:"tool" validate:"required"`
	Email      string        `mapstructure:"email" validate:"omitempty,email"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	// RateLimit overrides the requests per second; zero keeps NCBI policy.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	PageSize  int     `mapstructure:"page_size" validate:"gte=1,lte=10000"`
	MaxPages  int     `mapstructure:"max_pages" validate:"gte=1"`
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=none memory file sqlite"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	Level     string `mapstructure:"level" validate:"oneof=trace debug info warn warning error disabled off"`
	Format    string `mapstructure:"format" validate:"oneof=json console pretty"`
	Output    string `mapstructure:"output" validate:"oneof=stdout stderr"`
	AddSource bool   `mapstructure:"add_source"`
}

// ReportConfig controls how results are rendered.
type ReportConfig struct {
	Format    string `mapstructure:"format" validate:"oneof=plain json human csv"`
	OutputDir string `mapstructure:"output_dir"`
}

// MetricsConfig controls the Prometheus textfile written after a run.
type MetricsConfig struct {
	Textfile  string `mapstructure:"textfile"`
	Namespace string `mapstructure:"namespace" validate:"required"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ncbi.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("ncbi.api_key", "")
	v.SetDefault("ncbi.tool", "pubmed-tabulate")
	v.SetDefault("ncbi.email", "")
	v.SetDefault("ncbi.timeout", "30s")
	v.SetDefault("ncbi.max_retries", 0)
	v.SetDefault("ncbi.rate_limit", 0)
	v.SetDefault("ncbi.page_size", 1000)
	v.SetDefault("ncbi.max_pages", 1000)

	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.path", "")

	logging := observability.DefaultLoggingConfig()
	v.SetDefault("logging.level", logging.Level)
	v.SetDefault("logging.format", logging.Format)
	v.SetDefault("logging.output", logging.Output)
	v.SetDefault("logging.add_source", logging.AddSource)

	v.SetDefault("report.format", "plain")
	v.SetDefault("report.output_dir", "")

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.namespace", "pubmed_tabulate")
}

// Load resolves the configuration. configFile, when set, must exist;
// otherwise pubmed-tabulate.yaml is searched for in the working directory
// and the user config directory. flags maps config keys such as
// "cache.backend" to the command-line flags that override them; nil flags
// are skipped.
func Load(configFile string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", flag.Name, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, ConfigName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.NCBI.APIKey == "" {
		cfg.NCBI.APIKey = os.Getenv("NCBI_API_KEY")
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Logging.Output = strings.ToLower(c.Logging.Output)
	c.Report.Format = strings.ToLower(c.Report.Format)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cache path requirement.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "file", "sqlite":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache backend %q requires cache.path", c.Cache.Backend)
		}
	}
	return nil
}
