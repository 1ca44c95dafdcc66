// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	FundsFile string         `yaml:"funds_file" mapstructure:"funds_file"`
	OutputDir string         `yaml:"output_dir" mapstructure:"output_dir"`
	Store     StoreConfig    `yaml:"store" mapstructure:"store"`
	HTTP      HTTPConfig     `yaml:"http" mapstructure:"http"`
	Consent   ConsentConfig  `yaml:"consent" mapstructure:"consent"`
	Retry     RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Document  DocumentConfig `yaml:"document" mapstructure:"document"`
	Run       RunConfig      `yaml:"run" mapstructure:"run"`
	Log       LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// HTTPConfig configures the browsing session engine.
type HTTPConfig struct {
	NavigationTimeoutSecs int     `yaml:"navigation_timeout_secs" mapstructure:"navigation_timeout_secs"`
	DownloadTimeoutSecs   int     `yaml:"download_timeout_secs" mapstructure:"download_timeout_secs"`
	UserAgent             string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSecond     float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ConsentConfig configures gate resolution timing.
type ConsentConfig struct {
	GateTimeoutSecs  int `yaml:"gate_timeout_secs" mapstructure:"gate_timeout_secs"`
	CloseTimeoutSecs int `yaml:"close_timeout_secs" mapstructure:"close_timeout_secs"`
}

// RetryConfig configures whole-extraction retries for transient failures.
type RetryConfig struct {
	MaxAttempts        int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffSecs int `yaml:"initial_backoff_secs" mapstructure:"initial_backoff_secs"`
}

// DocumentConfig configures report text rendering.
type DocumentConfig struct {
	Backend       string `yaml:"backend" mapstructure:"backend"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// RunConfig configures batch behavior.
type RunConfig struct {
	Parallelism int `yaml:"parallelism" mapstructure:"parallelism"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// NavigationTimeout returns the navigation timeout as a duration.
func (h HTTPConfig) NavigationTimeout() time.Duration {
	return time.Duration(h.NavigationTimeoutSecs) * time.Second
}

// DownloadTimeout returns the download timeout as a duration.
func (h HTTPConfig) DownloadTimeout() time.Duration {
	return time.Duration(h.DownloadTimeoutSecs) * time.Second
}

// GateTimeout returns the gate probe timeout as a duration.
func (c ConsentConfig) GateTimeout() time.Duration {
	return time.Duration(c.GateTimeoutSecs) * time.Second
}

// CloseTimeout returns the gate closure timeout as a duration.
func (c ConsentConfig) CloseTimeout() time.Duration {
	return time.Duration(c.CloseTimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("YTM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("funds_file", "funds.yaml")
	v.SetDefault("output_dir", "reports")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "ytm_history.db")
	v.SetDefault("http.navigation_timeout_secs", 30)
	v.SetDefault("http.download_timeout_secs", 60)
	v.SetDefault("http.requests_per_second", 2.0)
	v.SetDefault("consent.gate_timeout_secs", 5)
	v.SetDefault("consent.close_timeout_secs", 5)
	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.initial_backoff_secs", 2)
	v.SetDefault("document.backend", "pdftotext")
	v.SetDefault("document.pdftotext_path", "pdftotext")
	v.SetDefault("run.parallelism", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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
