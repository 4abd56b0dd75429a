// Package config loads application configuration from file and environment
// and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Costing CostingConfig `yaml:"costing" mapstructure:"costing"`
	Alerts  AlertsConfig  `yaml:"alerts" mapstructure:"alerts"`
	Pricing PricingConfig `yaml:"pricing" mapstructure:"pricing"`
	Notify  NotifyConfig  `yaml:"notify" mapstructure:"notify"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CostingConfig selects the default labor and overhead allocation policies
// applied during cost compilation. Per-recipe rates come from the recipe row.
type CostingConfig struct {
	LaborPolicy    string `yaml:"labor_policy" mapstructure:"labor_policy"`
	OverheadPolicy string `yaml:"overhead_policy" mapstructure:"overhead_policy"`
}

// AlertsConfig holds the tunable thresholds of change detection.
type AlertsConfig struct {
	// NoiseFloorPct is the minimum absolute percentage move worth reporting.
	// A change of exactly this value does not alert.
	NoiseFloorPct float64 `yaml:"noise_floor_pct" mapstructure:"noise_floor_pct"`
	// HighSeverityPct is the absolute percentage move above which an alert is
	// marked high severity.
	HighSeverityPct float64 `yaml:"high_severity_pct" mapstructure:"high_severity_pct"`
}

// PricingConfig holds default margin tiers for price suggestions.
type PricingConfig struct {
	EconomyMarginPct  float64 `yaml:"economy_margin_pct" mapstructure:"economy_margin_pct"`
	StandardMarginPct float64 `yaml:"standard_margin_pct" mapstructure:"standard_margin_pct"`
	PremiumMarginPct  float64 `yaml:"premium_margin_pct" mapstructure:"premium_margin_pct"`
	// RoundIncrement rounds suggested prices up to the nearest multiple
	// (e.g. 100 for rupiah menu prices). 0 disables rounding.
	RoundIncrement float64 `yaml:"round_increment" mapstructure:"round_increment"`
}

// NotifyConfig configures alert delivery.
type NotifyConfig struct {
	Channel    string  `yaml:"channel" mapstructure:"channel"` // log, webhook, none
	WebhookURL string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst      int     `yaml:"burst" mapstructure:"burst"`
}

// BatchConfig configures batch fan-out.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("COSTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "costing.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("costing.labor_policy", "percent")
	v.SetDefault("costing.overhead_policy", "percent")
	v.SetDefault("alerts.noise_floor_pct", 1.0)
	v.SetDefault("alerts.high_severity_pct", 15.0)
	v.SetDefault("pricing.economy_margin_pct", 30)
	v.SetDefault("pricing.standard_margin_pct", 60)
	v.SetDefault("pricing.premium_margin_pct", 100)
	v.SetDefault("pricing.round_increment", 0)
	v.SetDefault("notify.channel", "log")
	v.SetDefault("notify.rate_per_sec", 5)
	v.SetDefault("notify.burst", 10)
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("server.port", 8080)
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
