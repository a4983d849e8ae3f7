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
	WhatConverts WhatConvertsConfig `yaml:"whatconverts" mapstructure:"whatconverts"`
	HouseCallPro HouseCallProConfig `yaml:"housecallpro" mapstructure:"housecallpro"`
	Webhook      WebhookConfig      `yaml:"webhook" mapstructure:"webhook"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// WhatConvertsConfig holds WhatConverts API credentials.
type WhatConvertsConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	Secret  string `yaml:"secret" mapstructure:"secret"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// HouseCallProConfig holds HouseCall Pro API settings.
type HouseCallProConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// RateLimit caps outbound requests per second to the HCP API.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// WebhookConfig controls which inbound events are accepted.
type WebhookConfig struct {
	// AllowedProfiles lists WhatConverts profile IDs whose webhooks
	// are processed. Events from any other profile get a 400.
	AllowedProfiles []int64 `yaml:"allowed_profiles" mapstructure:"allowed_profiles"`
}

// ServerConfig configures the webhook server.
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
	v.SetEnvPrefix("LEADBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("whatconverts.base_url", "https://app.whatconverts.com/api/v1/leads")
	v.SetDefault("housecallpro.base_url", "https://api.housecallpro.com")
	v.SetDefault("housecallpro.rate_limit", 5)
	v.SetDefault("webhook.allowed_profiles", []int64{129575})

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
