package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults for everything with a sensible zero-config value.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 72*time.Hour)
	v.SetDefault("search.timeout", 5*time.Second)
	v.SetDefault("link_server.timeout", 10*time.Second)
	v.SetDefault("wiki.timeout", 10*time.Second)
	v.SetDefault("suggester.default_limit", 250)
	v.SetDefault("suggester.task_type_config_title", "MediaWiki:NewcomerTasks.json")
	v.SetDefault("suggester.topic_config_title", "MediaWiki:NewcomerTopics.json")

	// Optional config file in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; anything else is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables take precedence, e.g. GROWTHTASKS_DATABASE_URL.
	v.SetEnvPrefix("GROWTHTASKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound explicitly for Unmarshal to see
	// their environment values.
	for _, key := range []string{
		"database.url",
		"database.replica_url",
		"cache.addr",
		"cache.password",
		"search.base_url",
		"link_server.base_url",
		"wiki.base_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
