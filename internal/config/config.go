package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache" validate:"required"`
	Search     SearchConfig     `mapstructure:"search" validate:"required"`
	LinkServer LinkServerConfig `mapstructure:"link_server" validate:"required"`
	Wiki       WikiConfig       `mapstructure:"wiki" validate:"required"`
	Suggester  SuggesterConfig  `mapstructure:"suggester" validate:"required"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
	// ReplicaURL points reads at a replica; falls back to URL when empty.
	ReplicaURL string `mapstructure:"replica_url" validate:"omitempty,url"`
}

// CacheConfig contains settings for the shared task-set cache.
type CacheConfig struct {
	Addr     string        `mapstructure:"addr" validate:"required"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl" validate:"required"`
}

// SearchConfig contains settings for the opaque full-text search backend.
type SearchConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`
}

// LinkServerConfig contains settings for the external link-recommendation
// generation service.
type LinkServerConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`
}

// WikiConfig contains settings for the wiki platform API that serves page
// metadata, title resolution and configuration pages.
type WikiConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`
}

// SuggesterConfig contains tuning knobs for the suggestion pipeline.
type SuggesterConfig struct {
	// DefaultLimit is the page size the cache decorator fetches at when it
	// refreshes a user's cached candidate pool.
	DefaultLimit int `mapstructure:"default_limit" validate:"required,gt=0"`

	// TaskTypeConfigTitle and TopicConfigTitle name the wiki pages holding
	// the JSON task-type and topic definitions.
	TaskTypeConfigTitle string `mapstructure:"task_type_config_title" validate:"required"`
	TopicConfigTitle    string `mapstructure:"topic_config_title" validate:"required"`
}
