package models

import "time"

// Config represents the main configuration
type Config struct {
	HTTP          HTTPConfig         `mapstructure:"http"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Sync          SyncConfig         `mapstructure:"sync"`
	Server        ServerConfig       `mapstructure:"server"`
	Subscriptions SubscriptionConfig `mapstructure:"subscriptions"`
	Lists         []FilterList       `mapstructure:"lists"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	UserAgent string        `mapstructure:"user_agent"`
	MaxSize   int64         `mapstructure:"max_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// SyncConfig controls automatic subscription updates
type SyncConfig struct {
	Schedule          string        `mapstructure:"schedule"` // cron spec, e.g. "@every 1h"
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// SubscriptionConfig holds subscription related settings
type SubscriptionConfig struct {
	ExceptionsURL     string `mapstructure:"exceptions_url"`
	Locale            string `mapstructure:"locale"`
	NotificationsFile string `mapstructure:"notifications_file"`
}

// FilterList represents a single filter list configuration
type FilterList struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// EnabledLists returns only enabled filter lists
func (c *Config) EnabledLists() []FilterList {
	var enabled []FilterList
	for _, l := range c.Lists {
		if l.Enabled {
			enabled = append(enabled, l)
		}
	}
	return enabled
}
