// Package config provides configuration for the session tracker.
package config

import (
	"github.com/spf13/viper"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DBDriver string
	DBURL    string

	// Pagination bounds
	DefaultPageSize int
	MaxPageSize     int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	v := viper.New()
	v.SetDefault("http_port", 8080)
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_url", "file:sessions.db?cache=shared&mode=rwc")
	v.SetDefault("default_page_size", 50)
	v.SetDefault("max_page_size", 100)
	v.SetDefault("log_level", "info")
	v.AutomaticEnv()

	return &Config{
		HTTPPort:        v.GetInt("http_port"),
		DBDriver:        v.GetString("db_driver"),
		DBURL:           v.GetString("db_url"),
		DefaultPageSize: v.GetInt("default_page_size"),
		MaxPageSize:     v.GetInt("max_page_size"),
		LogLevel:        v.GetString("log_level"),
	}
}
