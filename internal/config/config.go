package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/phish-triage/")
	v.AddConfigPath("$HOME/.phish-triage")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("PHISH_TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit file
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	v.SetConfigFile(path)

	v.AutomaticEnv()
	v.SetEnvPrefix("PHISH_TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("rules.path", "./configs/rules.yaml")

	// Scan defaults
	v.SetDefault("scan.headers_only", true)
	v.SetDefault("scan.max_body_size", 20000)

	// Empty lists keep the built-in deny-lists
	v.SetDefault("features.suspicious_tlds", []string{})
	v.SetDefault("features.shortener_hosts", []string{})

	// Store defaults
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.retention", "720h")
	v.SetDefault("store.cleanup_frequency", "1h")
	v.SetDefault("store.sqlite_path", "/data/phish_results.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/phish_triage?parseTime=true")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)

	v.SetDefault("report.out_dir", "./outputs")

	// Server defaults
	v.SetDefault("server.filter_type", "postfix")
	v.SetDefault("server.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.headers.severity", "X-Phish-Severity")
	v.SetDefault("server.headers.score", "X-Phish-Score")
	v.SetDefault("server.headers.rules", "X-Phish-Rules")
	v.SetDefault("server.postfix.address", "127.0.0.1")
	v.SetDefault("server.postfix.port", 10026)
	v.SetDefault("server.postfix.enabled", true)
	v.SetDefault("server.tag_subject", false)
	v.SetDefault("server.subject_tags.high", "[PHISH?] ")
	v.SetDefault("server.subject_tags.review", "[REVIEW] ")

	// CLI defaults
	v.SetDefault("cli.verbose", false)
	v.SetDefault("cli.json_output", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
