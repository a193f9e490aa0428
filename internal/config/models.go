package config

import (
	"fmt"
	"time"
)

// ScanConfig controls how much of a message is inspected
type ScanConfig struct {
	HeadersOnly bool
	MaxBodySize int
}

// FeatureConfig overrides the extractor's deny-lists
type FeatureConfig struct {
	SuspiciousTLDs []string
	ShortenerHosts []string
}

// StoreConfig represents the configuration for the result store
type StoreConfig struct {
	Enabled          bool
	Type             string
	Retention        time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
}

// ServerConfig represents the configuration for the SMTP content filter
type ServerConfig struct {
	FilterType     string
	ListenAddress  string
	SeverityHeader string
	ScoreHeader    string
	RulesHeader    string
	PostfixAddress string
	PostfixPort    int
	PostfixEnabled bool
	TagSubject     bool
	HighTag        string
	ReviewTag      string
}

// GetRulesPath returns the location of the rule configuration document
func (c *Config) GetRulesPath() string {
	return c.GetString("rules.path")
}

// GetReportDir returns the directory reports are written to
func (c *Config) GetReportDir() string {
	return c.GetString("report.out_dir")
}

// GetScan returns the scan configuration
func (c *Config) GetScan() ScanConfig {
	return ScanConfig{
		HeadersOnly: c.GetBool("scan.headers_only"),
		MaxBodySize: c.GetInt("scan.max_body_size"),
	}
}

// GetFeatures returns the feature extractor configuration
func (c *Config) GetFeatures() FeatureConfig {
	return FeatureConfig{
		SuspiciousTLDs: c.GetStringSlice("features.suspicious_tlds"),
		ShortenerHosts: c.GetStringSlice("features.shortener_hosts"),
	}
}

// GetStore returns the result store configuration
func (c *Config) GetStore() (StoreConfig, error) {
	retention, err := c.GetDuration("store.retention")
	if err != nil {
		return StoreConfig{}, fmt.Errorf("invalid store.retention: %w", err)
	}
	cleanup, err := c.GetDuration("store.cleanup_frequency")
	if err != nil {
		return StoreConfig{}, fmt.Errorf("invalid store.cleanup_frequency: %w", err)
	}

	return StoreConfig{
		Enabled:          c.GetBool("store.enabled"),
		Type:             c.GetString("store.type"),
		Retention:        retention,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("store.sqlite_path"),
		MySQLDSN:         c.GetString("store.mysql_dsn"),
		RedisAddr:        c.GetString("store.redis_addr"),
		RedisPassword:    c.GetString("store.redis_password"),
		RedisDB:          c.GetInt("store.redis_db"),
	}, nil
}

// GetServer returns the SMTP content filter configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:     c.GetString("server.filter_type"),
		ListenAddress:  c.GetString("server.listen_address"),
		SeverityHeader: c.GetString("server.headers.severity"),
		ScoreHeader:    c.GetString("server.headers.score"),
		RulesHeader:    c.GetString("server.headers.rules"),
		PostfixAddress: c.GetString("server.postfix.address"),
		PostfixPort:    c.GetInt("server.postfix.port"),
		PostfixEnabled: c.GetBool("server.postfix.enabled"),
		TagSubject:     c.GetBool("server.tag_subject"),
		HighTag:        c.GetString("server.subject_tags.high"),
		ReviewTag:      c.GetString("server.subject_tags.review"),
	}
}
