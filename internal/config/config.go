// Package config loads service configuration from config.toml and BFO_ environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Staleness scopes for the report refresh policy.
const (
	ScopeYearGap      = "year_gap"
	ScopeOrganization = "organization"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	BFO      BFOConfig
	Refresh  RefreshConfig
	Cache    CacheConfig
	History  HistoryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// IsDevelopment reports whether the service runs in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development"
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	AutoMigrate     bool
}

// RedisConfig holds Redis connection settings.
// An empty Host selects the in-process cooldown store.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// BFOConfig holds upstream registry settings
type BFOConfig struct {
	URL         string
	ProxyURL    string
	UserAgent   string
	Timeout     time.Duration
	CooldownKey string
	Cooldown    time.Duration
}

// RefreshConfig holds the report staleness policy
type RefreshConfig struct {
	ReportAvailableDays int
	StalenessScope      string // year_gap, organization
}

// MaxAge converts ReportAvailableDays to a duration.
func (r RefreshConfig) MaxAge() time.Duration {
	return time.Duration(r.ReportAvailableDays) * 24 * time.Hour
}

// CacheConfig holds the in-process organization cache settings
type CacheConfig struct {
	OrganizationsMaxCost int64
	OrganizationsTTL     time.Duration
}

// HistoryConfig holds request history settings
type HistoryConfig struct {
	Enabled           bool
	CompressThreshold int
	Retention         time.Duration
	CleanupInterval   time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BFO_ prefix (e.g., BFO_DATABASE_DSN)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already prepared viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("BFO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxConns:        v.GetInt32("database.max_conns"),
			MinConns:        v.GetInt32("database.min_conns"),
			MaxConnLifetime: v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime: v.GetDuration("database.max_conn_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		BFO: BFOConfig{
			URL:         v.GetString("bfo.url"),
			ProxyURL:    v.GetString("bfo.proxy_url"),
			UserAgent:   v.GetString("bfo.user_agent"),
			Timeout:     v.GetDuration("bfo.timeout"),
			CooldownKey: v.GetString("bfo.cooldown_key"),
			Cooldown:    v.GetDuration("bfo.cooldown"),
		},
		Refresh: RefreshConfig{
			ReportAvailableDays: v.GetInt("refresh.report_available_days"),
			StalenessScope:      v.GetString("refresh.staleness_scope"),
		},
		Cache: CacheConfig{
			OrganizationsMaxCost: v.GetInt64("cache.organizations_max_cost"),
			OrganizationsTTL:     v.GetDuration("cache.organizations_ttl"),
		},
		History: HistoryConfig{
			Enabled:           v.GetBool("history.enabled"),
			CompressThreshold: v.GetInt("history.compress_threshold"),
			Retention:         v.GetDuration("history.retention"),
			CleanupInterval:   v.GetDuration("history.cleanup_interval"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers built-in defaults
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bfoproxy")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("log.level", "info")

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.port", 6379)

	v.SetDefault("bfo.url", "https://bo.nalog.gov.ru")
	v.SetDefault("bfo.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36 Edg/142.0.0.0")
	v.SetDefault("bfo.timeout", 30*time.Second)
	v.SetDefault("bfo.cooldown_key", "bfo:timeout")
	v.SetDefault("bfo.cooldown", 180*time.Second)

	v.SetDefault("refresh.report_available_days", 7)
	v.SetDefault("refresh.staleness_scope", ScopeYearGap)

	v.SetDefault("cache.organizations_max_cost", 10000)
	v.SetDefault("cache.organizations_ttl", time.Hour)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.compress_threshold", 10*1024)
	v.SetDefault("history.retention", 90*24*time.Hour)
	v.SetDefault("history.cleanup_interval", time.Hour)
}

// validate checks the configuration for obviously broken values
func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds database.max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if _, err := url.ParseRequestURI(c.BFO.URL); err != nil {
		return fmt.Errorf("bfo.url is invalid: %w", err)
	}
	if c.BFO.ProxyURL != "" {
		if _, err := url.Parse(c.BFO.ProxyURL); err != nil {
			return fmt.Errorf("bfo.proxy_url is invalid: %w", err)
		}
	}
	if c.BFO.Timeout <= 0 {
		return fmt.Errorf("bfo.timeout must be positive")
	}
	if c.BFO.Cooldown <= 0 {
		return fmt.Errorf("bfo.cooldown must be positive")
	}
	if c.Refresh.ReportAvailableDays < 0 {
		return fmt.Errorf("refresh.report_available_days must not be negative")
	}
	switch c.Refresh.StalenessScope {
	case ScopeYearGap, ScopeOrganization:
	default:
		return fmt.Errorf("refresh.staleness_scope must be %q or %q, got %q", ScopeYearGap, ScopeOrganization, c.Refresh.StalenessScope)
	}
	if c.Cache.OrganizationsMaxCost <= 0 {
		return fmt.Errorf("cache.organizations_max_cost must be positive")
	}
	return nil
}
