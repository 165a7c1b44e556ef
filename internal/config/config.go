// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"promptharvest/internal/cache"
	"promptharvest/internal/governor"
	"promptharvest/internal/guard"
	"promptharvest/internal/worker"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Governor  GovernorConfig  `mapstructure:"governor"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Guard     GuardConfig     `mapstructure:"guard"`
	Fleet     FleetConfig     `mapstructure:"fleet"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// GovernorConfig sets the admission thresholds and backoff knobs.
type GovernorConfig struct {
	FailureThreshold       int     `mapstructure:"failure_threshold"`
	RecoveryTimeoutSeconds int     `mapstructure:"recovery_timeout_seconds"`
	WindowSize             int     `mapstructure:"window_size"`
	CriticalErrorRate      float64 `mapstructure:"critical_error_rate"`
	WarningErrorRate       float64 `mapstructure:"warning_error_rate"`
	SlowLatencySeconds     int     `mapstructure:"slow_latency_seconds"`
	BaseDelaySeconds       int     `mapstructure:"base_delay_seconds"`
	MinDelaySeconds        int     `mapstructure:"min_delay_seconds"`
	MaxDelaySeconds        int     `mapstructure:"max_delay_seconds"`
	ErrorBackoffSeconds    int     `mapstructure:"error_backoff_seconds"`
	BackoffCap             int     `mapstructure:"backoff_cap"`
}

// CacheConfig sets the result cache shape.
type CacheConfig struct {
	Capacity             int `mapstructure:"capacity"`
	TTLSeconds           int `mapstructure:"ttl_seconds"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

// GuardConfig sets process resource ceilings.
type GuardConfig struct {
	SampleIntervalSeconds int     `mapstructure:"sample_interval_seconds"`
	MaxMemoryMB           float64 `mapstructure:"max_memory_mb"`
	MaxCPUPercent         float64 `mapstructure:"max_cpu_percent"`
}

// FleetConfig governs the worker pool and its batch pacing.
type FleetConfig struct {
	Workers             int `mapstructure:"workers"`
	BatchSize           int `mapstructure:"batch_size"`
	BatchPauseSeconds   int `mapstructure:"batch_pause_seconds"`
	MaxOpenCycles       int `mapstructure:"max_open_cycles"`
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`
	QueueDepth          int `mapstructure:"queue_depth"`
}

// FetchConfig configures the plain HTTP fetcher.
type FetchConfig struct {
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	RespectRobots  bool `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the headless rendering fallback.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// RateLimitConfig sets the per-host request rate floor.
type RateLimitConfig struct {
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst int     `mapstructure:"default_burst"`
}

// DBConfig controls access to the relational database. An empty DSN keeps
// persistence in memory.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for alert notifications. An empty project
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("governor.failure_threshold", 5)
	v.SetDefault("governor.recovery_timeout_seconds", 300)
	v.SetDefault("governor.window_size", 50)
	v.SetDefault("governor.critical_error_rate", 0.5)
	v.SetDefault("governor.warning_error_rate", 0.2)
	v.SetDefault("governor.slow_latency_seconds", 30)
	v.SetDefault("governor.base_delay_seconds", 2)
	v.SetDefault("governor.min_delay_seconds", 2)
	v.SetDefault("governor.max_delay_seconds", 8)
	v.SetDefault("governor.error_backoff_seconds", 5)
	v.SetDefault("governor.backoff_cap", 8)
	v.SetDefault("cache.capacity", 50)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.sweep_interval_seconds", 60)
	v.SetDefault("guard.sample_interval_seconds", 30)
	v.SetDefault("guard.max_memory_mb", 1024)
	v.SetDefault("guard.max_cpu_percent", 85)
	v.SetDefault("fleet.workers", 3)
	v.SetDefault("fleet.batch_size", 5)
	v.SetDefault("fleet.batch_pause_seconds", 10)
	v.SetDefault("fleet.max_open_cycles", 3)
	v.SetDefault("fleet.fetch_timeout_seconds", 60)
	v.SetDefault("fleet.queue_depth", 64)
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("ratelimit.default_rps", 0.5)
	v.SetDefault("ratelimit.default_burst", 1)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Governor.FailureThreshold <= 0 {
		return fmt.Errorf("governor.failure_threshold must be > 0")
	}
	if c.Governor.WindowSize <= 0 {
		return fmt.Errorf("governor.window_size must be > 0")
	}
	if c.Governor.CriticalErrorRate <= c.Governor.WarningErrorRate {
		return fmt.Errorf("governor.critical_error_rate must exceed governor.warning_error_rate")
	}
	if c.Governor.MinDelaySeconds > c.Governor.MaxDelaySeconds {
		return fmt.Errorf("governor.min_delay_seconds must not exceed governor.max_delay_seconds")
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be > 0")
	}
	if c.Guard.MaxMemoryMB <= 0 || c.Guard.MaxCPUPercent <= 0 {
		return fmt.Errorf("guard ceilings must be > 0")
	}
	if c.Fleet.Workers <= 0 {
		return fmt.Errorf("fleet.workers must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	return nil
}

// GovernorConfig converts the flat knobs into the governor's config.
func (c Config) GovernorSettings() governor.Config {
	return governor.Config{
		Breaker: governor.BreakerConfig{
			FailureThreshold: c.Governor.FailureThreshold,
			RecoveryTimeout:  seconds(c.Governor.RecoveryTimeoutSeconds),
		},
		Monitor: governor.MonitorConfig{
			WindowSize:        c.Governor.WindowSize,
			CriticalErrorRate: c.Governor.CriticalErrorRate,
			WarningErrorRate:  c.Governor.WarningErrorRate,
			SlowLatency:       seconds(c.Governor.SlowLatencySeconds),
		},
		Delay: governor.DelayConfig{
			BaseDelay:        seconds(c.Governor.BaseDelaySeconds),
			MinDelay:         seconds(c.Governor.MinDelaySeconds),
			MaxDelay:         seconds(c.Governor.MaxDelaySeconds),
			ErrorBackoffBase: seconds(c.Governor.ErrorBackoffSeconds),
			BackoffCap:       c.Governor.BackoffCap,
		},
	}
}

// CacheSettings converts the flat knobs into the result cache config.
func (c Config) CacheSettings() cache.Config {
	return cache.Config{
		Capacity:      c.Cache.Capacity,
		TTL:           seconds(c.Cache.TTLSeconds),
		SweepInterval: seconds(c.Cache.SweepIntervalSeconds),
	}
}

// GuardSettings converts the flat knobs into the resource guard config.
func (c Config) GuardSettings() guard.Config {
	return guard.Config{
		SampleInterval: seconds(c.Guard.SampleIntervalSeconds),
		MaxMemoryMB:    c.Guard.MaxMemoryMB,
		MaxCPUPercent:  c.Guard.MaxCPUPercent,
	}
}

// PoolSettings converts the flat knobs into the worker pool config.
func (c Config) PoolSettings() worker.PoolConfig {
	return worker.PoolConfig{
		Workers:       c.Fleet.Workers,
		BatchSize:     c.Fleet.BatchSize,
		BatchPause:    seconds(c.Fleet.BatchPauseSeconds),
		MaxOpenCycles: c.Fleet.MaxOpenCycles,
	}
}

// WorkerSettings converts the flat knobs into the per-task worker config.
func (c Config) WorkerSettings() worker.Config {
	return worker.Config{FetchTimeout: seconds(c.Fleet.FetchTimeoutSeconds)}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
