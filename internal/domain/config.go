package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string        `mapstructure:"environment"`
	Server      ServerConfig  `mapstructure:"server"`
	Logging     LoggingConfig `mapstructure:"logging"`
	Scoring     ScoringConfig `mapstructure:"scoring"`
	Rules       RulesConfig   `mapstructure:"rules"`
	AI          AIConfig      `mapstructure:"ai"`
	Cache       CacheConfig   `mapstructure:"cache"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ScoringConfig holds the tunable parameters of the deterministic engine.
// Defaults reproduce the original calibration: gate 30, jitter ±5.
type ScoringConfig struct {
	GateThreshold   float64 `mapstructure:"gate_threshold"`
	JitterAmplitude float64 `mapstructure:"jitter_amplitude"`
	// Seed 0 means seed from the clock.
	Seed int64 `mapstructure:"seed"`
}

// RulesConfig points at an optional rule-set file replacing the embedded one.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// AIConfig represents the generative-AI service configuration
type AIConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	Burst            int           `mapstructure:"burst"`
	Temperature      float64       `mapstructure:"temperature"`
	BreakerRequests  uint32        `mapstructure:"breaker_max_requests"`
	BreakerInterval  time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
	BreakerMinCalls  uint32        `mapstructure:"breaker_min_calls"`
	BreakerFailRatio float64       `mapstructure:"breaker_failure_ratio"`
}

// CacheConfig represents the AI response cache configuration
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MemorySize int           `mapstructure:"memory_size"`
	TTL        time.Duration `mapstructure:"ttl"`
	RedisURL   string        `mapstructure:"redis_url"`
	PoolSize   int           `mapstructure:"pool_size"`
}
