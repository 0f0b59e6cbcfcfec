package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/meddiag-engine/internal/domain"
)

// EnvPrefix is the prefix of every environment variable read by the manager.
const EnvPrefix = "MEDDIAG"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return newManager("")
}

// NewManagerFromFile creates a configuration manager reading an explicit file
func NewManagerFromFile(path string) (*Manager, error) {
	return newManager(path)
}

func newManager(configFile string) (*Manager, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	m := &Manager{configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/meddiag/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("ai.api_key", EnvPrefix+"_AI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return fmt.Errorf("error binding ai.api_key: %w", err)
	}

	setDefaults(v)

	// Config file is optional; defaults and environment variables are enough.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || m.configFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &domain.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = cfg
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8001)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.allow_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Scoring defaults
	v.SetDefault("scoring.gate_threshold", 30.0)
	v.SetDefault("scoring.jitter_amplitude", 5.0)
	v.SetDefault("scoring.seed", 0)

	v.SetDefault("rules.path", "")

	// AI defaults
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai.model", "gemini-2.0-flash-exp")
	v.SetDefault("ai.timeout", "20s")
	v.SetDefault("ai.rate_limit", 2.0)
	v.SetDefault("ai.burst", 4)
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.breaker_max_requests", 3)
	v.SetDefault("ai.breaker_interval", "30s")
	v.SetDefault("ai.breaker_timeout", "60s")
	v.SetDefault("ai.breaker_min_calls", 3)
	v.SetDefault("ai.breaker_failure_ratio", 0.6)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.memory_size", 512)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.pool_size", 10)
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetScoringConfig returns the deterministic engine parameters
func (m *Manager) GetScoringConfig() *domain.ScoringConfig {
	return &m.config.Scoring
}

// GetAIConfig returns the generative-AI configuration
func (m *Manager) GetAIConfig() *domain.AIConfig {
	return &m.config.AI
}

// GetCacheConfig returns the AI response cache configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a configuration value independently of how it was loaded.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return domain.NewValidationError("server.port", "must be within 1-65535", cfg.Server.Port)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return domain.NewValidationError("logging.level", "unknown log level", cfg.Logging.Level)
	}

	if math.IsNaN(cfg.Scoring.GateThreshold) || cfg.Scoring.GateThreshold < 0 || cfg.Scoring.GateThreshold > 100 {
		return domain.NewValidationError("scoring.gate_threshold", "must be within [0, 100]", cfg.Scoring.GateThreshold)
	}
	if j := cfg.Scoring.JitterAmplitude; math.IsNaN(j) || math.IsInf(j, 0) || j < 0 {
		return domain.NewValidationError("scoring.jitter_amplitude", "must be a finite, non-negative number", j)
	}

	if cfg.AI.Enabled {
		if strings.TrimSpace(cfg.AI.APIKey) == "" {
			return domain.NewValidationError("ai.api_key", "is required when ai.enabled is true (set MEDDIAG_AI_API_KEY)", "")
		}
		if cfg.AI.BaseURL == "" {
			return domain.NewValidationError("ai.base_url", "is required when ai.enabled is true", "")
		}
		if cfg.AI.Timeout <= 0 {
			return domain.NewValidationError("ai.timeout", "must be positive", cfg.AI.Timeout)
		}
	}

	if cfg.Cache.Enabled && cfg.Cache.MemorySize <= 0 {
		return domain.NewValidationError("cache.memory_size", "must be positive when cache is enabled", cfg.Cache.MemorySize)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
