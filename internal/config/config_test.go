package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meddiag-engine/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.Equal(t, 8001, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 30.0, m.GetScoringConfig().GateThreshold)
	assert.Equal(t, 5.0, m.GetScoringConfig().JitterAmplitude)
	assert.Equal(t, int64(0), m.GetScoringConfig().Seed)
	assert.False(t, m.GetAIConfig().Enabled)
	assert.Equal(t, 20*time.Second, m.GetAIConfig().Timeout)
	assert.True(t, m.GetCacheConfig().Enabled)
	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MEDDIAG_SERVER_PORT", "9090")
	t.Setenv("MEDDIAG_SCORING_GATE_THRESHOLD", "42.5")
	t.Setenv("MEDDIAG_SCORING_SEED", "7")
	t.Setenv("MEDDIAG_AI_ENABLED", "true")
	t.Setenv("MEDDIAG_AI_API_KEY", "test-key")
	t.Setenv("MEDDIAG_ENVIRONMENT", "production")

	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, 9090, m.GetServerConfig().Port)
	assert.Equal(t, 42.5, m.GetScoringConfig().GateThreshold)
	assert.Equal(t, int64(7), m.GetScoringConfig().Seed)
	assert.True(t, m.GetAIConfig().Enabled)
	assert.Equal(t, "test-key", m.GetAIConfig().APIKey)
	assert.True(t, m.IsProduction())
}

func TestNewManager_GeminiKeyFallback(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MEDDIAG_AI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	m, err := NewManager()
	require.NoError(t, err)
	assert.Equal(t, "gemini-key", m.GetAIConfig().APIKey)
}

func TestNewManagerFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 7000
scoring:
  gate_threshold: 25
  jitter_amplitude: 0
logging:
  level: debug
  format: text
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	m, err := NewManagerFromFile(path)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, 7000, m.GetServerConfig().Port)
	assert.Equal(t, 25.0, m.GetScoringConfig().GateThreshold)
	assert.Equal(t, 0.0, m.GetScoringConfig().JitterAmplitude)
	assert.Equal(t, "text", m.GetConfig().Logging.Format)
}

func TestNewManagerFromFile_Missing(t *testing.T) {
	_, err := NewManagerFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *domain.Config {
		return &domain.Config{
			Server:  domain.ServerConfig{Port: 8001},
			Logging: domain.LoggingConfig{Level: "info"},
			Scoring: domain.ScoringConfig{GateThreshold: 30, JitterAmplitude: 5},
			Cache:   domain.CacheConfig{Enabled: true, MemorySize: 10},
		}
	}

	tests := []struct {
		name   string
		mutate func(*domain.Config)
		field  string
	}{
		{"valid", func(*domain.Config) {}, ""},
		{"bad port", func(c *domain.Config) { c.Server.Port = 0 }, "server.port"},
		{"bad log level", func(c *domain.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"gate above range", func(c *domain.Config) { c.Scoring.GateThreshold = 101 }, "scoring.gate_threshold"},
		{"negative jitter", func(c *domain.Config) { c.Scoring.JitterAmplitude = -1 }, "scoring.jitter_amplitude"},
		{"nan gate", func(c *domain.Config) { c.Scoring.GateThreshold = math.NaN() }, "scoring.gate_threshold"},
		{"nan jitter", func(c *domain.Config) { c.Scoring.JitterAmplitude = math.NaN() }, "scoring.jitter_amplitude"},
		{"infinite jitter", func(c *domain.Config) { c.Scoring.JitterAmplitude = math.Inf(1) }, "scoring.jitter_amplitude"},
		{"ai without key", func(c *domain.Config) {
			c.AI = domain.AIConfig{Enabled: true, BaseURL: "http://ai", Timeout: time.Second}
		}, "ai.api_key"},
		{"ai without timeout", func(c *domain.Config) {
			c.AI = domain.AIConfig{Enabled: true, APIKey: "k", BaseURL: "http://ai"}
		}, "ai.timeout"},
		{"empty memory cache", func(c *domain.Config) { c.Cache.MemorySize = 0 }, "cache.memory_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
