package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meddiag-engine/internal/ai"
	"github.com/meddiag-engine/internal/config"
	"github.com/meddiag-engine/internal/logging"
)

func managerFromYAML(t *testing.T, content string) *config.Manager {
	t.Helper()
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	m, err := config.NewManagerFromFile(path)
	require.NoError(t, err)
	return m
}

func TestNew_DeterministicOnly(t *testing.T) {
	m := managerFromYAML(t, "ai:\n  enabled: false\n")

	a, err := New(m, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.AI)
	assert.False(t, a.Service.AIEnabled())
	assert.Positive(t, a.Rules.Registry.Len())
	assert.NotNil(t, a.Server.Router())
}

func TestNew_AIWithoutKeyFails(t *testing.T) {
	t.Setenv("MEDDIAG_AI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	m := managerFromYAML(t, "ai:\n  enabled: true\n")

	_, err := New(m, logging.Discard())
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrMissingAPIKey)
}

func TestNew_AIFallsBackToMemoryCache(t *testing.T) {
	m := managerFromYAML(t, `
ai:
  enabled: true
  api_key: test-key
cache:
  enabled: true
  redis_url: "not-a-url://"
`)

	a, err := New(m, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.AI)
	assert.True(t, a.Service.AIEnabled())
	assert.Equal(t, ai.DefaultModel, a.AI.Model())
	assert.Equal(t, "closed", a.AI.BreakerState())

	require.Error(t, a.AI.Cache().Ping(context.Background()))
	assert.False(t, a.AI.Cache().HasRedis())

	rec := httptest.NewRecorder()
	a.Server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status     string `json:"status"`
		Components map[string]struct {
			Status string `json:"status"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "warning", body.Status)
	assert.Equal(t, "warning", body.Components["cache"].Status)
}

func TestNew_MissingRulesFile(t *testing.T) {
	m := managerFromYAML(t, "rules:\n  path: /nonexistent/rules.yaml\n")

	_, err := New(m, logging.Discard())
	assert.Error(t, err)
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
