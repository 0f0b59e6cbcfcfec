package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meddiag-engine/internal/domain"
)

func TestNew_JSONFieldMap(t *testing.T) {
	logger := New(domain.LoggingConfig{Level: "debug", Format: "json"})
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.WithField("disease", "Malaria").Debug("scored")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scored", entry["message"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "Malaria", entry["disease"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"bogus", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, New(domain.LoggingConfig{Level: tt.level}).GetLevel())
		})
	}
}

func TestNew_TextFormat(t *testing.T) {
	logger := New(domain.LoggingConfig{Level: "info", Format: "TEXT"})
	_, ok := logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}

func TestCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", CorrelationID(ctx))

	generated := CorrelationID(context.Background())
	assert.Len(t, generated, 36)
	assert.NotEqual(t, generated, CorrelationID(context.Background()))
}

func TestFromContext(t *testing.T) {
	logger := logrus.New()

	entry := FromContext(WithCorrelationID(context.Background(), "req-1"), logger)
	assert.Equal(t, "req-1", entry.Data[FieldCorrelationID])

	entry = FromContext(context.Background(), logger)
	assert.NotContains(t, entry.Data, FieldCorrelationID)
}
