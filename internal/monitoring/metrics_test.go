package monitoring

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordRequest(t *testing.T) {
	c := NewCollector(0)

	c.RecordRequest("POST /diagnostic", 200, 3*time.Millisecond)
	c.RecordRequest("POST /diagnostic", 500, 30*time.Millisecond)
	c.RecordRequest("GET /health", 200, time.Millisecond)

	snap := c.Snapshot()
	require.Len(t, snap.Routes, 2)

	diag := snap.Routes["POST /diagnostic"]
	assert.Equal(t, int64(2), diag.Requests.Value)
	assert.Equal(t, int64(1), diag.Errors.Value)
	assert.Equal(t, int64(2), diag.Latency.Count)
	assert.Equal(t, int64(1), diag.Latency.Buckets["0.005"])
	assert.Equal(t, int64(2), diag.Latency.Buckets["0.05"])
	assert.Equal(t, 2, diag.Recent.Count)
	assert.Equal(t, 3.0, diag.Recent.Min)
	assert.Equal(t, 30.0, diag.Recent.Max)
	assert.Equal(t, 16.5, diag.Recent.Mean)
}

func TestCollector_WindowIsBounded(t *testing.T) {
	c := NewCollector(3)
	for i := 1; i <= 5; i++ {
		c.RecordRequest("r", 200, time.Duration(i)*time.Millisecond)
	}

	snap := c.Snapshot()
	assert.Equal(t, int64(5), snap.Routes["r"].Requests.Value)
	assert.Equal(t, 3, snap.Routes["r"].Recent.Count)
	assert.Equal(t, 3.0, snap.Routes["r"].Recent.Min)
	assert.Equal(t, 5.0, snap.Routes["r"].Recent.Max)
}

func TestCollector_RecordDiagnosis(t *testing.T) {
	c := NewCollector(0)
	c.RecordDiagnosis("ai", "")
	c.RecordDiagnosis("deterministic", "timeout")
	c.RecordDiagnosis("deterministic", "timeout")
	c.RecordDiagnosis("deterministic", "")

	snap := c.Snapshot()
	assert.Equal(t, int64(1), snap.Diagnoses["ai"])
	assert.Equal(t, int64(3), snap.Diagnoses["deterministic"])
	assert.Equal(t, map[string]int64{"timeout": 2}, snap.AIFallbacks)
}

func TestCollector_SnapshotIsCopyAndMarshals(t *testing.T) {
	c := NewCollector(0)
	c.RecordRequest("r", 200, time.Millisecond)

	snap := c.Snapshot()
	c.RecordRequest("r", 200, time.Millisecond)
	assert.Equal(t, int64(1), snap.Routes["r"].Requests.Value)

	_, err := json.Marshal(snap)
	assert.NoError(t, err)
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector(16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordRequest("r", 200, time.Millisecond)
				c.RecordDiagnosis("deterministic", "")
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(800), snap.Routes["r"].Requests.Value)
	assert.Equal(t, int64(800), snap.Diagnoses["deterministic"])
}
