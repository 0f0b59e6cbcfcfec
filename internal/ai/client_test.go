package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meddiag-engine/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func envelope(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]interface{}{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	})
	require.NoError(t, err)
	return body
}

type fakeGemini struct {
	calls    int32
	lastBody []byte
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeGemini) serve(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		body, _ := io.ReadAll(r.Body)
		f.lastBody = body
		f.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, mutate func(*domain.AIConfig), opts ...Option) *Client {
	t.Helper()
	cfg := domain.AIConfig{
		Enabled:     true,
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "test-model",
		Timeout:     2 * time.Second,
		Temperature: 0.3,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg, testLogger(), opts...)
	require.NoError(t, err)
	return c
}

const diagnosisDoc = `{
  "diagnostics": [
    {"id": 1, "disease": "Paludisme", "probability": 82.5, "explanation": "Fièvre et frissons en saison des pluies."},
    {"id": 2, "disease": "Dengue", "probability": 40, "explanation": "Céphalées et fièvre."}
  ],
  "medications": [
    {"id": 1, "name": "Artéméther-Luméfantrine", "indication": "Paludisme simple", "dosage": "4 cp x2/j pendant 3 jours", "category": "Antipaludique", "cost": 2500}
  ]
}`

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(domain.AIConfig{Enabled: true}, testLogger())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestPredictDiagnostics_Success(t *testing.T) {
	fake := &fakeGemini{}
	fake.handler = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		w.Write(envelope(t, diagnosisDoc))
	}
	srv := fake.serve(t)
	client := newTestClient(t, srv.URL, nil)

	pc := &domain.PatientCase{
		Symptoms: []domain.Symptom{{Name: "fièvre"}},
		Analyses: []domain.Analysis{{Name: "TDR", Result: domain.StringResult("positif"), Photo: "data:image/png;base64,aGVsbG8="}},
	}
	res := client.PredictDiagnostics(context.Background(), pc)

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	require.Len(t, res.Value.Diagnostics, 2)
	assert.Equal(t, "Paludisme", res.Value.Diagnostics[0].Disease)
	assert.Equal(t, 82.5, res.Value.Diagnostics[0].Probability)
	assert.NotEmpty(t, res.Value.Diagnostics[0].Explanation)
	require.Len(t, res.Value.Medications, 1)
	require.NotNil(t, res.Value.Medications[0].Cost)
	assert.Equal(t, 2500.0, *res.Value.Medications[0].Cost)

	var sent geminiRequest
	require.NoError(t, json.Unmarshal(fake.lastBody, &sent))
	require.Len(t, sent.Contents, 1)
	parts := sent.Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0].Text, "- fièvre")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	assert.Equal(t, "aGVsbG8=", parts[1].InlineData.Data)
	assert.Equal(t, "application/json", sent.GenerationConfig.ResponseMimeType)
	assert.NotEmpty(t, sent.GenerationConfig.ResponseJSONSchema)
}

func TestPredictDiagnostics_CachedResponse(t *testing.T) {
	fake := &fakeGemini{handler: func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(t, diagnosisDoc))
	}}
	srv := fake.serve(t)
	cache := NewMemoryCache(domain.CacheConfig{MemorySize: 8, TTL: time.Minute}, testLogger())
	client := newTestClient(t, srv.URL, nil, WithCache(cache))

	pc := &domain.PatientCase{Symptoms: []domain.Symptom{{Name: "fièvre"}}}
	first := client.PredictDiagnostics(context.Background(), pc)
	second := client.PredictDiagnostics(context.Background(), pc)

	require.True(t, first.OK())
	require.True(t, second.OK())
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls))
	assert.Equal(t, 1, cache.Len())
}

func TestResponseCache_Ping(t *testing.T) {
	cfg := domain.CacheConfig{MemorySize: 8, TTL: time.Minute}

	memory := NewMemoryCache(cfg, testLogger())
	assert.NoError(t, memory.Ping(context.Background()))

	cause := errors.New("dial tcp: connection refused")
	degraded := NewDegradedCache(cfg, testLogger(), cause)
	assert.False(t, degraded.HasRedis())
	assert.ErrorIs(t, degraded.Ping(context.Background()), cause)

	degraded.Set(context.Background(), "k", "v")
	got, ok := degraded.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestGenerate_ErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		handler    func(t *testing.T) http.HandlerFunc
		wantKind   Kind
		wantStatus int
	}{
		{
			name: "schema violation",
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.Write(envelope(t, `{"diagnostics":[{"id":1,"disease":"X","probability":150,"explanation":""}],"medications":[]}`))
				}
			},
			wantKind: KindSchema,
		},
		{
			name: "not json",
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.Write(envelope(t, "Je pense au paludisme."))
				}
			},
			wantKind: KindSchema,
		},
		{
			name: "server error",
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error":{"message":"internal"}}`))
				}
			},
			wantKind:   KindUpstream,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "quota exceeded",
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusTooManyRequests)
				}
			},
			wantKind:   KindRateLimited,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "blocked prompt",
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
				}
			},
			wantKind: KindUpstream,
		},
		{
			name: "empty candidates",
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(`{"candidates":[]}`))
				}
			},
			wantKind: KindUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGemini{handler: tt.handler(t)}
			srv := fake.serve(t)
			client := newTestClient(t, srv.URL, nil)

			res := client.PredictDiagnostics(context.Background(), &domain.PatientCase{})

			require.False(t, res.OK())
			assert.Equal(t, tt.wantKind, res.Err.Kind)
			assert.Equal(t, tt.wantStatus, res.Err.StatusCode)
			assert.Equal(t, OpDiagnose, res.Err.Op)
			assert.True(t, IsKind(res.Err, tt.wantKind))
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	fake := &fakeGemini{handler: func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}}
	srv := fake.serve(t)
	client := newTestClient(t, srv.URL, func(cfg *domain.AIConfig) { cfg.Timeout = 50 * time.Millisecond })

	res := client.PredictDiagnostics(context.Background(), &domain.PatientCase{})

	require.False(t, res.OK())
	assert.Equal(t, KindTimeout, res.Err.Kind)
}

func TestGenerate_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := newTestClient(t, url, nil)
	res := client.SuggestAnalyses(context.Background(), []domain.Symptom{{Name: "toux"}}, nil, nil)

	require.False(t, res.OK())
	assert.Equal(t, KindNetwork, res.Err.Kind)
}

func TestGenerate_BreakerOpens(t *testing.T) {
	fake := &fakeGemini{handler: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}}
	srv := fake.serve(t)
	client := newTestClient(t, srv.URL, func(cfg *domain.AIConfig) {
		cfg.BreakerMinCalls = 1
		cfg.BreakerFailRatio = 0.5
		cfg.BreakerTimeout = time.Minute
	})

	first := client.PredictDiagnostics(context.Background(), &domain.PatientCase{})
	require.False(t, first.OK())
	assert.Equal(t, KindUpstream, first.Err.Kind)

	second := client.PredictDiagnostics(context.Background(), &domain.PatientCase{})
	require.False(t, second.OK())
	assert.Equal(t, KindUnavailable, second.Err.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls))
	assert.Equal(t, "open", client.BreakerState())
}

func TestGenerate_CodeFencedJSON(t *testing.T) {
	fake := &fakeGemini{handler: func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(t, "```json\n{\"compatible\": false, \"warnings\": [{\"medication_ids\": [1, 3], \"medication_names\": [\"Ibuprofène\", \"Warfarine\"], \"severity\": \"high\", \"reason\": \"Risque hémorragique.\"}]}\n```"))
	}}
	srv := fake.serve(t)
	client := newTestClient(t, srv.URL, nil)

	meds := []domain.MedicationItem{{ID: 1, Name: "Ibuprofène"}, {ID: 3, Name: "Warfarine"}}
	res := client.CheckCompatibility(context.Background(), meds, nil, nil)

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.False(t, res.Value.Compatible)
	require.Len(t, res.Value.Warnings, 1)
	assert.Equal(t, domain.SeverityHigh, res.Value.Warnings[0].Severity)
	assert.Equal(t, []int{1, 3}, res.Value.Warnings[0].MedicationIDs)
}

func TestSuggestAnalyses_Success(t *testing.T) {
	fake := &fakeGemini{handler: func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(t, `{"suggestions":[{"id":1,"name":"Goutte épaisse","reason":"Recherche de plasmodium.","priority":"high","category":"Parasitologie"}]}`))
	}}
	srv := fake.serve(t)
	client := newTestClient(t, srv.URL, nil)

	res := client.SuggestAnalyses(context.Background(), []domain.Symptom{{Name: "fièvre"}}, nil, nil)

	require.True(t, res.OK())
	require.Len(t, res.Value, 1)
	assert.Equal(t, domain.PriorityHigh, res.Value[0].Priority)
	assert.Equal(t, "Goutte épaisse", res.Value[0].Name)
}

func TestResult_Unpack(t *testing.T) {
	v, err := ok(3).Unpack()
	assert.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = fail[int](newError(OpAnalyses, KindTimeout, context.DeadlineExceeded)).Unpack()
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsKind(err, KindTimeout))
}
