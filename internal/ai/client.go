// Package ai adapts the external generative-AI service (Gemini) to typed
// operations. Every operation returns a Result carrying either a
// schema-validated value or a classified *Error; the caller decides between
// fallback and default.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/meddiag-engine/internal/domain"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash-exp"
	DefaultTimeout = 20 * time.Second

	maxResponseBytes = 8 << 20
	topK             = 40
)

// ErrMissingAPIKey is returned by NewClient when no key is configured.
var ErrMissingAPIKey = errors.New("ai: api key is required")

// Client calls the Gemini generateContent endpoint with a timeout, a token
// bucket rate limit, a circuit breaker and a response cache.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	timeout     time.Duration
	temperature float64

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   *ResponseCache
	logger  *logrus.Logger
	now     func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache attaches a response cache.
func WithCache(cache *ResponseCache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithClock overrides the clock used for the season in prompts.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a client from configuration. It fails fast when the API
// key is missing.
func NewClient(cfg domain.AIConfig, logger *logrus.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: set ai.api_key or MEDDIAG_AI_API_KEY", ErrMissingAPIKey)
	}
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		temperature: cfg.Temperature,
		limiter:     rate.NewLimiter(limit, burst),
		breaker:     newBreaker(cfg, logger),
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newBreaker(cfg domain.AIConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	minCalls := cfg.BreakerMinCalls
	if minCalls == 0 {
		minCalls = 3
	}
	failRatio := cfg.BreakerFailRatio
	if failRatio <= 0 {
		failRatio = 0.6
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: cfg.BreakerRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minCalls {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= failRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// BreakerState returns the circuit breaker state, e.g. "closed".
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Cache returns the response cache, nil when caching is disabled.
func (c *Client) Cache() *ResponseCache {
	return c.cache
}

// Close releases the cache connections.
func (c *Client) Close() error {
	return c.cache.Close()
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseMimeType   string          `json:"responseMimeType"`
	ResponseJSONSchema json.RawMessage `json:"responseJsonSchema,omitempty"`
	Temperature        float64         `json:"temperature"`
	TopP               float64         `json:"topP"`
	TopK               int             `json:"topK"`
}

// generation is one structured-output request.
type generation struct {
	op          string
	prompt      string
	images      []imagePart
	schema      *responseSchema
	temperature float64
	topP        float64
}

func (g generation) request() geminiRequest {
	parts := []geminiPart{{Text: g.prompt}}
	for _, img := range g.images {
		parts = append(parts,
			geminiPart{InlineData: &geminiBlob{MimeType: img.MimeType, Data: img.Data}},
			geminiPart{Text: fmt.Sprintf("[Image de l'analyse: %s]", img.Analysis)},
		)
	}
	return geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType:   "application/json",
			ResponseJSONSchema: g.schema.raw,
			Temperature:        g.temperature,
			TopP:               g.topP,
			TopK:               topK,
		},
	}
}

func (g generation) cacheKey(model string) string {
	parts := []string{model, g.schema.name, fmt.Sprintf("%.3f", g.temperature), g.prompt}
	for _, img := range g.images {
		parts = append(parts, img.MimeType, img.Data)
	}
	return Key(parts...)
}

// generate returns the schema-valid JSON document produced for g.
func (c *Client) generate(ctx context.Context, g generation) (string, *Error) {
	key := g.cacheKey(c.model)
	if doc, ok := c.cache.Get(ctx, key); ok {
		c.logger.WithField("op", g.op).Debug("AI response served from cache")
		return doc, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", newError(g.op, KindTimeout, err)
		}
		return "", newError(g.op, KindRateLimited, err)
	}

	body, err := json.Marshal(g.request())
	if err != nil {
		return "", newError(g.op, KindSchema, fmt.Errorf("failed to marshal request: %w", err))
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, g.op, body)
	})
	fields := logrus.Fields{
		"op":       g.op,
		"model":    c.model,
		"images":   len(g.images),
		"duration": time.Since(start).String(),
	}
	if err != nil {
		aiErr := classify(g.op, err)
		c.logger.WithFields(fields).WithError(aiErr).Warn("AI call failed")
		return "", aiErr
	}

	doc := cleanJSON(out.(string))
	if err := g.schema.validate(doc); err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("AI response rejected")
		return "", newError(g.op, KindSchema, err)
	}

	c.logger.WithFields(fields).Debug("AI call succeeded")
	c.cache.Set(ctx, key, doc)
	return doc, nil
}

func (c *Client) post(ctx context.Context, op string, body []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(payload, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		kind := KindUpstream
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = KindRateLimited
		}
		return "", &Error{Op: op, Kind: kind, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	if reason := gjson.GetBytes(payload, "promptFeedback.blockReason"); reason.Exists() {
		return "", newError(op, KindUpstream, fmt.Errorf("prompt blocked: %s", reason.String()))
	}

	var text strings.Builder
	for _, part := range gjson.GetBytes(payload, "candidates.0.content.parts.#.text").Array() {
		text.WriteString(part.String())
	}
	if text.Len() == 0 {
		finish := gjson.GetBytes(payload, "candidates.0.finishReason").String()
		return "", newError(op, KindUpstream, fmt.Errorf("response has no candidate text (finish reason %q)", finish))
	}
	return text.String(), nil
}

// cleanJSON strips markdown code fences some models wrap JSON in.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
