package health

import (
	"context"

	"github.com/meddiag-engine/internal/rules"
)

// RulesCheck reports whether a non-empty rule registry is loaded.
type RulesCheck struct {
	registry *rules.Registry
}

func NewRulesCheck(registry *rules.Registry) *RulesCheck {
	return &RulesCheck{registry: registry}
}

func (r *RulesCheck) Name() string { return "rules" }

func (r *RulesCheck) Check(context.Context) Component {
	if r.registry == nil || r.registry.Len() == 0 {
		return Component{Status: StateUnhealthy, Message: "no rule set loaded"}
	}
	return Component{
		Status: StateHealthy,
		Metadata: map[string]interface{}{
			"categories": r.registry.Len(),
			"diseases":   r.registry.DiseaseCount(),
		},
	}
}

// CachePinger is the part of the AI response cache the check needs.
type CachePinger interface {
	Ping(ctx context.Context) error
	HasRedis() bool
	Len() int
}

// CacheCheck pings the Redis tier. An unreachable Redis is a warning since
// the memory tier keeps serving.
type CacheCheck struct {
	cache CachePinger
}

func NewCacheCheck(cache CachePinger) *CacheCheck {
	return &CacheCheck{cache: cache}
}

func (c *CacheCheck) Name() string { return "cache" }

func (c *CacheCheck) Check(ctx context.Context) Component {
	meta := map[string]interface{}{
		"memory_entries": c.cache.Len(),
		"redis":          c.cache.HasRedis(),
	}
	if err := c.cache.Ping(ctx); err != nil {
		return Component{Status: StateWarning, Message: "redis unreachable", Error: err.Error(), Metadata: meta}
	}
	return Component{Status: StateHealthy, Metadata: meta}
}

// BreakerStatus exposes the AI client state.
type BreakerStatus interface {
	Model() string
	BreakerState() string
}

// AICheck reports the AI circuit breaker. A non-closed breaker is a warning:
// requests fall back to the deterministic engine.
type AICheck struct {
	client BreakerStatus
}

func NewAICheck(client BreakerStatus) *AICheck {
	return &AICheck{client: client}
}

func (a *AICheck) Name() string { return "ai" }

func (a *AICheck) Check(context.Context) Component {
	state := a.client.BreakerState()
	c := Component{
		Status: StateHealthy,
		Metadata: map[string]interface{}{
			"model":   a.client.Model(),
			"breaker": state,
		},
	}
	if state != "closed" {
		c.Status = StateWarning
		c.Message = "circuit breaker " + state + ", using deterministic fallback"
	}
	return c
}
