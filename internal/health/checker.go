// Package health runs component checks for the /health endpoint.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State string

const (
	StateHealthy   State = "healthy"
	StateWarning   State = "warning"
	StateUnhealthy State = "unhealthy"
)

// Component is the outcome of one check.
type Component struct {
	Name       string                 `json:"name"`
	Status     State                  `json:"status"`
	Message    string                 `json:"message,omitempty"`
	DurationMS float64                `json:"duration_ms"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// Status aggregates every component.
type Status struct {
	Overall    State                `json:"status"`
	Timestamp  time.Time            `json:"timestamp"`
	Version    string               `json:"version"`
	Uptime     string               `json:"uptime"`
	Components map[string]Component `json:"components"`
}

// Check is one component probe.
type Check interface {
	Name() string
	Check(ctx context.Context) Component
}

// Checker runs its checks in parallel on demand.
type Checker struct {
	checks  []Check
	timeout time.Duration
	version string
	started time.Time
	logger  *logrus.Logger
}

// NewChecker creates a checker. A zero timeout defaults to 5s.
func NewChecker(logger *logrus.Logger, version string, timeout time.Duration, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Checker{
		checks:  checks,
		timeout: timeout,
		version: version,
		started: time.Now(),
		logger:  logger,
	}
}

// Register adds a check.
func (h *Checker) Register(check Check) {
	h.checks = append(h.checks, check)
}

// Run executes every check and derives the overall state: any unhealthy
// component makes the whole unhealthy, any warning downgrades to warning.
func (h *Checker) Run(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(chan Component, len(h.checks))
	var wg sync.WaitGroup
	for _, check := range h.checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()
			start := time.Now()
			result := c.Check(ctx)
			result.Name = c.Name()
			result.DurationMS = float64(time.Since(start).Microseconds()) / 1000
			results <- result
		}(check)
	}
	wg.Wait()
	close(results)

	status := Status{
		Overall:    StateHealthy,
		Timestamp:  time.Now().UTC(),
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Components: make(map[string]Component, len(h.checks)),
	}
	var degraded []string
	for result := range results {
		status.Components[result.Name] = result
		switch result.Status {
		case StateUnhealthy:
			status.Overall = StateUnhealthy
			degraded = append(degraded, result.Name)
		case StateWarning:
			if status.Overall == StateHealthy {
				status.Overall = StateWarning
			}
			degraded = append(degraded, result.Name)
		}
	}

	if len(degraded) > 0 {
		sort.Strings(degraded)
		h.logger.WithFields(logrus.Fields{
			"overall_status": status.Overall,
			"components":     degraded,
		}).Warn("Health check completed with issues")
	}
	return status
}
