package scoring

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"

	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/rules"
)

const (
	// DefaultGateThreshold is the category score a category must strictly
	// exceed before its diseases are scored.
	DefaultGateThreshold = 30.0
	// DefaultJitterAmplitude is the half-width of the score perturbation.
	DefaultJitterAmplitude = 5.0
)

var ErrNoRegistry = errors.New("scoring engine has no rule registry")

// DiseaseTrace is the outcome of one disease scorer.
type DiseaseTrace struct {
	ID        int       `json:"id"`
	Disease   string    `json:"disease"`
	Breakdown Breakdown `json:"breakdown"`
	Err       string    `json:"error,omitempty"`
}

// CategoryTrace is the outcome of one category scorer and its gate.
type CategoryTrace struct {
	Category  string         `json:"category"`
	Breakdown Breakdown      `json:"breakdown"`
	Open      bool           `json:"open"`
	Diseases  []DiseaseTrace `json:"diseases,omitempty"`
	Err       string         `json:"error,omitempty"`
}

// Engine runs the category → disease cascade.
type Engine struct {
	registry *rules.Registry
	gate     float64
	jitter   Jitter
	logger   *logrus.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithGateThreshold overrides the default gate of 30.
func WithGateThreshold(threshold float64) Option {
	return func(e *Engine) { e.gate = threshold }
}

// WithJitter injects the perturbation source, typically a seeded or fixed one in tests.
func WithJitter(j Jitter) Option {
	return func(e *Engine) { e.jitter = j }
}

// NewEngine creates a cascade engine over the registry
func NewEngine(registry *rules.Registry, logger *logrus.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		gate:     DefaultGateThreshold,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.jitter == nil {
		e.jitter = NewUniformJitter(DefaultJitterAmplitude, 0)
	}
	if e.logger == nil {
		e.logger = logrus.New()
	}
	return e
}

// NewEngineFromConfig builds an engine using the scoring section of the configuration
func NewEngineFromConfig(registry *rules.Registry, cfg domain.ScoringConfig, logger *logrus.Logger) *Engine {
	return NewEngine(registry, logger,
		WithGateThreshold(cfg.GateThreshold),
		WithJitter(NewUniformJitter(cfg.JitterAmplitude, cfg.Seed)),
	)
}

// GateThreshold returns the configured gate.
func (e *Engine) GateThreshold() float64 {
	return e.gate
}

// Registry returns the rule registry the engine scores against.
func (e *Engine) Registry() *rules.Registry {
	return e.registry
}

// PredictDiseaseScores returns {id, disease, probability} for every disease of
// every open category, in registration order. Probabilities are rounded to
// two decimals. Medical history and recent diseases are accepted but do not
// influence any table.
func (e *Engine) PredictDiseaseScores(ctx context.Context, pc *domain.PatientCase) ([]domain.ScoreResult, error) {
	traces, err := e.Explain(ctx, pc)
	if err != nil {
		return nil, err
	}

	results := make([]domain.ScoreResult, 0)
	for _, ct := range traces {
		for _, dt := range ct.Diseases {
			if dt.Err != "" {
				continue
			}
			results = append(results, domain.ScoreResult{
				ID:          dt.ID,
				Disease:     dt.Disease,
				Probability: round2(dt.Breakdown.Final),
			})
		}
	}

	e.logger.WithFields(logrus.Fields{
		"categories": len(traces),
		"diseases":   len(results),
	}).Debug("Deterministic cascade completed")

	return results, nil
}

// Explain runs the cascade and returns the full per-category trace.
// A scorer failing on one category or disease is logged and skipped.
func (e *Engine) Explain(ctx context.Context, pc *domain.PatientCase) ([]CategoryTrace, error) {
	if e.registry == nil {
		return nil, ErrNoRegistry
	}
	if pc == nil {
		pc = &domain.PatientCase{}
	}

	gates := e.registry.Gates()
	traces := make([]CategoryTrace, 0, len(gates))

	for _, gate := range gates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cascade interrupted: %w", err)
		}

		ct := CategoryTrace{Category: gate.Category.Name}
		b, err := e.safeEvaluate(gate.Category.ScoringRules, pc)
		if err != nil {
			e.logger.WithError(err).WithField("category", gate.Category.Name).Warn("Category scorer failed, skipping category")
			ct.Err = err.Error()
			traces = append(traces, ct)
			continue
		}
		ct.Breakdown = b
		ct.Open = b.Final > e.gate

		e.logger.WithFields(logrus.Fields{
			"category": gate.Category.Name,
			"score":    b.Final,
			"gate":     e.gate,
			"open":     ct.Open,
		}).Debug("Category scored")

		if ct.Open {
			for _, disease := range gate.Diseases {
				dt := DiseaseTrace{ID: disease.ID, Disease: disease.Name}
				db, err := e.safeEvaluate(disease.ScoringRules, pc)
				if err != nil {
					e.logger.WithError(err).WithFields(logrus.Fields{
						"category": gate.Category.Name,
						"disease":  disease.Name,
					}).Warn("Disease scorer failed, skipping disease")
					dt.Err = err.Error()
				} else {
					dt.Breakdown = db
				}
				ct.Diseases = append(ct.Diseases, dt)
			}
		}
		traces = append(traces, ct)
	}

	return traces, nil
}

func (e *Engine) safeEvaluate(r rules.ScoringRules, pc *domain.PatientCase) (b Breakdown, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.WithField("stack", string(debug.Stack())).Debug("Recovered scorer panic")
			err = fmt.Errorf("scorer %q panicked: %v", r.Name, rec)
		}
	}()
	return Evaluate(r, pc.Symptoms, pc.Analyses, e.jitter), nil
}

func round2(v float64) float64 {
	rounded, err := stats.Round(v, 2)
	if err != nil {
		return v
	}
	return rounded
}
