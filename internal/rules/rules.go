// Package rules holds the data-driven rule tables of the deterministic
// engine: symptom weight tables, analysis bonus rules, combination weights,
// the category/disease registry, treatments and medication triggers.
package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/meddiag-engine/internal/domain"
)

// WeightTable maps a normalized symptom name to its contribution weight.
type WeightTable map[string]float64

// TotalWeight is the sum of every weight in the table. It is the
// normalization base of the symptom axis and is recomputed on each call.
func (w WeightTable) TotalWeight() float64 {
	total := 0.0
	for _, weight := range w {
		total += weight
	}
	return total
}

// Weight returns the weight of a symptom name, normalizing it first.
func (w WeightTable) Weight(name string) (float64, bool) {
	weight, ok := w[domain.NormalizeName(name)]
	return weight, ok
}

func (w WeightTable) normalized() WeightTable {
	out := make(WeightTable, len(w))
	for name, weight := range w {
		out[domain.NormalizeName(name)] += weight
	}
	return out
}

// MatchMode selects how an analysis rule matches analysis names.
type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchContains MatchMode = "contains"
)

// Condition is the test an analysis result must pass for a rule to fire.
type Condition string

const (
	// ConditionEquals fires when the textual result equals one of Values.
	ConditionEquals Condition = "equals"
	// ConditionAbove fires when the numeric result is strictly above Threshold.
	ConditionAbove Condition = "above"
	// ConditionBelow fires when the numeric result is strictly below Threshold.
	ConditionBelow Condition = "below"
	// ConditionOutside fires when the numeric result is below Min or above Max.
	ConditionOutside Condition = "outside"
)

// AnalysisRule awards a flat number of points when an analysis matches.
type AnalysisRule struct {
	Name       string            `yaml:"name"`
	Match      MatchMode         `yaml:"match"`
	ResultType domain.ResultType `yaml:"result_type"`
	Condition  Condition         `yaml:"condition"`
	Values     []string          `yaml:"values,omitempty"`
	Threshold  float64           `yaml:"threshold,omitempty"`
	Min        float64           `yaml:"min,omitempty"`
	Max        float64           `yaml:"max,omitempty"`
	Points     float64           `yaml:"points"`
}

// Applies reports whether the rule fires for the analysis. Results that
// cannot be read as numbers never fire numeric conditions.
func (r AnalysisRule) Applies(a domain.Analysis) bool {
	if !r.matchesName(a.NormalizedName()) {
		return false
	}
	if r.ResultType != "" && a.ResultType != r.ResultType {
		return false
	}

	switch r.Condition {
	case ConditionEquals:
		got := domain.NormalizeName(a.Result.String())
		for _, want := range r.Values {
			if got == domain.NormalizeName(want) {
				return true
			}
		}
		return false
	case ConditionAbove, ConditionBelow, ConditionOutside:
		value, ok := a.Result.Float()
		if !ok {
			return false
		}
		return r.compare(value)
	default:
		return false
	}
}

func (r AnalysisRule) compare(value float64) bool {
	switch r.Condition {
	case ConditionAbove:
		return value > r.Threshold
	case ConditionBelow:
		return value < r.Threshold
	case ConditionOutside:
		return value < r.Min || value > r.Max
	}
	return false
}

func (r AnalysisRule) matchesName(name string) bool {
	want := domain.NormalizeName(r.Name)
	if r.Match == MatchContains {
		return strings.Contains(name, want)
	}
	return name == want
}

func (r AnalysisRule) validate(owner string, i int) error {
	field := fmt.Sprintf("%s.analyses[%d]", owner, i)
	if strings.TrimSpace(r.Name) == "" {
		return domain.NewValidationError(field+".name", "must not be empty", r.Name)
	}
	switch r.Match {
	case "", MatchExact, MatchContains:
	default:
		return domain.NewValidationError(field+".match", "must be exact or contains", r.Match)
	}
	if r.ResultType != "" {
		if err := r.ResultType.Validate(); err != nil {
			return domain.NewValidationError(field+".result_type", err.Error(), r.ResultType)
		}
	}
	switch r.Condition {
	case ConditionEquals:
		if len(r.Values) == 0 {
			return domain.NewValidationError(field+".values", "equals needs at least one value", r.Values)
		}
	case ConditionAbove, ConditionBelow:
		if !finite(r.Threshold) {
			return domain.NewValidationError(field+".threshold", "must be a finite number", r.Threshold)
		}
	case ConditionOutside:
		if !finite(r.Min) || !finite(r.Max) {
			return domain.NewValidationError(field+".min", "min and max must be finite numbers", r.Min)
		}
		if r.Min > r.Max {
			return domain.NewValidationError(field+".min", "must not exceed max", r.Min)
		}
	default:
		return domain.NewValidationError(field+".condition", "unknown condition", r.Condition)
	}
	if !finite(r.Points) || r.Points < 0 {
		return domain.NewValidationError(field+".points", "must be a finite, non-negative number", r.Points)
	}
	return nil
}

// CombinationWeights is the convex pair mixing the symptom and analysis axes.
type CombinationWeights struct {
	Symptoms float64 `yaml:"symptoms"`
	Analyses float64 `yaml:"analyses"`
}

const weightSumTolerance = 1e-9

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate checks that both weights are finite, non-negative and sum to 1.
func (c CombinationWeights) Validate() error {
	if !finite(c.Symptoms) || !finite(c.Analyses) {
		return fmt.Errorf("combination weights must be finite (%v/%v)", c.Symptoms, c.Analyses)
	}
	if c.Symptoms < 0 || c.Analyses < 0 {
		return fmt.Errorf("combination weights must not be negative (%.3f/%.3f)", c.Symptoms, c.Analyses)
	}
	if math.Abs(c.Symptoms+c.Analyses-1) > weightSumTolerance {
		return fmt.Errorf("combination weights must sum to 1 (%.3f+%.3f)", c.Symptoms, c.Analyses)
	}
	return nil
}

// ScoringRules is everything the generic scorer needs for one category or
// one disease.
type ScoringRules struct {
	Name          string             `yaml:"name"`
	Symptoms      WeightTable        `yaml:"symptoms"`
	AnalysisRules []AnalysisRule     `yaml:"analyses"`
	Combination   CombinationWeights `yaml:"combination"`
}

// Validate checks names, weights and analysis rules.
func (s ScoringRules) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return domain.NewValidationError("name", "must not be empty", s.Name)
	}
	for symptom, weight := range s.Symptoms {
		if domain.NormalizeName(symptom) == "" {
			return domain.NewValidationError(s.Name+".symptoms", "symptom name must not be blank", symptom)
		}
		if !finite(weight) || weight < 0 {
			return domain.NewValidationError(s.Name+".symptoms."+symptom, "weight must be a finite, non-negative number", weight)
		}
	}
	if err := s.Combination.Validate(); err != nil {
		return domain.NewValidationError(s.Name+".combination", err.Error(), s.Combination)
	}
	for i, rule := range s.AnalysisRules {
		if err := rule.validate(s.Name, i); err != nil {
			return err
		}
	}
	return nil
}

func (s ScoringRules) normalized() ScoringRules {
	out := s
	out.Name = strings.TrimSpace(s.Name)
	out.Symptoms = s.Symptoms.normalized()
	out.AnalysisRules = append([]AnalysisRule(nil), s.AnalysisRules...)
	return out
}

// CategoryRules describes a coarse disease grouping.
type CategoryRules struct {
	ScoringRules `yaml:",inline"`
}

// DiseaseRules describes one disease. ID is stable across calls.
type DiseaseRules struct {
	ID           int `yaml:"id"`
	ScoringRules `yaml:",inline"`
}
