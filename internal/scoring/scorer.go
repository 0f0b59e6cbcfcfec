// Package scoring implements the deterministic engine: one generic
// weighted scorer shared by categories and diseases, and the threshold-gated
// cascade that runs disease scorers only for open categories.
package scoring

import (
	"math"

	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/rules"
)

const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Breakdown details how a score was obtained.
type Breakdown struct {
	SymptomScore    float64  `json:"symptom_score"`
	AnalysisScore   float64  `json:"analysis_score"`
	Combined        float64  `json:"combined"`
	Jitter          float64  `json:"jitter"`
	Final           float64  `json:"final"`
	MatchedSymptoms []string `json:"matched_symptoms,omitempty"`
	FiredRules      []string `json:"fired_rules,omitempty"`
}

// Score returns the clamped [0,100] score of one category or disease.
func Score(r rules.ScoringRules, symptoms []domain.Symptom, analyses []domain.Analysis, jitter Jitter) float64 {
	return Evaluate(r, symptoms, analyses, jitter).Final
}

// Evaluate computes the score and keeps the intermediate values.
//
// The symptom axis is the sum of matched weights over the table's total
// weight, scaled to 100. The analysis axis is the sum of points of every
// firing analysis rule. Both are mixed with the rule's combination weights,
// perturbed by one jitter sample and clamped.
func Evaluate(r rules.ScoringRules, symptoms []domain.Symptom, analyses []domain.Analysis, jitter Jitter) Breakdown {
	var b Breakdown

	local := 0.0
	for _, s := range symptoms {
		if w, ok := r.Symptoms.Weight(s.Name); ok {
			local += w
			b.MatchedSymptoms = append(b.MatchedSymptoms, s.NormalizedName())
		}
	}
	if total := r.Symptoms.TotalWeight(); total > 0 {
		b.SymptomScore = local / total * 100
	}

	for _, a := range analyses {
		for _, rule := range r.AnalysisRules {
			if rule.Applies(a) {
				b.AnalysisScore += rule.Points
				b.FiredRules = append(b.FiredRules, rule.Name)
			}
		}
	}

	b.Combined = r.Combination.Symptoms*b.SymptomScore + r.Combination.Analyses*b.AnalysisScore
	if jitter != nil {
		b.Jitter = jitter.Sample()
	}
	b.Final = clamp(b.Combined + b.Jitter)
	return b
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return MinScore
	case v < MinScore:
		return MinScore
	case v > MaxScore:
		return MaxScore
	default:
		return v
	}
}
