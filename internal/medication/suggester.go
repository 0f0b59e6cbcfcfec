// Package medication suggests medications from symptom vocabulary and
// out-of-range analyses.
package medication

import (
	"strings"

	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/rules"
)

// Suggester evaluates medication rules in order.
type Suggester struct {
	rules []rules.MedicationRule
}

func NewSuggester(medicationRules []rules.MedicationRule) *Suggester {
	normalized := make([]rules.MedicationRule, len(medicationRules))
	for i, r := range medicationRules {
		terms := make([]string, 0, len(r.Symptoms))
		for _, s := range r.Symptoms {
			terms = append(terms, domain.NormalizeName(s))
		}
		r.Symptoms = terms
		r.Analysis = domain.NormalizeName(r.Analysis)
		normalized[i] = r
	}
	return &Suggester{rules: normalized}
}

// Suggest returns one medication per triggered rule, deduplicated by name
// with the first occurrence kept. The result is never nil.
func (s *Suggester) Suggest(symptoms []domain.Symptom, analyses []domain.Analysis) []domain.MedicationItem {
	names := make([]string, 0, len(symptoms))
	for _, sym := range symptoms {
		names = append(names, sym.NormalizedName())
	}

	out := make([]domain.MedicationItem, 0)
	seen := make(map[string]bool)
	for _, rule := range s.rules {
		if !triggered(rule, names, analyses) {
			continue
		}
		key := domain.NormalizeName(rule.Medication.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rule.Medication)
	}
	return out
}

func triggered(rule rules.MedicationRule, symptomNames []string, analyses []domain.Analysis) bool {
	if len(rule.Symptoms) > 0 {
		for _, name := range symptomNames {
			for _, term := range rule.Symptoms {
				if strings.Contains(name, term) {
					return true
				}
			}
		}
		return false
	}

	for _, a := range analyses {
		if !strings.Contains(a.NormalizedName(), rule.Analysis) {
			continue
		}
		value, ok := a.Result.Float()
		if !ok || a.Threshold == nil {
			continue
		}
		switch rule.Direction {
		case rules.ConditionBelow:
			if value < *a.Threshold {
				return true
			}
		case rules.ConditionAbove:
			if value > *a.Threshold {
				return true
			}
		}
	}
	return false
}
