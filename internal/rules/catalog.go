package rules

import (
	"fmt"
	"strings"

	"github.com/meddiag-engine/internal/domain"
)

// TreatmentEntry is the static treatment/posology pair of one disease.
type TreatmentEntry struct {
	Disease   string `yaml:"disease"`
	Treatment string `yaml:"treatment"`
	Posology  string `yaml:"posology"`
}

// MedicationRule appends one medication when triggered. A rule is keyed
// either on symptom vocabulary or on an analysis crossing its own declared
// threshold, never both.
type MedicationRule struct {
	Symptoms   []string              `yaml:"symptoms,omitempty"`
	Analysis   string                `yaml:"analysis,omitempty"`
	Direction  Condition             `yaml:"direction,omitempty"`
	Medication domain.MedicationItem `yaml:"medication"`
}

func (m MedicationRule) validate(i int) error {
	field := fmt.Sprintf("medications[%d]", i)
	hasSymptoms := len(m.Symptoms) > 0
	hasAnalysis := strings.TrimSpace(m.Analysis) != ""
	if hasSymptoms == hasAnalysis {
		return domain.NewValidationError(field, "exactly one of symptoms or analysis must be set", m)
	}
	for j, term := range m.Symptoms {
		if domain.NormalizeName(term) == "" {
			return domain.NewValidationError(fmt.Sprintf("%s.symptoms[%d]", field, j), "must not be blank", term)
		}
	}
	if hasAnalysis && m.Direction != ConditionBelow && m.Direction != ConditionAbove {
		return domain.NewValidationError(field+".direction", "must be below or above", m.Direction)
	}
	if strings.TrimSpace(m.Medication.Name) == "" {
		return domain.NewValidationError(field+".medication.name", "must not be empty", m.Medication.Name)
	}
	return nil
}

// RuleSet bundles every table used by the deterministic services.
type RuleSet struct {
	Registry    *Registry
	Treatments  []TreatmentEntry
	Medications []MedicationRule
}
