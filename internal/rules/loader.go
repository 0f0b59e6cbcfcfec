package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meddiag-engine/internal/domain"
)

//go:embed default_rules.yaml
var defaultRules []byte

type fileCategory struct {
	CategoryRules `yaml:",inline"`
	Diseases      []DiseaseRules `yaml:"diseases"`
}

type ruleFile struct {
	Categories  []fileCategory   `yaml:"categories"`
	Treatments  []TreatmentEntry `yaml:"treatments"`
	Medications []MedicationRule `yaml:"medications"`
}

// Default returns the embedded rule set.
func Default() (*RuleSet, error) {
	return Load(bytes.NewReader(defaultRules))
}

// LoadFile reads a rule set from a YAML file.
func LoadFile(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule set: %w", err)
	}
	defer f.Close()

	rs, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("rule set %s: %w", path, err)
	}
	return rs, nil
}

// LoadOrDefault reads path when it is set and falls back to the embedded set.
func LoadOrDefault(path string) (*RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	return LoadFile(path)
}

// Load decodes and validates a YAML rule set. Categories and diseases are
// registered in file order.
func Load(r io.Reader) (*RuleSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file ruleFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode rule set: %w", err)
	}

	registry := NewRegistry()
	for _, c := range file.Categories {
		if err := registry.RegisterCategory(c.CategoryRules); err != nil {
			return nil, err
		}
		for _, d := range c.Diseases {
			if err := registry.RegisterDisease(c.Name, d); err != nil {
				return nil, err
			}
		}
	}

	seen := make(map[string]bool, len(file.Treatments))
	for i, t := range file.Treatments {
		key := domain.NormalizeName(t.Disease)
		if key == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("treatments[%d].disease", i), "must not be empty", t.Disease)
		}
		if seen[key] {
			return nil, domain.NewValidationError(fmt.Sprintf("treatments[%d].disease", i), "duplicate disease", t.Disease)
		}
		seen[key] = true
	}

	for i, m := range file.Medications {
		if err := m.validate(i); err != nil {
			return nil, err
		}
	}

	return &RuleSet{
		Registry:    registry,
		Treatments:  file.Treatments,
		Medications: file.Medications,
	}, nil
}
