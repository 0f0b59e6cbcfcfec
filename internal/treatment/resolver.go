// Package treatment maps a diagnosis name to its static treatment and posology.
package treatment

import (
	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/rules"
)

const (
	UndefinedTreatment = "Traitement non défini"
	UndefinedPosology  = "Posologie non définie"
)

// Undefined is returned for any disease missing from the table.
var Undefined = domain.Treatment{Treatment: UndefinedTreatment, Posology: UndefinedPosology}

// Resolver looks treatments up by case-insensitive disease name.
type Resolver struct {
	table map[string]domain.Treatment
}

// NewResolver indexes the treatment table. Later duplicates never reach here,
// the rule loader rejects them.
func NewResolver(entries []rules.TreatmentEntry) *Resolver {
	table := make(map[string]domain.Treatment, len(entries))
	for _, e := range entries {
		table[domain.NormalizeName(e.Disease)] = domain.Treatment{
			Treatment: e.Treatment,
			Posology:  e.Posology,
		}
	}
	return &Resolver{table: table}
}

// Resolve returns the treatment for the disease, or the undefined pair.
// The patient case is accepted for future rules and does not affect the result.
func (r *Resolver) Resolve(disease string, _ *domain.PatientCase) domain.Treatment {
	if t, ok := r.table[domain.NormalizeName(disease)]; ok {
		return t
	}
	return Undefined
}

// Known reports whether the disease has a defined treatment.
func (r *Resolver) Known(disease string) bool {
	_, ok := r.table[domain.NormalizeName(disease)]
	return ok
}
