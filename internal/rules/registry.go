package rules

import (
	"fmt"
	"strings"
	"sync"
)

// CategoryGate is a registered category together with the diseases it gates,
// in registration order.
type CategoryGate struct {
	Category CategoryRules
	Diseases []DiseaseRules
}

// Registry keeps categories and their diseases in registration order.
// Registration is expected at startup; reads are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	gates      []*CategoryGate
	index      map[string]int
	diseaseIDs map[int]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		index:      make(map[string]int),
		diseaseIDs: make(map[int]string),
	}
}

// RegisterCategory appends a category. Names are unique case-insensitively.
func (r *Registry) RegisterCategory(c CategoryRules) error {
	c.ScoringRules = c.ScoringRules.normalized()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid category: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(c.Name)
	if _, exists := r.index[key]; exists {
		return fmt.Errorf("category %q already registered", c.Name)
	}
	r.index[key] = len(r.gates)
	r.gates = append(r.gates, &CategoryGate{Category: c})
	return nil
}

// RegisterDisease appends a disease under an already registered category.
// Disease ids are unique across the registry.
func (r *Registry) RegisterDisease(category string, d DiseaseRules) error {
	d.ScoringRules = d.ScoringRules.normalized()
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid disease: %w", err)
	}
	if d.ID <= 0 {
		return fmt.Errorf("disease %q: id must be positive", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return fmt.Errorf("disease %q: unknown category %q", d.Name, category)
	}
	if owner, taken := r.diseaseIDs[d.ID]; taken {
		return fmt.Errorf("disease %q: id %d already used by %q", d.Name, d.ID, owner)
	}
	r.diseaseIDs[d.ID] = d.Name
	r.gates[pos].Diseases = append(r.gates[pos].Diseases, d)
	return nil
}

// Gates returns a snapshot of the registered categories in order.
func (r *Registry) Gates() []CategoryGate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]CategoryGate, len(r.gates))
	for i, g := range r.gates {
		out[i] = CategoryGate{
			Category: g.Category,
			Diseases: append([]DiseaseRules(nil), g.Diseases...),
		}
	}
	return out
}

// Len returns the number of registered categories.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gates)
}

// DiseaseCount returns the number of registered diseases.
func (r *Registry) DiseaseCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.diseaseIDs)
}
