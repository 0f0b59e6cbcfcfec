package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meddiag-engine/internal/domain"
)

const (
	OpDiagnose      = "diagnose"
	OpCompatibility = "compatibility"
	OpAnalyses      = "analyses"
)

// Diagnosis is the model's ranked diagnostics with the medications it
// suggests for them.
type Diagnosis struct {
	Diagnostics []domain.ScoreResult    `json:"diagnostics"`
	Medications []domain.MedicationItem `json:"medications"`
}

type suggestionsEnvelope struct {
	Suggestions []domain.AnalysisSuggestion `json:"suggestions"`
}

// PredictDiagnostics asks the model for diagnostics and medications. Analysis
// photos are attached as inline images.
func (c *Client) PredictDiagnostics(ctx context.Context, pc *domain.PatientCase) Result[Diagnosis] {
	if pc == nil {
		pc = &domain.PatientCase{}
	}
	prompt, err := diagnosePrompt(pc, c.now())
	if err != nil {
		return fail[Diagnosis](newError(OpDiagnose, KindSchema, err))
	}

	images, imgErrs := analysisImages(pc.Analyses)
	for _, e := range imgErrs {
		c.logger.WithError(e).Warn("Skipping unreadable analysis photo")
	}

	doc, aiErr := c.generate(ctx, generation{
		op:          OpDiagnose,
		prompt:      prompt,
		images:      images,
		schema:      diagnosisSchema,
		temperature: c.temperature,
		topP:        0.8,
	})
	if aiErr != nil {
		return fail[Diagnosis](aiErr)
	}

	var d Diagnosis
	if err := decode(doc, &d); err != nil {
		return fail[Diagnosis](newError(OpDiagnose, KindSchema, err))
	}
	if d.Diagnostics == nil {
		d.Diagnostics = []domain.ScoreResult{}
	}
	if d.Medications == nil {
		d.Medications = []domain.MedicationItem{}
	}
	return ok(d)
}

// CheckCompatibility asks the model for interactions between medications.
func (c *Client) CheckCompatibility(ctx context.Context, meds []domain.MedicationItem, info *domain.PatientInfo, history []domain.MedicalHistoryItem) Result[domain.CompatibilityResult] {
	prompt, err := compatibilityPrompt(meds, info, history)
	if err != nil {
		return fail[domain.CompatibilityResult](newError(OpCompatibility, KindSchema, err))
	}

	doc, aiErr := c.generate(ctx, generation{
		op:          OpCompatibility,
		prompt:      prompt,
		schema:      compatibilitySchema,
		temperature: 0.2,
		topP:        0.8,
	})
	if aiErr != nil {
		return fail[domain.CompatibilityResult](aiErr)
	}

	var r domain.CompatibilityResult
	if err := decode(doc, &r); err != nil {
		return fail[domain.CompatibilityResult](newError(OpCompatibility, KindSchema, err))
	}
	if r.Warnings == nil {
		r.Warnings = []domain.MedicationWarning{}
	}
	return ok(r)
}

// SuggestAnalyses asks the model which analyses would help the diagnosis.
func (c *Client) SuggestAnalyses(ctx context.Context, symptoms []domain.Symptom, history []domain.MedicalHistoryItem, info *domain.PatientInfo) Result[[]domain.AnalysisSuggestion] {
	prompt, err := analysesPrompt(symptoms, history, info)
	if err != nil {
		return fail[[]domain.AnalysisSuggestion](newError(OpAnalyses, KindSchema, err))
	}

	doc, aiErr := c.generate(ctx, generation{
		op:          OpAnalyses,
		prompt:      prompt,
		schema:      suggestionsSchema,
		temperature: 0.3,
		topP:        0.85,
	})
	if aiErr != nil {
		return fail[[]domain.AnalysisSuggestion](aiErr)
	}

	var env suggestionsEnvelope
	if err := decode(doc, &env); err != nil {
		return fail[[]domain.AnalysisSuggestion](newError(OpAnalyses, KindSchema, err))
	}
	if env.Suggestions == nil {
		env.Suggestions = []domain.AnalysisSuggestion{}
	}
	return ok(env.Suggestions)
}

func decode(doc string, v interface{}) error {
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
