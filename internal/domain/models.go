package domain

import "time"

// ScoreResult is one ranked disease estimate. Explanation is only filled by
// the AI path.
type ScoreResult struct {
	ID          int     `json:"id"`
	Disease     string  `json:"disease"`
	Probability float64 `json:"probability"`
	Explanation string  `json:"explanation,omitempty"`
}

// Treatment is the treatment/posology pair suggested for a diagnosis.
type Treatment struct {
	Treatment string `json:"treatment"`
	Posology  string `json:"posology"`
}

// TreatmentResponse is the body returned by /predict-treatment.
type TreatmentResponse struct {
	Diagnostic string `json:"diagnostic"`
	Treatment  string `json:"treatment"`
	Posology   string `json:"posology"`
}

// MedicationItem is a suggested or selected medication.
type MedicationItem struct {
	ID         int      `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Indication string   `json:"indication" yaml:"indication"`
	Dosage     string   `json:"dosage" yaml:"dosage"`
	Category   string   `json:"category" yaml:"category"`
	Cost       *float64 `json:"cost,omitempty" yaml:"cost,omitempty"`
	Selected   *bool    `json:"selected,omitempty" yaml:"-"`
}

// MedicationWarning describes one incompatibility between selected medications.
type MedicationWarning struct {
	MedicationIDs   []int    `json:"medication_ids"`
	MedicationNames []string `json:"medication_names"`
	Severity        Severity `json:"severity"`
	Reason          string   `json:"reason"`
	Recommendation  string   `json:"recommendation,omitempty"`
}

// CompatibilityResult is the outcome of a medication compatibility check.
type CompatibilityResult struct {
	Compatible bool                `json:"compatible"`
	Warnings   []MedicationWarning `json:"warnings"`
}

// CompatibleResult is the safe default returned when no check could run.
func CompatibleResult() CompatibilityResult {
	return CompatibilityResult{Compatible: true, Warnings: []MedicationWarning{}}
}

// AnalysisSuggestion is a further analysis worth ordering.
type AnalysisSuggestion struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Reason   string   `json:"reason"`
	Priority Priority `json:"priority"`
	Category string   `json:"category"`
}

// PrescriptionRequest is the body of /generate-prescription.
type PrescriptionRequest struct {
	PatientInfo *PatientInfo     `json:"patientInfo,omitempty"`
	Diagnostic  string           `json:"diagnostic"`
	Treatment   *Treatment       `json:"treatment,omitempty"`
	Medications []MedicationItem `json:"medications"`
}

// Prescription echoes the chosen diagnostic, treatment and medications.
type Prescription struct {
	ID           string           `json:"id"`
	IssuedAt     time.Time        `json:"issued_at"`
	PatientInfo  *PatientInfo     `json:"patientInfo,omitempty"`
	Diagnostic   string           `json:"diagnostic"`
	Treatment    *Treatment       `json:"treatment,omitempty"`
	Medications  []MedicationItem `json:"medications"`
	Instructions string           `json:"instructions"`
	Document     string           `json:"document,omitempty"`
}

// CompatibilityRequest is the body of /check-medication-compatibility.
type CompatibilityRequest struct {
	Medications    []MedicationItem     `json:"medications"`
	PatientInfo    *PatientInfo         `json:"patientInfo,omitempty"`
	MedicalHistory []MedicalHistoryItem `json:"medicalHistory,omitempty"`
}

// DiagnosisResponse is the body returned by /diagnostic.
type DiagnosisResponse struct {
	Diagnostics    []ScoreResult `json:"diagnostics"`
	Source         Source        `json:"source"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
}

// MedicationsResponse is the body returned by /suggest-medications.
type MedicationsResponse struct {
	Medications []MedicationItem `json:"medications"`
	Source      Source           `json:"source"`
}

// AnalysisSuggestionsResponse is the body returned by /suggest-analyses.
type AnalysisSuggestionsResponse struct {
	Suggestions []AnalysisSuggestion `json:"suggestions"`
}
