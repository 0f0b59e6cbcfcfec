package ai

import (
	"embed"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/meddiag-engine/internal/domain"
)

//go:embed prompts/*.txt
var promptFS embed.FS

const notSpecified = "Non spécifié"

// renderPrompt loads an embedded template and substitutes {placeholder} keys.
func renderPrompt(name string, replacements map[string]string) (string, error) {
	content, err := promptFS.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("prompt template not found: %s", name)
	}
	result := string(content)
	for key, value := range replacements {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result, nil
}

// Season describes the Abidjan season for the given date. May through
// October is the rainy season.
func Season(now time.Time) string {
	if m := now.Month(); m >= time.May && m <= time.October {
		return "Saison des pluies (mai-octobre), forte activité des moustiques, risque accru de paludisme et de dengue"
	}
	return "Saison sèche (novembre-avril), activité vectorielle réduite"
}

func patientFields(info *domain.PatientInfo) (age, gender string) {
	age, gender = notSpecified, notSpecified
	if info == nil {
		return
	}
	if info.Age != nil {
		age = fmt.Sprintf("%d ans", *info.Age)
	}
	if strings.TrimSpace(info.Gender) != "" {
		gender = info.Gender
	}
	return
}

func formatDetails(details []domain.Detail) string {
	parts := make([]string, 0, len(details))
	for _, d := range details {
		if d.Selected != "" {
			parts = append(parts, d.Name+": "+d.Selected)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func formatSymptoms(symptoms []domain.Symptom, withDetails bool) string {
	if len(symptoms) == 0 {
		return "Aucun symptôme rapporté"
	}
	lines := make([]string, 0, len(symptoms))
	for _, s := range symptoms {
		line := "- " + s.Name
		if withDetails {
			line += formatDetails(s.Details)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatAnalyses(analyses []domain.Analysis) string {
	if len(analyses) == 0 {
		return "Aucune analyse disponible"
	}
	lines := make([]string, 0, len(analyses))
	for _, a := range analyses {
		value := a.Result.String()
		if value == "" {
			value = notSpecified
		}
		line := fmt.Sprintf("- %s: %s", a.Name, value)
		if a.Unit != "" {
			line += " " + a.Unit
		}
		if a.Photo != "" {
			line += " (avec photo d'analyse)"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatHistory(history []domain.MedicalHistoryItem) string {
	if len(history) == 0 {
		return "Aucun antécédent signalé"
	}
	lines := make([]string, 0, len(history))
	for _, h := range history {
		lines = append(lines, "- "+h.Name+formatDetails(h.Details))
	}
	return strings.Join(lines, "\n")
}

func formatRecentDiseases(recent []domain.RecentDisease) string {
	if len(recent) == 0 {
		return "Aucune maladie récente"
	}
	lines := make([]string, 0, len(recent))
	for _, r := range recent {
		lines = append(lines, fmt.Sprintf("- %s (%s)", r.Name, r.Date.String()))
	}
	return strings.Join(lines, "\n")
}

func formatMedications(meds []domain.MedicationItem) string {
	lines := make([]string, 0, len(meds))
	for _, m := range meds {
		lines = append(lines, fmt.Sprintf("- %s (ID: %d)\n  Catégorie: %s\n  Indication: %s\n  Posologie: %s",
			m.Name, m.ID, m.Category, m.Indication, m.Dosage))
	}
	return strings.Join(lines, "\n")
}

func diagnosePrompt(pc *domain.PatientCase, now time.Time) (string, error) {
	age, gender := patientFields(pc.PatientInfo)
	return renderPrompt("diagnose", map[string]string{
		"season":          Season(now),
		"age":             age,
		"gender":          gender,
		"history":         formatHistory(pc.MedicalHistory),
		"recent_diseases": formatRecentDiseases(pc.RecentDiseases),
		"symptoms":        formatSymptoms(pc.Symptoms, true),
		"analyses":        formatAnalyses(pc.Analyses),
	})
}

func compatibilityPrompt(meds []domain.MedicationItem, info *domain.PatientInfo, history []domain.MedicalHistoryItem) (string, error) {
	age, gender := patientFields(info)
	historyText := "Aucun"
	if len(history) > 0 {
		historyText = formatHistory(history)
	}
	return renderPrompt("compatibility", map[string]string{
		"age":         age,
		"gender":      gender,
		"history":     historyText,
		"medications": formatMedications(meds),
	})
}

func analysesPrompt(symptoms []domain.Symptom, history []domain.MedicalHistoryItem, info *domain.PatientInfo) (string, error) {
	age, gender := patientFields(info)
	historyText := "Aucun"
	if len(history) > 0 {
		historyText = formatHistory(history)
	}
	return renderPrompt("analyses", map[string]string{
		"age":      age,
		"gender":   gender,
		"symptoms": formatSymptoms(symptoms, false),
		"history":  historyText,
	})
}

// imagePart is an analysis photo forwarded inline to the model.
type imagePart struct {
	Analysis string
	MimeType string
	Data     string
}

// analysisImages extracts valid base64 photos. Data URLs keep their declared
// mime type, bare payloads are sent as JPEG.
func analysisImages(analyses []domain.Analysis) ([]imagePart, []error) {
	var (
		parts []imagePart
		errs  []error
	)
	for _, a := range analyses {
		if a.Photo == "" {
			continue
		}
		mime, payload := "image/jpeg", a.Photo
		if header, data, found := strings.Cut(a.Photo, ","); found {
			payload = data
			if m, ok := strings.CutPrefix(header, "data:"); ok {
				if m, _, _ = strings.Cut(m, ";"); m != "" {
					mime = m
				}
			}
		}
		if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
			errs = append(errs, fmt.Errorf("analysis %q photo: %w", a.Name, err))
			continue
		}
		parts = append(parts, imagePart{Analysis: a.Name, MimeType: mime, Data: payload})
	}
	return parts, errs
}
