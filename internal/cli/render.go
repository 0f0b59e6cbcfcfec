package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/rules"
	"github.com/meddiag-engine/internal/scoring"
)

var (
	accent  = lipgloss.Color("#0EA5E9")
	dim     = lipgloss.Color("#6B7280")
	success = lipgloss.Color("#22C55E")
	warning = lipgloss.Color("#F59E0B")
	danger  = lipgloss.Color("#EF4444")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
	nameStyle = lipgloss.NewStyle().Bold(true).Width(28)
	dimStyle  = lipgloss.NewStyle().Foreground(dim)
	openStyle = lipgloss.NewStyle().Foreground(success)
	shutStyle = lipgloss.NewStyle().Foreground(dim)
	errStyle  = lipgloss.NewStyle().Foreground(danger).Bold(true)
)

const barWidth = 20

func probabilityColor(p float64) lipgloss.Color {
	switch {
	case p >= 60:
		return danger
	case p >= 30:
		return warning
	default:
		return success
	}
}

func bar(p float64) string {
	filled := int(p / 100 * barWidth)
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return lipgloss.NewStyle().Foreground(probabilityColor(p)).Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", barWidth-filled))
}

// renderDiagnosis prints the ranked diseases. The cascade order is kept in
// the data; the display sorts by probability.
func renderDiagnosis(results []domain.ScoreResult, top *domain.TreatmentResponse) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Diagnostic"))
	b.WriteString("\n\n")

	if len(results) == 0 {
		b.WriteString(dimStyle.Render("  No category crossed the gate threshold."))
		b.WriteString("\n")
		return b.String()
	}

	sorted := append([]domain.ScoreResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Probability > sorted[j].Probability })

	for _, r := range sorted {
		fmt.Fprintf(&b, "  %s %s %6.2f%%\n", nameStyle.Render(r.Disease), bar(r.Probability), r.Probability)
	}

	if top != nil {
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(fmt.Sprintf("%s\nTraitement: %s\nPosologie:  %s",
			titleStyle.Render(top.Diagnostic), top.Treatment, top.Posology)))
		b.WriteString("\n")
	}
	return b.String()
}

func renderExplain(traces []scoring.CategoryTrace, gate float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", titleStyle.Render("Cascade"), dimStyle.Render(fmt.Sprintf("(gate > %.2f)", gate)))

	for _, ct := range traces {
		state := shutStyle.Render("closed")
		if ct.Open {
			state = openStyle.Render("open")
		}
		if ct.Err != "" {
			state = errStyle.Render("error: " + ct.Err)
		}
		fmt.Fprintf(&b, "  %s %6.2f  %s\n", nameStyle.Render(ct.Category), ct.Breakdown.Final, state)
		if len(ct.Breakdown.MatchedSymptoms) > 0 {
			fmt.Fprintf(&b, "    %s\n", dimStyle.Render("symptoms: "+strings.Join(ct.Breakdown.MatchedSymptoms, ", ")))
		}
		for _, dt := range ct.Diseases {
			if dt.Err != "" {
				fmt.Fprintf(&b, "    %s %s\n", dt.Disease, errStyle.Render("error: "+dt.Err))
				continue
			}
			fmt.Fprintf(&b, "    %-26s %6.2f  %s\n", dt.Disease, dt.Breakdown.Final,
				dimStyle.Render(fmt.Sprintf("sym %.1f / ana %.1f / jitter %+.2f",
					dt.Breakdown.SymptomScore, dt.Breakdown.AnalysisScore, dt.Breakdown.Jitter)))
		}
	}
	return b.String()
}

func renderMedications(meds []domain.MedicationItem) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Médicaments suggérés"))
	b.WriteString("\n\n")
	if len(meds) == 0 {
		b.WriteString(dimStyle.Render("  Aucun médicament suggéré."))
		b.WriteString("\n")
		return b.String()
	}
	for _, m := range meds {
		fmt.Fprintf(&b, "  %s %s\n", nameStyle.Render(m.Name), m.Dosage)
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render(fmt.Sprintf("%s · %s", m.Category, m.Indication)))
	}
	return b.String()
}

func renderTreatment(t domain.TreatmentResponse) string {
	return boxStyle.Render(fmt.Sprintf("%s\nTraitement: %s\nPosologie:  %s",
		titleStyle.Render(t.Diagnostic), t.Treatment, t.Posology)) + "\n"
}

func renderRules(rs *rules.RuleSet, source string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", titleStyle.Render("Rule set"), dimStyle.Render(source))

	for _, gate := range rs.Registry.Gates() {
		fmt.Fprintf(&b, "  %s %s\n", nameStyle.Render(gate.Category.Name),
			dimStyle.Render(fmt.Sprintf("%d symptoms, %d analysis rules, %d diseases",
				len(gate.Category.Symptoms), len(gate.Category.AnalysisRules), len(gate.Diseases))))
		for _, d := range gate.Diseases {
			fmt.Fprintf(&b, "    #%-3d %s\n", d.ID, d.Name)
		}
	}
	fmt.Fprintf(&b, "\n  %s\n", dimStyle.Render(fmt.Sprintf("%d treatments, %d medication rules",
		len(rs.Treatments), len(rs.Medications))))
	return b.String()
}
