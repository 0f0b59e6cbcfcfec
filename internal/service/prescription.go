package service

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/google/uuid"

	"github.com/meddiag-engine/internal/domain"
)

// PrescriptionInstructions is attached to every generated prescription.
const PrescriptionInstructions = "Respecter scrupuleusement les posologies indiquées. " +
	"Consulter un médecin en cas d'aggravation des symptômes ou d'effets indésirables."

var ErrMissingDiagnostic = domain.NewValidationError("diagnostic", "must not be empty", "")

// GeneratePrescription echoes the chosen diagnostic, treatment and
// medications. The treatment is resolved from the table when not supplied.
func (s *DiagnosticService) GeneratePrescription(req *domain.PrescriptionRequest) (*domain.Prescription, error) {
	if req == nil || strings.TrimSpace(req.Diagnostic) == "" {
		return nil, ErrMissingDiagnostic
	}

	t := req.Treatment
	if t == nil {
		resolved := s.resolver.Resolve(req.Diagnostic, nil)
		t = &resolved
	}
	meds := req.Medications
	if meds == nil {
		meds = []domain.MedicationItem{}
	}

	p := &domain.Prescription{
		ID:           uuid.New().String(),
		IssuedAt:     s.now().UTC(),
		PatientInfo:  req.PatientInfo,
		Diagnostic:   req.Diagnostic,
		Treatment:    t,
		Medications:  meds,
		Instructions: PrescriptionInstructions,
	}
	p.Document = PrescriptionMarkdown(p)
	return p, nil
}

// PrescriptionMarkdown renders the prescription as a Markdown document.
func PrescriptionMarkdown(p *domain.Prescription) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Ordonnance\n\n")
	fmt.Fprintf(&b, "*Réf. %s, émise le %s*\n\n", p.ID, p.IssuedAt.Format("02/01/2006 15:04"))

	if p.PatientInfo != nil {
		b.WriteString("## Patient\n\n")
		if p.PatientInfo.Name != "" {
			fmt.Fprintf(&b, "- Nom: %s\n", escapeMarkdown(p.PatientInfo.Name))
		}
		if p.PatientInfo.Age != nil {
			fmt.Fprintf(&b, "- Âge: %d ans\n", *p.PatientInfo.Age)
		}
		if p.PatientInfo.Gender != "" {
			fmt.Fprintf(&b, "- Genre: %s\n", escapeMarkdown(p.PatientInfo.Gender))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Diagnostic\n\n%s\n\n", escapeMarkdown(p.Diagnostic))

	if p.Treatment != nil {
		fmt.Fprintf(&b, "## Traitement\n\n**%s**\n\n%s\n\n", escapeMarkdown(p.Treatment.Treatment), escapeMarkdown(p.Treatment.Posology))
	}

	if len(p.Medications) > 0 {
		b.WriteString("## Médicaments\n\n| Médicament | Posologie | Indication |\n|---|---|---|\n")
		for _, m := range p.Medications {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(m.Name), escapeCell(m.Dosage), escapeCell(m.Indication))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Instructions\n\n%s\n", p.Instructions)
	return b.String()
}

// PrescriptionHTML renders the Markdown document to HTML. Raw HTML in user
// supplied fields is dropped.
func PrescriptionHTML(p *domain.Prescription) string {
	doc := p.Document
	if doc == "" {
		doc = PrescriptionMarkdown(p)
	}
	md := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return string(markdown.ToHTML([]byte(doc), md, renderer))
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;",
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// escapeMarkdown folds line breaks so user text stays inline, then escapes
// Markdown syntax.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(lineBreaks.Replace(s))
}

func escapeCell(s string) string {
	return strings.ReplaceAll(escapeMarkdown(s), "|", `\|`)
}
