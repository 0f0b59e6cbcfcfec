package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/health"
	"github.com/meddiag-engine/internal/logging"
	"github.com/meddiag-engine/internal/service"
)

// detail writes the error body shared by every endpoint: a plain "detail"
// message plus the structured APIError.
func detail(c *gin.Context, status int, code, msg string) {
	apiErr := domain.NewAPIError(code, http.StatusText(status), msg, logging.CorrelationID(c.Request.Context()))
	c.AbortWithStatusJSON(status, gin.H{"detail": msg, "error": apiErr})
}

// bind decodes the JSON body. Oversized bodies are 413, anything else
// malformed is 422.
func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			detail(c, http.StatusRequestEntityTooLarge, domain.ErrInvalidInput, "request body too large")
			return false
		}
		_ = c.Error(err)
		detail(c, http.StatusUnprocessableEntity, domain.ErrInvalidInput, err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(c *gin.Context) {
	status := s.health.Run(c.Request.Context())

	code := http.StatusOK
	if status.Overall == health.StateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status.Overall,
		"timestamp":  status.Timestamp,
		"version":    status.Version,
		"uptime":     status.Uptime,
		"ai_enabled": s.service.AIEnabled(),
		"components": status.Components,
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

type diseaseSummary struct {
	ID       int                `json:"id"`
	Name     string             `json:"name"`
	Symptoms map[string]float64 `json:"symptoms"`
	Analyses int                `json:"analysis_rules"`
}

type categorySummary struct {
	Name        string             `json:"name"`
	Symptoms    map[string]float64 `json:"symptoms"`
	Analyses    int                `json:"analysis_rules"`
	Combination map[string]float64 `json:"combination"`
	Diseases    []diseaseSummary   `json:"diseases"`
}

func (s *Server) handleRules(c *gin.Context) {
	registry := s.engine.Registry()
	if registry == nil {
		detail(c, http.StatusInternalServerError, domain.ErrConfiguration, "no rule registry loaded")
		return
	}

	categories := make([]categorySummary, 0, registry.Len())
	for _, gate := range registry.Gates() {
		cs := categorySummary{
			Name:     gate.Category.Name,
			Symptoms: gate.Category.Symptoms,
			Analyses: len(gate.Category.AnalysisRules),
			Combination: map[string]float64{
				"symptoms": gate.Category.Combination.Symptoms,
				"analyses": gate.Category.Combination.Analyses,
			},
			Diseases: make([]diseaseSummary, 0, len(gate.Diseases)),
		}
		for _, d := range gate.Diseases {
			cs.Diseases = append(cs.Diseases, diseaseSummary{
				ID:       d.ID,
				Name:     d.Name,
				Symptoms: d.Symptoms,
				Analyses: len(d.AnalysisRules),
			})
		}
		categories = append(categories, cs)
	}

	c.JSON(http.StatusOK, gin.H{
		"gate_threshold": s.engine.GateThreshold(),
		"categories":     categories,
	})
}

func (s *Server) handleDiagnostic(c *gin.Context) {
	var pc domain.PatientCase
	if !bind(c, &pc) {
		return
	}

	resp, err := s.service.Diagnose(c.Request.Context(), &pc)
	if err != nil {
		logging.FromContext(c.Request.Context(), s.logger).WithError(err).Error("Diagnosis failed")
		_ = c.Error(err)
		detail(c, http.StatusInternalServerError, domain.ErrScoring, err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePredictTreatment(c *gin.Context) {
	diagnostic := strings.TrimSpace(c.Query("diagnostic"))
	if diagnostic == "" {
		detail(c, http.StatusUnprocessableEntity, domain.ErrInvalidInput, "query parameter 'diagnostic' is required")
		return
	}

	var pc domain.PatientCase
	if !bind(c, &pc) {
		return
	}
	c.JSON(http.StatusOK, s.service.PredictTreatment(diagnostic, &pc))
}

func (s *Server) handleSuggestMedications(c *gin.Context) {
	var pc domain.PatientCase
	if !bind(c, &pc) {
		return
	}
	c.JSON(http.StatusOK, s.service.SuggestMedications(c.Request.Context(), &pc))
}

func (s *Server) handleGeneratePrescription(c *gin.Context) {
	var req domain.PrescriptionRequest
	if !bind(c, &req) {
		return
	}

	p, err := s.service.GeneratePrescription(&req)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			detail(c, http.StatusUnprocessableEntity, domain.ErrValidation, err.Error())
			return
		}
		detail(c, http.StatusInternalServerError, domain.ErrInternalServer, err.Error())
		return
	}

	if strings.EqualFold(c.Query("format"), "html") {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(service.PrescriptionHTML(p)))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleCheckCompatibility(c *gin.Context) {
	var req domain.CompatibilityRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.service.CheckCompatibility(c.Request.Context(), &req))
}

func (s *Server) handleSuggestAnalyses(c *gin.Context) {
	var pc domain.PatientCase
	if !bind(c, &pc) {
		return
	}
	c.JSON(http.StatusOK, s.service.SuggestAnalyses(c.Request.Context(), &pc))
}
