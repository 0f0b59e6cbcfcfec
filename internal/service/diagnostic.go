package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meddiag-engine/internal/ai"
	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/logging"
	"github.com/meddiag-engine/internal/medication"
	"github.com/meddiag-engine/internal/treatment"
)

// ErrEmptyAIResult is the fallback reason when the model answered with nothing.
var ErrEmptyAIResult = errors.New("ai returned no results")

// Advisor is the generative-AI path. *ai.Client implements it.
type Advisor interface {
	PredictDiagnostics(ctx context.Context, pc *domain.PatientCase) ai.Result[ai.Diagnosis]
	CheckCompatibility(ctx context.Context, meds []domain.MedicationItem, info *domain.PatientInfo, history []domain.MedicalHistoryItem) ai.Result[domain.CompatibilityResult]
	SuggestAnalyses(ctx context.Context, symptoms []domain.Symptom, history []domain.MedicalHistoryItem, info *domain.PatientInfo) ai.Result[[]domain.AnalysisSuggestion]
}

// Predictor is the deterministic cascade. *scoring.Engine implements it.
type Predictor interface {
	PredictDiseaseScores(ctx context.Context, pc *domain.PatientCase) ([]domain.ScoreResult, error)
}

// DiagnosisRecorder counts diagnoses by serving path.
type DiagnosisRecorder interface {
	RecordDiagnosis(source, fallbackKind string)
}

// DiagnosticService applies the per-endpoint policy between the AI path and
// the deterministic engine.
type DiagnosticService struct {
	logger    *logrus.Logger
	predictor Predictor
	resolver  *treatment.Resolver
	suggester *medication.Suggester
	advisor   Advisor
	metrics   DiagnosisRecorder
	now       func() time.Time
}

// Option customizes a DiagnosticService.
type Option func(*DiagnosticService)

// WithAdvisor enables the AI path. A nil advisor keeps it disabled.
func WithAdvisor(a Advisor) Option {
	return func(s *DiagnosticService) { s.advisor = a }
}

// WithMetrics records every diagnosis with its source and fallback kind.
func WithMetrics(r DiagnosisRecorder) Option {
	return func(s *DiagnosticService) { s.metrics = r }
}

// WithClock overrides the prescription timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *DiagnosticService) { s.now = now }
}

// NewDiagnosticService creates the service over the deterministic components.
func NewDiagnosticService(
	logger *logrus.Logger,
	predictor Predictor,
	resolver *treatment.Resolver,
	suggester *medication.Suggester,
	opts ...Option,
) *DiagnosticService {
	s := &DiagnosticService{
		logger:    logger,
		predictor: predictor,
		resolver:  resolver,
		suggester: suggester,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AIEnabled reports whether an advisor is configured.
func (s *DiagnosticService) AIEnabled() bool {
	return s.advisor != nil
}

// Diagnose tries the AI path first and falls back to the cascade on any AI
// error or empty answer. Both paths failing yields one joined error.
func (s *DiagnosticService) Diagnose(ctx context.Context, pc *domain.PatientCase) (*domain.DiagnosisResponse, error) {
	log := logging.FromContext(ctx, s.logger)

	var aiErr error
	if s.advisor != nil {
		res := s.advisor.PredictDiagnostics(ctx, pc)
		switch {
		case !res.OK():
			aiErr = res.Err
		case len(res.Value.Diagnostics) == 0:
			aiErr = ErrEmptyAIResult
		default:
			log.WithField("diagnostics", len(res.Value.Diagnostics)).Info("Diagnosis served by AI")
			s.record(domain.SourceAI, nil)
			return &domain.DiagnosisResponse{Diagnostics: res.Value.Diagnostics, Source: domain.SourceAI}, nil
		}
		log.WithError(aiErr).Warn("AI diagnosis failed, falling back to deterministic engine")
	}

	scores, err := s.predictor.PredictDiseaseScores(ctx, pc)
	if err != nil {
		return nil, errors.Join(aiErr, fmt.Errorf("deterministic scoring failed: %w", err))
	}

	resp := &domain.DiagnosisResponse{Diagnostics: scores, Source: domain.SourceDeterministic}
	if aiErr != nil {
		resp.FallbackReason = aiErr.Error()
	}
	log.WithField("diagnostics", len(scores)).Info("Diagnosis served by deterministic engine")
	s.record(domain.SourceDeterministic, aiErr)
	return resp, nil
}

func (s *DiagnosticService) record(source domain.Source, aiErr error) {
	if s.metrics == nil {
		return
	}
	var kind string
	var typed *ai.Error
	switch {
	case aiErr == nil:
	case errors.As(aiErr, &typed):
		kind = string(typed.Kind)
	case errors.Is(aiErr, ErrEmptyAIResult):
		kind = "empty"
	default:
		kind = "unknown"
	}
	s.metrics.RecordDiagnosis(string(source), kind)
}

// PredictTreatment resolves the treatment of the selected diagnosis.
func (s *DiagnosticService) PredictTreatment(diagnostic string, pc *domain.PatientCase) domain.TreatmentResponse {
	t := s.resolver.Resolve(diagnostic, pc)
	return domain.TreatmentResponse{
		Diagnostic: diagnostic,
		Treatment:  t.Treatment,
		Posology:   t.Posology,
	}
}

// SuggestMedications uses the AI medications when available and the
// deterministic trigger rules otherwise.
func (s *DiagnosticService) SuggestMedications(ctx context.Context, pc *domain.PatientCase) *domain.MedicationsResponse {
	log := logging.FromContext(ctx, s.logger)
	if pc == nil {
		pc = &domain.PatientCase{}
	}

	if s.advisor != nil {
		res := s.advisor.PredictDiagnostics(ctx, pc)
		if res.OK() && len(res.Value.Medications) > 0 {
			return &domain.MedicationsResponse{Medications: res.Value.Medications, Source: domain.SourceAI}
		}
		reason := error(ErrEmptyAIResult)
		if !res.OK() {
			reason = res.Err
		}
		log.WithError(reason).Warn("AI medication suggestion failed, using deterministic rules")
	}

	return &domain.MedicationsResponse{
		Medications: s.suggester.Suggest(pc.Symptoms, pc.Analyses),
		Source:      domain.SourceDeterministic,
	}
}

// CheckCompatibility is AI-only. Fewer than two medications are trivially
// compatible and any failure degrades to compatible with no warnings.
func (s *DiagnosticService) CheckCompatibility(ctx context.Context, req *domain.CompatibilityRequest) domain.CompatibilityResult {
	if req == nil || len(req.Medications) < 2 || s.advisor == nil {
		return domain.CompatibleResult()
	}

	res := s.advisor.CheckCompatibility(ctx, req.Medications, req.PatientInfo, req.MedicalHistory)
	if !res.OK() {
		logging.FromContext(ctx, s.logger).WithError(res.Err).Warn("Compatibility check failed, assuming compatible")
		return domain.CompatibleResult()
	}
	return res.Value
}

// SuggestAnalyses is AI-only. No symptoms or any failure yields an empty list.
func (s *DiagnosticService) SuggestAnalyses(ctx context.Context, pc *domain.PatientCase) *domain.AnalysisSuggestionsResponse {
	empty := &domain.AnalysisSuggestionsResponse{Suggestions: []domain.AnalysisSuggestion{}}
	if pc == nil || len(pc.Symptoms) == 0 || s.advisor == nil {
		return empty
	}

	res := s.advisor.SuggestAnalyses(ctx, pc.Symptoms, pc.MedicalHistory, pc.PatientInfo)
	if !res.OK() {
		logging.FromContext(ctx, s.logger).WithError(res.Err).Warn("Analysis suggestion failed, returning none")
		return empty
	}
	return &domain.AnalysisSuggestionsResponse{Suggestions: res.Value}
}
