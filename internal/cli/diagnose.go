package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/logging"
	"github.com/meddiag-engine/internal/scoring"
	"github.com/meddiag-engine/internal/treatment"
)

func newDiagnoseCmd() *cobra.Command {
	var (
		input      string
		seed       int64
		jitter     float64
		gate       float64
		jsonOutput bool
		explain    bool
	)

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Score a patient case with the deterministic engine",
		Long:  "Run the category/disease cascade over a JSON patient case. Use --seed for reproducible jitter or --jitter 0 to disable it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := loadRules(cmd)
			if err != nil {
				return err
			}
			pc, err := readCase(cmd, input)
			if err != nil {
				return err
			}

			engine := scoring.NewEngine(rs.Registry, logging.Discard(),
				scoring.WithGateThreshold(gate),
				scoring.WithJitter(scoring.NewUniformJitter(jitter, seed)),
			)

			if explain {
				traces, err := engine.Explain(contextOf(cmd), pc)
				if err != nil {
					return fmt.Errorf("scoring failed: %w", err)
				}
				if jsonOutput {
					return renderJSON(cmd, traces)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderExplain(traces, engine.GateThreshold()))
				return nil
			}

			results, err := engine.PredictDiseaseScores(contextOf(cmd), pc)
			if err != nil {
				return fmt.Errorf("scoring failed: %w", err)
			}
			if jsonOutput {
				return renderJSON(cmd, results)
			}

			var top *domain.TreatmentResponse
			if best, ok := highest(results); ok {
				t := treatment.NewResolver(rs.Treatments).Resolve(best.Disease, pc)
				top = &domain.TreatmentResponse{Diagnostic: best.Disease, Treatment: t.Treatment, Posology: t.Posology}
			}
			fmt.Fprint(cmd.OutOrStdout(), renderDiagnosis(results, top))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Patient case JSON file, or - for stdin")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Jitter seed (0 seeds from the clock)")
	cmd.Flags().Float64Var(&jitter, "jitter", scoring.DefaultJitterAmplitude, "Jitter amplitude")
	cmd.Flags().Float64Var(&gate, "gate", scoring.DefaultGateThreshold, "Category gate threshold")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&explain, "explain", false, "Show the per-category cascade trace")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func highest(results []domain.ScoreResult) (domain.ScoreResult, bool) {
	if len(results) == 0 {
		return domain.ScoreResult{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.Probability > best.Probability {
			best = r
		}
	}
	return best, true
}
