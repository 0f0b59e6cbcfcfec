package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meddiag-engine/internal/app"
	"github.com/meddiag-engine/internal/config"
	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/logging"
	"github.com/meddiag-engine/internal/medication"
	"github.com/meddiag-engine/internal/rules"
	"github.com/meddiag-engine/internal/treatment"
)

func newTreatmentCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "treatment <disease>",
		Short: "Look up the treatment and posology of a disease",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := loadRules(cmd)
			if err != nil {
				return err
			}

			disease := strings.Join(args, " ")
			t := treatment.NewResolver(rs.Treatments).Resolve(disease, nil)
			resp := domain.TreatmentResponse{Diagnostic: disease, Treatment: t.Treatment, Posology: t.Posology}

			if jsonOutput {
				return renderJSON(cmd, resp)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTreatment(resp))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newMedicationsCmd() *cobra.Command {
	var (
		input      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "medications",
		Short: "Suggest medications for a patient case",
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

			meds := medication.NewSuggester(rs.Medications).Suggest(pc.Symptoms, pc.Analyses)
			if jsonOutput {
				return renderJSON(cmd, meds)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderMedications(meds))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Patient case JSON file, or - for stdin")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newRulesCmd() *cobra.Command {
	var (
		file       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate and list a rule set",
		Long:  "Load a rule set (the embedded one by default), validate it and list its categories and diseases.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file, _ = cmd.Flags().GetString("rules")
			}
			rs, err := rules.LoadOrDefault(file)
			if err != nil {
				return fmt.Errorf("invalid rule set: %w", err)
			}

			if jsonOutput {
				return renderJSON(cmd, rulesSummary(rs))
			}
			source := "embedded"
			if file != "" {
				source = file
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRules(rs, source))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Rule set YAML file to validate")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type ruleCategory struct {
	Name     string   `json:"name"`
	Diseases []string `json:"diseases"`
}

func rulesSummary(rs *rules.RuleSet) map[string]interface{} {
	categories := make([]ruleCategory, 0, rs.Registry.Len())
	for _, gate := range rs.Registry.Gates() {
		rc := ruleCategory{Name: gate.Category.Name, Diseases: make([]string, 0, len(gate.Diseases))}
		for _, d := range gate.Diseases {
			rc.Diseases = append(rc.Diseases, d.Name)
		}
		categories = append(categories, rc)
	}
	return map[string]interface{}{
		"categories":  categories,
		"treatments":  len(rs.Treatments),
		"medications": len(rs.Medications),
	}
}

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				m   *config.Manager
				err error
			)
			if configFile != "" {
				m, err = config.NewManagerFromFile(configFile)
			} else {
				m, err = config.NewManager()
			}
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("rules"); path != "" {
				m.GetConfig().Rules.Path = path
			}
			if err := m.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			logger := logging.New(m.GetConfig().Logging)
			application, err := app.New(m, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return application.Server.Start(ctx)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file (default: ./config.yaml)")
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
