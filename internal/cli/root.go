// Package cli implements the meddiag command line: offline diagnosis over a
// case file, rule-set inspection and the HTTP server.
package cli

import "github.com/spf13/cobra"

var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "meddiag",
		Short:         "Deterministic medical decision support",
		Long:          "meddiag scores a patient case against a category/disease rule set and suggests treatments, medications and prescriptions.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("rules", "", "Rule set YAML file (default: embedded rules)")

	cmd.AddCommand(newDiagnoseCmd())
	cmd.AddCommand(newTreatmentCmd())
	cmd.AddCommand(newMedicationsCmd())
	cmd.AddCommand(newRulesCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
