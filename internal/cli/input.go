package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/rules"
)

// readCase decodes a patient case from path, or from stdin when path is "-".
func readCase(cmd *cobra.Command, path string) (*domain.PatientCase, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening case file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var pc domain.PatientCase
	if err := json.NewDecoder(r).Decode(&pc); err != nil {
		return nil, fmt.Errorf("decoding case file: %w", err)
	}
	return &pc, nil
}

func loadRules(cmd *cobra.Command) (*rules.RuleSet, error) {
	path, _ := cmd.Flags().GetString("rules")
	rs, err := rules.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	return rs, nil
}

func renderJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
