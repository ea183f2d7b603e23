package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ekyc/internal/decision"
	"ekyc/internal/kyc/models"
	"ekyc/internal/platform/config"
)

func decideCmd(configPath *string) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "decide [results.json]",
		Short: "Apply the decision rules to a list of verification results",
		Long: `Apply the decision rules to a JSON array of verification results and
print the decision with the finding behind each check. No provider is called.

Examples:
  ekyc decide results.json
  echo '[{"verification_type":"SANCTIONS","status":"HIT"}]' | ekyc decide`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				input = args[0]
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runDecide(cfg, input, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	return cmd
}

func runDecide(cfg config.Config, input string, stdin io.Reader, stdout io.Writer) error {
	results, err := readJSON[[]models.VerificationResult](input, stdin)
	if err != nil {
		return err
	}
	for i, r := range results {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}
	}

	outcome := decision.NewEngine(thresholds(cfg.Thresholds)).Evaluate(results)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}
