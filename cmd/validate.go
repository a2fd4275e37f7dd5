package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/parsec/internal/engine"
	"github.com/papapumpkin/parsec/internal/plan"
)

// errInvalidPlan makes the command exit non-zero after the printer has
// already reported the problem.
var errInvalidPlan = errors.New("plan is invalid")

var validateCmd = &cobra.Command{
	Use:   "validate <plan>",
	Short: "Validate a plan file and check its dependencies for cycles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printer := newPrinter(cmd, cfg)

		p, err := plan.Load(args[0])
		if err != nil {
			printer.ValidationResult(args[0], 0, err)
			return errInvalidPlan
		}
		if err := validatePlan(cmd.Context(), p); err != nil {
			printer.ValidationResult(p.Name, len(p.Tasks), err)
			return errInvalidPlan
		}
		printer.ValidationResult(p.Name, len(p.Tasks), nil)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validatePlan runs only the validation and dependency graph stages.
func validatePlan(ctx context.Context, p *plan.Plan) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := engine.Run(ctx, p.Input(), engine.Options{ValidateDependencies: true})
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	return nil
}
