package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/parsec/internal/engine"
	"github.com/papapumpkin/parsec/internal/plan"
	"github.com/papapumpkin/parsec/internal/timeline"
)

var compressCmd = &cobra.Command{
	Use:   "compress <plan>",
	Short: "Shorten every task by a factor in (0, 1) and print the plan as TOML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factor, _ := cmd.Flags().GetFloat64("factor")
		return scalePlan(cmd.OutOrStdout(), args[0], factor, engine.Compress)
	},
}

var expandCmd = &cobra.Command{
	Use:   "expand <plan>",
	Short: "Lengthen every task by a factor above 1 and print the plan as TOML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factor, _ := cmd.Flags().GetFloat64("factor")
		return scalePlan(cmd.OutOrStdout(), args[0], factor, engine.Expand)
	},
}

func init() {
	compressCmd.Flags().Float64("factor", 0.8, "duration factor in (0, 1)")
	expandCmd.Flags().Float64("factor", 1.2, "duration factor above 1")
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(expandCmd)
}

type scaleFunc func([]timeline.Task, float64) ([]timeline.Task, error)

// scalePlan rescales the plan's task durations and writes the result as a
// TOML plan. Start dates, resources and events are kept.
func scalePlan(w io.Writer, path string, factor float64, scale scaleFunc) error {
	p, err := plan.Load(path)
	if err != nil {
		return err
	}
	tasks, err := scale(p.Tasks, factor)
	if err != nil {
		return err
	}
	data, err := plan.FromTimeline(p.Name, tasks, p.Resources, p.Events).Encode(plan.FormatTOML)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	_, err = w.Write(data)
	return err
}
