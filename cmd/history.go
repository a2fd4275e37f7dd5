package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/parsec/internal/config"
	"github.com/papapumpkin/parsec/internal/history"
	"github.com/papapumpkin/parsec/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded analysis runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		planName, _ := cmd.Flags().GetString("plan")

		store, err := history.Open(cmd.Context(), cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(cmd.Context(), planName, limit)
		if err != nil {
			return err
		}
		if cfg.Output.Format != config.FormatText {
			return ui.Encode(cmd.OutOrStdout(), cfg.Output.Format, runs)
		}
		newPrinter(cmd, cfg).Runs(runs)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := history.Open(cmd.Context(), cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), newPrinter(cmd, cfg), cfg.Output.Format, run.Plan, run.Result)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := history.Open(cmd.Context(), cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(cmd.Context(), args[0])
	},
}

func init() {
	historyCmd.Flags().Int("limit", history.DefaultListLimit, "maximum number of runs to list")
	historyCmd.Flags().String("plan", "", "only list runs of this plan")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}
