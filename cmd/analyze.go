package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/parsec/internal/config"
	"github.com/papapumpkin/parsec/internal/engine"
	"github.com/papapumpkin/parsec/internal/history"
	"github.com/papapumpkin/parsec/internal/plan"
	"github.com/papapumpkin/parsec/internal/telemetry"
	"github.com/papapumpkin/parsec/internal/ui"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <plan>",
	Short: "Analyze a mission plan",
	Long: `Loads a plan file (TOML, YAML or JSON) and runs the full analysis:
validation, critical path, resource leveling, conflict and bottleneck
detection, time windows and progress metrics.

With --baseline, the plan's dates are compared against another plan file.
With --record, the result is stored in the run history database.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("baseline", "", "baseline plan file to compare against")
	analyzeCmd.Flags().Bool("record", false, "record the result in the history database")
	analyzeCmd.Flags().String("telemetry", "", "append JSONL telemetry events to this file")
	analyzeCmd.Flags().Float64("window", 0, "time window size in hours (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeRequest is everything one analysis run needs besides the config.
type analyzeRequest struct {
	PlanPath     string
	BaselinePath string
	Record       bool
	Telemetry    string
	WindowHours  float64
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req := analyzeRequest{PlanPath: args[0]}
	req.BaselinePath, _ = cmd.Flags().GetString("baseline")
	req.Record, _ = cmd.Flags().GetBool("record")
	req.Telemetry, _ = cmd.Flags().GetString("telemetry")
	req.WindowHours, _ = cmd.Flags().GetFloat64("window")

	return analyze(cmd.Context(), cmd.OutOrStdout(), newPrinter(cmd, cfg), cfg, req)
}

// analyze loads the plan, runs the engine and writes the result to w in
// the configured format.
func analyze(ctx context.Context, w io.Writer, printer *ui.Printer, cfg config.Config, req analyzeRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := plan.Load(req.PlanPath)
	if err != nil {
		return err
	}

	opts := cfg.EngineOptions()
	if req.WindowHours > 0 {
		opts.TimeWindowSize = req.WindowHours
	}
	if req.BaselinePath != "" {
		base, err := plan.Load(req.BaselinePath)
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
		opts.CompareBaseline = true
		opts.Baseline = base.Tasks
	}

	telemetryPath := req.Telemetry
	if telemetryPath == "" {
		telemetryPath = cfg.Telemetry.Path
	}
	var em *telemetry.Emitter
	if telemetryPath != "" {
		if em, err = telemetry.NewEmitter(telemetryPath); err != nil {
			return err
		}
		defer em.Close()
	}

	logger := slog.Default().With("component", "analyze", "plan", p.Name)
	runID := uuid.NewString()
	if err := em.RunStarted(runID, p.Name, len(p.Tasks)); err != nil {
		logger.Warn("telemetry write failed", "error", err)
	}

	proc := engine.New(engine.WithLogger(slog.Default().With("component", "engine")))
	res, err := proc.Process(ctx, p.Tasks, p.Resources, p.Events, opts)
	if err != nil {
		if terr := em.RunFailed(runID, err); terr != nil {
			logger.Warn("telemetry write failed", "error", terr)
		}
		return err
	}
	if err := em.RunFinished(runID, res); err != nil {
		logger.Warn("telemetry write failed", "error", err)
	}

	if req.Record || cfg.History.Enabled {
		run, err := recordRun(ctx, cfg.History.Path, p.Name, res)
		if err != nil {
			return err
		}
		logger.Info("run recorded", "run", run.ID, "db", cfg.History.Path)
	}

	return render(w, printer, cfg.Output.Format, p.Name, res)
}

func recordRun(ctx context.Context, path, planName string, res *engine.Result) (history.Run, error) {
	store, err := history.Open(ctx, path)
	if err != nil {
		return history.Run{}, err
	}
	defer store.Close()
	return store.Record(ctx, planName, res)
}

func render(w io.Writer, printer *ui.Printer, format, planName string, res *engine.Result) error {
	if format == config.FormatText {
		printer.Report(planName, res)
		return nil
	}
	return ui.Encode(w, format, res)
}
