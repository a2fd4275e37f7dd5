package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/parsec/internal/config"
	"github.com/papapumpkin/parsec/internal/engine"
	"github.com/papapumpkin/parsec/internal/plan"
	"github.com/papapumpkin/parsec/internal/telemetry"
	"github.com/papapumpkin/parsec/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <plan>",
	Short: "Re-run the analysis whenever the plan file changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	printer := newPrinter(cmd, cfg)

	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	var em *telemetry.Emitter
	if cfg.Telemetry.Path != "" {
		if em, err = telemetry.NewEmitter(cfg.Telemetry.Path); err != nil {
			return err
		}
		defer em.Close()
	}

	w, err := plan.NewWatcher(args[0])
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &watchSession{
		cfg:     cfg,
		printer: printer,
		proc:    engine.New(engine.WithLogger(slog.Default().With("component", "engine"))),
		emitter: em,
		logger:  slog.Default().With("component", "watch", "plan", w.Path),
	}
	s.analyze(ctx, p)
	return s.loop(ctx, w.Changes)
}

// watchSession re-analyzes a plan on every reload with one Processor, so
// a broken edit keeps the last good result.
type watchSession struct {
	cfg     config.Config
	printer *ui.Printer
	proc    *engine.Processor
	emitter *telemetry.Emitter
	logger  *slog.Logger
}

func (s *watchSession) loop(ctx context.Context, changes <-chan plan.Change) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-changes:
			if !ok {
				return nil
			}
			s.printer.Reloaded(ch.Path, ch.Err)
			if err := s.emitter.Emit(telemetry.Event{Kind: telemetry.KindPlanReloaded, Data: map[string]string{"path": ch.Path}}); err != nil {
				s.logger.Warn("telemetry write failed", "error", err)
			}
			if ch.Err != nil {
				s.logger.Warn("plan reload failed", "error", ch.Err)
				continue
			}
			s.analyze(ctx, ch.Plan)
		}
	}
}

// analyze runs one analysis under a fresh run id.
func (s *watchSession) analyze(ctx context.Context, p *plan.Plan) {
	runID := uuid.NewString()
	if err := s.emitter.RunStarted(runID, p.Name, len(p.Tasks)); err != nil {
		s.logger.Warn("telemetry write failed", "error", err)
	}
	res, err := s.proc.Process(ctx, p.Tasks, p.Resources, p.Events, s.cfg.EngineOptions())
	if err != nil {
		if terr := s.emitter.RunFailed(runID, err); terr != nil {
			s.logger.Warn("telemetry write failed", "error", terr)
		}
		s.logger.Error("analysis failed; keeping previous result", "run", runID, "error", err)
		return
	}
	if err := s.emitter.RunFinished(runID, res); err != nil {
		s.logger.Warn("telemetry write failed", "error", err)
	}
	s.printer.Report(p.Name, res)
}
