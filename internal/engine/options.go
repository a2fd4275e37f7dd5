package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/papapumpkin/parsec/internal/timeline"
	"github.com/papapumpkin/parsec/internal/window"
)

// Default option values.
const (
	DefaultTimeWindowHours   = 24.0
	DefaultMaxProcessingTime = 5 * time.Second
	DefaultMaxTaskCount      = 10_000
)

// Thresholds trigger warnings when exceeded. They never abort a run.
type Thresholds struct {
	MaxProcessingTime time.Duration `json:"max_processing_time" yaml:"max_processing_time"`
	MaxTaskCount      int           `json:"max_task_count" yaml:"max_task_count"`
}

// Options selects which analysis stages run. Validation, graph
// construction and progress metrics always run.
type Options struct {
	CalculateCriticalPath     bool `json:"calculate_critical_path" yaml:"calculate_critical_path"`
	ValidateDependencies      bool `json:"validate_dependencies" yaml:"validate_dependencies"`
	OptimizeResources         bool `json:"optimize_resources" yaml:"optimize_resources"`
	DetectConflicts           bool `json:"detect_conflicts" yaml:"detect_conflicts"`
	PerformBottleneckAnalysis bool `json:"perform_bottleneck_analysis" yaml:"perform_bottleneck_analysis"`
	AggregateByTimeWindow     bool `json:"aggregate_by_time_window" yaml:"aggregate_by_time_window"`

	// TimeWindowSize is the aggregation window length in hours.
	TimeWindowSize float64 `json:"time_window_size" yaml:"time_window_size"`

	// CompareBaseline reports per-task slip against Baseline.
	CompareBaseline bool            `json:"compare_baseline" yaml:"compare_baseline"`
	Baseline        []timeline.Task `json:"-" yaml:"-"`

	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`
}

// DefaultOptions enables every analysis stage except baseline comparison.
func DefaultOptions() Options {
	return Options{
		CalculateCriticalPath:     true,
		ValidateDependencies:      true,
		OptimizeResources:         true,
		DetectConflicts:           true,
		PerformBottleneckAnalysis: true,
		AggregateByTimeWindow:     true,
		TimeWindowSize:            DefaultTimeWindowHours,
		Thresholds: Thresholds{
			MaxProcessingTime: DefaultMaxProcessingTime,
			MaxTaskCount:      DefaultMaxTaskCount,
		},
	}
}

// WindowDuration converts TimeWindowSize to a duration.
func (o Options) WindowDuration() time.Duration {
	return time.Duration(math.Round(o.TimeWindowSize * float64(time.Hour)))
}

// Validate checks option values that would make a stage fail. Window size
// is only checked when aggregation is enabled.
func (o Options) Validate() error {
	if o.AggregateByTimeWindow {
		if math.IsNaN(o.TimeWindowSize) || o.WindowDuration() <= 0 {
			return &ConfigurationError{
				Option: "time_window_size",
				Value:  o.TimeWindowSize,
				Err:    window.ErrInvalidWindowSize,
			}
		}
	}
	if o.CompareBaseline && len(o.Baseline) == 0 {
		return &ConfigurationError{
			Option: "baseline",
			Err:    fmt.Errorf("%w: baseline comparison enabled without baseline tasks", ErrMissingBaseline),
		}
	}
	return nil
}
