package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/papapumpkin/parsec/internal/engine"
)

// EnvPrefix is the prefix of environment variables that override config
// keys: analysis.time_window_hours is read from PARSEC_ANALYSIS_TIME_WINDOW_HOURS.
const EnvPrefix = "PARSEC"

// Output formats accepted by output.format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// AnalysisConfig toggles the analysis stages.
type AnalysisConfig struct {
	CriticalPath         bool    `mapstructure:"critical_path"`
	ValidateDependencies bool    `mapstructure:"validate_dependencies"`
	OptimizeResources    bool    `mapstructure:"optimize_resources"`
	DetectConflicts      bool    `mapstructure:"detect_conflicts"`
	Bottlenecks          bool    `mapstructure:"bottlenecks"`
	TimeWindows          bool    `mapstructure:"time_windows"`
	TimeWindowHours      float64 `mapstructure:"time_window_hours"`
}

// PerformanceConfig holds the warning thresholds.
type PerformanceConfig struct {
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
	MaxTaskCount      int           `mapstructure:"max_task_count"`
}

// HistoryConfig controls the local run history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TelemetryConfig controls the JSONL event stream. An empty path disables it.
type TelemetryConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// Config holds all runtime configuration for parsec.
// Values are populated from .parsec.yaml, PARSEC_* env vars, and CLI flags.
type Config struct {
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Performance PerformanceConfig `mapstructure:"performance"`
	History     HistoryConfig     `mapstructure:"history"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Output      OutputConfig      `mapstructure:"output"`
	Verbose     bool              `mapstructure:"verbose"`
}

// BindEnv makes viper read PARSEC_* variables, mapping nested keys with
// underscores.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("analysis.critical_path", true)
	viper.SetDefault("analysis.validate_dependencies", true)
	viper.SetDefault("analysis.optimize_resources", true)
	viper.SetDefault("analysis.detect_conflicts", true)
	viper.SetDefault("analysis.bottlenecks", true)
	viper.SetDefault("analysis.time_windows", true)
	viper.SetDefault("analysis.time_window_hours", engine.DefaultTimeWindowHours)
	viper.SetDefault("performance.max_processing_time", engine.DefaultMaxProcessingTime)
	viper.SetDefault("performance.max_task_count", engine.DefaultMaxTaskCount)
	viper.SetDefault("history.enabled", false)
	viper.SetDefault("history.path", ".parsec/history.db")
	viper.SetDefault("telemetry.path", "")
	viper.SetDefault("output.format", FormatText)
	viper.SetDefault("output.color", true)
	viper.SetDefault("verbose", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}
	switch cfg.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return Config{}, fmt.Errorf("config: unknown output format %q", cfg.Output.Format)
	}
	return cfg, nil
}

// EngineOptions maps the analysis and performance settings onto engine
// options. Baseline comparison is enabled per run, not from config.
func (c Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.CalculateCriticalPath = c.Analysis.CriticalPath
	opts.ValidateDependencies = c.Analysis.ValidateDependencies
	opts.OptimizeResources = c.Analysis.OptimizeResources
	opts.DetectConflicts = c.Analysis.DetectConflicts
	opts.PerformBottleneckAnalysis = c.Analysis.Bottlenecks
	opts.AggregateByTimeWindow = c.Analysis.TimeWindows
	opts.TimeWindowSize = c.Analysis.TimeWindowHours
	opts.Thresholds = engine.Thresholds{
		MaxProcessingTime: c.Performance.MaxProcessingTime,
		MaxTaskCount:      c.Performance.MaxTaskCount,
	}
	return opts
}
