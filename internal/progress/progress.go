// Package progress computes earned-value style progress metrics.
//
// The inputs carry no budget or baseline, so every task is weighted equally
// and valued at UnitValue. The resulting figures are an approximation that
// tracks relative progress, not a financial model.
package progress

import "github.com/papapumpkin/parsec/internal/timeline"

// UnitValue is the planned value of a single task.
const UnitValue = 1000.0

// Metrics summarizes progress across a task set.
type Metrics struct {
	OverallProgress      float64 `json:"overall_progress" yaml:"overall_progress"` // 0–100
	SPI                  float64 `json:"spi" yaml:"spi"`
	CPI                  float64 `json:"cpi" yaml:"cpi"`
	EarnedValue          float64 `json:"earned_value" yaml:"earned_value"`
	PlannedValue         float64 `json:"planned_value" yaml:"planned_value"`
	ActualCost           float64 `json:"actual_cost" yaml:"actual_cost"`
	EstimateAtCompletion float64 `json:"estimate_at_completion" yaml:"estimate_at_completion"`
	VarianceAtCompletion float64 `json:"variance_at_completion" yaml:"variance_at_completion"`
	ScheduleVariance     float64 `json:"schedule_variance" yaml:"schedule_variance"`
	CostVariance         float64 `json:"cost_variance" yaml:"cost_variance"`
}

// Completion returns how far along a task is, in percent. Completed tasks
// count as 100 and in-progress tasks report their own progress; every other
// status counts as 0.
func Completion(t timeline.Task) float64 {
	switch t.Status {
	case timeline.StatusCompleted:
		return 100
	case timeline.StatusInProgress:
		return timeline.ClampProgress(t.Progress)
	default:
		return 0
	}
}

// Calculate returns the metrics for tasks. An empty task set yields the
// zero Metrics.
func Calculate(tasks []timeline.Task) Metrics {
	if len(tasks) == 0 {
		return Metrics{}
	}

	var sum float64
	var started int
	for _, t := range tasks {
		sum += Completion(t)
		if t.Status == timeline.StatusCompleted || t.Status == timeline.StatusInProgress {
			started++
		}
	}

	n := float64(len(tasks))
	m := Metrics{
		OverallProgress: sum / n,
		PlannedValue:    n * UnitValue,
		EarnedValue:     sum / 100 * UnitValue,
		ActualCost:      float64(started) * UnitValue,
	}

	m.SPI = 1
	if m.PlannedValue != 0 {
		m.SPI = m.EarnedValue / m.PlannedValue
	}
	m.CPI = 1
	if m.ActualCost != 0 {
		m.CPI = m.EarnedValue / m.ActualCost
	}
	m.EstimateAtCompletion = m.ActualCost
	if m.CPI != 0 {
		m.EstimateAtCompletion = m.ActualCost / m.CPI
	}
	m.VarianceAtCompletion = m.PlannedValue - m.EstimateAtCompletion
	m.ScheduleVariance = m.EarnedValue - m.PlannedValue
	m.CostVariance = m.EarnedValue - m.ActualCost
	return m
}
