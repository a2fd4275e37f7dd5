package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/papapumpkin/parsec/internal/timeline"
)

// VarianceKind classifies a baseline difference.
type VarianceKind string

const (
	VarianceAdded   VarianceKind = "added"
	VarianceRemoved VarianceKind = "removed"
	VarianceShifted VarianceKind = "shifted"
)

// BaselineVariance is how one task moved relative to the baseline. A
// positive slip means the task now starts or finishes later.
type BaselineVariance struct {
	TaskID     string        `json:"task_id" yaml:"task_id"`
	Kind       VarianceKind  `json:"kind" yaml:"kind"`
	StartSlip  time.Duration `json:"start_slip" yaml:"start_slip"`
	FinishSlip time.Duration `json:"finish_slip" yaml:"finish_slip"`
}

// SlipDays returns the finish slip in fractional days.
func (v BaselineVariance) SlipDays() float64 {
	return timeline.Days(v.FinishSlip)
}

// CompareBaseline diffs current against baseline by task ID. Tasks whose
// dates did not move are omitted. The result is sorted by task ID.
func CompareBaseline(current, baseline []timeline.Task) []BaselineVariance {
	base := make(map[string]timeline.Task, len(baseline))
	for _, t := range baseline {
		base[t.ID] = t
	}
	seen := make(map[string]bool, len(current))

	var out []BaselineVariance
	for _, t := range current {
		seen[t.ID] = true
		b, ok := base[t.ID]
		if !ok {
			out = append(out, BaselineVariance{TaskID: t.ID, Kind: VarianceAdded})
			continue
		}
		startSlip := t.Start.Sub(b.Start)
		finishSlip := t.End.Sub(b.End)
		if startSlip == 0 && finishSlip == 0 {
			continue
		}
		out = append(out, BaselineVariance{
			TaskID:     t.ID,
			Kind:       VarianceShifted,
			StartSlip:  startSlip,
			FinishSlip: finishSlip,
		})
	}
	for _, b := range baseline {
		if !seen[b.ID] {
			out = append(out, BaselineVariance{TaskID: b.ID, Kind: VarianceRemoved})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

func baselineStage(_ context.Context, rc *runContext) error {
	snap, err := timeline.Validate(rc.opts.Baseline, nil, nil)
	if err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	rc.result.Baseline = CompareBaseline(rc.snap.Tasks, snap.Tasks)
	return nil
}
