// Package ui renders analysis results for the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/parsec/internal/conflict"
	"github.com/papapumpkin/parsec/internal/engine"
	"github.com/papapumpkin/parsec/internal/history"
	"github.com/papapumpkin/parsec/internal/timeline"
)

// maxWindowRows caps the time-window table in text reports.
const maxWindowRows = 14

// Printer writes human-readable reports to w.
type Printer struct {
	w  io.Writer
	st styles

	// Width is the terminal width used for the schedule chart.
	Width int
}

// New returns a printer writing to w. Color is only emitted when color is
// true and w is a terminal that supports it.
func New(w io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{w: w, st: newStyles(r, color), Width: 100}
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Report prints the full analysis of a plan.
func (p *Printer) Report(planName string, res *engine.Result) {
	p.printf("%s\n", p.st.header.Render("parsec: "+planName))
	p.summary(res)
	p.schedule(res)
	p.conflicts(res.Conflicts)
	p.bottlenecks(res)
	p.allocations(res)
	p.windows(res)
	p.progress(res)
	p.baseline(res.Baseline)
	p.warnings(res.Warnings)
}

func (p *Printer) section(title string) {
	p.printf("\n%s\n", p.st.section.Render(title))
}

func (p *Printer) field(label string, format string, args ...any) {
	p.printf("  %s %s\n", p.st.label.Render(fmt.Sprintf("%-18s", label+":")), fmt.Sprintf(format, args...))
}

func (p *Printer) summary(res *engine.Result) {
	s := res.Statistics
	p.section("Summary")
	p.field("tasks", "%d (%d completed, %d blocked)", s.TaskCount, s.CompletedTasks, s.BlockedTasks)
	p.field("resources", "%d", s.ResourceCount)
	p.field("events", "%d", s.EventCount)
	if !s.ProjectStart.IsZero() {
		p.field("span", "%s → %s (%s)", formatDate(s.ProjectStart), formatDate(s.ProjectFinish), formatDays(s.ProjectDuration()))
	}
	p.field("avg duration", "%s", formatDays(s.AverageTaskDuration))
	p.field("workstreams", "%d", s.Workstreams)
	p.field("processing", "%s", formatElapsed(s.ProcessingTime))
}

func (p *Printer) schedule(res *engine.Result) {
	sched := res.CriticalPath
	if sched == nil {
		return
	}
	p.section("Critical Path")
	if len(sched.Path) == 0 {
		p.printf("  %s\n", p.st.muted.Render("(no tasks)"))
		return
	}
	p.printf("  %s\n", p.st.critical.Render(strings.Join(sched.Path, " → ")))
	p.field("finish", "%s", formatDate(sched.ProjectFinish))

	p.printf("\n")
	for _, n := range sched.Nodes {
		icon := p.st.muted.Render(iconWaiting)
		id := fmt.Sprintf("%-16s", n.TaskID)
		if n.IsCritical {
			icon = p.st.critical.Render(iconCritical)
			id = p.st.critical.Render(id)
		}
		p.printf("  %s %s %s → %s  slack %-8s free %s\n",
			icon, id, formatDate(n.EarliestStart), formatDate(n.EarliestFinish),
			formatDays(n.TotalSlack), formatDays(n.FreeSlack))
	}

	chart := Gantt{Width: p.Width, Critical: sched.CriticalSet()}
	if out := chart.Render(res.Tasks, p.st); out != "" {
		p.printf("\n%s", out)
	}
}

func (p *Printer) conflicts(cs []conflict.Conflict) {
	if len(cs) == 0 {
		return
	}
	p.section(fmt.Sprintf("Conflicts (%d)", len(cs)))
	for _, c := range cs {
		p.printf("  %s %-24s %s\n", p.severity(c.Severity), c.Type, c.Description)
		p.printf("    %s %s\n", p.st.muted.Render("resolution:"), c.Resolution)
		if c.Impact.ScheduleDelayDays > 0 {
			p.printf("    %s %dd, cost %.0f\n", p.st.muted.Render("impact:"), c.Impact.ScheduleDelayDays, c.Impact.Cost)
		}
	}
}

func (p *Printer) severity(s conflict.Severity) string {
	label := fmt.Sprintf("[%s]", s)
	switch s {
	case conflict.SeverityCritical, conflict.SeverityHigh:
		return p.st.danger.Render(label)
	case conflict.SeverityMedium:
		return p.st.warning.Render(label)
	}
	return p.st.muted.Render(label)
}

func (p *Printer) bottlenecks(res *engine.Result) {
	if len(res.Bottlenecks) == 0 {
		return
	}
	p.section(fmt.Sprintf("Bottlenecks (%d)", len(res.Bottlenecks)))
	for _, b := range res.Bottlenecks {
		subject := b.TaskID
		if b.ResourceID != "" {
			subject = b.ResourceID
		}
		sev := fmt.Sprintf("%.2f", b.Severity)
		if b.Severity >= 0.7 {
			sev = p.st.danger.Render(sev)
		} else {
			sev = p.st.warning.Render(sev)
		}
		p.printf("  %s %-10s %-16s delay %s, %d affected\n",
			sev, b.Type, subject, formatFloatDays(b.Impact.DelayDays), len(b.Impact.AffectedTasks))
		p.printf("    %s %s (%s effort)\n", p.st.muted.Render("mitigation:"), b.Mitigation.Strategy, b.Mitigation.Effort)
	}
}

func (p *Printer) allocations(res *engine.Result) {
	var moved int
	for _, a := range res.Allocations {
		if a.Rescheduled {
			moved++
		}
	}
	if len(res.Allocations) == 0 {
		return
	}
	p.section(fmt.Sprintf("Allocations (%d, %d rescheduled)", len(res.Allocations), moved))
	for _, a := range res.Allocations {
		line := fmt.Sprintf("  %-16s %-12s %3.0f%%  %s → %s", a.TaskID, a.ResourceID, a.Percentage, formatDate(a.Start), formatDate(a.End))
		if a.Rescheduled {
			line += " " + p.st.warning.Render("(moved)")
		}
		p.printf("%s\n", line)
	}
}

func (p *Printer) windows(res *engine.Result) {
	if len(res.TimeWindows) == 0 {
		return
	}
	p.section(fmt.Sprintf("Time Windows (%d)", len(res.TimeWindows)))
	for i, w := range res.TimeWindows {
		if i == maxWindowRows {
			p.printf("  %s\n", p.st.muted.Render(fmt.Sprintf("… %d more", len(res.TimeWindows)-maxWindowRows)))
			break
		}
		crit := ""
		if len(w.CriticalTaskIDs) > 0 {
			crit = p.st.critical.Render(fmt.Sprintf(" %d critical", len(w.CriticalTaskIDs)))
		}
		p.printf("  %s  %3d tasks%s\n", formatDate(w.Start), w.TaskCount, crit)
	}
}

func (p *Printer) progress(res *engine.Result) {
	m := res.Progress
	p.section("Progress")
	p.field("overall", "%s %.1f%%", Bar(m.OverallProgress, 20), m.OverallProgress)
	p.field("SPI / CPI", "%s / %s", p.index(m.SPI), p.index(m.CPI))
	p.field("EV / PV / AC", "%.0f / %.0f / %.0f", m.EarnedValue, m.PlannedValue, m.ActualCost)
	p.field("EAC / VAC", "%.0f / %.0f", m.EstimateAtCompletion, m.VarianceAtCompletion)
}

func (p *Printer) index(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	if v < 0.9 {
		return p.st.danger.Render(s)
	}
	if v < 1 {
		return p.st.warning.Render(s)
	}
	return p.st.success.Render(s)
}

func (p *Printer) baseline(vs []engine.BaselineVariance) {
	if len(vs) == 0 {
		return
	}
	p.section(fmt.Sprintf("Baseline Variance (%d)", len(vs)))
	for _, v := range vs {
		switch v.Kind {
		case engine.VarianceAdded:
			p.printf("  %s %s\n", p.st.success.Render("+"), v.TaskID)
		case engine.VarianceRemoved:
			p.printf("  %s %s\n", p.st.danger.Render("-"), v.TaskID)
		default:
			slip := fmt.Sprintf("%+.1fd", v.SlipDays())
			if v.FinishSlip > 0 {
				slip = p.st.warning.Render(slip)
			}
			p.printf("  %s %-16s finish %s\n", p.st.active.Render("~"), v.TaskID, slip)
		}
	}
}

func (p *Printer) warnings(ws []engine.Warning) {
	if len(ws) == 0 {
		return
	}
	p.section(fmt.Sprintf("Warnings (%d)", len(ws)))
	for _, w := range ws {
		p.printf("  %s %s\n", p.st.warning.Render(iconWarning), w.Message)
	}
}

// ValidationResult prints the outcome of validating a plan.
func (p *Printer) ValidationResult(name string, taskCount int, err error) {
	if err == nil {
		p.printf("%s — %d task(s), no errors\n", p.st.success.Render(fmt.Sprintf("%s plan %q", iconDone, name)), taskCount)
		return
	}
	p.printf("%s\n  %s\n", p.st.danger.Render(fmt.Sprintf("%s plan %q", iconFailed, name)), err)
}

// Runs prints a table of recorded runs.
func (p *Printer) Runs(runs []history.Run) {
	if len(runs) == 0 {
		p.printf("%s\n", p.st.muted.Render("no recorded runs"))
		return
	}
	p.printf("%s\n", p.st.section.Render(fmt.Sprintf("%-36s  %-20s  %-16s  %5s  %5s  %5s  %6s", "RUN", "PLAN", "WHEN", "TASKS", "CRIT", "CONF", "PROG")))
	for _, r := range runs {
		p.printf("%-36s  %-20s  %-16s  %5d  %5d  %5d  %5.1f%%\n",
			r.ID, truncate(r.Plan, 20), r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Tasks, r.Critical, r.Conflicts, r.Progress)
	}
}

// Reloaded prints a one-line notice for a watch-mode reload.
func (p *Printer) Reloaded(path string, err error) {
	stamp := p.st.muted.Render(time.Now().Format("15:04:05"))
	if err != nil {
		p.printf("%s %s %s: %v\n", stamp, p.st.danger.Render(iconFailed), path, err)
		return
	}
	p.printf("%s %s %s\n", stamp, p.st.active.Render(iconWorking), path)
}

// Bar returns a text progress bar for pct in [0, 100].
func Bar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	pct = timeline.ClampProgress(pct)
	filled := int(pct / 100 * float64(width))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}

func formatDays(d time.Duration) string {
	return formatFloatDays(timeline.Days(d))
}

func formatFloatDays(days float64) string {
	if days == float64(int64(days)) {
		return fmt.Sprintf("%dd", int64(days))
	}
	return fmt.Sprintf("%.1fd", days)
}

func formatElapsed(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
