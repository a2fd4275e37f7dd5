// Package history persists analysis results in a local SQLite database so
// that earlier runs of a plan can be listed and inspected later.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/parsec/internal/engine"
)

// ErrRunNotFound is returned by Get when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 20

// timestampLayout has a fixed-width fraction so that created_at sorts
// lexically in chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    plan         TEXT NOT NULL,
    created_at   TEXT NOT NULL,
    tasks        INTEGER NOT NULL,
    completed    INTEGER NOT NULL DEFAULT 0,
    critical     INTEGER NOT NULL DEFAULT 0,
    conflicts    INTEGER NOT NULL DEFAULT 0,
    bottlenecks  INTEGER NOT NULL DEFAULT 0,
    warnings     INTEGER NOT NULL DEFAULT 0,
    progress     REAL NOT NULL DEFAULT 0,
    elapsed_us   INTEGER NOT NULL DEFAULT 0,
    result       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_plan_created ON runs (plan, created_at);
`

// Run is one recorded analysis. Result is only populated by Get.
type Run struct {
	ID          string         `json:"id" yaml:"id"`
	Plan        string         `json:"plan" yaml:"plan"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
	Tasks       int            `json:"tasks" yaml:"tasks"`
	Completed   int            `json:"completed" yaml:"completed"`
	Critical    int            `json:"critical" yaml:"critical"`
	Conflicts   int            `json:"conflicts" yaml:"conflicts"`
	Bottlenecks int            `json:"bottlenecks" yaml:"bottlenecks"`
	Warnings    int            `json:"warnings" yaml:"warnings"`
	Progress    float64        `json:"progress" yaml:"progress"`
	Elapsed     time.Duration  `json:"elapsed" yaml:"elapsed"`
	Result      *engine.Result `json:"result,omitempty" yaml:"result,omitempty"`
}

// Store is a SQLite-backed run history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the history database at path. The parent
// directory is created when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY between
	// pooled connections of the same process.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores res under a fresh run id and returns the summary row.
func (s *Store) Record(ctx context.Context, planName string, res *engine.Result) (Run, error) {
	if res == nil {
		return Run{}, errors.New("history: record: nil result")
	}
	blob, err := json.Marshal(res)
	if err != nil {
		return Run{}, fmt.Errorf("history: encode result: %w", err)
	}

	run := summarize(res)
	run.ID = uuid.NewString()
	run.Plan = planName
	run.CreatedAt = s.now().UTC().Truncate(time.Microsecond)

	const q = `INSERT INTO runs
		(id, plan, created_at, tasks, completed, critical, conflicts, bottlenecks, warnings, progress, elapsed_us, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		run.ID, run.Plan, run.CreatedAt.Format(timestampLayout),
		run.Tasks, run.Completed, run.Critical, run.Conflicts, run.Bottlenecks, run.Warnings,
		run.Progress, run.Elapsed.Microseconds(), string(blob),
	); err != nil {
		return Run{}, fmt.Errorf("history: insert run: %w", err)
	}
	return run, nil
}

func summarize(res *engine.Result) Run {
	st := res.Statistics
	return Run{
		Tasks:       st.TaskCount,
		Completed:   st.CompletedTasks,
		Critical:    st.CriticalTasks,
		Conflicts:   st.ConflictCount,
		Bottlenecks: st.BottleneckCount,
		Warnings:    len(res.Warnings),
		Progress:    res.Progress.OverallProgress,
		Elapsed:     st.ProcessingTime,
	}
}

// List returns the most recent runs first. An empty plan lists runs of
// every plan.
func (s *Store) List(ctx context.Context, plan string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	const cols = `id, plan, created_at, tasks, completed, critical, conflicts, bottlenecks, warnings, progress, elapsed_us`

	var (
		rows *sql.Rows
		err  error
	)
	if plan == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+cols+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+cols+` FROM runs WHERE plan = ? ORDER BY created_at DESC, id LIMIT ?`, plan, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return out, nil
}

// Get returns the run with the given id, including its decoded result.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	const q = `SELECT id, plan, created_at, tasks, completed, critical, conflicts, bottlenecks, warnings, progress, elapsed_us, result
		FROM runs WHERE id = ?`

	var (
		r       Run
		ts      string
		elapsed int64
		blob    string
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&r.ID, &r.Plan, &ts, &r.Tasks, &r.Completed, &r.Critical,
		&r.Conflicts, &r.Bottlenecks, &r.Warnings, &r.Progress, &elapsed, &blob,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("history: get run %q: %w", id, err)
	}
	if r.CreatedAt, err = time.Parse(timestampLayout, ts); err != nil {
		return Run{}, fmt.Errorf("history: parse run timestamp: %w", err)
	}
	r.Elapsed = time.Duration(elapsed) * time.Microsecond

	var res engine.Result
	if err := json.Unmarshal([]byte(blob), &res); err != nil {
		return Run{}, fmt.Errorf("history: decode result: %w", err)
	}
	r.Result = &res
	return r, nil
}

// Delete removes a run. Deleting an unknown id returns ErrRunNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("history: delete run %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: delete rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		r       Run
		ts      string
		elapsed int64
	)
	if err := rows.Scan(&r.ID, &r.Plan, &ts, &r.Tasks, &r.Completed, &r.Critical,
		&r.Conflicts, &r.Bottlenecks, &r.Warnings, &r.Progress, &elapsed); err != nil {
		return Run{}, fmt.Errorf("history: scan run: %w", err)
	}
	t, err := time.Parse(timestampLayout, ts)
	if err != nil {
		return Run{}, fmt.Errorf("history: parse run timestamp: %w", err)
	}
	r.CreatedAt = t
	r.Elapsed = time.Duration(elapsed) * time.Microsecond
	return r, nil
}
