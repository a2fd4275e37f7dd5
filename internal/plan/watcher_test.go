package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalPlan = `
[[tasks]]
id = "a"
name = "A"
start = "2025-01-01"
end = "2025-01-02"
`

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.toml")
	if err := os.WriteFile(path, []byte(minimalPlan), 0644); err != nil {
		t.Fatalf("failed to create plan file: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	updated := minimalPlan + `
[[tasks]]
id = "b"
name = "B"
start = "2025-01-02"
end = "2025-01-03"
`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to update plan file: %v", err)
	}

	select {
	case change := <-w.Changes:
		if change.Err != nil {
			t.Fatalf("reload error: %v", change.Err)
		}
		if len(change.Plan.Tasks) != 2 {
			t.Errorf("reloaded %d tasks, want 2", len(change.Plan.Tasks))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestWatcher_ReportsDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.toml")
	if err := os.WriteFile(path, []byte(minimalPlan), 0644); err != nil {
		t.Fatalf("failed to create plan file: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("[[tasks]\n"), 0644); err != nil {
		t.Fatalf("failed to corrupt plan file: %v", err)
	}

	select {
	case change := <-w.Changes:
		if change.Err == nil || change.Plan != nil {
			t.Errorf("change = %+v, want a decode error", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.toml")
	if err := os.WriteFile(path, []byte(minimalPlan), 0644); err != nil {
		t.Fatalf("failed to create plan file: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	select {
	case change := <-w.Changes:
		t.Errorf("unexpected change event: %+v", change)
	case <-time.After(300 * time.Millisecond):
		// Expected: no events for unrelated files.
	}
}
