package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/parsec/internal/timeline"
)

const tomlPlan = `
schema = "1.2.0"
name = "Sol 1042 traverse"

[[tasks]]
id = "drive"
name = "Drive to ridge"
start = "2025-01-01T00:00:00Z"
end = "2025-01-03"
resource = "rover"
priority = "high"

[[tasks]]
id = "image"
name = "Panorama"
start = "2025-01-03"
end = "1736121600000"
predecessors = ["drive"]
status = "in_progress"
progress = 40

[tasks.metadata]
camera = "mastcam"

[[resources]]
id = "rover"
name = "Rover"
capacity = 1

[[resources.availability]]
start = "2025-01-01"
end = "2025-02-01"

[[events]]
id = "uplink"
timestamp = "2025-01-02 12:00:00"
type = "command"
related_tasks = ["drive"]
`

const yamlPlan = `
name: yaml plan
tasks:
  - id: a
    name: A
    start: "2025-01-01"
    end: "2025-01-02"
  - id: b
    name: B
    start: "2025-01-02"
    end: "2025-01-04"
    predecessors: [a]
events:
  - id: m
    type: milestone
    timestamp: "2025-01-04"
    severity: critical
`

func day(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_TOML(t *testing.T) {
	t.Parallel()
	p, err := Load(writeFile(t, "traverse.toml", tomlPlan))
	require.NoError(t, err)

	assert.Equal(t, "Sol 1042 traverse", p.Name)
	assert.Equal(t, "1.2.0", p.Schema.String())
	require.Len(t, p.Tasks, 2)
	require.Len(t, p.Resources, 1)
	require.Len(t, p.Events, 1)

	drive := p.Tasks[0]
	assert.True(t, drive.Start.Equal(day(1)))
	assert.True(t, drive.End.Equal(day(3)))
	assert.Equal(t, timeline.PriorityHigh, drive.Priority)

	img := p.Tasks[1]
	assert.True(t, img.End.Equal(day(6)), "unix milliseconds: got %v", img.End)
	assert.Equal(t, []string{"drive"}, img.Predecessors)
	assert.Equal(t, "mastcam", img.Metadata["camera"])
	assert.Equal(t, 40.0, img.Progress)

	assert.Len(t, p.Resources[0].Availability, 1)
	assert.True(t, p.Events[0].Timestamp.Equal(day(2).Add(12*time.Hour)))
	assert.Equal(t, timeline.EventCommand, p.Events[0].Type)

	// The raw status string is kept; the validator normalizes it.
	snap, err := timeline.Validate(p.Tasks, p.Resources, p.Events)
	require.NoError(t, err)
	assert.Equal(t, timeline.StatusInProgress, snap.Tasks[1].Status)
}

func TestLoad_YAMLDefaultsName(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "ops.yml", yamlPlan)
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yaml plan", p.Name)
	assert.Equal(t, CurrentSchema, p.Schema.String())
	assert.Equal(t, timeline.SeverityCritical, p.Events[0].Severity)

	in := p.Input()
	assert.Len(t, in.Tasks, 2)
	assert.Len(t, in.Events, 1)
}

func TestLoad_NameFromFile(t *testing.T) {
	t.Parallel()
	p, err := Load(writeFile(t, "sol-7.json", `{"tasks":[{"id":"a","name":"A","start":"2025-01-01","end":"2025-01-02"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "sol-7", p.Name)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
		is      error
		msg     string
	}{
		{name: "unknown extension", file: "plan.xml", content: "<plan/>", is: ErrUnknownFormat},
		{name: "schema too new", file: "p.toml", content: `schema = "2.0.0"`, is: ErrUnsupportedSchema},
		{name: "schema garbage", file: "p.toml", content: `schema = "banana"`, is: ErrUnsupportedSchema},
		{
			name:    "bad timestamp",
			file:    "p.yaml",
			content: "tasks:\n  - id: a\n    name: A\n    start: soon\n    end: \"2025-01-02\"\n",
			is:      timeline.ErrInvalidTimestamp,
			msg:     "tasks[0].start",
		},
		{name: "malformed toml", file: "p.toml", content: "[[tasks]\n", msg: "parsing toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.msg != "" {
				assert.ErrorContains(t, err, tt.msg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDocument_RoundTrip(t *testing.T) {
	t.Parallel()
	tasks := []timeline.Task{
		{ID: "a", Name: "A", Start: day(1), End: day(2).Add(90 * time.Minute), Status: timeline.StatusCompleted, Priority: timeline.PriorityLow},
		{ID: "b", Name: "B", Start: day(2), End: day(5), Predecessors: []string{"a"}, Resource: "rover"},
	}
	resources := []timeline.Resource{{ID: "rover", Name: "Rover", Capacity: 2}}

	for _, f := range []Format{FormatTOML, FormatYAML, FormatJSON} {
		t.Run(string(f), func(t *testing.T) {
			t.Parallel()
			data, err := FromTimeline("round trip", tasks, resources, nil).Encode(f)
			require.NoError(t, err)

			p, err := Decode(data, f)
			require.NoError(t, err)
			assert.Equal(t, "round trip", p.Name)
			require.Len(t, p.Tasks, 2)
			for i := range tasks {
				assert.True(t, p.Tasks[i].Start.Equal(tasks[i].Start), "%s start", tasks[i].ID)
				assert.True(t, p.Tasks[i].End.Equal(tasks[i].End), "%s end", tasks[i].ID)
				assert.Equal(t, tasks[i].Status, p.Tasks[i].Status)
			}
			assert.Equal(t, []string{"a"}, p.Tasks[1].Predecessors)
			assert.Equal(t, 2, p.Resources[0].Capacity)
		})
	}
}

func TestCheckSchema(t *testing.T) {
	t.Parallel()
	for _, v := range []string{"", "1.0.0", "1.9.3", "v1.1"} {
		_, err := CheckSchema(v)
		assert.NoError(t, err, v)
	}
	for _, v := range []string{"0.9.0", "2.0.0", "x"} {
		_, err := CheckSchema(v)
		assert.ErrorIs(t, err, ErrUnsupportedSchema, v)
	}
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()
	tests := map[string]Format{"a.toml": FormatTOML, "b.YAML": FormatYAML, "c.yml": FormatYAML, "d.json": FormatJSON}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := FormatFromPath("plan")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
