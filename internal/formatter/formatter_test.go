package formatter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retainer-prof/pkg/model"
	"github.com/retainer-prof/pkg/utils"
)

func sampleReport() *model.Report {
	return &model.Report{
		TaskUUID:     "task-1",
		InputFile:    "heap.json",
		Scheme:       "ccs",
		Status:       model.TaskStatusCompleted,
		TotalObjects: 5,
		TotalWords:   20,
		Pass:         &model.PassStats{ObjectsVisited: 5, VisitEvents: 7, AvgVisits: 1.4, RetainerSets: 3},
		Sets: []model.SetUsage{
			{SetID: 2, Retainers: []string{"Main.main"}, Objects: 3, Words: 12, Percent: 60},
			{SetID: 1, Retainers: []string{"SYSTEM", "Main.main"}, Objects: 2, Words: 8, Percent: 40},
		},
		OutputFiles: []model.OutputFile{{Name: "census", LocalPath: "/out/census.json", COSKey: "census/task-1.json.zst"}},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport(), 0))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "# scheme=ccs objects=5 words=20 unreached=0", lines[0])
	assert.Equal(t, "2  3  12  {Main.main}", lines[1])
	assert.Equal(t, "1  2  8  {SYSTEM, Main.main}", lines[2])
}

func TestWriteTextTopN(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport(), 1))
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(5)

	assert.IsType(t, &CensusFormatter{}, r.Get(model.TaskStatusCompleted))
	assert.IsType(t, &DefaultFormatter{}, r.Get(model.TaskStatusFailed))
	assert.IsType(t, &DefaultFormatter{}, r.Get(model.TaskStatusEmpty))
	assert.Nil(t, r.FormatSummary(nil))
}

func TestCensusFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	log := utils.NewDefaultLogger(utils.LevelInfo, &buf)

	NewRegistry(1).Format(sampleReport(), log)

	out := buf.String()
	assert.Contains(t, out, "Task UUID:      task-1")
	assert.Contains(t, out, "{Main.main}")
	assert.NotContains(t, out, "{SYSTEM, Main.main}")
	assert.Contains(t, out, "... and 1 more sets")
	assert.Contains(t, out, "cos: census/task-1.json.zst")
}

func TestCensusFormatter_FormatSummary(t *testing.T) {
	summary := NewRegistry(1).FormatSummary(sampleReport())

	assert.Equal(t, "task-1", summary["task_uuid"])
	assert.Equal(t, "completed", summary["status"])
	assert.Equal(t, 2, summary["set_count"])
	top, ok := summary["top_sets"].([]model.SetUsage)
	require.True(t, ok)
	assert.Len(t, top, 1)
	assert.NotNil(t, summary["pass"])
}

func TestDefaultFormatter(t *testing.T) {
	rep := sampleReport()
	rep.Status = model.TaskStatusFailed
	rep.Error = "invalid object EVACUATED in retainClosure"

	var buf bytes.Buffer
	NewRegistry(0).Format(rep, utils.NewDefaultLogger(utils.LevelDebug, &buf))
	assert.Contains(t, buf.String(), "Status:         failed")
	assert.Contains(t, buf.String(), "EVACUATED")

	summary := NewRegistry(0).FormatSummary(rep)
	assert.Equal(t, "failed", summary["status"])
	assert.Equal(t, rep.Error, summary["error"])
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "ab...", truncateString("abcdefgh", 5))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}
