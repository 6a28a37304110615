package model

import (
	"time"
)

// PassStats summarizes one retainer pass.
type PassStats struct {
	Generation     int     `json:"generation"`
	Marker         uint32  `json:"marker"`
	ObjectsVisited int     `json:"objects_visited"`
	VisitEvents    int     `json:"visit_events"`
	AvgVisits      float64 `json:"avg_visits"`
	RetainerSets   int     `json:"retainer_sets"`
	NewSets        int     `json:"new_sets"`
	StackChunks    int     `json:"stack_chunks"`
	MaxStackDepth  int     `json:"max_stack_depth"`
	MaxNestedDepth int     `json:"max_nested_depth"`
	DurationMS     int64   `json:"duration_ms"`
}

// SetUsage is the share of the heap kept alive by one retainer set.
type SetUsage struct {
	SetID     uint32   `json:"set_id"`
	Retainers []string `json:"retainers"`
	Objects   int      `json:"objects"`
	Words     int      `json:"words"`
	Percent   float64  `json:"percent"`
}

// OutputFile describes a file produced by a run.
type OutputFile struct {
	Name      string `json:"name"`
	LocalPath string `json:"local_path"`
	COSKey    string `json:"cos_key,omitempty"`
}

// Report is the outcome of a profiling task.
type Report struct {
	TaskUUID     string       `json:"task_uuid"`
	InputFile    string       `json:"input_file"`
	Scheme       string       `json:"scheme"`
	Status       TaskStatus   `json:"status"`
	Pass         *PassStats   `json:"pass,omitempty"`
	TotalObjects int          `json:"total_objects"`
	TotalWords   int          `json:"total_words"`
	Unreached    int          `json:"unreached"`
	Sets         []SetUsage   `json:"sets"`
	OutputFiles  []OutputFile `json:"output_files"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewReport creates an empty report for task.
func NewReport(task *Task) *Report {
	return &Report{
		TaskUUID:    task.TaskUUID,
		InputFile:   task.InputFile,
		Scheme:      task.Scheme,
		Status:      task.Status,
		Sets:        make([]SetUsage, 0),
		OutputFiles: make([]OutputFile, 0),
		CreatedAt:   task.CreateTime,
	}
}

// TopSets returns at most n sets, largest first.
func (r *Report) TopSets(n int) []SetUsage {
	if n <= 0 || n >= len(r.Sets) {
		return r.Sets
	}
	return r.Sets[:n]
}

// AddOutputFile appends an output file record.
func (r *Report) AddOutputFile(name, localPath string) {
	r.OutputFiles = append(r.OutputFiles, OutputFile{Name: name, LocalPath: localPath})
}
