package formatter

import (
	"github.com/retainer-prof/pkg/model"
	"github.com/retainer-prof/pkg/utils"
)

// CensusFormatter formats the retainer-set census of a completed task.
type CensusFormatter struct {
	// TopN bounds the sets printed; zero prints 10.
	TopN int
}

// SupportedStatuses returns the statuses this formatter handles.
func (f *CensusFormatter) SupportedStatuses() []model.TaskStatus {
	return []model.TaskStatus{model.TaskStatusCompleted}
}

func (f *CensusFormatter) topN() int {
	if f.TopN <= 0 {
		return 10
	}
	return f.TopN
}

// Format outputs the census to the logger.
func (f *CensusFormatter) Format(rep *model.Report, log utils.Logger) {
	log.Info("=== Retainer Profile ===")
	log.Info("Task UUID:      %s", rep.TaskUUID)
	log.Info("Snapshot:       %s", rep.InputFile)
	log.Info("Scheme:         %s", rep.Scheme)
	log.Info("Live Objects:   %d (%d words)", rep.TotalObjects, rep.TotalWords)
	log.Info("Unreached:      %d", rep.Unreached)
	log.Info("")

	if p := rep.Pass; p != nil {
		log.Info("=== Pass Statistics ===")
		log.Info("  Objects visited:   %d", p.ObjectsVisited)
		log.Info("  Visit events:      %d (avg %.3f per object)", p.VisitEvents, p.AvgVisits)
		log.Info("  Retainer sets:     %d (%d new)", p.RetainerSets, p.NewSets)
		log.Info("  Stack chunks:      %d, max depth %d, max nesting %d", p.StackChunks, p.MaxStackDepth, p.MaxNestedDepth)
		log.Info("  Duration:          %dms", p.DurationMS)
		log.Info("")
	}

	log.Info("=== Top Retainer Sets ===")
	for i, s := range rep.TopSets(f.topN()) {
		log.Info("  %2d. %6.2f%%  %8d words  %6d objs  %s",
			i+1, s.Percent, s.Words, s.Objects, truncateString(setLabel(s.Retainers), 100))
	}
	if rest := len(rep.Sets) - f.topN(); rest > 0 {
		log.Info("  ... and %d more sets", rest)
	}
	log.Info("")

	printOutputFiles(rep, log)
}

// FormatSummary returns a summary map for serialization.
func (f *CensusFormatter) FormatSummary(rep *model.Report) map[string]interface{} {
	summary := map[string]interface{}{
		"task_uuid":     rep.TaskUUID,
		"status":        rep.Status.String(),
		"scheme":        rep.Scheme,
		"total_objects": rep.TotalObjects,
		"total_words":   rep.TotalWords,
		"unreached":     rep.Unreached,
		"set_count":     len(rep.Sets),
		"top_sets":      rep.TopSets(f.topN()),
	}
	if rep.Pass != nil {
		summary["pass"] = rep.Pass
	}
	summary["output_files"] = rep.OutputFiles
	return summary
}
