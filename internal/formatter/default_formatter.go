package formatter

import (
	"github.com/retainer-prof/pkg/model"
	"github.com/retainer-prof/pkg/utils"
)

// DefaultFormatter is the fallback for tasks without a census.
type DefaultFormatter struct{}

// SupportedStatuses returns nil as this is a fallback formatter.
func (f *DefaultFormatter) SupportedStatuses() []model.TaskStatus {
	return nil
}

// Format outputs the task outcome to the logger.
func (f *DefaultFormatter) Format(rep *model.Report, log utils.Logger) {
	log.Info("=== Retainer Profile ===")
	log.Info("Task UUID:      %s", rep.TaskUUID)
	log.Info("Snapshot:       %s", rep.InputFile)
	log.Info("Status:         %s", rep.Status)
	if rep.Error != "" {
		log.Error("Error:          %s", rep.Error)
	}
	log.Info("")
	printOutputFiles(rep, log)
}

// FormatSummary returns a summary map for serialization.
func (f *DefaultFormatter) FormatSummary(rep *model.Report) map[string]interface{} {
	summary := map[string]interface{}{
		"task_uuid":    rep.TaskUUID,
		"status":       rep.Status.String(),
		"scheme":       rep.Scheme,
		"output_files": rep.OutputFiles,
	}
	if rep.Error != "" {
		summary["error"] = rep.Error
	}
	return summary
}
