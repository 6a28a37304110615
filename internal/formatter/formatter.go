// Package formatter renders profiling reports.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/retainer-prof/pkg/model"
	"github.com/retainer-prof/pkg/utils"
)

// ReportFormatter is the interface for formatting profiling reports.
type ReportFormatter interface {
	// Format outputs the report to the logger.
	Format(r *model.Report, log utils.Logger)

	// FormatSummary returns a summary map for serialization.
	FormatSummary(r *model.Report) map[string]interface{}

	// SupportedStatuses returns the task statuses this formatter handles.
	SupportedStatuses() []model.TaskStatus
}

// Registry manages formatter instances.
type Registry struct {
	formatters map[model.TaskStatus]ReportFormatter
	fallback   ReportFormatter
}

// NewRegistry creates a registry with the census formatter registered for
// completed tasks. topN bounds the sets printed.
func NewRegistry(topN int) *Registry {
	r := &Registry{
		formatters: make(map[model.TaskStatus]ReportFormatter),
		fallback:   &DefaultFormatter{},
	}
	r.Register(&CensusFormatter{TopN: topN})
	return r
}

// Register registers a formatter.
func (r *Registry) Register(f ReportFormatter) {
	for _, s := range f.SupportedStatuses() {
		r.formatters[s] = f
	}
}

// Get returns the formatter for a status.
func (r *Registry) Get(status model.TaskStatus) ReportFormatter {
	if f, ok := r.formatters[status]; ok {
		return f
	}
	return r.fallback
}

// Format formats the report using the appropriate formatter.
func (r *Registry) Format(rep *model.Report, log utils.Logger) {
	if rep == nil {
		return
	}
	r.Get(rep.Status).Format(rep, log)
}

// FormatSummary returns a summary map using the appropriate formatter.
func (r *Registry) FormatSummary(rep *model.Report) map[string]interface{} {
	if rep == nil {
		return nil
	}
	return r.Get(rep.Status).FormatSummary(rep)
}

// WriteText writes the census table, one line per set:
//
//	<set-id>  <objects>  <words>  {r1, r2}
func WriteText(w io.Writer, rep *model.Report, topN int) error {
	if _, err := fmt.Fprintf(w, "# scheme=%s objects=%d words=%d unreached=%d\n",
		rep.Scheme, rep.TotalObjects, rep.TotalWords, rep.Unreached); err != nil {
		return err
	}
	for _, s := range rep.TopSets(topN) {
		if _, err := fmt.Fprintf(w, "%d  %d  %d  %s\n", s.SetID, s.Objects, s.Words, setLabel(s.Retainers)); err != nil {
			return err
		}
	}
	return nil
}

func setLabel(retainers []string) string {
	return "{" + strings.Join(retainers, ", ") + "}"
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func printOutputFiles(rep *model.Report, log utils.Logger) {
	if len(rep.OutputFiles) == 0 {
		return
	}
	log.Info("=== Output Files ===")
	for _, file := range rep.OutputFiles {
		if file.COSKey != "" {
			log.Info("  %s: %s (cos: %s)", file.Name, file.LocalPath, file.COSKey)
			continue
		}
		log.Info("  %s: %s", file.Name, file.LocalPath)
	}
}
