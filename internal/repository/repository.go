// Package repository persists profiling passes and their retainer-set
// census.
package repository

import (
	"context"

	"github.com/retainer-prof/pkg/model"
)

// CensusRepository stores completed passes together with their census.
type CensusRepository interface {
	// SavePass stores the pass statistics and census of a report,
	// replacing any earlier record for the same task.
	SavePass(ctx context.Context, rep *model.Report) error

	// GetPassByUUID loads a stored report, census included.
	GetPassByUUID(ctx context.Context, taskUUID string) (*model.Report, error)

	// ListCensus returns the stored census of a task, largest set first.
	// A non-positive limit returns every row.
	ListCensus(ctx context.Context, taskUUID string, limit int) ([]model.SetUsage, error)

	// UpdateStatus updates the status of a stored pass.
	UpdateStatus(ctx context.Context, taskUUID string, status model.TaskStatus, info string) error
}
