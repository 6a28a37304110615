package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/retainer-prof/pkg/errors"
	"github.com/retainer-prof/pkg/model"
)

const insertBatchSize = 200

// GormCensusRepository implements CensusRepository using GORM.
type GormCensusRepository struct {
	db *gorm.DB
}

// NewGormCensusRepository creates a new GormCensusRepository.
func NewGormCensusRepository(db *gorm.DB) *GormCensusRepository {
	return &GormCensusRepository{db: db}
}

// SavePass upserts the pass row and replaces its census rows in one
// transaction.
func (r *GormCensusRepository) SavePass(ctx context.Context, rep *model.Report) error {
	rows, err := NewCensusRows(rep)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to encode census rows", err)
	}
	pass := NewProfilePass(rep)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tid"}},
			DoUpdates: clause.AssignmentColumns(passColumns),
		}).Create(pass).Error; err != nil {
			return err
		}
		if err := tx.Where("tid = ?", rep.TaskUUID).Delete(&CensusRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save pass", err)
	}
	return nil
}

var passColumns = []string{
	"input_file", "scheme", "status", "status_info", "generation", "marker",
	"objects_visited", "visit_events", "avg_visits", "retainer_sets",
	"stack_chunks", "max_stack_depth", "max_nested_depth", "duration_ms",
	"total_objects", "total_words", "unreached",
}

// GetPassByUUID loads a stored report, census included.
func (r *GormCensusRepository) GetPassByUUID(ctx context.Context, taskUUID string) (*model.Report, error) {
	var pass ProfilePass
	err := r.db.WithContext(ctx).Where("tid = ?", taskUUID).First(&pass).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "pass not found: %s", taskUUID)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get pass", err)
	}

	rep := pass.ToModel()
	if rep.Sets, err = r.ListCensus(ctx, taskUUID, 0); err != nil {
		return nil, err
	}
	return rep, nil
}

// ListCensus returns the stored census of a task, largest set first.
func (r *GormCensusRepository) ListCensus(ctx context.Context, taskUUID string, limit int) ([]model.SetUsage, error) {
	var rows []CensusRow
	q := r.db.WithContext(ctx).Where("tid = ?", taskUUID).Order("set_rank ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list census", err)
	}

	out := make([]model.SetUsage, len(rows))
	for i := range rows {
		u, err := rows[i].ToModel()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to decode census row", err)
		}
		out[i] = u
	}
	return out, nil
}

// UpdateStatus updates the status of a stored pass.
func (r *GormCensusRepository) UpdateStatus(ctx context.Context, taskUUID string, status model.TaskStatus, info string) error {
	result := r.db.WithContext(ctx).
		Model(&ProfilePass{}).
		Where("tid = ?", taskUUID).
		Updates(map[string]interface{}{
			"status":      status,
			"status_info": info,
		})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to update pass status", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "pass not found: %s", taskUUID)
	}
	return nil
}
