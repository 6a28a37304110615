package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/retainer-prof/pkg/model"
)

// ProfilePass represents the profile_passes table.
type ProfilePass struct {
	ID             int64            `gorm:"column:id;primaryKey;autoIncrement"`
	TID            string           `gorm:"column:tid;type:varchar(64);uniqueIndex"`
	InputFile      string           `gorm:"column:input_file;type:varchar(512)"`
	Scheme         string           `gorm:"column:scheme;type:varchar(16)"`
	Status         model.TaskStatus `gorm:"column:status"`
	StatusInfo     string           `gorm:"column:status_info;type:text"`
	Generation     int              `gorm:"column:generation"`
	Marker         uint32           `gorm:"column:marker"`
	ObjectsVisited int              `gorm:"column:objects_visited"`
	VisitEvents    int              `gorm:"column:visit_events"`
	AvgVisits      float64          `gorm:"column:avg_visits"`
	RetainerSets   int              `gorm:"column:retainer_sets"`
	StackChunks    int              `gorm:"column:stack_chunks"`
	MaxStackDepth  int              `gorm:"column:max_stack_depth"`
	MaxNestedDepth int              `gorm:"column:max_nested_depth"`
	DurationMS     int64            `gorm:"column:duration_ms"`
	TotalObjects   int              `gorm:"column:total_objects"`
	TotalWords     int              `gorm:"column:total_words"`
	Unreached      int              `gorm:"column:unreached"`
	CreateTime     time.Time        `gorm:"column:create_time;autoCreateTime"`
}

// TableName returns the table name for ProfilePass.
func (ProfilePass) TableName() string {
	return "profile_passes"
}

// NewProfilePass flattens a report into a row.
func NewProfilePass(rep *model.Report) *ProfilePass {
	p := &ProfilePass{
		TID:          rep.TaskUUID,
		InputFile:    rep.InputFile,
		Scheme:       rep.Scheme,
		Status:       rep.Status,
		StatusInfo:   rep.Error,
		TotalObjects: rep.TotalObjects,
		TotalWords:   rep.TotalWords,
		Unreached:    rep.Unreached,
	}
	if s := rep.Pass; s != nil {
		p.Generation = s.Generation
		p.Marker = s.Marker
		p.ObjectsVisited = s.ObjectsVisited
		p.VisitEvents = s.VisitEvents
		p.AvgVisits = s.AvgVisits
		p.RetainerSets = s.RetainerSets
		p.StackChunks = s.StackChunks
		p.MaxStackDepth = s.MaxStackDepth
		p.MaxNestedDepth = s.MaxNestedDepth
		p.DurationMS = s.DurationMS
	}
	return p
}

// ToModel converts ProfilePass to a report without census rows.
func (p *ProfilePass) ToModel() *model.Report {
	return &model.Report{
		TaskUUID:     p.TID,
		InputFile:    p.InputFile,
		Scheme:       p.Scheme,
		Status:       p.Status,
		Error:        p.StatusInfo,
		TotalObjects: p.TotalObjects,
		TotalWords:   p.TotalWords,
		Unreached:    p.Unreached,
		CreatedAt:    p.CreateTime,
		Sets:         make([]model.SetUsage, 0),
		OutputFiles:  make([]model.OutputFile, 0),
		Pass: &model.PassStats{
			Generation:     p.Generation,
			Marker:         p.Marker,
			ObjectsVisited: p.ObjectsVisited,
			VisitEvents:    p.VisitEvents,
			AvgVisits:      p.AvgVisits,
			RetainerSets:   p.RetainerSets,
			StackChunks:    p.StackChunks,
			MaxStackDepth:  p.MaxStackDepth,
			MaxNestedDepth: p.MaxNestedDepth,
			DurationMS:     p.DurationMS,
		},
	}
}

// CensusRow represents the census_rows table: one retainer set of one pass.
type CensusRow struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TID       string    `gorm:"column:tid;type:varchar(64);index:idx_census_tid_rank,priority:1"`
	Rank      int       `gorm:"column:set_rank;index:idx_census_tid_rank,priority:2"`
	SetID     uint32    `gorm:"column:set_id"`
	Retainers JSONField `gorm:"column:retainers;type:json"`
	Objects   int       `gorm:"column:objects"`
	Words     int       `gorm:"column:words"`
	Percent   float64   `gorm:"column:percent"`
}

// TableName returns the table name for CensusRow.
func (CensusRow) TableName() string {
	return "census_rows"
}

// NewCensusRows converts the census of a report; Rank follows report order.
func NewCensusRows(rep *model.Report) ([]*CensusRow, error) {
	rows := make([]*CensusRow, len(rep.Sets))
	for i, s := range rep.Sets {
		retainers, err := json.Marshal(s.Retainers)
		if err != nil {
			return nil, err
		}
		rows[i] = &CensusRow{
			TID:       rep.TaskUUID,
			Rank:      i,
			SetID:     s.SetID,
			Retainers: retainers,
			Objects:   s.Objects,
			Words:     s.Words,
			Percent:   s.Percent,
		}
	}
	return rows, nil
}

// ToModel converts CensusRow to model.SetUsage.
func (r *CensusRow) ToModel() (model.SetUsage, error) {
	u := model.SetUsage{
		SetID:   r.SetID,
		Objects: r.Objects,
		Words:   r.Words,
		Percent: r.Percent,
	}
	if r.Retainers != nil {
		if err := json.Unmarshal(r.Retainers, &u.Retainers); err != nil {
			return u, err
		}
	}
	return u, nil
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("unsupported type for JSONField")
	}
	return nil
}
