package models

import (
	"time"

	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityMinor    Severity = "MINOR"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityMajor, SeverityCritical:
		return true
	}
	return false
}

// Checklist — чек-лист осмотра на объекте.
type Checklist struct {
	WorkCompleted     bool `json:"workCompleted"`
	QualityAcceptable bool `json:"qualityAcceptable"`
	SpecificationsMet bool `json:"specificationsMet"`
	SafetyCompliant   bool `json:"safetyCompliant"`
	CleanedUp         bool `json:"cleanedUp"`
	DocumentsProvided bool `json:"documentsProvided"`
}

func (c Checklist) Complete() bool {
	return c.WorkCompleted && c.QualityAcceptable && c.SpecificationsMet &&
		c.SafetyCompliant && c.CleanedUp && c.DocumentsProvided
}

// Acceptance — одна приёмка (осмотр) по трейду.
type Acceptance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TradeID uint `gorm:"index;not null" json:"milestone_id"`

	Accepted      bool                          `json:"accepted"`
	Notes         string                        `gorm:"type:text" json:"notes"`
	InspectorName string                        `gorm:"size:255" json:"inspector_name,omitempty"`
	Checklist     datatypes.JSONType[Checklist] `json:"checklist"`
	ReviewDate    *time.Time                    `json:"review_date,omitempty"`
	CompletedAt   *time.Time                    `json:"completion_date,omitempty"`

	// заполняется финальной приёмкой
	FinalCompletedAt    *time.Time `json:"final_completed_at,omitempty"`
	FinalNotes          string     `gorm:"type:text" json:"final_notes,omitempty"`
	QualityRating       int        `json:"quality_rating,omitempty"`
	TimelinessRating    int        `json:"timeliness_rating,omitempty"`
	CommunicationRating int        `json:"communication_rating,omitempty"`
	OverallRating       int        `json:"overall_rating,omitempty"`

	Defects []Defect `json:"defects,omitempty"`
}

// DefectIDs — список id дефектов приёмки.
func (a Acceptance) DefectIDs() []uint {
	ids := make([]uint, 0, len(a.Defects))
	for _, d := range a.Defects {
		ids = append(ids, d.ID)
	}
	return ids
}

// Defect — задокументированный недостаток. Не удаляется, только помечается устранённым.
type Defect struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	AcceptanceID uint `gorm:"index" json:"acceptance_id"`
	TradeID      uint `gorm:"index;not null" json:"milestone_id"`

	Title       string                      `gorm:"size:255;not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Severity    Severity                    `gorm:"type:varchar(16);not null" json:"severity"`
	Location    string                      `gorm:"size:255" json:"location"`
	Room        string                      `gorm:"size:255" json:"room"`
	Photos      datatypes.JSONSlice[string] `json:"photos"`

	Resolved   bool       `gorm:"not null;default:false" json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	TaskID *uint `json:"task_id,omitempty"`
}

// Task — задача на устранение дефекта во внешнем трекере задач.
type Task struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TradeID    uint   `gorm:"index" json:"milestone_id"`
	DefectID   uint   `gorm:"uniqueIndex" json:"defect_id"`
	AssigneeID uint   `json:"assigned_to"`
	Title      string `gorm:"size:255;not null" json:"title"`
	Notes      string `gorm:"type:text" json:"description"`
	Priority   string `gorm:"size:16" json:"priority"`
	Status     string `gorm:"size:16;not null;default:todo" json:"status"`
}

// TaskPriority — приоритет задачи по серьёзности дефекта.
func TaskPriority(s Severity) string {
	switch s {
	case SeverityCritical:
		return "urgent"
	case SeverityMajor:
		return "high"
	default:
		return "medium"
	}
}

// Ratings — оценки подрядчика, собираются только у заказчика.
type Ratings struct {
	Quality       int `json:"qualityRating"`
	Timeliness    int `json:"timelinessRating"`
	Communication int `json:"communicationRating"`
	Overall       int `json:"overallRating"`
}

const (
	MinRating = 1
	MaxRating = 5
)

// Valid: общая оценка обязательна; остальные либо не выставлены (0), либо 1–5.
func (r Ratings) Valid() bool {
	if r.Overall < MinRating || r.Overall > MaxRating {
		return false
	}
	for _, v := range []int{r.Quality, r.Timeliness, r.Communication} {
		if v != 0 && (v < MinRating || v > MaxRating) {
			return false
		}
	}
	return true
}
