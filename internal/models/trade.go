package models

import (
	"strings"
	"time"
)

type CompletionStatus string

const (
	StatusInProgress           CompletionStatus = "in_progress"
	StatusCompletionRequested  CompletionStatus = "completion_requested"
	StatusCompleted            CompletionStatus = "completed"
	StatusCompletedWithDefects CompletionStatus = "completed_with_defects"
	StatusDefectsResolved      CompletionStatus = "defects_resolved"
	StatusArchived             CompletionStatus = "archived"
)

// AllStatuses — все допустимые значения completion_status.
var AllStatuses = []CompletionStatus{
	StatusInProgress,
	StatusCompletionRequested,
	StatusCompleted,
	StatusCompletedWithDefects,
	StatusDefectsResolved,
	StatusArchived,
}

// ParseCompletionStatus принимает значение с сервера; пустое трактуется как in_progress.
func ParseCompletionStatus(raw string) (CompletionStatus, bool) {
	s := CompletionStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return StatusInProgress, true
	}
	return s, s.Valid()
}

func (s CompletionStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Trade — этап работ (вид работ) в рамках проекта.
type Trade struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID uint   `gorm:"index" json:"project_id"`
	Title     string `gorm:"size:255;not null" json:"title"`

	CompletionStatus CompletionStatus `gorm:"type:varchar(40);not null;default:in_progress" json:"completion_status"`
	Progress         int              `gorm:"not null;default:0" json:"progress"`

	AcceptedQuoteID *uint `json:"accepted_quote_id,omitempty"`

	ClientID     uint `json:"client_id"`     // User.ID роли client
	ContractorID uint `json:"contractor_id"` // User.ID роли contractor

	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// ActiveCompletion — трейд находится в процессе приёмки.
func (t Trade) ActiveCompletion() bool {
	switch t.CompletionStatus {
	case StatusCompletionRequested, StatusCompletedWithDefects, StatusDefectsResolved:
		return true
	}
	return false
}
