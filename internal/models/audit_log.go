package models

import "time"

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID   uint   `json:"user_id"`
	User     User   `json:"-"`
	Username string `gorm:"-" json:"username,omitempty"` // заполняется при выдаче истории

	Entity   string `gorm:"size:50;not null" json:"entity"` // "milestone", "acceptance", "defect", "invoice"
	EntityID uint   `gorm:"index" json:"entity_id"`
	Action   string `gorm:"size:50;not null" json:"action"` // "status_change", "resolve", "mark_paid" и т.п.
	Details  string `gorm:"type:text" json:"details"`
}
