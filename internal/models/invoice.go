package models

import "time"

// Invoice — счёт по принятому предложению. Создаётся сервером как draft.
// Статус приходит в произвольном регистре, нормализуется на клиенте.
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TradeID       uint   `gorm:"uniqueIndex;not null" json:"milestone_id"`
	InvoiceNumber string `gorm:"size:64" json:"invoice_number"`
	Status        string `gorm:"type:varchar(20);not null;default:draft" json:"status"`

	Amount   float64    `json:"total_amount"`
	Currency string     `gorm:"size:3;default:EUR" json:"currency"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	ViewedAt *time.Time `json:"viewed_at,omitempty"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
}
