package models

import "time"

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleClient     UserRole = "client"     // заказчик: принимает работы, платит
	RoleContractor UserRole = "contractor" // подрядчик: выполняет и устраняет дефекты
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleClient, RoleContractor:
		return true
	}
	return false
}

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Username     string   `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string   `gorm:"not null" json:"-"`
	Role         UserRole `gorm:"type:varchar(20);not null" json:"role"`
}
