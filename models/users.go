package models

import "time"

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleChef  = "chef"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStaff, RoleChef:
		return true
	}
	return false
}

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);unique;not null" json:"email"`
	Role      string    `gorm:"type:varchar(50);not null" json:"role"`
	PhotoURL  string    `gorm:"type:varchar(255)" json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
