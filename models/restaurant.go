package models

import "time"

// Restaurant -> satu baris konfigurasi restoran (nama, alamat, jam buka)
type Restaurant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Address   string    `gorm:"type:varchar(255)" json:"address"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone"`
	OpensAt   string    `gorm:"type:varchar(5)" json:"opens_at"`
	ClosesAt  string    `gorm:"type:varchar(5)" json:"closes_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
