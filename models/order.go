package models

import (
	"time"

	"github.com/yeremiapane/restaurant-floor-sync/aggregator"
)

// Order -> riwayat append-only; hanya flag Completed yang berubah
type Order struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	TableID      uint            `gorm:"not null;index" json:"table_id"`
	Table        Table           `gorm:"foreignKey:TableID" json:"table"`
	ActivationID uint            `gorm:"not null;index" json:"activation_id"`
	Activation   TableActivation `gorm:"foreignKey:ActivationID" json:"-"`
	CustomerID   uint            `gorm:"index" json:"customer_id,omitempty"`
	MenuID       uint            `gorm:"not null" json:"menu_id"`
	Menu         Menu            `gorm:"foreignKey:MenuID" json:"menu"`
	Price        float64         `gorm:"type:decimal(10,2);not null;default:0.00" json:"price"`
	Completed    bool            `gorm:"not null;default:false" json:"completed"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`
}

func (o Order) Record() aggregator.OrderRecord {
	return aggregator.OrderRecord{
		ID:           o.ID,
		TableID:      o.TableID,
		TableNumber:  o.Table.TableNumber,
		ActivationID: o.ActivationID,
		CustomerID:   o.CustomerID,
		ItemID:       o.MenuID,
		Price:        o.Price,
		Completed:    o.Completed,
		CreatedAt:    o.CreatedAt,
	}
}

func OrderRecords(orders []Order) []aggregator.OrderRecord {
	out := make([]aggregator.OrderRecord, len(orders))
	for i, o := range orders {
		out[i] = o.Record()
	}
	return out
}
