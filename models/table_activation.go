package models

import (
	"time"

	"github.com/yeremiapane/restaurant-floor-sync/aggregator"
)

// TableActivation -> satu periode "buka" sebuah meja; DeactivatedAt nil berarti masih aktif
type TableActivation struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TableID       uint       `gorm:"not null;index" json:"table_id"`
	Table         Table      `gorm:"foreignKey:TableID" json:"table"`
	ActivatedAt   time.Time  `gorm:"not null;index" json:"activated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

func (a TableActivation) Active() bool {
	return a.DeactivatedAt == nil
}

func (a TableActivation) Record() aggregator.TableActivity {
	return aggregator.TableActivity{
		ID:            a.ID,
		TableID:       a.TableID,
		TableNumber:   a.Table.TableNumber,
		ActivatedAt:   a.ActivatedAt,
		DeactivatedAt: a.DeactivatedAt,
	}
}

func ActivityRecords(activations []TableActivation) []aggregator.TableActivity {
	out := make([]aggregator.TableActivity, len(activations))
	for i, a := range activations {
		out[i] = a.Record()
	}
	return out
}
