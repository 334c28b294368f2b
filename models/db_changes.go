package models

import (
	"time"

	"github.com/yeremiapane/restaurant-floor-sync/protocol"
)

// DBChange -> outbox event; ditulis dalam transaksi yang sama dengan perubahan data,
// lalu dipublikasikan oleh ChangeMonitor sesuai urutan ID
type DBChange struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Kind        string     `gorm:"type:varchar(50);not null;index" json:"kind"`
	Payload     string     `gorm:"type:text;not null" json:"payload"`
	ChangedAt   time.Time  `gorm:"not null" json:"changed_at"`
	Processed   bool       `gorm:"default:false;index:idx_processed" json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func NewDBChange(p protocol.Payload, at time.Time) (DBChange, error) {
	frame, err := protocol.Encode(p)
	if err != nil {
		return DBChange{}, err
	}
	return DBChange{
		Kind:      string(p.Kind()),
		Payload:   string(frame),
		ChangedAt: at,
	}, nil
}

func (c DBChange) Message() (protocol.Message, error) {
	return protocol.Decode([]byte(c.Payload))
}
