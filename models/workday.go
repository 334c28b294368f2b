package models

import (
	"time"

	"github.com/yeremiapane/restaurant-floor-sync/aggregator"
)

// Workday -> satu hari kerja yang dibuka/ditutup manual oleh staff
type Workday struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	StartedAt time.Time       `gorm:"not null;index" json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Workers   []WorkdayWorker `gorm:"foreignKey:WorkdayID" json:"workers"`
}

type WorkdayWorker struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WorkdayID uint      `gorm:"not null;index" json:"workday_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`
}

func (w Workday) Active() bool {
	return w.EndedAt == nil
}

// Events -> start, dan end bila hari kerja sudah ditutup
func (w Workday) Events() []aggregator.WorkdayEvent {
	events := []aggregator.WorkdayEvent{{WorkdayID: w.ID, Type: aggregator.WorkdayStart, At: w.StartedAt}}
	if w.EndedAt != nil {
		events = append(events, aggregator.WorkdayEvent{WorkdayID: w.ID, Type: aggregator.WorkdayEnd, At: *w.EndedAt})
	}
	return events
}

func WorkdayEvents(workdays []Workday) []aggregator.WorkdayEvent {
	var out []aggregator.WorkdayEvent
	for _, w := range workdays {
		out = append(out, w.Events()...)
	}
	return out
}

func WorkerJoins(workdays []Workday) []aggregator.WorkerJoin {
	var out []aggregator.WorkerJoin
	for _, w := range workdays {
		for _, ww := range w.Workers {
			out = append(out, aggregator.WorkerJoin{
				WorkerID: ww.UserID,
				Name:     ww.User.Name,
				JoinedAt: ww.JoinedAt,
			})
		}
	}
	return out
}

// ShiftInput -> menyusun input aggregator dari data store
func ShiftInput(workdays []Workday, orders []Order, activations []TableActivation) aggregator.ShiftInput {
	return aggregator.ShiftInput{
		Events:      WorkdayEvents(workdays),
		Orders:      OrderRecords(orders),
		Activations: ActivityRecords(activations),
		Workers:     WorkerJoins(workdays),
	}
}
