// Package aggregator rebuilds table sessions and work shifts from timestamped
// records. Everything here is pure: same input, same output, no I/O.
package aggregator

import "time"

// SessionGap is the idle time after which a table's next order starts a new sitting.
const SessionGap = 30 * time.Minute

// OrderRecord is the aggregator's view of one order.
type OrderRecord struct {
	ID           uint      `json:"id"`
	TableID      uint      `json:"table_id"`
	TableNumber  string    `json:"table_number"`
	ActivationID uint      `json:"activation_id"`
	CustomerID   uint      `json:"customer_id,omitempty"`
	ItemID       uint      `json:"item_id"`
	Price        float64   `json:"price"`
	Completed    bool      `json:"completed"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableActivity is one contiguous open period of a physical table.
type TableActivity struct {
	ID            uint       `json:"id"`
	TableID       uint       `json:"table_id"`
	TableNumber   string     `json:"table_number"`
	ActivatedAt   time.Time  `json:"activated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

type WorkdayEventType string

const (
	WorkdayStart WorkdayEventType = "start"
	WorkdayEnd   WorkdayEventType = "end"
)

// WorkdayEvent is a single workday boundary.
type WorkdayEvent struct {
	WorkdayID uint             `json:"workday_id"`
	Type      WorkdayEventType `json:"type"`
	At        time.Time        `json:"at"`
}

// WorkerJoin records a worker clocking into the floor.
type WorkerJoin struct {
	WorkerID uint      `json:"worker_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}
