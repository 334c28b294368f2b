package aggregator

import (
	"fmt"
	"sort"
	"time"
)

// Session -> kumpulan order satu meja yang dianggap satu kali duduk
type Session struct {
	Key         string        `json:"key"`
	TableID     uint          `json:"table_id"`
	TableNumber string        `json:"table_number"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Orders      []OrderRecord `json:"orders"`
	Revenue     float64       `json:"revenue"`
}

// Duration is the span between the first and last order; zero for a single order.
func (s Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// GroupSessions splits every table's orders into sittings. A gap of SessionGap
// or more between consecutive orders of the same table starts a new session.
// The result is most-recent-first; zero orders yield zero sessions.
func GroupSessions(orders []OrderRecord) []Session {
	byTable := make(map[uint][]OrderRecord)
	for _, o := range orders {
		byTable[o.TableID] = append(byTable[o.TableID], o)
	}

	sessions := make([]Session, 0)
	for tableID, tableOrders := range byTable {
		sessions = append(sessions, groupTable(tableID, tableOrders)...)
	}

	sortRecentFirst(sessions)
	return sessions
}

// TableSessions returns the sessions of one table, most-recent-first.
func TableSessions(orders []OrderRecord, tableID uint) []Session {
	var tableOrders []OrderRecord
	for _, o := range orders {
		if o.TableID == tableID {
			tableOrders = append(tableOrders, o)
		}
	}
	sessions := groupTable(tableID, tableOrders)
	sortRecentFirst(sessions)
	return sessions
}

func groupTable(tableID uint, orders []OrderRecord) []Session {
	if len(orders) == 0 {
		return []Session{}
	}

	sorted := make([]OrderRecord, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var sessions []Session
	current := openSession(tableID, sorted[0])
	for _, o := range sorted[1:] {
		if o.CreatedAt.Sub(current.End) >= SessionGap {
			sessions = append(sessions, current)
			current = openSession(tableID, o)
			continue
		}
		current.Orders = append(current.Orders, o)
		current.End = o.CreatedAt
		current.Revenue += o.Price
		if current.TableNumber == "" {
			current.TableNumber = o.TableNumber
		}
	}
	return append(sessions, current)
}

func openSession(tableID uint, first OrderRecord) Session {
	return Session{
		Key:         fmt.Sprintf("table-%d-%d", tableID, first.CreatedAt.UnixNano()),
		TableID:     tableID,
		TableNumber: first.TableNumber,
		Start:       first.CreatedAt,
		End:         first.CreatedAt,
		Orders:      []OrderRecord{first},
		Revenue:     first.Price,
	}
}

func sortRecentFirst(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].Start.Equal(sessions[j].Start) {
			return sessions[i].Start.After(sessions[j].Start)
		}
		return sessions[i].TableID < sessions[j].TableID
	})
}
