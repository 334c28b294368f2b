package aggregator

import (
	"fmt"
	"sort"
	"time"
)

// ShiftInput is everything BuildShifts needs, fetched from the store of record.
type ShiftInput struct {
	Events      []WorkdayEvent
	Orders      []OrderRecord
	Activations []TableActivity
	Workers     []WorkerJoin
}

type Totals struct {
	Revenue        float64 `json:"revenue"`
	OrderCount     int     `json:"order_count"`
	DistinctTables int     `json:"distinct_tables"`
	DistinctGuests int     `json:"distinct_guests"`
}

type ShiftWorker struct {
	WorkerID uint          `json:"worker_id"`
	Name     string        `json:"name"`
	JoinedAt time.Time     `json:"joined_at"`
	Active   time.Duration `json:"active_ns"`
}

// Shift -> satu interval kerja [Start, End); End nil berarti shift masih berjalan
type Shift struct {
	Key         string          `json:"key"`
	WorkdayID   uint            `json:"workday_id"`
	Start       time.Time       `json:"start"`
	End         *time.Time      `json:"end,omitempty"`
	Active      bool            `json:"active"`
	Orders      []OrderRecord   `json:"orders"`
	Activations []TableActivity `json:"activations"`
	Workers     []ShiftWorker   `json:"workers"`
	Totals      Totals          `json:"totals"`
}

// Contains reports whether t falls inside [Start, End). An active shift is bounded by now.
func (s Shift) Contains(t, now time.Time) bool {
	if t.Before(s.Start) {
		return false
	}
	if s.End == nil {
		return t.Before(now)
	}
	return t.Before(*s.End)
}

// Duration is End-Start, or now-Start while the shift is active.
func (s Shift) Duration(now time.Time) time.Duration {
	if s.End != nil {
		return s.End.Sub(s.Start)
	}
	return now.Sub(s.Start)
}

// BuildShifts pairs workday starts with the following end and assigns records
// to the resulting intervals. Shifts come back in chronological order.
//
// A start seen while another shift is open closes the open one at that instant,
// so intervals never overlap. An end with no open start is ignored. At equal
// timestamps ends sort before starts so back-to-back shifts pair correctly,
// except the end of a workday that started at that same instant, which sorts last.
func BuildShifts(in ShiftInput, now time.Time) []Shift {
	shifts := pairEvents(in.Events)

	for i := range shifts {
		fillShift(&shifts[i], in, now)
	}
	return shifts
}

// ActiveShift returns the shift without an end event, if any.
func ActiveShift(shifts []Shift) (Shift, bool) {
	for i := len(shifts) - 1; i >= 0; i-- {
		if shifts[i].Active {
			return shifts[i], true
		}
	}
	return Shift{}, false
}

func pairEvents(events []WorkdayEvent) []Shift {
	sorted := make([]WorkdayEvent, len(events))
	copy(sorted, events)
	startedAt := make(map[uint][]time.Time)
	for _, ev := range sorted {
		if ev.Type == WorkdayStart {
			startedAt[ev.WorkdayID] = append(startedAt[ev.WorkdayID], ev.At)
		}
	}
	// rank di timestamp yang sama: end workday lain, lalu start, lalu end workday yang baru mulai
	rank := func(ev WorkdayEvent) int {
		if ev.Type == WorkdayStart {
			return 1
		}
		for _, t := range startedAt[ev.WorkdayID] {
			if t.Equal(ev.At) {
				return 2
			}
		}
		return 0
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].At.Equal(sorted[j].At) {
			return sorted[i].At.Before(sorted[j].At)
		}
		if ri, rj := rank(sorted[i]), rank(sorted[j]); ri != rj {
			return ri < rj
		}
		return sorted[i].WorkdayID < sorted[j].WorkdayID
	})

	shifts := make([]Shift, 0)
	var open *Shift
	for _, ev := range sorted {
		switch ev.Type {
		case WorkdayStart:
			if open != nil {
				closeAt := ev.At
				open.End = &closeAt
				open.Active = false
				shifts = append(shifts, *open)
			}
			open = &Shift{
				Key:       fmt.Sprintf("shift-%d-%d", ev.WorkdayID, ev.At.UnixNano()),
				WorkdayID: ev.WorkdayID,
				Start:     ev.At,
				Active:    true,
			}
		case WorkdayEnd:
			if open == nil {
				continue
			}
			end := ev.At
			open.End = &end
			open.Active = false
			shifts = append(shifts, *open)
			open = nil
		}
	}
	if open != nil {
		shifts = append(shifts, *open)
	}
	return shifts
}

func fillShift(s *Shift, in ShiftInput, now time.Time) {
	s.Orders = make([]OrderRecord, 0)
	s.Activations = make([]TableActivity, 0)
	s.Workers = make([]ShiftWorker, 0)

	tables := make(map[uint]struct{})
	guests := make(map[uint]struct{})
	for _, o := range in.Orders {
		if !s.Contains(o.CreatedAt, now) {
			continue
		}
		s.Orders = append(s.Orders, o)
		s.Totals.Revenue += o.Price
		tables[o.TableID] = struct{}{}
		if o.CustomerID != 0 {
			guests[o.CustomerID] = struct{}{}
		}
	}
	sort.SliceStable(s.Orders, func(i, j int) bool {
		return s.Orders[i].CreatedAt.Before(s.Orders[j].CreatedAt)
	})

	for _, a := range in.Activations {
		if !s.Contains(a.ActivatedAt, now) {
			continue
		}
		s.Activations = append(s.Activations, a)
		tables[a.TableID] = struct{}{}
	}
	sort.SliceStable(s.Activations, func(i, j int) bool {
		return s.Activations[i].ActivatedAt.Before(s.Activations[j].ActivatedAt)
	})

	s.Totals.OrderCount = len(s.Orders)
	s.Totals.DistinctTables = len(tables)
	s.Totals.DistinctGuests = len(guests)
	s.Workers = shiftWorkers(*s, in.Workers, now)
}

// shiftWorkers keeps the earliest join per worker inside the shift.
func shiftWorkers(s Shift, joins []WorkerJoin, now time.Time) []ShiftWorker {
	limit := now
	if s.End != nil && s.End.Before(now) {
		limit = *s.End
	}

	earliest := make(map[uint]WorkerJoin)
	for _, j := range joins {
		if !s.Contains(j.JoinedAt, now) {
			continue
		}
		if prev, ok := earliest[j.WorkerID]; !ok || j.JoinedAt.Before(prev.JoinedAt) {
			earliest[j.WorkerID] = j
		}
	}

	workers := make([]ShiftWorker, 0, len(earliest))
	for _, j := range earliest {
		active := limit.Sub(j.JoinedAt)
		if active < 0 {
			active = 0
		}
		workers = append(workers, ShiftWorker{
			WorkerID: j.WorkerID,
			Name:     j.Name,
			JoinedAt: j.JoinedAt,
			Active:   active,
		})
	}
	sort.Slice(workers, func(i, j int) bool {
		if !workers[i].JoinedAt.Equal(workers[j].JoinedAt) {
			return workers[i].JoinedAt.Before(workers[j].JoinedAt)
		}
		return workers[i].WorkerID < workers[j].WorkerID
	})
	return workers
}
