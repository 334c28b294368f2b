package realtime

import (
	"fmt"

	"github.com/yeremiapane/restaurant-floor-sync/protocol"
)

// PresenceView keeps "still connecting" apart from "zero users online".
type PresenceView struct {
	State State                   `json:"state"`
	Known bool                    `json:"known"`
	Count int                     `json:"count"`
	Users []protocol.PresenceUser `json:"users,omitempty"`
}

func (v PresenceView) Label() string {
	switch v.State {
	case StateConnecting:
		return "connecting"
	case StateError, StateClosed:
		return "offline"
	}
	if !v.Known {
		return "connecting"
	}
	if v.Count == 1 {
		return "1 terminal online"
	}
	return fmt.Sprintf("%d terminals online", v.Count)
}

// PresenceView returns the last snapshot received on the current connection.
func (m *Manager) PresenceView() PresenceView {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := PresenceView{State: m.state}
	if m.presence != nil && m.state == StateOpen {
		v.Known = true
		v.Count = m.presence.Count
		v.Users = append([]protocol.PresenceUser(nil), m.presence.Users...)
	}
	return v
}
