package protocol

import "time"

// EventKind -> jenis event yang dikirim lewat channel realtime
type EventKind string

const (
	KindNewOrder          EventKind = "new-order"
	KindOrderCompleted    EventKind = "order-completed"
	KindOrderReopened     EventKind = "order-reopened"
	KindTableActivated    EventKind = "table-activated"
	KindTableDeactivated  EventKind = "table-deactivated"
	KindWorkdayStarted    EventKind = "workday-started"
	KindWorkdayEnded      EventKind = "workday-ended"
	KindRestaurantUpdated EventKind = "restaurant-updated"
	KindRoleChanged       EventKind = "role-changed"
	KindKitchenAlert      EventKind = "kitchen-alert"
	KindPresenceChanged   EventKind = "presence-changed"
)

// Kinds lists every known kind in declaration order.
var Kinds = []EventKind{
	KindNewOrder,
	KindOrderCompleted,
	KindOrderReopened,
	KindTableActivated,
	KindTableDeactivated,
	KindWorkdayStarted,
	KindWorkdayEnded,
	KindRestaurantUpdated,
	KindRoleChanged,
	KindKitchenAlert,
	KindPresenceChanged,
}

// Known reports whether k belongs to the closed set of kinds.
func (k EventKind) Known() bool {
	_, ok := decoders[k]
	return ok
}

// Payload is implemented by every kind-specific payload struct.
type Payload interface {
	Kind() EventKind
}

type NewOrder struct {
	OrderID      uint      `json:"orderId"`
	TableID      uint      `json:"tableId"`
	TableNumber  string    `json:"tableNumber"`
	ActivationID uint      `json:"activationId"`
	CreatedAt    time.Time `json:"createdAt"`
}

type OrderCompleted struct {
	OrderID     uint      `json:"orderId"`
	TableID     uint      `json:"tableId"`
	TableNumber string    `json:"tableNumber"`
	CompletedAt time.Time `json:"completedAt"`
}

type OrderReopened struct {
	OrderID     uint   `json:"orderId"`
	TableID     uint   `json:"tableId"`
	TableNumber string `json:"tableNumber"`
}

type TableActivated struct {
	TableID      uint      `json:"tableId"`
	TableNumber  string    `json:"tableNumber"`
	ActivationID uint      `json:"activationId"`
	ActivatedAt  time.Time `json:"activatedAt"`
}

type TableDeactivated struct {
	TableID       uint      `json:"tableId"`
	TableNumber   string    `json:"tableNumber"`
	ActivationID  uint      `json:"activationId"`
	DeactivatedAt time.Time `json:"deactivatedAt"`
}

type WorkdayStarted struct {
	WorkdayID uint      `json:"workdayId"`
	StartedAt time.Time `json:"startedAt"`
}

type WorkdayEnded struct {
	WorkdayID uint      `json:"workdayId"`
	EndedAt   time.Time `json:"endedAt"`
}

type RestaurantUpdated struct {
	RestaurantID uint `json:"restaurantId"`
}

type RoleChanged struct {
	UserID uint   `json:"userId"`
	Role   string `json:"role"`
}

// KitchenAlert memicu bunyi/visual di terminal, tidak pernah mengubah total.
type KitchenAlert struct {
	TableNumber string `json:"tableNumber"`
	OrderID     uint   `json:"orderId,omitempty"`
	Message     string `json:"message,omitempty"`
}

type PresenceUser struct {
	Name        string    `json:"name"`
	ConnectedAt time.Time `json:"connectedAt"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
}

// PresenceChanged is the snapshot the hub broadcasts on every connect/disconnect.
type PresenceChanged struct {
	Count int            `json:"count"`
	Users []PresenceUser `json:"users,omitempty"`
}

func (NewOrder) Kind() EventKind          { return KindNewOrder }
func (OrderCompleted) Kind() EventKind    { return KindOrderCompleted }
func (OrderReopened) Kind() EventKind     { return KindOrderReopened }
func (TableActivated) Kind() EventKind    { return KindTableActivated }
func (TableDeactivated) Kind() EventKind  { return KindTableDeactivated }
func (WorkdayStarted) Kind() EventKind    { return KindWorkdayStarted }
func (WorkdayEnded) Kind() EventKind      { return KindWorkdayEnded }
func (RestaurantUpdated) Kind() EventKind { return KindRestaurantUpdated }
func (RoleChanged) Kind() EventKind       { return KindRoleChanged }
func (KitchenAlert) Kind() EventKind      { return KindKitchenAlert }
func (PresenceChanged) Kind() EventKind   { return KindPresenceChanged }

// decoders -> decoder payload per kind, dipakai saat Decode
var decoders = map[EventKind]func([]byte) (Payload, error){
	KindNewOrder:          decodeAs[NewOrder],
	KindOrderCompleted:    decodeAs[OrderCompleted],
	KindOrderReopened:     decodeAs[OrderReopened],
	KindTableActivated:    decodeAs[TableActivated],
	KindTableDeactivated:  decodeAs[TableDeactivated],
	KindWorkdayStarted:    decodeAs[WorkdayStarted],
	KindWorkdayEnded:      decodeAs[WorkdayEnded],
	KindRestaurantUpdated: decodeAs[RestaurantUpdated],
	KindRoleChanged:       decodeAs[RoleChanged],
	KindKitchenAlert:      decodeAs[KitchenAlert],
	KindPresenceChanged:   decodeAs[PresenceChanged],
}
