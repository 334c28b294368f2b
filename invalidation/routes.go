package invalidation

import "github.com/yeremiapane/restaurant-floor-sync/protocol"

// Key names one locally cached read-model.
type Key string

const (
	KeyOrders        Key = "orders"
	KeyTableActivity Key = "table-activity"
	KeyWorkdays      Key = "workdays"
	KeyRestaurant    Key = "restaurant"
	KeyUsers         Key = "users"
)

// Keys lists every cache key the router knows about.
var Keys = []Key{KeyOrders, KeyTableActivity, KeyWorkdays, KeyRestaurant, KeyUsers}

// DefaultRoutes -> tabel statis EventKind ke cache key yang harus di-refetch.
// kitchen-alert dan presence-changed hanya untuk UI, tidak menyentuh cache.
var DefaultRoutes = map[protocol.EventKind][]Key{
	protocol.KindNewOrder:          {KeyOrders, KeyTableActivity},
	protocol.KindOrderCompleted:    {KeyOrders, KeyTableActivity},
	protocol.KindOrderReopened:     {KeyOrders, KeyTableActivity},
	protocol.KindTableActivated:    {KeyTableActivity},
	protocol.KindTableDeactivated:  {KeyTableActivity, KeyOrders},
	protocol.KindWorkdayStarted:    {KeyWorkdays},
	protocol.KindWorkdayEnded:      {KeyWorkdays},
	protocol.KindRestaurantUpdated: {KeyRestaurant},
	protocol.KindRoleChanged:       {KeyUsers, KeyWorkdays},
	protocol.KindKitchenAlert:      nil,
	protocol.KindPresenceChanged:   nil,
}
