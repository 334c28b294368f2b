package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yeremiapane/restaurant-floor-sync/aggregator"
	"github.com/yeremiapane/restaurant-floor-sync/invalidation"
	"github.com/yeremiapane/restaurant-floor-sync/models"
)

// Cache -> snapshot lokal per key. Refresh yang gagal mempertahankan snapshot lama
// (stale tapi tidak salah).
type Cache struct {
	client *Client

	mu         sync.RWMutex
	orders     []models.Order
	activity   []models.TableActivation
	workdays   []models.Workday
	restaurant models.Restaurant
	users      []models.User
	loadedAt   map[invalidation.Key]time.Time

	listenersMu sync.Mutex
	listeners   map[int]func(invalidation.Key)
	nextID      int
}

func NewCache(client *Client) *Cache {
	return &Cache{
		client:    client,
		loadedAt:  make(map[invalidation.Key]time.Time),
		listeners: make(map[int]func(invalidation.Key)),
	}
}

// Refetch implements invalidation.Refetcher.
func (c *Cache) Refetch(ctx context.Context, key invalidation.Key) error {
	var apply func()
	switch key {
	case invalidation.KeyOrders:
		orders, err := c.client.Orders(ctx)
		if err != nil {
			return err
		}
		apply = func() { c.orders = orders }
	case invalidation.KeyTableActivity:
		activity, err := c.client.TableActivity(ctx)
		if err != nil {
			return err
		}
		apply = func() { c.activity = activity }
	case invalidation.KeyWorkdays:
		workdays, err := c.client.Workdays(ctx)
		if err != nil {
			return err
		}
		apply = func() { c.workdays = workdays }
	case invalidation.KeyRestaurant:
		restaurant, err := c.client.Restaurant(ctx)
		if err != nil {
			return err
		}
		apply = func() { c.restaurant = restaurant }
	case invalidation.KeyUsers:
		users, err := c.client.Users(ctx)
		if err != nil {
			return err
		}
		apply = func() { c.users = users }
	default:
		return fmt.Errorf("unknown cache key %q", key)
	}

	c.mu.Lock()
	apply()
	c.loadedAt[key] = time.Now()
	c.mu.Unlock()

	c.notify(key)
	return nil
}

// OnRefresh registers fn to run after every successful refresh.
func (c *Cache) OnRefresh(fn func(invalidation.Key)) (remove func()) {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Cache) notify(key invalidation.Key) {
	c.listenersMu.Lock()
	fns := make([]func(invalidation.Key), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}

// Loaded reports whether key has been fetched successfully at least once.
func (c *Cache) Loaded(key invalidation.Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.loadedAt[key]
	return ok
}

func (c *Cache) Orders() []models.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Order(nil), c.orders...)
}

func (c *Cache) TableActivity() []models.TableActivation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.TableActivation(nil), c.activity...)
}

func (c *Cache) Workdays() []models.Workday {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Workday(nil), c.workdays...)
}

func (c *Cache) Restaurant() models.Restaurant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.restaurant
}

func (c *Cache) Users() []models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.User(nil), c.users...)
}

// Sessions -> sesi semua meja dari snapshot orders saat ini
func (c *Cache) Sessions() []aggregator.Session {
	return aggregator.GroupSessions(models.OrderRecords(c.Orders()))
}

func (c *Cache) TableSessions(tableID uint) []aggregator.Session {
	return aggregator.TableSessions(models.OrderRecords(c.Orders()), tableID)
}

// Shifts -> shift dari snapshot workdays, orders dan activity
func (c *Cache) Shifts(now time.Time) []aggregator.Shift {
	c.mu.RLock()
	in := models.ShiftInput(c.workdays, c.orders, c.activity)
	c.mu.RUnlock()
	return aggregator.BuildShifts(in, now)
}

func (c *Cache) ActiveShift(now time.Time) (aggregator.Shift, bool) {
	return aggregator.ActiveShift(c.Shifts(now))
}
