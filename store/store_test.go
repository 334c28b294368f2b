package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-floor-sync/invalidation"
	"github.com/yeremiapane/restaurant-floor-sync/models"
)

type fakeStore struct {
	mu       sync.Mutex
	orders   []models.Order
	failures map[string]int
	status   int
	hits     atomic.Int32
	auth     string
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = r.Header.Get("Authorization")

	if f.failures[r.URL.Path] > 0 {
		f.failures[r.URL.Path]--
		w.WriteHeader(f.status)
		w.Write([]byte(`{"status":false,"message":"boom"}`))
		return
	}

	var data interface{}
	switch r.URL.Path {
	case "/orders":
		data = f.orders
	case "/restaurant":
		data = models.Restaurant{ID: 1, Name: "Warung"}
	case "/tables/activity", "/workdays", "/users":
		data = []interface{}{}
	default:
		http.NotFound(w, r)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"status": true, "message": "ok", "data": data})
}

func (f *fakeStore) setOrders(orders []models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = orders
}

func (f *fakeStore) failNext(path string, n, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = n
	f.status = status
}

func newFakeStore(t *testing.T) (*fakeStore, *Client) {
	f := &fakeStore{failures: make(map[string]int)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, NewClient(srv.URL+"/", WithRetry(3, time.Millisecond), WithToken("terminal-token"))
}

func TestClientRetriesServerErrors(t *testing.T) {
	f, client := newFakeStore(t)
	f.setOrders([]models.Order{{ID: 1, TableID: 2, Price: 1000}})
	f.failNext("/orders", 2, http.StatusBadGateway)

	orders, err := client.Orders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int32(3), f.hits.Load())
	assert.Equal(t, "Bearer terminal-token", f.auth)
}

func TestClientGivesUpAfterAttempts(t *testing.T) {
	f, client := newFakeStore(t)
	f.failNext("/orders", 5, http.StatusServiceUnavailable)

	_, err := client.Orders(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
	assert.Equal(t, int32(3), f.hits.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	f, client := newFakeStore(t)
	f.failNext("/orders", 5, http.StatusForbidden)

	_, err := client.Orders(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), f.hits.Load())
}

func TestClientHonoursContext(t *testing.T) {
	f, _ := newFakeStore(t)
	f.failNext("/orders", 5, http.StatusInternalServerError)
	srv := httptest.NewServer(f)
	defer srv.Close()
	client := NewClient(srv.URL, WithRetry(5, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Orders(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCacheKeepsLastGoodSnapshot(t *testing.T) {
	f, client := newFakeStore(t)
	cache := NewCache(client)

	var refreshed []invalidation.Key
	remove := cache.OnRefresh(func(k invalidation.Key) { refreshed = append(refreshed, k) })
	defer remove()

	base := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	f.setOrders([]models.Order{
		{ID: 1, TableID: 1, Price: 10000, CreatedAt: base},
		{ID: 2, TableID: 1, Price: 5000, CreatedAt: base.Add(5 * time.Minute)},
	})
	assert.False(t, cache.Loaded(invalidation.KeyOrders))
	require.NoError(t, cache.Refetch(context.Background(), invalidation.KeyOrders))
	assert.True(t, cache.Loaded(invalidation.KeyOrders))
	assert.Len(t, cache.Orders(), 2)
	require.Len(t, cache.Sessions(), 1)
	assert.Equal(t, 15000.0, cache.Sessions()[0].Revenue)

	f.failNext("/orders", 10, http.StatusInternalServerError)
	err := cache.Refetch(context.Background(), invalidation.KeyOrders)
	assert.Error(t, err)
	assert.Len(t, cache.Orders(), 2)

	assert.Equal(t, []invalidation.Key{invalidation.KeyOrders}, refreshed)
}

func TestCacheRefetchEveryKey(t *testing.T) {
	_, client := newFakeStore(t)
	cache := NewCache(client)

	for _, key := range invalidation.Keys {
		require.NoError(t, cache.Refetch(context.Background(), key), "key %s", key)
	}
	assert.Equal(t, "Warung", cache.Restaurant().Name)
	assert.Empty(t, cache.Shifts(time.Now()))
	_, ok := cache.ActiveShift(time.Now())
	assert.False(t, ok)

	assert.Error(t, cache.Refetch(context.Background(), invalidation.Key("menus")))
}
