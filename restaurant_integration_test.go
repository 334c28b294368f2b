package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-floor-sync/database"
	"github.com/yeremiapane/restaurant-floor-sync/invalidation"
	"github.com/yeremiapane/restaurant-floor-sync/kds"
	"github.com/yeremiapane/restaurant-floor-sync/metrics"
	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/realtime"
	"github.com/yeremiapane/restaurant-floor-sync/router"
	"github.com/yeremiapane/restaurant-floor-sync/services"
	"github.com/yeremiapane/restaurant-floor-sync/terminal"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type floor struct {
	db      *gorm.DB
	server  *httptest.Server
	hub     *kds.Hub
	monitor *services.ChangeMonitor
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupFloor(t *testing.T) *floor {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	hub := kds.NewHub(kds.WithLogger(quiet()), kds.WithMetrics(m))
	server := httptest.NewServer(router.SetupRouter(db, router.Options{Hub: hub}))

	monitor := services.NewChangeMonitor(db, hub)
	monitor.Log = quiet()

	t.Cleanup(func() {
		server.Close()
		hub.Shutdown()
	})
	return &floor{db: db, server: server, hub: hub, monitor: monitor}
}

func (f *floor) post(t *testing.T, path string, body interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(f.server.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

// flush -> jalankan outbox seperti ticker ChangeMonitor
func (f *floor) flush(t *testing.T) {
	t.Helper()
	_, err := f.monitor.ProcessPending()
	require.NoError(t, err)
}

func (f *floor) wsURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/kds/ws"
}

type bellBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *bellBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *bellBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFloorSyncEndToEnd(t *testing.T) {
	f := setupFloor(t)

	waiter := models.User{Name: "Sari", Email: "sari@resto.test", Role: models.RoleStaff}
	require.NoError(t, f.db.Create(&waiter).Error)
	table := models.Table{TableNumber: "7", Status: models.TableAvailable}
	require.NoError(t, f.db.Create(&table).Error)
	menu := models.Menu{Name: "Nasi Goreng", Price: 25000}
	require.NoError(t, f.db.Create(&menu).Error)

	token, err := utils.GenerateToken(waiter.ID, waiter.Name, waiter.Role, "")
	require.NoError(t, err)

	bell := &bellBuffer{}
	term := terminal.New(terminal.Config{
		HubURL:   f.wsURL(),
		StoreURL: f.server.URL,
		Token:    token,
		Window:   20 * time.Millisecond,
	},
		terminal.WithLogger(quiet()),
		terminal.WithBell(bell),
		terminal.WithManagerOptions(realtime.WithBackoff(20*time.Millisecond, 100*time.Millisecond)),
	)
	defer term.Close()

	require.NoError(t, term.Start(context.Background()))

	// presence snapshot dari hub
	require.Eventually(t, func() bool {
		return term.Summary(time.Now()).Presence == "1 terminal online"
	}, waitFor, tick)
	presence := f.hub.Presence()
	require.Len(t, presence.Users, 1)
	assert.Equal(t, "Sari", presence.Users[0].Name)

	// initial load untuk semua key
	require.Eventually(t, func() bool {
		for _, key := range invalidation.Keys {
			if !term.Cache.Loaded(key) {
				return false
			}
		}
		return true
	}, waitFor, tick)
	assert.Empty(t, term.Cache.TableActivity())
	assert.False(t, term.Summary(time.Now()).ShiftActive)

	require.Equal(t, http.StatusCreated, f.post(t, "/workdays/start", nil))
	require.Equal(t, http.StatusOK, f.post(t, fmt.Sprintf("/tables/%d/activate", table.ID), nil))
	f.flush(t)

	require.Eventually(t, func() bool {
		return len(term.Cache.TableActivity()) == 1 && len(term.Cache.Workdays()) == 1
	}, waitFor, tick)

	require.Equal(t, http.StatusCreated, f.post(t, "/orders", map[string]interface{}{
		"table_id":    table.ID,
		"menu_id":     menu.ID,
		"customer_id": 3,
	}))
	f.flush(t)

	require.Eventually(t, func() bool {
		return len(term.Cache.Orders()) == 1
	}, waitFor, tick)

	summary := term.Summary(time.Now())
	assert.True(t, summary.ShiftActive)
	assert.Equal(t, 1, summary.OrderCount)
	assert.Equal(t, utils.FormatCurrencyIDR(25000), summary.Revenue)
	assert.Equal(t, 1, summary.OpenSessions)

	require.Equal(t, http.StatusAccepted, f.post(t, "/kitchen/alert", map[string]interface{}{
		"table_number": "7",
		"message":      "pesanan siap",
	}))
	f.flush(t)

	require.Eventually(t, func() bool {
		return term.Summary(time.Now()).Alerts == 1
	}, waitFor, tick)
	assert.Equal(t, "\a", bell.String())

	var pending int64
	require.NoError(t, f.db.Model(&models.DBChange{}).Where("processed = ?", false).Count(&pending).Error)
	assert.Zero(t, pending)
}

func TestTerminalRejectedWithBadToken(t *testing.T) {
	f := setupFloor(t)

	term := terminal.New(terminal.Config{
		HubURL:   f.wsURL(),
		StoreURL: f.server.URL,
		Token:    "not-a-jwt",
	},
		terminal.WithLogger(quiet()),
		terminal.WithManagerOptions(realtime.WithBackoff(time.Second, time.Second)),
	)
	defer term.Close()

	assert.Error(t, term.Start(context.Background()))
	assert.Equal(t, realtime.StateError, term.Manager.State())
	assert.Zero(t, f.hub.Count())
}

// gatedDialer -> menahan reconnect terminal selama offline
type gatedDialer struct {
	header  http.Header
	offline atomic.Bool
}

func (d *gatedDialer) Dial(ctx context.Context, url string) (realtime.Conn, error) {
	if d.offline.Load() {
		return nil, errors.New("network unreachable")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, d.header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func TestTerminalCatchesUpAfterReconnect(t *testing.T) {
	f := setupFloor(t)

	table := models.Table{TableNumber: "3", Status: models.TableAvailable}
	require.NoError(t, f.db.Create(&table).Error)
	menu := models.Menu{Name: "Es Teh", Price: 5000}
	require.NoError(t, f.db.Create(&menu).Error)
	require.Equal(t, http.StatusOK, f.post(t, fmt.Sprintf("/tables/%d/activate", table.ID), nil))
	f.flush(t)

	dialer := &gatedDialer{}
	term := terminal.New(terminal.Config{
		HubURL:   f.wsURL(),
		StoreURL: f.server.URL,
		Window:   20 * time.Millisecond,
	},
		terminal.WithLogger(quiet()),
		terminal.WithManagerOptions(
			realtime.WithDialer(dialer),
			realtime.WithBackoff(20*time.Millisecond, 50*time.Millisecond),
		),
	)
	defer term.Close()

	require.NoError(t, term.Start(context.Background()))
	require.Eventually(t, func() bool {
		return term.Cache.Loaded(invalidation.KeyOrders) && !term.Router.IsStale(invalidation.KeyOrders)
	}, waitFor, tick)
	assert.Empty(t, term.Cache.Orders())

	// jaringan putus: hub melepas koneksi dan reconnect ditahan
	dialer.offline.Store(true)
	f.hub.Shutdown()
	require.Eventually(t, func() bool {
		return term.Manager.State() != realtime.StateOpen
	}, waitFor, tick)

	require.Equal(t, http.StatusCreated, f.post(t, "/orders", map[string]interface{}{
		"table_id": table.ID,
		"menu_id":  menu.ID,
	}))
	f.flush(t)
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, term.Cache.Orders())

	dialer.offline.Store(false)
	require.Eventually(t, func() bool {
		return term.Manager.State() == realtime.StateOpen
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		return len(term.Cache.Orders()) == 1 && !term.Router.IsStale(invalidation.KeyOrders)
	}, waitFor, tick)
	assert.Equal(t, 5000.0, term.Cache.Orders()[0].Price)
}
