// Package terminal wires the client side of the floor sync: one realtime
// channel, the invalidation router, the local cache and the aggregator views.
package terminal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor-sync/aggregator"
	"github.com/yeremiapane/restaurant-floor-sync/invalidation"
	"github.com/yeremiapane/restaurant-floor-sync/metrics"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/realtime"
	"github.com/yeremiapane/restaurant-floor-sync/store"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

type Config struct {
	HubURL   string
	StoreURL string
	Token    string
	Window   time.Duration
}

// Summary -> apa yang ditampilkan header terminal
type Summary struct {
	Presence     string
	ShiftActive  bool
	Revenue      string
	OrderCount   int
	OpenSessions int
	Alerts       int64
}

type Terminal struct {
	Manager *realtime.Manager
	Router  *invalidation.Router
	Cache   *store.Cache

	log    logrus.FieldLogger
	bell   io.Writer
	alerts atomic.Int64

	mu       sync.Mutex
	label    string
	opened   bool
	cleanups []func()
}

type Option func(*options)

type options struct {
	log      logrus.FieldLogger
	bell     io.Writer
	metrics  *metrics.Metrics
	managerO []realtime.Option
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithBell sets where the audible cue for kitchen alerts is written.
func WithBell(w io.Writer) Option {
	return func(o *options) { o.bell = w }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithManagerOptions(opts ...realtime.Option) Option {
	return func(o *options) { o.managerO = append(o.managerO, opts...) }
}

func New(cfg Config, opts ...Option) *Terminal {
	o := options{bell: io.Discard}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = utils.Log()
	}

	header := http.Header{}
	var clientOpts []store.ClientOption
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
		clientOpts = append(clientOpts, store.WithToken(cfg.Token))
	}

	managerOpts := append([]realtime.Option{
		realtime.WithHeader(header),
		realtime.WithLogger(o.log.WithField("component", "channel")),
	}, o.managerO...)

	cache := store.NewCache(store.NewClient(cfg.StoreURL, clientOpts...))
	routerOpts := []invalidation.Option{
		invalidation.WithWindow(cfg.Window),
		invalidation.WithLogger(o.log),
	}
	if o.metrics != nil {
		routerOpts = append(routerOpts, invalidation.WithMetrics(o.metrics))
	}

	return &Terminal{
		Manager: realtime.NewManager(cfg.HubURL, managerOpts...),
		Router:  invalidation.NewRouter(cache, routerOpts...),
		Cache:   cache,
		log:     o.log.WithField("component", "terminal"),
		bell:    o.bell,
	}
}

// Start -> pasang subscriber, mount semua view, lalu buka channel.
// Error dial pertama dikembalikan tetapi manager tetap mencoba reconnect.
func (t *Terminal) Start(ctx context.Context) error {
	cleanups := []func(){
		t.Router.Attach(t.Manager),
		t.Manager.Subscribe([]protocol.EventKind{protocol.KindKitchenAlert}, t.onKitchenAlert),
		t.Manager.Subscribe([]protocol.EventKind{protocol.KindPresenceChanged}, func(protocol.Message) { t.refreshIndicator() }),
		t.Manager.OnStateChange(t.onStateChange),
		t.Cache.OnRefresh(t.onRefresh),
	}
	for _, key := range invalidation.Keys {
		cleanups = append(cleanups, t.Router.Mount(key))
	}
	t.mu.Lock()
	t.cleanups = append(t.cleanups, cleanups...)
	t.mu.Unlock()

	return t.Manager.Connect(ctx)
}

func (t *Terminal) onKitchenAlert(msg protocol.Message) {
	alert, ok := msg.Payload.(protocol.KitchenAlert)
	if !ok {
		return
	}
	t.alerts.Add(1)
	fmt.Fprint(t.bell, "\a")
	t.log.WithFields(logrus.Fields{
		"table":    alert.TableNumber,
		"order_id": alert.OrderID,
	}).Info("Kitchen alert: ", alert.Message)
}

func (t *Terminal) onRefresh(key invalidation.Key) {
	if key != invalidation.KeyOrders && key != invalidation.KeyWorkdays {
		return
	}
	summary := t.Summary(time.Now())
	if !summary.ShiftActive {
		return
	}
	t.log.WithFields(logrus.Fields{
		"revenue": summary.Revenue,
		"orders":  summary.OrderCount,
	}).Info("Shift totals updated")
}

// onStateChange -> setelah reconnect semua cache dianggap stale karena event selama offline hilang
func (t *Terminal) onStateChange(state realtime.State) {
	if state == realtime.StateOpen {
		t.mu.Lock()
		reconnected := t.opened
		t.opened = true
		t.mu.Unlock()
		if reconnected {
			t.log.Info("Channel reopened, reloading all views")
			t.Router.InvalidateAll()
		}
	}
	t.refreshIndicator()
}

// refreshIndicator -> log hanya ketika label berubah
func (t *Terminal) refreshIndicator() {
	label := t.Manager.PresenceView().Label()
	t.mu.Lock()
	changed := label != t.label
	t.label = label
	t.mu.Unlock()
	if changed {
		t.log.WithField("presence", label).Info("Connectivity changed")
	}
}

func (t *Terminal) Summary(now time.Time) Summary {
	s := Summary{
		Presence: t.Manager.PresenceView().Label(),
		Revenue:  utils.FormatCurrencyIDR(0),
		Alerts:   t.alerts.Load(),
	}
	if shift, ok := t.Cache.ActiveShift(now); ok {
		s.ShiftActive = true
		s.Revenue = utils.FormatCurrencyIDR(shift.Totals.Revenue)
		s.OrderCount = shift.Totals.OrderCount
	}
	for _, session := range t.Cache.Sessions() {
		if now.Sub(session.End) < aggregator.SessionGap {
			s.OpenSessions++
		}
	}
	return s
}

// Close melepas semua subscriber lalu menutup router dan channel.
func (t *Terminal) Close() {
	t.mu.Lock()
	cleanups := t.cleanups
	t.cleanups = nil
	t.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	t.Router.Stop()
	t.Manager.Close()
}
