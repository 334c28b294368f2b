package invalidation

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor-sync/metrics"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/realtime"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

const DefaultWindow = 50 * time.Millisecond

// Refetcher asks the store of record for fresh data. Retries are its own business.
type Refetcher interface {
	Refetch(ctx context.Context, key Key) error
}

// Subscriber is the part of the channel manager the router listens on.
type Subscriber interface {
	Subscribe(filter []protocol.EventKind, h realtime.Handler) (unsubscribe func())
}

// Router menandai cache stale per event dan menggabungkan burst menjadi satu refetch per key.
type Router struct {
	routes    map[protocol.EventKind][]Key
	refetcher Refetcher
	window    time.Duration
	log       logrus.FieldLogger
	metrics   *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	fresh      map[Key]bool
	generation map[Key]uint64
	mounts     map[Key]int
	pending    map[Key]*time.Timer
	inflight   map[Key]bool
	rerun      map[Key]bool
	stopped    bool
}

type Option func(*Router)

func WithRoutes(routes map[protocol.EventKind][]Key) Option {
	return func(r *Router) { r.routes = routes }
}

// WithWindow sets how long a key waits for more invalidations before refetching.
func WithWindow(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.window = d
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Router) { r.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

func NewRouter(refetcher Refetcher, opts ...Option) *Router {
	r := &Router{
		routes:     DefaultRoutes,
		refetcher:  refetcher,
		window:     DefaultWindow,
		fresh:      make(map[Key]bool),
		generation: make(map[Key]uint64),
		mounts:     make(map[Key]int),
		pending:    make(map[Key]*time.Timer),
		inflight:   make(map[Key]bool),
		rerun:      make(map[Key]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = utils.Log()
	}
	r.log = r.log.WithField("component", "invalidation")
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// Attach subscribes the router to every event on s.
func (r *Router) Attach(s Subscriber) (detach func()) {
	return s.Subscribe(nil, r.Handle)
}

// Handle marks mapped keys stale and schedules a refetch for the mounted ones.
// Kinds without a mapping leave the router untouched.
func (r *Router) Handle(msg protocol.Message) {
	if !msg.Kind.Known() || msg.Payload == nil {
		return
	}
	keys := r.routes[msg.Kind]
	if len(keys) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	for _, key := range keys {
		r.fresh[key] = false
		r.generation[key]++
		if r.mounts[key] > 0 {
			r.schedule(key)
		}
	}
}

// InvalidateAll marks every key stale and refetches the mounted ones. Used after
// a reconnect, when events sent while offline were never received.
func (r *Router) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	keys := make(map[Key]struct{}, len(Keys))
	for _, key := range Keys {
		keys[key] = struct{}{}
	}
	for key := range r.fresh {
		keys[key] = struct{}{}
	}
	for key := range r.mounts {
		keys[key] = struct{}{}
	}
	for key := range keys {
		r.fresh[key] = false
		r.generation[key]++
		if r.mounts[key] > 0 {
			r.schedule(key)
		}
	}
}

// Mount -> view mulai memakai key; refetch langsung dijadwalkan bila data belum fresh
func (r *Router) Mount(key Key) (unmount func()) {
	r.mu.Lock()
	r.mounts[key]++
	if !r.fresh[key] && !r.stopped {
		r.schedule(key)
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.mounts[key]--
			if r.mounts[key] <= 0 {
				delete(r.mounts, key)
			}
		})
	}
}

func (r *Router) IsStale(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.fresh[key]
}

func (r *Router) Mounted(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mounts[key] > 0
}

// schedule must be called with r.mu held.
func (r *Router) schedule(key Key) {
	if _, ok := r.pending[key]; ok {
		if r.metrics != nil {
			r.metrics.EventsCoalesced.Inc()
		}
		return
	}
	if r.inflight[key] {
		r.rerun[key] = true
		return
	}

	r.wg.Add(1)
	r.pending[key] = time.AfterFunc(r.window, func() {
		defer r.wg.Done()
		r.fire(key)
	})
}

func (r *Router) fire(key Key) {
	r.mu.Lock()
	delete(r.pending, key)
	if r.stopped || r.mounts[key] == 0 {
		r.mu.Unlock()
		return
	}
	r.inflight[key] = true
	gen := r.generation[key]
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.Refetches.WithLabelValues(string(key)).Inc()
	}
	err := r.refetcher.Refetch(r.ctx, key)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight[key] = false
	if err != nil {
		r.log.WithError(err).WithField("key", key).Warn("Refetch failed, keeping stale data")
	} else if r.generation[key] == gen {
		r.fresh[key] = true
	}
	if r.rerun[key] {
		r.rerun[key] = false
		if !r.stopped && r.mounts[key] > 0 {
			r.schedule(key)
		}
	}
}

// Stop cancels pending refetches and waits for running ones to return.
func (r *Router) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	for key, t := range r.pending {
		if t.Stop() {
			r.wg.Done()
		}
		delete(r.pending, key)
	}
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
}
