package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
	StateError      State = "error"
)

var (
	ErrNotOpen        = errors.New("realtime: channel is not open")
	ErrClosed         = errors.New("realtime: manager closed")
	ErrAlreadyStarted = errors.New("realtime: manager already connected")
)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 10 * time.Second
	writeWait         = 10 * time.Second
)

// Conn -> koneksi duplex yang dipegang manager
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct {
	dialer *websocket.Dialer
	header http.Header
}

func (d wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

type stateListener struct {
	id uint64
	fn func(State)
}

// Manager memegang satu koneksi realtime per client, reconnect otomatis, dan membagikan event ke subscriber lokal.
type Manager struct {
	url        string
	dialer     Dialer
	header     http.Header
	bus        *Bus
	log        logrus.FieldLogger
	minBackoff time.Duration
	maxBackoff time.Duration

	mu          sync.Mutex
	state       State
	conn        Conn
	presence    *protocol.PresenceChanged
	listeners   []stateListener
	listenerID  uint64
	started     bool
	closed      bool
	dispatching bool
	cancel      context.CancelFunc
	done        chan struct{}

	writeMu sync.Mutex
}

type Option func(*Manager)

// WithBus shares one bus between the manager and other components.
func WithBus(b *Bus) Option {
	return func(m *Manager) { m.bus = b }
}

func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithHeader sets handshake headers for the default dialer, e.g. Authorization.
func WithHeader(h http.Header) Option {
	return func(m *Manager) { m.header = h }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

func WithBackoff(min, max time.Duration) Option {
	return func(m *Manager) {
		if min > 0 {
			m.minBackoff = min
		}
		if max >= m.minBackoff {
			m.maxBackoff = max
		}
	}
}

func NewManager(url string, opts ...Option) *Manager {
	m := &Manager{
		url:        url,
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
		state:      StateClosed,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = NewBus()
	}
	if m.dialer == nil {
		m.dialer = wsDialer{dialer: websocket.DefaultDialer, header: m.header}
	}
	if m.log == nil {
		m.log = utils.Log()
	}
	m.log = m.log.WithField("url", url)
	return m
}

// Connect blocks until the first handshake succeeds or fails. Either way a
// background loop then owns the connection and reconnects with backoff until Close.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	conn, err := m.dial(ctx)
	go m.run(loopCtx, conn)
	return err
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	m.setState(StateConnecting)

	conn, err := m.dialer.Dial(ctx, m.url)
	if err != nil {
		m.log.WithError(err).Warn("Realtime connect failed")
		m.setState(StateError)
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	m.conn = conn
	m.mu.Unlock()

	m.log.Info("Realtime channel open")
	m.setState(StateOpen)
	return conn, nil
}

func (m *Manager) run(ctx context.Context, conn Conn) {
	defer close(m.done)

	attempt := 0
	for {
		if conn != nil {
			attempt = 0
			m.readLoop(ctx, conn)
		}
		if ctx.Err() != nil {
			return
		}

		delay := m.backoff(attempt)
		attempt++
		m.log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Info("Reconnecting")
		m.setState(StateConnecting)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		conn, _ = m.dial(ctx)
	}
}

func (m *Manager) backoff(attempt int) time.Duration {
	d := m.minBackoff
	for i := 0; i < attempt && d < m.maxBackoff; i++ {
		d *= 2
	}
	if d > m.maxBackoff {
		d = m.maxBackoff
	}
	return d
}

// readLoop dispatches frames in arrival order until the connection fails.
func (m *Manager) readLoop(ctx context.Context, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
			}
			m.presence = nil
			m.mu.Unlock()
			conn.Close()

			if ctx.Err() == nil {
				m.log.WithError(err).Warn("Realtime channel lost")
				m.setState(StateError)
			}
			return
		}

		msg, err := protocol.Decode(data)
		switch {
		case errors.Is(err, protocol.ErrUnknownKind):
			m.log.WithField("kind", msg.Kind).Debug("Ignoring unknown event kind")
			continue
		case err != nil:
			m.log.WithError(err).Warn("Dropping malformed frame")
			continue
		}

		m.mu.Lock()
		if p, ok := msg.Payload.(protocol.PresenceChanged); ok {
			m.presence = &p
		}
		m.dispatching = true
		m.mu.Unlock()

		m.bus.Dispatch(msg)

		m.mu.Lock()
		m.dispatching = false
		m.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
	}
}

// Send -> kirim event ke hub; tidak pernah panic, ErrNotOpen bila channel belum terbuka
func (m *Manager) Send(p protocol.Payload) error {
	m.mu.Lock()
	conn, state := m.conn, m.state
	m.mu.Unlock()

	if conn == nil || state != StateOpen {
		m.log.WithField("kind", p.Kind()).Warn("Send while channel not open")
		return ErrNotOpen
	}

	frame, err := protocol.Encode(p)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send %s: %w", p.Kind(), err)
	}
	return nil
}

func (m *Manager) Subscribe(filter []protocol.EventKind, h Handler) (unsubscribe func()) {
	return m.bus.Subscribe(filter, h)
}

// OnStateChange calls fn with the current state and again on every transition.
func (m *Manager) OnStateChange(fn func(State)) (remove func()) {
	m.mu.Lock()
	m.listenerID++
	id := m.listenerID
	m.listeners = append(m.listeners, stateListener{id: id, fn: fn})
	current := m.state
	m.mu.Unlock()

	fn(current)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	listeners := make([]stateListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l.fn(s)
	}
}

// Close cancels the reconnect timer and the read loop and waits for them to exit.
// Called from a subscriber handler it returns without waiting; the loop exits once
// that handler returns.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	// Close dari dalam handler tidak boleh menunggu loop yang sedang menjalankan handler itu
	wait := m.started && !m.dispatching
	conn := m.conn
	m.conn = nil
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
		conn.Close()
	}
	if wait {
		<-m.done
	}

	m.mu.Lock()
	m.presence = nil
	m.mu.Unlock()
	m.setState(StateClosed)
	m.log.Info("Realtime channel closed")
}
