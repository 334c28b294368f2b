package kds

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor-sync/metrics"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192

	defaultQueueSize = 256
)

// Socket -> bagian dari *websocket.Conn yang dipakai hub
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Relay receives every frame published locally so it can reach other replicas.
type Relay interface {
	Forward(frame []byte)
}

// Identity -> siapa yang berada di balik sebuah koneksi (dari token, boleh kosong)
type Identity struct {
	UserID   uint
	Name     string
	Role     string
	PhotoURL string
}

// Client -> satu koneksi duplex yang terdaftar di hub
type Client struct {
	ID          uuid.UUID
	Identity    Identity
	ConnectedAt time.Time

	sock Socket
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// enqueue returns false when the client is gone or its queue is full.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Hub menampung semua koneksi terminal (chef, staff, admin) dan menyiarkan event ke semuanya.
// Hub tidak menyimpan state domain selain registry koneksi.
type Hub struct {
	mu      sync.Mutex
	clients []*Client

	// presenceMu menjaga snapshot dihitung dan dikirim berurutan
	presenceMu sync.Mutex

	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	relay     Relay
	queueSize int
	now       func() time.Time
}

type Option func(*Hub)

func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Hub) { h.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithQueueSize sets the per-connection outbound buffer.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		queueSize: defaultQueueSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = utils.Log()
	}
	return h
}

// SetRelay -> dipasang oleh RedisBridge setelah hub dibuat
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

// Accept -> mendaftarkan koneksi baru, menjalankan writePump, lalu menyiarkan presence ke semua termasuk koneksi baru
func (h *Hub) Accept(sock Socket, id Identity) *Client {
	c := &Client{
		ID:          uuid.New(),
		Identity:    id,
		ConnectedAt: h.now(),
		sock:        sock,
		send:        make(chan []byte, h.queueSize),
	}

	h.mu.Lock()
	h.clients = append(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionsOpen.Inc()
	}
	h.log.WithFields(logrus.Fields{
		"client_id": c.ID.String(),
		"name":      id.Name,
		"role":      id.Role,
		"clients":   count,
	}).Info("Client connected")

	go h.writePump(c)
	h.broadcastPresence()
	return c
}

// Close -> melepaskan koneksi. Idempotent; presence hanya disiarkan saat koneksi benar-benar dilepas.
func (h *Hub) Close(c *Client) {
	if !h.remove(c) {
		return
	}
	c.shutdown()

	if h.metrics != nil {
		h.metrics.ConnectionsOpen.Dec()
	}
	h.log.WithField("client_id", c.ID.String()).Info("Client disconnected")
	h.broadcastPresence()
}

func (h *Hub) remove(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.clients {
		if existing == c {
			h.clients = append(h.clients[:i], h.clients[i+1:]...)
			return true
		}
	}
	return false
}

// Publish -> encode sekali lalu kirim ke semua koneksi sesuai urutan registrasi
func (h *Hub) Publish(p protocol.Payload) error {
	frame, err := protocol.Encode(p)
	if err != nil {
		return err
	}
	h.fanOut(frame, p.Kind())

	if p.Kind() == protocol.KindPresenceChanged {
		return nil
	}
	h.mu.Lock()
	relay := h.relay
	h.mu.Unlock()
	if relay != nil {
		relay.Forward(frame)
	}
	return nil
}

// Deliver -> frame dari replica lain; hanya dikirim ke koneksi lokal, tidak diteruskan lagi
func (h *Hub) Deliver(frame []byte) error {
	msg, err := protocol.Decode(frame)
	if err != nil {
		return err
	}
	if msg.Kind == protocol.KindPresenceChanged {
		return nil
	}
	h.fanOut(frame, msg.Kind)
	return nil
}

func (h *Hub) fanOut(frame []byte, kind protocol.EventKind) {
	h.mu.Lock()
	targets := make([]*Client, len(h.clients))
	copy(targets, h.clients)
	h.mu.Unlock()

	var failed []*Client
	for _, c := range targets {
		if !c.enqueue(frame) {
			failed = append(failed, c)
		}
	}

	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(string(kind)).Inc()
	}
	h.log.WithFields(logrus.Fields{
		"kind":    kind,
		"clients": len(targets),
	}).Debug("Broadcasting event")

	for _, c := range failed {
		h.log.WithField("client_id", c.ID.String()).Warn("Send queue full, dropping client")
		if h.metrics != nil {
			h.metrics.SendFailures.Inc()
		}
		h.Close(c)
	}
}

// Presence -> jumlah koneksi terbuka dan roster unik per nama (connectedAt paling awal)
func (h *Hub) Presence() protocol.PresenceChanged {
	h.mu.Lock()
	clients := make([]*Client, len(h.clients))
	copy(clients, h.clients)
	h.mu.Unlock()

	byName := make(map[string]protocol.PresenceUser)
	for _, c := range clients {
		name := c.Identity.Name
		if name == "" {
			continue
		}
		if prev, ok := byName[name]; ok && !c.ConnectedAt.Before(prev.ConnectedAt) {
			continue
		}
		byName[name] = protocol.PresenceUser{
			Name:        name,
			ConnectedAt: c.ConnectedAt,
			PhotoURL:    c.Identity.PhotoURL,
		}
	}

	users := make([]protocol.PresenceUser, 0, len(byName))
	for _, u := range byName {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].ConnectedAt.Equal(users[j].ConnectedAt) {
			return users[i].ConnectedAt.Before(users[j].ConnectedAt)
		}
		return users[i].Name < users[j].Name
	})

	return protocol.PresenceChanged{Count: len(clients), Users: users}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcastPresence() {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()
	if err := h.Publish(h.Presence()); err != nil {
		h.log.WithError(err).Error("Failed to encode presence")
		return
	}
	if h.metrics != nil {
		h.metrics.PresenceBroadcasts.Inc()
	}
}

// HandleInbound -> frame dari client: kind dikenal diteruskan ke semua, selain itu dibuang
func (h *Hub) HandleInbound(c *Client, data []byte) {
	entry := h.log.WithField("client_id", c.ID.String())

	msg, err := protocol.Decode(data)
	switch {
	case errors.Is(err, protocol.ErrUnknownKind):
		entry.WithField("kind", msg.Kind).Debug("Ignoring unknown event kind")
		h.dropped("unknown")
		return
	case err != nil:
		entry.WithError(err).Warn("Dropping malformed frame")
		h.dropped("malformed")
		return
	}

	// presence hanya berasal dari hub
	if msg.Kind == protocol.KindPresenceChanged {
		h.dropped("presence")
		return
	}

	if err := h.Publish(msg.Payload); err != nil {
		entry.WithError(err).Error("Failed to relay event")
	}
}

func (h *Hub) dropped(reason string) {
	if h.metrics != nil {
		h.metrics.InboundDropped.WithLabelValues(reason).Inc()
	}
}

// ReadPump -> membaca frame dari koneksi sampai error, lalu melepas client
func (h *Hub) ReadPump(c *Client) {
	defer h.Close(c)

	c.sock.SetReadLimit(maxMessageSize)
	c.sock.SetReadDeadline(h.now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("client_id", c.ID.String()).Warn("WebSocket read error")
			}
			return
		}
		h.HandleInbound(c, data)
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.WithError(err).WithField("client_id", c.ID.String()).Warn("Write failed, dropping client")
				if h.metrics != nil {
					h.metrics.SendFailures.Inc()
				}
				h.Close(c)
				return
			}

		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Close(c)
				return
			}
		}
	}
}

// Shutdown -> melepas semua koneksi, dipakai saat server berhenti
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := h.clients
	h.clients = nil
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
		if h.metrics != nil {
			h.metrics.ConnectionsOpen.Dec()
		}
	}
	h.log.WithField("clients", len(clients)).Info("Hub shut down")
}
