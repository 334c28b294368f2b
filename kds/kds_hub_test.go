package kds

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-floor-sync/metrics"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
)

type fakeSocket struct {
	mu         sync.Mutex
	frames     [][]byte
	failWrites bool
	block      chan struct{}
	writing    chan struct{}

	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-s.inbound:
		if !ok {
			return 0, nil, errors.New("connection reset")
		}
		return websocket.TextMessage, data, nil
	case <-s.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	if s.block != nil {
		select {
		case s.writing <- struct{}{}:
		default:
		}
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("broken pipe")
	}
	if messageType == websocket.TextMessage {
		s.frames = append(s.frames, append([]byte(nil), data...))
	}
	return nil
}

func (s *fakeSocket) SetReadLimit(int64)                 {}
func (s *fakeSocket) SetReadDeadline(time.Time) error    { return nil }
func (s *fakeSocket) SetWriteDeadline(time.Time) error   { return nil }
func (s *fakeSocket) SetPongHandler(func(string) error) {}

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) messages(t *testing.T) []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Message, 0, len(s.frames))
	for _, f := range s.frames {
		msg, err := protocol.Decode(f)
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func (s *fakeSocket) events(t *testing.T) []protocol.Message {
	var out []protocol.Message
	for _, m := range s.messages(t) {
		if m.Kind != protocol.KindPresenceChanged {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSocket) lastPresence(t *testing.T) (protocol.PresenceChanged, bool) {
	msgs := s.messages(t)
	for i := len(msgs) - 1; i >= 0; i-- {
		if p, ok := msgs[i].Payload.(protocol.PresenceChanged); ok {
			return p, true
		}
	}
	return protocol.PresenceChanged{}, false
}

type recordingRelay struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *recordingRelay) Forward(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestHub(opts ...Option) (*Hub, *metrics.Metrics) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	opts = append([]Option{WithLogger(quietLogger()), WithMetrics(m)}, opts...)
	return NewHub(opts...), m
}

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func TestAcceptBroadcastsPresenceToNewClient(t *testing.T) {
	h, m := newTestHub()
	sock := newFakeSocket()

	c := h.Accept(sock, Identity{Name: "Ana", PhotoURL: "https://img/ana.png"})
	assert.NotEqual(t, "", c.ID.String())

	require.Eventually(t, func() bool { return len(sock.messages(t)) == 1 }, waitFor, tick)
	p, ok := sock.lastPresence(t)
	require.True(t, ok)
	assert.Equal(t, 1, p.Count)
	require.Len(t, p.Users, 1)
	assert.Equal(t, "Ana", p.Users[0].Name)
	assert.Equal(t, "https://img/ana.png", p.Users[0].PhotoURL)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsOpen))
}

func TestPublishReachesEveryClientInOrder(t *testing.T) {
	h, _ := newTestHub()
	s1, s2 := newFakeSocket(), newFakeSocket()
	h.Accept(s1, Identity{Name: "Ana"})
	h.Accept(s2, Identity{Name: "Budi"})

	require.NoError(t, h.Publish(protocol.NewOrder{OrderID: 1, TableID: 3}))
	require.NoError(t, h.Publish(protocol.NewOrder{OrderID: 2, TableID: 3}))

	for _, s := range []*fakeSocket{s1, s2} {
		require.Eventually(t, func() bool { return len(s.events(t)) == 2 }, waitFor, tick)
		events := s.events(t)
		assert.Equal(t, uint(1), events[0].Payload.(protocol.NewOrder).OrderID)
		assert.Equal(t, uint(2), events[1].Payload.(protocol.NewOrder).OrderID)
	}
}

func TestPresenceCountIsOpenMinusClosed(t *testing.T) {
	h, _ := newTestHub()
	sockets := make([]*fakeSocket, 5)
	clients := make([]*Client, 5)
	for i := range sockets {
		sockets[i] = newFakeSocket()
		clients[i] = h.Accept(sockets[i], Identity{})
	}

	h.Close(clients[0])
	h.Close(clients[3])

	assert.Equal(t, 3, h.Count())
	assert.Equal(t, 3, h.Presence().Count)
	require.Eventually(t, func() bool {
		p, ok := sockets[4].lastPresence(t)
		return ok && p.Count == 3
	}, waitFor, tick)
}

func TestCloseIsIdempotent(t *testing.T) {
	h, m := newTestHub()
	other := newFakeSocket()
	h.Accept(other, Identity{Name: "Budi"})
	c := h.Accept(newFakeSocket(), Identity{Name: "Ana"})

	h.Close(c)
	h.Close(c)

	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsOpen))
	// presence(1), presence(2), presence(1); the second Close broadcasts nothing
	require.Eventually(t, func() bool { return len(other.messages(t)) == 3 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, other.messages(t), 3)
}

func TestFailingConnectionDoesNotBlockOthers(t *testing.T) {
	h, m := newTestHub()
	bad := newFakeSocket()
	bad.failWrites = true
	good := newFakeSocket()

	h.Accept(bad, Identity{Name: "Ana"})
	h.Accept(good, Identity{Name: "Budi"})
	require.NoError(t, h.Publish(protocol.KitchenAlert{TableNumber: "7"}))

	require.Eventually(t, func() bool { return len(good.events(t)) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return h.Count() == 1 }, waitFor, tick)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.SendFailures), 1.0)
}

func TestFullQueueDropsSlowClient(t *testing.T) {
	h, m := newTestHub(WithQueueSize(2))
	slow := newFakeSocket()
	slow.block = make(chan struct{})
	slow.writing = make(chan struct{}, 1)
	defer close(slow.block)
	fast := newFakeSocket()

	h.Accept(slow, Identity{Name: "Ana"})
	select {
	case <-slow.writing:
	case <-time.After(waitFor):
		t.Fatal("slow writer never started")
	}

	h.Accept(fast, Identity{Name: "Budi"})
	require.Eventually(t, func() bool { return len(fast.messages(t)) == 1 }, waitFor, tick)

	require.NoError(t, h.Publish(protocol.NewOrder{OrderID: 1, TableID: 1}))
	require.Eventually(t, func() bool { return len(fast.events(t)) == 1 }, waitFor, tick)
	assert.Equal(t, 2, h.Count())

	require.NoError(t, h.Publish(protocol.NewOrder{OrderID: 2, TableID: 1}))
	require.Eventually(t, func() bool { return len(fast.events(t)) == 2 }, waitFor, tick)
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendFailures))

	assert.Equal(t, 1, h.Presence().Count)
}

func TestHandleInbound(t *testing.T) {
	h, m := newTestHub()
	sender := newFakeSocket()
	receiver := newFakeSocket()
	c := h.Accept(sender, Identity{Name: "Ana"})
	h.Accept(receiver, Identity{Name: "Budi"})

	h.HandleInbound(c, []byte(`{"type":"future-kind","payload":{}}`))
	h.HandleInbound(c, []byte(`{"type":`))
	h.HandleInbound(c, []byte(`{"type":"new-order","payload":{"tableId":1}}`))
	h.HandleInbound(c, []byte(`{"type":"presence-changed","payload":{"count":99}}`))
	h.HandleInbound(c, []byte(`{"type":"kitchen-alert","payload":{"tableNumber":"12"}}`))

	require.Eventually(t, func() bool { return len(receiver.events(t)) == 1 }, waitFor, tick)
	events := receiver.events(t)
	assert.Equal(t, protocol.KindKitchenAlert, events[0].Kind)
	assert.Equal(t, "12", events[0].Payload.(protocol.KitchenAlert).TableNumber)

	p, ok := receiver.lastPresence(t)
	require.True(t, ok)
	assert.Equal(t, 2, p.Count)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundDropped.WithLabelValues("unknown")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InboundDropped.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundDropped.WithLabelValues("presence")))
}

func TestPresenceRosterDeduplicatesByName(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tickN := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tickN++
		return base.Add(time.Duration(tickN) * time.Minute)
	}

	h, _ := newTestHub(WithClock(clock))
	h.Accept(newFakeSocket(), Identity{Name: "Ana"})
	h.Accept(newFakeSocket(), Identity{Name: "Budi"})
	h.Accept(newFakeSocket(), Identity{Name: "Ana"})
	h.Accept(newFakeSocket(), Identity{})

	p := h.Presence()
	assert.Equal(t, 4, p.Count)
	require.Len(t, p.Users, 2)
	assert.Equal(t, "Ana", p.Users[0].Name)
	assert.Equal(t, base.Add(time.Minute), p.Users[0].ConnectedAt)
	assert.Equal(t, "Budi", p.Users[1].Name)
}

func TestPublishForwardsToRelayExceptPresence(t *testing.T) {
	h, _ := newTestHub()
	relay := &recordingRelay{}
	h.SetRelay(relay)

	local := newFakeSocket()
	h.Accept(local, Identity{Name: "Ana"})
	assert.Equal(t, 0, relay.count())

	require.NoError(t, h.Publish(protocol.WorkdayStarted{WorkdayID: 1}))
	assert.Equal(t, 1, relay.count())

	frame, err := protocol.Encode(protocol.TableActivated{TableID: 4, TableNumber: "4"})
	require.NoError(t, err)
	require.NoError(t, h.Deliver(frame))
	assert.Equal(t, 1, relay.count())

	require.Eventually(t, func() bool { return len(local.events(t)) == 2 }, waitFor, tick)
}

func TestDeliverRejectsMalformedFrame(t *testing.T) {
	h, _ := newTestHub()
	err := h.Deliver([]byte("nope"))
	assert.ErrorIs(t, err, protocol.ErrMalformed)
}

func TestReadPumpRelaysAndClosesOnError(t *testing.T) {
	h, _ := newTestHub()
	sender := newFakeSocket()
	receiver := newFakeSocket()
	c := h.Accept(sender, Identity{Name: "Ana"})
	h.Accept(receiver, Identity{Name: "Budi"})

	done := make(chan struct{})
	go func() {
		h.ReadPump(c)
		close(done)
	}()

	sender.inbound <- []byte(`{"type":"order-completed","payload":{"orderId":5,"tableId":2}}`)
	require.Eventually(t, func() bool { return len(receiver.events(t)) == 1 }, waitFor, tick)

	close(sender.inbound)
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("ReadPump did not return")
	}
	assert.Equal(t, 1, h.Count())
}

func TestShutdownReleasesEveryClient(t *testing.T) {
	h, m := newTestHub()
	s1, s2 := newFakeSocket(), newFakeSocket()
	h.Accept(s1, Identity{})
	h.Accept(s2, Identity{})

	h.Shutdown()

	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionsOpen))
	for _, s := range []*fakeSocket{s1, s2} {
		select {
		case <-s.closed:
		case <-time.After(waitFor):
			t.Fatal("socket not closed")
		}
	}
}

func TestConcurrentChurnEndsWithLatestPresence(t *testing.T) {
	h, _ := newTestHub()
	observer := newFakeSocket()
	h.Accept(observer, Identity{Name: "Ana"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := h.Accept(newFakeSocket(), Identity{Name: "Budi"})
			h.Close(c)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return len(observer.messages(t)) == 41
	}, waitFor, tick)
	p, ok := observer.lastPresence(t)
	require.True(t, ok)
	assert.Equal(t, 1, p.Count)
	require.Len(t, p.Users, 1)
	assert.Equal(t, "Ana", p.Users[0].Name)
}
