package kds

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

const (
	DefaultBridgeChannel = "floor:events"
	bridgeBuffer         = 256
	bridgePublishTimeout = 2 * time.Second
)

type bridgeEnvelope struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

// RedisBridge -> menyambungkan hub di beberapa replica lewat Redis pub/sub.
// Frame dari replica lain hanya dikirim ke koneksi lokal; presence tetap per replica.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
	origin  string
	log     logrus.FieldLogger

	out    chan []byte
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisBridge(client *redis.Client, hub *Hub, channel string) *RedisBridge {
	if channel == "" {
		channel = DefaultBridgeChannel
	}
	return &RedisBridge{
		client:  client,
		hub:     hub,
		channel: channel,
		origin:  uuid.NewString(),
		log:     utils.Log().WithField("component", "redis_bridge"),
		out:     make(chan []byte, bridgeBuffer),
	}
}

// Start subscribes to the channel and installs the bridge as the hub's relay.
func (b *RedisBridge) Start(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.hub.SetRelay(b)

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := b.handle(msg.Payload); err != nil {
					b.log.WithError(err).Warn("Dropping bridged frame")
				}
			}
		}
	}()
	go func() {
		defer b.wg.Done()
		b.publishLoop(ctx)
	}()

	b.log.WithFields(logrus.Fields{"channel": b.channel, "origin": b.origin}).Info("Redis bridge started")
	return nil
}

// Forward -> dipanggil hub untuk setiap frame lokal; tidak pernah memblokir Publish
func (b *RedisBridge) Forward(frame []byte) {
	select {
	case b.out <- frame:
	default:
		b.log.Warn("Bridge buffer full, frame not forwarded")
	}
}

func (b *RedisBridge) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-b.out:
			payload, err := json.Marshal(bridgeEnvelope{Origin: b.origin, Data: frame})
			if err != nil {
				b.log.WithError(err).Error("Failed to wrap frame")
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, bridgePublishTimeout)
			if err := b.client.Publish(pctx, b.channel, payload).Err(); err != nil {
				b.log.WithError(err).Warn("Failed to publish frame to redis")
			}
			cancel()
		}
	}
}

func (b *RedisBridge) handle(payload string) error {
	var env bridgeEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Origin == b.origin {
		return nil
	}
	return b.hub.Deliver(env.Data)
}

func (b *RedisBridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}
