// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus is an in-memory broadcast used to fan job events out to
// streaming HTTP clients.
//
// Publishing never blocks: each subscriber owns a bounded buffer and a full
// buffer drops the event for that subscriber only. Publishing with no
// subscriber attached is a no-op.
package bus

import (
	"sync"

	"github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

const dropLogEvery = 100

// Option configures a Bus.
type Option func(*options)

type options struct {
	buffer    int
	exclusive bool
}

// WithBuffer sets the per-subscriber buffer size.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithExclusive makes the bus hold at most one subscriber. Attaching a new
// subscriber detaches the previous one without closing its channel.
func WithExclusive(exclusive bool) Option {
	return func(o *options) { o.exclusive = exclusive }
}

// Bus broadcasts values of type T to every attached subscriber.
type Bus[T any] struct {
	topic string
	opts  options

	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]*Subscription[T]
	dropped uint64
}

// New creates a bus for topic (used as the metrics label).
func New[T any](topic string, opts ...Option) *Bus[T] {
	o := options{buffer: DefaultBuffer}
	for _, fn := range opts {
		fn(&o)
	}
	return &Bus[T]{
		topic: topic,
		opts:  o,
		subs:  make(map[uint64]*Subscription[T]),
	}
}

// Subscription is one attached consumer.
type Subscription[T any] struct {
	id  uint64
	bus *Bus[T]
	ch  chan T
}

// ID identifies the subscription within its bus.
func (s *Subscription[T]) ID() uint64 { return s.id }

// C delivers published values. It is closed by CloseSubscribers.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Close detaches the subscription. It does not close C and is idempotent.
func (s *Subscription[T]) Close() {
	s.bus.detach(s.id)
}

// Subscribe attaches a new subscriber.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription[T]{id: b.nextID, bus: b, ch: make(chan T, b.opts.buffer)}
	if b.opts.exclusive && len(b.subs) > 0 {
		for id := range b.subs {
			delete(b.subs, id)
		}
		logger := log.WithComponent("bus")
		logger.Debug().
			Str("topic", b.topic).
			Uint64("subscriber", sub.id).
			Msg("exclusive bus: previous subscriber replaced")
	}
	b.subs[sub.id] = sub
	metrics.SetBusSubscribers(b.topic, len(b.subs))
	return sub
}

func (b *Bus[T]) detach(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; !ok {
		return
	}
	delete(b.subs, id)
	metrics.SetBusSubscribers(b.topic, len(b.subs))
}

// Publish delivers v to every subscriber without blocking.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- v:
		default:
			metrics.IncBusDrop(b.topic)
			b.dropped++
			if b.dropped%dropLogEvery == 1 {
				logger := log.WithComponent("bus")
				logger.Warn().
					Str("topic", b.topic).
					Uint64("subscriber", sub.id).
					Uint64("dropped", b.dropped).
					Msg("subscriber buffer full, dropping event")
			}
		}
	}
}

// CloseSubscribers closes and detaches every current subscriber, ending
// their streams. Subscribers attached afterwards receive later events.
func (b *Bus[T]) CloseSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	metrics.SetBusSubscribers(b.topic, 0)
}

// Len returns the number of attached subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Topic returns the bus topic name.
func (b *Bus[T]) Topic() string { return b.topic }
