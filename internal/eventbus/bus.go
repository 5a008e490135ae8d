// Package eventbus implements the bounded, drop-oldest trade event queue
// sitting between ingestion and the orchestrator. One Bus serves a single
// chain; the orchestrator runs one consumption loop per Bus.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mirrorbot/mirrorbot/internal/model"
)

const (
	// DefaultCapacity matches the spec's fixed queue depth.
	DefaultCapacity = 5000
	// EnqueueTimeout bounds how long Publish blocks before giving up.
	EnqueueTimeout = time.Second
)

// Bus is a single-consumer, multi-producer bounded queue of TradeEvents.
// When full, Publish drops the oldest queued event to make room for the
// new one rather than blocking the producer indefinitely.
type Bus struct {
	name string
	ch   chan model.TradeEvent

	mu      sync.Mutex
	dropped uint64
}

// New creates a Bus with the given name (used only for logging/metrics
// labels) and capacity.
func New(name string, capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		name: name,
		ch:   make(chan model.TradeEvent, capacity),
	}
}

// Publish enqueues evt, waiting up to EnqueueTimeout for room. If the bus is
// still full after the wait, the oldest queued event is dropped and evt is
// enqueued in its place; Publish never blocks a producer indefinitely.
func (b *Bus) Publish(evt model.TradeEvent) {
	select {
	case b.ch <- evt:
		return
	default:
	}

	timer := time.NewTimer(EnqueueTimeout)
	defer timer.Stop()

	select {
	case b.ch <- evt:
		return
	case <-timer.C:
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case old := <-b.ch:
		b.dropped++
		log.Warn().
			Str("bus", b.name).
			Str("dropped_tx", old.TxHash).
			Uint64("total_dropped", b.dropped).
			Msg("event bus full, dropped oldest event")
	default:
	}

	select {
	case b.ch <- evt:
	default:
		// Another producer raced us into the freed slot; evt is dropped
		// rather than blocking further, consistent with drop-oldest policy.
		b.dropped++
	}
}

// Consume returns the channel consumers range over. Only one goroutine
// should range over this channel at a time; the bus makes no ordering
// guarantee across multiple consumers.
func (b *Bus) Consume() <-chan model.TradeEvent {
	return b.ch
}

// Run ranges over the bus until ctx is cancelled, invoking handle for each
// event. This is the shape the orchestrator uses for its per-chain loop.
func (b *Bus) Run(ctx context.Context, handle func(model.TradeEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-b.ch:
			handle(evt)
		}
	}
}

// Depth returns the number of events currently queued.
func (b *Bus) Depth() int {
	return len(b.ch)
}

// Dropped returns the cumulative count of events dropped for back-pressure.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
