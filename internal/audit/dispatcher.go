package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events instead of blocking the request path when
	// the buffer is full.
	DropIfFull bool
}

// Dispatcher forwards events to a Sink from one background goroutine, so
// the sink sees events in emission order.
//
// Every discarded event is counted under its EventType: a full buffer in
// DropIfFull mode, and events still queued when a Shutdown deadline passes.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event

	done     chan struct{}
	finished chan struct{}
	closed   atomic.Bool
	abandon  atomic.Bool
	stopOnce sync.Once

	total   atomic.Uint64
	mu      sync.Mutex
	byEvent map[string]uint64
}

// NewDispatcher returns nil when cfg is disabled; a nil Dispatcher is
// safe to use and does nothing.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		ch:       make(chan Event, cfg.BufferSize),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		byEvent:  make(map[string]uint64),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.finished)

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	if d.abandon.Load() {
		d.drop(event)
		return
	}
	d.sink.Emit(context.Background(), event)
}

func (d *Dispatcher) drop(event Event) {
	d.total.Add(1)
	d.mu.Lock()
	d.byEvent[event.EventType]++
	d.mu.Unlock()
}

// Emit queues event. Without DropIfFull it blocks until there is room or
// ctx is done; an event abandoned that way is counted as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.drop(event)
	case <-d.done:
	}
}

// Shutdown stops accepting events and waits for the queue to drain. If ctx
// ends first, Shutdown returns ctx.Err() without waiting for the sink; the
// event in flight is still delivered and the rest are counted as dropped.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.stopOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
	})

	select {
	case <-d.finished:
		d.discardQueued()
		return nil
	case <-ctx.Done():
		d.abandon.Store(true)
		return ctx.Err()
	}
}

// discardQueued counts events that raced past the closed check after the
// worker exited.
func (d *Dispatcher) discardQueued() {
	for {
		select {
		case event := <-d.ch:
			d.drop(event)
		default:
			return
		}
	}
}

// Close drains the queue without a deadline.
func (d *Dispatcher) Close() {
	_ = d.Shutdown(context.Background())
}

// Dropped reports the total number of discarded events.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.total.Load()
}

// DroppedByEvent reports discarded events keyed by EventType.
func (d *Dispatcher) DroppedByEvent() map[string]uint64 {
	if d == nil {
		return map[string]uint64{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]uint64, len(d.byEvent))
	for k, v := range d.byEvent {
		out[k] = v
	}
	return out
}
