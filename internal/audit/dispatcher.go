package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`

	// DropIfFull makes Emit non-blocking. Without it Emit waits for buffer
	// space until the caller's context ends.
	DropIfFull bool `mapstructure:"drop_if_full"`

	// OnDrop, when set, is called synchronously for every event that is not
	// delivered. It must not block.
	OnDrop func(Event) `mapstructure:"-"`
}

// Dispatcher forwards audit events to a sink from a single goroutine so
// auth flows never wait on sink I/O.
//
// Every event passed to Emit is either delivered or counted in Dropped:
// a full buffer with DropIfFull, a caller context that ends while waiting
// for space, and an Emit after Close all count as drops.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	queue   chan Event
	stop    chan struct{} // closed first: releases blocked emitters
	quit    chan struct{} // closed once no Emit is in flight
	emitMu  sync.RWMutex
	stopped sync.WaitGroup
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when auditing
// is disabled; a nil *Dispatcher accepts and ignores every call.
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
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
		quit:  make(chan struct{}),
	}
	d.stopped.Add(1)
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer d.stopped.Done()

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			d.drain()
			return
		}
	}
}

// drain flushes what was buffered before Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit enqueues event for delivery.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.emitMu.RLock()
	defer d.emitMu.RUnlock()
	if d.closed.Load() {
		d.drop(event)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event)
	case <-d.stop:
		d.drop(event)
	}
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(event)
	}
}

// Close stops intake and delivers buffered events before returning.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.emitMu.Lock()
		close(d.quit)
		d.emitMu.Unlock()
		d.stopped.Wait()
	})
}

// Dropped counts events that were not delivered.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
