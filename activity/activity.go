// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielhkuo/stall-allot/obs"
)

// Event types emitted by the engine.
const (
	TypeProcessCreated   = "process.created"
	TypeProcessActivated = "process.activated"
	TypeEntryAdmitted    = "entry.admitted"
	TypeProcessExtended  = "process.extended"
	TypeProcessCancelled = "process.cancelled"
	TypeProcessResolved  = "process.resolved"
)

// Event is one lifecycle transition.
type Event struct {
	Type       string
	ProcessID  string
	Actor      string
	OccurredAt time.Time
	Data       map[string]any
}

// Sink consumes events. Errors are logged by the dispatcher and never
// propagate back to the publisher.
type Sink interface {
	Handle(ctx context.Context, e Event) error
}

// Dispatcher fans events out to sinks from a buffered channel. Publish
// never blocks; when the buffer is full the event is dropped.
type Dispatcher struct {
	events  chan Event
	sinks   []Sink
	metrics *obs.Metrics
}

// NewDispatcher creates a dispatcher with the given buffer size.
func NewDispatcher(buffer int, metrics *obs.Metrics, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		events:  make(chan Event, buffer),
		sinks:   sinks,
		metrics: metrics,
	}
}

// Publish enqueues e without blocking.
func (d *Dispatcher) Publish(e Event) {
	select {
	case d.events <- e:
	default:
		slog.Warn("activity event dropped", "type", e.Type, "process_id", e.ProcessID)
		d.metrics.EventDropped()
	}
}

// Run delivers events until ctx is cancelled, then flushes whatever is
// still buffered.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case e := <-d.events:
			d.deliver(ctx, e)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case e := <-d.events:
			d.deliver(ctx, e)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	for _, sink := range d.sinks {
		if err := sink.Handle(ctx, e); err != nil {
			slog.Error("activity sink failed", "type", e.Type, "process_id", e.ProcessID, "error", err)
		}
	}
}
