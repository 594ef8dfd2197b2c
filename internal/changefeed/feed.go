package changefeed

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/iedsim/internal/register"
)

// DefaultBuffer is the queue length used when NewDispatcher is given zero.
const DefaultBuffer = 256

// Logger defines the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sink receives register changes from the dispatcher goroutine. Sinks are
// called one at a time in registration order.
type Sink interface {
	Name() string
	HandleChange(ctx context.Context, c register.Change) error
}

type sinkEntry struct {
	sink      Sink
	delivered atomic.Uint64
	errors    atomic.Uint64
}

// Dispatcher moves changes off the image's write path. Observe never
// blocks: when the queue is full the change is dropped and counted.
//
// Thread Safety: Observe and Stats are safe for concurrent use. AddSink must
// be called before Run.
type Dispatcher struct {
	queue chan register.Change
	sinks []*sinkEntry

	received atomic.Uint64
	dropped  atomic.Uint64

	mu     sync.Mutex
	logger Logger
}

// NewDispatcher creates a dispatcher with a queue of buffer changes.
func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	d := &Dispatcher{
		queue:  make(chan register.Change, buffer),
		logger: noopLogger{},
	}
	for _, s := range sinks {
		d.AddSink(s)
	}
	return d
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger = logger
}

func (d *Dispatcher) log() Logger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logger
}

// AddSink appends a sink. Nil sinks are ignored.
func (d *Dispatcher) AddSink(s Sink) {
	if s == nil {
		return
	}
	d.sinks = append(d.sinks, &sinkEntry{sink: s})
}

// Observe queues c for delivery. It matches register.Observer and can be
// passed straight to Image.Subscribe.
func (d *Dispatcher) Observe(c register.Change) {
	d.received.Add(1)
	select {
	case d.queue <- c:
	default:
		if n := d.dropped.Add(1); n == 1 || n%100 == 0 {
			d.log().Warn("change feed queue full, dropping change",
				"bank", c.Bank, "address", c.Address, "dropped_total", n)
		}
	}
}

// Run delivers queued changes until ctx is cancelled, then drains what is
// left in the queue before returning.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case c := <-d.queue:
			d.deliver(ctx, c)
		case <-ctx.Done():
			// Sinks get a live context for the final drain.
			drainCtx := context.WithoutCancel(ctx)
			for {
				select {
				case c := <-d.queue:
					d.deliver(drainCtx, c)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, c register.Change) {
	for _, e := range d.sinks {
		if err := e.sink.HandleChange(ctx, c); err != nil {
			e.errors.Add(1)
			d.log().Debug("change sink failed",
				"sink", e.sink.Name(), "bank", c.Bank, "address", c.Address, "error", err)
			continue
		}
		e.delivered.Add(1)
	}
}

// SinkStats holds per-sink counters.
type SinkStats struct {
	Delivered uint64 `json:"delivered"`
	Errors    uint64 `json:"errors"`
}

// Stats holds dispatcher counters for the metrics endpoint.
type Stats struct {
	Received uint64               `json:"received"`
	Dropped  uint64               `json:"dropped"`
	Queued   int                  `json:"queued"`
	Buffer   int                  `json:"buffer"`
	Sinks    map[string]SinkStats `json:"sinks"`
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	sinks := make(map[string]SinkStats, len(d.sinks))
	for _, e := range d.sinks {
		sinks[e.sink.Name()] = SinkStats{
			Delivered: e.delivered.Load(),
			Errors:    e.errors.Load(),
		}
	}
	return Stats{
		Received: d.received.Load(),
		Dropped:  d.dropped.Load(),
		Queued:   len(d.queue),
		Buffer:   cap(d.queue),
		Sinks:    sinks,
	}
}
