// Package dispatcher routes host extension commands to their handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/OCAP2/coil/internal/channel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrQueueFull      = errors.New("queue full")
	ErrClosed         = errors.New("dispatcher closed")
)

const instrumentationName = "github.com/OCAP2/coil/internal/dispatcher"

// Queued is the result returned for events accepted by a buffered handler.
const Queued = "queued"

// Event is one command received from the host.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	logged     bool
}

// Buffered runs the handler on its own goroutine behind a queue of the given
// size. Events arriving while the queue is full are dropped.
func Buffered(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(o *options) {
		o.logged = true
	}
}

// Dispatcher routes events to registered handlers. Register all handlers
// before the first Dispatch.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	mu      sync.RWMutex
	queues  map[string]channel.Channel[Event]
	closed  bool
	workers sync.WaitGroup
}

// New creates a Dispatcher that reports to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]channel.Channel[Event]),
		logger:   logger,
	}

	m := otel.Meter(instrumentationName)
	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"coil.dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, q := range d.queues {
				o.ObserveInt64(d.queueSize, int64(q.Len()),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"coil.dispatcher.events.processed",
		metric.WithDescription("Total buffered events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"coil.dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
// Registering a command twice replaces the handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.logged {
		h = d.withLogging(command, h)
	}
	if o.bufferSize > 0 {
		h = d.withQueue(command, o.bufferSize, h)
	}
	d.handlers[command] = h
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered commands in sorted order.
func (d *Dispatcher) Commands() []string {
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	slices.Sort(out)
	return out
}

// Close stops accepting buffered events and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		q.Close()
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) withQueue(command string, size int, h HandlerFunc) HandlerFunc {
	q := channel.New[Event](size)

	d.mu.Lock()
	if old, ok := d.queues[command]; ok {
		old.Close()
	}
	d.queues[command] = q
	d.mu.Unlock()

	cmdAttr := metric.WithAttributes(attribute.String("command", command))

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range q.Receive() {
			if _, err := h(e); err != nil {
				d.logger.Error("buffered event failed", "command", command, "error", err)
			}
			d.processed.Add(context.Background(), 1, cmdAttr)
		}
	}()

	return func(e Event) (any, error) {
		if q.TrySend(e) {
			return Queued, nil
		}
		d.mu.RLock()
		closed := d.closed
		d.mu.RUnlock()
		if closed {
			return nil, fmt.Errorf("%w: %s", ErrClosed, command)
		}
		d.dropped.Add(context.Background(), 1, cmdAttr)
		return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}
		return result, err
	}
}
