// Package dispatcher routes transcript notifications to their handlers and
// counts the outcome of every call.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrUnknownCommand is returned by Dispatch when no handler is registered.
var ErrUnknownCommand = errors.New("unknown command")

// Event is one decoder notification read from a transcript.
type Event struct {
	Command string
	Args    []string
	// Time is the demo time the notification was recorded at, in seconds.
	Time float64
	// Line is the 1-based transcript line, 0 when not read from a file.
	Line int
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
type Option func(*route)

type route struct {
	command   string
	handler   HandlerFunc
	logged    bool
	tolerated []error
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(r *route) { r.logged = true }
}

// Tolerate makes handler errors matching any of errs count as skipped
// instead of failing the dispatch.
func Tolerate(errs ...error) Option {
	return func(r *route) { r.tolerated = append(r.tolerated, errs...) }
}

func (r *route) tolerates(err error) bool {
	for _, t := range r.tolerated {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// Dispatcher routes events to registered handlers. Handlers run on the
// caller's goroutine so notifications are applied in recording order.
type Dispatcher struct {
	routes map[string]*route
	logger Logger

	processed metric.Int64Counter
	skipped   metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a Dispatcher. Counters come from the global meter provider,
// which is a no-op until one is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		routes: make(map[string]*route),
		logger: logger,
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&d.processed, "dispatcher.events.processed", "Total events handled successfully"},
		{&d.skipped, "dispatcher.events.skipped", "Total events whose handler error was tolerated"},
		{&d.failed, "dispatcher.events.failed", "Total events whose handler returned an error"},
	}
	m := meter()
	for _, c := range counters {
		counter, err := m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}
	return d, nil
}

// Register adds a handler for the given command, replacing any previous one.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	r := &route{command: command, handler: h}
	for _, opt := range opts {
		opt(r)
	}
	d.routes[command] = r
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.routes[command]
	return ok
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	r, ok := d.routes[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}

	var start time.Time
	if r.logged {
		start = time.Now()
		d.logger.Debug("handling event", "command", r.command, "args", len(e.Args), "time", e.Time)
	}

	result, err := r.handler(e)
	attrs := metric.WithAttributes(attribute.String("command", r.command))
	ctx := context.Background()

	switch {
	case err == nil:
		d.processed.Add(ctx, 1, attrs)
		if r.logged {
			d.logger.Debug("event complete", "command", r.command, "duration", time.Since(start))
		}
		return result, nil
	case r.tolerates(err):
		d.skipped.Add(ctx, 1, attrs)
		if r.logged {
			d.logger.Debug("event skipped", "command", r.command, "line", e.Line, "reason", err)
		}
		return nil, nil
	default:
		d.failed.Add(ctx, 1, attrs)
		if r.logged {
			d.logger.Error("event failed", "command", r.command, "line", e.Line, "duration", time.Since(start), "error", err)
		}
		return result, err
	}
}
