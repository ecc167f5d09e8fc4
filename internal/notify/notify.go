// Package notify delivers order transition events to customers as a
// fire-and-forget background task. The state mutation and its durable write
// always happen first; a notification that cannot be delivered is logged and
// dropped, never propagated back as a transition failure.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/verdora/order-backend/internal/domain/order"
)

// Sender delivers one event to its recipient. Implementations own their own
// retry semantics; the dispatcher treats any error as final.
type Sender interface {
	Send(ctx context.Context, e order.Event) error
}

// LogSender is the default Sender: it writes the would-be notification to
// the log. Real deployments plug in an email or push gateway here.
type LogSender struct {
	lg *zap.Logger
}

// NewLogSender returns a Sender that logs every event.
func NewLogSender(lg *zap.Logger) *LogSender {
	return &LogSender{lg: lg}
}

func (s *LogSender) Send(_ context.Context, e order.Event) error {
	s.lg.Info("order notification",
		zap.String("order_id", e.OrderID),
		zap.String("user_id", e.UserID),
		zap.String("action", e.Action),
		zap.String("order_status", string(e.OrderStatus)),
	)
	return nil
}

// Dispatcher consumes events from a bounded channel on a background
// goroutine. Notify never blocks: when the buffer is full the event is
// dropped and counted, which keeps a slow notification gateway from ever
// stalling an order mutation.
type Dispatcher struct {
	ch     chan order.Event
	sender Sender
	lg     *zap.Logger
}

// NewDispatcher creates a Dispatcher with the given buffer size.
func NewDispatcher(sender Sender, lg *zap.Logger, buffer int) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	return &Dispatcher{
		ch:     make(chan order.Event, buffer),
		sender: sender,
		lg:     lg,
	}
}

var _ order.Notifier = (*Dispatcher)(nil)

// QueueDepth returns the number of buffered events awaiting delivery.
func (d *Dispatcher) QueueDepth() int { return len(d.ch) }

// QueueCapacity returns the buffer size the dispatcher was created with.
func (d *Dispatcher) QueueCapacity() int { return cap(d.ch) }

// Notify enqueues an event without blocking.
func (d *Dispatcher) Notify(e order.Event) {
	select {
	case d.ch <- e:
	default:
		d.lg.Warn("notification buffer full, event dropped",
			zap.String("order_id", e.OrderID),
			zap.String("action", e.Action),
		)
	}
}

// Run consumes events until ctx is cancelled, then drains whatever is left
// in the buffer before returning. Send failures are logged and swallowed.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return ctx.Err()
		case e := <-d.ch:
			d.send(ctx, e)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case e := <-d.ch:
			// Deliveries during shutdown get a fresh context: the run
			// context is already cancelled.
			d.send(context.Background(), e)
		default:
			return
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, e order.Event) {
	if err := d.sender.Send(ctx, e); err != nil {
		d.lg.Error("notification delivery failed",
			zap.String("order_id", e.OrderID),
			zap.String("action", e.Action),
			zap.Error(err),
		)
	}
}
