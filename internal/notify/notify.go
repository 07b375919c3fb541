// Package notify delivers order events to external systems on a best-effort
// basis.
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/combo-storefront/internal/domain/order"
)

// DefaultTimeout bounds a single sink delivery.
const DefaultTimeout = 10 * time.Second

// Sink delivers one event to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev order.PlacedEvent) error
}

var _ order.Publisher = (*Dispatcher)(nil)

// Dispatcher fans each event out to every sink in its own goroutine. Errors
// are logged and counted, never returned.
type Dispatcher struct {
	sinks    []Sink
	timeout  time.Duration
	wg       sync.WaitGroup
	failures metric.Int64Counter
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(x *Dispatcher) {
		if d > 0 {
			x.timeout = d
		}
	}
}

// WithMeterProvider sets the provider for the failure counter.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(x *Dispatcher) {
		x.failures, _ = mp.Meter("github.com/xenking/combo-storefront/internal/notify").
			Int64Counter("notify.failures", metric.WithDescription("Failed sink deliveries"))
	}
}

// NewDispatcher creates a Dispatcher over sinks.
func NewDispatcher(sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sinks:   sinks,
		timeout: DefaultTimeout,
	}
	WithMeterProvider(noop.NewMeterProvider())(d)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// PublishPlaced starts one delivery per sink and returns immediately. The
// deliveries outlive ctx cancellation but not the dispatcher timeout.
func (d *Dispatcher) PublishPlaced(ctx context.Context, ev order.PlacedEvent) {
	base := context.WithoutCancel(ctx)
	for _, s := range d.sinks {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(base, s, ev)
		}()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s Sink, ev order.PlacedEvent) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	lg := zctx.From(ctx).With(
		zap.String("sink", s.Name()),
		zap.String("order_id", ev.OrderID),
	)
	start := time.Now()
	if err := s.Send(ctx, ev); err != nil {
		d.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", s.Name())))
		lg.Warn("Notification failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	lg.Debug("Notification sent", zap.Duration("took", time.Since(start)))
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases sinks that hold connections.
func (d *Dispatcher) Close() error {
	var first error
	for _, s := range d.sinks {
		c, ok := s.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// HashPhone normalises a phone number and returns its hex SHA-256 digest.
// Whitespace and dashes are removed, then the value is lower-cased.
func HashPhone(phone string) string {
	normalized := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			return -1
		}
		return r
	}, phone)
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(normalized))))
	return hex.EncodeToString(sum[:])
}
