package order

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/combo-storefront/internal/domain/pricing"
)

// Field length rules applied to every draft.
const (
	MinNameLength    = 2
	MobileLength     = 11
	MinAddressLength = 10
)

// Draft is the customer input for a new order.
type Draft struct {
	Name     string
	Mobile   string
	Address  string
	Products []string
	Sizes    []string
	// Quantity is the unit count for the custom tier, or the bare quantity
	// when Combo is empty.
	Quantity int
	// Combo is the tier tag. Empty derives the tier from Quantity.
	Combo string
	// Location is the delivery zone tag. Empty means near.
	Location string

	EventID   string
	PageURL   string
	ClientIP  string
	UserAgent string
}

// Catalog restricts the product and size identifiers a draft may use.
// Empty lists accept anything.
type Catalog struct {
	Products []string
	Sizes    []string
}

// Config holds non-dependency configuration for the Service.
type Config struct {
	Guard    GuardPolicy
	Catalog  Catalog
	Currency string
}

// Service encapsulates order placement and administration.
type Service struct {
	orders    Repository
	calc      *pricing.Calculator
	publisher Publisher
	guard     GuardPolicy
	catalog   Catalog
	currency  string
	now       func() time.Time

	tracer           trace.Tracer
	placed           metric.Int64Counter
	duplicateBlocked metric.Int64Counter
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithPublisher sets the notifier called after an order is created.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMeterProvider sets the provider for order counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		meter := mp.Meter("github.com/xenking/combo-storefront/internal/domain/order")
		s.placed, _ = meter.Int64Counter("orders.placed",
			metric.WithDescription("Orders accepted and stored"))
		s.duplicateBlocked, _ = meter.Int64Counter("orders.duplicate_blocked",
			metric.WithDescription("Orders rejected by the duplicate guard"))
	}
}

// WithTracerProvider sets the provider for service spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer("github.com/xenking/combo-storefront/internal/domain/order")
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishPlaced(context.Context, PlacedEvent) {}

// NewService creates an order Service with the required domain dependencies.
func NewService(cfg Config, orders Repository, calc *pricing.Calculator, opts ...Option) *Service {
	s := &Service{
		orders:    orders,
		calc:      calc,
		publisher: nopPublisher{},
		guard:     cfg.Guard,
		catalog:   cfg.Catalog,
		currency:  cfg.Currency,
		now:       time.Now,
	}
	if s.currency == "" {
		s.currency = "BDT"
	}
	WithMeterProvider(noop.NewMeterProvider())(s)
	WithTracerProvider(tracenoop.NewTracerProvider())(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calculator returns the pricing engine used for authoritative totals.
func (s *Service) Calculator() *pricing.Calculator {
	return s.calc
}

// CheckDuplicate reports whether the latest order for mobile blocks a new
// submission. It takes no lock; PlaceOrder repeats the check under one.
func (s *Service) CheckDuplicate(ctx context.Context, mobile string) (bool, error) {
	return s.checkDuplicate(ctx, s.orders, mobile)
}

func (s *Service) checkDuplicate(ctx context.Context, store LockedStore, mobile string) (bool, error) {
	latest, err := store.FindLatestByMobile(ctx, mobile)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, errors.Wrap(err, "find latest order")
	}
	return s.guard.BlocksOrder(latest), nil
}

// PlaceOrder validates the draft, prices it, and stores it unless the
// duplicate guard blocks the mobile number. The notifier fires after the
// order is committed.
func (s *Service) PlaceOrder(ctx context.Context, d Draft) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer span.End()

	o, err := s.build(d)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.combo", string(o.Combo)),
		attribute.String("order.location", string(o.Location)),
		attribute.Int("order.quantity", o.Quantity),
	)

	lg := zctx.From(ctx).With(
		zap.String("combo", string(o.Combo)),
		zap.String("location", string(o.Location)),
		zap.Int("quantity", o.Quantity),
		zap.Strings("products", o.Products),
		zap.Strings("sizes", o.Sizes),
	)

	err = s.orders.WithMobileLock(ctx, o.Mobile, func(ctx context.Context, store LockedStore) error {
		blocked, err := s.checkDuplicate(ctx, store, o.Mobile)
		if err != nil {
			return err
		}
		if blocked {
			return ErrDuplicateOrder
		}
		return store.Create(ctx, o)
	})
	switch {
	case errors.Is(err, ErrDuplicateOrder):
		s.duplicateBlocked.Add(ctx, 1)
		lg.Info("Duplicate order blocked")
		return nil, err
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		lg.Error("Create order failed", zap.Error(err))
		return nil, errors.Wrap(err, "create order")
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("combo", string(o.Combo))))
	lg.Info("Order placed", zap.String("order_id", o.ID), zap.String("total", o.Total.String()))

	eventID := d.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	s.publisher.PublishPlaced(ctx, PlacedEvent{
		OrderID:   o.ID,
		Value:     o.Total,
		Quantity:  o.Quantity,
		Currency:  s.currency,
		Mobile:    o.Mobile,
		EventID:   eventID,
		PageURL:   d.PageURL,
		ClientIP:  d.ClientIP,
		UserAgent: d.UserAgent,
		Timestamp: o.CreatedAt,
		Order:     *o,
	})

	return o, nil
}

// build validates d and returns the order to store.
func (s *Service) build(d Draft) (*Order, error) {
	var verr ValidationError

	name := strings.TrimSpace(d.Name)
	if utf8.RuneCountInString(name) < MinNameLength {
		verr.Add("name", "name must be at least 2 characters")
	}
	mobile := strings.TrimSpace(d.Mobile)
	if len(mobile) != MobileLength || strings.ContainsFunc(mobile, func(r rune) bool { return !unicode.IsDigit(r) }) {
		verr.Add("mobile", "mobile must be exactly 11 digits")
	}
	address := strings.TrimSpace(d.Address)
	if utf8.RuneCountInString(address) < MinAddressLength {
		verr.Add("address", "address must be at least 10 characters")
	}
	if msg := checkSelection(d.Products, s.catalog.Products, "product"); msg != "" {
		verr.Add("product", msg)
	}
	if msg := checkSelection(d.Sizes, s.catalog.Sizes, "size"); msg != "" {
		verr.Add("size", msg)
	}

	tier := pricing.TierForQuantity(d.Quantity)
	if d.Combo != "" {
		t, err := pricing.ParseTier(d.Combo)
		if err != nil {
			verr.Add("combo", "unknown combo")
		}
		tier = t
	}
	loc := pricing.LocationNear
	if d.Location != "" {
		l, err := pricing.ParseLocation(d.Location)
		if err != nil {
			verr.Add("location", "location must be near or far")
		}
		loc = l
	}

	var quote pricing.Quote
	if maxQty := s.calc.MaxQuantity(); d.Quantity < 0 || d.Quantity > maxQty {
		verr.Add("quantity", fmt.Sprintf("quantity must be between 0 and %d", maxQty))
	} else if _, bad := verr.Fields["combo"]; !bad {
		quote = s.calc.Quote(tier, d.Quantity, loc)
		if !quote.Ready() {
			verr.Add("quantity", "select a combo or at least 2 pieces")
		}
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	return &Order{
		ID:             uuid.NewString(),
		Name:           name,
		Mobile:         mobile,
		Address:        address,
		Products:       slices.Clone(d.Products),
		Sizes:          slices.Clone(d.Sizes),
		Quantity:       quote.Quantity,
		Combo:          quote.Tier,
		Location:       quote.Location,
		Price:          decimal.NewFromInt(quote.Price),
		DeliveryCharge: decimal.NewFromInt(quote.DeliveryCharge),
		Total:          decimal.NewFromInt(quote.Total),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func checkSelection(got, allowed []string, what string) string {
	if len(got) == 0 {
		return "select at least one " + what
	}
	for _, v := range got {
		if strings.TrimSpace(v) == "" {
			return what + " must not be empty"
		}
		if len(allowed) > 0 && !slices.Contains(allowed, v) {
			return "unknown " + what + " " + v
		}
	}
	return ""
}

// List returns a page of orders matching f and the total match count.
func (s *Service) List(ctx context.Context, f Filter, p Page) ([]Order, int, error) {
	orders, total, err := s.orders.List(ctx, f, p)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	return orders, total, nil
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return o, nil
}

// UpdateStatus moves an order to st. Any status may follow any other.
func (s *Service) UpdateStatus(ctx context.Context, id string, st Status) (*Order, error) {
	if _, err := ParseStatus(string(st)); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"status": "invalid status"}}
	}
	o, err := s.orders.UpdateStatus(ctx, id, st, s.now().UTC())
	if err != nil {
		return nil, errors.Wrapf(err, "update order %q", id)
	}
	zctx.From(ctx).Info("Order status updated",
		zap.String("order_id", id),
		zap.String("status", string(st)),
	)
	return o, nil
}

// Delete removes an order permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete order %q", id)
	}
	zctx.From(ctx).Info("Order deleted", zap.String("order_id", id))
	return nil
}

// Stats returns dashboard counts, with Today starting at midnight in loc.
func (s *Service) Stats(ctx context.Context, loc *time.Location) (Stats, error) {
	if loc == nil {
		loc = time.UTC
	}
	now := s.now().In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	st, err := s.orders.Stats(ctx, midnight)
	if err != nil {
		return Stats{}, errors.Wrap(err, "order stats")
	}
	return st, nil
}
