package order

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/combo-storefront/internal/domain/pricing"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusDelivered, StatusCancelled}

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateOrder is returned when the mobile number already has an
	// unresolved order.
	ErrDuplicateOrder = errors.New("duplicate order")
	// ErrInvalidStatus is returned by ParseStatus for unknown values.
	ErrInvalidStatus = errors.New("invalid order status")
)

// ParseStatus validates a status value.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if slices.Contains(Statuses, st) {
		return st, nil
	}
	return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
}

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field, keeping the first one.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Err returns e when any field failed, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Order is a single customer purchase intent. Only Status and UpdatedAt
// change after creation.
type Order struct {
	ID       string
	Name     string
	Mobile   string
	Address  string
	Products []string
	Sizes    []string
	Quantity int

	Combo          pricing.Tier
	Location       pricing.Location
	Price          decimal.Decimal
	DeliveryCharge decimal.Decimal
	Total          decimal.Decimal

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows an order listing. Zero values match everything.
type Filter struct {
	Status Status
	// Search matches name (case-insensitive), mobile substring or id substring.
	Search string
}

// StreamFilter narrows a Stream. Zero values match everything.
type StreamFilter struct {
	Status Status
	// Since keeps orders created at or after it.
	Since time.Time
}

// Match reports whether o passes the filter.
func (f StreamFilter) Match(o *Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return f.Since.IsZero() || !o.CreatedAt.Before(f.Since)
}

// Page selects a window of a listing. Number is 1-based.
type Page struct {
	Number int
	Limit  int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// TotalPages returns how many pages of p.Limit cover total rows.
func (p Page) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// Stats aggregates order counts for the admin dashboard.
type Stats struct {
	Total     int
	Pending   int
	Confirmed int
	Delivered int
	Cancelled int
	// Today counts orders created since the start of the current day.
	Today int
}

// Add counts one order of status st.
func (s *Stats) Add(st Status, n int) {
	s.Total += n
	switch st {
	case StatusPending:
		s.Pending += n
	case StatusConfirmed:
		s.Confirmed += n
	case StatusDelivered:
		s.Delivered += n
	case StatusCancelled:
		s.Cancelled += n
	}
}

// LockedStore is the part of the store available while a mobile lock is held.
type LockedStore interface {
	FindLatestByMobile(ctx context.Context, mobile string) (*Order, error)
	Create(ctx context.Context, o *Order) error
}

// Repository defines persistence operations for orders. Orders sharing a
// creation time are ordered by insertion, so FindLatestByMobile returns the
// one stored last.
type Repository interface {
	LockedStore

	// WithMobileLock runs fn while holding an exclusive lock on mobile. Every
	// write fn makes through the given store commits or rolls back together.
	WithMobileLock(ctx context.Context, mobile string, fn func(ctx context.Context, s LockedStore) error) error
	List(ctx context.Context, f Filter, p Page) ([]Order, int, error)
	Get(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, st Status, now time.Time) (*Order, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, since time.Time) (Stats, error)
	// Stream calls fn for every order matching f, oldest first, until fn
	// returns an error.
	Stream(ctx context.Context, f StreamFilter, fn func(o *Order) error) error
}

// PlacedEvent describes a freshly created order for outbound notification.
type PlacedEvent struct {
	OrderID  string
	Value    decimal.Decimal
	Quantity int
	Currency string
	// Mobile is the raw customer number. Sinks hash it before sending.
	Mobile string
	// EventID is the deduplication key shared with the client-side pixel.
	EventID   string
	PageURL   string
	ClientIP  string
	UserAgent string
	Timestamp time.Time

	// Order is a snapshot of the stored order.
	Order Order
}

// Publisher delivers PlacedEvents. Implementations must not block the caller
// and must not report delivery failures.
type Publisher interface {
	PublishPlaced(ctx context.Context, ev PlacedEvent)
}
