// Package memory implements the order and admin stores in process memory.
// Data is lost on restart; it backs local development and handler tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xenking/combo-storefront/internal/domain/order"
)

var _ order.Repository = (*OrderStore)(nil)

// OrderStore implements order.Repository.
type OrderStore struct {
	// guard serialises WithMobileLock callers. mu protects orders and seq.
	guard  sync.Mutex
	mu     sync.RWMutex
	orders map[string]*entry
	seq    uint64
}

// entry is a stored order with its insertion sequence.
type entry struct {
	order.Order
	seq uint64
}

// NewOrderStore returns an empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*entry)}
}

func clone(o *order.Order) *order.Order {
	c := *o
	c.Products = slices.Clone(o.Products)
	c.Sizes = slices.Clone(o.Sizes)
	return &c
}

// newestFirst orders by creation time, then insertion sequence, descending.
func newestFirst(a, b *entry) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.seq, a.seq)
}

// WithMobileLock runs fn with a store-wide lock held. Lock ordering is
// guard then mu, and fn only takes mu through the store methods.
func (s *OrderStore) WithMobileLock(
	ctx context.Context,
	_ string,
	fn func(ctx context.Context, ls order.LockedStore) error,
) error {
	s.guard.Lock()
	defer s.guard.Unlock()
	return fn(ctx, s)
}

// Create stores a copy of o. Re-creating an existing id keeps its sequence.
func (s *OrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{Order: *clone(o)}
	if prev, ok := s.orders[o.ID]; ok {
		e.seq = prev.seq
	} else {
		s.seq++
		e.seq = s.seq
	}
	s.orders[o.ID] = e
	return nil
}

// FindLatestByMobile returns the newest order with exactly mobile.
func (s *OrderStore) FindLatestByMobile(_ context.Context, mobile string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *entry
	for _, e := range s.orders {
		if e.Mobile != mobile {
			continue
		}
		if latest == nil || newestFirst(e, latest) < 0 {
			latest = e
		}
	}
	if latest == nil {
		return nil, order.ErrNotFound
	}
	return clone(&latest.Order), nil
}

func matches(o *order.Order, f order.Filter) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	q := strings.TrimSpace(f.Search)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(o.Name), strings.ToLower(q)) ||
		strings.Contains(o.Mobile, q) ||
		strings.Contains(o.ID, q)
}

// List returns one page of matching orders, newest first.
func (s *OrderStore) List(_ context.Context, f order.Filter, p order.Page) ([]order.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []*entry
	for _, e := range s.orders {
		if matches(&e.Order, f) {
			hits = append(hits, e)
		}
	}
	slices.SortFunc(hits, newestFirst)

	total := len(hits)
	start := min(p.Offset(), total)
	end := total
	if p.Limit > 0 {
		end = min(start+p.Limit, total)
	}

	out := make([]order.Order, 0, end-start)
	for _, e := range hits[start:end] {
		out = append(out, *clone(&e.Order))
	}
	return out, total, nil
}

// Get returns the order with id.
func (s *OrderStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return clone(&e.Order), nil
}

// UpdateStatus sets the status of an order. Any transition is allowed.
func (s *OrderStore) UpdateStatus(_ context.Context, id string, st order.Status, now time.Time) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	e.Status = st
	if now.Before(e.CreatedAt) {
		now = e.CreatedAt
	}
	e.UpdatedAt = now
	return clone(&e.Order), nil
}

// Delete removes an order.
func (s *OrderStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return order.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

// Stats counts orders by status and those created at or after since.
func (s *OrderStore) Stats(_ context.Context, since time.Time) (order.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st order.Stats
	for _, e := range s.orders {
		st.Add(e.Status, 1)
		if !e.CreatedAt.Before(since) {
			st.Today++
		}
	}
	return st, nil
}

// Stream calls fn for a snapshot of the orders matching f, oldest first.
func (s *OrderStore) Stream(ctx context.Context, f order.StreamFilter, fn func(o *order.Order) error) error {
	s.mu.RLock()
	var hits []*entry
	for _, e := range s.orders {
		if f.Match(&e.Order) {
			hits = append(hits, &entry{Order: *clone(&e.Order), seq: e.seq})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(hits, func(a, b *entry) int { return newestFirst(b, a) })
	for _, e := range hits {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&e.Order); err != nil {
			return err
		}
	}
	return nil
}
