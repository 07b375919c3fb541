package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/combo-storefront/internal/domain/admin"
	"github.com/xenking/combo-storefront/internal/domain/order"
	"github.com/xenking/combo-storefront/internal/domain/pricing"
)

var base = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *OrderStore, id, name, mobile string, st order.Status, at time.Time) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &order.Order{
		ID:        id,
		Name:      name,
		Mobile:    mobile,
		Address:   "House 1, Road 2, Dhaka",
		Products:  []string{"product1"},
		Sizes:     []string{"M"},
		Quantity:  2,
		Status:    st,
		CreatedAt: at,
		UpdatedAt: at,
	}))
}

func TestOrderStore_FindLatestByMobile(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()

	_, err := s.FindLatestByMobile(ctx, "01711111111")
	require.ErrorIs(t, err, order.ErrNotFound)

	seed(t, s, "a", "A", "01711111111", order.StatusDelivered, base)
	seed(t, s, "b", "B", "01711111111", order.StatusPending, base.Add(time.Minute))
	seed(t, s, "c", "C", "01822222222", order.StatusPending, base.Add(time.Hour))

	got, err := s.FindLatestByMobile(ctx, "01711111111")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	// Exact match only.
	_, err = s.FindLatestByMobile(ctx, "1711111111")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderStore_ListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()
	for i := range 45 {
		seed(t, s, fmt.Sprintf("p%02d", i), "Pending", fmt.Sprintf("017%08d", i), order.StatusPending, base.Add(time.Duration(i)*time.Minute))
	}
	for i := range 5 {
		seed(t, s, fmt.Sprintf("c%02d", i), "Done", fmt.Sprintf("018%08d", i), order.StatusConfirmed, base.Add(time.Duration(i)*time.Minute))
	}

	page := order.Page{Number: 2, Limit: 20}
	orders, total, err := s.List(ctx, order.Filter{Status: order.StatusPending}, page)
	require.NoError(t, err)
	assert.Equal(t, 45, total)
	require.Len(t, orders, 20)
	assert.Equal(t, 3, page.TotalPages(total))
	// Newest first: page 2 starts at the 21st newest.
	assert.Equal(t, "p24", orders[0].ID)
	assert.Equal(t, "p05", orders[19].ID)

	orders, _, err = s.List(ctx, order.Filter{Status: order.StatusPending}, order.Page{Number: 3, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, orders, 5)

	orders, _, err = s.List(ctx, order.Filter{}, order.Page{Number: 9, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, total, err = s.List(ctx, order.Filter{}, order.Page{Number: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 50, total)
}

func TestOrderStore_ListSearch(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()
	seed(t, s, "ord-aaa", "Karim Rahman", "01711111111", order.StatusPending, base)
	seed(t, s, "ord-bbb", "Salma Begum", "01822222222", order.StatusConfirmed, base.Add(time.Minute))
	seed(t, s, "ord-ccc", "Nusrat", "01933333333", order.StatusPending, base.Add(2*time.Minute))

	tests := []struct {
		name   string
		filter order.Filter
		want   []string
	}{
		{"name case-insensitive", order.Filter{Search: "karim"}, []string{"ord-aaa"}},
		{"mobile substring", order.Filter{Search: "82222"}, []string{"ord-bbb"}},
		{"id substring", order.Filter{Search: "ccc"}, []string{"ord-ccc"}},
		{"union", order.Filter{Search: "ord-"}, []string{"ord-ccc", "ord-bbb", "ord-aaa"}},
		{"status and search", order.Filter{Status: order.StatusPending, Search: "ord-"}, []string{"ord-ccc", "ord-aaa"}},
		{"no hit", order.Filter{Search: "zzz"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, total, err := s.List(ctx, tt.filter, order.Page{Number: 1, Limit: 20})
			require.NoError(t, err)
			var ids []string
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.want, ids)
			assert.Equal(t, len(tt.want), total)
		})
	}
}

func TestOrderStore_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()
	seed(t, s, "a", "A", "01711111111", order.StatusPending, base)

	got, err := s.UpdateStatus(ctx, "a", order.StatusDelivered, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, got.Status)
	assert.Equal(t, base.Add(time.Hour), got.UpdatedAt)

	// A clock behind creation never breaks createdAt <= updatedAt.
	got, err = s.UpdateStatus(ctx, "a", order.StatusPending, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	_, err = s.UpdateStatus(ctx, "missing", order.StatusPending, base)
	require.ErrorIs(t, err, order.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "a"))
	require.ErrorIs(t, s.Delete(ctx, "a"), order.ErrNotFound)
	_, err = s.Get(ctx, "a")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()
	seed(t, s, "a", "A", "01711111111", order.StatusPending, base)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	got.Status = order.StatusCancelled
	got.Products[0] = "changed"

	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, again.Status)
	assert.Equal(t, "product1", again.Products[0])
}

func TestOrderStore_StatsAndStream(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()
	seed(t, s, "a", "A", "01711111111", order.StatusPending, base.Add(-48*time.Hour))
	seed(t, s, "b", "B", "01711111112", order.StatusConfirmed, base)
	seed(t, s, "c", "C", "01711111113", order.StatusDelivered, base.Add(time.Hour))
	seed(t, s, "d", "D", "01711111114", order.StatusCancelled, base.Add(2*time.Hour))

	st, err := s.Stats(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, order.Stats{Total: 4, Pending: 1, Confirmed: 1, Delivered: 1, Cancelled: 1, Today: 3}, st)

	tests := []struct {
		name   string
		filter order.StreamFilter
		want   []string
	}{
		{"all", order.StreamFilter{}, []string{"a", "b", "c", "d"}},
		{"status", order.StreamFilter{Status: order.StatusDelivered}, []string{"c"}},
		{"since inclusive", order.StreamFilter{Since: base}, []string{"b", "c", "d"}},
		{"status and since", order.StreamFilter{Status: order.StatusPending, Since: base}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ids []string
			require.NoError(t, s.Stream(ctx, tt.filter, func(o *order.Order) error {
				ids = append(ids, o.ID)
				return nil
			}))
			assert.Equal(t, tt.want, ids)
		})
	}

	stop := errors.New("stop")
	err = s.Stream(ctx, order.StreamFilter{}, func(*order.Order) error { return stop })
	require.ErrorIs(t, err, stop)
}

func TestOrderStore_SameInstantKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()

	// Ids sort against insertion order so only the sequence can decide.
	ids := []string{"zz", "mm", "aa"}
	for _, id := range ids {
		seed(t, s, id, "Same", "01711111111", order.StatusPending, base)
	}

	got, err := s.FindLatestByMobile(ctx, "01711111111")
	require.NoError(t, err)
	assert.Equal(t, "aa", got.ID)

	list, _, err := s.List(ctx, order.Filter{}, order.Page{Number: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"aa", "mm", "zz"}, []string{list[0].ID, list[1].ID, list[2].ID})

	var streamed []string
	require.NoError(t, s.Stream(ctx, order.StreamFilter{}, func(o *order.Order) error {
		streamed = append(streamed, o.ID)
		return nil
	}))
	assert.Equal(t, ids, streamed)

	// A status update does not move an order.
	_, err = s.UpdateStatus(ctx, "zz", order.StatusConfirmed, base)
	require.NoError(t, err)
	got, err = s.FindLatestByMobile(ctx, "01711111111")
	require.NoError(t, err)
	assert.Equal(t, "aa", got.ID)
}

// With a frozen clock every order shares one timestamp. The guard must still
// see the newest order for the number.
func TestOrderStore_GuardWithFrozenClock(t *testing.T) {
	ctx := context.Background()
	draft := order.Draft{
		Name:     "Rahim Uddin",
		Mobile:   "01711111111",
		Address:  "House 12, Road 5, Dhanmondi",
		Products: []string{"product1", "product2"},
		Sizes:    []string{"M", "L"},
		Combo:    "2",
	}

	for i := range 50 {
		s := NewOrderStore()
		svc := order.NewService(order.Config{}, s, pricing.MustNew(pricing.DefaultConfig()),
			order.WithClock(func() time.Time { return base }),
		)

		first, err := svc.PlaceOrder(ctx, draft)
		require.NoError(t, err)
		_, err = svc.UpdateStatus(ctx, first.ID, order.StatusConfirmed)
		require.NoError(t, err)

		second, err := svc.PlaceOrder(ctx, draft)
		require.NoError(t, err, "run %d", i)
		assert.Equal(t, first.CreatedAt, second.CreatedAt)

		// The pending second order is the latest, not the confirmed first.
		_, err = svc.PlaceOrder(ctx, draft)
		require.ErrorIs(t, err, order.ErrDuplicateOrder, "run %d", i)
	}
}

func TestOrderStore_GuardUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()
	svc := order.NewService(order.Config{}, s, pricing.MustNew(pricing.DefaultConfig()))

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		blocked  int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, order.Draft{
				Name:     "Rahim Uddin",
				Mobile:   "01711111111",
				Address:  "House 12, Road 5, Dhanmondi",
				Products: []string{"product1", "product2"},
				Sizes:    []string{"M", "L"},
				Combo:    "2",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, order.ErrDuplicateOrder):
				blocked++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, workers-1, blocked)
}

func TestAdminStore(t *testing.T) {
	ctx := context.Background()
	s := NewAdminStore()

	_, err := s.FindByUsername(ctx, "admin")
	require.ErrorIs(t, err, admin.ErrNotFound)

	a := &admin.Admin{Username: "admin", PasswordHash: "h1", CreatedAt: base}
	require.NoError(t, s.Upsert(ctx, a))
	require.NotEmpty(t, a.ID)
	firstID := a.ID

	b := &admin.Admin{Username: "admin", PasswordHash: "h2", Email: "ops@example.com"}
	require.NoError(t, s.Upsert(ctx, b))
	assert.Equal(t, firstID, b.ID)
	assert.Equal(t, base, b.CreatedAt)

	got, err := s.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.Equal(t, "ops@example.com", got.Email)
}
