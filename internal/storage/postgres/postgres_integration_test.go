//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/combo-storefront/internal/domain/admin"
	"github.com/xenking/combo-storefront/internal/domain/order"
	"github.com/xenking/combo-storefront/internal/domain/pricing"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "shop",
				"POSTGRES_PASSWORD": "shop",
				"POSTGRES_DB":       "shop",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := c.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := c.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://shop:shop@%s:%s/shop?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, url, PoolConfig{MaxConns: 16})
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	return m.Run()
}

func truncate(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `TRUNCATE orders, admins`)
	require.NoError(t, err)
}

var base = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newOrder(id, name, mobile string, st order.Status, at time.Time) *order.Order {
	return &order.Order{
		ID:             id,
		Name:           name,
		Mobile:         mobile,
		Address:        "House 12, Road 5, Dhanmondi",
		Products:       []string{"product1", "product2", "product3"},
		Sizes:          []string{"M", "L", "XL"},
		Quantity:       3,
		Combo:          pricing.TierThree,
		Location:       pricing.LocationFar,
		Price:          decimal.NewFromInt(999),
		DeliveryCharge: decimal.Zero,
		Total:          decimal.NewFromInt(999),
		Status:         st,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestOrderRepository_RoundTrip(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	in := newOrder("ord-1", "Rahim Uddin", "01711111111", order.StatusPending, base)
	require.NoError(t, repo.Create(ctx, in))

	got, err := repo.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, in.Products, got.Products)
	assert.Equal(t, in.Sizes, got.Sizes)
	assert.Equal(t, pricing.TierThree, got.Combo)
	assert.Equal(t, pricing.LocationFar, got.Location)
	assert.True(t, in.Total.Equal(got.Total), "total %s", got.Total)
	assert.True(t, got.DeliveryCharge.IsZero())
	assert.True(t, base.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_FindLatestByMobile(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	_, err := repo.FindLatestByMobile(ctx, "01711111111")
	require.ErrorIs(t, err, order.ErrNotFound)

	require.NoError(t, repo.Create(ctx, newOrder("a", "A", "01711111111", order.StatusDelivered, base)))
	require.NoError(t, repo.Create(ctx, newOrder("b", "B", "01711111111", order.StatusPending, base.Add(time.Minute))))

	got, err := repo.FindLatestByMobile(ctx, "01711111111")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
}

func TestOrderRepository_SameInstantKeepsInsertionOrder(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	// Ids sort against insertion order so only seq can decide.
	ids := []string{"zz", "mm", "aa"}
	for _, id := range ids {
		require.NoError(t, repo.Create(ctx, newOrder(id, "Same", "01711111111", order.StatusPending, base)))
	}
	_, err := repo.UpdateStatus(ctx, "zz", order.StatusConfirmed, base)
	require.NoError(t, err)

	got, err := repo.FindLatestByMobile(ctx, "01711111111")
	require.NoError(t, err)
	assert.Equal(t, "aa", got.ID)

	list, _, err := repo.List(ctx, order.Filter{}, order.Page{Number: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"aa", "mm", "zz"}, []string{list[0].ID, list[1].ID, list[2].ID})

	var streamed []string
	require.NoError(t, repo.Stream(ctx, order.StreamFilter{}, func(o *order.Order) error {
		streamed = append(streamed, o.ID)
		return nil
	}))
	assert.Equal(t, ids, streamed)
}

func TestOrderRepository_GuardWithFrozenClock(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := NewOrderRepository(testPool)
	svc := order.NewService(order.Config{}, repo, pricing.MustNew(pricing.DefaultConfig()),
		order.WithClock(func() time.Time { return base }),
	)
	draft := order.Draft{
		Name:     "Rahim Uddin",
		Address:  "House 12, Road 5, Dhanmondi",
		Products: []string{"product1", "product2"},
		Sizes:    []string{"M", "L"},
		Combo:    "2",
	}

	for i := range 20 {
		draft.Mobile = fmt.Sprintf("017%08d", i)

		first, err := svc.PlaceOrder(ctx, draft)
		require.NoError(t, err)
		_, err = svc.UpdateStatus(ctx, first.ID, order.StatusConfirmed)
		require.NoError(t, err)

		_, err = svc.PlaceOrder(ctx, draft)
		require.NoError(t, err, "mobile %s", draft.Mobile)
		_, err = svc.PlaceOrder(ctx, draft)
		require.ErrorIs(t, err, order.ErrDuplicateOrder, "mobile %s", draft.Mobile)
	}
}

func TestOrderRepository_ListFilterAndPages(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	for i := range 45 {
		o := newOrder(fmt.Sprintf("p%02d", i), "Pending", fmt.Sprintf("017%08d", i), order.StatusPending, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, o))
	}
	require.NoError(t, repo.Create(ctx, newOrder("x_1", "100% Cotton", "01899999999", order.StatusConfirmed, base)))

	orders, total, err := repo.List(ctx, order.Filter{Status: order.StatusPending}, order.Page{Number: 2, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 45, total)
	require.Len(t, orders, 20)
	assert.Equal(t, "p24", orders[0].ID)

	// Wildcards in the search term are literal.
	orders, total, err = repo.List(ctx, order.Filter{Search: "%"}, order.Page{Number: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "x_1", orders[0].ID)

	_, total, err = repo.List(ctx, order.Filter{Search: "_"}, order.Page{Number: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = repo.List(ctx, order.Filter{Search: "cotton"}, order.Page{Number: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestOrderRepository_UpdateDeleteStats(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	require.NoError(t, repo.Create(ctx, newOrder("a", "A", "01711111111", order.StatusPending, base.Add(-48*time.Hour))))
	require.NoError(t, repo.Create(ctx, newOrder("b", "B", "01711111112", order.StatusPending, base)))

	got, err := repo.UpdateStatus(ctx, "b", order.StatusConfirmed, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	_, err = repo.UpdateStatus(ctx, "missing", order.StatusConfirmed, base)
	require.ErrorIs(t, err, order.ErrNotFound)

	st, err := repo.Stats(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, order.Stats{Total: 2, Pending: 1, Confirmed: 1, Today: 1}, st)

	stream := func(f order.StreamFilter) []string {
		var ids []string
		require.NoError(t, repo.Stream(ctx, f, func(o *order.Order) error {
			ids = append(ids, o.ID)
			return nil
		}))
		return ids
	}
	assert.Equal(t, []string{"a", "b"}, stream(order.StreamFilter{}))
	assert.Equal(t, []string{"b"}, stream(order.StreamFilter{Status: order.StatusConfirmed}))
	assert.Equal(t, []string{"b"}, stream(order.StreamFilter{Since: base}))
	assert.Empty(t, stream(order.StreamFilter{Status: order.StatusPending, Since: base}))

	require.NoError(t, repo.Delete(ctx, "a"))
	require.ErrorIs(t, repo.Delete(ctx, "a"), order.ErrNotFound)
}

func TestOrderRepository_GuardUnderConcurrency(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	svc := order.NewService(order.Config{}, NewOrderRepository(testPool), pricing.MustNew(pricing.DefaultConfig()))

	const workers = 12
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

func TestAdminRepository(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := NewAdminRepository(testPool)

	_, err := repo.FindByUsername(ctx, "admin")
	require.ErrorIs(t, err, admin.ErrNotFound)

	first := &admin.Admin{ID: uuid.NewString(), Username: "admin", PasswordHash: "h1", CreatedAt: base}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &admin.Admin{ID: uuid.NewString(), Username: "admin", PasswordHash: "h2", CreatedAt: base.Add(time.Hour)}
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, base.Equal(second.CreatedAt))

	got, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
}
