package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/combo-storefront/internal/domain/order"
	"github.com/xenking/combo-storefront/internal/domain/pricing"
)

const orderColumns = `id, name, mobile, address, products, sizes, quantity, combo, location,
	price, delivery_charge, total, status, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	latestByMobileSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE mobile = $1 ORDER BY created_at DESC, seq DESC LIMIT 1`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	updateStatusSQL = `UPDATE orders SET status = $2, updated_at = GREATEST($3, created_at)
	WHERE id = $1 RETURNING ` + orderColumns

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	statsSQL = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COUNT(*) FILTER (WHERE status = 'confirmed'),
		COUNT(*) FILTER (WHERE status = 'delivered'),
		COUNT(*) FILTER (WHERE status = 'cancelled'),
		COUNT(*) FILTER (WHERE created_at >= $1)
	FROM orders`

	// Serialises guard checks per mobile until the transaction ends.
	lockMobileSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
	orderQueries
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		pool:         pool,
		orderQueries: orderQueries{q: pool},
	}
}

// orderQueries holds the statements that may run inside a transaction.
type orderQueries struct {
	q dbtx
}

// WithMobileLock runs fn in a transaction holding an advisory lock derived
// from mobile. Concurrent submissions for one number queue on the lock, so
// the guard check and insert in fn observe each other.
func (r *OrderRepository) WithMobileLock(
	ctx context.Context,
	mobile string,
	fn func(ctx context.Context, s order.LockedStore) error,
) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockMobileSQL, mobile); err != nil {
			return errors.Wrap(err, "lock mobile")
		}
		return fn(ctx, &orderQueries{q: tx})
	})
}

// Create inserts a new order.
func (r *orderQueries) Create(ctx context.Context, o *order.Order) error {
	_, err := r.q.Exec(ctx, createOrderSQL,
		o.ID, o.Name, o.Mobile, o.Address, o.Products, o.Sizes, o.Quantity,
		string(o.Combo), string(o.Location),
		o.Price, o.DeliveryCharge, o.Total,
		string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	return nil
}

// FindLatestByMobile returns the most recently created order for mobile.
func (r *orderQueries) FindLatestByMobile(ctx context.Context, mobile string) (*order.Order, error) {
	return r.one(ctx, latestByMobileSQL, mobile)
}

func (r *orderQueries) one(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

// Get returns the order with the given id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, getOrderSQL, id)
}

// List returns one page of matching orders, newest first, and the total
// number of matches. The count and the page are fetched concurrently.
func (r *OrderRepository) List(ctx context.Context, f order.Filter, p order.Page) ([]order.Order, int, error) {
	where, args := buildOrderFilter(f)

	var (
		total  int
		orders []order.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total)
		if err != nil {
			return errors.Wrap(err, "count orders")
		}
		return nil
	})
	g.Go(func() error {
		pageArgs := append(args[:len(args):len(args)], p.Limit, p.Offset())
		sql := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d`,
			orderColumns, where, len(args)+1, len(args)+2)

		rows, err := r.pool.Query(gctx, sql, pageArgs...)
		if err != nil {
			return errors.Wrap(err, "list orders")
		}
		orders, err = pgx.CollectRows(rows, scanOrder)
		if err != nil {
			return errors.Wrap(err, "scan orders")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// buildOrderFilter returns a WHERE clause (with leading space) and its args.
func buildOrderFilter(f order.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(name ILIKE $%[1]d ESCAPE '\' OR mobile LIKE $%[1]d ESCAPE '\' OR id LIKE $%[1]d ESCAPE '\')`, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// buildStreamFilter returns a WHERE clause (with leading space) and its args.
func buildStreamFilter(f order.StreamFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// UpdateStatus sets the status of an order. Any transition is allowed.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, st order.Status, now time.Time) (*order.Order, error) {
	return r.one(ctx, updateStatusSQL, id, string(st), now)
}

// Delete removes an order permanently.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete order %q", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Stats counts orders by status and those created at or after since.
func (r *OrderRepository) Stats(ctx context.Context, since time.Time) (order.Stats, error) {
	var st order.Stats
	err := r.pool.QueryRow(ctx, statsSQL, since).Scan(
		&st.Total, &st.Pending, &st.Confirmed, &st.Delivered, &st.Cancelled, &st.Today,
	)
	if err != nil {
		return order.Stats{}, errors.Wrap(err, "order stats")
	}
	return st, nil
}

// Stream calls fn for each order matching f, oldest first. Filtering runs in
// the query so a narrow export reads only the rows it writes.
func (r *OrderRepository) Stream(ctx context.Context, f order.StreamFilter, fn func(o *order.Order) error) error {
	where, args := buildStreamFilter(f)
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders`+where+` ORDER BY created_at, seq`, args...)
	if err != nil {
		return errors.Wrap(err, "stream orders")
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return errors.Wrap(err, "scan order")
		}
		if err := fn(&o); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "stream orders")
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		combo    string
		location string
		status   string
	)
	err := row.Scan(
		&o.ID, &o.Name, &o.Mobile, &o.Address, &o.Products, &o.Sizes, &o.Quantity,
		&combo, &location,
		&o.Price, &o.DeliveryCharge, &o.Total,
		&status, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Combo = pricing.Tier(combo)
	o.Location = pricing.Location(location)
	o.Status = order.Status(status)
	return o, err
}
