package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/combo-storefront/internal/domain/admin"
)

const (
	findAdminSQL = `SELECT id, username, password_hash, email, created_at
		FROM admins WHERE username = $1`

	upsertAdminSQL = `INSERT INTO admins (id, username, password_hash, email, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, email = EXCLUDED.email
		RETURNING id, created_at`
)

var _ admin.Repository = (*AdminRepository)(nil)

// AdminRepository implements admin.Repository backed by PostgreSQL.
type AdminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository returns an AdminRepository that uses the given pool.
func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

// FindByUsername returns admin.ErrNotFound when no account matches.
func (r *AdminRepository) FindByUsername(ctx context.Context, username string) (*admin.Admin, error) {
	rows, err := r.pool.Query(ctx, findAdminSQL, username)
	if err != nil {
		return nil, errors.Wrapf(err, "find admin %q", username)
	}
	a, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[admin.Admin])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, admin.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find admin %q", username)
	}
	return &a, nil
}

// Upsert creates the account or updates its password hash and email. The
// stored id and creation time are written back to a.
func (r *AdminRepository) Upsert(ctx context.Context, a *admin.Admin) error {
	err := r.pool.QueryRow(ctx, upsertAdminSQL,
		a.ID, a.Username, a.PasswordHash, a.Email, a.CreatedAt,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "upsert admin %q", a.Username)
	}
	return nil
}
