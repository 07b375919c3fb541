package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/combo-storefront/internal/domain/admin"
	"github.com/xenking/combo-storefront/internal/domain/order"
	"github.com/xenking/combo-storefront/internal/storage/memory"
	"github.com/xenking/combo-storefront/internal/storage/postgres"
	"github.com/xenking/combo-storefront/pkg/health"
)

// stores bundles the repositories selected by StorageConfig.Driver.
type stores struct {
	orders order.Repository
	admins admin.Repository
	close  func()
}

func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, healthSvc *health.Health) (*stores, error) {
	switch cfg.Storage.Driver {
	case DriverMemory:
		lg.Warn("Using in-memory storage, orders are lost on restart")
		return &stores{
			orders: memory.NewOrderStore(),
			admins: memory.NewAdminStore(),
			close:  func() {},
		}, nil
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxConns: cfg.Storage.MaxConns,
			MinConns: cfg.Storage.MinConns,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
		return &stores{
			orders: postgres.NewOrderRepository(pool),
			admins: postgres.NewAdminRepository(pool),
			close:  pool.Close,
		}, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// bootstrapAdmin upserts the configured admin account, keeping the existing
// id when the username is already present.
func bootstrapAdmin(ctx context.Context, repo admin.Repository, username, password string) error {
	hash, err := admin.HashPassword(password)
	if err != nil {
		return err
	}
	a := &admin.Admin{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	existing, err := repo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		a.ID = existing.ID
		a.Email = existing.Email
		a.CreatedAt = existing.CreatedAt
	case !errors.Is(err, admin.ErrNotFound):
		return errors.Wrap(err, "find admin")
	}
	if err := repo.Upsert(ctx, a); err != nil {
		return errors.Wrap(err, "upsert admin")
	}
	return nil
}
