// Command seed-db applies the schema and creates the first admin account.
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/xenking/combo-storefront/internal/domain/admin"
	"github.com/xenking/combo-storefront/internal/storage/postgres"
)

type config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	Username    string `usage:"Admin username" flag:"username"`
	Password    string `usage:"Admin password" flag:"password"`
	Email       string `usage:"Admin email" flag:"email"`
	// Reset overwrites the password of an existing account.
	Reset bool `default:"false" usage:"Reset the password when the admin exists" flag:"reset"`
}

func main() {
	_ = godotenv.Load()

	lg, _ := zap.NewProduction()
	defer func() { _ = lg.Sync() }()

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP_SEED",
		SkipFiles: true,
	}).Load(); err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if cfg.Username == "" || cfg.Password == "" {
		lg.Fatal("Admin credentials are required: set --username and --password")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{MaxConns: 2})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewAdminRepository(pool)
	existing, err := repo.FindByUsername(ctx, cfg.Username)
	switch {
	case err == nil && !cfg.Reset:
		lg.Info("Admin already exists", zap.String("username", existing.Username))
		return nil
	case err != nil && !errors.Is(err, admin.ErrNotFound):
		return errors.Wrap(err, "find admin")
	}

	hash, err := admin.HashPassword(cfg.Password)
	if err != nil {
		return err
	}
	a := &admin.Admin{
		ID:           uuid.NewString(),
		Username:     cfg.Username,
		PasswordHash: hash,
		Email:        cfg.Email,
		CreatedAt:    time.Now().UTC(),
	}
	if a.Email == "" && existing != nil {
		a.Email = existing.Email
	}
	if err := repo.Upsert(ctx, a); err != nil {
		return err
	}
	lg.Info("Admin saved", zap.String("username", a.Username), zap.String("id", a.ID))
	return nil
}
