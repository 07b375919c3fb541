// Command order-export writes stored orders to a gzip-compressed JSON
// Lines file for spreadsheets and offline analysis.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/combo-storefront/internal/domain/order"
	"github.com/xenking/combo-storefront/internal/storage/postgres"
)

type config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	Out         string `default:"orders.jsonl.gz" usage:"Output file, - for stdout" flag:"out"`
	Status      string `usage:"Only export orders with this status" flag:"status"`
	Since       string `usage:"Only export orders created on or after this RFC 3339 time" flag:"since"`
}

func main() {
	_ = godotenv.Load()

	lg, _ := zap.NewProduction()
	defer func() { _ = lg.Sync() }()

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP_EXPORT",
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
	filter, err := parseFilter(cfg.Status, cfg.Since)
	if err != nil {
		lg.Fatal("Invalid filter", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg, filter); err != nil {
		lg.Fatal("Export failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, cfg config, f order.StreamFilter) (rerr error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{MaxConns: 2})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	var out io.WriteCloser = os.Stdout
	if cfg.Out != "-" {
		f, err := os.Create(cfg.Out)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		out = f
	}
	defer func() {
		if err := out.Close(); err != nil && rerr == nil {
			rerr = errors.Wrap(err, "close output")
		}
	}()

	gz := pgzip.NewWriter(out)
	start := time.Now()
	n, err := exportOrders(ctx, postgres.NewOrderRepository(pool), gz, f)
	if err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "flush gzip")
	}

	lg.Info("Export completed",
		zap.Int("orders", n),
		zap.String("out", cfg.Out),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func parseFilter(status, since string) (order.StreamFilter, error) {
	var f order.StreamFilter
	if status != "" {
		st, err := order.ParseStatus(status)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return f, errors.Wrap(err, "parse since")
		}
		f.Since = t
	}
	return f, nil
}
