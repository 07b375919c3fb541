package main

import (
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/combo-storefront/internal/domain/order"
)

// batchSize is how many encoded orders are buffered per write.
const batchSize = 256

// streamer is the part of order.Repository the export needs.
type streamer interface {
	Stream(ctx context.Context, f order.StreamFilter, fn func(o *order.Order) error) error
}

// exportOrders streams the orders matching f from src and writes one JSON
// object per line to w. Reading and encoding run concurrently.
func exportOrders(ctx context.Context, src streamer, w io.Writer, f order.StreamFilter) (int, error) {
	orders := make(chan order.Order, batchSize)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(orders)
		return src.Stream(ctx, f, func(o *order.Order) error {
			select {
			case orders <- *o:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	var written int
	g.Go(func() error {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)

		buf := make([]byte, 0, 64<<10)
		pending := 0
		flush := func() error {
			if pending == 0 {
				return nil
			}
			if _, err := w.Write(buf); err != nil {
				return errors.Wrap(err, "write")
			}
			buf = buf[:0]
			pending = 0
			return nil
		}
		for o := range orders {
			e.Reset()
			encodeOrder(e, &o)
			buf = append(buf, e.Bytes()...)
			buf = append(buf, '\n')
			written++
			if pending++; pending == batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})

	if err := g.Wait(); err != nil {
		return written, errors.Wrap(err, "export orders")
	}
	return written, nil
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(o.Name) })
		e.Field("mobile", func(e *jx.Encoder) { e.Str(o.Mobile) })
		e.Field("address", func(e *jx.Encoder) { e.Str(o.Address) })
		e.Field("products", func(e *jx.Encoder) { encodeStrings(e, o.Products) })
		e.Field("sizes", func(e *jx.Encoder) { encodeStrings(e, o.Sizes) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(o.Quantity) })
		e.Field("combo", func(e *jx.Encoder) { e.Str(string(o.Combo)) })
		e.Field("location", func(e *jx.Encoder) { e.Str(string(o.Location)) })
		e.Field("price", func(e *jx.Encoder) { e.Str(o.Price.StringFixed(2)) })
		e.Field("deliveryCharge", func(e *jx.Encoder) { e.Str(o.DeliveryCharge.StringFixed(2)) })
		e.Field("total", func(e *jx.Encoder) { e.Str(o.Total.StringFixed(2)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano)) })
		e.Field("updatedAt", func(e *jx.Encoder) { e.Str(o.UpdatedAt.UTC().Format(time.RFC3339Nano)) })
	})
}

func encodeStrings(e *jx.Encoder, vs []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range vs {
			e.Str(v)
		}
	})
}
