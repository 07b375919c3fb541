package notify

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/combo-storefront/internal/domain/order"
)

// encodePlaced writes the order.placed document shared by the webhook and
// Kafka sinks. Customer contact details are only written when withContact is
// set; otherwise the mobile number is replaced by its hash.
func encodePlaced(e *jx.Encoder, ev order.PlacedEvent, withContact bool) {
	o := ev.Order
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str("order.placed") })
		e.Field("eventId", func(e *jx.Encoder) { e.Str(ev.EventID) })
		e.Field("orderId", func(e *jx.Encoder) { e.Str(ev.OrderID) })
		e.Field("timestamp", func(e *jx.Encoder) { e.Str(ev.Timestamp.UTC().Format(time.RFC3339)) })
		if withContact {
			e.Field("name", func(e *jx.Encoder) { e.Str(o.Name) })
			e.Field("mobile", func(e *jx.Encoder) { e.Str(ev.Mobile) })
			e.Field("address", func(e *jx.Encoder) { e.Str(o.Address) })
		} else {
			e.Field("mobileHash", func(e *jx.Encoder) { e.Str(HashPhone(ev.Mobile)) })
		}
		e.Field("products", func(e *jx.Encoder) { encodeStrings(e, o.Products) })
		e.Field("sizes", func(e *jx.Encoder) { encodeStrings(e, o.Sizes) })
		e.Field("combo", func(e *jx.Encoder) { e.Str(string(o.Combo)) })
		e.Field("location", func(e *jx.Encoder) { e.Str(string(o.Location)) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(ev.Quantity) })
		e.Field("price", func(e *jx.Encoder) { e.Str(o.Price.StringFixed(2)) })
		e.Field("deliveryCharge", func(e *jx.Encoder) { e.Str(o.DeliveryCharge.StringFixed(2)) })
		e.Field("total", func(e *jx.Encoder) { e.Str(ev.Value.StringFixed(2)) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(ev.Currency) })
		if ev.PageURL != "" {
			e.Field("pageUrl", func(e *jx.Encoder) { e.Str(ev.PageURL) })
		}
	})
}

func encodeStrings(e *jx.Encoder, vs []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range vs {
			e.Str(v)
		}
	})
}
