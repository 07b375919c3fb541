package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/combo-storefront/internal/domain/order"
)

// TikTokEventsURL is the Events API endpoint for pixel events.
const TikTokEventsURL = "https://business-api.tiktok.com/open_api/v1.2/pixel/track/"

// TikTokConfig configures the TikTok Events API sink.
type TikTokConfig struct {
	PixelID     string
	AccessToken string
	// Endpoint overrides TikTokEventsURL.
	Endpoint string
	// ContentName is reported as the purchased content.
	ContentName string
}

// Enabled reports whether both credentials are set.
func (c TikTokConfig) Enabled() bool {
	return c.PixelID != "" && c.AccessToken != ""
}

// TikTokSink reports completed orders to the TikTok Events API.
type TikTokSink struct {
	cfg    TikTokConfig
	client *http.Client
}

var _ Sink = (*TikTokSink)(nil)

// NewTikTokSink creates a sink. A nil client uses http.DefaultClient.
func NewTikTokSink(cfg TikTokConfig, client *http.Client) *TikTokSink {
	if cfg.Endpoint == "" {
		cfg.Endpoint = TikTokEventsURL
	}
	if cfg.ContentName == "" {
		cfg.ContentName = "Drop Shoulder T-shirt"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &TikTokSink{cfg: cfg, client: client}
}

func (s *TikTokSink) Name() string { return "tiktok" }

// Send posts a CompletePayment event. A response code other than 0 is an error.
func (s *TikTokSink) Send(ctx context.Context, ev order.PlacedEvent) error {
	body := s.encode(ev)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Access-Token", s.cfg.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send event")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	code, msg, err := decodeTikTokResponse(raw)
	if err != nil {
		return errors.Wrap(err, "decode response")
	}
	if code != 0 {
		return errors.Errorf("events api code %d: %s", code, msg)
	}
	return nil
}

func (s *TikTokSink) encode(ev order.PlacedEvent) []byte {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("data")
		e.Arr(func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("pixel_code", func(e *jx.Encoder) { e.Str(s.cfg.PixelID) })
				e.Field("event", func(e *jx.Encoder) { e.Str("CompletePayment") })
				e.Field("event_id", func(e *jx.Encoder) { e.Str(ev.EventID) })
				e.Field("timestamp", func(e *jx.Encoder) { e.Str(ts.UTC().Format(time.RFC3339)) })
				e.Field("context", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("user", func(e *jx.Encoder) {
							e.Obj(func(e *jx.Encoder) {
								if ev.Mobile != "" {
									e.Field("phone_number", func(e *jx.Encoder) { e.Str(HashPhone(ev.Mobile)) })
								}
								if ev.ClientIP != "" {
									e.Field("ip", func(e *jx.Encoder) { e.Str(ev.ClientIP) })
								}
								if ev.UserAgent != "" {
									e.Field("user_agent", func(e *jx.Encoder) { e.Str(ev.UserAgent) })
								}
							})
						})
						e.Field("page", func(e *jx.Encoder) {
							e.Obj(func(e *jx.Encoder) {
								if ev.PageURL != "" {
									e.Field("url", func(e *jx.Encoder) { e.Str(ev.PageURL) })
								}
							})
						})
						e.Field("ad", func(e *jx.Encoder) {
							e.Obj(func(e *jx.Encoder) {
								e.Field("callback", func(e *jx.Encoder) { e.Str(ev.EventID) })
							})
						})
					})
				})
				e.Field("properties", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("order_id", func(e *jx.Encoder) { e.Str(ev.OrderID) })
						e.Field("value", func(e *jx.Encoder) { e.Float64(ev.Value.InexactFloat64()) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(ev.Quantity) })
						e.Field("currency", func(e *jx.Encoder) { e.Str(ev.Currency) })
						e.Field("content_type", func(e *jx.Encoder) { e.Str("product") })
						e.Field("content_name", func(e *jx.Encoder) { e.Str(s.cfg.ContentName) })
					})
				})
			})
		})
	})
	return e.Bytes()
}

func decodeTikTokResponse(raw []byte) (code int, msg string, err error) {
	code = -1
	err = jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "code":
			v, err := d.Int()
			if err != nil {
				return err
			}
			code = v
		case "message":
			v, err := d.Str()
			if err != nil {
				return err
			}
			msg = v
		default:
			return d.Skip()
		}
		return nil
	})
	return code, msg, err
}
