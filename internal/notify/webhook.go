package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/combo-storefront/internal/domain/order"
)

// WebhookSink posts each order to the shop's own order sheet, the list staff
// work from to call and ship. It is the only sink that sends the raw name,
// mobile and address. It must not point at an analytics or ads receiver:
// those get hashed identifiers through TikTokSink or KafkaSink.
type WebhookSink struct {
	url    string
	client *http.Client
}

var _ Sink = (*WebhookSink)(nil)

// NewWebhookSink creates a sink posting to url. A nil client uses
// http.DefaultClient.
func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookSink{url: url, client: client}
}

func (s *WebhookSink) Name() string { return "webhook" }

// Send posts the order document. Any 2xx or 3xx status is success.
func (s *WebhookSink) Send(ctx context.Context, ev order.PlacedEvent) error {
	var e jx.Encoder
	encodePlaced(&e, ev, true)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post order")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
