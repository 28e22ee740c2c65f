package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklane/stacklane/internal/events"
	"github.com/stacklane/stacklane/internal/metrics"
)

// Group is the consumer group that feeds the notifier.
const Group = "order_webhooks"

// Payload is the JSON body POSTed for each order event.
type Payload struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       OrderData `json:"data"`
}

// OrderData describes the order an event refers to.
type OrderData struct {
	OrderID    string `json:"order_id"`
	ItemID     string `json:"item_id"`
	Quantity   int    `json:"quantity"`
	TotalCents int64  `json:"total_cents"`
}

// Options configures a Notifier.
type Options struct {
	URL    string
	Secret string
	// AllowPrivate permits plain HTTP and private targets.
	AllowPrivate bool
}

// Notifier posts signed order events to one endpoint. It implements
// events.Applier: transient failures are returned so the worker retries
// them, while permanent rejections are logged and dropped.
type Notifier struct {
	url     string
	secret  string
	client  *http.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewNotifier validates opts and creates a Notifier.
func NewNotifier(opts Options, logger *slog.Logger, recorder metrics.Recorder) (*Notifier, error) {
	if err := ValidateTargetURL(opts.URL, opts.AllowPrivate); err != nil {
		return nil, fmt.Errorf("webhook url: %w", err)
	}
	if opts.Secret == "" {
		return nil, errors.New("webhook secret is required")
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Notifier{
		url:     opts.URL,
		secret:  opts.Secret,
		client:  NewHTTPClient(opts.AllowPrivate),
		logger:  logger.With("component", "webhook.notifier", "target_host", ExtractHost(opts.URL)),
		metrics: recorder,
		now:     time.Now,
	}, nil
}

// DeliveryID identifies an event across redeliveries so receivers can
// deduplicate.
func DeliveryID(e events.Event) string {
	return e.Type + ":" + e.OrderID
}

// NewPayload builds the body for e.
func NewPayload(e events.Event) Payload {
	return Payload{
		ID:         DeliveryID(e),
		Type:       e.Type,
		OccurredAt: time.UnixMilli(e.OccurredAt).UTC(),
		Data: OrderData{
			OrderID:    e.OrderID,
			ItemID:     e.ItemID,
			Quantity:   e.Quantity,
			TotalCents: e.TotalCents,
		},
	}
}

// Apply delivers e. It reports false when the receiver rejected it.
func (n *Notifier) Apply(ctx context.Context, e events.Event) (bool, error) {
	payload := NewPayload(e)
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderSignature, SignatureHeader(n.secret, n.now().Unix(), body))
	req.Header.Set(HeaderDeliveryID, payload.ID)
	req.Header.Set(HeaderEvent, payload.Type)

	start := time.Now()
	resp, err := n.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		n.metrics.ObserveWebhookDelivery(metrics.WebhookFailed, duration)
		return false, fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection is reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		n.logger.Info("webhook delivered",
			"delivery_id", payload.ID,
			"http_status", resp.StatusCode,
			"duration_ms", duration.Milliseconds(),
		)
		n.metrics.ObserveWebhookDelivery(metrics.WebhookDelivered, duration)
		return true, nil
	case retryable(resp.StatusCode):
		n.metrics.ObserveWebhookDelivery(metrics.WebhookFailed, duration)
		return false, fmt.Errorf("deliver webhook: HTTP %d", resp.StatusCode)
	default:
		n.logger.Warn("webhook rejected",
			"delivery_id", payload.ID,
			"http_status", resp.StatusCode,
		)
		n.metrics.ObserveWebhookDelivery(metrics.WebhookRejected, duration)
		return false, nil
	}
}

func retryable(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}
