package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type WebhookNotifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

func NewWebhookNotifier(url string, timeout time.Duration, ratePerSecond float64, burst int) *WebhookNotifier {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return &DeliveryError{Notifier: "webhook", Err: err}
	}

	body, err := json.Marshal(n)
	if err != nil {
		return &DeliveryError{Notifier: "webhook", Err: fmt.Errorf("failed to marshal notification: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Notifier: "webhook", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-ID", n.ID.String())

	resp, err := w.client.Do(req)
	if err != nil {
		return &DeliveryError{Notifier: "webhook", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{Notifier: "webhook", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}
