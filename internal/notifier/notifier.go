// Package notifier dispatches fire-and-forget webhooks to the downstream processing worker.
//
// Delivery is at most once and best effort: no retry, no backoff. Failures are written to
// the log as dead letters and never reach the caller.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docflow/internal/config"
	"docflow/internal/metrics"
)

// Payload is the JSON body POSTed to the webhook.
// PublicURL is null when no public address could be derived.
type Payload struct {
	DocumentID  string  `json:"documentId"`
	StoragePath string  `json:"storagePath"`
	PublicURL   *string `json:"publicURL"`
	FileName    string  `json:"fileName"`
	OwnerID     string  `json:"ownerId"`
}

// Notifier hands a payload to the downstream worker without waiting for the outcome.
type Notifier interface {
	// Notify returns as soon as the dispatch is scheduled. ctx carries trace context only;
	// its cancellation does not abort the dispatch.
	Notify(ctx context.Context, p Payload)
}

// Dispatcher is the webhook Notifier. With an empty endpoint it only logs.
type Dispatcher struct {
	endpoint string
	client   *http.Client
	pool     *ants.Pool
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

var _ Notifier = (*Dispatcher)(nil)

// maxDrain caps how much of a webhook response body is read before closing.
const maxDrain = 64 << 10

// New builds a Dispatcher from cfg. The returned Dispatcher must be released with Release.
func New(cfg config.NotifierConfig, logger *slog.Logger, m *metrics.Metrics) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "notifier")

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	size := cfg.PoolSize
	if size < 1 {
		size = 1
	}

	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			logger.Error("notification_panic", "panic", fmt.Sprint(v))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create notifier pool: %w", err)
	}

	if cfg.WebhookURL == "" {
		logger.Warn("notifier_disabled", "reason", "webhook url not configured")
	}

	return &Dispatcher{
		endpoint: cfg.WebhookURL,
		client:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		pool:     pool,
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Notify schedules the webhook on the background pool with its own timeout.
func (d *Dispatcher) Notify(ctx context.Context, p Payload) {
	if d.endpoint == "" {
		d.logger.Warn("notification_skipped",
			"reason", "webhook url not configured",
			"document_id", p.DocumentID,
		)
		d.metrics.Notification(metrics.NotifyDisabled)
		return
	}

	detached := context.WithoutCancel(ctx)
	err := d.pool.Submit(func() {
		sendCtx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()

		start := time.Now()
		if err := d.send(sendCtx, p); err != nil {
			d.metrics.Notification(metrics.NotifyFailed)
			d.deadLetter(p, err)
			return
		}
		d.metrics.Notification(metrics.NotifyDelivered)
		d.logger.Info("notification_delivered",
			"document_id", p.DocumentID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
	if err != nil {
		d.metrics.Notification(metrics.NotifyRejected)
		d.deadLetter(p, fmt.Errorf("schedule dispatch: %w", err))
	}
}

// Release stops accepting work and waits up to timeout for in-flight dispatches.
func (d *Dispatcher) Release(timeout time.Duration) error {
	return d.pool.ReleaseTimeout(timeout)
}

func (d *Dispatcher) send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

// deadLetter records an undelivered payload so it can be replayed by hand.
func (d *Dispatcher) deadLetter(p Payload, err error) {
	d.logger.Error("notification_dead_letter",
		"document_id", p.DocumentID,
		"error", err.Error(),
		"payload", p,
	)
}
