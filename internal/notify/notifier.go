// SPDX-License-Identifier: Apache-2.0

// Package notify delivers the feature event log to project webhooks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/adiadia/featuredesk/internal/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxAttempts = 5
	defaultTimeout     = 10 * time.Second
	defaultRetryBase   = 2 * time.Second
	maxRetryDelay      = 10 * time.Minute
	lastErrorMaxLen    = 512
)

type Deps struct {
	Pool        *pgxpool.Pool
	Logger      *slog.Logger
	HTTPClient  *http.Client
	MaxAttempts int
	Timeout     time.Duration
	RetryBase   time.Duration
}

type Notifier struct {
	pool        *pgxpool.Pool
	logger      *slog.Logger
	httpClient  *http.Client
	maxAttempts int
	timeout     time.Duration
	retryBase   time.Duration
}

func New(deps Deps) *Notifier {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hc := deps.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	maxAtt := deps.MaxAttempts
	if maxAtt <= 0 {
		maxAtt = defaultMaxAttempts
	}

	base := deps.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}

	return &Notifier{
		pool:        deps.Pool,
		logger:      l,
		httpClient:  hc,
		maxAttempts: maxAtt,
		timeout:     timeout,
		retryBase:   base,
	}
}

// claimedEvent is one undelivered event leased to this notifier together with
// its project's webhook target.
type claimedEvent struct {
	ID            uuid.UUID
	Seq           int64
	FeatureID     uuid.UUID
	ProjectID     uuid.UUID
	Type          domain.EventType
	Payload       json.RawMessage
	CreatedAt     time.Time
	Attempts      int
	WebhookURL    string
	WebhookSecret string
}

// Run polls for due events every interval until ctx is canceled. Each tick
// drains every due event before sleeping again.
func (n *Notifier) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				handled, err := n.ProcessOnce(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					n.logger.Error("notifier process failed", "error", err)
					break
				}
				if !handled {
					break
				}
			}
		}
	}
}

// ProcessOnce claims and delivers at most one due event. It reports whether
// an event was handled.
func (n *Notifier) ProcessOnce(ctx context.Context) (bool, error) {
	ev, err := n.claimOneEvent(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		n.logger.Error("claim event failed", "error", err)
		return false, err
	}

	n.logger.Debug("event claimed",
		"event_id", ev.ID,
		"feature_id", ev.FeatureID,
		"attempt", ev.Attempts,
	)

	if ev.WebhookURL == "" {
		if err := n.markDelivered(ctx, ev.ID); err != nil {
			return true, err
		}
		metrics.IncWebhookDelivery(metrics.DeliverySkipped)
		return true, nil
	}

	deliverCtx, cancel := context.WithTimeout(ctx, n.timeout)
	deliverErr := n.deliver(deliverCtx, ev)
	cancel()

	if deliverErr == nil {
		if err := n.markDelivered(ctx, ev.ID); err != nil {
			return true, err
		}
		metrics.IncWebhookDelivery(metrics.DeliverySucceeded)
		n.logger.Info("webhook delivered",
			"event_id", ev.ID,
			"feature_id", ev.FeatureID,
			"attempt", ev.Attempts,
		)
		return true, nil
	}

	if ev.Attempts >= n.maxAttempts {
		if err := n.markFailed(ctx, ev.ID, deliverErr, nil); err != nil {
			return true, err
		}
		metrics.IncWebhookDelivery(metrics.DeliveryExhausted)
		n.logger.Error("webhook retries exhausted",
			"event_id", ev.ID,
			"feature_id", ev.FeatureID,
			"attempts", ev.Attempts,
			"error", deliverErr,
		)
		return true, nil
	}

	delay := retryDelay(n.retryBase, ev.Attempts)
	if err := n.markFailed(ctx, ev.ID, deliverErr, &delay); err != nil {
		return true, err
	}
	metrics.IncWebhookDelivery(metrics.DeliveryRetried)
	n.logger.Warn("webhook failure",
		"event_id", ev.ID,
		"feature_id", ev.FeatureID,
		"attempt", ev.Attempts,
		"retry_in", delay,
		"error", deliverErr,
	)
	return true, nil
}

// claimOneEvent leases the oldest due event by bumping attempts and pushing
// next_attempt_at past the delivery timeout, so a crashed notifier's lease
// expires on its own. SKIP LOCKED lets several notifiers share the log.
func (n *Notifier) claimOneEvent(ctx context.Context) (claimedEvent, error) {
	started := time.Now()
	defer func() {
		metrics.ObserveNotifierClaimLatency(time.Since(started))
	}()

	lease := (n.timeout + 5*time.Second).Seconds()

	var ev claimedEvent
	err := n.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM feature_events
			WHERE delivered_at IS NULL
			  AND next_attempt_at <= NOW()
			  AND attempts < $1
			ORDER BY next_attempt_at ASC, seq ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE feature_events e
		SET attempts = e.attempts + 1,
		    next_attempt_at = NOW() + make_interval(secs => $2)
		FROM next, features f, projects p
		WHERE e.id = next.id
		  AND f.id = e.feature_id
		  AND p.id = f.project_id
		RETURNING e.id, e.seq, e.feature_id, f.project_id, e.type, e.payload,
		          e.created_at, e.attempts, p.webhook_url, p.webhook_secret
	`, n.maxAttempts, lease).Scan(
		&ev.ID,
		&ev.Seq,
		&ev.FeatureID,
		&ev.ProjectID,
		&ev.Type,
		&ev.Payload,
		&ev.CreatedAt,
		&ev.Attempts,
		&ev.WebhookURL,
		&ev.WebhookSecret,
	)
	return ev, err
}

func (n *Notifier) markDelivered(ctx context.Context, eventID uuid.UUID) error {
	if _, err := n.pool.Exec(ctx, `
		UPDATE feature_events
		SET delivered_at = NOW(), last_error = ''
		WHERE id = $1
	`, eventID); err != nil {
		n.logger.Error("mark event delivered failed", "event_id", eventID, "error", err)
		return err
	}
	return nil
}

// markFailed records the delivery error. A nil retryIn leaves the event
// parked once attempts reach the limit.
func (n *Notifier) markFailed(ctx context.Context, eventID uuid.UUID, cause error, retryIn *time.Duration) error {
	msg := truncateUTF8(cause.Error(), lastErrorMaxLen)

	var err error
	if retryIn == nil {
		_, err = n.pool.Exec(ctx, `
			UPDATE feature_events
			SET last_error = $2
			WHERE id = $1
		`, eventID, msg)
	} else {
		_, err = n.pool.Exec(ctx, `
			UPDATE feature_events
			SET last_error = $2,
			    next_attempt_at = NOW() + make_interval(secs => $3)
			WHERE id = $1
		`, eventID, msg, retryIn.Seconds())
	}
	if err != nil {
		n.logger.Error("record delivery failure failed", "event_id", eventID, "error", err)
	}
	return err
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
// Postgres rejects invalid UTF-8 in TEXT columns.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// retryDelay doubles base per attempt already made, capped at maxRetryDelay.
func retryDelay(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
