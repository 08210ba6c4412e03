package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "notification:dedup:"

// Dispatcher drains the notification job queue and delivers each job to
// every active token of its audience, with bounded exponential backoff on
// retryable provider errors.
type Dispatcher struct {
	store       *Store
	provider    Provider
	rdb         *redis.Client
	logger      *slog.Logger
	maxRetries  int
	backoffBase time.Duration
	dedupWindow time.Duration
	claimBatch  int
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store *Store, provider Provider, rdb *redis.Client, logger *slog.Logger, maxRetries int, backoffBase, dedupWindow time.Duration) *Dispatcher {
	return &Dispatcher{
		store:       store,
		provider:    provider,
		rdb:         rdb,
		logger:      logger,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		dedupWindow: dedupWindow,
		claimBatch:  50,
	}
}

// Run drains the queue on a fixed interval until ctx is cancelled, the same
// enqueue-inside-transaction/drain-after-commit shape used for the other
// background sweepers in this system.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.drainOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drainOnce(ctx)
		}
	}
}

func (d *Dispatcher) drainOnce(ctx context.Context) {
	jobs, err := d.store.ClaimPending(ctx, d.claimBatch)
	if err != nil {
		d.logger.Error("claiming notification jobs failed", "error", err)
		return
	}
	for _, j := range jobs {
		d.deliver(ctx, j)
	}
}

// deliver resolves the audience, checks idempotency, renders the template
// once, and sends to every active token, retrying per-token on
// provider-classified transient failures.
func (d *Dispatcher) deliver(ctx context.Context, j *Job) {
	dup, err := d.checkDedup(ctx, j)
	if err != nil {
		d.logger.Warn("dedup check failed, proceeding without suppression", "error", err)
	} else if dup {
		d.logger.Info("suppressed duplicate notification", "user_id", j.UserID, "template_id", j.TemplateID, "correlation_id", j.CorrelationID)
		return
	}

	title, body, err := Render(j.TemplateID, j.Params)
	if err != nil {
		d.logger.Error("rendering notification template failed", "error", err, "template_id", j.TemplateID)
		return
	}

	tokens, err := d.store.ActiveTokensForUser(ctx, j.UserID)
	if err != nil {
		d.logger.Error("resolving audience failed", "error", err, "user_id", j.UserID)
		return
	}

	for _, token := range tokens {
		d.sendWithRetry(ctx, token, title, body)
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, token, title, body string) {
	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			delay := d.backoffBase * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		status, err := d.provider.Send(ctx, token, title, body)
		if err != nil {
			lastErr = err
			continue
		}

		switch status {
		case SendOK:
			return
		case SendInvalidToken:
			if err := d.store.DeactivateToken(ctx, token); err != nil {
				d.logger.Warn("deactivating invalid push token failed", "error", err)
			}
			return
		case SendPermanentFail:
			d.logger.Warn("permanent push delivery failure", "token", token)
			return
		default:
			if !status.Retryable() {
				return
			}
			// fall through to next attempt
		}
	}
	if lastErr != nil {
		d.logger.Warn("push delivery exhausted retries", "error", lastErr, "token", token)
	}
}

// checkDedup reports whether (userId, templateId, correlationId) has
// already been delivered within the dedup window, caching the fingerprint
// in Redis on first delivery.
func (d *Dispatcher) checkDedup(ctx context.Context, j *Job) (bool, error) {
	if j.CorrelationID == "" {
		return false, nil
	}
	key := dedupKeyPrefix + j.UserID.String() + ":" + j.TemplateID + ":" + j.CorrelationID
	ok, err := d.rdb.SetNX(ctx, key, "1", d.dedupWindow).Result()
	if err != nil {
		return false, fmt.Errorf("dedup set: %w", err)
	}
	return !ok, nil
}
