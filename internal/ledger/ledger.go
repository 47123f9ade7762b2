// Package ledger records votes, keeps item counters in step with them and
// moves author XP, all inside one atomic scope per operation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hushfeed/internal/models"
	"hushfeed/internal/observability"
	"hushfeed/internal/repository"

	"github.com/cenkalti/backoff/v5"
)

// Operation names used in logs, metrics and spans.
const (
	OpCastVote      = "cast_vote"
	OpSetVote       = "set_vote"
	OpCreatePost    = "create_post"
	OpCreateComment = "create_comment"
)

// Publisher receives counters after a commit. Failures are logged and
// otherwise ignored; the commit already happened.
type Publisher interface {
	PublishCounters(ctx context.Context, event models.CounterEvent) error
}

// Ledger is the only writer of item counters, votes and XP.
type Ledger struct {
	store     repository.LedgerStore
	policy    Policy
	retry     RetryPolicy
	publisher Publisher
	log       *observability.LedgerLogger
	metrics   *observability.LedgerMetrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPolicy sets the XP policy.
func WithPolicy(p Policy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithRetry sets the conflict retry bounds.
func WithRetry(r RetryPolicy) Option {
	return func(l *Ledger) {
		if r.MaxAttempts < 1 {
			r.MaxAttempts = 1
		}
		l.retry = r
	}
}

// WithPublisher sets where committed counters are announced.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithLogger sets the ledger logger.
func WithLogger(log *observability.LedgerLogger) Option {
	return func(l *Ledger) { l.log = log }
}

// New creates a Ledger over store.
func New(store repository.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		policy:  DefaultPolicy(),
		retry:   DefaultRetryPolicy(),
		log:     observability.NewLedgerLogger(nil),
		metrics: observability.NewLedgerMetrics(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the XP policy in force.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// atomically runs fn in a fresh scope until it commits, fails with a
// non-conflict error, or the attempt budget is spent. fn must not keep
// state between calls; each attempt starts from what the store holds.
func (l *Ledger) atomically(ctx context.Context, op string, fn func(ctx context.Context, s repository.Scope) error) (int, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     l.retry.InitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         l.retry.MaxInterval,
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := l.store.Atomically(ctx, fn)
		if err == nil || models.IsConflict(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(l.retry.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			l.metrics.RecordRetry(op)
			l.log.LogRetry(ctx, op, attempts, wait, err)
		}),
	)
	if err == nil {
		return attempts, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if models.IsConflict(err) {
		return attempts, models.NewConflictError(
			fmt.Sprintf("Could not commit after %d attempts, try again", attempts), err)
	}
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		// Context cancellation surfaces here.
		err = models.NewInternalError(err)
	}
	return attempts, err
}

func (l *Ledger) fail(ctx context.Context, span *observability.Span, op string, attempts int, err error) error {
	code := models.CodeInternal
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	l.metrics.RecordFailure(op, code)
	if code == models.CodeInternal || code == models.CodeConflict || code == models.CodePermissionDenied {
		l.log.LogError(ctx, op, attempts, err)
	}
	span.SetError(err)
	return err
}

func (l *Ledger) publish(ctx context.Context, event models.CounterEvent) {
	if l.publisher == nil {
		return
	}
	event.At = time.Now().UTC()
	err := l.publisher.PublishCounters(ctx, event)
	l.metrics.RecordPublish(err == nil)
	if err != nil {
		l.log.LogWarn(ctx, "publish", "counter event not delivered", map[string]interface{}{
			"item":  event.Item.String(),
			"error": err.Error(),
		})
	}
}
