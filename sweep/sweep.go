// Package sweep renews subscriptions ahead of expiry through a job queue.
// Lifecycle notifications remain the primary renewal trigger; the sweep
// covers subscriptions whose warnings never arrived.
package sweep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-graphwatch/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDSubscriptionRenew = "graphwatch.subscription.renew"

	defaultHorizon = 24 * time.Hour
)

const paramSubscriptionID = "subscription_id"

// ExpiringLister lists subscriptions whose expiry falls before a deadline.
type ExpiringLister interface {
	ListExpiring(ctx context.Context, before time.Time) ([]core.Subscription, error)
}

// Renewer extends a subscription's expiry against the remote API.
type Renewer interface {
	Renew(ctx context.Context, notification core.LifecycleNotification) error
}

// Sweeper enqueues one renewal job per subscription expiring inside the
// configured horizon.
type Sweeper struct {
	lister   ExpiringLister
	enqueuer queue.Enqueuer
	logger   core.Logger
	horizon  time.Duration
	now      func() time.Time
}

type SweeperOption func(*Sweeper)

func WithSweeperLogger(logger core.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = glog.Ensure(logger)
	}
}

// WithHorizon sets how far ahead of expiry the sweep reaches.
func WithHorizon(horizon time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if horizon > 0 {
			s.horizon = horizon
		}
	}
}

func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSweeper(lister ExpiringLister, enqueuer queue.Enqueuer, options ...SweeperOption) (*Sweeper, error) {
	if lister == nil {
		return nil, fmt.Errorf("sweep: expiring lister is required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("sweep: job enqueuer is required")
	}
	s := &Sweeper{
		lister:   lister,
		enqueuer: enqueuer,
		logger:   glog.Ensure(nil),
		horizon:  defaultHorizon,
		now:      time.Now,
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Sweep enqueues renewal jobs for everything expiring inside the horizon and
// returns how many were enqueued. Enqueue failures stop the sweep so the next
// run retries the remainder.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s == nil || s.lister == nil || s.enqueuer == nil {
		return 0, fmt.Errorf("sweep: sweeper is not configured")
	}
	deadline := s.now().Add(s.horizon)
	subs, err := s.lister.ListExpiring(ctx, deadline)
	if err != nil {
		return 0, fmt.Errorf("sweep: list expiring subscriptions: %w", err)
	}

	enqueued := 0
	for _, sub := range subs {
		msg := &job.ExecutionMessage{
			JobID:      JobIDSubscriptionRenew,
			ScriptPath: JobIDSubscriptionRenew,
			Parameters: map[string]any{
				paramSubscriptionID: sub.ID,
			},
			IdempotencyKey: renewIdempotencyKey(sub.ID, deadline),
		}
		if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
			return enqueued, fmt.Errorf("sweep: enqueue renewal for %s: %w", sub.ID, err)
		}
		enqueued++
	}
	if enqueued > 0 {
		s.logger.Info("renewal sweep enqueued jobs",
			"count", enqueued,
			"deadline", deadline.Format(time.RFC3339))
	}
	return enqueued, nil
}

func renewIdempotencyKey(subscriptionID string, deadline time.Time) string {
	return fmt.Sprintf("%s:%s:%d", JobIDSubscriptionRenew, subscriptionID, deadline.Unix())
}

// RetryPolicy bounds requeue behavior for failed renewal jobs.
type RetryPolicy struct {
	MaxAttempts     int
	RetryDelay      time.Duration
	DeadLetterOnMax bool
}

func (p RetryPolicy) nackOptions(attempt int, reason string) queue.NackOptions {
	opts := queue.NackOptions{
		Delay:   p.RetryDelay,
		Requeue: true,
		Reason:  reason,
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		opts.Requeue = false
		opts.DeadLetter = p.DeadLetterOnMax
	}
	return opts
}

// Runner consumes renewal jobs and drives the renewer.
type Runner struct {
	renewer  Renewer
	dequeuer queue.Dequeuer
	logger   core.Logger
	policy   RetryPolicy
}

type RunnerOption func(*Runner)

func WithRunnerLogger(logger core.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = glog.Ensure(logger)
	}
}

func WithRetryPolicy(policy RetryPolicy) RunnerOption {
	return func(r *Runner) {
		r.policy = policy
	}
}

func NewRunner(renewer Renewer, dequeuer queue.Dequeuer, options ...RunnerOption) (*Runner, error) {
	if renewer == nil {
		return nil, fmt.Errorf("sweep: renewer is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("sweep: job dequeuer is required")
	}
	r := &Runner{
		renewer:  renewer,
		dequeuer: dequeuer,
		logger:   glog.Ensure(nil),
		policy: RetryPolicy{
			MaxAttempts:     3,
			RetryDelay:      time.Minute,
			DeadLetterOnMax: true,
		},
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// RunOnce takes a single delivery off the queue and processes it. Attempt is
// one-based and drives the retry policy on failure.
func (r *Runner) RunOnce(ctx context.Context, attempt int) error {
	if r == nil || r.renewer == nil || r.dequeuer == nil {
		return fmt.Errorf("sweep: runner is not configured")
	}
	delivery, err := r.dequeuer.Dequeue(ctx)
	if err != nil {
		return fmt.Errorf("sweep: dequeue renewal job: %w", err)
	}
	return r.process(ctx, delivery, attempt)
}

func (r *Runner) process(ctx context.Context, delivery queue.Delivery, attempt int) error {
	msg := delivery.Message()
	subscriptionID := subscriptionIDFrom(msg)
	if subscriptionID == "" {
		r.logger.Warn("renewal job without a subscription id, dropping")
		return delivery.Nack(ctx, queue.NackOptions{
			DeadLetter: true,
			Reason:     "missing subscription_id parameter",
		})
	}

	renewErr := r.renewer.Renew(ctx, core.LifecycleNotification{
		SubscriptionID: subscriptionID,
		Event:          "sweep",
	})
	if renewErr == nil {
		return delivery.Ack(ctx)
	}

	r.logger.Error("renewal job failed",
		"subscription_id", subscriptionID,
		"attempt", attempt,
		"error", renewErr.Error())
	return delivery.Nack(ctx, r.policy.nackOptions(attempt, renewErr.Error()))
}

func subscriptionIDFrom(msg *job.ExecutionMessage) string {
	if msg == nil || len(msg.Parameters) == 0 {
		return ""
	}
	raw, ok := msg.Parameters[paramSubscriptionID]
	if !ok {
		return ""
	}
	id, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(id)
}
