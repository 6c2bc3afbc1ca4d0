// Package app runs the executor: a polling consumer that leases authorized
// requests from the queue, performs their side effects, and settles each
// attempt as completed, retried, or terminally failed.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	actiondomain "github.com/veilworld/veilworld/internal/services/actions/domain"
	"github.com/veilworld/veilworld/internal/services/actions/storage"
	"github.com/veilworld/veilworld/internal/services/executor/domain"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultLeaseTTL      = 30 * time.Second
	defaultMaxAttempts   = 8
	defaultRetryBackoff  = 5 * time.Second
	defaultRetryMaxDelay = 5 * time.Minute
)

// Config controls the executor loop.
type Config struct {
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaultLeaseTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryMaxDelay < c.RetryBackoff {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	return c
}

// Loop is the executor consumer.
type Loop struct {
	queue    storage.QueueStore
	handlers map[actiondomain.Kind]domain.Handler
	cfg      Config
	metrics  *Metrics
	clock    func() time.Time
}

// New builds an executor loop. A nil clock defaults to time.Now; nil metrics
// disable counting.
func New(queue storage.QueueStore, handlers map[actiondomain.Kind]domain.Handler, cfg Config, metrics *Metrics, clock func() time.Time) *Loop {
	if clock == nil {
		clock = time.Now
	}
	return &Loop{
		queue:    queue,
		handlers: handlers,
		cfg:      cfg.normalized(),
		metrics:  metrics,
		clock:    clock,
	}
}

// Run polls the queue until the context is canceled. Each tick drains every
// ready request before sleeping again.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for l.processOne(ctx) {
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

// processOne leases and settles a single request. It reports whether a
// request was processed, so callers can drain until the queue is idle.
func (l *Loop) processOne(ctx context.Context) bool {
	request, err := l.queue.Lease(ctx, l.clock().UTC(), l.cfg.LeaseTTL)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && ctx.Err() == nil {
			log.Printf("lease request: %v", err)
		}
		return false
	}
	l.settle(ctx, request)
	return true
}

func (l *Loop) settle(ctx context.Context, request actiondomain.Request) {
	handler, ok := l.handlers[request.Kind]
	var execErr error
	if !ok {
		execErr = domain.Permanent(fmt.Errorf("no handler for action kind %q", request.Kind))
	} else {
		execErr = handler.Execute(ctx, request)
	}
	now := l.clock().UTC()
	kind := string(request.Kind)

	if execErr == nil {
		if err := l.queue.MarkCompleted(ctx, request.ID, now); err != nil {
			log.Printf("mark request %s completed: %v", request.ID, err)
			return
		}
		l.metrics.recordCompleted(kind)
		log.Printf("request %s completed (%s %s)", request.ID, kind, request.PostID)
		return
	}

	if domain.IsPermanent(execErr) || request.Attempts >= l.cfg.MaxAttempts {
		if err := l.queue.MarkFailed(ctx, request.ID, execErr.Error(), now); err != nil {
			log.Printf("mark request %s failed: %v", request.ID, err)
			return
		}
		l.metrics.recordFailed(kind)
		log.Printf("request %s failed after %d attempts: %v", request.ID, request.Attempts, execErr)
		return
	}

	notBefore := now.Add(l.backoff(request.Attempts))
	if err := l.queue.Requeue(ctx, request.ID, execErr.Error(), notBefore); err != nil {
		log.Printf("requeue request %s: %v", request.ID, err)
		return
	}
	l.metrics.recordRetried(kind)
	log.Printf("request %s attempt %d failed, retrying at %s: %v", request.ID, request.Attempts, notBefore.Format(time.RFC3339), execErr)
}

// backoff doubles the base delay per prior attempt, capped at the maximum.
func (l *Loop) backoff(attempts int) time.Duration {
	delay := l.cfg.RetryBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= l.cfg.RetryMaxDelay {
			return l.cfg.RetryMaxDelay
		}
	}
	return delay
}
