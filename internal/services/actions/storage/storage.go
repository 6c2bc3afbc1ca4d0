// Package storage defines the durable action queue contract shared by the
// authorization engine (producer) and the executor (consumer).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/veilworld/veilworld/internal/services/actions/domain"
)

// ErrNotFound indicates a requested record is missing or no work is ready.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateKey indicates a request for the same (post, kind) key is
// already queued or executing.
var ErrDuplicateKey = errors.New("request already in flight for key")

// QueueStore persists action requests for idempotent asynchronous
// execution. Mutual exclusion per (post, kind) is the store's guarantee:
// Enqueue rejects a second in-flight request for the same key.
type QueueStore interface {
	Enqueue(ctx context.Context, request domain.Request) error
	// Lease claims the next ready request: the oldest queued request whose
	// retry delay has elapsed, or an executing request whose lease expired.
	// The claim moves it to executing, extends the lease, and counts an
	// attempt. ErrNotFound means no work is ready.
	Lease(ctx context.Context, now time.Time, leaseTTL time.Duration) (domain.Request, error)
	MarkCompleted(ctx context.Context, requestID string, now time.Time) error
	MarkFailed(ctx context.Context, requestID string, lastError string, now time.Time) error
	// Requeue returns a leased request to the queue for a later retry.
	Requeue(ctx context.Context, requestID string, lastError string, notBefore time.Time) error
	GetRequest(ctx context.Context, requestID string) (domain.Request, error)
}
