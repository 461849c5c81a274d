package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Shivanand-hulikatti/train-reservation/internal/repository"
)

// ErrInsufficientSeats is wrapped by the Conflict error TryDecrement returns
// when the train has fewer seats left than requested.
var ErrInsufficientSeats = errors.New("insufficient seats")

// InventoryGuard is the only code path that changes a train's available seat
// count. It never reads and then writes; every change is a single conditional
// operation executed by the store.
type InventoryGuard struct {
	trains  TrainStore
	timeout time.Duration

	attempts int
	backoff  time.Duration
}

// NewInventoryGuard constructs an InventoryGuard over trains.
func NewInventoryGuard(trains TrainStore, opts Options) *InventoryGuard {
	opts = opts.withDefaults()
	return &InventoryGuard{
		trains:   trains,
		timeout:  opts.Timeout,
		attempts: opts.RetryAttempts,
		backoff:  opts.RetryBackoff,
	}
}

// TryDecrement takes n seats from the train if at least n remain and returns
// the count before the decrement. When too few seats remain it returns a
// Conflict error wrapping ErrInsufficientSeats and changes nothing.
func (g *InventoryGuard) TryDecrement(ctx context.Context, trainID string, n int) (int, error) {
	if n < 1 {
		return 0, validationError("seat count must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ok, prev, err := g.trains.ConditionalDecrementSeats(ctx, trainID, n)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, notFoundError("train")
		}
		return 0, storageError("decrement seats", err)
	}
	if !ok {
		return 0, &Error{Kind: KindConflict, Msg: "insufficient seats", Err: ErrInsufficientSeats}
	}
	return prev, nil
}

// Increment gives n seats back to the train.
func (g *InventoryGuard) Increment(ctx context.Context, trainID string, n int) error {
	if n < 1 {
		return validationError("seat count must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.trains.IncrementSeats(ctx, trainID, n); err != nil {
		return creditFailure("train", "increment seats", err)
	}
	return nil
}

// ReleaseTicket cancels an active ticket and credits its seat in one store
// operation, retrying storage failures with linear backoff. Both writes land
// together or not at all, so a failed call leaves the ticket active and a
// retried call never credits twice. changed is false when the ticket was
// already cancelled.
func (g *InventoryGuard) ReleaseTicket(ctx context.Context, ticketID string) (bool, error) {
	var changed bool
	attempt := 0
	err := retry(g.attempts, g.backoff, func() error {
		attempt++
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		ok, err := g.trains.CancelTicket(cctx, ticketID)
		if err != nil {
			err = creditFailure("ticket", "cancel ticket", err)
			if KindOf(err) == KindStorage {
				log.Printf("release ticket %s: attempt %d/%d: %v", ticketID, attempt, g.attempts, err)
			}
			return err
		}
		changed = ok
		return nil
	})
	return changed, err
}

func creditFailure(resource, op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFoundError(resource)
	case errors.Is(err, repository.ErrCapacityExceeded):
		return &Error{Kind: KindConflict, Msg: "seat count would exceed capacity", Err: err}
	default:
		return storageError(op, err)
	}
}

// Restore is Increment for seat credits that must not be lost: it runs
// detached from ctx's cancellation and retries storage failures with linear
// backoff. Only the final failure is returned.
func (g *InventoryGuard) Restore(ctx context.Context, trainID string, n int) error {
	ctx = context.WithoutCancel(ctx)

	attempt := 0
	return retry(g.attempts, g.backoff, func() error {
		attempt++
		err := g.Increment(ctx, trainID, n)
		if err != nil {
			log.Printf("restore %d seat(s) on train %s: attempt %d/%d: %v", n, trainID, attempt, g.attempts, err)
		}
		return err
	})
}

// retry calls fn until it succeeds, fails with a non-storage error, or has
// been called attempts times. The wait grows linearly with each attempt.
func retry(attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil || KindOf(err) != KindStorage {
			return err
		}
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * backoff)
		}
	}
	return err
}
