package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/train-reservation/internal/model"
)

// TrainStore is the part of train persistence the reservation engines need.
// ConditionalDecrementSeats must check and subtract in one atomic step.
type TrainStore interface {
	GetByID(ctx context.Context, id string) (*model.Train, error)
	ConditionalDecrementSeats(ctx context.Context, id string, n int) (ok bool, prev int, err error)
	IncrementSeats(ctx context.Context, id string, n int) error
	// CancelTicket sets an active ticket to cancelled and credits its seat to
	// the train as one atomic step; changed is false if it was already cancelled.
	CancelTicket(ctx context.Context, ticketID string) (changed bool, err error)
}

// TrainCatalog adds catalog maintenance on top of TrainStore.
type TrainCatalog interface {
	TrainStore
	Create(ctx context.Context, req model.CreateTrainRequest) (*model.Train, error)
	Update(ctx context.Context, id string, req model.UpdateTrainRequest) (*model.Train, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Train, error)
}

// TicketStore persists tickets. Status changes go through
// TrainStore.CancelTicket.
type TicketStore interface {
	Insert(ctx context.Context, t *model.Ticket) (string, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.Ticket, error)
	List(ctx context.Context) ([]model.Ticket, error)
	ListByTrain(ctx context.Context, trainID string) ([]model.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]model.Ticket, error)
}

// Options tunes how the engines call storage.
type Options struct {
	// Timeout bounds every individual storage call.
	Timeout time.Duration
	// RetryAttempts and RetryBackoff govern seat credits that must not be lost.
	RetryAttempts int
	RetryBackoff  time.Duration
	// Now is the clock used for booking and cancellation windows.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.RetryAttempts < 1 {
		o.RetryAttempts = 5
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 100 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
