package service

import (
	"context"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/train-reservation/internal/model"
)

// CancellationWindow is the minimum time before departure at which a ticket
// may still be cancelled.
const CancellationWindow = 5 * 24 * time.Hour

// CancellationEngine cancels tickets and returns their seats to the train.
type CancellationEngine struct {
	trains  TrainStore
	tickets TicketStore
	guard   *InventoryGuard
	opts    Options
}

// NewCancellationEngine constructs a CancellationEngine.
func NewCancellationEngine(trains TrainStore, tickets TicketStore, guard *InventoryGuard, opts Options) *CancellationEngine {
	return &CancellationEngine{
		trains:  trains,
		tickets: tickets,
		guard:   guard,
		opts:    opts.withDefaults(),
	}
}

// Cancel cancels ticketID on behalf of userID. An empty userID skips the
// ownership check; a ticket owned by someone else is reported as not found.
//
// Cancelling an already cancelled ticket succeeds without crediting the seat a
// second time. The status change and the seat credit are one store operation,
// retried on storage failure; if every attempt fails the ticket stays active,
// so the caller can simply cancel again.
func (e *CancellationEngine) Cancel(ctx context.Context, ticketID, userID string) (*model.Ticket, error) {
	ticket, err := e.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if userID = strings.TrimSpace(userID); userID != "" && ticket.UserID != userID {
		return nil, notFoundError("ticket")
	}
	if !ticket.IsActive() {
		return ticket, nil
	}

	train, err := e.getTrain(ctx, ticket.TrainID)
	if err != nil {
		return nil, err
	}
	if train.StartTime.Sub(e.opts.Now()) < CancellationWindow {
		return nil, policyError("cancellation window closed")
	}

	// changed is false when a concurrent Cancel got there first; that call
	// credited the seat.
	if _, err := e.guard.ReleaseTicket(ctx, ticket.ID); err != nil {
		return nil, err
	}
	ticket.Status = model.TicketCancelled
	return ticket, nil
}

func (e *CancellationEngine) getTicket(ctx context.Context, id string) (*model.Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	t, err := e.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("ticket", err)
	}
	return t, nil
}

func (e *CancellationEngine) getTrain(ctx context.Context, id string) (*model.Train, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	t, err := e.trains.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("train", err)
	}
	return t, nil
}
