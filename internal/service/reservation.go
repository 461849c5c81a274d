package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/train-reservation/internal/model"
	"github.com/Shivanand-hulikatti/train-reservation/internal/repository"
)

const (
	// MaxSeatsPerReservation caps a single Reserve call.
	MaxSeatsPerReservation = 4
	// BookingWindow is how close to departure a train must be before it
	// accepts reservations.
	BookingWindow = 30 * 24 * time.Hour

	// seatAttempts bounds how often one ticket may lose its seat number to a
	// concurrent request before the reservation gives up.
	seatAttempts = 10
)

// ReservationEngine books seats: it validates the request, takes the seats
// through the InventoryGuard, then writes one ticket per seat. If any ticket
// fails to persist, the whole request is undone.
type ReservationEngine struct {
	trains  TrainStore
	tickets TicketStore
	guard   *InventoryGuard
	opts    Options
}

// NewReservationEngine constructs a ReservationEngine.
func NewReservationEngine(trains TrainStore, tickets TicketStore, guard *InventoryGuard, opts Options) *ReservationEngine {
	return &ReservationEngine{
		trains:  trains,
		tickets: tickets,
		guard:   guard,
		opts:    opts.withDefaults(),
	}
}

// Reserve books seatCount seats on trainID for userID.
//
// Checks run in order and stop at the first failure: seat count, train
// existence, booking window, then the atomic seat decrement. Every returned
// error is a *Error.
func (e *ReservationEngine) Reserve(ctx context.Context, trainID, userID string, seatCount int) (*model.Reservation, error) {
	if seatCount < 1 || seatCount > MaxSeatsPerReservation {
		return nil, validationError("max 4 seats per request")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user id is required")
	}

	train, err := e.getTrain(ctx, trainID)
	if err != nil {
		return nil, err
	}

	now := e.opts.Now()
	untilDeparture := train.StartTime.Sub(now)
	if untilDeparture >= BookingWindow {
		return nil, policyError("too early to make a reservation")
	}
	if untilDeparture <= 0 {
		return nil, policyError("train has already departed")
	}

	if train.IsFull() {
		return nil, &Error{Kind: KindConflict, Msg: "train is sold out", Err: ErrInsufficientSeats}
	}

	prev, err := e.guard.TryDecrement(ctx, trainID, seatCount)
	if err != nil {
		return nil, err
	}

	// From here on the seats belong to this request; any failure must hand
	// them back.
	b := &batch{
		engine:  e,
		train:   train,
		userID:  userID,
		count:   seatCount,
		created: now.UTC(),
		chosen:  make(map[int]bool, seatCount),
	}
	for i := 0; i < seatCount; i++ {
		if err := b.insert(ctx, prev-i); err != nil {
			e.compensate(ctx, trainID, seatCount, append(b.tickets, b.unsure...))
			return nil, err
		}
	}

	return &model.Reservation{
		TrainID: trainID,
		UserID:  userID,
		Tickets: b.tickets,
	}, nil
}

func (e *ReservationEngine) getTrain(ctx context.Context, id string) (*model.Train, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	train, err := e.trains.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("train", err)
	}
	return train, nil
}

// batch accumulates the tickets written for one Reserve call.
type batch struct {
	engine  *ReservationEngine
	train   *model.Train
	userID  string
	count   int
	created time.Time

	tickets []model.Ticket
	unsure  []model.Ticket
	chosen  map[int]bool
}

// insert writes one ticket, preferring seat as its number. If an active
// ticket already holds that number (capacity returned by a cancellation is
// handed out again), the highest free number on the train is used instead.
func (b *batch) insert(ctx context.Context, seat int) error {
	e := b.engine
	for attempt := 1; attempt <= seatAttempts; attempt++ {
		if b.chosen[seat] {
			var err error
			if seat, err = b.freeSeat(ctx); err != nil {
				return err
			}
		}

		ticket := model.Ticket{
			UserID:         b.userID,
			TrainID:        b.train.ID,
			SeatNumber:     seat,
			SeatsInBooking: b.count,
			Status:         model.TicketActive,
			CreatedAt:      b.created,
		}
		err := e.insertTicket(ctx, &ticket)
		if err == nil {
			b.chosen[seat] = true
			b.tickets = append(b.tickets, ticket)
			return nil
		}
		if !errors.Is(err, repository.ErrSeatTaken) {
			// The write may have landed before the failure was reported.
			if ticket.ID != "" {
				b.unsure = append(b.unsure, ticket)
			}
			return storageError("insert ticket", err)
		}

		b.chosen[seat] = true // held elsewhere; never try it again in this batch
		if seat, err = b.freeSeat(ctx); err != nil {
			return err
		}
	}
	return storageError("insert ticket", errors.New("no free seat number after retries"))
}

func (e *ReservationEngine) insertTicket(ctx context.Context, t *model.Ticket) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	_, err := e.tickets.Insert(ctx, t)
	return err
}

// freeSeat returns the highest seat number in [1, TotalSeats] not held by an
// active ticket and not already tried by this batch.
func (b *batch) freeSeat(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, b.engine.opts.Timeout)
	defer cancel()

	tickets, err := b.engine.tickets.ListByTrain(ctx, b.train.ID)
	if err != nil {
		return 0, storageError("list tickets", err)
	}
	held := make(map[int]bool, len(tickets))
	for _, t := range tickets {
		if t.IsActive() {
			held[t.SeatNumber] = true
		}
	}
	for seat := b.train.TotalSeats; seat >= 1; seat-- {
		if !held[seat] && !b.chosen[seat] {
			return seat, nil
		}
	}
	return 0, storageError("assign seat", errors.New("no free seat number"))
}

// compensate undoes a partially written reservation. It deletes the tickets
// already stored and returns the seats to the train. Seats whose ticket could
// not be deleted stay taken so active tickets never outnumber the capacity.
func (e *ReservationEngine) compensate(ctx context.Context, trainID string, seatCount int, written []model.Ticket) {
	ctx = context.WithoutCancel(ctx)

	stuck := 0
	for _, t := range written {
		err := retry(e.opts.RetryAttempts, e.opts.RetryBackoff, func() error {
			dctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
			defer cancel()
			err := e.tickets.Delete(dctx, t.ID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		})
		if err != nil {
			log.Printf("reservation rollback: delete ticket %s on train %s: %v", t.ID, trainID, err)
			stuck++
		}
	}

	if n := seatCount - stuck; n > 0 {
		if err := e.guard.Restore(ctx, trainID, n); err != nil {
			log.Printf("reservation rollback: restore %d seat(s) on train %s: %v", n, trainID, err)
		}
	}
}
