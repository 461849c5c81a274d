// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
//
// Seat counts change only through InventoryGuard; ReservationEngine and
// CancellationEngine are its only callers.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/train-reservation/internal/model"
	"github.com/Shivanand-hulikatti/train-reservation/internal/repository"
)

// MaxTrainSeats bounds the capacity of a single train.
const MaxTrainSeats = 10_000

// TrainService orchestrates catalog maintenance and ticket listings.
type TrainService struct {
	trains  TrainCatalog
	tickets TicketStore
	timeout time.Duration
}

// NewTrainService constructs a TrainService with its dependencies.
func NewTrainService(trains TrainCatalog, tickets TicketStore, opts Options) *TrainService {
	return &TrainService{
		trains:  trains,
		tickets: tickets,
		timeout: opts.withDefaults().Timeout,
	}
}

// CreateTrain validates the request and delegates to the repository.
func (s *TrainService) CreateTrain(ctx context.Context, req model.CreateTrainRequest) (*model.Train, error) {
	if err := validateSchedule(&req.Name, req.StartTime, req.EndTime, req.Price); err != nil {
		return nil, err
	}
	if req.Seats <= 0 {
		return nil, validationError("seats must be a positive integer")
	}
	if req.Seats > MaxTrainSeats {
		return nil, validationError("seats cannot exceed 10,000")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	train, err := s.trains.Create(ctx, req)
	if err != nil {
		return nil, storageError("create train", err)
	}
	return train, nil
}

// UpdateTrain rewrites a train's descriptive fields.
func (s *TrainService) UpdateTrain(ctx context.Context, id string, req model.UpdateTrainRequest) (*model.Train, error) {
	if err := validateSchedule(&req.Name, req.StartTime, req.EndTime, req.Price); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	train, err := s.trains.Update(ctx, id, req)
	if err != nil {
		return nil, lookupError("train", err)
	}
	return train, nil
}

// DeleteTrain removes a train nobody has ever booked.
func (s *TrainService) DeleteTrain(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.trains.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrTrainInUse):
		return conflictError("train seats are already booked")
	default:
		return lookupError("train", err)
	}
}

// ListTrains returns all trains.
func (s *TrainService) ListTrains(ctx context.Context) ([]model.Train, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	trains, err := s.trains.List(ctx)
	if err != nil {
		return nil, storageError("list trains", err)
	}
	return trains, nil
}

// GetTrain returns a single train by ID.
func (s *TrainService) GetTrain(ctx context.Context, id string) (*model.Train, error) {
	if id == "" {
		return nil, validationError("train id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	train, err := s.trains.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("train", err)
	}
	return train, nil
}

// GetTicket returns a ticket. A non-empty userID restricts the lookup to that
// user's tickets.
func (s *TrainService) GetTicket(ctx context.Context, id, userID string) (*model.Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("ticket", err)
	}
	if userID != "" && t.UserID != userID {
		return nil, notFoundError("ticket")
	}
	return t, nil
}

// ListTickets returns every ticket on every train.
func (s *TrainService) ListTickets(ctx context.Context) ([]model.Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tickets, err := s.tickets.List(ctx)
	if err != nil {
		return nil, storageError("list tickets", err)
	}
	return tickets, nil
}

// ListTrainTickets returns all tickets for a train.
func (s *TrainService) ListTrainTickets(ctx context.Context, trainID string) ([]model.Ticket, error) {
	if _, err := s.GetTrain(ctx, trainID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tickets, err := s.tickets.ListByTrain(ctx, trainID)
	if err != nil {
		return nil, storageError("list tickets", err)
	}
	return tickets, nil
}

// ListUserTickets returns every ticket a user has held.
func (s *TrainService) ListUserTickets(ctx context.Context, userID string) ([]model.Ticket, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tickets, err := s.tickets.ListByUser(ctx, userID)
	if err != nil {
		return nil, storageError("list tickets", err)
	}
	return tickets, nil
}

func validateSchedule(name *string, start, end time.Time, price float64) error {
	*name = strings.TrimSpace(*name)
	if *name == "" {
		return validationError("train name is required")
	}
	if start.IsZero() || end.IsZero() {
		return validationError("start_time and end_time are required")
	}
	if !end.After(start) {
		return validationError("end_time must be after start_time")
	}
	if price < 0 {
		return validationError("price cannot be negative")
	}
	return nil
}
