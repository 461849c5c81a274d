package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/train-reservation/internal/model"
	"github.com/google/uuid"
)

// MemoryTrainRepository keeps trains in process memory. Every mutation holds
// the mutex for the whole check-and-write, which gives it the same atomicity
// as the conditional UPDATE in TrainRepository. It only coordinates callers
// within one process.
//
// Lock order is always trains then tickets.
type MemoryTrainRepository struct {
	mu     sync.Mutex
	trains map[string]model.Train

	// tickets, when set, makes Delete refuse trains that still have tickets
	// and lets CancelTicket update both stores under one lock.
	tickets *MemoryTicketRepository
}

// NewMemoryTrainRepository constructs an empty MemoryTrainRepository.
func NewMemoryTrainRepository(tickets *MemoryTicketRepository) *MemoryTrainRepository {
	return &MemoryTrainRepository{
		trains:  make(map[string]model.Train),
		tickets: tickets,
	}
}

// Create stores a new train with every seat available.
func (r *MemoryTrainRepository) Create(_ context.Context, req model.CreateTrainRequest) (*model.Train, error) {
	train := model.Train{
		ID:             uuid.New().String(),
		Name:           req.Name,
		StartPoint:     req.StartPoint,
		EndPoint:       req.EndPoint,
		StartTime:      req.StartTime.UTC(),
		EndTime:        req.EndTime.UTC(),
		Price:          req.Price,
		Description:    req.Description,
		TotalSeats:     req.Seats,
		SeatsAvailable: req.Seats,
		CreatedAt:      time.Now().UTC(),
	}

	r.mu.Lock()
	r.trains[train.ID] = train
	r.mu.Unlock()
	return &train, nil
}

// Update rewrites the descriptive fields of a train. Seat counters are untouched.
func (r *MemoryTrainRepository) Update(_ context.Context, id string, req model.UpdateTrainRequest) (*model.Train, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trains[id]
	if !ok {
		return nil, ErrNotFound
	}
	t.Name = req.Name
	t.StartPoint = req.StartPoint
	t.EndPoint = req.EndPoint
	t.StartTime = req.StartTime.UTC()
	t.EndTime = req.EndTime.UTC()
	t.Price = req.Price
	t.Description = req.Description
	r.trains[id] = t
	return &t, nil
}

// Delete removes a train that no ticket references.
func (r *MemoryTrainRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.trains[id]; !ok {
		return ErrNotFound
	}
	if r.tickets != nil && r.tickets.hasTrain(id) {
		return ErrTrainInUse
	}
	delete(r.trains, id)
	return nil
}

// List returns all trains ordered by departure.
func (r *MemoryTrainRepository) List(_ context.Context) ([]model.Train, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	trains := make([]model.Train, 0, len(r.trains))
	for _, t := range r.trains {
		trains = append(trains, t)
	}
	sort.Slice(trains, func(i, j int) bool {
		return trains[i].StartTime.Before(trains[j].StartTime)
	})
	return trains, nil
}

// GetByID returns a single train or ErrNotFound.
func (r *MemoryTrainRepository) GetByID(_ context.Context, id string) (*model.Train, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trains[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// ConditionalDecrementSeats takes n seats if at least n remain and returns
// the count before the decrement. Otherwise it returns ok=false with the
// current count.
func (r *MemoryTrainRepository) ConditionalDecrementSeats(_ context.Context, id string, n int) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trains[id]
	if !ok {
		return false, 0, ErrNotFound
	}
	if t.SeatsAvailable < n {
		return false, t.SeatsAvailable, nil
	}
	prev := t.SeatsAvailable
	t.SeatsAvailable -= n
	r.trains[id] = t
	return true, prev, nil
}

// IncrementSeats gives n seats back to the train. Like the seats_within_capacity
// CHECK in Postgres, it refuses to leave more seats available than exist.
func (r *MemoryTrainRepository) IncrementSeats(_ context.Context, id string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trains[id]
	if !ok {
		return ErrNotFound
	}
	if t.SeatsAvailable+n > t.TotalSeats {
		return ErrCapacityExceeded
	}
	t.SeatsAvailable += n
	r.trains[id] = t
	return nil
}

// CancelTicket marks an active ticket cancelled and credits its seat under
// both locks, so no caller ever sees one change without the other. It reports
// changed=false when the ticket was already cancelled.
func (r *MemoryTrainRepository) CancelTicket(_ context.Context, ticketID string) (bool, error) {
	if r.tickets == nil {
		return false, ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets.mu.Lock()
	defer r.tickets.mu.Unlock()

	tk, ok := r.tickets.tickets[ticketID]
	if !ok {
		return false, ErrNotFound
	}
	if !tk.IsActive() {
		return false, nil
	}
	t, ok := r.trains[tk.TrainID]
	if !ok {
		return false, ErrNotFound
	}
	if t.SeatsAvailable >= t.TotalSeats {
		return false, ErrCapacityExceeded
	}

	tk.Status = model.TicketCancelled
	t.SeatsAvailable++
	r.tickets.tickets[ticketID] = tk
	r.trains[t.ID] = t
	return true, nil
}

// MemoryTicketRepository keeps tickets in process memory and enforces the
// same one-active-ticket-per-seat rule as the tickets table.
type MemoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]model.Ticket
}

// NewMemoryTicketRepository constructs an empty MemoryTicketRepository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]model.Ticket)}
}

// Insert stores the ticket, assigning an id when it has none. A second active
// ticket for the same train seat fails with ErrSeatTaken and gets no id.
func (r *MemoryTicketRepository) Insert(_ context.Context, t *model.Ticket) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.Status == model.TicketActive {
		for _, other := range r.tickets {
			if other.TrainID == t.TrainID && other.SeatNumber == t.SeatNumber && other.IsActive() {
				return "", ErrSeatTaken
			}
		}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	r.tickets[t.ID] = *t
	return t.ID, nil
}

// Delete removes a ticket.
func (r *MemoryTicketRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(r.tickets, id)
	return nil
}

// GetByID returns a single ticket or ErrNotFound.
func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// List returns every ticket, oldest first.
func (r *MemoryTicketRepository) List(_ context.Context) ([]model.Ticket, error) {
	return r.filter(func(model.Ticket) bool { return true }), nil
}

// ListByTrain returns all tickets for a train.
func (r *MemoryTicketRepository) ListByTrain(_ context.Context, trainID string) ([]model.Ticket, error) {
	return r.filter(func(t model.Ticket) bool { return t.TrainID == trainID }), nil
}

// ListByUser returns all tickets a user has held, including cancelled ones.
func (r *MemoryTicketRepository) ListByUser(_ context.Context, userID string) ([]model.Ticket, error) {
	return r.filter(func(t model.Ticket) bool { return t.UserID == userID }), nil
}

// filter returns matching tickets in the same order as the SQL listings.
func (r *MemoryTicketRepository) filter(keep func(model.Ticket) bool) []model.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Ticket
	for _, t := range r.tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SeatNumber > out[j].SeatNumber
	})
	return out
}

// hasTrain must be called with the train repository's lock held.
func (r *MemoryTicketRepository) hasTrain(trainID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tickets {
		if t.TrainID == trainID {
			return true
		}
	}
	return false
}
