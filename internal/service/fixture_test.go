package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/train-reservation/internal/model"
	"github.com/Shivanand-hulikatti/train-reservation/internal/repository"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

var errInjected = errors.New("injected storage failure")

// fixture wires the engines over in-memory repositories with a fixed clock.
type fixture struct {
	trains  *repository.MemoryTrainRepository
	tickets *repository.MemoryTicketRepository

	trainStore  TrainStore
	ticketStore TicketStore

	opts    Options
	guard   *InventoryGuard
	reserve *ReservationEngine
	cancel  *CancellationEngine
	catalog *TrainService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tickets := repository.NewMemoryTicketRepository()
	trains := repository.NewMemoryTrainRepository(tickets)
	return newFixtureWith(t, trains, tickets, trains, tickets)
}

// newFixtureWith lets tests put fault-injecting wrappers in front of the
// memory repositories while still inspecting the underlying state.
func newFixtureWith(t *testing.T, trains *repository.MemoryTrainRepository, tickets *repository.MemoryTicketRepository,
	trainStore TrainStore, ticketStore TicketStore) *fixture {
	t.Helper()
	opts := Options{
		Timeout:       time.Second,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
		Now:           func() time.Time { return testNow },
	}
	guard := NewInventoryGuard(trainStore, opts)
	return &fixture{
		trains:      trains,
		tickets:     tickets,
		trainStore:  trainStore,
		ticketStore: ticketStore,
		opts:        opts,
		guard:       guard,
		reserve:     NewReservationEngine(trainStore, ticketStore, guard, opts),
		cancel:      NewCancellationEngine(trainStore, ticketStore, guard, opts),
		catalog:     NewTrainService(trains, ticketStore, opts),
	}
}

func (f *fixture) addTrain(t *testing.T, seats int, departsIn time.Duration) *model.Train {
	t.Helper()
	start := testNow.Add(departsIn)
	train, err := f.trains.Create(context.Background(), model.CreateTrainRequest{
		Name:       "Intercity",
		StartPoint: "Colombo",
		EndPoint:   "Kandy",
		StartTime:  start,
		EndTime:    start.Add(3 * time.Hour),
		Price:      1200,
		Seats:      seats,
	})
	require.NoError(t, err)
	return train
}

func (f *fixture) seatsAvailable(t *testing.T, trainID string) int {
	t.Helper()
	train, err := f.trains.GetByID(context.Background(), trainID)
	require.NoError(t, err)
	return train.SeatsAvailable
}

func (f *fixture) activeTickets(t *testing.T, trainID string) []model.Ticket {
	t.Helper()
	all, err := f.tickets.ListByTrain(context.Background(), trainID)
	require.NoError(t, err)
	var active []model.Ticket
	for _, tk := range all {
		if tk.IsActive() {
			active = append(active, tk)
		}
	}
	return active
}

// requireConserved checks that available seats plus active tickets equals
// capacity and that no two active tickets share a seat number.
func (f *fixture) requireConserved(t *testing.T, train *model.Train) {
	t.Helper()
	active := f.activeTickets(t, train.ID)
	avail := f.seatsAvailable(t, train.ID)

	require.GreaterOrEqual(t, avail, 0)
	require.Equal(t, train.TotalSeats, avail+len(active), "seats available + active tickets")

	seen := make(map[int]bool, len(active))
	for _, tk := range active {
		require.False(t, seen[tk.SeatNumber], "seat %d held twice", tk.SeatNumber)
		require.GreaterOrEqual(t, tk.SeatNumber, 1)
		require.LessOrEqual(t, tk.SeatNumber, train.TotalSeats)
		seen[tk.SeatNumber] = true
	}
}

func requireKind(t *testing.T, want Kind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, KindOf(err), "error: %v", err)
}

// failingTicketStore fails every Insert after the first okInserts succeed.
// Delete honours context cancellation like a real driver would.
type failingTicketStore struct {
	*repository.MemoryTicketRepository
	okInserts int64
	inserts   atomic.Int64
	onFail    func()
}

func (s *failingTicketStore) Insert(ctx context.Context, t *model.Ticket) (string, error) {
	if s.inserts.Add(1) > s.okInserts {
		if s.onFail != nil {
			s.onFail()
		}
		return "", errInjected
	}
	return s.MemoryTicketRepository.Insert(ctx, t)
}

func (s *failingTicketStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryTicketRepository.Delete(ctx, id)
}

// flakyTrainStore fails the first failIncrements IncrementSeats calls and the
// first failCancels CancelTicket calls.
type flakyTrainStore struct {
	*repository.MemoryTrainRepository
	mu             sync.Mutex
	failIncrements int
	increments     int
	failCancels    int
	cancels        int
}

func (s *flakyTrainStore) CancelTicket(ctx context.Context, ticketID string) (bool, error) {
	s.mu.Lock()
	s.cancels++
	fail := s.cancels <= s.failCancels
	s.mu.Unlock()
	if fail {
		return false, errInjected
	}
	return s.MemoryTrainRepository.CancelTicket(ctx, ticketID)
}

func (s *flakyTrainStore) IncrementSeats(ctx context.Context, id string, n int) error {
	s.mu.Lock()
	s.increments++
	fail := s.increments <= s.failIncrements
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.MemoryTrainRepository.IncrementSeats(ctx, id, n)
}

// blockingTrainStore never answers a decrement before the context expires.
type blockingTrainStore struct {
	*repository.MemoryTrainRepository
}

func (s *blockingTrainStore) ConditionalDecrementSeats(ctx context.Context, _ string, _ int) (bool, int, error) {
	<-ctx.Done()
	return false, 0, ctx.Err()
}
