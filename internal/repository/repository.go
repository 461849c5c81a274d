// Package repository implements all database queries for the train reservation system.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/train-reservation/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrSeatTaken is returned when an active ticket already holds the seat number.
var ErrSeatTaken = errors.New("seat number already held by an active ticket")

// ErrTrainInUse is returned when deleting a train that tickets still reference.
var ErrTrainInUse = errors.New("train has tickets")

// ErrCapacityExceeded is returned when a credit would leave more seats
// available than the train has.
var ErrCapacityExceeded = errors.New("seats available would exceed capacity")

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

// creditError maps the seats_within_capacity CHECK onto ErrCapacityExceeded.
func creditError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
		return ErrCapacityExceeded
	}
	return fmt.Errorf("%s: %w", op, err)
}

// validID rejects ids that could never match a UUID primary key, so callers
// get ErrNotFound instead of a driver cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

const trainColumns = `id, name, start_point, end_point, start_time, end_time,
	price, description, total_seats, seats_available, created_at`

func scanTrain(row pgx.Row) (*model.Train, error) {
	var t model.Train
	err := row.Scan(&t.ID, &t.Name, &t.StartPoint, &t.EndPoint, &t.StartTime, &t.EndTime,
		&t.Price, &t.Description, &t.TotalSeats, &t.SeatsAvailable, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TrainRepository handles persistence for trains.
type TrainRepository struct {
	db *pgxpool.Pool
}

// NewTrainRepository constructs a TrainRepository.
func NewTrainRepository(db *pgxpool.Pool) *TrainRepository {
	return &TrainRepository{db: db}
}

// Create inserts a new train with every seat available.
func (r *TrainRepository) Create(ctx context.Context, req model.CreateTrainRequest) (*model.Train, error) {
	train := &model.Train{
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

	_, err := r.db.Exec(ctx,
		`INSERT INTO trains (`+trainColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		train.ID, train.Name, train.StartPoint, train.EndPoint, train.StartTime, train.EndTime,
		train.Price, train.Description, train.TotalSeats, train.SeatsAvailable, train.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert train: %w", err)
	}
	return train, nil
}

// Update rewrites the descriptive fields of a train. Seat counters are untouched.
func (r *TrainRepository) Update(ctx context.Context, id string, req model.UpdateTrainRequest) (*model.Train, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	train, err := scanTrain(r.db.QueryRow(ctx,
		`UPDATE trains
		 SET name = $2, start_point = $3, end_point = $4, start_time = $5,
		     end_time = $6, price = $7, description = $8
		 WHERE id = $1
		 RETURNING `+trainColumns,
		id, req.Name, req.StartPoint, req.EndPoint, req.StartTime.UTC(), req.EndTime.UTC(),
		req.Price, req.Description,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update train: %w", err)
	}
	return train, nil
}

// Delete removes a train that no ticket references.
func (r *TrainRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx,
		`DELETE FROM trains t
		 WHERE t.id = $1
		   AND NOT EXISTS (SELECT 1 FROM tickets k WHERE k.train_id = t.id)`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete train: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// Nothing deleted: either the train is gone or it is referenced.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrTrainInUse
}

// List returns all trains ordered by departure.
func (r *TrainRepository) List(ctx context.Context) ([]model.Train, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+trainColumns+`
		 FROM trains
		 ORDER BY start_time ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list trains: %w", err)
	}
	defer rows.Close()

	var trains []model.Train
	for rows.Next() {
		t, err := scanTrain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan train: %w", err)
		}
		trains = append(trains, *t)
	}
	return trains, rows.Err()
}

// GetByID returns a single train or ErrNotFound.
func (r *TrainRepository) GetByID(ctx context.Context, id string) (*model.Train, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	t, err := scanTrain(r.db.QueryRow(ctx,
		`SELECT `+trainColumns+` FROM trains WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get train: %w", err)
	}
	return t, nil
}

// ConditionalDecrementSeats takes n seats from the train in one statement.
//
// The check and the write happen inside a single UPDATE, so Postgres row
// locking serialises concurrent callers: a second transaction blocked on the
// row re-evaluates the WHERE clause against the committed value and simply
// matches zero rows when too few seats remain.
//
// On success it returns the seat count before the decrement. When fewer than
// n seats remain it returns ok=false with the current count and no error.
func (r *TrainRepository) ConditionalDecrementSeats(ctx context.Context, id string, n int) (bool, int, error) {
	if !validID(id) {
		return false, 0, ErrNotFound
	}
	var prev int
	err := r.db.QueryRow(ctx,
		`UPDATE trains
		 SET seats_available = seats_available - $2
		 WHERE id = $1 AND seats_available >= $2
		 RETURNING seats_available + $2`,
		id, n,
	).Scan(&prev)
	if err == nil {
		return true, prev, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, 0, fmt.Errorf("decrement seats: %w", err)
	}

	// No row matched: report the current count, or ErrNotFound.
	var current int
	err = r.db.QueryRow(ctx, `SELECT seats_available FROM trains WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, ErrNotFound
		}
		return false, 0, fmt.Errorf("read seats: %w", err)
	}
	return false, current, nil
}

// IncrementSeats gives n seats back to the train. A credit that would push
// seats_available past total_seats fails with ErrCapacityExceeded.
func (r *TrainRepository) IncrementSeats(ctx context.Context, id string, n int) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE trains SET seats_available = seats_available + $2 WHERE id = $1`,
		id, n,
	)
	if err != nil {
		return creditError("increment seats", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelTicket marks an active ticket cancelled and gives its seat back to the
// train in one transaction: either both rows change or neither does. It
// reports changed=false, with no error, when the ticket was already cancelled.
//
// A concurrent caller blocks on the ticket row and then matches zero rows, so
// only one transaction ever credits the seat.
func (r *TrainRepository) CancelTicket(ctx context.Context, ticketID string) (bool, error) {
	if !validID(ticketID) {
		return false, ErrNotFound
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	// ── Step 1: Flip the ticket, learning its train. ──────────────────────
	var trainID string
	err = tx.QueryRow(ctx,
		`UPDATE tickets SET status = 'cancelled'
		 WHERE id = $1 AND status = 'active'
		 RETURNING train_id`,
		ticketID,
	).Scan(&trainID)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, ticketID).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("read ticket: %w", err)
		}
		if !exists {
			return false, ErrNotFound
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cancel ticket: %w", err)
	}

	// ── Step 2: Credit the seat in the same transaction. ──────────────────
	tag, err := tx.Exec(ctx,
		`UPDATE trains SET seats_available = seats_available + 1 WHERE id = $1`,
		trainID,
	)
	if err != nil {
		return false, creditError("credit seat", err)
	}
	if tag.RowsAffected() == 0 {
		return false, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}

const ticketColumns = `id, user_id, train_id, seat_number, seats_in_booking, status, created_at`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var t model.Ticket
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &t.TrainID, &t.SeatNumber, &t.SeatsInBooking, &status, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = model.TicketStatus(status)
	return &t, nil
}

// TicketRepository handles persistence for tickets.
type TicketRepository struct {
	db *pgxpool.Pool
}

// NewTicketRepository constructs a TicketRepository.
func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db}
}

// Insert stores the ticket, assigning an id when it has none.
// A second active ticket for the same train seat fails with ErrSeatTaken.
func (r *TicketRepository) Insert(ctx context.Context, t *model.Ticket) (string, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO tickets (`+ticketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.TrainID, t.SeatNumber, t.SeatsInBooking, string(t.Status), t.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", ErrSeatTaken
		}
		return "", fmt.Errorf("insert ticket: %w", err)
	}
	return t.ID, nil
}

// Delete removes a ticket. Only used to undo a failed reservation.
func (r *TicketRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns a single ticket or ErrNotFound.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	t, err := scanTicket(r.db.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// ListByTrain returns all tickets for a train, newest seat first.
func (r *TicketRepository) ListByTrain(ctx context.Context, trainID string) ([]model.Ticket, error) {
	if !validID(trainID) {
		return nil, nil
	}
	return r.list(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE train_id = $1
		 ORDER BY created_at ASC, seat_number DESC`,
		trainID,
	)
}

// ListByUser returns all tickets a user has ever held, including cancelled ones.
func (r *TicketRepository) ListByUser(ctx context.Context, userID string) ([]model.Ticket, error) {
	return r.list(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE user_id = $1
		 ORDER BY created_at ASC, seat_number DESC`,
		userID,
	)
}

// List returns every ticket in the system, oldest first.
func (r *TicketRepository) List(ctx context.Context) ([]model.Ticket, error) {
	return r.list(ctx,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 ORDER BY created_at ASC, seat_number DESC`,
	)
}

func (r *TicketRepository) list(ctx context.Context, query string, args ...any) ([]model.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}
