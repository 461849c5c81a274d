// Package model defines the core domain types for the train reservation system.
package model

import "time"

// Train is a scheduled service whose seats can be reserved.
type Train struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	StartPoint     string    `json:"start_point"`
	EndPoint       string    `json:"end_point"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Price          float64   `json:"price"`
	Description    string    `json:"description"`
	TotalSeats     int       `json:"total_seats"`
	SeatsAvailable int       `json:"seats_available"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsFull returns true when no seats remain.
func (t *Train) IsFull() bool {
	return t.SeatsAvailable <= 0
}

// TicketStatus is the lifecycle state of a ticket.
// The only transition is active → cancelled.
type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketCancelled TicketStatus = "cancelled"
)

// Ticket is one reserved seat on one train.
type Ticket struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	TrainID        string       `json:"train_id"`
	SeatNumber     int          `json:"seat_number"`
	SeatsInBooking int          `json:"seats_in_booking"`
	Status         TicketStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
}

// IsActive reports whether the ticket still holds its seat.
func (t *Ticket) IsActive() bool {
	return t.Status == TicketActive
}

// Reservation is the successful outcome of one Reserve call.
type Reservation struct {
	TrainID string   `json:"train_id"`
	UserID  string   `json:"user_id"`
	Tickets []Ticket `json:"tickets"`
}

// CreateTrainRequest is the payload for adding a train to the catalog.
type CreateTrainRequest struct {
	Name        string    `json:"name"`
	StartPoint  string    `json:"start_point"`
	EndPoint    string    `json:"end_point"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Seats       int       `json:"seats"`
}

// UpdateTrainRequest edits the descriptive fields of a train.
// Seat counts are not editable; they only move through reservations and
// cancellations.
type UpdateTrainRequest struct {
	Name        string    `json:"name"`
	StartPoint  string    `json:"start_point"`
	EndPoint    string    `json:"end_point"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
}

// ReserveRequest is the payload for reserving seats on a train.
type ReserveRequest struct {
	Seats int `json:"seats"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

