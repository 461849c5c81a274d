package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/train-reservation/internal/model"
	"github.com/Shivanand-hulikatti/train-reservation/internal/service"
	"github.com/go-chi/chi/v5"
)

// TicketHandler serves reservations, cancellations and ticket lookups.
// Every route expects Authenticate to have run.
type TicketHandler struct {
	trains  *service.TrainService
	reserve *service.ReservationEngine
	cancel  *service.CancellationEngine
}

// NewTicketHandler constructs a TicketHandler.
func NewTicketHandler(
	trains *service.TrainService,
	reserve *service.ReservationEngine,
	cancel *service.CancellationEngine,
) *TicketHandler {
	return &TicketHandler{trains: trains, reserve: reserve, cancel: cancel}
}

// Reserve handles POST /trains/{id}/reservations
// Books seats for the authenticated user.
func (h *TicketHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())

	var req model.ReserveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.reserve.Reserve(r.Context(), chi.URLParam(r, "id"), caller.UserID, req.Seats)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Cancel handles DELETE /tickets/{id}
// Users cancel their own tickets; admins may cancel any ticket.
func (h *TicketHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.cancel.Cancel(r.Context(), chi.URLParam(r, "id"), ownerFilter(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

// GetTicket handles GET /tickets/{id}
func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.trains.GetTicket(r.Context(), chi.URLParam(r, "id"), ownerFilter(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

// ListMyTickets handles GET /me/tickets
func (h *TicketHandler) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())

	tickets, err := h.trains.ListUserTickets(r.Context(), caller.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeTickets(w, tickets)
}

// ListTickets handles GET /tickets (admin only)
func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.trains.ListTickets(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeTickets(w, tickets)
}

// ListUserTickets handles GET /users/{id}/tickets (admin only)
func (h *TicketHandler) ListUserTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.trains.ListUserTickets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeTickets(w, tickets)
}

// ownerFilter returns the user id tickets must belong to, or "" for admins.
func ownerFilter(r *http.Request) string {
	caller, _ := IdentityFrom(r.Context())
	if caller.IsAdmin() {
		return ""
	}
	return caller.UserID
}
