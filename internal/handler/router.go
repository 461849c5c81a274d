package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the API router. Catalog reads are public; catalog writes
// and cross-user listings need an admin token.
func NewRouter(trains *TrainHandler, tickets *TicketHandler, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger)
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	auth := Authenticate(jwtSecret)

	r.Route("/trains", func(r chi.Router) {
		r.Get("/", trains.ListTrains)
		r.Get("/{id}", trains.GetTrain)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/{id}/reservations", tickets.Reserve)

			r.With(RequireAdmin).Post("/", trains.CreateTrain)
			r.With(RequireAdmin).Put("/{id}", trains.UpdateTrain)
			r.With(RequireAdmin).Delete("/{id}", trains.DeleteTrain)
			r.With(RequireAdmin).Get("/{id}/tickets", trains.ListTrainTickets)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.With(RequireAdmin).Get("/tickets", tickets.ListTickets)
		r.Get("/tickets/{id}", tickets.GetTicket)
		r.Delete("/tickets/{id}", tickets.Cancel)
		r.Get("/me/tickets", tickets.ListMyTickets)
		r.With(RequireAdmin).Get("/users/{id}/tickets", tickets.ListUserTickets)
	})

	return r
}
