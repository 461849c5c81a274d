// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Shivanand-hulikatti/train-reservation/internal/model"
	"github.com/Shivanand-hulikatti/train-reservation/internal/service"
	"github.com/go-chi/chi/v5"
)

// TrainHandler serves the train catalog.
type TrainHandler struct {
	svc *service.TrainService
}

// NewTrainHandler constructs a TrainHandler.
func NewTrainHandler(svc *service.TrainService) *TrainHandler {
	return &TrainHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// writeServiceError maps a service error kind onto a stable status code.
func writeServiceError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)
	status := http.StatusServiceUnavailable
	msg := "temporary storage failure, retry the request"
	switch kind {
	case service.KindValidation:
		status, msg = http.StatusBadRequest, err.Error()
	case service.KindNotFound:
		status, msg = http.StatusNotFound, err.Error()
	case service.KindConflict:
		status, msg = http.StatusConflict, err.Error()
	case service.KindPolicy:
		status, msg = http.StatusUnprocessableEntity, err.Error()
	default:
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, model.ErrorResponse{Error: msg, Kind: kind.String()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateTrain handles POST /trains
func (h *TrainHandler) CreateTrain(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTrainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	train, err := h.svc.CreateTrain(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, train)
}

// UpdateTrain handles PUT /trains/{id}
// Seat counts cannot be changed here.
func (h *TrainHandler) UpdateTrain(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateTrainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	train, err := h.svc.UpdateTrain(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, train)
}

// DeleteTrain handles DELETE /trains/{id}
func (h *TrainHandler) DeleteTrain(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTrain(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTrains handles GET /trains
func (h *TrainHandler) ListTrains(w http.ResponseWriter, r *http.Request) {
	trains, err := h.svc.ListTrains(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if trains == nil {
		trains = []model.Train{}
	}

	writeJSON(w, http.StatusOK, trains)
}

// GetTrain handles GET /trains/{id}
func (h *TrainHandler) GetTrain(w http.ResponseWriter, r *http.Request) {
	train, err := h.svc.GetTrain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, train)
}

// ListTrainTickets handles GET /trains/{id}/tickets
func (h *TrainHandler) ListTrainTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.svc.ListTrainTickets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeTickets(w, tickets)
}

func writeTickets(w http.ResponseWriter, tickets []model.Ticket) {
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
