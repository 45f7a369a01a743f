package api

import (
	"encoding/json"
	"net/http"

	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
)

// AthleteHandler serves athlete CRUD.
type AthleteHandler struct {
	deps AthleteManager
}

// NewAthleteHandler creates a new athlete handler.
func NewAthleteHandler(deps AthleteManager) *AthleteHandler {
	return &AthleteHandler{deps: deps}
}

type okResponse struct {
	OK bool `json:"ok"`
}

// HandleList handles GET /api/v1/athlete.
func (h *AthleteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.ListAthletes(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.list_athletes", err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /api/v1/athlete.
func (h *AthleteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_athlete"
	var a model.Athlete
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := h.deps.CreateAthlete(r.Context(), a)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// HandleGet handles GET /api/v1/athlete/{id}.
func (h *AthleteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_athlete"
	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.GetAthlete(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleUpdate handles PUT /api/v1/athlete/{id} with a partial body.
func (h *AthleteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_athlete"
	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	var u model.AthleteUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := h.deps.UpdateAthlete(r.Context(), id, u)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /api/v1/athlete/{id}.
func (h *AthleteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_athlete"
	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if err := h.deps.DeleteAthlete(r.Context(), id); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
