package api

import (
	"net/http"
)

// ShotsHandler serves the statistics queries.
type ShotsHandler struct {
	deps   ShotReader
	limits Limits
}

// NewShotsHandler creates a new shots handler.
func NewShotsHandler(deps ShotReader, limits Limits) *ShotsHandler {
	return &ShotsHandler{deps: deps, limits: limits}
}

// HandleRecent handles GET /api/v1/shots/recent-scores.
func (h *ShotsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	const op = "api.recent_scores"
	athleteID, err := athleteParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	days, err := daysParam(r, h.limits)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.GetRecent(r.Context(), athleteID, days)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleStats handles GET /api/v1/shots/stats.
func (h *ShotsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats"
	athleteID, err := athleteParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	days, err := periodParam(r, h.limits)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.GetStats(r.Context(), athleteID, days)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleByDay handles GET /api/v1/shots/by-day.
func (h *ShotsHandler) HandleByDay(w http.ResponseWriter, r *http.Request) {
	const op = "api.by_day"
	athleteID, err := athleteParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	day, err := dateParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.GetDay(r.Context(), athleteID, day)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleBySet handles GET /api/v1/shots/by-set.
func (h *ShotsHandler) HandleBySet(w http.ResponseWriter, r *http.Request) {
	const op = "api.by_set"
	athleteID, err := athleteParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	day, err := dateParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	index, err := setParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.GetSet(r.Context(), athleteID, day, index)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}
