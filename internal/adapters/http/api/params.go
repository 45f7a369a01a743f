package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
)

var periodPattern = regexp.MustCompile(`^([0-9]+)days$`)

// athleteParam reads the required athlete_id query parameter.
func athleteParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("athlete_id"))
	if raw == "" {
		return 0, fmt.Errorf("%w: missing athlete_id", ErrBadRequest)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: athlete_id must be a positive integer", ErrBadRequest)
	}
	return id, nil
}

// idParam reads a positive integer path value.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrBadRequest, name)
	}
	return id, nil
}

// windowDays validates a window length against the limits.
func windowDays(raw string, limits Limits) (int, error) {
	if raw == "" {
		return limits.DefaultWindowDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > limits.MaxWindowDays {
		return 0, fmt.Errorf("%w: days must be between 1 and %d", ErrBadRequest, limits.MaxWindowDays)
	}
	return days, nil
}

// daysParam reads the optional days query parameter.
func daysParam(r *http.Request, limits Limits) (int, error) {
	return windowDays(strings.TrimSpace(r.URL.Query().Get("days")), limits)
}

// periodParam reads period=Ndays, falling back to days=N.
func periodParam(r *http.Request, limits Limits) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("period"))
	if raw == "" {
		return daysParam(r, limits)
	}
	m := periodPattern.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return 0, fmt.Errorf("%w: period must look like 10days", ErrBadRequest)
	}
	return windowDays(m[1], limits)
}

// dateParam reads the required date_ (or date) query parameter.
func dateParam(r *http.Request) (model.Date, error) {
	q := r.URL.Query()
	raw := q.Get("date_")
	if raw == "" {
		raw = q.Get("date")
	}
	if strings.TrimSpace(raw) == "" {
		return model.Date{}, fmt.Errorf("%w: missing date_", ErrBadRequest)
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return d, nil
}

// setParam reads the required 1-based set_id query parameter.
func setParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("set_id"))
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: set_id must be a positive integer", ErrBadRequest)
	}
	return n, nil
}
