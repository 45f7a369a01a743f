// Package period answers window queries over an athlete's shot history:
// recent days, trailing-window stats with deltas, single days and single relays.
package period

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/domain/aggregate"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
)

// ErrInvalidWindow is returned when a window of less than one day is requested.
var ErrInvalidWindow = errors.New("window must be at least one day")

// Supplier returns every stored shot of athleteID with from <= date <= to.
// A range with from after to yields no shots.
type Supplier interface {
	ShotsInRange(ctx context.Context, athleteID int64, from, to model.Date) ([]model.Shot, error)
}

// Option applies a configuration option to the Reporter.
type Option func(*Reporter)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRelaySize overrides the number of match shots per relay.
func WithRelaySize(size int) Option {
	return func(r *Reporter) {
		r.agg = aggregate.New(aggregate.WithRelaySize(size))
	}
}

// Reporter computes window statistics from a Supplier. It keeps no state
// between calls and is safe for concurrent use.
type Reporter struct {
	supplier Supplier
	agg      *aggregate.Aggregator
	now      func() time.Time
}

// NewReporter creates a Reporter reading from supplier.
func NewReporter(supplier Supplier, opts ...Option) *Reporter {
	r := &Reporter{
		supplier: supplier,
		agg:      aggregate.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Today returns the reference date of the Reporter's clock.
func (r *Reporter) Today() model.Date {
	return model.DateOf(r.now())
}

// Recent returns one DayStats per day with shots in the last days days,
// ending today, most recent first. Days without shots are omitted.
func (r *Reporter) Recent(ctx context.Context, athleteID int64, days int) ([]model.DayStats, error) {
	if days < 1 {
		return nil, fmt.Errorf("recent %d days: %w", days, ErrInvalidWindow)
	}
	today := r.Today()
	out, err := r.window(ctx, athleteID, today.AddDays(-days+1), today)
	if err != nil {
		return nil, fmt.Errorf("recent %d days: %w", days, err)
	}
	return out, nil
}

// Report summarises the match shots of the last days days and compares them
// with the days days before that. An empty previous window counts as zero.
func (r *Reporter) Report(ctx context.Context, athleteID int64, days int) (model.PeriodReport, error) {
	if days < 1 {
		return model.PeriodReport{}, fmt.Errorf("report %d days: %w", days, ErrInvalidWindow)
	}
	today := r.Today()

	current, err := r.window(ctx, athleteID, today.AddDays(-days+1), today)
	if err != nil {
		return model.PeriodReport{}, fmt.Errorf("report %d days: current window: %w", days, err)
	}
	previous, err := r.window(ctx, athleteID, today.AddDays(-2*days+1), today.AddDays(-days))
	if err != nil {
		return model.PeriodReport{}, fmt.Errorf("report %d days: previous window: %w", days, err)
	}

	best, avg := summarise(current)
	prevBest, prevAvg := summarise(previous)
	return model.PeriodReport{
		BestScore:         best,
		AverageScore:      avg,
		BestScoreDelta:    best - prevBest,
		AverageScoreDelta: avg - prevAvg,
	}, nil
}

// Day returns the statistics of a single day. A day without shots yields
// zero counts and empty lists.
func (r *Reporter) Day(ctx context.Context, athleteID int64, day model.Date) (model.DayStats, error) {
	shots, err := r.supplier.ShotsInRange(ctx, athleteID, day, day)
	if err != nil {
		return model.DayStats{}, fmt.Errorf("day %s: %w", day, err)
	}
	return r.agg.Day(day, shots), nil
}

// Set returns the relay at the 1-based index on day as a slice of zero or
// one element.
func (r *Reporter) Set(ctx context.Context, athleteID int64, day model.Date, index int) ([]model.RelayStats, error) {
	stats, err := r.Day(ctx, athleteID, day)
	if err != nil {
		return nil, fmt.Errorf("set %d: %w", index, err)
	}
	if index < 1 || index > len(stats.Relays) {
		return []model.RelayStats{}, nil
	}
	return []model.RelayStats{stats.Relays[index-1]}, nil
}

// window fetches [from, to] once and aggregates it per day, most recent first.
func (r *Reporter) window(ctx context.Context, athleteID int64, from, to model.Date) ([]model.DayStats, error) {
	shots, err := r.supplier.ShotsInRange(ctx, athleteID, from, to)
	if err != nil {
		return nil, err
	}

	byDay := GroupByDay(shots)
	out := make([]model.DayStats, 0, len(byDay))
	for day, dayShots := range byDay {
		if day.Before(from) || day.After(to) {
			continue
		}
		out = append(out, r.agg.Day(day, dayShots))
	}
	slices.SortFunc(out, func(a, b model.DayStats) int {
		return b.Day.Compare(a.Day)
	})
	return out, nil
}

// GroupByDay buckets shots by calendar date, keeping input order within a day.
func GroupByDay(shots []model.Shot) map[model.Date][]model.Shot {
	out := make(map[model.Date][]model.Shot)
	for i := range shots {
		out[shots[i].Date] = append(out[shots[i].Date], shots[i])
	}
	return out
}

// summarise returns the best and mean primary score over every relay shot.
func summarise(days []model.DayStats) (best, avg float64) {
	var (
		total float64
		count int
	)
	for _, d := range days {
		for _, rel := range d.Relays {
			for _, s := range rel.Shots {
				if count == 0 || s.PrimaryScore > best {
					best = s.PrimaryScore
				}
				total += s.PrimaryScore
				count++
			}
		}
	}
	if count == 0 {
		return 0, 0
	}
	return best, total / float64(count)
}
