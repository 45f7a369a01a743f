// Package aggregate builds per-day statistics from one athlete's shots.
package aggregate

import (
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/internal/domain/relay"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithRelaySize overrides the number of match shots per relay.
func WithRelaySize(size int) Option {
	return func(a *Aggregator) {
		if size > 0 {
			a.relaySize = size
		}
	}
}

// Aggregator turns a day's raw shots into DayStats. It holds configuration
// only and is safe for concurrent use.
type Aggregator struct {
	relaySize int
}

// New creates an Aggregator with the standard relay size.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{relaySize: relay.DefaultSize}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RelaySize returns the configured relay size.
func (a *Aggregator) RelaySize() int { return a.relaySize }

// Split separates sighters and match shots. Every other classification,
// finals included, lands in neither bucket.
func Split(shots []model.Shot) (sighters, match []model.Shot) {
	sighters = []model.Shot{}
	match = []model.Shot{}
	for i := range shots {
		switch shots[i].Class {
		case model.Sighter:
			sighters = append(sighters, shots[i])
		case model.Match:
			match = append(match, shots[i])
		}
	}
	return sighters, match
}

// Day aggregates all shots of one athlete on day. The caller is responsible
// for passing shots of that athlete-day only; the input is not modified.
func (a *Aggregator) Day(day model.Date, shots []model.Shot) model.DayStats {
	sighters, match := Split(shots)

	stats := model.DayStats{
		Day:           day,
		TotalShots:    len(match),
		TotalSighters: len(sighters),
		Relays:        relay.Partition(match, a.relaySize),
		Sighters:      relay.SortByTime(sighters),
	}
	for i := range match {
		if i == 0 || match[i].PrimaryScore > stats.BestScore {
			stats.BestScore = match[i].PrimaryScore
		}
	}
	return stats
}

// Empty returns the DayStats of a day without shots.
func Empty(day model.Date) model.DayStats {
	return model.DayStats{
		Day:      day,
		Relays:   []model.RelayStats{},
		Sighters: []model.Shot{},
	}
}
