// Package relay splits a day's match shots into fixed-size relays.
package relay

import (
	"slices"

	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
)

// DefaultSize is the number of match shots in a standard relay.
const DefaultSize = 60

// SortByTime returns a copy of shots ordered by shot time. Shots with the same
// time keep their input order.
func SortByTime(shots []model.Shot) []model.Shot {
	sorted := slices.Clone(shots)
	slices.SortStableFunc(sorted, func(a, b model.Shot) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	return sorted
}

// Partition orders match shots by time and cuts them into consecutive relays
// of size shots; the last relay may be shorter. A size below 1 falls back to
// DefaultSize. Callers filter to one athlete-day of match shots beforehand.
// The input slice is never modified.
func Partition(shots []model.Shot, size int) []model.RelayStats {
	if size < 1 {
		size = DefaultSize
	}
	relays := []model.RelayStats{}
	if len(shots) == 0 {
		return relays
	}
	sorted := SortByTime(shots)
	for start := 0; start < len(sorted); start += size {
		end := min(start+size, len(sorted))
		relays = append(relays, Summarise(sorted[start:end:end]))
	}
	return relays
}

// Summarise computes relay statistics over shots in the order given.
func Summarise(shots []model.Shot) model.RelayStats {
	stats := model.RelayStats{
		TotalShots: len(shots),
		Shots:      shots,
	}
	if stats.Shots == nil {
		stats.Shots = []model.Shot{}
	}
	for i := range shots {
		stats.TotalScore += shots[i].PrimaryScore
		if i == 0 || shots[i].PrimaryScore > stats.BestScore {
			stats.BestScore = shots[i].PrimaryScore
		}
	}
	if stats.TotalShots > 0 {
		stats.AverageScore = stats.TotalScore / float64(stats.TotalShots)
	}
	return stats
}
