package simulate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/ingest"
	"github.com/eerriikk-pro/sius-parse/internal/adapters/repository"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/internal/domain/period"
)

const scoreTolerance = 1e-9

// Expectation is what the service should answer after importing a run.
type Expectation struct {
	Report model.PeriodReport
	Recent []model.DayStats
}

// Expect replays exports through the same parser and reporter the service
// uses, backed by an in-memory store.
func Expect(ctx context.Context, cfg *Config, exports []Export, now func() time.Time) (Expectation, error) {
	store := repository.NewMemoryStore(repository.WithMetricsUpdateInterval(0))
	defer store.Close()

	today := model.DateOf(now())
	for _, e := range exports {
		shots, err := ingest.Parse(e.Filename, e.Content, today)
		if err != nil {
			return Expectation{}, fmt.Errorf("parse %s: %w", e.Filename, err)
		}
		if _, err := store.InsertShots(ctx, shots); err != nil {
			return Expectation{}, fmt.Errorf("store %s: %w", e.Filename, err)
		}
	}

	reporter := period.NewReporter(store, period.WithClock(now), period.WithRelaySize(cfg.RelaySize))
	report, err := reporter.Report(ctx, cfg.AthleteID, cfg.Days)
	if err != nil {
		return Expectation{}, err
	}
	recent, err := reporter.Recent(ctx, cfg.AthleteID, cfg.Days)
	if err != nil {
		return Expectation{}, err
	}
	return Expectation{Report: report, Recent: recent}, nil
}

// Verify compares the service's answers with want and returns the first
// mismatch.
func Verify(want Expectation, report model.PeriodReport, recent []model.DayStats) error {
	checks := []struct {
		name      string
		got, want float64
	}{
		{"best_score", report.BestScore, want.Report.BestScore},
		{"average_score", report.AverageScore, want.Report.AverageScore},
		{"best_score_delta", report.BestScoreDelta, want.Report.BestScoreDelta},
		{"average_score_delta", report.AverageScoreDelta, want.Report.AverageScoreDelta},
	}
	for _, c := range checks {
		if !closeEnough(c.got, c.want) {
			return fmt.Errorf("stats %s: got %.4f, want %.4f", c.name, c.got, c.want)
		}
	}

	if len(recent) != len(want.Recent) {
		return fmt.Errorf("recent-scores: got %d days, want %d", len(recent), len(want.Recent))
	}
	for i, w := range want.Recent {
		g := recent[i]
		switch {
		case g.Day != w.Day:
			return fmt.Errorf("recent-scores[%d]: got day %s, want %s", i, g.Day, w.Day)
		case g.TotalShots != w.TotalShots || g.TotalSighters != w.TotalSighters:
			return fmt.Errorf("recent-scores %s: got %d/%d shots/sighters, want %d/%d",
				w.Day, g.TotalShots, g.TotalSighters, w.TotalShots, w.TotalSighters)
		case !closeEnough(g.BestScore, w.BestScore):
			return fmt.Errorf("recent-scores %s: got best %.4f, want %.4f", w.Day, g.BestScore, w.BestScore)
		case len(g.Relays) != len(w.Relays):
			return fmt.Errorf("recent-scores %s: got %d relays, want %d", w.Day, len(g.Relays), len(w.Relays))
		}
		for j := range w.Relays {
			if !closeEnough(g.Relays[j].TotalScore, w.Relays[j].TotalScore) {
				return fmt.Errorf("recent-scores %s relay %d: got %.4f, want %.4f",
					w.Day, j+1, g.Relays[j].TotalScore, w.Relays[j].TotalScore)
			}
		}
	}
	return nil
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= scoreTolerance
}
