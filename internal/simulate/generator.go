package simulate

import (
	"bytes"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/ingest"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
)

// Score generation bounds, in tenths of a ring.
const (
	minTenths    = 80
	maxTenths    = 109
	sighterFloor = 60
	innerTenMM   = 2.5
	mmPerRing    = 2.5
)

// Export is one generated range export.
type Export struct {
	Filename string
	Day      model.Date
	Shots    []model.Shot
	Content  []byte
}

// Generate builds one export per day for cfg.Days days ending at end. A run
// with the same seed always yields byte-identical files.
func Generate(cfg *Config, end model.Date) ([]Export, error) {
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(cfg.AthleteID)))
	suffix := fmt.Sprintf("sim%d", cfg.AthleteID)

	exports := make([]Export, 0, cfg.Days)
	for i := cfg.Days - 1; i >= 0; i-- {
		day := end.AddDays(-i)
		shots := generateDay(rng, cfg, day)

		var buf bytes.Buffer
		if err := ingest.Encode(&buf, shots); err != nil {
			return nil, fmt.Errorf("encode %s: %w", day, err)
		}
		exports = append(exports, Export{
			Filename: ingest.FileName(day, suffix),
			Day:      day,
			Shots:    shots,
			Content:  buf.Bytes(),
		})
	}
	return exports, nil
}

// generateDay fires the sighters first, then the match, starting at 09:00
// with 20 to 60 seconds between shots.
func generateDay(rng *rand.Rand, cfg *Config, day model.Date) []model.Shot {
	total := cfg.SightersPerDay + cfg.ShotsPerDay
	shots := make([]model.Shot, 0, total)
	at := model.NewTimeOfDay(9, 0, 0, 0)
	// Later days score a little higher so deltas are non-trivial.
	form := day.Time().YearDay() % 5

	for n := 0; n < total; n++ {
		class := model.Match
		floor := minTenths + form
		if n < cfg.SightersPerDay {
			class = model.Sighter
			floor = sighterFloor
		}
		tenths := floor + rng.IntN(maxTenths-floor+1)
		score := float64(tenths) / 10
		radius := (10.9 - score) * mmPerRing
		angle := rng.Float64() * 360

		shots = append(shots, model.Shot{
			AthleteID:      cfg.AthleteID,
			Date:           day,
			Time:           at,
			PrimaryScore:   score,
			SecondaryScore: float64(int(score)),
			Class:          class,
			FiringPoint:    int(cfg.AthleteID%50) + 1,
			Divisions:      10,
			InnerTen:       radius <= innerTenMM,
			XMM:            roundMM(radius * cosDeg(angle)),
			YMM:            roundMM(radius * sinDeg(angle)),
			InTime:         true,
			ShootIndex:     n + 1,
			LogType:        model.LogTypeOwnShot,
			RelayNumber:    1,
			TargetID:       int(cfg.AthleteID % 100),
		})
		gap := 20*time.Second + time.Duration(rng.IntN(40_000))*time.Millisecond
		at += model.TimeOfDay(gap - gap%(10*time.Millisecond))
	}
	return shots
}

func cosDeg(deg float64) float64 { return math.Cos(deg * math.Pi / 180) }

func sinDeg(deg float64) float64 { return math.Sin(deg * math.Pi / 180) }

// roundMM rounds to the export's two decimals.
func roundMM(v float64) float64 { return math.Round(v*100) / 100 }
