package aggregate_test

import (
	"testing"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/domain/aggregate"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var day = model.Date{Year: 2025, Month: time.June, Day: 14}

func shotAt(sec int, class model.Classification, score float64) model.Shot {
	return model.Shot{
		AthleteID:    488,
		Date:         day,
		Time:         model.NewTimeOfDay(8, 0, 0, 0) + model.TimeOfDay(time.Duration(sec)*time.Second),
		PrimaryScore: score,
		Class:        class,
	}
}

func TestAggregator_Day(t *testing.T) {
	Convey("Given a day aggregator with the standard relay size", t, func() {
		agg := aggregate.New()

		Convey("When a day has 3 sighters and 61 match shots", func() {
			var shots []model.Shot
			for i := 0; i < 3; i++ {
				shots = append(shots, shotAt(100-i, model.Sighter, 8.5))
			}
			for i := 0; i < 61; i++ {
				shots = append(shots, shotAt(200+i, model.Match, float64(8+i%3)))
			}
			stats := agg.Day(day, shots)

			Convey("Then sighters and match shots are counted separately", func() {
				So(stats.Day, ShouldEqual, day)
				So(stats.TotalSighters, ShouldEqual, 3)
				So(stats.TotalShots, ShouldEqual, 61)
				So(stats.Sighters, ShouldHaveLength, stats.TotalSighters)
				So(stats.BestScore, ShouldEqual, 10)
			})

			Convey("And match shots are split into relays of 60 and 1", func() {
				So(stats.Relays, ShouldHaveLength, 2)
				So(stats.Relays[0].TotalShots, ShouldEqual, 60)
				So(stats.Relays[1].TotalShots, ShouldEqual, 1)
				So(stats.Relays[0].TotalShots+stats.Relays[1].TotalShots, ShouldEqual, stats.TotalShots)
			})

			Convey("And sighters are listed in time order", func() {
				So(stats.Sighters[0].Time, ShouldBeLessThan, stats.Sighters[1].Time)
				So(stats.Sighters[1].Time, ShouldBeLessThan, stats.Sighters[2].Time)
			})

			Convey("And aggregating again yields identical statistics", func() {
				So(agg.Day(day, shots), ShouldResemble, stats)
			})
		})

		Convey("When a day has the three-shot pistol example", func() {
			shots := []model.Shot{
				{Time: model.NewTimeOfDay(10, 27, 13, 0), PrimaryScore: 10, Class: model.Match},
				{Time: model.NewTimeOfDay(10, 26, 20, 0), PrimaryScore: 10, Class: model.Match},
				{Time: model.NewTimeOfDay(10, 26, 57, 0), PrimaryScore: 9, Class: model.Match},
			}
			stats := agg.Day(day, shots)

			Convey("Then day and relay totals match", func() {
				So(stats.TotalShots, ShouldEqual, 3)
				So(stats.TotalSighters, ShouldEqual, 0)
				So(stats.BestScore, ShouldEqual, 10)
				So(stats.Relays, ShouldHaveLength, 1)
				So(stats.Relays[0].TotalScore, ShouldEqual, 29)
				So(stats.Relays[0].AverageScore, ShouldAlmostEqual, 9.667, 0.001)
			})
		})

		Convey("When the day contains final and unknown classification codes", func() {
			shots := []model.Shot{
				shotAt(1, model.Final, 10.9),
				shotAt(2, model.Classification(3), 10.8),
				shotAt(3, model.Match, 9.1),
			}
			stats := agg.Day(day, shots)

			Convey("Then they are excluded from both sighters and match shots", func() {
				So(stats.TotalShots, ShouldEqual, 1)
				So(stats.TotalSighters, ShouldEqual, 0)
				So(stats.BestScore, ShouldEqual, 9.1)
			})
		})

		Convey("When the day has sighters only", func() {
			stats := agg.Day(day, []model.Shot{shotAt(1, model.Sighter, 10)})

			Convey("Then there are no relays and the best score is zero", func() {
				So(stats.TotalShots, ShouldEqual, 0)
				So(stats.BestScore, ShouldEqual, 0)
				So(stats.Relays, ShouldNotBeNil)
				So(stats.Relays, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a custom relay size", t, func() {
		agg := aggregate.New(aggregate.WithRelaySize(40), aggregate.WithRelaySize(-1))

		Convey("Then invalid overrides are ignored and relays follow the size", func() {
			So(agg.RelaySize(), ShouldEqual, 40)
			var shots []model.Shot
			for i := 0; i < 100; i++ {
				shots = append(shots, shotAt(i, model.Match, 9))
			}
			stats := agg.Day(day, shots)
			So(stats.Relays, ShouldHaveLength, 3)
			So(stats.Relays[2].TotalShots, ShouldEqual, 20)
		})
	})
}

func TestEmpty(t *testing.T) {
	Convey("Given a day without shots", t, func() {
		stats := aggregate.Empty(day)

		Convey("Then every count is zero and the lists are empty", func() {
			So(stats, ShouldResemble, aggregate.New().Day(day, nil))
			So(stats.TotalShots, ShouldEqual, 0)
			So(stats.TotalSighters, ShouldEqual, 0)
			So(stats.Relays, ShouldBeEmpty)
			So(stats.Sighters, ShouldBeEmpty)
		})
	})
}
