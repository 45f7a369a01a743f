package simulate_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/ingest"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/internal/simulate"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	Convey("Given a simulate config", t, func() {
		cfg := simulate.NewConfig()
		cfg.Days = 3
		cfg.ShotsPerDay = 65
		cfg.SightersPerDay = 4
		end := model.Date{Year: 2025, Month: time.March, Day: 1}

		Convey("When generating exports", func() {
			exports, err := simulate.Generate(cfg, end)
			So(err, ShouldBeNil)

			Convey("Then one file per day ends at the given day", func() {
				So(exports, ShouldHaveLength, 3)
				So(exports[0].Day.String(), ShouldEqual, "2025-02-27")
				So(exports[2].Day, ShouldEqual, end)
				So(exports[2].Filename, ShouldEqual, "20250301_sim9001.csv")
			})

			Convey("And every file parses back to the generated shots", func() {
				for _, e := range exports {
					shots, err := ingest.Parse(e.Filename, e.Content, end)
					So(err, ShouldBeNil)
					So(shots, ShouldHaveLength, 69)
					So(shots[0].Class, ShouldEqual, model.Sighter)
					So(shots[4].Class, ShouldEqual, model.Match)
					for i := range shots {
						So(shots[i].PrimaryScore, ShouldEqual, e.Shots[i].PrimaryScore)
						So(shots[i].Time, ShouldEqual, e.Shots[i].Time)
						So(shots[i].Date, ShouldEqual, e.Day)
					}
				}
			})

			Convey("And shot times strictly increase within a day", func() {
				for _, e := range exports {
					for i := 1; i < len(e.Shots); i++ {
						So(e.Shots[i].Time, ShouldBeGreaterThan, e.Shots[i-1].Time)
					}
				}
			})

			Convey("And match scores stay on the target", func() {
				for _, s := range exports[0].Shots[4:] {
					So(s.PrimaryScore, ShouldBeBetweenOrEqual, 8.0, 10.9)
				}
			})
		})

		Convey("When generating twice with the same seed", func() {
			a, err := simulate.Generate(cfg, end)
			So(err, ShouldBeNil)
			b, err := simulate.Generate(cfg, end)
			So(err, ShouldBeNil)

			Convey("Then the files are identical", func() {
				for i := range a {
					So(bytes.Equal(a[i].Content, b[i].Content), ShouldBeTrue)
				}
			})

			Convey("And a different seed changes them", func() {
				cfg.Seed = 2
				c, err := simulate.Generate(cfg, end)
				So(err, ShouldBeNil)
				So(bytes.Equal(a[0].Content, c[0].Content), ShouldBeFalse)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := simulate.NewConfig()
		So(cfg.Validate(), ShouldBeNil)

		Convey("Then invalid fields are rejected", func() {
			for _, mutate := range []func(*simulate.Config){
				func(c *simulate.Config) { c.BaseURL = "" },
				func(c *simulate.Config) { c.AthleteID = 0 },
				func(c *simulate.Config) { c.Days = 0 },
				func(c *simulate.Config) { c.ShotsPerDay = -1 },
				func(c *simulate.Config) { c.ShotsPerDay = simulate.MaxShotsPerDay },
				func(c *simulate.Config) { c.RelaySize = 0 },
				func(c *simulate.Config) { c.BatchSize = 0 },
			} {
				bad := *cfg
				mutate(&bad)
				So(errors.Is(bad.Validate(), simulate.ErrInvalidConfig), ShouldBeTrue)
			}
		})
	})
}
