package simulate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/http/api"
	service "github.com/eerriikk-pro/sius-parse/internal/app"
	"github.com/eerriikk-pro/sius-parse/internal/simulate"
	"github.com/eerriikk-pro/sius-parse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// startService runs the real service behind an httptest server.
func startService(opts ...service.Option) (*httptest.Server, *service.Service) {
	opts = append([]service.Option{service.WithClock(fixedClock), service.WithWorkerCount(2)}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	return httptest.NewServer(mux), svc
}

func runnerConfig(baseURL string) *simulate.Config {
	cfg := simulate.NewConfig()
	cfg.BaseURL = baseURL
	cfg.Days = 6
	cfg.ShotsPerDay = 30
	cfg.SightersPerDay = 2
	cfg.BatchSize = 4
	cfg.PollInterval = 5 * time.Millisecond
	cfg.SettleTimeout = 5 * time.Second
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestRunner(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv, svc := startService()
		defer func() {
			srv.Close()
			So(svc.Stop(context.Background()), ShouldBeNil)
		}()
		ctx := context.Background()

		Convey("When a simulation runs against it", func() {
			cfg := runnerConfig(srv.URL)
			cfg.OutputDir = filepath.Join(t.TempDir(), "exports")
			r, err := simulate.NewRunner(cfg, simulate.WithClock(fixedClock))
			So(err, ShouldBeNil)
			stats, err := r.Run(ctx)

			Convey("Then the service answers match the local computation", func() {
				So(err, ShouldBeNil)
				So(stats.FilesGenerated, ShouldEqual, 6)
				So(stats.JobsAccepted, ShouldEqual, 6)
				So(stats.ShotsInserted, ShouldEqual, 6*32)
			})

			Convey("And the exports were written out", func() {
				entries, err := os.ReadDir(cfg.OutputDir)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 6)
			})

			Convey("And a second identical run is answered with duplicates", func() {
				r2, err := simulate.NewRunner(runnerConfig(srv.URL), simulate.WithClock(fixedClock))
				So(err, ShouldBeNil)
				stats, err := r2.Run(ctx)
				So(err, ShouldBeNil)
				So(stats.JobsDuplicate, ShouldEqual, 6)
			})
		})

		Convey("When the runner assumes a different relay size", func() {
			cfg := runnerConfig(srv.URL)
			cfg.RelaySize = 7
			r, err := simulate.NewRunner(cfg, simulate.WithClock(fixedClock))
			So(err, ShouldBeNil)
			_, err = r.Run(ctx)

			Convey("Then verification reports a mismatch", func() {
				So(errors.Is(err, simulate.ErrMismatch), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service with a tiny queue", t, func() {
		srv, svc := startService(service.WithQueueSize(1), service.WithWorkerCount(1))
		defer func() {
			srv.Close()
			So(svc.Stop(context.Background()), ShouldBeNil)
		}()

		Convey("When a whole batch is uploaded at once", func() {
			cfg := runnerConfig(srv.URL)
			cfg.AthleteID = 4242
			r, err := simulate.NewRunner(cfg, simulate.WithClock(fixedClock))
			So(err, ShouldBeNil)
			stats, err := r.Run(context.Background())

			Convey("Then refused files are resubmitted and everything verifies", func() {
				So(err, ShouldBeNil)
				So(stats.JobsAccepted, ShouldEqual, 6)
				So(stats.ShotsInserted, ShouldEqual, 6*32)
			})
		})
	})

	Convey("Given no service", t, func() {
		cfg := runnerConfig("http://127.0.0.1:1")
		cfg.Timeout = 200 * time.Millisecond
		r, err := simulate.NewRunner(cfg)
		So(err, ShouldBeNil)

		Convey("Then the health check fails", func() {
			_, err := r.Run(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}
