package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	service "github.com/eerriikk-pro/sius-parse/internal/app"
	"github.com/eerriikk-pro/sius-parse/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFromConfig(t *testing.T) {
	Convey("Given a default config", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.ImportWorkerCount = 1

		Convey("When building the service with memory storage", func() {
			svc, err := service.FromConfig(ctx, cfg, service.WithClock(clock))
			So(err, ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it reports the configured sizes", func() {
				status := svc.Status()
				So(status["workerCount"], ShouldEqual, 1)
				So(status["relaySize"], ShouldEqual, 60)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})

		Convey("When building the service with sqlite storage", func() {
			cfg.Storage = config.StorageSQLite
			cfg.DBPath = filepath.Join(t.TempDir(), "shots.db")
			svc, err := service.FromConfig(ctx, cfg, service.WithClock(clock))
			So(err, ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then imports are persisted", func() {
				job, err := svc.ImportNow(ctx, "20250620_range.csv", exportFor(10, 10.0))
				So(err, ShouldBeNil)
				So(job.Inserted, ShouldEqual, 12)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})

		Convey("When the storage backend is unknown", func() {
			cfg.Storage = "cassandra"
			_, err := service.OpenStore(ctx, cfg)
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}
