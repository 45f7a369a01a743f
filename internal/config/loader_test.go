package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/eerriikk-pro/sius-parse/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8000")
				convey.So(cfg.RelaySize, convey.ShouldEqual, 60)
				convey.So(cfg.MaxWindowDays, convey.ShouldEqual, 366)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SIUS_ADDR", ":9000")
			_ = os.Setenv("SIUS_RELAY_SIZE", "40")
			_ = os.Setenv("SIUS_STORAGE", "sqlite")
			_ = os.Setenv("SIUS_DB_PATH", "/tmp/range.db")
			_ = os.Setenv("SIUS_MAX_UPLOAD_BYTES", "1024")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9000")
				convey.So(cfg.RelaySize, convey.ShouldEqual, 40)
				convey.So(cfg.Storage, convey.ShouldEqual, config.StorageSQLite)
				convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/range.db")
				convey.So(cfg.MaxUploadBytes, convey.ShouldEqual, 1024)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			tmpFile := createTempConfigFile(`
# range computer
addr: ":9090"
relay_size: 30
default_window_days: 7
log_format: json
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("SIUS_CONFIG", tmpFile)
			_ = os.Setenv("SIUS_RELAY_SIZE", "20")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over file and file wins over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RelaySize, convey.ShouldEqual, 20)
				convey.So(cfg.DefaultWindowDays, convey.ShouldEqual, 7)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.ImportQueueSize, convey.ShouldEqual, 1_000)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("SIUS_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			cfg, err := config.LoadFile("/non/existent/file.yaml")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("SIUS_RELAY_SIZE", "sixty")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("SIUS_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"SIUS_CONFIG",
		"SIUS_ADDR",
		"SIUS_RELAY_SIZE",
		"SIUS_STORAGE",
		"SIUS_DB_PATH",
		"SIUS_MAX_UPLOAD_BYTES",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "sius-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
