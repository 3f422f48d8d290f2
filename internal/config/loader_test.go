package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/courtside/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"COURTSIDE_CONFIG",
	"COURTSIDE_ADDR",
	"COURTSIDE_QUEUE_SIZE",
	"COURTSIDE_WORKER_COUNT",
	"COURTSIDE_TOLERANCE_PCT",
	"COURTSIDE_QUARANTINE_ON_FAILURE",
	"COURTSIDE_DB_DRIVER",
	"COURTSIDE_DB_DSN",
	"COURTSIDE_REDIS_ADDR",
	"COURTSIDE_LOG_LEVEL",
	"COURTSIDE_CORS_ORIGINS",
	"COURTSIDE_SUBMIT_RATE_PER_MINUTE",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DBDSN, convey.ShouldEqual, "courtside.db")
				convey.So(cfg.RedisAddr, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("COURTSIDE_ADDR", ":8080")
			_ = os.Setenv("COURTSIDE_QUEUE_SIZE", "64")
			_ = os.Setenv("COURTSIDE_WORKER_COUNT", "3")
			_ = os.Setenv("COURTSIDE_TOLERANCE_PCT", "7.5")
			_ = os.Setenv("COURTSIDE_QUARANTINE_ON_FAILURE", "true")
			_ = os.Setenv("COURTSIDE_DB_DRIVER", "postgres")
			_ = os.Setenv("COURTSIDE_DB_DSN", "postgres://localhost/courtside?sslmode=disable")
			_ = os.Setenv("COURTSIDE_REDIS_ADDR", "localhost:6379")
			_ = os.Setenv("COURTSIDE_CORS_ORIGINS", "https://a.example,https://b.example")
			_ = os.Setenv("COURTSIDE_SUBMIT_RATE_PER_MINUTE", "0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.TolerancePct, convey.ShouldEqual, 7.5)
				convey.So(cfg.QuarantineOnFailure, convey.ShouldBeTrue)
				convey.So(cfg.DBDriver, convey.ShouldEqual, "postgres")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "localhost:6379")
				convey.So(cfg.Origins(), convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
				convey.So(cfg.SubmitRatePerMinute, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := filepath.Join(t.TempDir(), "courtside.yaml")
			yaml := "addr: \":7070\"\nworker_count: 2\ninput_dir: /data/games\nderive_box_score: false\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("COURTSIDE_CONFIG", path)

			convey.Convey("Then file values apply and env still wins", func() {
				_ = os.Setenv("COURTSIDE_WORKER_COUNT", "6")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.InputDir, convey.ShouldEqual, "/data/games")
				convey.So(cfg.DeriveBoxScore, convey.ShouldBeFalse)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 6)
			})
		})

		convey.Convey("When the config file is missing", func() {
			_ = os.Setenv("COURTSIDE_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a value fails validation", func() {
			cases := []struct{ key, value string }{
				{"COURTSIDE_DB_DRIVER", "mysql"},
				{"COURTSIDE_TOLERANCE_PCT", "0"},
				{"COURTSIDE_WORKER_COUNT", "0"},
				{"COURTSIDE_LOG_LEVEL", "loud"},
				{"COURTSIDE_REDIS_ADDR", "no-port"},
			}
			for _, c := range cases {
				clearConfigEnvVars()
				_ = os.Setenv(c.key, c.value)
				_, err := config.Load(ctx)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})
	})
}
