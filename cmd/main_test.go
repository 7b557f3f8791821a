package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/profilequest/internal/adapters/repository"
	"github.com/okian/profilequest/internal/config"
	"github.com/okian/profilequest/pkg/logger"
)

func init() {
	_ = logger.Init(logger.WithWriter(&bytes.Buffer{}))
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLevelCommand(t *testing.T) {
	Convey("Given the level command", t, func() {
		Convey("When asked about 250 total XP", func() {
			out, err := execute("level", "250")

			Convey("Then it prints level 3 with 0 of 225", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "level 3: 0/225 xp\n")
			})
		})

		Convey("When a table is requested", func() {
			out, err := execute("level", "0", "--table", "3")

			Convey("Then every level row follows the summary", func() {
				So(err, ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(out), "\n")
				So(lines, ShouldResemble, []string{
					"level 1: 0/100 xp",
					"1\t0\t100",
					"2\t100\t150",
					"3\t250\t225",
				})
			})
		})

		Convey("When the total is negative or not a number", func() {
			_, errNeg := execute("level", "--", "-5")
			_, errNaN := execute("level", "lots")

			Convey("Then both are rejected", func() {
				So(errNeg, ShouldNotBeNil)
				So(errNaN, ShouldNotBeNil)
			})
		})
	})
}

func TestMigrateCommand(t *testing.T) {
	Convey("Given a sqlite database configured through the environment", t, func() {
		path := filepath.Join(t.TempDir(), "pq.db")
		t.Setenv("PQ_JWT_SECRET", "0123456789abcdef0123")
		t.Setenv("PQ_STORAGE_DRIVER", config.DriverSQLite)
		t.Setenv("PQ_DATABASE_URL", path)

		Convey("When migrations are applied twice", func() {
			first, err1 := execute("migrate", "up")
			second, err2 := execute("migrate", "up")
			status, err3 := execute("migrate", "status")

			Convey("Then the second run finds nothing to do", func() {
				So(err1, ShouldBeNil)
				So(first, ShouldContainSubstring, "applied")
				So(err2, ShouldBeNil)
				So(second, ShouldEqual, "schema is up to date\n")
				So(err3, ShouldBeNil)
				So(status, ShouldContainSubstring, "\tapplied")
				So(status, ShouldNotContainSubstring, "pending")
			})
		})

		Convey("When the memory driver is selected", func() {
			t.Setenv("PQ_STORAGE_DRIVER", config.DriverMemory)
			_, err := execute("migrate", "up")

			Convey("Then there is no schema to migrate", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "no schema")
			})
		})

		Convey("When the configuration is invalid", func() {
			t.Setenv("PQ_JWT_SECRET", "short")
			_, err := execute("migrate", "up")

			Convey("Then the command fails before touching the database", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestNewService(t *testing.T) {
	Convey("Given the default configuration without AI keys", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.JWTSecret = "0123456789abcdef0123"
		cfg.RefillWorkers = 1

		Convey("When the service is wired over a memory store", func() {
			svc, err := newService(ctx, cfg, repository.NewMemoryStore())
			So(err, ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it is healthy and reports its workers", func() {
				So(svc.Health(ctx), ShouldBeNil)
				stats := svc.Stats(ctx)
				So(stats["started"], ShouldBeTrue)
				So(stats["workers"], ShouldEqual, 1)
				So(func() { updateServiceMetrics(ctx, svc) }, ShouldNotPanic)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})

		Convey("When the history timezone is unknown", func() {
			cfg.HistoryTimezone = "Mars/Olympus"
			_, err := newService(ctx, cfg, repository.NewMemoryStore())

			Convey("Then wiring fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestRunEvery(t *testing.T) {
	Convey("Given a ticking function", t, func() {
		var calls atomic.Int64
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			runEvery(ctx, time.Millisecond, func() { calls.Add(1) })
			close(done)
		}()

		Convey("When the context is cancelled", func() {
			So(waitFor(func() bool { return calls.Load() > 0 }), ShouldBeTrue)
			cancel()

			Convey("Then the loop returns", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("runEvery did not return")
				}
				So(func() { updateSystemMetrics() }, ShouldNotPanic)
			})
		})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
