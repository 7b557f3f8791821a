package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)
			So(Get(), ShouldNotBeNil)
			So(Sync(), ShouldBeNil)
		})

		Convey("When initialized with an unknown format", func() {
			So(Init(WithFormat("xml")), ShouldNotBeNil)
		})

		Convey("When initialized with an unknown level", func() {
			So(Init(WithLevel("chatty")), ShouldNotBeNil)
		})
	})
}

func TestLoggerJSON(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat(FormatJSON), WithWriter(&buf)), ShouldBeNil)
		ctx := context.Background()

		Convey("When a message is logged with fields", func() {
			Named("quests").With(String("user_id", "u1")).Info(ctx, "quest completed",
				Int64("xp", 150), Bool("level_up", true), Duration("took", time.Second), Error(errors.New("boom")))

			var rec map[string]any
			So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)

			Convey("Then every field is present", func() {
				So(rec["msg"], ShouldEqual, "quest completed")
				So(rec["logger"], ShouldEqual, "quests")
				So(rec["user_id"], ShouldEqual, "u1")
				So(rec["xp"], ShouldEqual, 150)
				So(rec["level_up"], ShouldEqual, true)
				So(rec["error"], ShouldEqual, "boom")
				So(rec["source"], ShouldContainSubstring, "logger_test.go:")
			})
		})

		Convey("When the level is raised above the message level", func() {
			So(SetLevelString("error"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Debug(ctx, "hidden")
			Get().Error(ctx, "shown")

			Convey("Then only the error is written", func() {
				So(strings.Count(buf.String(), "\n"), ShouldEqual, 1)
				So(buf.String(), ShouldContainSubstring, "shown")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		for _, l := range []string{"debug", "INFO", "", "warn", "warning", "error"} {
			So(SetLevelString(l), ShouldBeNil)
		}
		So(SetLevelString("trace"), ShouldNotBeNil)
	})
}
