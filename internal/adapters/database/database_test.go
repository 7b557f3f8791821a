package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/okian/profilequest/internal/adapters/database"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSQLiteMigrations(t *testing.T) {
	Convey("Given a fresh SQLite file", t, func() {
		ctx := context.Background()
		db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "pq.db"))
		So(err, ShouldBeNil)
		defer db.Close()

		m, err := database.NewMigrator(db, database.SQLite)
		So(err, ShouldBeNil)

		Convey("When migrating up", func() {
			versions, err := m.Up(ctx)
			So(err, ShouldBeNil)
			So(versions, ShouldResemble, []int64{1})

			Convey("Then the schema exists and status reports it applied", func() {
				var n int
				So(db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('users','personas','quests','xp_events')`).Scan(&n), ShouldBeNil)
				So(n, ShouldEqual, 4)

				st, err := m.Status(ctx)
				So(err, ShouldBeNil)
				So(st, ShouldResemble, []database.Status{{Version: 1, Applied: true}})
			})

			Convey("Then a second run applies nothing", func() {
				again, err := m.Up(ctx)
				So(err, ShouldBeNil)
				So(again, ShouldBeEmpty)
			})

			Convey("Then down removes the schema", func() {
				v, err := m.Down(ctx)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 1)
				var n int
				So(db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='users'`).Scan(&n), ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})
	})
}

func TestUnknownDialect(t *testing.T) {
	Convey("Given an unsupported dialect", t, func() {
		_, err := database.NewMigrator(nil, database.Dialect("oracle"))
		So(errors.Is(err, database.ErrUnknownDialect), ShouldBeTrue)
	})
}
