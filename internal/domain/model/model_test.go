package model_test

import (
	"errors"
	"testing"

	"github.com/okian/profilequest/internal/domain/leveling"
	model "github.com/okian/profilequest/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestNewProfile(t *testing.T) {
	convey.Convey("Given a user with a total xp", t, func() {
		u := model.User{ID: "u1", Email: "a@b.c", Name: "Ada", TotalXP: 474}

		convey.Convey("When the profile is derived", func() {
			p, err := model.NewProfile(u)

			convey.Convey("Then the level state comes from the total", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.Level, convey.ShouldEqual, 3)
				convey.So(p.XP, convey.ShouldEqual, 224)
				convey.So(p.NextLevelXP, convey.ShouldEqual, 225)
				convey.So(p.TotalXP, convey.ShouldEqual, 474)
				convey.So(p.Email, convey.ShouldEqual, "a@b.c")
			})
		})

		convey.Convey("When the stored total is corrupt", func() {
			u.TotalXP = -10
			_, err := model.NewProfile(u)
			convey.So(errors.Is(err, leveling.ErrInvalidAmount), convey.ShouldBeTrue)
		})
	})
}

func TestParseStatusFilter(t *testing.T) {
	convey.Convey("Given quest list filters", t, func() {
		cases := map[string]model.QuestStatus{
			"":          model.StatusAvailable,
			"available": model.StatusAvailable,
			"Completed": model.StatusCompleted,
			"all":       "",
		}
		for in, want := range cases {
			got, err := model.ParseStatusFilter(in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, want)
		}

		_, err := model.ParseStatusFilter("archived")
		convey.So(errors.Is(err, model.ErrInvalidStatus), convey.ShouldBeTrue)
	})
}

func TestDefaultPersona(t *testing.T) {
	convey.Convey("Given the fallback persona", t, func() {
		p := model.DefaultPersona()
		convey.So(p.PersonaType, convey.ShouldEqual, "Adventurer")
		convey.So(p.Attributes, convey.ShouldResemble, map[string]int{"logic": 5, "creativity": 5, "communication": 5})

		convey.Convey("Then each call returns an independent map", func() {
			p.Attributes["logic"] = 9
			convey.So(model.DefaultPersona().Attributes["logic"], convey.ShouldEqual, 5)
		})
	})
}
