package leveling_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/profilequest/internal/domain/leveling"
	. "github.com/smartystreets/goconvey/convey"
)

func TestComputeLevel(t *testing.T) {
	Convey("Given the leveling engine", t, func() {
		Convey("When the total is zero", func() {
			s, err := leveling.ComputeLevel(0)

			Convey("Then the user is level 1 with 100 xp to go", func() {
				So(err, ShouldBeNil)
				So(s, ShouldResemble, leveling.State{Level: 1, XP: 0, NextLevelXP: 100})
			})
		})

		Convey("When the total is one short of the first threshold", func() {
			s, err := leveling.ComputeLevel(99)
			So(err, ShouldBeNil)
			So(s, ShouldResemble, leveling.State{Level: 1, XP: 99, NextLevelXP: 100})
		})

		Convey("When the total hits the first threshold exactly", func() {
			s, err := leveling.ComputeLevel(100)
			So(err, ShouldBeNil)
			So(s, ShouldResemble, leveling.State{Level: 2, XP: 0, NextLevelXP: 150})
		})

		Convey("When the total crosses several thresholds", func() {
			s, err := leveling.ComputeLevel(474)
			So(err, ShouldBeNil)
			So(s, ShouldResemble, leveling.State{Level: 3, XP: 224, NextLevelXP: 225})

			s, err = leveling.ComputeLevel(475)
			So(err, ShouldBeNil)
			So(s, ShouldResemble, leveling.State{Level: 4, XP: 0, NextLevelXP: 338})
		})

		Convey("When the total is negative", func() {
			_, err := leveling.ComputeLevel(-1)

			Convey("Then it is rejected, not clamped", func() {
				So(errors.Is(err, leveling.ErrInvalidAmount), ShouldBeTrue)
			})
		})

		Convey("When the total exceeds the supported maximum", func() {
			_, err := leveling.ComputeLevel(leveling.MaxTotalXP + 1)
			So(errors.Is(err, leveling.ErrInvalidAmount), ShouldBeTrue)
		})

		Convey("When the total is the supported maximum", func() {
			s, err := leveling.ComputeLevel(leveling.MaxTotalXP)
			So(err, ShouldBeNil)
			So(s.XP, ShouldBeLessThan, s.NextLevelXP)
		})
	})
}

func TestThresholdSeries(t *testing.T) {
	Convey("Given the threshold series", t, func() {
		Convey("Then thresholds grow by 1.5 rounded half up", func() {
			want := []int64{100, 150, 225, 338, 507, 761, 1142}
			for i, w := range want {
				got, err := leveling.Threshold(i + 1)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, w)
			}
		})

		Convey("Then NextThreshold matches float rounding", func() {
			for _, v := range []int64{1, 2, 3, 99, 100, 225, 337, 507, 761, 123457} {
				So(leveling.NextThreshold(v), ShouldEqual, int64(math.Floor(float64(v)*1.5+0.5)))
			}
		})

		Convey("Then cumulative totals sum the earlier thresholds", func() {
			want := map[int]int64{1: 0, 2: 100, 3: 250, 4: 475, 5: 813, 6: 1320, 7: 2081}
			for level, w := range want {
				got, err := leveling.CumulativeXPForLevel(level)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, w)
			}
		})

		Convey("Then levels below 1 are rejected", func() {
			_, err := leveling.CumulativeXPForLevel(0)
			So(errors.Is(err, leveling.ErrInvalidLevel), ShouldBeTrue)
			_, err = leveling.Threshold(-3)
			So(errors.Is(err, leveling.ErrInvalidLevel), ShouldBeTrue)
		})

		Convey("Then unreachable levels are rejected", func() {
			_, err := leveling.CumulativeXPForLevel(1_000_000)
			So(errors.Is(err, leveling.ErrInvalidLevel), ShouldBeTrue)
		})
	})
}

func TestRoundTripProperties(t *testing.T) {
	Convey("Given every total in a dense range plus sparse large totals", t, func() {
		totals := make([]int64, 0, 6000)
		for v := int64(0); v <= 5000; v++ {
			totals = append(totals, v)
		}
		for v := int64(5001); v < leveling.MaxTotalXP/3; v = v*3 + 7 {
			totals = append(totals, v)
		}

		Convey("Then cumulative(level) + xp reproduces the total", func() {
			for _, total := range totals {
				s, err := leveling.ComputeLevel(total)
				So(err, ShouldBeNil)
				base, err := leveling.CumulativeXPForLevel(s.Level)
				So(err, ShouldBeNil)
				So(base+s.XP, ShouldEqual, total)
			}
		})

		Convey("Then xp stays below the next threshold", func() {
			for _, total := range totals {
				s, _ := leveling.ComputeLevel(total)
				So(s.XP, ShouldBeLessThan, s.NextLevelXP)
				next, err := leveling.Threshold(s.Level)
				So(err, ShouldBeNil)
				So(s.NextLevelXP, ShouldEqual, next)
			}
		})

		Convey("Then level never decreases as the total grows", func() {
			prev := 0
			for _, total := range totals {
				s, _ := leveling.ComputeLevel(total)
				So(s.Level, ShouldBeGreaterThanOrEqualTo, prev)
				prev = s.Level
			}
		})

		Convey("Then TotalFromState inverts ComputeLevel", func() {
			for _, total := range totals {
				s, _ := leveling.ComputeLevel(total)
				back, err := leveling.TotalFromState(s.Level, s.XP)
				So(err, ShouldBeNil)
				So(back, ShouldEqual, total)
			}
		})
	})
}

func TestTotalFromState(t *testing.T) {
	Convey("Given a stored level/xp pair", t, func() {
		Convey("When xp is within the level", func() {
			total, err := leveling.TotalFromState(3, 10)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 260)
		})

		Convey("When xp reaches the level threshold", func() {
			_, err := leveling.TotalFromState(2, 150)
			So(errors.Is(err, leveling.ErrInvalidAmount), ShouldBeTrue)
		})

		Convey("When xp is negative", func() {
			_, err := leveling.TotalFromState(2, -1)
			So(errors.Is(err, leveling.ErrInvalidAmount), ShouldBeTrue)
		})

		Convey("When the level is invalid", func() {
			_, err := leveling.TotalFromState(0, 0)
			So(errors.Is(err, leveling.ErrInvalidLevel), ShouldBeTrue)
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Given a user with 90 total xp", t, func() {
		Convey("When a 100 xp quest is completed", func() {
			out, err := leveling.Apply(90, 100)

			Convey("Then the user crosses into level 2", func() {
				So(err, ShouldBeNil)
				So(out.TotalXP, ShouldEqual, 190)
				So(out.Before, ShouldResemble, leveling.State{Level: 1, XP: 90, NextLevelXP: 100})
				So(out.After, ShouldResemble, leveling.State{Level: 2, XP: 90, NextLevelXP: 150})
				So(out.LeveledUp(), ShouldBeTrue)
				So(out.LevelsGained(), ShouldEqual, 1)
			})
		})

		Convey("When a zero xp quest is completed", func() {
			out, err := leveling.Apply(90, 0)
			So(err, ShouldBeNil)
			So(out.LeveledUp(), ShouldBeFalse)
			So(out.TotalXP, ShouldEqual, 90)
		})

		Convey("When a large award crosses several levels", func() {
			out, err := leveling.Apply(90, 1000)
			So(err, ShouldBeNil)
			So(out.After.Level, ShouldEqual, 5)
			So(out.LevelsGained(), ShouldEqual, 4)
		})

		Convey("When the award is negative", func() {
			_, err := leveling.Apply(90, -5)
			So(errors.Is(err, leveling.ErrInvalidAmount), ShouldBeTrue)
		})

		Convey("When the award would overflow the supported maximum", func() {
			_, err := leveling.Apply(90, leveling.MaxTotalXP)
			So(errors.Is(err, leveling.ErrInvalidAmount), ShouldBeTrue)
		})
	})
}

func TestParseAmount(t *testing.T) {
	Convey("Given decoded JSON numbers", t, func() {
		Convey("Then non-negative integers are accepted", func() {
			v, err := leveling.ParseAmount(150)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 150)

			v, err = leveling.ParseAmount(0)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0)
		})

		Convey("Then invalid numbers are rejected", func() {
			for _, bad := range []float64{-1, 1.5, math.NaN(), math.Inf(1), math.Inf(-1), 1e300} {
				_, err := leveling.ParseAmount(bad)
				So(errors.Is(err, leveling.ErrInvalidAmount), ShouldBeTrue)
			}
		})
	})
}
