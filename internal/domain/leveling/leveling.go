// Package leveling converts a monotonic total-XP counter into the level state
// shown to users, and back.
//
// Thresholds form a geometric series: leaving level 1 costs 100 XP and every
// following threshold is the previous one multiplied by 1.5, rounded half up.
// Both directions walk the same series through NextThreshold.
package leveling

import (
	"fmt"
	"math"
)

// Threshold series constants.
const (
	FirstLevel          = 1
	BaseThreshold int64 = 100
	// MaxTotalXP is the largest total the engine accepts (2^53-1, the largest
	// integer a JSON client can represent exactly).
	MaxTotalXP int64 = 1<<53 - 1
)

// State is the derived (level, xp-within-level, next-level-threshold) tuple.
type State struct {
	Level       int   `json:"level"`
	XP          int64 `json:"xp"`
	NextLevelXP int64 `json:"next_level_xp"`
}

// Outcome describes the effect of adding XP to a total.
type Outcome struct {
	Before  State `json:"before"`
	After   State `json:"after"`
	TotalXP int64 `json:"total_xp"`
}

// LevelsGained returns how many levels the award crossed.
func (o Outcome) LevelsGained() int { return o.After.Level - o.Before.Level }

// LeveledUp reports whether the award crossed at least one threshold.
func (o Outcome) LeveledUp() bool { return o.LevelsGained() > 0 }

// NextThreshold returns round(t*1.5) with halves rounded up, in integer math.
func NextThreshold(t int64) int64 {
	return (3*t + 1) / 2
}

// ComputeLevel reduces totalXP through the threshold series.
func ComputeLevel(totalXP int64) (State, error) {
	if err := checkTotal(totalXP); err != nil {
		return State{}, err
	}
	s := State{Level: FirstLevel, XP: totalXP, NextLevelXP: BaseThreshold}
	for s.XP >= s.NextLevelXP {
		s.XP -= s.NextLevelXP
		s.Level++
		s.NextLevelXP = NextThreshold(s.NextLevelXP)
	}
	return s, nil
}

// CumulativeXPForLevel returns the total XP needed to reach level, i.e. the sum
// of the thresholds of levels 1..level-1.
func CumulativeXPForLevel(level int) (int64, error) {
	acc, _, err := walk(level)
	return acc, err
}

// Threshold returns the XP needed to leave level.
func Threshold(level int) (int64, error) {
	_, next, err := walk(level)
	return next, err
}

// TotalFromState rebuilds a total from a stored level/xp pair. It is used to
// backfill totals for profiles that only persisted the derived state.
func TotalFromState(level int, xp int64) (int64, error) {
	acc, next, err := walk(level)
	if err != nil {
		return 0, err
	}
	if xp < 0 || xp >= next {
		return 0, fmt.Errorf("%w: xp %d outside [0, %d) for level %d", ErrInvalidAmount, xp, next, level)
	}
	total := acc + xp
	if err := checkTotal(total); err != nil {
		return 0, err
	}
	return total, nil
}

// Apply adds amount to totalXP and reports the level state on both sides.
func Apply(totalXP, amount int64) (Outcome, error) {
	if amount < 0 {
		return Outcome{}, fmt.Errorf("%w: award %d is negative", ErrInvalidAmount, amount)
	}
	before, err := ComputeLevel(totalXP)
	if err != nil {
		return Outcome{}, err
	}
	if amount > MaxTotalXP-totalXP {
		return Outcome{}, fmt.Errorf("%w: total would exceed %d", ErrInvalidAmount, MaxTotalXP)
	}
	after, err := ComputeLevel(totalXP + amount)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Before: before, After: after, TotalXP: totalXP + amount}, nil
}

// ParseAmount validates a decoded JSON number as an XP amount.
func ParseAmount(v float64) (int64, error) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, fmt.Errorf("%w: not a finite number", ErrInvalidAmount)
	case v < 0:
		return 0, fmt.Errorf("%w: %v is negative", ErrInvalidAmount, v)
	case v != math.Trunc(v):
		return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidAmount, v)
	case v > float64(MaxTotalXP):
		return 0, fmt.Errorf("%w: %v exceeds %d", ErrInvalidAmount, v, MaxTotalXP)
	}
	return int64(v), nil
}

func checkTotal(totalXP int64) error {
	if totalXP < 0 {
		return fmt.Errorf("%w: %d is negative", ErrInvalidAmount, totalXP)
	}
	if totalXP > MaxTotalXP {
		return fmt.Errorf("%w: %d exceeds %d", ErrInvalidAmount, totalXP, MaxTotalXP)
	}
	return nil
}

// walk returns the cumulative XP to reach level and the threshold to leave it.
func walk(level int) (acc, next int64, err error) {
	if level < FirstLevel {
		return 0, 0, fmt.Errorf("%w: %d is below %d", ErrInvalidLevel, level, FirstLevel)
	}
	next = BaseThreshold
	for l := FirstLevel; l < level; l++ {
		acc += next
		if acc > MaxTotalXP {
			return 0, 0, fmt.Errorf("%w: level %d needs more than %d xp", ErrInvalidLevel, level, MaxTotalXP)
		}
		next = NextThreshold(next)
	}
	return acc, next, nil
}
