// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/profilequest/internal/domain/leveling"
)

// User is an account and the owner of the XP ledger.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string // bcrypt hash, never serialized
	TotalXP      int64  // monotonic; level state is derived from it
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public view of a user with the derived level state.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Level       int    `json:"level"`
	XP          int64  `json:"xp"`
	NextLevelXP int64  `json:"next_level_xp"`
	TotalXP     int64  `json:"total_xp"`
}

// NewProfile derives the public profile of u.
func NewProfile(u User) (Profile, error) {
	s, err := leveling.ComputeLevel(u.TotalXP)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Level:       s.Level,
		XP:          s.XP,
		NextLevelXP: s.NextLevelXP,
		TotalXP:     u.TotalXP,
	}, nil
}

// XPEvent is an immutable ledger entry written when a quest is completed.
type XPEvent struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	QuestID string    `json:"quest_id"`
	Amount  int64     `json:"amount"`
	At      time.Time `json:"at"`
}
