package model

import (
	"fmt"
	"strings"
	"time"
)

// QuestStatus is the lifecycle state of a quest.
type QuestStatus string

// Quest states. StatusAll is only a list filter.
const (
	StatusAvailable QuestStatus = "available"
	StatusCompleted QuestStatus = "completed"
	StatusAll       QuestStatus = "all"
)

// Quest categories offered to the model.
const (
	CategorySkill      = "Skill Development"
	CategoryPortfolio  = "Portfolio Building"
	CategoryNetworking = "Networking"
	CategoryLeadership = "Thought Leadership"
)

// Categories lists the known quest categories in prompt order.
func Categories() []string {
	return []string{CategorySkill, CategoryPortfolio, CategoryNetworking, CategoryLeadership}
}

// DefaultXPReward is stored when a saved quest carries no reward.
const DefaultXPReward int64 = 100

// ParseStatusFilter maps a list filter to a status. Empty means available;
// "all" returns the empty status, which stores treat as no filter.
func ParseStatusFilter(s string) (QuestStatus, error) {
	switch QuestStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAvailable:
		return StatusAvailable, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusAll:
		return "", nil
	}
	return "", fmt.Errorf("%w: %q (want available, completed or all)", ErrInvalidStatus, s)
}

// Quest is a task owned by a user. Titles are unique per user.
type Quest struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	XPReward    int64       `json:"xp_reward"`
	Status      QuestStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Completed reports whether the quest has been completed.
func (q Quest) Completed() bool { return q.Status == StatusCompleted }

// QuestDraft is a quest proposed by a generator or a client before it is saved.
type QuestDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	XPReward    int64  `json:"xp_reward"`
}

// RefillJob asks the refill pool to top up a user's available quests.
type RefillJob struct {
	UserID string
	Reason string
}
