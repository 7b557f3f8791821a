// Package repository defines the ProfileQuest store interface and its
// memory, SQLite and PostgreSQL implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/profilequest/internal/domain/model"
)

// Completion is the result of an atomic quest completion.
type Completion struct {
	Quest         model.Quest
	Event         model.XPEvent
	PreviousTotal int64
	TotalXP       int64
}

// Store provides read/write access to users, personas, quests and the XP ledger.
type Store interface {
	// CreateUser inserts u, assigning an ID when empty.
	// Returns ErrConflict if the email is taken.
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	UserByEmail(ctx context.Context, email string) (model.User, error)
	UserByID(ctx context.Context, id string) (model.User, error)
	// FindUsers filters by exact email and/or name; empty filters match all.
	FindUsers(ctx context.Context, email, name string, limit int) ([]model.User, error)

	UpsertPersona(ctx context.Context, p model.Persona) (model.Persona, error)
	Persona(ctx context.Context, userID string) (model.Persona, error)

	// SaveQuests upserts drafts on (user, title). Existing quests keep their
	// status, so a completed quest cannot be reopened by saving it again.
	SaveQuests(ctx context.Context, userID string, drafts []model.QuestDraft, at time.Time) ([]model.Quest, error)
	// Quests lists a user's quests ordered by title; an empty status lists all.
	Quests(ctx context.Context, userID string, status model.QuestStatus) ([]model.Quest, error)
	CountQuests(ctx context.Context, userID string, status model.QuestStatus) (int, error)
	DeleteQuest(ctx context.Context, userID, title string) error
	// CompleteQuest marks an available quest completed, appends its XP event
	// and adds the reward to the user's total in one transaction.
	// Returns ErrNotFound or ErrAlreadyCompleted.
	CompleteQuest(ctx context.Context, userID, title string, at time.Time) (Completion, error)
	// XPEvents returns the user's events in [from, to) ordered by time.
	XPEvents(ctx context.Context, userID string, from, to time.Time) ([]model.XPEvent, error)

	Ping(ctx context.Context) error
	Close() error
}
